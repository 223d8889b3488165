package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/facewatch/internal/alert"
	"github.com/kozaktomas/facewatch/internal/constants"
	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/faceembed"
	"github.com/kozaktomas/facewatch/internal/facematch"
	"github.com/kozaktomas/facewatch/internal/logger"
	"github.com/kozaktomas/facewatch/internal/metrics"
	"github.com/sirupsen/logrus"
)

// ScanRequest is one live frame submitted by an officer.
type ScanRequest struct {
	Image  []byte
	Gender string // optional demographic hint for the probe
}

// ScanResult is the outcome of one scan cycle.
type ScanResult struct {
	// Results holds the matches under the display cutoff, closest first.
	Results      []facematch.Result
	Message      string
	Detector     string
	Confirmation facematch.Confirmation
}

// Scanner runs live scans. It is safe for concurrent use.
type Scanner struct {
	extractor  Extractor
	cases      database.CaseReader
	matcher    *facematch.Matcher
	confirmer  *facematch.Confirmer
	dispatcher Dispatcher
	log        *logrus.Entry
	metrics    *metrics.Metrics
}

// ScannerDeps holds the collaborators of a Scanner. Dispatcher may be nil,
// in which case confirmed matches are logged but not delivered.
type ScannerDeps struct {
	Extractor  Extractor
	Cases      database.CaseReader
	Matcher    *facematch.Matcher
	Confirmer  *facematch.Confirmer
	Dispatcher Dispatcher
	Log        *logrus.Entry
	Metrics    *metrics.Metrics
}

// NewScanner creates a scanner.
func NewScanner(deps ScannerDeps) *Scanner {
	log := deps.Log
	if log == nil {
		log = logger.Discard()
	}
	return &Scanner{
		extractor:  deps.Extractor,
		cases:      deps.Cases,
		matcher:    deps.Matcher,
		confirmer:  deps.Confirmer,
		dispatcher: deps.Dispatcher,
		log:        logger.Component(log, "scanner"),
		metrics:    deps.Metrics,
	}
}

// Scan extracts a probe from the frame, matches it against every case with an
// embedding and feeds the top match to the confirmer. Extraction failures
// return an error and leave the confirmation state untouched.
func (s *Scanner) Scan(ctx context.Context, req ScanRequest) (ScanResult, error) {
	start := time.Now()
	log := logger.Component(logger.FromContext(ctx, s.log), "scanner")

	ext, err := s.extractor.Extract(ctx, req.Image, faceembed.Strict)
	outcome := faceembed.Outcome(ext, err)
	s.metrics.ObserveExtraction(faceembed.Strict.String(), outcome, time.Since(start))
	if err != nil {
		s.metrics.ObserveScan(outcome, time.Since(start))
		log.WithError(err).Debug("Probe extraction failed")
		return ScanResult{}, err
	}

	stored, err := s.cases.ListCasesWithEmbeddings(ctx)
	if err != nil {
		s.metrics.ObserveScan("error", time.Since(start))
		return ScanResult{}, fmt.Errorf("list cases: %w", err)
	}
	if len(stored) == 0 {
		s.metrics.ObserveScan("empty", time.Since(start))
		return ScanResult{Results: []facematch.Result{}, Message: constants.MessageNoCases, Detector: ext.Detector}, nil
	}

	report := s.matcher.Match(facematch.Probe{Embedding: ext.Embedding, Gender: req.Gender}, candidates(stored))
	for _, skip := range report.Skipped {
		s.metrics.IncSkipped(string(skip.Reason))
		if skip.Err != nil {
			log.WithError(skip.Err).WithField(logger.FieldCaseID, skip.CaseID).Warn("Skipping incompatible candidate")
		}
	}

	top := report.Top()
	conf := s.confirmer.Observe(top)
	s.metrics.IncConfirmation(string(conf.Decision))

	switch conf.Decision {
	case facematch.DecisionFire:
		s.fire(log, top)
	case facematch.DecisionSuppressed:
		log.WithField(logger.FieldCaseID, conf.CaseID).Info("Confirmed match inside alert cooldown")
	case facematch.DecisionArmed:
		log.WithFields(logrus.Fields{
			logger.FieldCaseID: conf.CaseID,
			"hits":             conf.Hits,
			"required":         conf.Required,
		}).Info("Match awaiting confirmation")
	}

	result := ScanResult{
		Results:      report.Visible(),
		Detector:     ext.Detector,
		Confirmation: conf,
	}
	if len(report.Results) == 0 {
		result.Message = constants.MessageNoResults
	}

	scanOutcome := "no_match"
	if top != nil {
		scanOutcome = "match"
	}
	s.metrics.ObserveScan(scanOutcome, time.Since(start))
	log.WithFields(logrus.Fields{
		logger.FieldCount:      len(report.Results),
		"visible":              len(result.Results),
		"skipped":              len(report.Skipped),
		"decision":             conf.Decision,
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Debug("Scan completed")
	return result, nil
}

func (s *Scanner) fire(log *logrus.Entry, top *facematch.Result) {
	entry := log.WithFields(logrus.Fields{
		logger.FieldCaseID: top.CaseID,
		"score":            top.Score,
	})
	if s.dispatcher == nil {
		entry.Warn("Match confirmed but no alert dispatcher is configured")
		return
	}
	if top.ContactPhone == "" {
		entry.Warn("Match confirmed but case has no contact phone")
		return
	}
	entry.Info("Match confirmed, dispatching alert")
	s.dispatcher.Dispatch(alert.Alert{
		Kind:   alert.KindMatch,
		CaseID: top.CaseID,
		Name:   top.Name,
		Phone:  top.ContactPhone,
		Score:  top.Score,
	})
}
