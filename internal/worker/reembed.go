package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kozaktomas/facewatch/internal/constants"
	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/faceembed"
	"github.com/kozaktomas/facewatch/internal/logger"
	"github.com/kozaktomas/facewatch/internal/metrics"
	"github.com/kozaktomas/facewatch/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ReembedOptions controls a batch re-embedding run.
type ReembedOptions struct {
	// OnlyMissingOrStale skips cases whose embedding already matches the
	// active profile signature.
	OnlyMissingOrStale bool
	Concurrency        int
	Limit              int // 0 means all
	// Progress is called after every processed case. It may be called
	// from several goroutines at once.
	Progress func(ReembedProgress)
}

// ReembedProgress reports one processed case.
type ReembedProgress struct {
	CaseID int64
	Err    error
	Done   int
	Total  int
}

// ReembedSummary is the outcome of a batch run.
type ReembedSummary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Failures  map[int64]error
}

// Reembedder recomputes embeddings for stored cases.
type Reembedder struct {
	cases     database.CaseWriter
	images    storage.ImageStore
	extractor Extractor
	mode      faceembed.Mode
	log       *logrus.Entry
	metrics   *metrics.Metrics
}

// NewReembedder creates a reembedder sharing the live extractor. mode should
// match the one the registration pool uses.
func NewReembedder(cases database.CaseWriter, images storage.ImageStore, extractor Extractor, mode faceembed.Mode, log *logrus.Entry, m *metrics.Metrics) *Reembedder {
	if log == nil {
		log = logger.Discard()
	}
	return &Reembedder{
		cases:     cases,
		images:    images,
		extractor: extractor,
		mode:      mode,
		log:       logger.Component(log, "reembed"),
		metrics:   m,
	}
}

// Reembed processes every selected case with bounded concurrency. Per-case
// failures are collected, not returned; only a failure to list cases or a
// cancelled context aborts the run.
func (r *Reembedder) Reembed(ctx context.Context, opts ReembedOptions) (ReembedSummary, error) {
	all, err := r.cases.ListCases(ctx, database.ListOptions{})
	if err != nil {
		return ReembedSummary{}, fmt.Errorf("list cases: %w", err)
	}

	signature := r.extractor.Signature()
	var selected []database.Case
	summary := ReembedSummary{Failures: make(map[int64]error)}
	for _, c := range all {
		if opts.OnlyMissingOrStale && c.HasEmbedding() && c.EmbeddingProfile == signature {
			summary.Skipped++
			continue
		}
		if c.ImageRef == "" {
			summary.Skipped++
			continue
		}
		selected = append(selected, c)
	}
	if opts.Limit > 0 && len(selected) > opts.Limit {
		summary.Skipped += len(selected) - opts.Limit
		selected = selected[:opts.Limit]
	}
	summary.Total = len(selected)

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = constants.DefaultConcurrency
	}

	r.log.WithFields(logrus.Fields{
		logger.FieldCount: len(selected),
		"skipped":         summary.Skipped,
		"concurrency":     concurrency,
	}).Info("Re-embedding cases")

	var (
		mu        sync.Mutex
		processed atomic.Int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, c := range selected {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			_, err := embedCase(gctx, r.cases, r.images, r.extractor, r.mode, c.ID, c.ImageRef, r.log, r.metrics)

			mu.Lock()
			if err != nil {
				summary.Failed++
				summary.Failures[c.ID] = err
			} else {
				summary.Succeeded++
			}
			mu.Unlock()

			if err != nil {
				r.metrics.IncWorkerJob("error")
				r.log.WithError(err).WithField(logger.FieldCaseID, c.ID).Warn("Re-embedding failed")
			} else {
				r.metrics.IncWorkerJob("ok")
			}

			done := int(processed.Add(1))
			if opts.Progress != nil {
				opts.Progress(ReembedProgress{CaseID: c.ID, Err: err, Done: done, Total: len(selected)})
			}
			// per-case errors never cancel the batch
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}
