package faceembed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/facewatch/internal/facematch"
	"github.com/kozaktomas/facewatch/internal/logger"
	"github.com/sirupsen/logrus"
)

// Mode selects whether a degraded full-image embedding is acceptable.
type Mode int

const (
	// Strict requires a detected face. Used for live scans.
	Strict Mode = iota
	// AllowDegraded falls back to a non-enforcing call when every detector
	// fails to find a face. Used for registration and re-embedding.
	AllowDegraded
)

func (m Mode) String() string {
	if m == AllowDegraded {
		return "allow_degraded"
	}
	return "strict"
}

// Extraction is a successful embedding and how it was obtained.
type Extraction struct {
	Embedding []float32
	Detector  string
	Degraded  bool
	Profile   string // signature of the profile used
}

// Config holds extractor tuning that does not change the embedding space.
type Config struct {
	Timeout      time.Duration // 0 means no extra bound beyond the caller's context
	MaxImageSize int
}

// Extractor runs the detector fallback chain of one profile.
type Extractor struct {
	backend   Backend
	profile   facematch.Profile
	signature string
	cfg       Config
	log       *logrus.Entry
}

// NewExtractor creates an extractor bound to the shared match profile.
func NewExtractor(backend Backend, profile facematch.Profile, cfg Config, log *logrus.Entry) *Extractor {
	if log == nil {
		log = logger.Discard()
	}
	return &Extractor{
		backend:   backend,
		profile:   profile,
		signature: profile.Signature(),
		cfg:       cfg,
		log:       logger.Component(log, "extractor"),
	}
}

// Signature returns the profile signature stamped on every extraction.
func (e *Extractor) Signature() string {
	return e.signature
}

// Extract normalizes the image and tries each detector in priority order.
func (e *Extractor) Extract(ctx context.Context, img []byte, mode Mode) (Extraction, error) {
	normalized, err := NormalizeImage(img, e.cfg.MaxImageSize)
	if err != nil {
		return Extraction{}, fmt.Errorf("%w: %w: %w", ErrExtraction, ErrInvalidFrame, err)
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	// backendErr keeps the last failure unrelated to face presence.
	var backendErr error
	for _, detector := range e.profile.Detectors {
		faces, err := e.represent(ctx, normalized, detector, true)
		if err == nil {
			return e.result(faces, detector, false)
		}
		if cerr := contextError(ctx); cerr != nil {
			return Extraction{}, cerr
		}
		if !errors.Is(err, ErrNoFaceDetected) {
			backendErr = err
		}
		e.log.WithFields(logrus.Fields{
			logger.FieldDetector: detector,
			"error":              err.Error(),
		}).Debug("Detector attempt failed")
	}

	if mode == AllowDegraded && len(e.profile.Detectors) > 0 {
		detector := e.profile.Detectors[0]
		faces, err := e.represent(ctx, normalized, detector, false)
		if err == nil && len(faces) > 0 {
			e.log.WithField(logger.FieldDetector, detector).Warn("Using degraded full-image embedding")
			return e.result(faces, detector, true)
		}
		if cerr := contextError(ctx); cerr != nil {
			return Extraction{}, cerr
		}
		if err != nil && !errors.Is(err, ErrNoFaceDetected) {
			backendErr = err
		}
	}

	if backendErr == nil {
		return Extraction{}, ErrNoFaceDetected
	}
	if errors.Is(backendErr, ErrExtraction) {
		return Extraction{}, backendErr
	}
	return Extraction{}, fmt.Errorf("%w: %w", ErrExtraction, backendErr)
}

func (e *Extractor) represent(ctx context.Context, img []byte, detector string, enforce bool) ([]Face, error) {
	faces, err := e.backend.Represent(ctx, RepresentRequest{
		Image:            img,
		Model:            e.profile.Model,
		Detector:         detector,
		EnforceDetection: enforce,
		Align:            true,
	})
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, ErrNoFaceDetected
	}
	return faces, nil
}

func (e *Extractor) result(faces []Face, detector string, degraded bool) (Extraction, error) {
	face := largestFace(faces)
	if len(face.Embedding) == 0 {
		return Extraction{}, fmt.Errorf("%w: empty embedding returned by %s", ErrExtraction, detector)
	}
	return Extraction{
		Embedding: face.Embedding,
		Detector:  detector,
		Degraded:  degraded,
		Profile:   e.signature,
	}, nil
}

// largestFace picks the face with the biggest box; the first wins on ties.
func largestFace(faces []Face) Face {
	best := faces[0]
	for _, f := range faces[1:] {
		if f.Area.W*f.Area.H > best.Area.W*best.Area.H {
			best = f
		}
	}
	return best
}

func contextError(ctx context.Context) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	default:
		return fmt.Errorf("%w: %w", ErrExtraction, err)
	}
}
