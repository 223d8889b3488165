// Package worker computes reference embeddings for registered cases in the
// background.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/faceembed"
	"github.com/kozaktomas/facewatch/internal/logger"
	"github.com/kozaktomas/facewatch/internal/metrics"
	"github.com/kozaktomas/facewatch/internal/storage"
	"github.com/sirupsen/logrus"
)

var (
	// ErrQueueFull is returned by Submit when the queue has no free slot.
	ErrQueueFull = errors.New("embedding queue is full")
	// ErrPoolStopped is returned by Submit after Stop was called.
	ErrPoolStopped = errors.New("embedding pool is stopped")
)

// Job asks for the reference embedding of one case.
type Job struct {
	CaseID   int64
	ImageRef string
}

// Extractor is the part of faceembed.Extractor the worker needs.
type Extractor interface {
	Extract(ctx context.Context, img []byte, mode faceembed.Mode) (faceembed.Extraction, error)
	Signature() string
}

// Config sizes the pool.
type Config struct {
	Concurrency int
	QueueSize   int
	JobTimeout  time.Duration // per job bound, 0 means none
	// Mode is passed to the extractor. AllowDegraded stores a full-image
	// embedding when no detector finds a face.
	Mode faceembed.Mode
}

// Pool runs embedding jobs on a fixed number of goroutines.
type Pool struct {
	cases     database.CaseWriter
	images    storage.ImageStore
	extractor Extractor
	log       *logrus.Entry
	metrics   *metrics.Metrics
	timeout   time.Duration
	mode      faceembed.Mode

	queue chan Job

	mu      sync.RWMutex
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool starts the workers.
func NewPool(cfg Config, cases database.CaseWriter, images storage.ImageStore, extractor Extractor, log *logrus.Entry, m *metrics.Metrics) *Pool {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if log == nil {
		log = logger.Discard()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cases:     cases,
		images:    images,
		extractor: extractor,
		log:       logger.Component(log, "worker"),
		metrics:   m,
		timeout:   cfg.JobTimeout,
		mode:      cfg.Mode,
		queue:     make(chan Job, cfg.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}

	for range cfg.Concurrency {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Submit enqueues a job without blocking.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.queue <- job:
		p.metrics.SetQueueDepth(len(p.queue))
		return nil
	default:
		p.metrics.IncWorkerJob("rejected")
		return ErrQueueFull
	}
}

// Stop stops accepting jobs and waits for queued jobs to finish. When ctx
// expires first, running jobs are cancelled and ctx.Err() is returned.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *Pool) run() {
	defer p.wg.Done()
	for job := range p.queue {
		p.metrics.SetQueueDepth(len(p.queue))
		if err := p.process(p.ctx, job); err != nil {
			p.metrics.IncWorkerJob("error")
			p.log.WithError(err).WithField(logger.FieldCaseID, job.CaseID).Error("Embedding job failed")
			continue
		}
		p.metrics.IncWorkerJob("ok")
	}
}

func (p *Pool) process(ctx context.Context, job Job) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	_, err := embedCase(ctx, p.cases, p.images, p.extractor, p.mode, job.CaseID, job.ImageRef, p.log, p.metrics)
	return err
}

// embedCase loads the reference photo, extracts its embedding and writes it.
func embedCase(ctx context.Context, cases database.CaseWriter, images storage.ImageStore, extractor Extractor, mode faceembed.Mode, caseID int64, imageRef string, log *logrus.Entry, m *metrics.Metrics) (faceembed.Extraction, error) {
	start := time.Now()

	data, err := images.Get(ctx, imageRef)
	if err != nil {
		return faceembed.Extraction{}, fmt.Errorf("load image %q: %w", imageRef, err)
	}

	extractStart := time.Now()
	ext, err := extractor.Extract(ctx, data, mode)
	m.ObserveExtraction(mode.String(), faceembed.Outcome(ext, err), time.Since(extractStart))
	if err != nil {
		return faceembed.Extraction{}, fmt.Errorf("extract embedding: %w", err)
	}

	rows, err := cases.UpdateEmbedding(ctx, caseID, ext.Embedding, ext.Profile)
	if err != nil {
		return faceembed.Extraction{}, fmt.Errorf("store embedding: %w", err)
	}
	if rows == 0 {
		return faceembed.Extraction{}, fmt.Errorf("store embedding: %w", database.ErrCaseNotFound)
	}

	log.WithFields(logrus.Fields{
		logger.FieldCaseID:     caseID,
		logger.FieldDetector:   ext.Detector,
		"degraded":             ext.Degraded,
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info("Stored case embedding")
	return ext, nil
}
