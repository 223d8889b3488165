package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kozaktomas/facewatch/internal/logger"
	"github.com/kozaktomas/facewatch/internal/worker"
	"github.com/sirupsen/logrus"
)

// Reembedder recomputes stored embeddings in bulk.
type Reembedder interface {
	Reembed(ctx context.Context, opts worker.ReembedOptions) (worker.ReembedSummary, error)
}

// ReembedHandler runs re-embedding jobs in the background and streams their
// progress to the console.
type ReembedHandler struct {
	reembedder Reembedder
	jobs       *JobManager
	stats      *StatsHandler
	log        *logrus.Entry
}

// NewReembedHandler creates a new re-embedding handler
func NewReembedHandler(reembedder Reembedder, stats *StatsHandler, log *logrus.Entry) *ReembedHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &ReembedHandler{
		reembedder: reembedder,
		jobs:       NewJobManager(),
		stats:      stats,
		log:        log,
	}
}

// Start launches a job. Only one job may be active at a time.
func (h *ReembedHandler) Start(w http.ResponseWriter, r *http.Request) {
	var opts ReembedJobOptions
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
	}
	if opts.Limit < 0 || opts.Concurrency < 0 {
		respondError(w, http.StatusBadRequest, "limit and concurrency must not be negative")
		return
	}

	// The request context ends with this handler, the job must outlive it.
	ctx, cancel := context.WithCancel(context.Background())
	job := h.jobs.CreateJob(uuid.New().String(), opts, cancel)
	if job == nil {
		cancel()
		respondError(w, http.StatusConflict, "a re-embedding job is already running")
		return
	}

	go h.run(ctx, job)

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": string(JobStatusPending),
	})
}

// List returns all known jobs.
func (h *ReembedHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobs.ListJobs()
	out := make([]ReembedJob, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Snapshot())
	}
	respondJSON(w, http.StatusOK, out)
}

// Status returns the state of one job.
func (h *ReembedHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.jobs.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Events streams job progress as server-sent events.
func (h *ReembedHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			if job := h.jobs.GetJob(id); job != nil {
				return job
			}
			return nil
		},
		func(j SSEJob) any {
			return j.(*ReembedJob).Snapshot()
		},
	)
}

// Cancel stops a running job.
func (h *ReembedHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job := h.jobs.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	if isJobTerminal(job.GetStatus()) {
		respondError(w, http.StatusConflict, "job already finished")
		return
	}
	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]string{"status": string(JobStatusCancelled)})
}

func (h *ReembedHandler) run(ctx context.Context, job *ReembedJob) {
	defer job.cancel()
	log := h.log.WithField("job_id", job.ID)
	job.update(func(j *ReembedJob) { j.Status = JobStatusRunning })
	job.SendEvent(JobEvent{Type: "started"})

	summary, err := h.reembedder.Reembed(ctx, worker.ReembedOptions{
		OnlyMissingOrStale: !job.Options.All,
		Concurrency:        job.Options.Concurrency,
		Limit:              job.Options.Limit,
		Progress: func(p worker.ReembedProgress) {
			job.update(func(j *ReembedJob) {
				j.Total = p.Total
				j.Processed = p.Done
				if p.Err != nil {
					j.Failed++
				}
			})
			event := JobEvent{Type: "progress", Data: map[string]any{
				"case_id": p.CaseID, "done": p.Done, "total": p.Total,
			}}
			if p.Err != nil {
				event.Message = p.Err.Error()
			}
			job.SendEvent(event)
		},
	})

	result := &ReembedJobResult{
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
		Skipped:   summary.Skipped,
	}
	if len(summary.Failures) > 0 {
		result.Failures = make(map[int64]string, len(summary.Failures))
		for id, ferr := range summary.Failures {
			result.Failures[id] = ferr.Error()
		}
	}

	now := time.Now()
	final := JobEvent{Type: "completed", Data: result}
	job.update(func(j *ReembedJob) {
		j.CompletedAt = &now
		j.Result = result
		switch {
		case j.Status == JobStatusCancelled || errors.Is(err, context.Canceled):
			j.Status = JobStatusCancelled
			final.Type = "cancelled"
		case err != nil:
			j.Status = JobStatusFailed
			j.Error = err.Error()
			final = JobEvent{Type: "job_error", Message: err.Error()}
		default:
			j.Status = JobStatusCompleted
		}
	})
	job.SendEvent(final)
	h.stats.InvalidateCache()

	log.WithFields(logrus.Fields{
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
	}).Info("Re-embedding job finished")
}
