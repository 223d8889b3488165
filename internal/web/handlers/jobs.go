package handlers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/facewatch/internal/constants"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ReembedJob is one background re-embedding run.
type ReembedJob struct {
	EventBroadcaster

	ID          string            `json:"id"`
	Status      JobStatus         `json:"status"`
	Total       int               `json:"total"`
	Processed   int               `json:"processed"`
	Failed      int               `json:"failed"`
	Error       string            `json:"error,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Options     ReembedJobOptions `json:"options"`
	Result      *ReembedJobResult `json:"result,omitempty"`
}

// ReembedJobOptions are the request parameters of a run.
type ReembedJobOptions struct {
	All         bool `json:"all"`
	Limit       int  `json:"limit"`
	Concurrency int  `json:"concurrency"`
}

// ReembedJobResult summarizes a finished run.
type ReembedJobResult struct {
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped"`
	Failures  map[int64]string `json:"failures,omitempty"`
}

// GetStatus returns the current job status (implements SSEJob).
func (j *ReembedJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// Snapshot returns a copy of the job fields that is safe to encode while the
// job keeps running.
func (j *ReembedJob) Snapshot() ReembedJob {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return ReembedJob{
		ID:          j.ID,
		Status:      j.Status,
		Total:       j.Total,
		Processed:   j.Processed,
		Failed:      j.Failed,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Options:     j.Options,
		Result:      j.Result,
	}
}

// update mutates the job under its lock.
func (j *ReembedJob) update(fn func(j *ReembedJob)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn(j)
}

// Cancel cancels the job.
func (j *ReembedJob) Cancel() {
	j.update(func(j *ReembedJob) {
		if !isJobTerminal(j.Status) {
			j.Status = JobStatusCancelled
		}
	})
	j.EventBroadcaster.Cancel()
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	if b.cancel != nil {
		b.cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager manages async jobs.
type JobManager struct {
	jobs map[string]*ReembedJob
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*ReembedJob),
	}
}

// CreateJob registers a new pending job. It returns nil when another job is
// still active, since two runs would race on the same rows.
func (m *JobManager) CreateJob(id string, options ReembedJobOptions, cancel context.CancelFunc) *ReembedJob {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range m.jobs {
		if !isJobTerminal(j.GetStatus()) {
			return nil
		}
	}

	job := &ReembedJob{
		ID:        id,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
		Options:   options,
	}
	job.cancel = cancel
	m.jobs[id] = job
	return job
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *ReembedJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// ListJobs returns all jobs, newest first.
func (m *JobManager) ListJobs() []*ReembedJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*ReembedJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].StartedAt.After(jobs[k].StartedAt) })
	return jobs
}
