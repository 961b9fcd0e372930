package web

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"sync"
	"time"

	"tubetag/internal/config"
)

// JobStatus represents the current status of a job
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Done reports whether the status is final.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// TrackResult is the outcome for one video of a job.
type TrackResult struct {
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	Source string `json:"source,omitempty"` // fingerprint, text or raw
	Path   string `json:"path,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Job represents an identification job
type Job struct {
	ID          string
	URL         string
	Config      config.Config
	Status      JobStatus
	Progress    int
	Total       int
	Results     []TrackResult
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Cancel      context.CancelFunc
}

// JobResponse is the JSON view of a job. It is a copy, safe to use after
// the job changes.
type JobResponse struct {
	ID          string        `json:"id"`
	URL         string        `json:"url"`
	Status      JobStatus     `json:"status"`
	Progress    int           `json:"progress"`
	Total       int           `json:"total"`
	Results     []TrackResult `json:"results"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   string        `json:"created_at"`
	StartedAt   *string       `json:"started_at,omitempty"`
	CompletedAt *string       `json:"completed_at,omitempty"`
}

const timeLayout = "2006-01-02 15:04:05"

func (j *Job) snapshot() *JobResponse {
	resp := &JobResponse{
		ID:        j.ID,
		URL:       j.URL,
		Status:    j.Status,
		Progress:  j.Progress,
		Total:     j.Total,
		Results:   append([]TrackResult{}, j.Results...),
		Error:     j.Error,
		CreatedAt: j.CreatedAt.Format(timeLayout),
	}

	if j.StartedAt != nil {
		started := j.StartedAt.Format(timeLayout)
		resp.StartedAt = &started
	}

	if j.CompletedAt != nil {
		completed := j.CompletedAt.Format(timeLayout)
		resp.CompletedAt = &completed
	}

	return resp
}

// JobManager manages identification jobs
type JobManager struct {
	jobs      map[string]*Job
	mu        sync.RWMutex
	listeners map[string][]chan *JobResponse
}

const jobRetention = 1 * time.Hour

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:      make(map[string]*Job),
		listeners: make(map[string][]chan *JobResponse),
	}
}

// StartCleanup starts a background goroutine that removes old finished jobs.
// Stops when ctx is cancelled.
func (jm *JobManager) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				jm.cleanup()
			}
		}
	}()
}

func (jm *JobManager) cleanup() {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	cutoff := time.Now().Add(-jobRetention)
	for id, job := range jm.jobs {
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(jm.jobs, id)
			delete(jm.listeners, id)
		}
	}
}

// CreateJob creates a new job
func (jm *JobManager) CreateJob(url string, cfg config.Config) *JobResponse {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        generateJobID(),
		URL:       url,
		Config:    cfg,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}

	jm.jobs[job.ID] = job
	return job.snapshot()
}

// GetJob returns a snapshot of a job
func (jm *JobManager) GetJob(id string) (*JobResponse, error) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, ok := jm.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", id)
	}
	return job.snapshot(), nil
}

// jobConfig returns the configuration a job runs with.
func (jm *JobManager) jobConfig(id string) (config.Config, error) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, ok := jm.jobs[id]
	if !ok {
		return config.Config{}, fmt.Errorf("job not found: %s", id)
	}
	return job.Config, nil
}

// ListJobs returns snapshots of all jobs, newest first
func (jm *JobManager) ListJobs() []*JobResponse {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
	})

	out := make([]*JobResponse, len(jobs))
	for i, job := range jobs {
		out[i] = job.snapshot()
	}
	return out
}

// CancelJob stops a pending or running job. Finished jobs are left as they
// are.
func (jm *JobManager) CancelJob(id string) (*JobResponse, error) {
	var cancel context.CancelFunc
	err := jm.UpdateJob(id, func(j *Job) {
		if j.Status.Done() {
			return
		}
		cancel = j.Cancel
		j.Status = StatusCancelled
	})
	if err != nil {
		return nil, err
	}
	if cancel != nil {
		cancel()
	}
	return jm.GetJob(id)
}

// UpdateJob updates job status
func (jm *JobManager) UpdateJob(id string, fn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, ok := jm.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}

	oldStatus := job.Status
	fn(job)

	// Update timestamps based on status changes
	if oldStatus != job.Status {
		switch job.Status {
		case StatusRunning:
			if job.StartedAt == nil {
				now := time.Now()
				job.StartedAt = &now
			}
		case StatusCompleted, StatusFailed, StatusCancelled:
			if job.CompletedAt == nil {
				now := time.Now()
				job.CompletedAt = &now
			}
		}
	}

	jm.notifyListeners(id, job.snapshot())
	return nil
}

// Subscribe subscribes to job updates
func (jm *JobManager) Subscribe(jobID string) <-chan *JobResponse {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	ch := make(chan *JobResponse, 10)
	jm.listeners[jobID] = append(jm.listeners[jobID], ch)
	return ch
}

// Unsubscribe removes a listener
func (jm *JobManager) Unsubscribe(jobID string, ch <-chan *JobResponse) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	listeners := jm.listeners[jobID]
	for i, listener := range listeners {
		if listener == ch {
			jm.listeners[jobID] = append(listeners[:i], listeners[i+1:]...)
			close(listener)
			break
		}
	}
}

// notifyListeners sends updates to all listeners. A listener that is not
// keeping up misses intermediate snapshots, never the final one.
func (jm *JobManager) notifyListeners(jobID string, snap *JobResponse) {
	for _, ch := range jm.listeners[jobID] {
		select {
		case ch <- snap:
		default:
			if snap.Status.Done() {
				// drop the oldest pending snapshot to make room
				select {
				case <-ch:
				default:
				}
				select {
				case ch <- snap:
				default:
				}
			}
		}
	}
}

func generateJobID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("job_%x", b)
}
