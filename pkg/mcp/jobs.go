package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of a background job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsActive reports whether the job has not reached a terminal state
func (s JobStatus) IsActive() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// Job represents a background refresh job
type Job struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Status        JobStatus `json:"status"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at,omitempty"`
	NewTagsCount  int       `json:"new_tags_count"`
	BestTagsCount int       `json:"best_tags_count"`
	LastUpdate    time.Time `json:"last_update,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`

	ctx    context.Context
	cancel context.CancelFunc
}

// JobManager tracks background jobs. At most one job per kind is active at a time.
type JobManager struct {
	jobs   map[string]*Job
	mu     sync.RWMutex
	byKind map[string]string // kind -> jobID for active jobs
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:   make(map[string]*Job),
		byKind: make(map[string]string),
	}
}

// CreateJob creates a job of the given kind, or returns the active one.
// created is false when an existing job was returned.
func (m *JobManager) CreateJob(kind string) (job *Job, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingID, ok := m.byKind[kind]; ok {
		if existing := m.jobs[existingID]; existing != nil && existing.Status.IsActive() {
			return existing, false
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	job = &Job{
		ID:        uuid.New().String(),
		Kind:      kind,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	m.jobs[job.ID] = job
	m.byKind[kind] = job.ID
	return job, true
}

// GetJob returns a snapshot of the job, or nil if unknown
func (m *JobManager) GetJob(jobID string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil
	}
	snapshot := *job
	return &snapshot
}

// IsRunning checks whether a job of the given kind is active
func (m *JobManager) IsRunning(kind string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if jobID, ok := m.byKind[kind]; ok {
		job := m.jobs[jobID]
		return job != nil && job.Status.IsActive()
	}
	return false
}

// UpdateStatus moves a job to a new status. Terminal jobs are not changed.
func (m *JobManager) UpdateStatus(jobID string, status JobStatus, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok || !job.Status.IsActive() {
		return
	}
	job.Status = status
	if !status.IsActive() {
		job.CompletedAt = time.Now()
		job.cancel()
		delete(m.byKind, job.Kind)
	}
	if errorMsg != "" {
		job.ErrorMessage = errorMsg
	}
}

// SetResult records what a finished refresh produced
func (m *JobManager) SetResult(jobID string, newTags, bestTags int, lastUpdate time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[jobID]; ok {
		job.NewTagsCount = newTags
		job.BestTagsCount = bestTags
		job.LastUpdate = lastUpdate
	}
}

// CancelJob cancels an active job
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok || !job.Status.IsActive() {
		return false
	}
	job.cancel()
	job.Status = JobStatusCancelled
	job.CompletedAt = time.Now()
	delete(m.byKind, job.Kind)
	return true
}

// CancelAll cancels all active jobs
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if job.Status.IsActive() {
			job.cancel()
			job.Status = JobStatusCancelled
			job.CompletedAt = time.Now()
		}
	}
	m.byKind = make(map[string]string)
}

// ListJobs returns snapshots of all jobs
func (m *JobManager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		snapshot := *job
		jobs = append(jobs, &snapshot)
	}
	return jobs
}

// GetContext returns the context for a job
func (m *JobManager) GetContext(jobID string) context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if job, ok := m.jobs[jobID]; ok {
		return job.ctx
	}
	return context.Background()
}
