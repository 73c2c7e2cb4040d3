package api

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khanhnv2901/tlsprofiler/internal/audit"
	"github.com/khanhnv2901/tlsprofiler/internal/probe"
	"github.com/khanhnv2901/tlsprofiler/internal/shared/constants"
)

// Job status values while an audit is in flight. A finished job carries
// the audit outcome status (ok, not_ok, incomplete, unreachable, error).
const (
	JobPending = "pending"
	JobRunning = "running"
)

const defaultMaxJobs = 1000

// Job tracks one asynchronous audit.
type Job struct {
	ID         string        `json:"id"`
	Target     string        `json:"target"`
	Profile    string        `json:"profile"`
	Status     string        `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	ResultID   string        `json:"result_id,omitempty"`
	Error      string        `json:"error,omitempty"`
	Result     *audit.Result `json:"result,omitempty"`
}

// Finished reports whether the audit has completed.
func (j Job) Finished() bool {
	return j.Status != JobPending && j.Status != JobRunning
}

// AuditRequest is the body of POST /api/v1/audits.
type AuditRequest struct {
	Target  string `json:"target"`
	Profile string `json:"profile"`
}

// ResultRecorder persists finished audits.
// *json.ReportRepository implements it.
type ResultRecorder interface {
	Record(ctx context.Context, profileName string, outcome audit.Outcome, duration time.Duration) error
}

// JobManager starts audits in the background and keeps their state in
// memory, evicting the oldest finished jobs beyond maxJobs.
type JobManager struct {
	store     audit.ProfileLoader
	collector audit.Collector
	recorder  ResultRecorder
	logger    *zap.Logger
	timeout   time.Duration

	mu          sync.RWMutex
	jobs        map[string]*Job
	subscribers map[chan Job]struct{}
	maxJobs     int
	wg          sync.WaitGroup
}

// NewJobManager creates a JobManager. recorder may be nil.
func NewJobManager(store audit.ProfileLoader, collector audit.Collector, recorder ResultRecorder, logger *zap.Logger) *JobManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobManager{
		store:       store,
		collector:   collector,
		recorder:    recorder,
		logger:      logger,
		timeout:     constants.DefaultAuditTimeout,
		jobs:        make(map[string]*Job),
		subscribers: make(map[chan Job]struct{}),
		maxJobs:     defaultMaxJobs,
	}
}

// StartJob validates the request and resolves the profile synchronously,
// so target and profile errors reach the caller, then runs the audit in
// the background.
func (m *JobManager) StartJob(ctx context.Context, req AuditRequest) (*Job, error) {
	target, err := probe.ParseTarget(req.Target)
	if err != nil {
		return nil, err
	}

	profileName := req.Profile
	if profileName == "" {
		profileName = constants.DefaultProfile
	}

	a, err := audit.New(ctx, m.store, target, profileName, m.collector)
	if err != nil {
		return nil, err
	}

	job := m.createJob(target.String(), profileName)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(job.ID, profileName, a)
	}()

	return job, nil
}

func (m *JobManager) run(id, profileName string, a *audit.Audit) {
	started := time.Now().UTC()
	m.updateJob(id, func(j *Job) {
		j.Status = JobRunning
		j.StartedAt = &started
	})

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	result, err := a.Run(ctx)
	duration := time.Since(started)

	job := m.GetJob(id)
	if job == nil {
		return
	}
	outcome := audit.Outcome{Target: job.Target, Result: result, Err: err}

	if m.recorder != nil {
		if recErr := m.recorder.Record(ctx, profileName, outcome, duration); recErr != nil {
			m.logger.Warn("Failed to record audit result", zap.String("job_id", id), zap.Error(recErr))
		}
	}

	m.logger.Info("Audit job finished",
		zap.String("job_id", id),
		zap.String("target", outcome.Target),
		zap.String("status", outcome.Status()),
		zap.Duration("duration", duration))

	finished := time.Now().UTC()
	m.updateJob(id, func(j *Job) {
		j.Status = outcome.Status()
		j.FinishedAt = &finished
		j.Result = result
		if result != nil {
			j.ResultID = result.ID.String()
		}
		if err != nil {
			j.Error = err.Error()
		}
	})
}

// Wait blocks until every started audit has finished.
func (m *JobManager) Wait() {
	m.wg.Wait()
}

// WaitContext is Wait bounded by ctx. It returns ctx.Err() when audits are
// still running once ctx is done.
func (m *JobManager) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *JobManager) createJob(target, profileName string) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := &Job{
		ID:        uuid.NewString(),
		Target:    target,
		Profile:   profileName,
		Status:    JobPending,
		CreatedAt: time.Now().UTC(),
	}
	m.jobs[job.ID] = job
	m.evictLocked()
	m.broadcast(*job)

	created := *job
	return &created
}

func (m *JobManager) updateJob(id string, update func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return
	}
	update(job)
	m.broadcast(*job)
}

// GetJob returns a copy of the job, or nil.
func (m *JobManager) GetJob(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if job, ok := m.jobs[id]; ok {
		c := *job
		return &c
	}
	return nil
}

// ListJobs returns up to limit jobs, newest first. limit <= 0 means all.
func (m *JobManager) ListJobs(limit int) []Job {
	m.mu.RLock()
	jobs := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, *job)
	}
	m.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].ID > jobs[j].ID
	})

	if limit > 0 && limit < len(jobs) {
		jobs = jobs[:limit]
	}
	return jobs
}

// Subscribe returns a channel of job updates and a function to cancel the
// subscription. Updates are dropped for subscribers that fall behind.
func (m *JobManager) Subscribe() (chan Job, func()) {
	ch := make(chan Job, 16)
	m.mu.Lock()
	m.subscribers[ch] = struct{}{}
	m.mu.Unlock()
	return ch, func() {
		m.mu.Lock()
		if _, ok := m.subscribers[ch]; ok {
			delete(m.subscribers, ch)
			close(ch)
		}
		m.mu.Unlock()
	}
}

func (m *JobManager) broadcast(job Job) {
	for ch := range m.subscribers {
		select {
		case ch <- job:
		default:
			m.logger.Debug("Dropped job update for slow subscriber", zap.String("job_id", job.ID))
		}
	}
}

// SetMaxJobs configures the maximum number of jobs to retain in memory
func (m *JobManager) SetMaxJobs(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > 0 {
		m.maxJobs = n
	}
}

// SetTimeout bounds each background audit.
func (m *JobManager) SetTimeout(d time.Duration) {
	if d > 0 {
		m.timeout = d
	}
}

// evictLocked drops the oldest finished jobs while over the limit.
// Running jobs are never evicted.
func (m *JobManager) evictLocked() {
	excess := len(m.jobs) - m.maxJobs
	if excess <= 0 {
		return
	}

	finished := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		if job.Finished() {
			finished = append(finished, job)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].CreatedAt.Before(finished[j].CreatedAt)
	})

	for i := 0; i < excess && i < len(finished); i++ {
		delete(m.jobs, finished[i].ID)
	}
}

func (j Job) String() string {
	return fmt.Sprintf("%s %s (%s): %s", j.ID, j.Target, j.Profile, j.Status)
}
