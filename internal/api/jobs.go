package api

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/khanhnv2901/webharden/internal/checker"
	consts "github.com/khanhnv2901/webharden/internal/shared/constants"
)

// Job statuses.
const (
	JobPending = "pending"
	JobRunning = "running"
	JobDone    = "done"
)

// Job is one audit requested through the API.
type Job struct {
	ID         string               `json:"id"`
	URL        string               `json:"url"`
	Status     string               `json:"status"`
	CreatedAt  time.Time            `json:"created_at"`
	StartedAt  *time.Time           `json:"started_at,omitempty"`
	FinishedAt *time.Time           `json:"finished_at,omitempty"`
	Result     *checker.AuditResult `json:"result,omitempty"`
}

// JobRequest is the body of POST /api/v1/audits.
type JobRequest struct {
	URL         string `json:"url"`
	TimeoutSecs int    `json:"timeout_secs"`
}

// JobManager keeps the most recent audits in memory and fans out updates to
// stream subscribers.
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	subscribers map[chan Job]struct{}
	maxJobs     int
	now         func() time.Time
}

func NewJobManager(maxJobs int) *JobManager {
	if maxJobs <= 0 {
		maxJobs = consts.DefaultStoredAudits
	}
	return &JobManager{
		jobs:        make(map[string]*Job),
		subscribers: make(map[chan Job]struct{}),
		maxJobs:     maxJobs,
		now:         time.Now,
	}
}

// CreateJob registers a pending audit for url.
func (m *JobManager) CreateJob(url string) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := &Job{
		ID:        uuid.NewString(),
		URL:       url,
		Status:    JobPending,
		CreatedAt: m.now().UTC(),
	}
	m.jobs[job.ID] = job
	m.evictLocked()
	m.broadcast(*job)

	copied := *job
	return &copied
}

// Start marks a job as running.
func (m *JobManager) Start(id string) *Job {
	return m.UpdateJob(id, func(j *Job) {
		now := m.now().UTC()
		j.Status = JobRunning
		j.StartedAt = &now
	})
}

// Finish stores the audit result and marks the job done.
func (m *JobManager) Finish(id string, result checker.AuditResult) *Job {
	return m.UpdateJob(id, func(j *Job) {
		now := m.now().UTC()
		j.Status = JobDone
		j.FinishedAt = &now
		j.Result = &result
	})
}

func (m *JobManager) UpdateJob(id string, update func(*Job)) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	update(job)
	m.broadcast(*job)
	copied := *job
	return &copied
}

func (m *JobManager) GetJob(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if job, ok := m.jobs[id]; ok {
		copied := *job
		return &copied
	}
	return nil
}

// ListJobs returns up to limit jobs, newest first.
func (m *JobManager) ListJobs(limit int) []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, *job)
	}
	sortNewestFirst(jobs)

	if limit > 0 && limit < len(jobs) {
		jobs = jobs[:limit]
	}
	return jobs
}

func (m *JobManager) Subscribe() (chan Job, func()) {
	ch := make(chan Job, 10)
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

// broadcast never blocks; a full subscriber buffer drops the update.
func (m *JobManager) broadcast(job Job) {
	for ch := range m.subscribers {
		select {
		case ch <- job:
		default:
		}
	}
}

// evictLocked drops the oldest finished jobs once the store is over capacity.
// Pending and running jobs are never evicted.
func (m *JobManager) evictLocked() {
	if len(m.jobs) <= m.maxJobs {
		return
	}

	finished := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		if job.Status == JobDone {
			finished = append(finished, *job)
		}
	}
	sortNewestFirst(finished)

	for i := len(finished) - 1; i >= 0 && len(m.jobs) > m.maxJobs; i-- {
		delete(m.jobs, finished[i].ID)
	}
}

func sortNewestFirst(jobs []Job) {
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID > jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}
