package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"codexvault/internal/store"
	"codexvault/internal/validate"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

var (
	ErrQueueFull   = errors.New("validation queue is full")
	ErrJobNotFound = errors.New("job not found")
)

// Job tracks one validation run for a module. Done and Total report
// entity-level progress while the job is in progress.
type Job struct {
	ID          string     `json:"id"`
	ModuleID    string     `json:"moduleId"`
	Status      JobStatus  `json:"status"`
	Priority    bool       `json:"priority,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Done        int        `json:"done"`
	Total       int        `json:"total"`
	Errors      int        `json:"errors"`
	Issues      int        `json:"issues"`
	Error       string     `json:"error,omitempty"`
}

func (j *Job) terminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed || j.Status == JobCancelled
}

// Revalidator runs a full validation pass over one module. Satisfied by
// validate.Revalidator.
type Revalidator interface {
	Revalidate(ctx context.Context, moduleID string, progress func(done, total int)) (*validate.Report, error)
}

type Config struct {
	MaxConcurrentJobs   int
	MaxPendingJobs      int
	Interval            time.Duration
	Retention           time.Duration
	AutoRevalidate      bool
	AutoRevalidateAfter time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrentJobs:   3,
		MaxPendingJobs:      100,
		Interval:            5 * time.Minute,
		Retention:           time.Hour,
		AutoRevalidate:      true,
		AutoRevalidateAfter: 24 * time.Hour,
	}
}

// Scheduler runs module validations in the background with a hard cap on
// concurrent jobs. At most one live job exists per module: scheduling a
// module that already has a pending or running job returns that job.
type Scheduler struct {
	db  store.Store
	rv  Revalidator
	log *zap.Logger
	cfg Config

	mu       sync.Mutex
	jobs     map[string]*Job
	queue    []string
	active   map[string]struct{}
	byModule map[string]string
	cancels  map[string]context.CancelFunc

	rootCtx    context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup
	loopDone   chan struct{}
	started    bool
}

func New(db store.Store, rv Revalidator, cfg Config, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 3
	}
	if cfg.MaxPendingJobs <= 0 {
		cfg.MaxPendingJobs = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		db:         db,
		rv:         rv,
		log:        log,
		cfg:        cfg,
		jobs:       map[string]*Job{},
		active:     map[string]struct{}{},
		byModule:   map[string]string{},
		cancels:    map[string]context.CancelFunc{},
		rootCtx:    ctx,
		rootCancel: cancel,
	}
}

// ScheduleValidation enqueues a validation job for moduleID. Priority
// jobs go to the front of the queue but never exceed the concurrency
// cap. Returns the existing job when one is already pending or running
// for the module.
func (s *Scheduler) ScheduleValidation(ctx context.Context, moduleID string, priority bool) (*Job, error) {
	module, err := s.db.GetModule(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("scheduling validation for %s: %w", moduleID, err)
	}
	if module == nil {
		return nil, fmt.Errorf("scheduling validation for %s: module not found", moduleID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if jobID, ok := s.byModule[moduleID]; ok {
		return s.jobs[jobID].copy(), nil
	}
	if len(s.queue) >= s.cfg.MaxPendingJobs {
		return nil, fmt.Errorf("scheduling validation for %s: %w", moduleID, ErrQueueFull)
	}

	job := &Job{
		ID:        uuid.NewString(),
		ModuleID:  moduleID,
		Status:    JobPending,
		Priority:  priority,
		CreatedAt: time.Now().UTC(),
	}
	s.jobs[job.ID] = job
	s.byModule[moduleID] = job.ID
	if priority {
		s.queue = append([]string{job.ID}, s.queue...)
	} else {
		s.queue = append(s.queue, job.ID)
	}

	s.log.Debug("validation scheduled",
		zap.String("job", job.ID),
		zap.String("module", moduleID),
		zap.Bool("priority", priority),
		zap.Int("queued", len(s.queue)))

	s.dispatchLocked()
	return job.copy(), nil
}

// BatchValidate schedules every listed module, coalescing duplicates.
// Modules that cannot be scheduled are logged and skipped so the rest
// of the batch still runs. A full queue stops the batch and reports
// how far it got.
func (s *Scheduler) BatchValidate(ctx context.Context, moduleIDs []string) ([]*Job, error) {
	jobs := make([]*Job, 0, len(moduleIDs))
	for _, moduleID := range moduleIDs {
		job, err := s.ScheduleValidation(ctx, moduleID, false)
		if errors.Is(err, ErrQueueFull) {
			return jobs, err
		}
		if err != nil {
			s.log.Warn("skipping module in batch validation",
				zap.String("module", moduleID),
				zap.Error(err))
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// ValidateStaleModules schedules a job for every active module whose
// last validation is older than the configured threshold or that has
// never been validated. Returns the number of jobs newly scheduled.
func (s *Scheduler) ValidateStaleModules(ctx context.Context) (int, error) {
	after := s.cfg.AutoRevalidateAfter
	if after <= 0 {
		after = 24 * time.Hour
	}
	cutoff := time.Now().UTC().Add(-after)

	stale, err := s.db.ListStaleModules(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("listing stale modules: %w", err)
	}

	scheduled := 0
	for _, module := range stale {
		s.mu.Lock()
		_, exists := s.byModule[module.ModuleID]
		s.mu.Unlock()
		if exists {
			continue
		}
		if _, err := s.ScheduleValidation(ctx, module.ModuleID, false); err != nil {
			if errors.Is(err, ErrQueueFull) {
				s.log.Warn("validation queue full, deferring stale modules",
					zap.Int("scheduled", scheduled),
					zap.Int("remaining", len(stale)-scheduled))
				return scheduled, nil
			}
			return scheduled, err
		}
		scheduled++
	}
	return scheduled, nil
}

// CancelValidation cancels a pending or running job. Finished jobs
// cannot be cancelled.
func (s *Scheduler) CancelValidation(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("cancelling job %s: %w", jobID, ErrJobNotFound)
	}

	switch job.Status {
	case JobPending:
		now := time.Now().UTC()
		job.Status = JobCancelled
		job.CompletedAt = &now
		s.removeFromQueueLocked(jobID)
		delete(s.byModule, job.ModuleID)
		s.log.Info("pending job cancelled", zap.String("job", jobID), zap.String("module", job.ModuleID))
		return nil
	case JobInProgress:
		if cancel, ok := s.cancels[jobID]; ok {
			cancel()
		}
		return nil
	default:
		return fmt.Errorf("cancelling job %s: job already %s", jobID, job.Status)
	}
}

func (s *Scheduler) GetJobStatus(jobID string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrJobNotFound)
	}
	return job.copy(), nil
}

func (s *Scheduler) GetModuleJobs(moduleID string) []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var jobs []*Job
	for _, job := range s.jobs {
		if job.ModuleID == moduleID {
			jobs = append(jobs, job.copy())
		}
	}
	sortJobs(jobs)
	return jobs
}

func (s *Scheduler) GetActiveJobs() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var jobs []*Job
	for _, job := range s.jobs {
		if !job.terminal() {
			jobs = append(jobs, job.copy())
		}
	}
	sortJobs(jobs)
	return jobs
}

// CleanupJobs drops finished jobs whose completion is older than the
// retention window and returns how many were removed.
func (s *Scheduler) CleanupJobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	horizon := time.Now().UTC().Add(-s.cfg.Retention)
	removed := 0
	for id, job := range s.jobs {
		if job.terminal() && job.CompletedAt != nil && job.CompletedAt.Before(horizon) {
			delete(s.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		s.log.Debug("cleaned up finished jobs", zap.Int("removed", removed))
	}
	return removed
}

// Start launches the periodic pass that schedules stale modules and
// prunes finished jobs. The first pass runs immediately.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.loopDone = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.loopDone)
		s.pass()
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.rootCtx.Done():
				return
			case <-ticker.C:
				s.pass()
			}
		}
	}()
}

func (s *Scheduler) pass() {
	s.CleanupJobs()
	if !s.cfg.AutoRevalidate {
		return
	}
	scheduled, err := s.ValidateStaleModules(s.rootCtx)
	if err != nil {
		s.log.Error("stale module pass failed", zap.Error(err))
		return
	}
	if scheduled > 0 {
		s.log.Info("scheduled stale modules for validation", zap.Int("count", scheduled))
	}
}

// Stop cancels running jobs and waits for workers and the periodic loop
// to exit.
func (s *Scheduler) Stop() {
	s.rootCancel()
	s.wg.Wait()
	s.mu.Lock()
	loopDone := s.loopDone
	s.mu.Unlock()
	if loopDone != nil {
		<-loopDone
	}
}

// dispatchLocked starts queued jobs while slots remain under the cap.
// Callers must hold mu.
func (s *Scheduler) dispatchLocked() {
	for len(s.active) < s.cfg.MaxConcurrentJobs && len(s.queue) > 0 {
		jobID := s.queue[0]
		s.queue = s.queue[1:]

		job, ok := s.jobs[jobID]
		if !ok || job.Status != JobPending {
			continue
		}

		now := time.Now().UTC()
		job.Status = JobInProgress
		job.StartedAt = &now
		s.active[jobID] = struct{}{}

		jobCtx, cancel := context.WithCancel(s.rootCtx)
		s.cancels[jobID] = cancel

		s.wg.Add(1)
		go s.run(jobCtx, cancel, jobID, job.ModuleID)
	}
}

func (s *Scheduler) run(ctx context.Context, cancel context.CancelFunc, jobID, moduleID string) {
	defer s.wg.Done()
	defer cancel()

	report, err := s.rv.Revalidate(ctx, moduleID, func(done, total int) {
		s.mu.Lock()
		if job, ok := s.jobs[jobID]; ok {
			job.Done = done
			job.Total = total
		}
		s.mu.Unlock()
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if job, ok := s.jobs[jobID]; ok {
		job.CompletedAt = &now
		switch {
		case ctx.Err() != nil:
			job.Status = JobCancelled
			s.log.Info("validation job cancelled", zap.String("job", jobID), zap.String("module", moduleID))
		case err != nil:
			job.Status = JobFailed
			job.Error = err.Error()
			s.log.Error("validation job failed",
				zap.String("job", jobID),
				zap.String("module", moduleID),
				zap.Error(err))
		default:
			job.Status = JobCompleted
			job.Errors = report.ErrorCount()
			job.Issues = len(report.Issues)
			s.log.Info("validation job completed",
				zap.String("job", jobID),
				zap.String("module", moduleID),
				zap.Int("entities", report.EntityCount),
				zap.Int("issues", len(report.Issues)))
		}
	}

	delete(s.active, jobID)
	delete(s.cancels, jobID)
	delete(s.byModule, moduleID)
	s.dispatchLocked()
}

func (s *Scheduler) removeFromQueueLocked(jobID string) {
	for i, id := range s.queue {
		if id == jobID {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

func (j *Job) copy() *Job {
	dup := *j
	return &dup
}

func sortJobs(jobs []*Job) {
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}
