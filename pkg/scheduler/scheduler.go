package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/RCXD/Bros-back/pkg/logger"
)

// EventScheduler runs maintenance tasks on cron expressions.
type EventScheduler interface {
	Start()
	Stop()
	AddJob(id, cronExpr string, task func()) error
	RemoveJob(id string) error
	ListJobs() map[string]JobInfo
	IsRunning() bool
}

type JobInfo struct {
	ID       string
	CronExpr string
	LastRun  *time.Time
	NextRun  time.Time
}

type GocronScheduler struct {
	scheduler *gocron.Scheduler
	jobs      map[string]*scheduledJob
	mu        sync.RWMutex
	running   bool
}

type scheduledJob struct {
	cronExpr string
	job      *gocron.Job
	lastRun  *time.Time
}

// NewEventScheduler returns a UTC scheduler that never overlaps runs of the same job.
func NewEventScheduler() EventScheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	return &GocronScheduler{
		scheduler: s,
		jobs:      make(map[string]*scheduledJob),
	}
}

func (s *GocronScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.scheduler.StartAsync()
	s.running = true
}

func (s *GocronScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.scheduler.Stop()
	s.running = false
}

func (s *GocronScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *GocronScheduler) AddJob(id, cronExpr string, task func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		return fmt.Errorf("job with ID %s already exists", id)
	}

	job, err := s.scheduler.Cron(cronExpr).Tag(id).Do(func() {
		now := time.Now()
		s.mu.Lock()
		if sj, ok := s.jobs[id]; ok {
			sj.lastRun = &now
		}
		s.mu.Unlock()

		logger.Debug("Scheduled job running", "job", id)
		task()
	})
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", id, err)
	}

	s.jobs[id] = &scheduledJob{cronExpr: cronExpr, job: job}
	logger.Info("Scheduled job added", "job", id, "cron", cronExpr, "next_run", job.NextRun())
	return nil
}

func (s *GocronScheduler) RemoveJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sj, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job with ID %s not found", id)
	}
	s.scheduler.RemoveByReference(sj.job)
	delete(s.jobs, id)
	return nil
}

// ListJobs returns copies, safe to read without holding the scheduler lock.
func (s *GocronScheduler) ListJobs() map[string]JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]JobInfo, len(s.jobs))
	for id, sj := range s.jobs {
		info := JobInfo{ID: id, CronExpr: sj.cronExpr, NextRun: sj.job.NextRun()}
		if sj.lastRun != nil {
			t := *sj.lastRun
			info.LastRun = &t
		}
		out[id] = info
	}
	return out
}

// ValidateCronExpression checks a cron expression without scheduling anything.
func ValidateCronExpression(cronExpr string) error {
	_, err := gocron.NewScheduler(time.UTC).Cron(cronExpr).Do(func() {})
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}
