// Package jobs runs the collector's periodic background work.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one unit of background work.
type Job interface {
	Run() error
}

// Scheduler is responsible for running background jobs
type Scheduler struct {
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	enabled   bool
	isRunning bool

	// Mutex to prevent concurrent job executions
	processingMutex sync.Mutex
	isProcessing    bool

	jobs    []scheduledJob
	tickers []*time.Ticker
	wg      sync.WaitGroup
}

type scheduledJob struct {
	name     string
	interval time.Duration
	job      Job
}

// NewScheduler returns a stopped scheduler with no jobs.
func NewScheduler(logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		enabled: true,
	}
}

// Add registers job to run every interval once the scheduler starts.
func (s *Scheduler) Add(name string, interval time.Duration, job Job) {
	s.jobs = append(s.jobs, scheduledJob{name: name, interval: interval, job: job})
}

// executeJobSafely runs a job only if no other job is currently executing
func (s *Scheduler) executeJobSafely(jobName string, jobFunc func() error) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", jobName))
		s.processingMutex.Unlock()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", jobName),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := jobFunc(); err != nil {
		s.logger.Error("Error executing job", slog.String("job", jobName), slog.Any("error", err))
	}
}

// Start begins all background jobs
func (s *Scheduler) Start() error {
	if !s.enabled {
		s.logger.Info("Background jobs are disabled.")
		return nil
	}

	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}

	s.logger.Info("Starting background jobs...", slog.Int("jobs", len(s.jobs)))
	s.isRunning = true

	for _, j := range s.jobs {
		s.startJob(j)
	}
	return nil
}

func (s *Scheduler) startJob(j scheduledJob) {
	s.logger.Info("Starting job", slog.String("job", j.name), slog.Duration("interval", j.interval))
	ticker := time.NewTicker(j.interval)
	s.tickers = append(s.tickers, ticker)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executeJobSafely(j.name, j.job.Run)

		for {
			select {
			case <-ticker.C:
				s.executeJobSafely(j.name, j.job.Run)
			case <-s.ctx.Done():
				s.logger.Info("Job stopped", slog.String("job", j.name))
				return
			}
		}
	}()
}

// Stop halts all background jobs and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")
	s.enabled = false

	for _, t := range s.tickers {
		t.Stop()
	}

	s.cancel()
	s.wg.Wait()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}
