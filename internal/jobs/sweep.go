package jobs

import "log/slog"

// Sweeper evicts expired entries from the open-session index.
type Sweeper interface {
	Sweep() int
}

// SweepJob bounds the memory held by the open-session index.
type SweepJob struct {
	sweeper Sweeper
	logger  *slog.Logger
}

func NewSweepJob(sweeper Sweeper, logger *slog.Logger) *SweepJob {
	return &SweepJob{sweeper: sweeper, logger: logger}
}

func (j *SweepJob) Run() error {
	if removed := j.sweeper.Sweep(); removed > 0 {
		j.logger.Debug("Swept expired sessions from index", slog.Int("removed", removed))
	}
	return nil
}
