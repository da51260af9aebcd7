package tracker

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultCronSpec takes a snapshot at the top of every hour.
const DefaultCronSpec = "0 0 * * * *"

// Scheduler drives periodic cycles. Start and Stop are admin operations;
// scheduled runs go through the same Tracker.Run as on-demand triggers.
type Scheduler struct {
	tracker *Tracker
	logger  *zap.Logger
	spec    string

	mu   sync.Mutex
	cron *cron.Cron
}

// NewScheduler creates a stopped scheduler with the given cron spec
// (seconds field included; empty spec takes DefaultCronSpec).
func NewScheduler(t *Tracker, logger *zap.Logger, spec string) *Scheduler {
	if spec == "" {
		spec = DefaultCronSpec
	}
	return &Scheduler{tracker: t, logger: logger, spec: spec}
}

// Start begins periodic cycles. Starting an already-running scheduler is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	_, err := c.AddFunc(s.spec, func() {
		// Run bounds remote queries itself through the balance client's
		// timeouts; a started cycle always finishes its phases.
		if _, err := s.tracker.Run(ctx); err != nil {
			s.logger.Error("scheduled snapshot cycle failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	s.cron = c
	c.Start()
	s.logger.Info("snapshot scheduler started", zap.String("cronSpec", s.spec))
	return nil
}

// Stop halts periodic cycles. A run already in flight completes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return
	}
	s.cron.Stop()
	s.cron = nil
	s.logger.Info("snapshot scheduler stopped")
}

// Running reports whether periodic cycles are enabled.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}
