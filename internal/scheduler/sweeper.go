// Package scheduler runs the periodic booking sweep on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/court-reservation/internal/model"
)

// Sweeper is the work run on every tick.
type Sweeper interface {
	SweepExpired(ctx context.Context) (model.SweepResult, error)
}

// Scheduler triggers a Sweeper on a cron spec such as "@every 1m" or
// "*/5 * * * *". Overlapping runs are skipped.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	log     zerolog.Logger
	timeout time.Duration

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New parses spec and returns a stopped Scheduler.
func New(spec string, sweeper Sweeper, timeout time.Duration, log zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		log:     log,
		timeout: timeout,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if _, err := s.cron.AddFunc(spec, s.RunOnce); err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins ticking in the background.
func (s *Scheduler) Start() {
	s.log.Info().Msg("sweep scheduler started")
	s.cron.Start()
}

// Stop cancels an in-flight sweep and waits for it to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop().Done()
	select {
	case <-done:
		s.log.Info().Msg("sweep scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs one sweep unless another is still running.
func (s *Scheduler) RunOnce() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn().Msg("previous sweep still running, skipping tick")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := s.sweeper.SweepExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("booking sweep failed")
		return
	}
	s.log.Debug().
		Int("completed", res.CompletedCount).
		Int("expired_pending", res.ExpiredPendingCount).
		Dur("took", time.Since(start)).
		Msg("booking sweep finished")
}
