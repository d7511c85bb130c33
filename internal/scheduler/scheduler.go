package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Flusher persists pending store changes.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Sweeper drops idle rate-limit entries and reports how many.
type Sweeper interface {
	Sweep() int
}

type Config struct {
	FlushInterval time.Duration
	SweepInterval time.Duration
}

type Scheduler struct {
	cron    *cron.Cron
	cfg     Config
	store   Flusher
	limits  Sweeper
	log     zerolog.Logger
	timeout time.Duration
}

func New(cfg Config, store Flusher, limits Sweeper, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		cfg:     cfg,
		store:   store,
		limits:  limits,
		log:     log,
		timeout: 30 * time.Second,
	}
}

// Start registers the jobs and blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.register(); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info().
		Dur("flush_every", s.cfg.FlushInterval).
		Dur("sweep_every", s.cfg.SweepInterval).
		Msg("Scheduler started")

	<-ctx.Done()
	return nil
}

func (s *Scheduler) register() error {
	if s.cfg.FlushInterval > 0 {
		if _, err := s.cron.AddFunc(every(s.cfg.FlushInterval), s.flushStore); err != nil {
			return fmt.Errorf("add store flush: %w", err)
		}
	}
	if s.cfg.SweepInterval > 0 {
		if _, err := s.cron.AddFunc(every(s.cfg.SweepInterval), s.sweepLimits); err != nil {
			return fmt.Errorf("add rate-limit sweep: %w", err)
		}
	}
	return nil
}

// Stop waits for running jobs and then flushes once more.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.flushStore()
	s.log.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) flushStore() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.store.Flush(ctx); err != nil {
		s.log.Error().Err(err).Msg("Periodic store flush failed")
	}
}

func (s *Scheduler) sweepLimits() {
	if n := s.limits.Sweep(); n > 0 {
		s.log.Debug().Int("dropped", n).Msg("Swept idle rate-limit entries")
	}
}

func every(d time.Duration) string {
	return "@every " + d.String()
}
