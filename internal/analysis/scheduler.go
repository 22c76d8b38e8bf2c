package analysis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	"github.com/chris/mergen/internal/config"
	"github.com/chris/mergen/internal/db"
)

// StoreHandle is a store opened for a single scheduled run
type StoreHandle interface {
	Store
	io.Closer
}

// OpenFunc opens a fresh store handle
type OpenFunc func() (StoreHandle, error)

// Scheduler runs a refresh on a cron schedule. Each run opens its own store
// handle and coordinator, so nothing is shared with other processes or runs.
type Scheduler struct {
	open   OpenFunc
	masker db.Masker
	log    *slog.Logger

	// OnResult, when set, is called after every scheduled run
	OnResult func(Result)

	mu         sync.Mutex
	cfg        *config.Config
	summarizer Summarizer
	cron       *rcron.Cron
	entry      rcron.EntryID
	scheduled  bool
}

// NewScheduler creates a stopped scheduler
func NewScheduler(open OpenFunc, summarizer Summarizer, masker db.Masker, cfg *config.Config, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	cl := cronLogger{log}
	return &Scheduler{
		open:       open,
		summarizer: summarizer,
		masker:     masker,
		log:        log,
		cfg:        cfg,
		cron:       rcron.New(rcron.WithLogger(cl), rcron.WithChain(rcron.SkipIfStillRunning(cl))),
	}
}

// Start registers the refresh job and starts the cron loop. The scheduler
// stops when ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	spec := s.cfg.RefreshSchedule
	err := s.schedule(ctx, spec)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("profile scheduler started", "schedule", spec)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// schedule replaces the registered job. Callers hold s.mu.
func (s *Scheduler) schedule(ctx context.Context, spec string) error {
	id, err := s.cron.AddFunc(spec, func() { s.RunOnce(ctx) })
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	if s.scheduled {
		s.cron.Remove(s.entry)
	}
	s.entry = id
	s.scheduled = true
	return nil
}

// Update applies a reloaded configuration. The job is re-registered when
// the schedule changed; an invalid new schedule keeps the old one.
func (s *Scheduler) Update(ctx context.Context, cfg *config.Config, summarizer Summarizer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cfg.RefreshSchedule
	s.cfg = cfg
	if summarizer != nil {
		s.summarizer = summarizer
	}

	if cfg.RefreshSchedule == old || !s.scheduled {
		return nil
	}
	if err := s.schedule(ctx, cfg.RefreshSchedule); err != nil {
		s.log.Warn("keeping previous refresh schedule", "schedule", old, "error", err)
		return err
	}
	s.log.Info("profile schedule changed", "schedule", cfg.RefreshSchedule)
	return nil
}

// RunOnce performs one refresh with a freshly opened store
func (s *Scheduler) RunOnce(ctx context.Context) Result {
	s.mu.Lock()
	cfg, summarizer := s.cfg, s.summarizer
	s.mu.Unlock()

	res := s.run(ctx, cfg, summarizer)
	if s.OnResult != nil {
		s.OnResult(res)
	}
	return res
}

func (s *Scheduler) run(ctx context.Context, cfg *config.Config, summarizer Summarizer) Result {
	store, err := s.open()
	if err != nil {
		s.log.Error("scheduled refresh could not open store", "error", err)
		return Result{Outcome: OutcomeFailed, Err: err}
	}
	defer store.Close()

	res, err := New(store, summarizer, s.masker, cfg, s.log).Refresh(ctx)
	if err != nil && res.Err == nil {
		res = Result{Outcome: OutcomeFailed, Err: err}
	}
	return res
}

// Next returns the next scheduled run time, or the zero time when stopped
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.scheduled {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// Stop halts the cron loop and waits up to five seconds for a running refresh
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn("profile scheduler stop timed out waiting for running refresh")
	}
}

// cronLogger adapts slog to the cron.Logger interface
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
