// Package scheduler runs transfers on a cron schedule, one fresh manager per tick.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/flowtransfer/pkg/models"
	"github.com/dukex/flowtransfer/pkg/transfer"
	"github.com/robfig/cron/v3"
)

var ErrInvalidSchedule = errors.New("invalid schedule")

// ManagerFactory builds the manager for one run.
type ManagerFactory func() *transfer.Manager

// RunHook is called after every scheduled run.
type RunHook func(summary *models.Summary, err error)

type Scheduler struct {
	cronExpr string
	options  transfer.Options
	factory  ManagerFactory
	hook     RunHook
	logger   *slog.Logger
	cron     *cron.Cron

	mu      sync.RWMutex
	current *transfer.Manager
	runs    int
	last    *models.Summary
	lastErr error
}

func New(cronExpr string, options transfer.Options, factory ManagerFactory, logger *slog.Logger) (*Scheduler, error) {
	if cronExpr == "" {
		return nil, fmt.Errorf("%w: cron expression is required", ErrInvalidSchedule)
	}

	_, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	return &Scheduler{
		cronExpr: cronExpr,
		options:  options,
		factory:  factory,
		logger:   logger.With("module", "scheduler", "cron", cronExpr),
	}, nil
}

// OnRun registers a hook called after every run.
func (s *Scheduler) OnRun(hook RunHook) {
	s.hook = hook
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Starting scheduler")

	logger := cronLogger{s.logger}
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(logger),
		cron.Recover(logger),
	))

	id, err := s.cron.AddFunc(s.cronExpr, func() {
		_, _ = s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.logger.Debug("Added cron job", "id", id)
	s.cron.Start()

	return nil
}

// RunOnce runs a transfer immediately with a fresh manager.
func (s *Scheduler) RunOnce(ctx context.Context) (*models.Summary, error) {
	manager := s.factory()

	s.mu.Lock()
	s.current = manager
	s.runs++
	run := s.runs
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Scheduled transfer triggered", "run", run)

	summary, err := manager.Transfer(ctx, s.options)
	if err != nil {
		s.logger.ErrorContext(ctx, "Scheduled transfer failed", "run", run, "error", err)
	}

	s.mu.Lock()
	s.last = summary
	s.lastErr = err
	s.mu.Unlock()

	if s.hook != nil {
		s.hook(summary, err)
	}

	return summary, err
}

// Stop halts the schedule, cancels an in-flight run and waits for it to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Stopping scheduler")

	if s.cron == nil {
		return nil
	}

	done := s.cron.Stop()
	s.Cancel()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) Runs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.runs
}

// Last returns the outcome of the most recent finished run.
func (s *Scheduler) Last() (*models.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.last, s.lastErr
}

func (s *Scheduler) Progress() models.Progress {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()

	if current == nil {
		return models.Progress{Status: models.TransferStatusIdle}
	}

	return current.Progress()
}

func (s *Scheduler) Cancel() bool {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()

	if current == nil {
		return false
	}

	return current.Cancel()
}

func (s *Scheduler) RunID() string {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()

	if current == nil {
		return ""
	}

	return current.RunID()
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
