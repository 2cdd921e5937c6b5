// Package scheduler runs pipeline cycles on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonathan/deal-tracker/internal/observability"
	"github.com/jonathan/deal-tracker/internal/pipeline"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	TriggerCron   = "cron"
	TriggerManual = "manual"
)

// ErrCycleRunning is returned when a cycle is requested while another is in flight.
var ErrCycleRunning = errors.New("a pipeline cycle is already running")

// CycleRunner executes one pipeline cycle.
type CycleRunner interface {
	Run(ctx context.Context, opts pipeline.RunOptions) (*pipeline.CycleReport, error)
}

// OptionsFunc builds the options for each cycle, so feed lists and limits are
// re-read on every run.
type OptionsFunc func() (pipeline.RunOptions, error)

// Scheduler triggers cycles from a cron expression. At most one cycle runs at a time.
type Scheduler struct {
	cron    *cron.Cron
	entry   cron.EntryID
	runner  CycleRunner
	options OptionsFunc
	logger  *zap.Logger

	busy sync.Mutex

	ctxMu sync.RWMutex
	ctx   context.Context
}

// New parses schedule (standard five-field cron or a descriptor such as
// "@every 4h") and returns an unstarted scheduler.
func New(schedule string, runner CycleRunner, options OptionsFunc, logger *zap.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("scheduler requires a cycle runner")
	}
	if options == nil {
		options = func() (pipeline.RunOptions, error) { return pipeline.RunOptions{}, nil }
	}
	logger = observability.OrNop(logger)

	s := &Scheduler{
		runner:  runner,
		options: options,
		logger:  logger,
		ctx:     context.Background(),
	}
	s.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{logger.Sugar()})))

	id, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.RunNow(s.context(), TriggerCron, nil); err != nil && !errors.Is(err, ErrCycleRunning) {
			s.logger.Error("scheduled cycle failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	s.entry = id
	return s, nil
}

// Run starts the cron loop and blocks until ctx is cancelled, then waits for
// any in-flight cycle to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctxMu.Lock()
	s.ctx = ctx
	s.ctxMu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", zap.Time("next_run", s.Next()))

	<-ctx.Done()
	stopped := s.cron.Stop()
	<-stopped.Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// Next reports when the next scheduled cycle fires. It is zero before Run.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// RunNow executes one cycle immediately unless another is running. A non-nil
// onProgress replaces the callback from the options func.
func (s *Scheduler) RunNow(ctx context.Context, trigger string, onProgress pipeline.ProgressCallback) (*pipeline.CycleReport, error) {
	if !s.busy.TryLock() {
		observability.Cycles.WithLabelValues(trigger, "skipped").Inc()
		s.logger.Warn("cycle already running, skipping", zap.String("trigger", trigger))
		return nil, ErrCycleRunning
	}
	defer s.busy.Unlock()

	opts, err := s.options()
	if err != nil {
		observability.Cycles.WithLabelValues(trigger, "error").Inc()
		return nil, fmt.Errorf("failed to prepare cycle: %w", err)
	}
	if onProgress != nil {
		opts.OnProgress = onProgress
	}

	start := time.Now()
	report, err := s.runner.Run(ctx, opts)
	result := "ok"
	if err != nil {
		result = "error"
	}
	observability.Cycles.WithLabelValues(trigger, result).Inc()

	fields := []zap.Field{zap.String("trigger", trigger), zap.Duration("duration", time.Since(start))}
	if report != nil {
		fields = append(fields, zap.String("cycle_id", report.CycleID))
	}
	if err != nil {
		s.logger.Error("cycle finished with errors", append(fields, zap.Error(err))...)
	} else {
		s.logger.Info("cycle finished", fields...)
	}
	return report, err
}

func (s *Scheduler) context() context.Context {
	s.ctxMu.RLock()
	defer s.ctxMu.RUnlock()
	return s.ctx
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
