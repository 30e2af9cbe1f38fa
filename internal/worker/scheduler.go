package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	applog "cambi/internal/log"
)

// Scheduler runs ExportAll on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	worker *ExportWorker
	logger *applog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler parses spec (standard five-field cron or a descriptor such
// as "@hourly") and registers the export job.
func NewScheduler(spec string, w *ExportWorker, logger *applog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	logger = logger.WithComponent(applog.ComponentWorker)

	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		)),
		worker: w,
		logger: logger,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("parse export schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	_ = s.worker.ExportAll(s.ctx, TriggerSchedule)
}

// Start begins firing the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.InfoContext(s.ctx, "Export schedule started", "next", e.Next)
	}
}

// Stop cancels a running export and waits for it, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	logger *applog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.DebugContext(context.Background(), "cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append([]any{applog.FieldError, err}, keysAndValues...)
	l.logger.ErrorContext(context.Background(), "cron: "+msg, args...)
}
