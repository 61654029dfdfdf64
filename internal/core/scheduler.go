package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

type Runner interface {
	Run(ctx context.Context) (RunResult, error)
}

// Scheduler runs scrapes on a cron schedule. A run that is still going when
// the next tick fires causes that tick to be skipped.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	logger *slog.Logger
}

func NewScheduler(spec string, runner Runner, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		runner: runner,
		logger: logger,
	}
	return s, s.add(spec)
}

func (s *Scheduler) add(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.runOnce(context.Background())
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	res, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("scheduled scrape failed", "run_id", res.RunID, "error", err)
		return
	}
	s.logger.Info("scheduled scrape finished", "run_id", res.RunID, "persisted", res.Persisted, "duration", res.Duration.String())
}

// Start launches the scheduler and stops it when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
	}()
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
