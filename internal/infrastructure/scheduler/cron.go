// Package scheduler drives periodic pipeline runs off a cron expression.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"aaiptracker/internal/ports"
)

// CronScheduler implements ports.Scheduler on robfig/cron.
type CronScheduler struct {
	expression string
	location   *time.Location
	logger     *slog.Logger
	cron       *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

func NewCronScheduler(expression string, location *time.Location, logger *slog.Logger) *CronScheduler {
	return &CronScheduler{
		expression: expression,
		location:   location,
		logger:     logger,
	}
}

// Start registers the job and begins ticking. The job receives the tick
// time in the configured location.
func (s *CronScheduler) Start(_ context.Context, job func(time.Time)) error {
	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(cronLogger{logger: s.logger}),
	)
	if _, err := c.AddFunc(s.expression, func() {
		job(time.Now().In(s.location))
	}); err != nil {
		return fmt.Errorf("register cron %q: %w", s.expression, err)
	}

	c.Start()
	s.cron = c
	s.logger.Info("scheduler started", "cron", s.expression, "timezone", s.location.String())
	return nil
}

// Stop halts ticking and waits for a running job to finish, bounded by ctx.
func (s *CronScheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}

	done := s.cron.Stop().Done()
	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
