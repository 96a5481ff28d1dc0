// Package worker drives the scheduled jobs from in-process tickers when
// Temporal is not in use.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/anywhere-israel/hostmatch/internal/jobs"
)

// JobRunner is the part of jobs.Runner the worker needs.
type JobRunner interface {
	Run(ctx context.Context, name jobs.Name) (jobs.Report, error)
}

type Schedule struct {
	Job      jobs.Name
	Interval time.Duration
	// RunAtStart fires the job once before the first tick.
	RunAtStart bool
}

type Worker struct {
	runner    JobRunner
	schedules []Schedule
	logger    zerolog.Logger
}

func NewWorker(runner JobRunner, schedules []Schedule, logger zerolog.Logger) *Worker {
	active := make([]Schedule, 0, len(schedules))
	for _, s := range schedules {
		if s.Interval > 0 {
			active = append(active, s)
		}
	}
	return &Worker{
		runner:    runner,
		schedules: active,
		logger:    logger.With().Str("component", "worker").Logger(),
	}
}

// Start runs one ticker loop per job until ctx is cancelled. Loops are
// independent: a failing or slow job never delays the others.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info().Int("jobs", len(w.schedules)).Msg("worker started")

	var wg sync.WaitGroup
	for _, s := range w.schedules {
		wg.Add(1)
		go func(s Schedule) {
			defer wg.Done()
			w.loop(ctx, s)
		}(s)
	}
	wg.Wait()

	w.logger.Info().Msg("worker stopped")
	return ctx.Err()
}

func (w *Worker) loop(ctx context.Context, s Schedule) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	if s.RunAtStart {
		w.tick(ctx, s.Job)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx, s.Job)
		}
	}
}

func (w *Worker) tick(ctx context.Context, job jobs.Name) {
	if _, err := w.runner.Run(ctx, job); err != nil {
		// Log the error, the next tick retries.
		w.logger.Error().Err(err).Str("job", string(job)).Msg("scheduled job failed")
	}
}
