package activities

import (
	"context"

	"go.temporal.io/sdk/activity"

	"github.com/anywhere-israel/hostmatch/internal/jobs"
)

// JobRunner is the part of jobs.Runner the activities call into.
type JobRunner interface {
	Run(ctx context.Context, name jobs.Name) (jobs.Report, error)
}

type Activities struct {
	Jobs JobRunner
}

func (a *Activities) PollHostsActivity(ctx context.Context) (jobs.Report, error) {
	return a.run(ctx, jobs.PollHosts)
}

func (a *Activities) ExpireSweepActivity(ctx context.Context) (jobs.Report, error) {
	return a.run(ctx, jobs.ExpireSweep)
}

func (a *Activities) RunMatchingActivity(ctx context.Context) (jobs.Report, error) {
	return a.run(ctx, jobs.RunMatching)
}

func (a *Activities) run(ctx context.Context, name jobs.Name) (jobs.Report, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Running scheduled job", "job", name, "attempt", activity.GetInfo(ctx).Attempt)

	report, err := a.Jobs.Run(ctx, name)
	if err != nil {
		logger.Error("Scheduled job failed", "job", name, "error", err)
		return report, err
	}
	logger.Info("Scheduled job finished", "job", name, "processed", report.Processed, "failed", report.Failed, "skipped", report.Skipped)
	return report, nil
}
