package workflows

import (
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/anywhere-israel/hostmatch/internal/jobs"
	"github.com/anywhere-israel/hostmatch/internal/temporal"
	"github.com/anywhere-israel/hostmatch/internal/temporal/activities"
)

// Register adds the scheduler workflows and activities to a Temporal worker.
func Register(r worker.Registry, acts *activities.Activities) {
	r.RegisterWorkflowWithOptions(PollHostsWorkflow, workflow.RegisterOptions{Name: temporal.PollHostsWorkflowName})
	r.RegisterWorkflowWithOptions(ExpireSweepWorkflow, workflow.RegisterOptions{Name: temporal.ExpireSweepWorkflowName})
	r.RegisterWorkflowWithOptions(RunMatchingWorkflow, workflow.RegisterOptions{Name: temporal.RunMatchingWorkflowName})
	r.RegisterActivity(acts)
}

func withJobOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: temporal.DefaultActivityTimeout,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:    10 * time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	})
}

// PollHostsWorkflow asks every host for this week's availability.
func PollHostsWorkflow(ctx workflow.Context) (jobs.Report, error) {
	var a *activities.Activities
	return runJob(ctx, jobs.PollHosts, a.PollHostsActivity)
}

// ExpireSweepWorkflow expires stale matches.
func ExpireSweepWorkflow(ctx workflow.Context) (jobs.Report, error) {
	var a *activities.Activities
	return runJob(ctx, jobs.ExpireSweep, a.ExpireSweepActivity)
}

// RunMatchingWorkflow runs the matcher over all pending requests.
func RunMatchingWorkflow(ctx workflow.Context) (jobs.Report, error) {
	var a *activities.Activities
	return runJob(ctx, jobs.RunMatching, a.RunMatchingActivity)
}

func runJob(ctx workflow.Context, name jobs.Name, activity interface{}) (jobs.Report, error) {
	ctx = withJobOptions(ctx)
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting scheduled job workflow", "job", name)

	var report jobs.Report
	if err := workflow.ExecuteActivity(ctx, activity).Get(ctx, &report); err != nil {
		logger.Error("Scheduled job workflow failed.", "job", name, "error", err)
		return jobs.Report{Job: name}, err
	}

	logger.Info("Scheduled job workflow completed.", "job", name, "processed", report.Processed)
	return report, nil
}
