package temporal

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	sdktemporal "go.temporal.io/sdk/temporal"
)

// EnsureSchedules registers one Temporal Schedule per job. Existing schedules
// are left as they are. Overlapping runs of the same job are skipped.
func EnsureSchedules(ctx context.Context, c client.Client, taskQueue string, schedules []JobSchedule, logger zerolog.Logger) error {
	if taskQueue == "" {
		taskQueue = TaskQueueName
	}
	sc := c.ScheduleClient()
	for _, s := range schedules {
		if s.Cron == "" {
			continue
		}
		id := ScheduleIDPrefix + string(s.Job)
		_, err := sc.Create(ctx, client.ScheduleOptions{
			ID: id,
			Spec: client.ScheduleSpec{
				CronExpressions: []string{s.Cron},
			},
			Action: &client.ScheduleWorkflowAction{
				ID:        id,
				Workflow:  WorkflowName(s.Job),
				TaskQueue: taskQueue,
			},
			Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
		})
		switch {
		case errors.Is(err, sdktemporal.ErrScheduleAlreadyRunning):
			logger.Debug().Str("schedule_id", id).Msg("schedule already registered")
		case err != nil:
			return errors.Wrapf(err, "create schedule %s", id)
		default:
			logger.Info().Str("schedule_id", id).Str("cron", s.Cron).Msg("schedule registered")
		}
	}
	return nil
}
