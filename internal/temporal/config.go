package temporal

import (
	"time"

	"github.com/anywhere-israel/hostmatch/internal/jobs"
)

// TaskQueueName is the default task queue for the scheduler workflows.
const TaskQueueName = "HOSTMATCH_SCHEDULER"

// ScheduleIDPrefix prefixes the id of each job's Temporal Schedule and of the
// workflows it starts.
const ScheduleIDPrefix = "hostmatch-"

// DefaultActivityTimeout bounds one job activity.
const DefaultActivityTimeout = 5 * time.Minute

const (
	PollHostsWorkflowName   = "PollHostsWorkflow"
	ExpireSweepWorkflowName = "ExpireSweepWorkflow"
	RunMatchingWorkflowName = "RunMatchingWorkflow"
)

// WorkflowName maps a job to the workflow type that runs it.
func WorkflowName(job jobs.Name) string {
	switch job {
	case jobs.PollHosts:
		return PollHostsWorkflowName
	case jobs.ExpireSweep:
		return ExpireSweepWorkflowName
	case jobs.RunMatching:
		return RunMatchingWorkflowName
	}
	return ""
}

// JobSchedule is the cron trigger for one job.
type JobSchedule struct {
	Job  jobs.Name
	Cron string
}
