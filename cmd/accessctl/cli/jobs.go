package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/hibiken/asynq"

	"github.com/bazaar-commerce/console/jobs"
)

// QueueInspector is the subset of asynq.Inspector used by the queue command.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListArchivedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
}

// JobsCLI reports on the security event queue.
type JobsCLI struct {
	inspector QueueInspector
}

// NewJobsCLI wraps an inspector.
func NewJobsCLI(inspector QueueInspector) *JobsCLI {
	return &JobsCLI{inspector: inspector}
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
}

// InspectQueue reports the security queue metrics.
func (c *JobsCLI) InspectQueue() (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueSecurity)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueSecurity}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

// QueueCommand prints queue stats and the most recent archived security events.
func (c *JobsCLI) QueueCommand(stdout, stderr io.Writer, archived int) int {
	stdout, stderr = writers(stdout, stderr)
	stats, err := c.InspectQueue()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "queue: %v\n", err)
		return ExitFailure
	}
	_, _ = fmt.Fprintf(stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	if archived <= 0 || stats.Archived == 0 {
		return ExitOK
	}
	tasks, err := c.inspector.ListArchivedTasks(jobs.QueueSecurity, asynq.PageSize(archived), asynq.Page(1))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "queue: list archived: %v\n", err)
		return ExitFailure
	}
	for _, t := range tasks {
		_, _ = fmt.Fprintf(stdout, "archived %s %s: %s\n", t.ID, t.Type, t.LastErr)
	}
	return ExitOK
}
