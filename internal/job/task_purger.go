package job

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// TaskTable is the maintenance side of the durable queue.
type TaskTable interface {
	Purge(ctx context.Context, before time.Time) (int64, error)
	Recover(ctx context.Context, timeout time.Duration) (int64, error)
}

// TaskPurger removes done task tombstones older than the retention and puts
// tasks abandoned by a crashed worker back to pending.
type TaskPurger struct {
	tasks     TaskTable
	schedule  string
	retention time.Duration
	timeout   time.Duration
	now       func() time.Time
}

// NewTaskPurger creates a new TaskPurger instance.
func NewTaskPurger(tasks TaskTable, schedule string, retention, timeout time.Duration) *TaskPurger {
	if schedule == "" {
		schedule = "@every 10m"
	}

	return &TaskPurger{
		tasks:     tasks,
		schedule:  schedule,
		retention: retention,
		timeout:   timeout,
		now:       time.Now,
	}
}

func (p *TaskPurger) Schedule() string {
	return p.schedule
}

func (p *TaskPurger) Run() {
	ctx := context.Background()

	if p.timeout > 0 {
		n, err := p.tasks.Recover(ctx, p.timeout)
		if err != nil {
			logrus.Errorf("failed to recover stuck tasks: %v", err)
		} else if n > 0 {
			logrus.Warnf("recovered %d stuck tasks", n)
		}
	}

	if p.retention <= 0 {
		return
	}

	before := p.now().Add(-p.retention)
	n, err := p.tasks.Purge(ctx, before)
	if err != nil {
		logrus.Errorf("failed to purge done tasks: %v", err)
		return
	}
	logrus.Infof("purged %d done tasks older than %s", n, before.Format(time.RFC3339))
}
