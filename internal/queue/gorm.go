package queue

import (
	"context"
	"time"

	"github.com/emrgen/wikinote/internal/model"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ Queue = (*GormQueue)(nil)

// GormQueue stores tasks in the tasks table. Keyed tasks rely on the unique key
// index, so a done task keeps rejecting duplicates until it is purged.
type GormQueue struct {
	db          *gorm.DB
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
}

func NewGormQueue(db *gorm.DB, maxAttempts int, backoff time.Duration) *GormQueue {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if backoff <= 0 {
		backoff = time.Second
	}

	return &GormQueue{
		db:          db,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		now:         time.Now,
	}
}

func (q *GormQueue) row(task Task) *model.Task {
	row := &model.Task{
		ID:      uuid.New().String(),
		Tenant:  task.Tenant,
		Job:     task.Job,
		Payload: task.Payload,
		Status:  model.TaskPending,
		RunAt:   q.now(),
	}
	if task.Key != "" {
		key := task.Key
		row.Key = &key
	}

	return row
}

func (q *GormQueue) Enqueue(ctx context.Context, task Task) error {
	return q.db.WithContext(ctx).Create(q.row(task)).Error
}

func (q *GormQueue) EnqueueIfAbsent(ctx context.Context, task Task) (bool, error) {
	if task.Key == "" {
		return false, ErrMissingKey
	}

	res := q.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(q.row(task))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		logrus.Debugf("task %s with key %s already exists", task.Job, task.Key)
		return false, nil
	}

	return true, nil
}

// Claim marks up to limit due tasks as running and returns them.
func (q *GormQueue) Claim(ctx context.Context, limit int) ([]*model.Task, error) {
	var claimed []*model.Task
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var due []*model.Task
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND run_at <= ?", model.TaskPending, q.now()).
			Order("run_at").
			Limit(limit).
			Find(&due).Error
		if err != nil {
			return err
		}

		for _, task := range due {
			res := tx.Model(&model.Task{}).
				Where("id = ? AND status = ?", task.ID, model.TaskPending).
				Updates(map[string]any{"status": model.TaskRunning, "updated_at": q.now()})
			if res.Error != nil {
				return res.Error
			}
			// another worker got it first
			if res.RowsAffected == 0 {
				continue
			}
			task.Status = model.TaskRunning
			claimed = append(claimed, task)
		}

		return nil
	})

	return claimed, err
}

// Complete marks a task as done, the row stays as a tombstone for its key.
func (q *GormQueue) Complete(ctx context.Context, task *model.Task) error {
	task.Status = model.TaskDone
	return q.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ?", task.ID).
		Updates(map[string]any{"status": model.TaskDone, "last_error": "", "updated_at": q.now()}).Error
}

// Fail records a failed attempt. The task is retried with exponential backoff
// until it runs out of attempts, then it is marked as failed. It reports whether
// the failure was terminal.
func (q *GormQueue) Fail(ctx context.Context, task *model.Task, cause error) (bool, error) {
	task.Attempts++
	task.LastError = cause.Error()

	updates := map[string]any{
		"attempts":   task.Attempts,
		"last_error": task.LastError,
		"updated_at": q.now(),
	}

	terminal := task.Attempts >= q.maxAttempts
	if terminal {
		task.Status = model.TaskFailed
	} else {
		task.Status = model.TaskPending
		task.RunAt = q.now().Add(q.backoff * time.Duration(1<<(task.Attempts-1)))
		updates["run_at"] = task.RunAt
	}
	updates["status"] = task.Status

	err := q.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", task.ID).Updates(updates).Error
	return terminal, err
}

// Recover puts tasks that have been running for longer than timeout back to pending,
// a worker died while running them.
func (q *GormQueue) Recover(ctx context.Context, timeout time.Duration) (int64, error) {
	res := q.db.WithContext(ctx).Model(&model.Task{}).
		Where("status = ? AND updated_at < ?", model.TaskRunning, q.now().Add(-timeout)).
		Updates(map[string]any{"status": model.TaskPending, "run_at": q.now(), "updated_at": q.now()})
	return res.RowsAffected, res.Error
}

// Purge deletes done tasks last touched before the given time.
func (q *GormQueue) Purge(ctx context.Context, before time.Time) (int64, error) {
	res := q.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.TaskDone, before).
		Delete(&model.Task{})
	return res.RowsAffected, res.Error
}

// Stats counts tasks by status.
func (q *GormQueue) Stats(ctx context.Context) (map[model.TaskStatus]int64, error) {
	var rows []struct {
		Status model.TaskStatus
		Count  int64
	}
	err := q.db.WithContext(ctx).Model(&model.Task{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := make(map[model.TaskStatus]int64, len(rows))
	for _, row := range rows {
		stats[row.Status] = row.Count
	}

	return stats, nil
}

// Failed lists tasks that ran out of attempts, newest first.
func (q *GormQueue) Failed(ctx context.Context, limit int) ([]*model.Task, error) {
	var tasks []*model.Task
	err := q.db.WithContext(ctx).Where("status = ?", model.TaskFailed).Order("updated_at desc").Limit(limit).Find(&tasks).Error
	return tasks, err
}
