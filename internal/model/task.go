package model

import "time"

type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskDone    TaskStatus = "done"
	TaskFailed  TaskStatus = "failed"
)

// Task is a durable queue item. A task with a Key is unique per key for as long
// as the row exists, done tasks stay behind as tombstones until they are purged.
type Task struct {
	ID        string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Key       *string    `gorm:"uniqueIndex" json:"key,omitempty"`
	Tenant    string     `gorm:"not null" json:"tenant"`
	Job       string     `gorm:"not null;index" json:"job"`
	Payload   []byte     `json:"payload"`
	Status    TaskStatus `gorm:"not null;index:idx_tasks_status_run_at" json:"status"`
	Attempts  int        `gorm:"not null;default:0" json:"attempts"`
	RunAt     time.Time  `gorm:"not null;index:idx_tasks_status_run_at" json:"run_at"`
	LastError string     `json:"last_error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Task) TableName() string {
	return "tasks"
}
