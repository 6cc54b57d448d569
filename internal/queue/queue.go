package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/emrgen/wikinote/internal/apperr"
	"github.com/emrgen/wikinote/internal/model"
	"github.com/emrgen/wikinote/internal/store"
	"github.com/goccy/go-json"
)

// ErrMissingKey is returned by EnqueueIfAbsent for a task without an idempotency key.
var ErrMissingKey = errors.New("task has no idempotency key")

// Task is a unit of asynchronous work. Handlers must be safe to run more than once.
type Task struct {
	// Key makes the task unique, a second task with the same key is dropped.
	Key     string `json:"key,omitempty"`
	Job     string `json:"job"`
	Tenant  string `json:"tenant"`
	Payload []byte `json:"payload"`
}

// NewTask encodes payload for job and binds the task to the tenant of ctx.
func NewTask(ctx context.Context, job string, payload any) (Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Task{}, err
	}

	return Task{Job: job, Tenant: store.Tenant(ctx), Payload: data}, nil
}

// Keyed returns a copy of the task with an idempotency key.
func (t Task) Keyed(key string) Task {
	t.Key = key
	return t
}

// Queue is a durable work queue with at least once delivery.
type Queue interface {
	// Enqueue adds the task to the queue.
	Enqueue(ctx context.Context, task Task) error
	// EnqueueIfAbsent adds the task unless a task with the same key exists or has completed.
	// It reports whether the task was added.
	EnqueueIfAbsent(ctx context.Context, task Task) (bool, error)
}

// Executor runs a claimed task.
type Executor interface {
	Execute(ctx context.Context, task *model.Task) error
}

// Submit enqueues the task, keyed tasks go through EnqueueIfAbsent.
// Failures are wrapped with apperr.ErrDownstreamUnavailable.
func Submit(ctx context.Context, q Queue, task Task) error {
	var err error
	if task.Key != "" {
		_, err = q.EnqueueIfAbsent(ctx, task)
	} else {
		err = q.Enqueue(ctx, task)
	}
	if err != nil {
		return fmt.Errorf("%w: enqueue %s: %v", apperr.ErrDownstreamUnavailable, task.Job, err)
	}

	return nil
}

// Decode unmarshals the payload of a stored task.
func Decode(task *model.Task, v any) error {
	return json.Unmarshal(task.Payload, v)
}

// Context returns ctx scoped to the tenant the task was created for.
func Context(ctx context.Context, task *model.Task) context.Context {
	return store.WithTenant(ctx, task.Tenant)
}
