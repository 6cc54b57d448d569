package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/emrgen/wikinote/internal/model"
	"github.com/emrgen/wikinote/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryQueue struct {
	mu          sync.Mutex
	pending     []*model.Task
	done        []*model.Task
	failed      []*model.Task
	maxAttempts int
}

func (q *memoryQueue) add(job, tenant string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, &model.Task{ID: job, Job: job, Tenant: tenant, Status: model.TaskPending})
}

func (q *memoryQueue) Claim(_ context.Context, limit int) ([]*model.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if limit > len(q.pending) {
		limit = len(q.pending)
	}
	claimed := q.pending[:limit]
	q.pending = q.pending[limit:]
	return claimed, nil
}

func (q *memoryQueue) Complete(_ context.Context, task *model.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.done = append(q.done, task)
	return nil
}

func (q *memoryQueue) Fail(_ context.Context, task *model.Task, cause error) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task.Attempts++
	task.LastError = cause.Error()
	if task.Attempts >= q.maxAttempts {
		q.failed = append(q.failed, task)
		return true, nil
	}
	q.pending = append(q.pending, task)
	return false, nil
}

func TestWorker_Drain(t *testing.T) {
	q := &memoryQueue{maxAttempts: 2}
	w := NewWorker(q, 1, 0)

	var tenants []string
	w.Handle("page.notify", func(ctx context.Context, task *model.Task) error {
		tenants = append(tenants, store.Tenant(ctx))
		// handlers may fan out more work
		q.add("search.sync", task.Tenant)
		return nil
	})
	w.Handle("search.sync", func(ctx context.Context, task *model.Task) error {
		return nil
	})
	w.Handle("search.remove", func(ctx context.Context, task *model.Task) error {
		return errors.New("index offline")
	})

	q.add("page.notify", "acme")
	q.add("search.remove", "acme")
	q.add("page.move.cluster", "acme")

	require.NoError(t, w.Drain(context.Background()))

	assert.Equal(t, []string{"acme"}, tenants)
	assert.Len(t, q.done, 2)
	require.Len(t, q.failed, 2)
	for _, task := range q.failed {
		assert.Equal(t, 2, task.Attempts)
	}
	assert.Contains(t, q.failed[0].LastError+q.failed[1].LastError, ErrUnknownJob.Error())
}

func TestWorker_Execute(t *testing.T) {
	w := NewWorker(&memoryQueue{}, 0, 0)

	err := w.Execute(context.Background(), &model.Task{Job: "missing"})
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestWorker_Guard(t *testing.T) {
	w := NewWorker(&memoryQueue{}, 0, 0)

	entered := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		w.guard("poll", func() {
			close(entered)
			<-release
		})
		close(finished)
	}()
	<-entered

	ran := false
	w.guard("poll", func() { ran = true })
	assert.False(t, ran)

	close(release)
	<-finished

	w.guard("poll", func() { ran = true })
	assert.True(t, ran)
}
