package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeTasks struct {
	purgedBefore time.Time
	recoverAfter time.Duration
	purgeErr     error
	calls        []string
}

func (f *fakeTasks) Purge(_ context.Context, before time.Time) (int64, error) {
	f.calls = append(f.calls, "purge")
	f.purgedBefore = before
	return 3, f.purgeErr
}

func (f *fakeTasks) Recover(_ context.Context, timeout time.Duration) (int64, error) {
	f.calls = append(f.calls, "recover")
	f.recoverAfter = timeout
	return 1, nil
}

func TestTaskPurger_Run(t *testing.T) {
	tasks := &fakeTasks{}
	p := NewTaskPurger(tasks, "", time.Hour, 10*time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	assert.Equal(t, "@every 10m", p.Schedule())

	p.Run()
	assert.Equal(t, []string{"recover", "purge"}, tasks.calls)
	assert.Equal(t, now.Add(-time.Hour), tasks.purgedBefore)
	assert.Equal(t, 10*time.Minute, tasks.recoverAfter)
}

func TestTaskPurger_Disabled(t *testing.T) {
	tasks := &fakeTasks{purgeErr: errors.New("locked")}
	p := NewTaskPurger(tasks, "@every 1h", 0, 0)

	p.Run()
	assert.Empty(t, tasks.calls)
	assert.Equal(t, "@every 1h", p.Schedule())
}
