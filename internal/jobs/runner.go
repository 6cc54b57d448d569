package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/wikinote/internal/model"
	"github.com/emrgen/wikinote/internal/queue"
	cron "github.com/robfig/cron"
	"github.com/sirupsen/logrus"
)

// ErrUnknownJob is returned for tasks no handler was registered for.
var ErrUnknownJob = errors.New("unknown job")

// Handler runs one task. It must be idempotent, the queue may deliver a task twice.
type Handler func(ctx context.Context, task *model.Task) error

type CronJob interface {
	Schedule() string
	Run()
}

// TaskQueue is the claiming side of the durable queue.
type TaskQueue interface {
	Claim(ctx context.Context, limit int) ([]*model.Task, error)
	Complete(ctx context.Context, task *model.Task) error
	Fail(ctx context.Context, task *model.Task, cause error) (bool, error)
}

var _ queue.Executor = (*Worker)(nil)

// Worker polls the queue on a cron schedule and dispatches tasks to their handlers.
type Worker struct {
	queue    TaskQueue
	handlers map[string]Handler
	cron     *cron.Cron
	cronJobs []CronJob
	running  mapset.Set[string]
	mu       sync.Mutex
	batch    int
	poll     time.Duration
}

func NewWorker(queue TaskQueue, batch int, poll time.Duration) *Worker {
	if batch <= 0 {
		batch = 50
	}
	if poll <= 0 {
		poll = time.Second
	}

	return &Worker{
		queue:    queue,
		handlers: make(map[string]Handler),
		cron:     cron.New(),
		running:  mapset.NewSet[string](),
		batch:    batch,
		poll:     poll,
	}
}

// Handle registers the handler of a job.
func (w *Worker) Handle(job string, handler Handler) {
	w.handlers[job] = handler
}

// AddCronJob schedules a periodic job next to the queue polling.
func (w *Worker) AddCronJob(job CronJob) {
	w.cronJobs = append(w.cronJobs, job)
}

// Execute runs the handler registered for the task.
func (w *Worker) Execute(ctx context.Context, task *model.Task) error {
	handler, ok := w.handlers[task.Job]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, task.Job)
	}

	return handler(queue.Context(ctx, task), task)
}

// RunOnce claims one batch of due tasks and runs them. It returns the number of tasks claimed.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	tasks, err := w.queue.Claim(ctx, w.batch)
	if err != nil {
		return 0, err
	}

	for _, task := range tasks {
		log := logrus.WithFields(logrus.Fields{"job": task.Job, "task": task.ID, "tenant": task.Tenant})

		err := w.Execute(ctx, task)
		if err == nil {
			if err := w.queue.Complete(ctx, task); err != nil {
				log.Errorf("failed to complete task: %v", err)
			}
			continue
		}

		terminal, ferr := w.queue.Fail(ctx, task, err)
		if ferr != nil {
			log.Errorf("failed to record task failure: %v", ferr)
			continue
		}
		if terminal {
			log.Errorf("task failed after %d attempts: %v", task.Attempts, err)
		} else {
			log.Warnf("task attempt %d failed, retry at %s: %v", task.Attempts, task.RunAt.Format(time.RFC3339), err)
		}
	}

	return len(tasks), nil
}

// Drain runs tasks until nothing is due, tasks enqueued by handlers are included.
func (w *Worker) Drain(ctx context.Context) error {
	for {
		n, err := w.RunOnce(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// guard runs f unless a run with the same name is still in progress.
func (w *Worker) guard(name string, f func()) {
	w.mu.Lock()
	if w.running.Contains(name) {
		w.mu.Unlock()
		logrus.Debugf("%s is already running", name)
		return
	}
	w.running.Add(name)
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.running.Remove(name)
	}()

	f()
}

// Run starts polling and the cron jobs, it blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	err := w.cron.AddFunc(fmt.Sprintf("@every %s", w.poll), func() {
		w.guard("queue", func() {
			if err := w.Drain(ctx); err != nil && ctx.Err() == nil {
				logrus.Errorf("failed to run queued tasks: %v", err)
			}
		})
	})
	if err != nil {
		return err
	}

	for i, job := range w.cronJobs {
		name := fmt.Sprintf("cron-%d", i)
		err := w.cron.AddFunc(job.Schedule(), func() {
			w.guard(name, job.Run)
		})
		if err != nil {
			logrus.Errorf("failed to add task to cron: %v", err)
			return err
		}
	}

	logrus.Infof("worker started, polling every %s", w.poll)
	w.cron.Start()
	<-ctx.Done()
	w.Stop()

	return nil
}

func (w *Worker) Stop() {
	logrus.Infof("stopping all tasks")
	w.cron.Stop()
}
