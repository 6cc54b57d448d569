package app

import (
	"context"
	"time"

	"github.com/emrgen/wikinote/internal/access"
	"github.com/emrgen/wikinote/internal/blob"
	"github.com/emrgen/wikinote/internal/cache"
	"github.com/emrgen/wikinote/internal/compress"
	"github.com/emrgen/wikinote/internal/identity"
	"github.com/emrgen/wikinote/internal/job"
	"github.com/emrgen/wikinote/internal/jobs"
	"github.com/emrgen/wikinote/internal/mail"
	"github.com/emrgen/wikinote/internal/markup"
	"github.com/emrgen/wikinote/internal/notify"
	"github.com/emrgen/wikinote/internal/page"
	"github.com/emrgen/wikinote/internal/pathindex"
	"github.com/emrgen/wikinote/internal/queue"
	"github.com/emrgen/wikinote/internal/search"
	"github.com/emrgen/wikinote/internal/service"
	"github.com/emrgen/wikinote/internal/store"
	"github.com/emrgen/wikinote/internal/subscription"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Options select the collaborators of the app. Nil collaborators get the in-process defaults.
type Options struct {
	Cache cache.PageCache
	// Queue replaces the task table as the transport of new tasks.
	Queue   queue.Queue
	Mail    mail.Sender
	Blobs   blob.Store
	Codec   compress.Compress
	Domain  string
	From    string
	Batch   int
	Poll    time.Duration
	Backoff time.Duration
	// MaxAttempts is how many times a task runs before it is marked failed.
	MaxAttempts int
	Retention   time.Duration
	StuckAfter  time.Duration
	PurgeEvery  string
}

// App holds every component, built once per process.
type App struct {
	DB       *gorm.DB
	Store    *store.GormStore
	Cache    cache.PageCache
	Tasks    *queue.GormQueue
	Queue    queue.Queue
	Worker   *jobs.Worker
	Index    *pathindex.Index
	Registry *subscription.Registry
	Search   *search.Sync
	Notifier *notify.Dispatcher
	Pages    *page.Repository
	Gate     *access.Gate
	Resolver *access.Resolver
	Service  *service.PageService
	Users    *service.UserService
	Identity identity.Provider
	Mail     mail.Sender
	Blobs    blob.Store

	consumer *queue.KafkaConsumer
	closers  []func()
}

// New wires the app on top of an open database.
func New(db *gorm.DB, opts Options) (*App, error) {
	a := &App{DB: db}

	a.Store = store.NewGormStore(db)
	a.Tasks = queue.NewGormQueue(db, opts.MaxAttempts, opts.Backoff)
	a.Queue = opts.Queue
	if a.Queue == nil {
		a.Queue = a.Tasks
	}

	a.Cache = opts.Cache
	if a.Cache == nil {
		a.Cache = cache.NewMemoryPageCache()
	}
	a.Mail = opts.Mail
	if a.Mail == nil {
		a.Mail = mail.NewLogSender()
	}
	a.Blobs = opts.Blobs
	if a.Blobs == nil {
		fs, err := blob.NewFS("./.data/blobs")
		if err != nil {
			return nil, err
		}
		a.Blobs = fs
	}

	a.Index = pathindex.New(a.Store)
	a.Registry = subscription.NewRegistry(a.Store)
	a.Search = search.NewSync(a.Store, search.NewGormBackend(db), a.Queue)
	a.Notifier = notify.NewDispatcher(a.Store, a.Index, a.Registry, a.Queue, a.Mail, notify.Options{
		Domain: opts.Domain,
		From:   opts.From,
	})
	a.Pages = page.NewRepository(a.Store, a.Cache, a.Queue, markup.NewGoldmark(), opts.Codec, a.Blobs, a.Search, a.Notifier)

	a.Gate = access.NewGate()
	a.Resolver = access.NewResolver(a.Pages)
	a.Service = service.NewPageService(a.Gate, a.Resolver, a.Pages, a.Registry, a.Search)
	a.Users = service.NewUserService(a.Gate, a.Store)
	a.Identity = identity.NewHeaderProvider(a.Users)

	a.Worker = jobs.NewWorker(a.Tasks, opts.Batch, opts.Poll)
	a.register()
	a.Worker.AddCronJob(job.NewTaskPurger(a.Tasks, opts.PurgeEvery, opts.Retention, opts.StuckAfter))

	return a, nil
}

func (a *App) register() {
	a.Worker.Handle(pathindex.JobCreate, a.Index.HandleCreate)
	a.Worker.Handle(search.JobSync, a.Search.HandleSync)
	a.Worker.Handle(search.JobRemove, a.Search.HandleRemove)
	a.Worker.Handle(notify.JobNotify, a.Notifier.HandleNotify)
	a.Worker.Handle(notify.JobCluster, a.Notifier.HandleCluster)
	a.Worker.Handle(notify.JobDeliver, a.Notifier.HandleDeliver)
	a.Worker.Handle(page.JobMoveCluster, a.Pages.HandleMoveCluster)
	a.Worker.Handle(page.JobDeleteBlobs, a.Pages.HandleDeleteBlobs)
}

// Migrate creates or updates the tables.
func (a *App) Migrate() error {
	return a.Store.Migrate()
}

// RunWorker runs queued tasks until ctx is done.
func (a *App) RunWorker(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Worker.Run(ctx)
	})
	if a.consumer != nil {
		g.Go(func() error {
			return a.consumer.Run(ctx)
		})
	}

	return g.Wait()
}

// Close releases the connections of the app.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if err := a.Store.Close(); err != nil {
		logrus.Warnf("failed to close database: %v", err)
	}
}
