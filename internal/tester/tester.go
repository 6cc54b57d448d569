package tester

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/emrgen/wikinote/internal/app"
	"github.com/emrgen/wikinote/internal/blob"
	"github.com/emrgen/wikinote/internal/cache"
	"github.com/emrgen/wikinote/internal/compress"
	"github.com/emrgen/wikinote/internal/identity"
	"github.com/emrgen/wikinote/internal/mail"
	"github.com/emrgen/wikinote/internal/model"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB opens a migrated sqlite database in a temp dir of the test.
func TestDB(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "wikinote.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// sqlite allows one writer, a single connection keeps transactions from locking each other out
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, model.Migrate(db))

	return db
}

// Env is an app backed by a test database with an in-memory cache and a recording mail sender.
type Env struct {
	*app.App
	Mail  *mail.Recorder
	Cache *cache.MemoryPageCache
}

// NewApp builds the app the way the server does, with test collaborators.
func NewApp(t testing.TB) *Env {
	t.Helper()

	blobs, err := blob.NewFS(t.TempDir())
	require.NoError(t, err)

	recorder := mail.NewRecorder()
	memory := cache.NewMemoryPageCache()

	a, err := app.New(TestDB(t), app.Options{
		Cache:       memory,
		Mail:        recorder,
		Blobs:       blobs,
		Codec:       compress.NewGZip(),
		Domain:      "wikinote.test",
		From:        "admin@wikinote.test",
		MaxAttempts: 3,
		Backoff:     time.Minute,
		Retention:   time.Hour,
	})
	require.NoError(t, err)

	return &Env{App: a, Mail: recorder, Cache: memory}
}

// Drain runs queued tasks until none is due.
func (e *Env) Drain(t testing.TB) {
	t.Helper()
	require.NoError(t, e.Worker.Drain(context.Background()))
}

// User creates an approved user and returns a context acting as them.
func (e *Env) User(t testing.TB, name string) (context.Context, *model.User) {
	t.Helper()

	now := time.Now()
	user := &model.User{Name: name, Email: name + "@wikinote.test", ApprovedAt: &now}
	require.NoError(t, e.Store.CreateUser(context.Background(), user))

	return As(context.Background(), user), user
}

// As returns ctx acting as the user.
func As(ctx context.Context, user *model.User) context.Context {
	return identity.WithRequester(ctx, &identity.Requester{ID: user.ID, Admin: user.Admin, Approved: user.Approved()})
}

// Admin returns ctx acting as an administrator.
func Admin(ctx context.Context) context.Context {
	return identity.WithRequester(ctx, &identity.Requester{ID: 1 << 32, Admin: true, Approved: true})
}
