package pathindex_test

import (
	"context"
	"testing"

	"github.com/emrgen/wikinote/internal/apperr"
	"github.com/emrgen/wikinote/internal/model"
	"github.com/emrgen/wikinote/internal/pathindex"
	"github.com/emrgen/wikinote/internal/store"
	"github.com/emrgen/wikinote/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	entry, err := pathindex.Build(7, "/a/b/c")
	require.NoError(t, err)

	assert.Equal(t, 4, entry.Depth)
	assert.Equal(t, []string{"/", "/a", "/a/b", "/a/b/c"}, entry.Paths())

	root, err := pathindex.Build(1, "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"/"}, root.Paths())

	_, err = pathindex.Build(1, "a")
	assert.ErrorIs(t, err, apperr.ErrInvalidPath)
}

func TestIndex_PagesUnder(t *testing.T) {
	ctx := context.Background()
	s := store.NewGormStore(tester.TestDB(t))
	index := pathindex.New(s)

	require.NoError(t, index.Put(ctx, 1, "/a"))
	require.NoError(t, index.Put(ctx, 2, "/a/x"))
	require.NoError(t, index.Put(ctx, 3, "/a/x/y"))
	require.NoError(t, index.Put(ctx, 4, "/ab"))

	ids, err := index.PagesUnder(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, ids)

	ids, err = index.PagesUnder(ctx, "/A/X/")
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3}, ids)

	// another tenant has its own index
	ids, err = index.PagesUnder(store.WithTenant(ctx, "acme"), "/a")
	require.NoError(t, err)
	assert.Empty(t, ids)

	// a put replaces the prefixes
	require.NoError(t, index.Put(ctx, 3, "/b/y"))
	ids, err = index.PagesUnder(ctx, "/a/x")
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, ids)

	entry, err := index.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "/b/y", entry.Path)
	assert.Equal(t, []string{"/", "/b", "/b/y"}, entry.Paths())

	require.NoError(t, index.Delete(ctx, 3))
	_, err = index.Get(ctx, 3)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestIndex_Prefixes(t *testing.T) {
	ctx := context.Background()
	s := store.NewGormStore(tester.TestDB(t))
	index := pathindex.New(s)

	page := &model.Page{Path: "/docs/intro", Name: "intro"}
	require.NoError(t, s.CreatePage(ctx, page))

	// derived from the path until the entry is built
	prefixes, err := index.Prefixes(ctx, page)
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/docs", "/docs/intro"}, prefixes)

	task, err := pathindex.CreateTask(ctx, page.ID, page.Path)
	require.NoError(t, err)
	require.NoError(t, index.HandleCreate(ctx, &model.Task{Job: task.Job, Payload: task.Payload}))

	entry, err := index.Get(ctx, page.ID)
	require.NoError(t, err)
	assert.Equal(t, page.Path, entry.Path)

	prefixes, err = index.Prefixes(ctx, page)
	require.NoError(t, err)
	assert.Equal(t, page.Path, prefixes[len(prefixes)-1])

	// a stale entry is ignored
	page.Path = "/guide/intro"
	prefixes, err = index.Prefixes(ctx, page)
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/guide", "/guide/intro"}, prefixes)
}

func TestIndex_HandleCreateDeletedPage(t *testing.T) {
	ctx := context.Background()
	s := store.NewGormStore(tester.TestDB(t))
	index := pathindex.New(s)

	task, err := pathindex.CreateTask(ctx, 42, "/gone")
	require.NoError(t, err)
	require.NoError(t, index.HandleCreate(ctx, &model.Task{Job: task.Job, Payload: task.Payload}))

	_, err = index.Get(ctx, 42)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
