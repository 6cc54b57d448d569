package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/emrgen/wikinote/internal/apperr"
	"github.com/emrgen/wikinote/internal/model"
	"github.com/emrgen/wikinote/internal/store"
	"github.com/emrgen/wikinote/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormStore_Pages(t *testing.T) {
	ctx := context.Background()
	acme := store.WithTenant(ctx, "acme")
	s := store.NewGormStore(tester.TestDB(t))

	page := &model.Page{Path: "/docs", Name: "docs"}
	require.NoError(t, s.CreatePage(ctx, page))
	assert.NotZero(t, page.ID)
	assert.Equal(t, store.DefaultTenant, page.Tenant)

	err := s.CreatePage(ctx, &model.Page{Path: "/docs"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// the same path in another tenant is a different page
	require.NoError(t, s.CreatePage(acme, &model.Page{Path: "/docs"}))

	got, err := s.GetPageByPath(ctx, "/docs")
	require.NoError(t, err)
	assert.Equal(t, page.ID, got.ID)

	_, err = s.GetPage(acme, page.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	ids, err := s.ListPageIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{page.ID}, ids)

	page.Name = "Docs"
	require.NoError(t, s.UpdatePage(ctx, page))
	pages, err := s.ListPagesFromIDs(ctx, []uint64{page.ID})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "Docs", pages[0].Name)

	require.NoError(t, s.DeletePage(ctx, page.ID))
	assert.ErrorIs(t, s.DeletePage(ctx, page.ID), apperr.ErrNotFound)
}

func TestGormStore_UpdatePageFields(t *testing.T) {
	ctx := context.Background()
	s := store.NewGormStore(tester.TestDB(t))

	page := &model.Page{Path: "/docs", Name: "docs", HTML: "<p>one</p>"}
	require.NoError(t, s.CreatePage(ctx, page))

	stale := *page
	page.HTML = "<p>two</p>"
	require.NoError(t, s.UpdatePage(ctx, page))

	stale.FileCount = 3
	require.NoError(t, s.UpdatePageFields(ctx, &stale, "file_count"))
	assert.Equal(t, 3, stale.FileCount)
	assert.Equal(t, "<p>two</p>", stale.HTML)

	got, err := s.GetPage(ctx, page.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.FileCount)
	assert.Equal(t, "<p>two</p>", got.HTML)

	missing := &model.Page{ID: page.ID + 100, Path: "/gone"}
	assert.ErrorIs(t, s.UpdatePageFields(ctx, missing, "path"), apperr.ErrNotFound)

	// pages of another tenant are not written
	assert.ErrorIs(t, s.UpdatePageFields(store.WithTenant(ctx, "acme"), &stale, "file_count"), apperr.ErrNotFound)
}

func TestGormStore_Revisions(t *testing.T) {
	ctx := context.Background()
	s := store.NewGormStore(tester.TestDB(t))

	_, err := s.LatestRevision(ctx, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	for _, text := range []string{"a", "b", "c"} {
		require.NoError(t, s.CreateRevision(ctx, &model.Revision{PageID: 1, Content: []byte(text), Compression: "nop"}))
	}
	require.NoError(t, s.CreateRevision(ctx, &model.Revision{PageID: 2, Content: []byte("x"), Compression: "nop"}))

	revisions, err := s.ListRevisions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, revisions, 3)
	assert.Equal(t, "c", string(revisions[0].Content))

	latest, err := s.LatestRevision(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, revisions[0].ID, latest.ID)

	latest.Content = []byte("d")
	require.NoError(t, s.UpdateRevision(ctx, latest))
	got, err := s.GetRevision(ctx, latest.ID)
	require.NoError(t, err)
	assert.Equal(t, "d", string(got.Content))
}

func TestGormStore_Transaction(t *testing.T) {
	ctx := context.Background()
	s := store.NewGormStore(tester.TestDB(t))

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(tx store.Store) error {
		if err := tx.CreatePage(ctx, &model.Page{Path: "/rollback"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetPageByPath(ctx, "/rollback")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGormStore_Files(t *testing.T) {
	ctx := context.Background()
	s := store.NewGormStore(tester.TestDB(t))

	file := &model.File{PageID: 1, Name: "a.txt", BlobRef: "ref-a"}
	require.NoError(t, s.CreateFile(ctx, file))
	assert.ErrorIs(t, s.CreateFile(ctx, &model.File{PageID: 1, Name: "a.txt", BlobRef: "ref-b"}), apperr.ErrConflict)
	require.NoError(t, s.CreateFile(ctx, &model.File{PageID: 1, Name: "b.txt", BlobRef: "ref-b"}))

	files, err := s.ListFiles(ctx, 1)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.txt", files[0].Name)

	got, err := s.GetFileByName(ctx, 1, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, file.ID, got.ID)

	require.NoError(t, s.DeleteFile(ctx, file.ID))
	_, err = s.GetFileByName(ctx, 1, "a.txt")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTenant(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, store.DefaultTenant, store.Tenant(ctx))
	assert.Equal(t, store.DefaultTenant, store.Tenant(store.WithTenant(ctx, "")))
	assert.Equal(t, "acme", store.Tenant(store.WithTenant(ctx, "acme")))
}
