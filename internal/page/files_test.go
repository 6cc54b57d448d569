package page_test

import (
	"context"
	"testing"

	"github.com/emrgen/wikinote/internal/apperr"
	"github.com/emrgen/wikinote/internal/page"
	"github.com/emrgen/wikinote/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_Files(t *testing.T) {
	ctx := context.Background()
	env := tester.NewApp(t)

	_, err := env.Pages.CreatePage(ctx, "/gallery", "", 1, "")
	require.NoError(t, err)

	files, err := env.Pages.Files(ctx, "/gallery")
	require.NoError(t, err)
	assert.Empty(t, files)

	m, err := env.Pages.AttachFile(ctx, "/gallery", "cat.png", 1, []byte("meow"))
	require.NoError(t, err)
	assert.Equal(t, 1, m.Page.FileCount)
	assert.Equal(t, int64(4), m.File.Size)
	first := m.File.BlobRef

	// the cached empty list was dropped
	files, err = env.Pages.Files(ctx, "/gallery")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "cat.png", files[0].Name)

	file, data, err := env.Pages.OpenFile(ctx, "/gallery", "cat.png")
	require.NoError(t, err)
	assert.Equal(t, "meow", string(data))
	assert.Equal(t, first, file.BlobRef)

	// same name replaces the file and deletes the old blob later
	m, err = env.Pages.AttachFile(ctx, "/gallery", "cat.png", 1, []byte("purr"))
	require.NoError(t, err)
	assert.Equal(t, 1, m.Page.FileCount)
	assert.Contains(t, m.Jobs(), page.JobDeleteBlobs)

	env.Drain(t)
	_, err = env.Blobs.Fetch(ctx, first)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, data, err = env.Pages.OpenFile(ctx, "/gallery", "cat.png")
	require.NoError(t, err)
	assert.Equal(t, "purr", string(data))

	m, err = env.Pages.DetachFile(ctx, "/gallery", "cat.png")
	require.NoError(t, err)
	assert.Zero(t, m.Page.FileCount)
	env.Drain(t)

	_, err = env.Blobs.Fetch(ctx, m.File.BlobRef)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = env.Pages.DetachFile(ctx, "/gallery", "cat.png")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = env.Pages.AttachFile(ctx, "/gallery", "../evil", 1, []byte("x"))
	assert.ErrorIs(t, err, apperr.ErrInvalidPath)

	_, err = env.Pages.AttachFile(ctx, "/missing", "a.txt", 1, []byte("x"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRepository_DeletePageRemovesBlobs(t *testing.T) {
	ctx := context.Background()
	env := tester.NewApp(t)

	_, err := env.Pages.CreatePage(ctx, "/docs", "", 1, "")
	require.NoError(t, err)
	m, err := env.Pages.AttachFile(ctx, "/docs", "a.txt", 1, []byte("a"))
	require.NoError(t, err)

	deleted, err := env.Pages.DeletePage(ctx, "/docs")
	require.NoError(t, err)
	assert.Contains(t, deleted.Jobs(), page.JobDeleteBlobs)

	env.Drain(t)
	_, err = env.Blobs.Fetch(ctx, m.File.BlobRef)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
