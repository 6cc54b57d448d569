package page

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emrgen/wikinote/internal/apperr"
	"github.com/emrgen/wikinote/internal/model"
	"github.com/emrgen/wikinote/internal/queue"
	"github.com/emrgen/wikinote/internal/store"
	"github.com/sirupsen/logrus"
)

// JobDeleteBlobs removes the blobs of detached or deleted files.
const JobDeleteBlobs = "page.files.delete"

type DeleteBlobsPayload struct {
	Refs []string `json:"refs"`
}

func DeleteBlobsTask(ctx context.Context, refs []string) (queue.Task, error) {
	return queue.NewTask(ctx, JobDeleteBlobs, DeleteBlobsPayload{Refs: refs})
}

// AttachFile stores data as a file of the page. A file with the same name is replaced.
func (r *Repository) AttachFile(ctx context.Context, path, name string, authorID uint64, data []byte) (*Mutation, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, "/\\") {
		return nil, fmt.Errorf("%w: file name %q", apperr.ErrInvalidPath, name)
	}

	path, page, err := r.getPage(ctx, path)
	if err != nil {
		return nil, err
	}

	ref, err := r.blobs.Store(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: blob: %v", apperr.ErrDownstreamUnavailable, err)
	}

	file := &model.File{
		PageID:     page.ID,
		Name:       name,
		Size:       int64(len(data)),
		UploadedAt: time.Now(),
		AuthorID:   authorID,
		BlobRef:    ref,
	}

	var replaced []string
	err = r.store.Transaction(ctx, func(tx store.Store) error {
		old, err := tx.GetFileByName(ctx, page.ID, name)
		if err == nil {
			if err := tx.DeleteFile(ctx, old.ID); err != nil {
				return err
			}
			replaced = append(replaced, old.BlobRef)
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}

		if err := tx.CreateFile(ctx, file); err != nil {
			return err
		}
		return r.countFiles(ctx, tx, page)
	})
	if err != nil {
		if derr := r.blobs.Delete(ctx, ref); derr != nil {
			logrus.Warnf("failed to delete orphan blob %s: %v", ref, derr)
		}
		return nil, err
	}

	m := &Mutation{Page: page, File: file}
	r.filesChanged(ctx, m, path, page, replaced)

	return m, nil
}

// DetachFile removes a file from the page, the blob is deleted by a queued task.
func (r *Repository) DetachFile(ctx context.Context, path, name string) (*Mutation, error) {
	path, page, err := r.getPage(ctx, path)
	if err != nil {
		return nil, err
	}

	var file *model.File
	err = r.store.Transaction(ctx, func(tx store.Store) error {
		file, err = tx.GetFileByName(ctx, page.ID, name)
		if err != nil {
			return err
		}
		if err := tx.DeleteFile(ctx, file.ID); err != nil {
			return err
		}
		return r.countFiles(ctx, tx, page)
	})
	if err != nil {
		return nil, err
	}

	m := &Mutation{Page: page, File: file}
	r.filesChanged(ctx, m, path, page, []string{file.BlobRef})

	return m, nil
}

// Files lists the files of the page at path, ordered by name.
func (r *Repository) Files(ctx context.Context, path string) ([]*model.File, error) {
	page, err := r.ReadPage(ctx, path)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, fmt.Errorf("%w: page %s", apperr.ErrNotFound, path)
	}

	files, ok, err := r.cache.GetFiles(ctx, page.Path)
	if err != nil {
		r.cacheFailed("get files", page.Path, err)
	}
	if ok {
		return files, nil
	}

	files, err = r.store.ListFiles(ctx, page.ID)
	if err != nil {
		return nil, err
	}
	if err := r.cache.SetFiles(ctx, page.Path, files); err != nil {
		r.cacheFailed("set files", page.Path, err)
	}

	return files, nil
}

// OpenFile returns a file of the page at path with its content.
func (r *Repository) OpenFile(ctx context.Context, path, name string) (*model.File, []byte, error) {
	_, page, err := r.getPage(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	file, err := r.store.GetFileByName(ctx, page.ID, name)
	if err != nil {
		return nil, nil, err
	}

	data, err := r.blobs.Fetch(ctx, file.BlobRef)
	if err != nil {
		return nil, nil, err
	}

	return file, data, nil
}

// HandleDeleteBlobs deletes blobs, missing ones are ignored.
func (r *Repository) HandleDeleteBlobs(ctx context.Context, task *model.Task) error {
	var payload DeleteBlobsPayload
	if err := queue.Decode(task, &payload); err != nil {
		return err
	}

	for _, ref := range payload.Refs {
		if err := r.blobs.Delete(ctx, ref); err != nil {
			return err
		}
	}

	return nil
}

func (r *Repository) countFiles(ctx context.Context, tx store.Store, page *model.Page) error {
	files, err := tx.ListFiles(ctx, page.ID)
	if err != nil {
		return err
	}
	page.FileCount = len(files)

	return tx.UpdatePageFields(ctx, page, "file_count")
}

func (r *Repository) filesChanged(ctx context.Context, m *Mutation, path string, page *model.Page, refs []string) {
	if err := r.cache.DeleteFiles(ctx, path); err != nil {
		r.cacheFailed("delete files", path, err)
	}
	r.cachePage(ctx, page)

	if len(refs) > 0 {
		task, err := DeleteBlobsTask(ctx, refs)
		r.submit(ctx, m, task, err)
	}
	r.schedule(ctx, m, r.notifier.NotifyTask, page.ID)
}
