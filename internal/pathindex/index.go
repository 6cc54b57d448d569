package pathindex

import (
	"context"
	"errors"

	"github.com/emrgen/wikinote/internal/apperr"
	"github.com/emrgen/wikinote/internal/model"
	"github.com/emrgen/wikinote/internal/pathcodec"
	"github.com/emrgen/wikinote/internal/queue"
	"github.com/emrgen/wikinote/internal/store"
	"github.com/sirupsen/logrus"
)

// JobCreate builds the index entry of a newly created page.
const JobCreate = "pathindex.create"

type CreatePayload struct {
	PageID uint64 `json:"page_id"`
	Path   string `json:"path"`
}

// CreateTask schedules indexing of a page.
func CreateTask(ctx context.Context, pageID uint64, path string) (queue.Task, error) {
	return queue.NewTask(ctx, JobCreate, CreatePayload{PageID: pageID, Path: path})
}

// Build returns the index entry of a page at path. The last prefix is the path itself.
func Build(pageID uint64, path string) (*model.PathIndexEntry, error) {
	prefixes, err := pathcodec.Prefixes(path)
	if err != nil {
		return nil, err
	}

	entry := &model.PathIndexEntry{
		PageID:   pageID,
		Path:     path,
		Depth:    len(prefixes),
		Prefixes: make([]model.PathPrefix, len(prefixes)),
	}
	for i, prefix := range prefixes {
		entry.Prefixes[i] = model.PathPrefix{PageID: pageID, Position: i, Prefix: prefix}
	}

	return entry, nil
}

// Index keeps the ancestor prefixes of every page for cluster lookups.
type Index struct {
	store store.Store
}

func New(store store.Store) *Index {
	return &Index{store: store}
}

// Put replaces the index entry of a page. Use it with a transaction store to
// keep the entry in step with a page write.
func Put(ctx context.Context, s store.PathIndexStore, pageID uint64, path string) error {
	entry, err := Build(pageID, path)
	if err != nil {
		return err
	}

	return s.PutPathIndex(ctx, entry)
}

func (i *Index) Put(ctx context.Context, pageID uint64, path string) error {
	return Put(ctx, i.store, pageID, path)
}

func (i *Index) Get(ctx context.Context, pageID uint64) (*model.PathIndexEntry, error) {
	return i.store.GetPathIndex(ctx, pageID)
}

func (i *Index) Delete(ctx context.Context, pageID uint64) error {
	return i.store.DeletePathIndex(ctx, pageID)
}

// PagesUnder returns the ids of the pages in the cluster of prefix, the page at prefix included.
func (i *Index) PagesUnder(ctx context.Context, prefix string) ([]uint64, error) {
	prefix, err := pathcodec.Normalize(prefix)
	if err != nil {
		return nil, err
	}

	return i.store.ListPageIDsUnder(ctx, prefix)
}

// Prefixes returns the ancestors of a page from the root to the page itself. The
// entry is created asynchronously, until then the prefixes are derived from the path.
func (i *Index) Prefixes(ctx context.Context, page *model.Page) ([]string, error) {
	entry, err := i.store.GetPathIndex(ctx, page.ID)
	if err == nil && entry.Path == page.Path {
		return entry.Paths(), nil
	}
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	return pathcodec.Prefixes(page.Path)
}

// HandleCreate indexes a page at its current path. A page deleted in the meantime is skipped.
func (i *Index) HandleCreate(ctx context.Context, task *model.Task) error {
	var payload CreatePayload
	if err := queue.Decode(task, &payload); err != nil {
		return err
	}

	page, err := i.store.GetPage(ctx, payload.PageID)
	if errors.Is(err, apperr.ErrNotFound) {
		logrus.Debugf("page %d is gone, skip indexing", payload.PageID)
		return nil
	}
	if err != nil {
		return err
	}

	return i.Put(ctx, page.ID, page.Path)
}
