package page

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/emrgen/wikinote/internal/apperr"
	"github.com/emrgen/wikinote/internal/blob"
	"github.com/emrgen/wikinote/internal/cache"
	"github.com/emrgen/wikinote/internal/compress"
	"github.com/emrgen/wikinote/internal/markup"
	"github.com/emrgen/wikinote/internal/model"
	"github.com/emrgen/wikinote/internal/pathcodec"
	"github.com/emrgen/wikinote/internal/pathindex"
	"github.com/emrgen/wikinote/internal/queue"
	"github.com/emrgen/wikinote/internal/store"
	"github.com/sirupsen/logrus"
)

// SearchSync builds the tasks that keep the search index in step with pages.
type SearchSync interface {
	SyncTask(ctx context.Context, pageID uint64) (queue.Task, error)
	RemoveTask(ctx context.Context, pageID uint64) (queue.Task, error)
}

// Notifier builds the task that tells subscribers about a changed page.
type Notifier interface {
	NotifyTask(ctx context.Context, pageID uint64) (queue.Task, error)
}

// Mutation is the result of a write. The page and revision are durable when it
// is returned, the scheduled tasks run later.
type Mutation struct {
	Page       *model.Page
	RevisionID uint64
	File       *model.File
	// RenderErr is set when the text could not be rendered, the raw text was stored escaped.
	RenderErr error
	// Scheduled lists the tasks that were enqueued.
	Scheduled []queue.Task
}

// Jobs returns the names of the scheduled tasks.
func (m *Mutation) Jobs() []string {
	jobs := make([]string, len(m.Scheduled))
	for i, t := range m.Scheduled {
		jobs[i] = t.Job
	}

	return jobs
}

// UpdateRequest is an edit of a page.
type UpdateRequest struct {
	Path     string
	Name     string
	AuthorID uint64
	Text     string
	Markup   model.Markup
	// PriorRevisionID resumes an edit, the revision is overwritten in place.
	PriorRevisionID uint64
	// ExpectedUpdated is the page timestamp the editor started from, compared at second precision.
	ExpectedUpdated *time.Time
}

// Repository owns pages and their revisions. Reads go through the cache, writes
// go to the store and schedule the index, search and notification work.
type Repository struct {
	store    store.Store
	cache    cache.PageCache
	queue    queue.Queue
	renderer markup.Renderer
	codec    compress.Compress
	blobs    blob.Store
	search   SearchSync
	notifier Notifier
}

func NewRepository(store store.Store, cache cache.PageCache, queue queue.Queue, renderer markup.Renderer, codec compress.Compress, blobs blob.Store, search SearchSync, notifier Notifier) *Repository {
	if codec == nil {
		codec = compress.NewNop()
	}

	return &Repository{
		store:    store,
		cache:    cache,
		queue:    queue,
		renderer: renderer,
		codec:    codec,
		blobs:    blobs,
		search:   search,
		notifier: notifier,
	}
}

// CreatePage creates a page with its first revision. It fails with apperr.ErrConflict
// when a page exists at the normalized path.
func (r *Repository) CreatePage(ctx context.Context, path, name string, authorID uint64, text string) (*Mutation, error) {
	path, err := pathcodec.Normalize(path)
	if err != nil {
		return nil, err
	}

	m := &Mutation{}
	page := &model.Page{
		Path:     path,
		Name:     defaultName(name, path),
		AuthorID: authorID,
		Access:   model.AccessInherit,
	}
	page.HTML, m.RenderErr = r.render(text, model.MarkupWiki)

	revision, err := r.encode(text, model.MarkupWiki, authorID)
	if err != nil {
		return nil, err
	}

	err = r.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.CreatePage(ctx, page); err != nil {
			return err
		}
		revision.PageID = page.ID
		return tx.CreateRevision(ctx, revision)
	})
	if err != nil {
		return nil, err
	}

	m.Page = page
	m.RevisionID = revision.ID
	r.cachePage(ctx, page)
	r.schedule(ctx, m, indexTask(page.Path), page.ID)
	r.schedule(ctx, m, r.search.SyncTask, page.ID)

	logrus.Infof("page %s created by %d", page.Path, authorID)

	return m, nil
}

// UpdatePage stores a new revision of the page, or overwrites the prior revision
// when one is given. A missing page is created. A prior revision that is not the
// latest of the page, or an outdated timestamp, fails with apperr.ErrStaleWrite.
func (r *Repository) UpdatePage(ctx context.Context, req UpdateRequest) (*Mutation, error) {
	path, err := pathcodec.Normalize(req.Path)
	if err != nil {
		return nil, err
	}
	kind := req.Markup
	if kind == "" {
		kind = model.MarkupWiki
	}

	m := &Mutation{}
	html, renderErr := r.render(req.Text, kind)
	m.RenderErr = renderErr

	revision, err := r.encode(req.Text, kind, req.AuthorID)
	if err != nil {
		return nil, err
	}

	created := false
	var page *model.Page
	err = r.store.Transaction(ctx, func(tx store.Store) error {
		page, err = tx.GetPageByPath(ctx, path)
		if errors.Is(err, apperr.ErrNotFound) {
			if req.PriorRevisionID != 0 {
				return fmt.Errorf("%w: page %s does not exist", apperr.ErrStaleWrite, path)
			}
			created = true
			page = &model.Page{Path: path, Name: defaultName(req.Name, path), AuthorID: req.AuthorID, Access: model.AccessInherit, HTML: html}
			if err := tx.CreatePage(ctx, page); err != nil {
				return err
			}
			revision.PageID = page.ID
			return tx.CreateRevision(ctx, revision)
		}
		if err != nil {
			return err
		}

		if req.ExpectedUpdated != nil && req.ExpectedUpdated.Unix() != page.UpdatedAt.Unix() {
			return fmt.Errorf("%w: page %s changed at %s", apperr.ErrStaleWrite, path, page.UpdatedAt.Format(time.RFC3339))
		}

		if req.PriorRevisionID != 0 {
			prior, err := r.priorRevision(ctx, tx, page, req.PriorRevisionID)
			if err != nil {
				return err
			}
			prior.Content = revision.Content
			prior.Compression = revision.Compression
			prior.Markup = revision.Markup
			prior.AuthorID = revision.AuthorID
			if err := tx.UpdateRevision(ctx, prior); err != nil {
				return err
			}
			revision = prior
		} else {
			revision.PageID = page.ID
			if err := tx.CreateRevision(ctx, revision); err != nil {
				return err
			}
		}

		if req.Name != "" {
			page.Name = req.Name
		}
		page.HTML = html
		page.AuthorID = req.AuthorID
		return tx.UpdatePageFields(ctx, page, "name", "html", "author_id")
	})
	if err != nil {
		return nil, err
	}

	m.Page = page
	m.RevisionID = revision.ID
	r.cachePage(ctx, page)
	if created {
		r.schedule(ctx, m, indexTask(page.Path), page.ID)
	}
	r.schedule(ctx, m, r.search.SyncTask, page.ID)
	r.schedule(ctx, m, r.notifier.NotifyTask, page.ID)

	return m, nil
}

func (r *Repository) priorRevision(ctx context.Context, tx store.Store, page *model.Page, id uint64) (*model.Revision, error) {
	prior, err := tx.GetRevision(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("%w: revision %d does not exist", apperr.ErrStaleWrite, id)
	}
	if err != nil {
		return nil, err
	}
	if prior.PageID != page.ID {
		return nil, fmt.Errorf("%w: revision %d belongs to another page", apperr.ErrStaleWrite, id)
	}

	latest, err := tx.LatestRevision(ctx, page.ID)
	if err != nil {
		return nil, err
	}
	if latest.ID != prior.ID {
		return nil, fmt.Errorf("%w: revision %d is not the latest of %s", apperr.ErrStaleWrite, id, page.Path)
	}

	return prior, nil
}

// ReadPage returns the page at path, nil when there is none.
func (r *Repository) ReadPage(ctx context.Context, path string) (*model.Page, error) {
	path, err := pathcodec.Normalize(path)
	if err != nil {
		return nil, err
	}

	page, err := r.cache.GetPage(ctx, path)
	if err != nil {
		r.cacheFailed("get", path, err)
	}
	if page != nil {
		return page, nil
	}

	page, err = r.store.GetPageByPath(ctx, path)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r.cachePage(ctx, page)

	return page, nil
}

// getPage reads the page at a normalized path from the store, apperr.ErrNotFound when absent.
func (r *Repository) getPage(ctx context.Context, path string) (string, *model.Page, error) {
	path, err := pathcodec.Normalize(path)
	if err != nil {
		return "", nil, err
	}

	page, err := r.store.GetPageByPath(ctx, path)
	if err != nil {
		return path, nil, err
	}

	return path, page, nil
}

// DeletePage deletes the page, its index entry and file records. Revisions are kept.
func (r *Repository) DeletePage(ctx context.Context, path string) (*Mutation, error) {
	path, page, err := r.getPage(ctx, path)
	if err != nil {
		return nil, err
	}

	var refs []string
	err = r.store.Transaction(ctx, func(tx store.Store) error {
		files, err := tx.ListFiles(ctx, page.ID)
		if err != nil {
			return err
		}
		for _, f := range files {
			if err := tx.DeleteFile(ctx, f.ID); err != nil {
				return err
			}
			refs = append(refs, f.BlobRef)
		}
		if err := tx.DeletePathIndex(ctx, page.ID); err != nil {
			return err
		}
		return tx.DeletePage(ctx, page.ID)
	})
	if err != nil {
		return nil, err
	}

	m := &Mutation{Page: page}
	r.uncache(ctx, path)
	r.schedule(ctx, m, r.search.RemoveTask, page.ID)
	if len(refs) > 0 {
		task, err := DeleteBlobsTask(ctx, refs)
		r.submit(ctx, m, task, err)
	}

	logrus.Infof("page %s deleted", path)

	return m, nil
}

// SetAccess changes the access policy of a page, the user becomes its author.
func (r *Repository) SetAccess(ctx context.Context, path string, policy model.Access, userID uint64) (*Mutation, error) {
	switch policy {
	case model.AccessPrivate, model.AccessInherit, model.AccessPublic:
	default:
		return nil, fmt.Errorf("%w: %q", apperr.ErrInvalidPolicy, policy)
	}

	_, page, err := r.getPage(ctx, path)
	if err != nil {
		return nil, err
	}

	page.Access = policy
	page.AuthorID = userID
	if err := r.store.UpdatePageFields(ctx, page, "access", "author_id"); err != nil {
		return nil, err
	}
	r.cachePage(ctx, page)

	return &Mutation{Page: page}, nil
}

// Tree returns the cluster of path ordered by path.
func (r *Repository) Tree(ctx context.Context, path string) ([]*model.Page, error) {
	path, err := pathcodec.Normalize(path)
	if err != nil {
		return nil, err
	}

	ids, err := r.store.ListPageIDsUnder(ctx, path)
	if err != nil {
		return nil, err
	}
	pages, err := r.store.ListPagesFromIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].Path < pages[j].Path
	})

	return pages, nil
}

func (r *Repository) render(text string, kind model.Markup) (string, error) {
	html, err := r.renderer.Render(text, kind)
	if err != nil {
		logrus.Warnf("failed to render page, storing raw text: %v", err)
		return markup.Fallback(text), err
	}

	return html, nil
}

type taskBuilder func(ctx context.Context, pageID uint64) (queue.Task, error)

func indexTask(path string) taskBuilder {
	return func(ctx context.Context, pageID uint64) (queue.Task, error) {
		return pathindex.CreateTask(ctx, pageID, path)
	}
}

// schedule enqueues the task built for a page.
func (r *Repository) schedule(ctx context.Context, m *Mutation, build taskBuilder, pageID uint64) {
	task, err := build(ctx, pageID)
	r.submit(ctx, m, task, err)
}

// submit enqueues a task. Failures are logged, the mutation is already durable.
func (r *Repository) submit(ctx context.Context, m *Mutation, task queue.Task, err error) {
	if err == nil {
		err = queue.Submit(ctx, r.queue, task)
	}
	if err != nil {
		logrus.Errorf("failed to schedule %s: %v", task.Job, err)
		return
	}

	m.Scheduled = append(m.Scheduled, task)
}

func (r *Repository) cachePage(ctx context.Context, page *model.Page) {
	if err := r.cache.SetPage(ctx, page.Path, page); err != nil {
		r.cacheFailed("set", page.Path, err)
	}
}

func (r *Repository) uncache(ctx context.Context, path string) {
	if err := r.cache.DeletePage(ctx, path); err != nil {
		r.cacheFailed("delete", path, err)
	}
	if err := r.cache.DeleteFiles(ctx, path); err != nil {
		r.cacheFailed("delete files", path, err)
	}
}

func (r *Repository) cacheFailed(op, path string, err error) {
	logrus.Warnf("%v: cache %s %s: %v", apperr.ErrDownstreamUnavailable, op, path, err)
}

func defaultName(name, path string) string {
	if name != "" {
		return name
	}

	return pathcodec.LastSegment(path)
}
