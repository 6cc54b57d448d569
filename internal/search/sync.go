package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emrgen/wikinote/internal/apperr"
	"github.com/emrgen/wikinote/internal/model"
	"github.com/emrgen/wikinote/internal/pathcodec"
	"github.com/emrgen/wikinote/internal/queue"
	"github.com/emrgen/wikinote/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"
	"golang.org/x/net/html"
)

const (
	JobSync   = "search.sync"
	JobRemove = "search.remove"
)

type Payload struct {
	PageID uint64 `json:"page_id"`
}

// Sync projects pages into the search backend. The index is never a source of
// truth, every call reads the current page and is safe to replay.
type Sync struct {
	pages   store.PageStore
	backend Backend
	queue   queue.Queue
	now     func() time.Time
}

func NewSync(pages store.PageStore, backend Backend, queue queue.Queue) *Sync {
	return &Sync{pages: pages, backend: backend, queue: queue, now: time.Now}
}

func (s *Sync) SyncTask(ctx context.Context, pageID uint64) (queue.Task, error) {
	return queue.NewTask(ctx, JobSync, Payload{PageID: pageID})
}

func (s *Sync) RemoveTask(ctx context.Context, pageID uint64) (queue.Task, error) {
	return queue.NewTask(ctx, JobRemove, Payload{PageID: pageID})
}

// Sync upserts the document of a page. The write is skipped when nothing changed,
// a page that no longer exists is removed from the index.
func (s *Sync) Sync(ctx context.Context, pageID uint64) error {
	page, err := s.pages.GetPage(ctx, pageID)
	if errors.Is(err, apperr.ErrNotFound) {
		return s.Remove(ctx, pageID)
	}
	if err != nil {
		return err
	}

	doc := Document(page)
	doc.UpdatedAt = s.now()

	old, err := s.backend.Get(ctx, pageID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("%w: search: %v", apperr.ErrDownstreamUnavailable, err)
	}
	if old != nil && old.Checksum == doc.Checksum {
		logrus.Debugf("search document of page %d is up to date", pageID)
		return nil
	}

	if err := s.backend.Upsert(ctx, doc); err != nil {
		return fmt.Errorf("%w: search: %v", apperr.ErrDownstreamUnavailable, err)
	}

	return nil
}

func (s *Sync) Remove(ctx context.Context, pageID uint64) error {
	if err := s.backend.Delete(ctx, pageID); err != nil {
		return fmt.Errorf("%w: search: %v", apperr.ErrDownstreamUnavailable, err)
	}

	return nil
}

// Query returns the pages matching text, best match first.
func (s *Sync) Query(ctx context.Context, text string, limit int) ([]*model.Page, error) {
	ids, err := s.backend.Query(ctx, text, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", apperr.ErrDownstreamUnavailable, err)
	}

	pages, err := s.pages.ListPagesFromIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[uint64]*model.Page, len(pages))
	for _, p := range pages {
		byID[p.ID] = p
	}
	ordered := make([]*model.Page, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}

	return ordered, nil
}

// Reindex schedules a sync of every page of the tenant.
func (s *Sync) Reindex(ctx context.Context) (int, error) {
	ids, err := s.pages.ListPageIDs(ctx)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		task, err := s.SyncTask(ctx, id)
		if err != nil {
			return 0, err
		}
		if err := queue.Submit(ctx, s.queue, task); err != nil {
			return 0, err
		}
	}

	return len(ids), nil
}

func (s *Sync) HandleSync(ctx context.Context, task *model.Task) error {
	var payload Payload
	if err := queue.Decode(task, &payload); err != nil {
		return err
	}

	return s.Sync(ctx, payload.PageID)
}

func (s *Sync) HandleRemove(ctx context.Context, task *model.Task) error {
	var payload Payload
	if err := queue.Decode(task, &payload); err != nil {
		return err
	}

	return s.Remove(ctx, payload.PageID)
}

// Document builds the search document of a page.
func Document(page *model.Page) *model.SearchDocument {
	doc := &model.SearchDocument{
		PageID:  page.ID,
		Name:    page.Name,
		Segment: pathcodec.LastSegment(page.Path),
		Content: Text(page.HTML),
	}

	h := xxh3.New()
	for _, field := range []string{doc.Name, doc.Segment, doc.Content} {
		_, _ = h.WriteString(field)
		_, _ = h.Write([]byte{0})
	}
	// stored signed, sql drivers reject uint64 values with the high bit set
	doc.Checksum = int64(h.Sum64())

	return doc
}

// Text extracts the visible text of an html fragment.
func Text(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var parts []string
	skip := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(parts, " ")
		case html.StartTagToken:
			if name, _ := z.TagName(); isHidden(string(name)) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isHidden(string(name)) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			if text := strings.Join(strings.Fields(string(z.Text())), " "); text != "" {
				parts = append(parts, text)
			}
		}
	}
}

func isHidden(tag string) bool {
	return tag == "script" || tag == "style"
}
