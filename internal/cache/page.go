package cache

import (
	"context"

	"github.com/emrgen/wikinote/internal/model"
	"github.com/emrgen/wikinote/internal/store"
)

const (
	pagePrefix  = "page:"
	filesPrefix = "files:"
)

// pageKey is tenant scoped so two wikis never share a cached page.
func pageKey(ctx context.Context, path string) string {
	return pagePrefix + store.Tenant(ctx) + ":" + path
}

func filesKey(ctx context.Context, path string) string {
	return filesPrefix + store.Tenant(ctx) + ":" + path
}

// PageCache is a disposable read accelerator for pages and their file lists.
// Entries may disappear at any time, a miss always falls back to the store.
type PageCache interface {
	// GetPage gets a page from the cache, nil on miss.
	GetPage(ctx context.Context, path string) (*model.Page, error)
	// SetPage sets a page in the cache.
	SetPage(ctx context.Context, path string, page *model.Page) error
	// DeletePage deletes a page from the cache.
	DeletePage(ctx context.Context, path string) error
	// GetFiles gets the file list of a page, ok is false on miss.
	GetFiles(ctx context.Context, path string) (files []*model.File, ok bool, err error)
	// SetFiles sets the file list of a page.
	SetFiles(ctx context.Context, path string, files []*model.File) error
	// DeleteFiles deletes the file list of a page.
	DeleteFiles(ctx context.Context, path string) error
}
