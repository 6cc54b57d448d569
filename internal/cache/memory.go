package cache

import (
	"context"
	"sync"

	"github.com/emrgen/wikinote/internal/model"
)

var _ PageCache = (*MemoryPageCache)(nil)

// MemoryPageCache keeps copies of pages in process memory, used for a single node and in tests.
type MemoryPageCache struct {
	mu    sync.RWMutex
	pages map[string]model.Page
	files map[string][]model.File
}

func NewMemoryPageCache() *MemoryPageCache {
	return &MemoryPageCache{
		pages: make(map[string]model.Page),
		files: make(map[string][]model.File),
	}
}

func (m *MemoryPageCache) GetPage(ctx context.Context, path string) (*model.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	page, ok := m.pages[pageKey(ctx, path)]
	if !ok {
		return nil, nil
	}

	return &page, nil
}

func (m *MemoryPageCache) SetPage(ctx context.Context, path string, page *model.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pages[pageKey(ctx, path)] = *page
	return nil
}

func (m *MemoryPageCache) DeletePage(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.pages, pageKey(ctx, path))
	return nil
}

func (m *MemoryPageCache) GetFiles(ctx context.Context, path string) ([]*model.File, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files, ok := m.files[filesKey(ctx, path)]
	if !ok {
		return nil, false, nil
	}

	result := make([]*model.File, len(files))
	for i := range files {
		file := files[i]
		result[i] = &file
	}

	return result, true, nil
}

func (m *MemoryPageCache) SetFiles(ctx context.Context, path string, files []*model.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]model.File, len(files))
	for i, file := range files {
		copied[i] = *file
	}
	m.files[filesKey(ctx, path)] = copied
	return nil
}

func (m *MemoryPageCache) DeleteFiles(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.files, filesKey(ctx, path))
	return nil
}

// Len returns the number of cached pages.
func (m *MemoryPageCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.pages)
}
