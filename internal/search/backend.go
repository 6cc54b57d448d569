package search

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/emrgen/wikinote/internal/apperr"
	"github.com/emrgen/wikinote/internal/model"
	"github.com/emrgen/wikinote/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Field weights of a match.
const (
	WeightName    = 3
	WeightContent = 2
	WeightSegment = 1
)

// Backend is the search index. Documents are keyed by page id.
type Backend interface {
	Upsert(ctx context.Context, doc *model.SearchDocument) error
	Delete(ctx context.Context, pageID uint64) error
	// Get returns apperr.ErrNotFound for pages that are not indexed.
	Get(ctx context.Context, pageID uint64) (*model.SearchDocument, error)
	// Query returns page ids ordered by relevance.
	Query(ctx context.Context, text string, limit int) ([]uint64, error)
}

var _ Backend = (*GormBackend)(nil)

// GormBackend keeps search documents in a table and ranks matches by field weight.
type GormBackend struct {
	db *gorm.DB
}

func NewGormBackend(db *gorm.DB) *GormBackend {
	return &GormBackend{db: db}
}

func (g *GormBackend) scoped(ctx context.Context) *gorm.DB {
	return g.db.WithContext(ctx).Where("tenant = ?", store.Tenant(ctx))
}

func (g *GormBackend) Upsert(ctx context.Context, doc *model.SearchDocument) error {
	doc.Tenant = store.Tenant(ctx)
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant"}, {Name: "page_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "segment", "content", "checksum", "updated_at"}),
	}).Create(doc).Error
}

func (g *GormBackend) Delete(ctx context.Context, pageID uint64) error {
	return g.scoped(ctx).Where("page_id = ?", pageID).Delete(&model.SearchDocument{}).Error
}

func (g *GormBackend) Get(ctx context.Context, pageID uint64) (*model.SearchDocument, error) {
	var doc model.SearchDocument
	err := g.scoped(ctx).Where("page_id = ?", pageID).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

func (g *GormBackend) Query(ctx context.Context, text string, limit int) ([]uint64, error) {
	terms := strings.Fields(strings.ToLower(text))
	if len(terms) == 0 {
		return []uint64{}, nil
	}

	query := g.scoped(ctx)
	match := g.db.Session(&gorm.Session{NewDB: true})
	for _, term := range terms {
		like := "%" + escapeLike(term) + "%"
		match = match.Or("LOWER(name) LIKE ? ESCAPE '\\'", like).
			Or("LOWER(content) LIKE ? ESCAPE '\\'", like).
			Or("LOWER(segment) LIKE ? ESCAPE '\\'", like)
	}

	var docs []*model.SearchDocument
	if err := query.Where(match).Find(&docs).Error; err != nil {
		return nil, err
	}

	type hit struct {
		id    uint64
		score int
	}
	hits := make([]hit, 0, len(docs))
	for _, doc := range docs {
		if s := score(doc, terms); s > 0 {
			hits = append(hits, hit{id: doc.PageID, score: s})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].id < hits[j].id
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	ids := make([]uint64, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}

	return ids, nil
}

func score(doc *model.SearchDocument, terms []string) int {
	name := strings.ToLower(doc.Name)
	content := strings.ToLower(doc.Content)
	segment := strings.ToLower(doc.Segment)

	total := 0
	for _, term := range terms {
		if strings.Contains(name, term) {
			total += WeightName
		}
		if strings.Contains(content, term) {
			total += WeightContent
		}
		if strings.Contains(segment, term) {
			total += WeightSegment
		}
	}

	return total
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
