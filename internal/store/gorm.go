package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/emrgen/wikinote/internal/apperr"
	"github.com/emrgen/wikinote/internal/model"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db: db,
	}
}

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db *gorm.DB
}

// scoped limits the query to the tenant of ctx.
func (g *GormStore) scoped(ctx context.Context) *gorm.DB {
	return g.db.WithContext(ctx).Where("tenant = ?", Tenant(ctx))
}

// translate maps gorm errors onto the application errors.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %v", apperr.ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", apperr.ErrConflict, err)
	}

	return err
}

func (g *GormStore) CreatePage(ctx context.Context, page *model.Page) error {
	var count int64
	err := g.scoped(ctx).Model(&model.Page{}).Where("path = ?", page.Path).Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: page %s already exists", apperr.ErrConflict, page.Path)
	}

	page.Tenant = Tenant(ctx)
	return translate(g.db.WithContext(ctx).Create(page).Error)
}

func (g *GormStore) GetPage(ctx context.Context, id uint64) (*model.Page, error) {
	var page model.Page
	err := g.scoped(ctx).Where("id = ?", id).First(&page).Error
	if err != nil {
		return nil, translate(err)
	}

	return &page, nil
}

func (g *GormStore) GetPageByPath(ctx context.Context, path string) (*model.Page, error) {
	var page model.Page
	err := g.scoped(ctx).Where("path = ?", path).First(&page).Error
	if err != nil {
		return nil, translate(err)
	}

	return &page, nil
}

func (g *GormStore) ListPagesFromIDs(ctx context.Context, ids []uint64) ([]*model.Page, error) {
	pages := make([]*model.Page, 0, len(ids))
	if len(ids) == 0 {
		return pages, nil
	}

	err := g.scoped(ctx).Where("id IN ?", ids).Order("path").Find(&pages).Error
	return pages, err
}

func (g *GormStore) ListPageIDs(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	err := g.scoped(ctx).Model(&model.Page{}).Order("id").Pluck("id", &ids).Error
	return ids, err
}

func (g *GormStore) UpdatePage(ctx context.Context, page *model.Page) error {
	page.Tenant = Tenant(ctx)
	return translate(g.db.WithContext(ctx).Save(page).Error)
}

func (g *GormStore) UpdatePageFields(ctx context.Context, page *model.Page, columns ...string) error {
	res := g.scoped(ctx).Model(page).Select(columns).Updates(page)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: page %d", apperr.ErrNotFound, page.ID)
	}

	fresh, err := g.GetPage(ctx, page.ID)
	if err != nil {
		return err
	}
	*page = *fresh

	return nil
}

func (g *GormStore) DeletePage(ctx context.Context, id uint64) error {
	res := g.scoped(ctx).Where("id = ?", id).Delete(&model.Page{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: page %d", apperr.ErrNotFound, id)
	}

	return nil
}

func (g *GormStore) CreateRevision(ctx context.Context, revision *model.Revision) error {
	revision.Tenant = Tenant(ctx)
	return g.db.WithContext(ctx).Create(revision).Error
}

func (g *GormStore) GetRevision(ctx context.Context, id uint64) (*model.Revision, error) {
	var revision model.Revision
	err := g.scoped(ctx).Where("id = ?", id).First(&revision).Error
	if err != nil {
		return nil, translate(err)
	}

	return &revision, nil
}

func (g *GormStore) UpdateRevision(ctx context.Context, revision *model.Revision) error {
	revision.Tenant = Tenant(ctx)
	return g.db.WithContext(ctx).Save(revision).Error
}

func (g *GormStore) ListRevisions(ctx context.Context, pageID uint64) ([]*model.Revision, error) {
	var revisions []*model.Revision
	err := g.scoped(ctx).Where("page_id = ?", pageID).Order("id desc").Find(&revisions).Error
	return revisions, err
}

func (g *GormStore) LatestRevision(ctx context.Context, pageID uint64) (*model.Revision, error) {
	var revision model.Revision
	err := g.scoped(ctx).Where("page_id = ?", pageID).Order("id desc").First(&revision).Error
	if err != nil {
		return nil, translate(err)
	}

	return &revision, nil
}

func (g *GormStore) PutPathIndex(ctx context.Context, entry *model.PathIndexEntry) error {
	tenant := Tenant(ctx)
	entry.Tenant = tenant
	for i := range entry.Prefixes {
		entry.Prefixes[i].PageID = entry.PageID
		entry.Prefixes[i].Tenant = tenant
	}

	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("page_id = ?", entry.PageID).Delete(&model.PathPrefix{}).Error; err != nil {
			return err
		}

		err := tx.Omit("Prefixes").Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "page_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"tenant", "path", "depth"}),
		}).Create(entry).Error
		if err != nil {
			return err
		}

		if len(entry.Prefixes) == 0 {
			return nil
		}

		return tx.Create(&entry.Prefixes).Error
	})
}

func (g *GormStore) GetPathIndex(ctx context.Context, pageID uint64) (*model.PathIndexEntry, error) {
	var entry model.PathIndexEntry
	err := g.scoped(ctx).
		Preload("Prefixes", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("page_id = ?", pageID).
		First(&entry).Error
	if err != nil {
		return nil, translate(err)
	}

	return &entry, nil
}

func (g *GormStore) DeletePathIndex(ctx context.Context, pageID uint64) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tenant := Tenant(ctx)
		if err := tx.Where("tenant = ? AND page_id = ?", tenant, pageID).Delete(&model.PathPrefix{}).Error; err != nil {
			return err
		}

		return tx.Where("tenant = ? AND page_id = ?", tenant, pageID).Delete(&model.PathIndexEntry{}).Error
	})
}

func (g *GormStore) ListPageIDsUnder(ctx context.Context, prefix string) ([]uint64, error) {
	var ids []uint64
	err := g.scoped(ctx).Model(&model.PathPrefix{}).
		Where("prefix = ?", prefix).
		Distinct().
		Order("page_id").
		Pluck("page_id", &ids).Error
	return ids, err
}

func (g *GormStore) CreateFile(ctx context.Context, file *model.File) error {
	file.Tenant = Tenant(ctx)
	return translate(g.db.WithContext(ctx).Create(file).Error)
}

func (g *GormStore) GetFileByName(ctx context.Context, pageID uint64, name string) (*model.File, error) {
	var file model.File
	err := g.scoped(ctx).Where("page_id = ? AND name = ?", pageID, name).First(&file).Error
	if err != nil {
		return nil, translate(err)
	}

	return &file, nil
}

func (g *GormStore) ListFiles(ctx context.Context, pageID uint64) ([]*model.File, error) {
	files := make([]*model.File, 0)
	err := g.scoped(ctx).Where("page_id = ?", pageID).Order("name").Find(&files).Error
	return files, err
}

func (g *GormStore) DeleteFile(ctx context.Context, id uint64) error {
	return g.scoped(ctx).Where("id = ?", id).Delete(&model.File{}).Error
}

func (g *GormStore) PutSubscription(ctx context.Context, entry *model.SubscriptionEntry) error {
	entry.Tenant = Tenant(ctx)
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant"}, {Name: "user_id"}, {Name: "page_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind"}),
	}).Create(entry).Error
}

func (g *GormStore) DeleteSubscription(ctx context.Context, userID, pageID uint64) error {
	return g.scoped(ctx).Where("user_id = ? AND page_id = ?", userID, pageID).Delete(&model.SubscriptionEntry{}).Error
}

func (g *GormStore) ListSubscriptions(ctx context.Context, userID uint64) ([]*model.SubscriptionEntry, error) {
	var entries []*model.SubscriptionEntry
	err := g.scoped(ctx).Where("user_id = ?", userID).Order("page_id").Find(&entries).Error
	return entries, err
}

func (g *GormStore) ListSubscribers(ctx context.Context, pageID uint64, kind model.SubscriptionKind) ([]uint64, error) {
	var ids []uint64
	err := g.scoped(ctx).Model(&model.SubscriptionEntry{}).
		Where("page_id = ? AND kind = ?", pageID, kind).
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (g *GormStore) CreateUser(ctx context.Context, user *model.User) error {
	user.Tenant = Tenant(ctx)
	return g.db.WithContext(ctx).Create(user).Error
}

func (g *GormStore) GetUser(ctx context.Context, id uint64) (*model.User, error) {
	var user model.User
	err := g.scoped(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}

	return &user, nil
}

func (g *GormStore) ListUsers(ctx context.Context, approved bool) ([]*model.User, error) {
	var users []*model.User
	query := g.scoped(ctx)
	if approved {
		query = query.Where("(approved_at IS NOT NULL OR admin = ?)", true).Order("approved_at desc")
	} else {
		query = query.Where("approved_at IS NULL AND admin = ?", false).Order("id")
	}

	err := query.Find(&users).Error
	return users, err
}

func (g *GormStore) UpdateUser(ctx context.Context, user *model.User) error {
	user.Tenant = Tenant(ctx)
	return g.db.WithContext(ctx).Save(user).Error
}

func (g *GormStore) Migrate() error {
	return model.Migrate(g.db)
}

func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(&GormStore{db: tx})
	})
}

// Close releases the underlying connection pool.
func (g *GormStore) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}

	logrus.Debug("closing store connection")
	return sqlDB.Close()
}
