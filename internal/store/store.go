package store

import (
	"context"

	"github.com/emrgen/wikinote/internal/model"
)

// Store is the keyed entity storage of one database. Every operation is scoped to
// the tenant carried by the context, see WithTenant.
type Store interface {
	PageStore
	RevisionStore
	PathIndexStore
	FileStore
	SubscriptionStore
	UserStore
	// Transaction runs f in a single atomic commit.
	Transaction(ctx context.Context, f func(tx Store) error) error
	Migrate() error
}

type PageStore interface {
	// CreatePage creates a new page, it fails with apperr.ErrConflict if the path is taken.
	CreatePage(ctx context.Context, page *model.Page) error
	// GetPage retrieves a page by ID.
	GetPage(ctx context.Context, id uint64) (*model.Page, error)
	// GetPageByPath retrieves a page by its normalized path.
	GetPageByPath(ctx context.Context, path string) (*model.Page, error)
	// ListPagesFromIDs retrieves the pages with the given IDs, missing ones are skipped.
	ListPagesFromIDs(ctx context.Context, ids []uint64) ([]*model.Page, error)
	// ListPageIDs returns the IDs of all pages of the tenant.
	ListPageIDs(ctx context.Context) ([]uint64, error)
	// UpdatePage saves all fields of a page.
	UpdatePage(ctx context.Context, page *model.Page) error
	// UpdatePageFields writes only the named columns of page, then reloads the rest
	// of page from the row so concurrent writes to other columns show up.
	UpdatePageFields(ctx context.Context, page *model.Page, columns ...string) error
	// DeletePage deletes a page by ID.
	DeletePage(ctx context.Context, id uint64) error
}

type RevisionStore interface {
	// CreateRevision appends a revision.
	CreateRevision(ctx context.Context, revision *model.Revision) error
	// GetRevision retrieves a revision by ID, also for deleted pages.
	GetRevision(ctx context.Context, id uint64) (*model.Revision, error)
	// UpdateRevision overwrites a revision in place.
	UpdateRevision(ctx context.Context, revision *model.Revision) error
	// ListRevisions lists the revisions of a page, newest first.
	ListRevisions(ctx context.Context, pageID uint64) ([]*model.Revision, error)
	// LatestRevision returns the newest revision of a page.
	LatestRevision(ctx context.Context, pageID uint64) (*model.Revision, error)
}

type PathIndexStore interface {
	// PutPathIndex creates or replaces the index entry of a page together with its prefixes.
	PutPathIndex(ctx context.Context, entry *model.PathIndexEntry) error
	// GetPathIndex retrieves the index entry of a page.
	GetPathIndex(ctx context.Context, pageID uint64) (*model.PathIndexEntry, error)
	// DeletePathIndex deletes the index entry of a page.
	DeletePathIndex(ctx context.Context, pageID uint64) error
	// ListPageIDsUnder returns the pages whose prefix list contains prefix.
	ListPageIDsUnder(ctx context.Context, prefix string) ([]uint64, error)
}

type FileStore interface {
	// CreateFile creates a file record.
	CreateFile(ctx context.Context, file *model.File) error
	// GetFileByName retrieves a page file by name.
	GetFileByName(ctx context.Context, pageID uint64, name string) (*model.File, error)
	// ListFiles lists the files of a page ordered by name.
	ListFiles(ctx context.Context, pageID uint64) ([]*model.File, error)
	// DeleteFile deletes a file record by ID.
	DeleteFile(ctx context.Context, id uint64) error
}

type SubscriptionStore interface {
	// PutSubscription creates or replaces the subscription of a user to a page.
	PutSubscription(ctx context.Context, entry *model.SubscriptionEntry) error
	// DeleteSubscription removes the subscription of a user to a page.
	DeleteSubscription(ctx context.Context, userID, pageID uint64) error
	// ListSubscriptions lists the subscriptions of a user.
	ListSubscriptions(ctx context.Context, userID uint64) ([]*model.SubscriptionEntry, error)
	// ListSubscribers lists the users subscribed to a page with the given kind.
	ListSubscribers(ctx context.Context, pageID uint64, kind model.SubscriptionKind) ([]uint64, error)
}

type UserStore interface {
	// CreateUser creates a user.
	CreateUser(ctx context.Context, user *model.User) error
	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id uint64) (*model.User, error)
	// ListUsers lists users, approved or waiting for approval.
	ListUsers(ctx context.Context, approved bool) ([]*model.User, error)
	// UpdateUser saves all fields of a user.
	UpdateUser(ctx context.Context, user *model.User) error
}
