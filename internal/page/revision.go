package page

import (
	"context"
	"fmt"

	"github.com/emrgen/wikinote/internal/apperr"
	"github.com/emrgen/wikinote/internal/compress"
	"github.com/emrgen/wikinote/internal/model"
)

// RevisionText is a revision with its decompressed raw text.
type RevisionText struct {
	*model.Revision
	Text string
}

func (r *Repository) encode(text string, kind model.Markup, authorID uint64) (*model.Revision, error) {
	data, err := r.codec.Encode([]byte(text))
	if err != nil {
		return nil, err
	}

	return &model.Revision{
		Content:     data,
		Compression: r.codec.Name(),
		Markup:      kind,
		AuthorID:    authorID,
	}, nil
}

// decode uses the codec the revision was written with, the configured one may have changed since.
func decode(revision *model.Revision) (*RevisionText, error) {
	codec, err := compress.ByName(revision.Compression)
	if err != nil {
		return nil, err
	}

	data, err := codec.Decode(revision.Content)
	if err != nil {
		return nil, fmt.Errorf("revision %d is corrupted: %w", revision.ID, err)
	}

	return &RevisionText{Revision: revision, Text: string(data)}, nil
}

// History lists the revisions of a page, newest first.
func (r *Repository) History(ctx context.Context, path string) ([]*model.Revision, error) {
	_, page, err := r.getPage(ctx, path)
	if err != nil {
		return nil, err
	}

	return r.store.ListRevisions(ctx, page.ID)
}

// Revision returns a revision of the page at path. A revision of another page is not found.
func (r *Repository) Revision(ctx context.Context, path string, id uint64) (*RevisionText, error) {
	_, page, err := r.getPage(ctx, path)
	if err != nil {
		return nil, err
	}

	revision, err := r.store.GetRevision(ctx, id)
	if err != nil {
		return nil, err
	}
	if revision.PageID != page.ID {
		return nil, fmt.Errorf("%w: revision %d of %s", apperr.ErrNotFound, id, page.Path)
	}

	return decode(revision)
}

// RevisionByID returns a revision directly, also when its page was deleted.
func (r *Repository) RevisionByID(ctx context.Context, id uint64) (*RevisionText, error) {
	revision, err := r.store.GetRevision(ctx, id)
	if err != nil {
		return nil, err
	}

	return decode(revision)
}

// LatestRevision returns the text an editor starts from.
func (r *Repository) LatestRevision(ctx context.Context, path string) (*RevisionText, error) {
	_, page, err := r.getPage(ctx, path)
	if err != nil {
		return nil, err
	}

	revision, err := r.store.LatestRevision(ctx, page.ID)
	if err != nil {
		return nil, err
	}

	return decode(revision)
}
