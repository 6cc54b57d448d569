package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/emrgen/wikinote/internal/apperr"
	"github.com/emrgen/wikinote/internal/identity"
	"github.com/emrgen/wikinote/internal/model"
	"github.com/emrgen/wikinote/internal/pathcodec"
)

// PageReader reads a page by path, nil when absent.
type PageReader interface {
	ReadPage(ctx context.Context, path string) (*model.Page, error)
}

// Resolver decides whether a requester may see a page.
type Resolver struct {
	pages PageReader
}

func NewResolver(pages PageReader) *Resolver {
	return &Resolver{pages: pages}
}

// CanAccess applies the page policy. INHERIT pages defer to their parent, the
// recursion ends because every step is one level closer to the root.
// A nil requester is anonymous, a nil page is one that does not exist yet.
func (r *Resolver) CanAccess(ctx context.Context, page *model.Page, requester *identity.Requester) (bool, error) {
	if requester != nil && requester.Admin {
		return true, nil
	}
	if page == nil {
		return requester != nil, nil
	}

	switch page.Access {
	case model.AccessPublic:
		return true, nil
	case model.AccessPrivate:
		return requester != nil && requester.ID == page.AuthorID, nil
	case model.AccessInherit:
		parent, ok := pathcodec.Parent(page.Path)
		if !ok {
			return requester != nil, nil
		}
		parentPage, err := r.pages.ReadPage(ctx, parent)
		if err != nil {
			return false, err
		}
		return r.CanAccess(ctx, parentPage, requester)
	}

	return false, fmt.Errorf("%w: %q on page %s", apperr.ErrInvalidPolicy, page.Access, page.Path)
}

// ParsePolicy validates an access policy value, case is ignored.
func ParsePolicy(s string) (model.Access, error) {
	switch a := model.Access(strings.ToUpper(strings.TrimSpace(s))); a {
	case model.AccessPrivate, model.AccessInherit, model.AccessPublic:
		return a, nil
	}

	return "", fmt.Errorf("%w: %q", apperr.ErrInvalidPolicy, s)
}
