package service

import (
	"context"
	"fmt"
	"time"

	"github.com/emrgen/wikinote/internal/access"
	"github.com/emrgen/wikinote/internal/apperr"
	"github.com/emrgen/wikinote/internal/identity"
	"github.com/emrgen/wikinote/internal/model"
	"github.com/emrgen/wikinote/internal/page"
	"github.com/emrgen/wikinote/internal/pathcodec"
	"github.com/emrgen/wikinote/internal/search"
	"github.com/emrgen/wikinote/internal/subscription"
)

// NewPageService creates a new PageService.
func NewPageService(gate *access.Gate, resolver *access.Resolver, pages *page.Repository, registry *subscription.Registry, search *search.Sync) *PageService {
	return &PageService{
		gate:     gate,
		resolver: resolver,
		pages:    pages,
		registry: registry,
		search:   search,
	}
}

// PageService checks the requester of ctx before every page operation.
type PageService struct {
	gate     *access.Gate
	resolver *access.Resolver
	pages    *page.Repository
	registry *subscription.Registry
	search   *search.Sync
}

// EditRequest is an edit by the requester of ctx.
type EditRequest struct {
	Path            string
	Name            string
	Text            string
	Markup          model.Markup
	PriorRevisionID uint64
	ExpectedUpdated *time.Time
}

// PageView is a page with the navigation around it.
type PageView struct {
	*model.Page
	Breadcrumbs []pathcodec.Crumb `json:"breadcrumbs"`
}

func (s *PageService) authorize(ctx context.Context, action access.Action) (*identity.Requester, error) {
	requester := identity.FromContext(ctx)
	if err := s.gate.Authorize(requester, action).Err(action); err != nil {
		return nil, err
	}

	return requester, nil
}

// check fails when the requester of ctx may not access the page.
func (s *PageService) check(ctx context.Context, p *model.Page, path string) error {
	requester := identity.FromContext(ctx)
	ok, err := s.resolver.CanAccess(ctx, p, requester)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if requester == nil {
		return fmt.Errorf("%w: %s", apperr.ErrUnauthenticated, path)
	}

	return fmt.Errorf("%w: %s", apperr.ErrForbidden, path)
}

// read returns an accessible page, apperr.ErrNotFound when absent.
func (s *PageService) read(ctx context.Context, path string) (*model.Page, error) {
	p, err := s.pages.ReadPage(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := s.check(ctx, p, path); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: page %s", apperr.ErrNotFound, path)
	}

	return p, nil
}

// GetPage returns the page at path.
func (s *PageService) GetPage(ctx context.Context, path string) (*PageView, error) {
	p, err := s.read(ctx, path)
	if err != nil {
		return nil, err
	}

	return &PageView{Page: p, Breadcrumbs: pathcodec.Breadcrumbs(p.Path)}, nil
}

// CreatePage creates a page, the requester becomes its author.
func (s *PageService) CreatePage(ctx context.Context, path, name, text string) (*page.Mutation, error) {
	requester, err := s.authorize(ctx, access.ActionEdit)
	if err != nil {
		return nil, err
	}
	if err := s.checkParent(ctx, path); err != nil {
		return nil, err
	}

	return s.pages.CreatePage(ctx, path, name, requester.ID, text)
}

// checkParent applies the access of the closest existing ancestor to a page that is not created yet.
func (s *PageService) checkParent(ctx context.Context, path string) error {
	parent, ok := pathcodec.Parent(path)
	if !ok {
		return nil
	}

	p, err := s.pages.ReadPage(ctx, parent)
	if err != nil {
		return err
	}
	if p == nil {
		return s.checkParent(ctx, parent)
	}

	return s.check(ctx, p, parent)
}

// EditPage stores a new revision, creating the page when it does not exist.
func (s *PageService) EditPage(ctx context.Context, req EditRequest) (*page.Mutation, error) {
	requester, err := s.authorize(ctx, access.ActionEdit)
	if err != nil {
		return nil, err
	}

	p, err := s.pages.ReadPage(ctx, req.Path)
	if err != nil {
		return nil, err
	}
	if p == nil {
		err = s.checkParent(ctx, req.Path)
	} else {
		err = s.check(ctx, p, req.Path)
	}
	if err != nil {
		return nil, err
	}

	return s.pages.UpdatePage(ctx, page.UpdateRequest{
		Path:            req.Path,
		Name:            req.Name,
		AuthorID:        requester.ID,
		Text:            req.Text,
		Markup:          req.Markup,
		PriorRevisionID: req.PriorRevisionID,
		ExpectedUpdated: req.ExpectedUpdated,
	})
}

func (s *PageService) DeletePage(ctx context.Context, path string) (*page.Mutation, error) {
	if _, err := s.authorize(ctx, access.ActionEdit); err != nil {
		return nil, err
	}
	if _, err := s.read(ctx, path); err != nil {
		return nil, err
	}

	return s.pages.DeletePage(ctx, path)
}

func (s *PageService) MovePage(ctx context.Context, from, to string, includeCluster bool) (*page.Mutation, error) {
	if _, err := s.authorize(ctx, access.ActionEdit); err != nil {
		return nil, err
	}
	if _, err := s.read(ctx, from); err != nil {
		return nil, err
	}
	if err := s.checkParent(ctx, to); err != nil {
		return nil, err
	}

	return s.pages.MovePage(ctx, from, to, includeCluster)
}

// SetAccess changes the policy of a page.
func (s *PageService) SetAccess(ctx context.Context, path, policy string) (*page.Mutation, error) {
	requester, err := s.authorize(ctx, access.ActionEdit)
	if err != nil {
		return nil, err
	}
	parsed, err := access.ParsePolicy(policy)
	if err != nil {
		return nil, err
	}
	if _, err := s.read(ctx, path); err != nil {
		return nil, err
	}

	return s.pages.SetAccess(ctx, path, parsed, requester.ID)
}

func (s *PageService) History(ctx context.Context, path string) ([]*model.Revision, error) {
	if _, err := s.read(ctx, path); err != nil {
		return nil, err
	}

	return s.pages.History(ctx, path)
}

func (s *PageService) Revision(ctx context.Context, path string, id uint64) (*page.RevisionText, error) {
	if _, err := s.read(ctx, path); err != nil {
		return nil, err
	}

	return s.pages.Revision(ctx, path, id)
}

// LatestRevision returns the text to edit, an empty one for pages that do not exist yet.
func (s *PageService) LatestRevision(ctx context.Context, path string) (*page.RevisionText, error) {
	if _, err := s.authorize(ctx, access.ActionEdit); err != nil {
		return nil, err
	}

	p, err := s.pages.ReadPage(ctx, path)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return &page.RevisionText{Revision: &model.Revision{Markup: model.MarkupWiki}}, nil
	}
	if err := s.check(ctx, p, path); err != nil {
		return nil, err
	}

	return s.pages.LatestRevision(ctx, path)
}

// Tree lists the accessible pages of the cluster at path.
func (s *PageService) Tree(ctx context.Context, path string) ([]*model.Page, error) {
	pages, err := s.pages.Tree(ctx, path)
	if err != nil {
		return nil, err
	}

	return s.visible(ctx, pages)
}

func (s *PageService) visible(ctx context.Context, pages []*model.Page) ([]*model.Page, error) {
	requester := identity.FromContext(ctx)
	result := make([]*model.Page, 0, len(pages))
	for _, p := range pages {
		ok, err := s.resolver.CanAccess(ctx, p, requester)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, p)
		}
	}

	return result, nil
}

func (s *PageService) Files(ctx context.Context, path string) ([]*model.File, error) {
	if _, err := s.read(ctx, path); err != nil {
		return nil, err
	}

	return s.pages.Files(ctx, path)
}

func (s *PageService) AttachFile(ctx context.Context, path, name string, data []byte) (*page.Mutation, error) {
	requester, err := s.authorize(ctx, access.ActionEdit)
	if err != nil {
		return nil, err
	}
	if _, err := s.read(ctx, path); err != nil {
		return nil, err
	}

	return s.pages.AttachFile(ctx, path, name, requester.ID, data)
}

func (s *PageService) DetachFile(ctx context.Context, path, name string) (*page.Mutation, error) {
	if _, err := s.authorize(ctx, access.ActionEdit); err != nil {
		return nil, err
	}
	if _, err := s.read(ctx, path); err != nil {
		return nil, err
	}

	return s.pages.DetachFile(ctx, path, name)
}

func (s *PageService) OpenFile(ctx context.Context, path, name string) (*model.File, []byte, error) {
	if _, err := s.read(ctx, path); err != nil {
		return nil, nil, err
	}

	return s.pages.OpenFile(ctx, path, name)
}

// Subscribe sets how the requester watches the page at path.
func (s *PageService) Subscribe(ctx context.Context, path string, kind model.SubscriptionKind) error {
	requester, err := s.authorize(ctx, access.ActionSubscribe)
	if err != nil {
		return err
	}
	p, err := s.read(ctx, path)
	if err != nil {
		return err
	}

	return s.registry.Subscribe(ctx, requester.ID, p.ID, kind)
}

// Subscription returns what the requester watches.
func (s *PageService) Subscription(ctx context.Context) (*subscription.Subscription, error) {
	requester, err := s.authorize(ctx, access.ActionSubscribe)
	if err != nil {
		return nil, err
	}

	return s.registry.Get(ctx, requester.ID)
}

// Search returns the accessible pages matching text.
func (s *PageService) Search(ctx context.Context, text string, limit int) ([]*model.Page, error) {
	pages, err := s.search.Query(ctx, text, limit)
	if err != nil {
		return nil, err
	}

	return s.visible(ctx, pages)
}

// Reindex schedules a search sync of every page.
func (s *PageService) Reindex(ctx context.Context) (int, error) {
	if _, err := s.authorize(ctx, access.ActionAdmin); err != nil {
		return 0, err
	}

	return s.search.Reindex(ctx)
}
