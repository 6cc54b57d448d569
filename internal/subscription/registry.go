package subscription

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/wikinote/internal/model"
	"github.com/emrgen/wikinote/internal/store"
)

// Subscription is what a user watches: single pages and whole clusters.
// A page id is in at most one of the two sets.
type Subscription struct {
	UserID   uint64
	Pages    mapset.Set[uint64]
	Clusters mapset.Set[uint64]
}

// Registry stores subscriptions. It is only changed by the owning user.
type Registry struct {
	store store.SubscriptionStore
}

func NewRegistry(store store.SubscriptionStore) *Registry {
	return &Registry{store: store}
}

// Subscribe puts the page in the set of kind, removing it from the other one.
// SubscriptionNone removes the page from both sets.
func (r *Registry) Subscribe(ctx context.Context, userID, pageID uint64, kind model.SubscriptionKind) error {
	switch kind {
	case model.SubscriptionNone, "":
		return r.store.DeleteSubscription(ctx, userID, pageID)
	case model.SubscriptionPage, model.SubscriptionCluster:
		return r.store.PutSubscription(ctx, &model.SubscriptionEntry{UserID: userID, PageID: pageID, Kind: kind})
	}

	return ErrInvalidKind
}

// Get returns the subscription of a user, with empty sets when they watch nothing.
func (r *Registry) Get(ctx context.Context, userID uint64) (*Subscription, error) {
	entries, err := r.store.ListSubscriptions(ctx, userID)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		UserID:   userID,
		Pages:    mapset.NewSet[uint64](),
		Clusters: mapset.NewSet[uint64](),
	}
	for _, e := range entries {
		switch e.Kind {
		case model.SubscriptionPage:
			sub.Pages.Add(e.PageID)
		case model.SubscriptionCluster:
			sub.Clusters.Add(e.PageID)
		}
	}

	return sub, nil
}

// Kind returns how a user watches a page.
func (r *Registry) Kind(ctx context.Context, userID, pageID uint64) (model.SubscriptionKind, error) {
	sub, err := r.Get(ctx, userID)
	if err != nil {
		return "", err
	}

	switch {
	case sub.Pages.Contains(pageID):
		return model.SubscriptionPage, nil
	case sub.Clusters.Contains(pageID):
		return model.SubscriptionCluster, nil
	}

	return model.SubscriptionNone, nil
}

// Subscribers returns the users watching the page with the given kind.
func (r *Registry) Subscribers(ctx context.Context, pageID uint64, kind model.SubscriptionKind) (mapset.Set[uint64], error) {
	ids, err := r.store.ListSubscribers(ctx, pageID, kind)
	if err != nil {
		return nil, err
	}

	return mapset.NewSet(ids...), nil
}
