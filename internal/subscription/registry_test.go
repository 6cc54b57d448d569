package subscription_test

import (
	"context"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/wikinote/internal/model"
	"github.com/emrgen/wikinote/internal/store"
	"github.com/emrgen/wikinote/internal/subscription"
	"github.com/emrgen/wikinote/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Subscribe(t *testing.T) {
	ctx := context.Background()
	r := subscription.NewRegistry(store.NewGormStore(tester.TestDB(t)))

	sub, err := r.Get(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, sub.Pages.Cardinality())
	assert.Zero(t, sub.Clusters.Cardinality())

	require.NoError(t, r.Subscribe(ctx, 1, 10, model.SubscriptionPage))
	require.NoError(t, r.Subscribe(ctx, 1, 20, model.SubscriptionCluster))

	sub, err = r.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, sub.Pages.Equal(mapset.NewSet[uint64](10)))
	assert.True(t, sub.Clusters.Equal(mapset.NewSet[uint64](20)))

	// switching the kind moves the page to the other set
	require.NoError(t, r.Subscribe(ctx, 1, 10, model.SubscriptionCluster))
	sub, err = r.Get(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, sub.Pages.Cardinality())
	assert.True(t, sub.Clusters.Equal(mapset.NewSet[uint64](10, 20)))
	assert.Zero(t, sub.Pages.Intersect(sub.Clusters).Cardinality())

	kind, err := r.Kind(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionCluster, kind)

	require.NoError(t, r.Subscribe(ctx, 1, 10, model.SubscriptionNone))
	kind, err = r.Kind(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionNone, kind)

	// unsubscribing twice is fine
	require.NoError(t, r.Subscribe(ctx, 1, 10, ""))

	assert.ErrorIs(t, r.Subscribe(ctx, 1, 10, "weekly"), subscription.ErrInvalidKind)
}

func TestRegistry_Subscribers(t *testing.T) {
	ctx := context.Background()
	r := subscription.NewRegistry(store.NewGormStore(tester.TestDB(t)))

	require.NoError(t, r.Subscribe(ctx, 1, 10, model.SubscriptionPage))
	require.NoError(t, r.Subscribe(ctx, 2, 10, model.SubscriptionPage))
	require.NoError(t, r.Subscribe(ctx, 3, 10, model.SubscriptionCluster))
	require.NoError(t, r.Subscribe(store.WithTenant(ctx, "acme"), 4, 10, model.SubscriptionPage))

	pages, err := r.Subscribers(ctx, 10, model.SubscriptionPage)
	require.NoError(t, err)
	assert.True(t, pages.Equal(mapset.NewSet[uint64](1, 2)))

	clusters, err := r.Subscribers(ctx, 10, model.SubscriptionCluster)
	require.NoError(t, err)
	assert.True(t, clusters.Equal(mapset.NewSet[uint64](3)))
}
