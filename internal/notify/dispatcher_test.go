package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/emrgen/wikinote/internal/apperr"
	"github.com/emrgen/wikinote/internal/model"
	"github.com/emrgen/wikinote/internal/notify"
	"github.com/emrgen/wikinote/internal/page"
	"github.com/emrgen/wikinote/internal/queue"
	"github.com/emrgen/wikinote/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryKey(t *testing.T) {
	updated := time.Date(2024, 3, 5, 7, 8, 9, 500, time.FixedZone("CET", 3600))
	key := notify.DeliveryKey(&model.Page{ID: 12, UpdatedAt: updated}, 4)
	assert.Equal(t, "12-2024-03-05-06-08-09-4", key)
}

func TestDispatcher_PageSubscribers(t *testing.T) {
	ctx := context.Background()
	env := tester.NewApp(t)

	_, author := env.User(t, "author")
	_, reader := env.User(t, "reader")

	created, err := env.Pages.CreatePage(ctx, "/news", "", author.ID, "v1")
	require.NoError(t, err)
	require.NoError(t, env.Registry.Subscribe(ctx, reader.ID, created.Page.ID, model.SubscriptionPage))
	env.Drain(t)

	_, err = env.Pages.UpdatePage(ctx, page.UpdateRequest{Path: "/news", Text: "v2", AuthorID: author.ID})
	require.NoError(t, err)
	env.Drain(t)

	messages := env.Mail.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "reader@wikinote.test", messages[0].To)
	assert.Equal(t, "admin@wikinote.test", messages[0].From)
	assert.Equal(t, `Page "default.wikinote.test/news" updated`, messages[0].Subject)
	assert.Equal(t, "User author@wikinote.test updated page default.wikinote.test/news", messages[0].Body)
}

func TestDispatcher_DuplicateFanOut(t *testing.T) {
	ctx := context.Background()
	env := tester.NewApp(t)

	_, reader := env.User(t, "reader")

	root, err := env.Pages.CreatePage(ctx, "/team", "", 1, "")
	require.NoError(t, err)
	created, err := env.Pages.CreatePage(ctx, "/team/plan", "", 1, "")
	require.NoError(t, err)

	// watching the page and its cluster still gives one message
	require.NoError(t, env.Registry.Subscribe(ctx, reader.ID, created.Page.ID, model.SubscriptionPage))
	require.NoError(t, env.Registry.Subscribe(ctx, reader.ID, root.Page.ID, model.SubscriptionCluster))
	env.Drain(t)

	for i := 0; i < 2; i++ {
		task, err := env.Notifier.NotifyTask(ctx, created.Page.ID)
		require.NoError(t, err)
		require.NoError(t, env.Queue.Enqueue(ctx, task))
	}
	env.Drain(t)

	messages := env.Mail.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "reader@wikinote.test", messages[0].To)
}

func TestDispatcher_ClusterSubscribers(t *testing.T) {
	ctx := context.Background()
	env := tester.NewApp(t)

	_, near := env.User(t, "near")
	_, far := env.User(t, "far")
	_, outside := env.User(t, "outside")

	home, err := env.Pages.CreatePage(ctx, "/", "Home", 1, "")
	require.NoError(t, err)
	docs, err := env.Pages.CreatePage(ctx, "/docs", "", 1, "")
	require.NoError(t, err)
	blog, err := env.Pages.CreatePage(ctx, "/blog", "", 1, "")
	require.NoError(t, err)
	_, err = env.Pages.CreatePage(ctx, "/docs/api", "", 1, "")
	require.NoError(t, err)

	require.NoError(t, env.Registry.Subscribe(ctx, near.ID, docs.Page.ID, model.SubscriptionCluster))
	require.NoError(t, env.Registry.Subscribe(ctx, far.ID, home.Page.ID, model.SubscriptionCluster))
	require.NoError(t, env.Registry.Subscribe(ctx, outside.ID, blog.Page.ID, model.SubscriptionCluster))
	// a page subscription on an ancestor does not cover its descendants
	require.NoError(t, env.Registry.Subscribe(ctx, outside.ID, docs.Page.ID, model.SubscriptionPage))
	env.Drain(t)

	_, err = env.Pages.UpdatePage(ctx, page.UpdateRequest{Path: "/docs/api", Text: "changed", AuthorID: 1})
	require.NoError(t, err)
	env.Drain(t)

	var to []string
	for _, msg := range env.Mail.Messages() {
		to = append(to, msg.To)
	}
	assert.ElementsMatch(t, []string{"near@wikinote.test", "far@wikinote.test"}, to)
}

func TestDispatcher_MailFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	env := tester.NewApp(t)

	_, reader := env.User(t, "reader")
	created, err := env.Pages.CreatePage(ctx, "/flaky", "", 1, "")
	require.NoError(t, err)
	require.NoError(t, env.Registry.Subscribe(ctx, reader.ID, created.Page.ID, model.SubscriptionPage))

	env.Mail.SetErr(errors.New("smtp down"))
	task, err := env.Notifier.NotifyTask(ctx, created.Page.ID)
	require.NoError(t, err)
	require.NoError(t, env.Queue.Enqueue(ctx, task))
	env.Drain(t)
	assert.Empty(t, env.Mail.Messages())

	// the failed delivery waits for its backoff
	stats, err := env.Tasks.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats[model.TaskPending])

	deliver := &model.Task{Job: notify.JobDeliver, Tenant: "default"}
	payload, err := queue.NewTask(ctx, notify.JobDeliver, notify.DeliverPayload{Path: "/flaky", ToEmail: "reader@wikinote.test"})
	require.NoError(t, err)
	deliver.Payload = payload.Payload

	err = env.Notifier.HandleDeliver(ctx, deliver)
	assert.ErrorIs(t, err, apperr.ErrDownstreamUnavailable)

	env.Mail.SetErr(nil)
	require.NoError(t, env.Notifier.HandleDeliver(ctx, deliver))
	require.Len(t, env.Mail.Messages(), 1)
	assert.Equal(t, "User  updated page default.wikinote.test/flaky", env.Mail.Messages()[0].Body)
}
