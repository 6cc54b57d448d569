package notify

import (
	"context"
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/wikinote/internal/apperr"
	"github.com/emrgen/wikinote/internal/mail"
	"github.com/emrgen/wikinote/internal/model"
	"github.com/emrgen/wikinote/internal/pathindex"
	"github.com/emrgen/wikinote/internal/queue"
	"github.com/emrgen/wikinote/internal/store"
	"github.com/emrgen/wikinote/internal/subscription"
	"github.com/sirupsen/logrus"
)

const (
	JobNotify  = "page.notify"
	JobCluster = "page.notify.cluster"
	JobDeliver = "page.notify.deliver"
)

// updatedLayout is the timestamp part of a delivery key, second precision.
const updatedLayout = "2006-01-02-15-04-05"

type NotifyPayload struct {
	PageID uint64 `json:"page_id"`
}

type ClusterPayload struct {
	PageID uint64 `json:"page_id"`
	Path   string `json:"path"`
}

type DeliverPayload struct {
	Path      string `json:"path"`
	FromEmail string `json:"from_email"`
	ToEmail   string `json:"to_email"`
}

// DeliveryKey identifies one message about one version of a page to one user.
func DeliveryKey(page *model.Page, userID uint64) string {
	return fmt.Sprintf("%d-%s-%d", page.ID, page.UpdatedAt.UTC().Format(updatedLayout), userID)
}

// Options of the dispatcher.
type Options struct {
	// Domain is appended to the tenant to build the page host in subjects.
	Domain string
	// From is the sender address of all messages.
	From string
}

// Dispatcher fans a page change out to its subscribers. Every step runs as a queued
// job, deliveries are enqueued by key so a redelivered fan-out never sends twice.
type Dispatcher struct {
	store    store.Store
	index    *pathindex.Index
	registry *subscription.Registry
	queue    queue.Queue
	sender   mail.Sender
	opts     Options
}

func NewDispatcher(store store.Store, index *pathindex.Index, registry *subscription.Registry, queue queue.Queue, sender mail.Sender, opts Options) *Dispatcher {
	if opts.From == "" {
		opts.From = "admin@wikinote.me"
	}

	return &Dispatcher{
		store:    store,
		index:    index,
		registry: registry,
		queue:    queue,
		sender:   sender,
		opts:     opts,
	}
}

// NotifyTask schedules the fan-out for a changed page.
func (d *Dispatcher) NotifyTask(ctx context.Context, pageID uint64) (queue.Task, error) {
	return queue.NewTask(ctx, JobNotify, NotifyPayload{PageID: pageID})
}

// HandleNotify delivers to the direct subscribers of a page and schedules one
// cluster lookup per ancestor prefix.
func (d *Dispatcher) HandleNotify(ctx context.Context, task *model.Task) error {
	var payload NotifyPayload
	if err := queue.Decode(task, &payload); err != nil {
		return err
	}

	page, err := d.store.GetPage(ctx, payload.PageID)
	if errors.Is(err, apperr.ErrNotFound) {
		logrus.Debugf("page %d is gone, nothing to notify", payload.PageID)
		return nil
	}
	if err != nil {
		return err
	}

	users, err := d.registry.Subscribers(ctx, page.ID, model.SubscriptionPage)
	if err != nil {
		return err
	}
	if err := d.deliver(ctx, page, users); err != nil {
		return err
	}

	prefixes, err := d.index.Prefixes(ctx, page)
	if err != nil {
		return err
	}
	for _, prefix := range prefixes {
		next, err := queue.NewTask(ctx, JobCluster, ClusterPayload{PageID: page.ID, Path: prefix})
		if err != nil {
			return err
		}
		// keyed so a redelivered fan-out does not repeat the cluster lookups
		next = next.Keyed(fmt.Sprintf("cluster-%s-%s", DeliveryKey(page, 0), prefix))
		if _, err := d.queue.EnqueueIfAbsent(ctx, next); err != nil {
			return err
		}
	}

	return nil
}

// HandleCluster delivers to the users watching the cluster rooted at the payload path.
func (d *Dispatcher) HandleCluster(ctx context.Context, task *model.Task) error {
	var payload ClusterPayload
	if err := queue.Decode(task, &payload); err != nil {
		return err
	}

	page, err := d.store.GetPage(ctx, payload.PageID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	cluster, err := d.store.GetPageByPath(ctx, payload.Path)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	logrus.Infof("notify users in %s cluster about page %s updated", cluster.Path, page.Path)
	users, err := d.registry.Subscribers(ctx, cluster.ID, model.SubscriptionCluster)
	if err != nil {
		return err
	}

	return d.deliver(ctx, page, users)
}

func (d *Dispatcher) deliver(ctx context.Context, page *model.Page, users mapset.Set[uint64]) error {
	if users.Cardinality() == 0 {
		return nil
	}

	from := ""
	if author, err := d.store.GetUser(ctx, page.AuthorID); err == nil {
		from = author.Email
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}

	for _, userID := range mapset.Sorted(users) {
		user, err := d.store.GetUser(ctx, userID)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}

		task, err := queue.NewTask(ctx, JobDeliver, DeliverPayload{Path: page.Path, FromEmail: from, ToEmail: user.Email})
		if err != nil {
			return err
		}
		added, err := d.queue.EnqueueIfAbsent(ctx, task.Keyed(DeliveryKey(page, userID)))
		if err != nil {
			return err
		}
		if !added {
			logrus.Debugf("user %d already notified about page %s", userID, page.Path)
		}
	}

	return nil
}

// HandleDeliver sends one message. Mail failures are retried by the queue.
func (d *Dispatcher) HandleDeliver(ctx context.Context, task *model.Task) error {
	var payload DeliverPayload
	if err := queue.Decode(task, &payload); err != nil {
		return err
	}

	host := store.Tenant(ctx)
	if d.opts.Domain != "" {
		host += "." + d.opts.Domain
	}
	url := host + payload.Path

	subject := fmt.Sprintf("Page %q updated", url)
	body := fmt.Sprintf("User %s updated page %s", payload.FromEmail, url)

	if err := d.sender.Send(ctx, payload.ToEmail, d.opts.From, subject, body); err != nil {
		return fmt.Errorf("%w: mail: %v", apperr.ErrDownstreamUnavailable, err)
	}

	return nil
}
