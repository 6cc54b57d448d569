package page

import (
	"context"
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/wikinote/internal/apperr"
	"github.com/emrgen/wikinote/internal/model"
	"github.com/emrgen/wikinote/internal/pathcodec"
	"github.com/emrgen/wikinote/internal/pathindex"
	"github.com/emrgen/wikinote/internal/queue"
	"github.com/emrgen/wikinote/internal/store"
	"github.com/sirupsen/logrus"
)

// JobMoveCluster moves the pages under a prefix after the page at the prefix was moved.
const JobMoveCluster = "page.move.cluster"

type MoveClusterPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// MovePage moves the page at from to to. With includeCluster the pages under from
// follow in a queued sweep. It fails with apperr.ErrConflict when to is taken.
// Subscribers are not notified about moves.
func (r *Repository) MovePage(ctx context.Context, from, to string, includeCluster bool) (*Mutation, error) {
	from, err := pathcodec.Normalize(from)
	if err != nil {
		return nil, err
	}
	to, err = pathcodec.Normalize(to)
	if err != nil {
		return nil, err
	}
	if _, inside := pathcodec.Rebase(to, from, to); inside {
		return nil, fmt.Errorf("%w: cannot move %s into itself", apperr.ErrInvalidPath, from)
	}

	page, err := r.store.GetPageByPath(ctx, from)
	if err != nil {
		return nil, err
	}

	m := &Mutation{}
	if err := r.move(ctx, m, page, to); err != nil {
		return nil, err
	}

	if includeCluster {
		task, err := queue.NewTask(ctx, JobMoveCluster, MoveClusterPayload{From: from, To: to})
		r.submit(ctx, m, task, err)
	}

	return m, nil
}

// move rewrites the path and index entry of one page in a single transaction.
func (r *Repository) move(ctx context.Context, m *Mutation, page *model.Page, to string) error {
	from := page.Path

	err := r.store.Transaction(ctx, func(tx store.Store) error {
		if _, err := tx.GetPageByPath(ctx, to); err == nil {
			return fmt.Errorf("%w: page %s already exists", apperr.ErrConflict, to)
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}

		page.Path = to
		if err := tx.UpdatePageFields(ctx, page, "path"); err != nil {
			return err
		}

		return pathindex.Put(ctx, tx, page.ID, to)
	})
	if err != nil {
		page.Path = from
		return err
	}

	m.Page = page
	// the next read repopulates the new key
	r.uncache(ctx, from)
	r.schedule(ctx, m, r.search.SyncTask, page.ID)

	logrus.Infof("page %s moved to %s", from, to)

	return nil
}

// HandleMoveCluster moves every page still indexed under the payload prefix. Moved
// pages drop out of the prefix, so a rerun only picks up what is left.
func (r *Repository) HandleMoveCluster(ctx context.Context, task *model.Task) error {
	var payload MoveClusterPayload
	if err := queue.Decode(task, &payload); err != nil {
		return err
	}

	ids, err := r.store.ListPageIDsUnder(ctx, payload.From)
	if err != nil {
		return err
	}
	pending := mapset.NewSet(ids...)

	var errs []error
	for _, id := range mapset.Sorted(pending) {
		page, err := r.store.GetPage(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}

		to, ok := pathcodec.Rebase(page.Path, payload.From, payload.To)
		if !ok {
			// the index entry lags behind a move
			continue
		}

		err = r.move(ctx, &Mutation{}, page, to)
		if errors.Is(err, apperr.ErrConflict) {
			logrus.Warnf("skip moving %s: %v", page.Path, err)
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("move %s: %w", page.Path, err))
		}
	}

	return errors.Join(errs...)
}
