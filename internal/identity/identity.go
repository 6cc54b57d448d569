package identity

import (
	"context"
	"net/http"
	"strconv"
)

// Requester is the caller of an operation. A nil *Requester is anonymous.
type Requester struct {
	ID       uint64
	Admin    bool
	Approved bool
}

type requesterKey struct{}

// WithRequester stores the requester in ctx.
func WithRequester(ctx context.Context, r *Requester) context.Context {
	return context.WithValue(ctx, requesterKey{}, r)
}

// FromContext returns the requester of ctx, nil for anonymous callers.
func FromContext(ctx context.Context) *Requester {
	r, _ := ctx.Value(requesterKey{}).(*Requester)
	return r
}

// Provider resolves the requester of an incoming request.
type Provider interface {
	CurrentRequester(ctx context.Context, r *http.Request) (*Requester, error)
}

// UserLookup loads the flags of a signed in user.
type UserLookup interface {
	Lookup(ctx context.Context, id uint64) (*Requester, error)
}

const HeaderUserID = "X-User-Id"

var _ Provider = (*HeaderProvider)(nil)

// HeaderProvider trusts a user id header set by an authenticating proxy.
type HeaderProvider struct {
	users UserLookup
}

func NewHeaderProvider(users UserLookup) *HeaderProvider {
	return &HeaderProvider{users: users}
}

func (h *HeaderProvider) CurrentRequester(ctx context.Context, r *http.Request) (*Requester, error) {
	raw := r.Header.Get(HeaderUserID)
	if raw == "" {
		return nil, nil
	}

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, nil
	}

	return h.users.Lookup(ctx, id)
}
