package identity

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookupFunc func(ctx context.Context, id uint64) (*Requester, error)

func (f lookupFunc) Lookup(ctx context.Context, id uint64) (*Requester, error) {
	return f(ctx, id)
}

func TestHeaderProvider(t *testing.T) {
	provider := NewHeaderProvider(lookupFunc(func(_ context.Context, id uint64) (*Requester, error) {
		return &Requester{ID: id, Approved: true}, nil
	}))

	tests := []struct {
		name   string
		header string
		want   *Requester
	}{
		{name: "anonymous", header: "", want: nil},
		{name: "malformed", header: "abc", want: nil},
		{name: "user", header: "42", want: &Requester{ID: 42, Approved: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set(HeaderUserID, tt.header)
			}

			got, err := provider.CurrentRequester(context.Background(), r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequesterContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, FromContext(ctx))

	ctx = WithRequester(ctx, &Requester{ID: 7, Admin: true})
	assert.Equal(t, uint64(7), FromContext(ctx).ID)
}
