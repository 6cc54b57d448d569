package access

import (
	"testing"

	"github.com/emrgen/wikinote/internal/apperr"
	"github.com/emrgen/wikinote/internal/identity"
	"github.com/stretchr/testify/assert"
)

func TestGate_Authorize(t *testing.T) {
	gate := NewGate()

	tests := []struct {
		name      string
		requester *identity.Requester
		action    Action
		want      Decision
	}{
		{name: "anonymous edit", action: ActionEdit, want: Unauthenticated},
		{name: "anonymous subscribe", action: ActionSubscribe, want: Unauthenticated},
		{name: "waiting user edit", requester: &identity.Requester{ID: 1}, action: ActionEdit, want: NotApproved},
		{name: "waiting user subscribe", requester: &identity.Requester{ID: 1}, action: ActionSubscribe, want: Allowed},
		{name: "approved edit", requester: &identity.Requester{ID: 1, Approved: true}, action: ActionEdit, want: Allowed},
		{name: "approved admin", requester: &identity.Requester{ID: 1, Approved: true}, action: ActionAdmin, want: NotAdmin},
		{name: "admin", requester: &identity.Requester{ID: 1, Admin: true}, action: ActionAdmin, want: Allowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gate.Authorize(tt.requester, tt.action))
		})
	}
}

func TestDecision_Err(t *testing.T) {
	assert.NoError(t, Allowed.Err(ActionEdit))
	assert.ErrorIs(t, Unauthenticated.Err(ActionEdit), apperr.ErrUnauthenticated)
	assert.ErrorIs(t, NotApproved.Err(ActionEdit), apperr.ErrForbidden)
	assert.ErrorIs(t, NotAdmin.Err(ActionAdmin), apperr.ErrForbidden)
}
