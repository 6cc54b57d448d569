package access

import (
	"fmt"

	"github.com/emrgen/wikinote/internal/apperr"
	"github.com/emrgen/wikinote/internal/identity"
)

// Action is an operation checked by the gate.
type Action string

const (
	ActionEdit      Action = "edit"
	ActionSubscribe Action = "subscribe"
	ActionAdmin     Action = "admin"
)

// Decision is the outcome of a gate check.
type Decision int

const (
	Allowed Decision = iota
	Unauthenticated
	NotApproved
	NotAdmin
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Unauthenticated:
		return "unauthenticated"
	case NotApproved:
		return "not approved"
	case NotAdmin:
		return "not admin"
	}

	return fmt.Sprintf("decision(%d)", int(d))
}

// Err returns nil for Allowed and the matching application error otherwise.
func (d Decision) Err(action Action) error {
	switch d {
	case Allowed:
		return nil
	case Unauthenticated:
		return fmt.Errorf("%w: %s needs a signed in user", apperr.ErrUnauthenticated, action)
	}

	return fmt.Errorf("%w: %s: %s", apperr.ErrForbidden, action, d)
}

// Gate is the capability check at the start of every mutating operation.
type Gate struct{}

func NewGate() *Gate {
	return &Gate{}
}

func (g *Gate) Authorize(requester *identity.Requester, action Action) Decision {
	if requester == nil {
		return Unauthenticated
	}
	if requester.Admin {
		return Allowed
	}
	if action == ActionAdmin {
		return NotAdmin
	}
	// subscribing only needs a signed in user
	if action == ActionSubscribe {
		return Allowed
	}
	if !requester.Approved {
		return NotApproved
	}

	return Allowed
}
