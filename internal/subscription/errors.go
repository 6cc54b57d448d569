package subscription

import "errors"

// ErrInvalidKind is returned for a subscription kind other than page, cluster or none.
var ErrInvalidKind = errors.New("invalid subscription kind")
