package apperr

import "errors"

var (
	// ErrNotFound is returned when a page, revision or file does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a page already exists at the target path.
	ErrConflict = errors.New("conflict")
	// ErrStaleWrite is returned when the caller edited an outdated copy of a page.
	ErrStaleWrite = errors.New("stale write, reload the page and retry")
	// ErrInvalidPolicy is returned for an access policy value the resolver does not know.
	ErrInvalidPolicy = errors.New("invalid access policy")
	// ErrRender is returned when the markup renderer rejects the text.
	ErrRender = errors.New("render failed")
	// ErrDownstreamUnavailable marks failures of cache, queue, search or mail collaborators.
	ErrDownstreamUnavailable = errors.New("downstream unavailable")
	// ErrInvalidPath is returned for paths that do not start with a slash.
	ErrInvalidPath = errors.New("invalid path")
	// ErrUnauthenticated is returned when an operation needs a signed in user.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when the requester may not perform the operation.
	ErrForbidden = errors.New("forbidden")
)
