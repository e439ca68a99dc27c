package queue

import "errors"

var (
	// errUnsupportedTimestampType is returned by ToAbsoluteTime when the
	// payload's occurred_at field is neither a string nor a float64.
	errUnsupportedTimestampType = errors.New("queue: unsupported timestamp type")

	// ErrStoreUnavailable wraps any storage-layer failure from enqueue,
	// claim, complete, or sweep. Callers treat it as fatal for the event
	// in flight and propagate rather than retry locally.
	ErrStoreUnavailable = errors.New("queue: store unavailable")

	// ErrEventNotFound is returned by complete when the active row no
	// longer exists — the lease already expired and another worker (or a
	// concurrent sweep) moved it to history first.
	ErrEventNotFound = errors.New("queue: event not found")

	// ErrMissingOccurredAt is returned by enqueue when the payload has no
	// usable occurred_at field.
	ErrMissingOccurredAt = errors.New("queue: payload missing occurred_at")
)
