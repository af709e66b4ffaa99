package domain

import "errors"

// Error taxonomy for the messaging core. Authentication failures are fatal
// to the connection attempt; everything else is surfaced to the one client
// as an error event and never crashes the process.
var (
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrAccessDenied      = errors.New("access denied")
	ErrPersistenceFailed = errors.New("persistence failed")
	ErrNotFound          = errors.New("not found")
	ErrMessageTooLong    = errors.New("message content too long")
	ErrEmptyMessage      = errors.New("message content is empty")
)
