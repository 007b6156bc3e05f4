package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and sinks return these
// (optionally wrapped) so callers can branch without string matching.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: key or row does not exist
// - ErrUnavailable: store or sink temporarily unreachable
// - ErrClosed: component already shut down
var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("unavailable")
	ErrClosed      = errors.New("closed")
)
