// Package audit provides an asynchronous, batched audit-log writer.
//
// Producers call Log and return immediately; the writer owns an in-memory
// FIFO queue drained to a durable Sink in batches, either on a timer or when
// the queue reaches the batch size. A failed batch is requeued at the head so
// nothing is lost and order is preserved (at-least-once semantics).
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Status records whether the audited operation succeeded.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// Event is a structured audit record. Callers fill in the action fields;
// the writer enriches the ambient request fields (tenant, user, client IP,
// user agent, request ID) from context at enqueue time.
type Event struct {
	ID        uuid.UUID
	Timestamp time.Time

	// What happened.
	Action     string
	Module     string
	TargetType string
	TargetID   string
	OldValue   string
	NewValue   string
	Status     Status
	// ErrorMessage carries the failure cause when Status is FAILURE.
	ErrorMessage string
	DurationMs   int64

	// Ambient request context, enriched at enqueue time.
	TenantID  string
	UserID    string
	UserName  string
	ClientIP  string
	UserAgent string
	RequestID string
}
