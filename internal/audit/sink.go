package audit

import "context"

// Sink is the durable destination for audit events.
//
// InsertBatch is all-or-nothing: an error means none of the events can be
// assumed persisted and the caller requeues the whole batch. Duplicates
// across process generations are acceptable (at-least-once), silent loss is
// not.
type Sink interface {
	InsertOne(ctx context.Context, event Event) error
	InsertBatch(ctx context.Context, events []Event) error
}
