package store

import "context"

// EventReader exposes point-in-time queries against the append-only event
// database. The database is written by a separate monitor process; every
// method may fail transiently while a write transaction is in flight, and
// callers are expected to treat such failures as "retry next cycle".
type EventReader interface {
	// WorkflowStates returns all workflow-level transitions in ascending
	// time order.
	WorkflowStates(ctx context.Context) ([]WorkflowStateRow, error)

	// JobCatalog returns every known job in catalog order.
	JobCatalog(ctx context.Context) ([]CatalogEntry, error)

	// JobEvents returns every job state transition, ordered by timestamp
	// then writer sequence.
	JobEvents(ctx context.Context) ([]RawEvent, error)

	// JobAttempts returns the exit code and site of each job's latest
	// submission attempt.
	JobAttempts(ctx context.Context) ([]AttemptRow, error)

	// RecentEvents returns the limit most recent job state transitions,
	// most recent first.
	RecentEvents(ctx context.Context, limit int) ([]RawEvent, error)
}
