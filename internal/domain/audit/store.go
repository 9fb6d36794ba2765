package audit

import "context"

// Store persists decision audit records.
// Interface owned by domain per hexagonal architecture.
type Store interface {
	// Append stores audit records. Must be non-blocking from the caller's
	// perspective: audit failures never affect the decision itself.
	Append(ctx context.Context, records ...Record) error

	// Flush forces pending records to storage. Called during shutdown.
	Flush(ctx context.Context) error

	// Close releases resources.
	Close() error
}
