package forecast

import (
	"context"
	"time"
)

// Store is the contract the persistent forecast store must satisfy.
// Implementations are expected to serialize concurrent writers internally;
// the Coordinator additionally funnels all mutations through one goroutine.
type Store interface {
	// BulkInsert writes records with insert-or-replace semantics keyed by
	// normalized date.
	BulkInsert(ctx context.Context, records []Record) error
	// DeleteBefore removes records dated strictly earlier than date and
	// returns the number removed.
	DeleteBefore(ctx context.Context, date time.Time) (int64, error)
	// CountFrom counts records dated at or after date.
	CountFrom(ctx context.Context, date time.Time) (int, error)
	GetByDate(ctx context.Context, date time.Time) (Record, error)
	// GetFrom returns records dated at or after date, ascending by date.
	GetFrom(ctx context.Context, date time.Time) ([]Record, error)
}

// Fetcher abstracts the network side: a fire-and-forget fetch plus a
// broadcast subscription on its publish slot. A failed fetch publishes
// nothing; subscribers only ever see complete, non-empty batches, and a
// slow subscriber may miss intermediate batches but always sees the latest.
type Fetcher interface {
	FetchNow()
	Subscribe() <-chan Batch
}
