package forecast

import (
	"context"
	"log"
	"sync"
	"time"
)

// Coordinator decides when a fetch must occur and applies every published
// batch to the store. It owns the process-wide initialization flag and the
// single goroutine through which all store mutations flow.
type Coordinator struct {
	store   Store
	fetcher Fetcher

	mu          sync.Mutex
	initialized bool
	lastTrigger time.Time
}

// NewCoordinator creates a Coordinator. Run must be started for published
// batches to reach the store.
func NewCoordinator(store Store, fetcher Fetcher) *Coordinator {
	return &Coordinator{
		store:   store,
		fetcher: fetcher,
	}
}

// EnsureInitialized performs the startup freshness check at most once per
// process lifetime, no matter how many callers race into it. The first
// caller wins the test-and-set and dispatches the check asynchronously;
// everyone returns immediately.
func (c *Coordinator) EnsureInitialized() {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return
	}
	c.initialized = true
	c.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		needed, err := c.isFetchNeeded(ctx)
		if err != nil {
			log.Printf("coordinator: startup freshness check failed: %v", err)
			return
		}
		if !needed {
			log.Printf("coordinator: store already covers the %d-day horizon", HorizonDays)
			return
		}
		c.fetcher.FetchNow()
	}()
}

// isFetchNeeded is the sole freshness policy: the store must hold at least
// HorizonDays records dated today or later. Record age beyond that is not
// considered.
func (c *Coordinator) isFetchNeeded(ctx context.Context) (bool, error) {
	n, err := c.store.CountFrom(ctx, Today())
	if err != nil {
		return false, err
	}
	return n < HorizonDays, nil
}

// Run subscribes to the fetcher's publish slot and applies each delivered
// batch until ctx is cancelled. All store mutations happen inside this
// goroutine, so no two batch applications can interleave their
// delete/insert halves.
func (c *Coordinator) Run(ctx context.Context) {
	batches := c.fetcher.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-batches:
			c.apply(ctx, batch)
		}
	}
}

// apply performs the delete-then-insert reaction for one batch. The order is
// fixed: stale rows go first so a delete can never wipe freshly inserted
// data. Empty batches are ignored. Errors are logged, not retried; the next
// read simply sees the last-good state.
func (c *Coordinator) apply(ctx context.Context, batch Batch) {
	if len(batch) == 0 {
		return
	}

	today := Today()
	removed, err := c.store.DeleteBefore(ctx, today)
	if err != nil {
		log.Printf("coordinator: delete of stale records failed: %v", err)
		return
	}
	if err := c.store.BulkInsert(ctx, batch); err != nil {
		log.Printf("coordinator: insert of %d records failed: %v", len(batch), err)
		return
	}
	log.Printf("coordinator: applied batch of %d records, removed %d stale", len(batch), removed)
}

// HandlePeriodicTrigger unconditionally dispatches a fetch. The recurring
// trigger trusts its own interval logic, so there is no freshness check
// here. Returns as soon as the fetch is dispatched.
func (c *Coordinator) HandlePeriodicTrigger() {
	c.mu.Lock()
	c.lastTrigger = time.Now().UTC()
	c.mu.Unlock()

	c.fetcher.FetchNow()
}

// LastTriggeredAt reports when a periodic or manual trigger last dispatched
// a fetch. Zero if none has fired yet.
func (c *Coordinator) LastTriggeredAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastTrigger
}

// GetFrom returns stored records dated at or after date, ascending.
// Like every read entry point it ensures initialization first.
func (c *Coordinator) GetFrom(ctx context.Context, date time.Time) ([]Record, error) {
	c.EnsureInitialized()
	return c.store.GetFrom(ctx, date)
}

// GetByDate returns the stored record for one normalized date.
func (c *Coordinator) GetByDate(ctx context.Context, date time.Time) (Record, error) {
	c.EnsureInitialized()
	return c.store.GetByDate(ctx, date)
}
