package fetcher

import (
	"sync"

	"forecastd/internal/forecast"
)

// Slot is the fetcher's single-value publish mechanism: broadcast,
// last-value-wins, no backlog. Each subscriber has a one-element buffer; a
// new batch evicts an unconsumed old one, so a slow subscriber can miss an
// intermediate batch but always sees the latest.
type Slot struct {
	mu   sync.Mutex
	subs []chan forecast.Batch
}

func NewSlot() *Slot {
	return &Slot{}
}

// Subscribe registers a new observer for the lifetime of the process.
func (s *Slot) Subscribe() <-chan forecast.Batch {
	ch := make(chan forecast.Batch, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

// Publish delivers batch to every subscriber, overwriting any batch a
// subscriber has not yet consumed. Never blocks.
func (s *Slot) Publish(batch forecast.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- batch
	}
}
