// Package chain maintains the server's view of ambient chain state: the
// current slot, per-market oracle readings, and per-perp-market vAMM state.
// A single poller task writes these views; the book builder and HTTP
// handlers read them.
package chain

import (
	"sync"
	"time"
)

// SlotSource holds the last slot received from the chain. Updates are
// serialized with a mutex so health checks see a consistent value, and the
// value is monotonic: a stale update never rolls it back.
type SlotSource struct {
	mu           sync.Mutex
	lastSlot     uint64
	lastReceived time.Time
}

// NewSlotSource starts at slot zero.
func NewSlotSource() *SlotSource { return &SlotSource{} }

// Update records a newly observed slot, keeping the source monotonic.
func (s *SlotSource) Update(slot uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot > s.lastSlot {
		s.lastSlot = slot
	}
	s.lastReceived = time.Now()
}

// Slot returns the current slot.
func (s *SlotSource) Slot() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSlot
}

// LastReceived returns when a slot was last observed. Zero until the first
// update.
func (s *SlotSource) LastReceived() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReceived
}
