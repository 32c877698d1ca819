// ABOUTME: Lifetime counters for a store
// ABOUTME: Snapshots allocation, finalization and violation totals

package store

// Stats contains counters describing a store's lifetime activity.
type Stats struct {
	Allocated          int64 // Slots ever allocated
	Finalized          int64 // Slots whose payload has been released
	Reclaimed          int64 // Slot records removed from the table
	Live               int64 // Allocated minus finalized
	Tracked            int   // Records currently in the table
	FinalizerPanics    int64 // Recovered finalizer panics
	ContractViolations int64 // Fatal errors detected (use-after-free, revival, ...)
}

// Stats returns a snapshot of the store counters. Counters are read
// individually, so under concurrent mutation they may be mutually stale.
func (s *Store) Stats() Stats {
	allocated := s.allocated.Load()
	finalized := s.finalized.Load()
	return Stats{
		Allocated:          allocated,
		Finalized:          finalized,
		Reclaimed:          s.reclaimed.Load(),
		Live:               allocated - finalized,
		Tracked:            s.Len(),
		FinalizerPanics:    s.finalizerPanics.Load(),
		ContractViolations: s.violations.Load(),
	}
}
