package transport

import "sync/atomic"

// Stats counts transport activity. Safe for concurrent use.
type Stats struct {
	batches      atomic.Uint64
	transactions atomic.Uint64
	failures     atomic.Uint64
	inbound      atomic.Uint64
	rejected     atomic.Uint64
	duplicates   atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats
type StatsSnapshot struct {
	Batches      uint64
	Transactions uint64
	Failures     uint64
	Inbound      uint64
	Rejected     uint64
	Duplicates   uint64
}

// RecordBatch records a batch handed to the endpoint
func (s *Stats) RecordBatch(transactions int) {
	s.batches.Add(1)
	s.transactions.Add(uint64(transactions))
}

// RecordFailure records a failed submission
func (s *Stats) RecordFailure() {
	s.failures.Add(1)
}

// RecordInbound records an inbound message; rejected marks an error response
func (s *Stats) RecordInbound(rejected bool) {
	s.inbound.Add(1)
	if rejected {
		s.rejected.Add(1)
	}
}

// RecordDuplicate records a suppressed duplicate notification
func (s *Stats) RecordDuplicate() {
	s.duplicates.Add(1)
}

// Snapshot returns the current counter values
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Batches:      s.batches.Load(),
		Transactions: s.transactions.Load(),
		Failures:     s.failures.Load(),
		Inbound:      s.inbound.Load(),
		Rejected:     s.rejected.Load(),
		Duplicates:   s.duplicates.Load(),
	}
}
