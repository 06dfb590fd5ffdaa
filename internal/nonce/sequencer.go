package nonce

import "sync/atomic"

// Sequencer hands out account nonces in strictly increasing order.
// Next issues the current value and advances the cursor in one atomic step,
// so a value is never handed out twice even if callers run concurrently.
type Sequencer struct {
	start  uint64
	cursor atomic.Uint64
}

// New creates a Sequencer whose first issued nonce is start
func New(start uint64) *Sequencer {
	s := &Sequencer{start: start}
	s.cursor.Store(start)
	return s
}

// Next returns the next nonce and advances the cursor by one
func (s *Sequencer) Next() uint64 {
	return s.cursor.Add(1) - 1
}

// Peek returns the nonce the next call to Next will issue
func (s *Sequencer) Peek() uint64 {
	return s.cursor.Load()
}

// Issued returns how many nonces have been handed out
func (s *Sequencer) Issued() uint64 {
	return s.cursor.Load() - s.start
}
