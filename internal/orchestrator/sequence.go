package orchestrator

import "sync/atomic"

// SequenceGenerator hands out monotonically increasing parcel sequence
// numbers. Injectable so replays and tests can pin the sequence.
type SequenceGenerator interface {
	Next() uint64
}

// AtomicSequence is the production SequenceGenerator: a process-local
// atomic counter starting at 1.
type AtomicSequence struct {
	counter uint64
}

// NewAtomicSequence creates a counter whose first Next() returns 1.
func NewAtomicSequence() *AtomicSequence {
	return &AtomicSequence{}
}

// Next returns the next sequence number.
func (s *AtomicSequence) Next() uint64 {
	return atomic.AddUint64(&s.counter, 1)
}
