package control

import "sync/atomic"

// Sequencer hands out the sequence numbers attached to outbound status
// snapshots. Numbers are never reused and never decrease, giving observers a
// total order over broadcasts even when delivery reorders them.
type Sequencer struct {
	seq atomic.Uint64
}

// Next returns the next sequence number, starting from 1.
func (s *Sequencer) Next() uint64 {
	return s.seq.Add(1)
}

// Current returns the last number handed out.
func (s *Sequencer) Current() uint64 {
	return s.seq.Load()
}

// Receiver implements the consumer side of the ordering protocol: a snapshot
// whose sequence number is not strictly greater than the last accepted one
// is stale and must be dropped.
type Receiver struct {
	lastAccepted uint64
}

// Accept reports whether the snapshot should be applied, and records it.
func (r *Receiver) Accept(seq uint64) bool {
	if seq <= r.lastAccepted {
		return false
	}
	r.lastAccepted = seq
	return true
}

// LastAccepted returns the highest sequence number accepted so far.
func (r *Receiver) LastAccepted() uint64 { return r.lastAccepted }
