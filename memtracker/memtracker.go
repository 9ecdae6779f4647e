// Package memtracker implements the process-level memory accounting
// collaborator the cache reports its charges to. The tracker is a passive
// pair of counters: the cache consumes on insert and releases when an
// entry's bytes are finally freed, so pinned-but-evicted entries keep
// counting until their last handle drops.
package memtracker

import "sync/atomic"

// Tracker accumulates consumption across goroutines. The zero value is not
// usable; construct with New. All methods are safe for concurrent use.
//
// Consumption is best-effort by contract: when the cache is configured with
// a non-zero approximation ratio it batches updates, so readings may lag the
// true value by up to ratio x shard capacity per shard.
type Tracker struct {
	id          string
	consumption atomic.Int64
	peak        atomic.Int64
}

// New creates a tracker. The id names the consumer in diagnostics.
func New(id string) *Tracker {
	return &Tracker{id: id}
}

// ID returns the consumer name supplied at construction.
func (t *Tracker) ID() string { return t.id }

// Consume adds delta (which may be negative) to the tracked consumption and
// updates the high-water mark.
func (t *Tracker) Consume(delta int64) {
	c := t.consumption.Add(delta)
	for {
		peak := t.peak.Load()
		if c <= peak || t.peak.CompareAndSwap(peak, c) {
			return
		}
	}
}

// Release subtracts delta from the tracked consumption.
func (t *Tracker) Release(delta int64) { t.Consume(-delta) }

// Consumption returns the currently tracked byte count.
func (t *Tracker) Consumption() int64 { return t.consumption.Load() }

// Peak returns the highest consumption observed so far.
func (t *Tracker) Peak() int64 { return t.peak.Load() }
