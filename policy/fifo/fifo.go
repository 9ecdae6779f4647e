// Package fifo implements the first-in-first-out eviction policy.
//
// FIFO deliberately ignores lookups: the ordering reflects insertion order
// only, so the measured capacity behaves like a ring buffer regardless of
// the read pattern. That keeps the policy's behavior easy to reason about
// for workloads where recency carries no signal (e.g. sequential scans).
package fifo

import "github.com/colstore/blockcache/policy"

type fifo struct {
	h policy.Hooks
}

type fifoPolicy struct{}

// New returns a Policy factory that constructs per-shard FIFO instances.
func New() policy.Policy { return fifoPolicy{} }

func (fifoPolicy) New(h policy.Hooks) policy.ShardPolicy { return &fifo{h: h} }

func (fifoPolicy) Name() string { return "fifo" }

// OnInsert places a newly indexed entry at the newest end of the queue.
func (p *fifo) OnInsert(n policy.Node) { p.h.PushFront(n) }

// OnAccess is a no-op: lookups never affect FIFO ordering.
func (p *fifo) OnAccess(policy.Node) {}

// OnRemove is a no-op: FIFO keeps no state beyond the shard list.
func (p *fifo) OnRemove(policy.Node) {}

// Victim nominates the oldest inserted entry.
func (p *fifo) Victim() policy.Node { return p.h.Back() }
