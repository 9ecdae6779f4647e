// Package lru implements the least-recently-used eviction policy.
package lru

import "github.com/colstore/blockcache/policy"

// lru is a classic "move-to-front" policy: every access promotes the entry,
// so the back of the list is always the least recently used entry.
type lru struct {
	h policy.Hooks
}

type lruPolicy struct{}

// New returns a Policy factory that constructs per-shard LRU instances.
func New() policy.Policy { return lruPolicy{} }

func (lruPolicy) New(h policy.Hooks) policy.ShardPolicy { return &lru{h: h} }

func (lruPolicy) Name() string { return "lru" }

// OnInsert places a newly indexed entry at the most recently used end.
func (p *lru) OnInsert(n policy.Node) { p.h.PushFront(n) }

// OnAccess promotes the entry on every lookup hit.
func (p *lru) OnAccess(n policy.Node) { p.h.MoveToFront(n) }

// OnRemove is a no-op: pure LRU keeps no state beyond the shard list.
func (p *lru) OnRemove(policy.Node) {}

// Victim nominates the least recently used entry.
func (p *lru) Victim() policy.Node { return p.h.Back() }
