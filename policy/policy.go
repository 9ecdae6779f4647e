// Package policy defines the pluggable eviction policy contract used by the
// cache. A policy decides how lookups and inserts affect the recency ordering
// of resident entries and which entry a shard reclaims first under capacity
// pressure. The shard owns the key index and the intrusive list; a policy
// manipulates the list only through Hooks.
package policy

// Node is the minimal contract a cache entry must satisfy for a policy.
// Key and Value expose the entry's bytes read-only; Charge is the capacity
// cost accounted for the entry.
type Node interface {
	Key() []byte
	Value() []byte
	Charge() int64
}

// Hooks expose O(1) list operations a policy can use to manipulate the
// shard's intrusive ordering. Head is the most valuable end, back the next
// eviction victim. Implementations are provided by the shard.
//
// Concurrency: all hook calls happen under the shard lock.
type Hooks interface {
	// MoveToFront promotes the node to the most valuable position.
	MoveToFront(Node)
	// PushFront inserts the node at the most valuable position.
	PushFront(Node)
	// Back returns the current eviction candidate (nil if empty).
	Back() Node
	// Len returns the number of resident nodes in the shard.
	Len() int
}

// ShardPolicy is a per-shard policy instance bound to that shard's hooks.
// All methods are invoked under the shard lock.
//
// Semantics:
//   - OnInsert places a newly indexed entry into the ordering.
//   - OnAccess is invoked on every lookup hit; it is where LRU and FIFO
//     diverge (LRU promotes, FIFO ignores the access).
//   - OnRemove is a notification that the shard is detaching the entry
//     (explicit erase, invalidation, or replacement); the shard performs
//     the actual unlinking.
//   - Victim nominates the next entry to reclaim. The shard calls it in a
//     loop while over capacity and detaches each returned node.
type ShardPolicy interface {
	OnInsert(Node)
	OnAccess(Node)
	OnRemove(Node)
	Victim() Node
}

// Policy is a factory that creates shard-local policy instances bound to a
// particular shard's hooks. Name identifies the policy in logs.
type Policy interface {
	New(Hooks) ShardPolicy
	Name() string
}
