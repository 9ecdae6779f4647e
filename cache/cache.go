package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/colstore/blockcache/internal/util"
)

// shardedCache routes each key to one shard by a stable 64-bit hash and
// aggregates per-shard statistics. Shards are fully independent: operations
// on different shards never contend.
type shardedCache struct {
	shards []*shard
	opt    Options
}

// New constructs a Cache with the provided Options. It panics on a
// non-positive Capacity; everything else has a usable default. The total
// capacity is split evenly (ceiling division) across the shards.
func New(opt Options) Cache {
	if opt.Capacity <= 0 {
		panic("cache: Capacity must be > 0")
	}
	opt = opt.withDefaults()

	n := 1
	if !opt.SingleShard {
		if opt.Shards <= 0 {
			n = util.ReasonableShardCount()
		} else {
			n = int(util.NextPow2(uint64(opt.Shards)))
		}
	}

	c := &shardedCache{opt: opt}
	perShard := (opt.Capacity + int64(n) - 1) / int64(n)
	c.shards = make([]*shard, n)
	for i := range c.shards {
		c.shards[i] = newShard(perShard, &c.opt)
	}

	opt.Logger.Info("cache created",
		zap.Int64("capacity", opt.Capacity),
		zap.Int("shards", n),
		zap.String("policy", opt.Policy.Name()))
	return c
}

// ---- Cache implementation ----

func (c *shardedCache) Lookup(key []byte, mode LookupMode) *Handle {
	return c.route(key).lookup(key, mode)
}

func (c *shardedCache) Allocate(key []byte, valueLen, charge int) (*Handle, error) {
	if valueLen < 0 {
		panic("cache: negative value length")
	}
	if charge < 0 && charge != AutomaticCharge {
		panic("cache: negative charge")
	}

	buf, err := c.opt.Allocator.Allocate(len(key) + valueLen)
	if err != nil {
		c.opt.Logger.Warn("entry buffer allocation failed",
			zap.Int("bytes", len(key)+valueLen),
			zap.Error(err))
		return nil, fmt.Errorf("cache: allocate entry (%d key + %d value bytes): %w",
			len(key), valueLen, err)
	}
	copy(buf, key)

	e := &entry{
		shard:   c.route(key),
		buf:     buf,
		klen:    len(key),
		pending: true,
	}
	if charge == AutomaticCharge {
		e.charge = int64(len(buf)) + entryOverhead
	} else {
		e.charge = int64(charge)
	}
	e.refs.Store(1)
	return &Handle{e: e}, nil
}

func (c *shardedCache) Insert(h *Handle, cb EvictionCallback) {
	e := h.entry()
	e.shard.insert(e, cb)
}

func (c *shardedCache) Erase(key []byte) {
	c.route(key).erase(key)
}

// Invalidate applies the control to every shard in turn and sums the
// counts. Shard order is unspecified; shards are independent and other
// operations proceed concurrently on shards not currently being swept.
func (c *shardedCache) Invalidate(ctl InvalidationControl) int {
	ctl = ctl.withDefaults()
	invalidated := 0
	for _, s := range c.shards {
		invalidated += s.invalidate(ctl)
	}
	c.opt.Logger.Info("invalidation sweep finished",
		zap.Int("invalidated", invalidated))
	return invalidated
}

func (c *shardedCache) Usage() int64 {
	var total int64
	for _, s := range c.shards {
		u, _ := s.snapshot()
		total += u
	}
	return total
}

func (c *shardedCache) Capacity() int64 { return c.opt.Capacity }

func (c *shardedCache) Len() int {
	total := 0
	for _, s := range c.shards {
		_, n := s.snapshot()
		total += n
	}
	return total
}

func (c *shardedCache) Stats() Stats {
	var st Stats
	for _, s := range c.shards {
		st.Hits += s.hits.Load()
		st.Misses += s.misses.Load()
		st.Inserts += s.inserts.Load()
		st.Evictions += s.evicts.Load()
		u, n := s.snapshot()
		st.Usage += u
		st.Entries += n
	}
	return st
}

// route picks the shard for a key. The shard count is a power of two, so
// routing is a hash plus a mask.
func (c *shardedCache) route(key []byte) *shard {
	return c.shards[util.ShardIndex(util.HashKey(key), len(c.shards))]
}
