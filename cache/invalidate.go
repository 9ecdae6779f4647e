package cache

// ValidityFunc decides whether the entry under key is still valid during an
// invalidation sweep. Entries it rejects are erased. It runs under the shard
// lock; the key and value slices must not be retained.
type ValidityFunc func(key, value []byte) bool

// IterationFunc gates the progress of an invalidation sweep. It is consulted
// before each entry is examined, with the counts accumulated so far in the
// current shard; returning false stops that shard's sweep immediately,
// leaving remaining entries untouched regardless of their validity. This is
// the escape hatch for cost-bounded sweeps: a constant-false functor is a
// valid no-op invalidation.
type IterationFunc func(valid, invalid int) bool

// InvalidateAll is the default ValidityFunc: every entry is invalid, which
// turns Invalidate into a full clear.
func InvalidateAll(_, _ []byte) bool { return false }

// IterateAll is the default IterationFunc: never stop early.
func IterateAll(_, _ int) bool { return true }

// InvalidationControl bundles the predicates steering Cache.Invalidate.
// The zero value clears the whole cache.
type InvalidationControl struct {
	Validity  ValidityFunc
	Iteration IterationFunc
}

func (ctl InvalidationControl) withDefaults() InvalidationControl {
	if ctl.Validity == nil {
		ctl.Validity = InvalidateAll
	}
	if ctl.Iteration == nil {
		ctl.Iteration = IterateAll
	}
	return ctl
}
