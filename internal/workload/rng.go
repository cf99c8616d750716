package workload

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// RunKey uniquely identifies a reproducible driver run. Two runs with the
// same RunKey and identical fork schedule MUST produce bit-for-bit
// identical vruntime/deadline traces, since sched itself contains no
// randomness.
type RunKey int64

// NewRunKey creates a RunKey from a seed value.
func NewRunKey(seed int64) RunKey { return RunKey(seed) }

const (
	// SubsystemForkTiming is the RNG subsystem for synthetic fork-time jitter.
	SubsystemForkTiming = "fork_timing"
	// SubsystemSliceLength is the RNG subsystem for synthetic per-task
	// compute-burst lengths.
	SubsystemSliceLength = "slice_length"
)

// PartitionedRNG provides deterministic, isolated RNG instances per
// subsystem, so varying one subsystem's distribution (say, fork timing)
// never perturbs another's draw sequence (slice length). Not safe for
// concurrent use: callers drive one driver from a single goroutine.
type PartitionedRNG struct {
	key        RunKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a RunKey.
func NewPartitionedRNG(key RunKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named
// subsystem, caching it so repeated calls return the same instance.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	derivedSeed := int64(p.key) ^ fnv1a64(name)
	rng := rand.New(rand.NewSource(derivedSeed))
	p.subsystems[name] = rng
	return rng
}

// Key returns the RunKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() RunKey { return p.key }

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	_, _ = fmt.Fprint(h, s)
	return int64(h.Sum64())
}
