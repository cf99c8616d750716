package sched

import (
	"math"
	"math/bits"
)

// Fixed-point constants for the NICE-0-centered weight algebra.
const (
	// NiceZeroLoad is the weight assigned to a nice-0 entity: 1024, matching
	// sched_prio_to_weight[20] (static priority 120) in every mainline CFS implementation this
	// module is modeled on.
	NiceZeroLoad uint64 = 1 << 10

	// SchedLoadShift is the scale factor used by ScaleLoadDown/ScaleLoad on
	// 64-bit targets.
	SchedLoadShift = 10

	// wmultShift is WMULT_SHIFT: the fixed-point shift used by the
	// reciprocal-multiply fallback in LoadWeight.CalculateDelta.
	wmultShift = 32
)

// niceToWeight maps a nice value in [-20, 19] (index 0..39) to its fixed
// point weight. Index 20 (nice 0) is NiceZeroLoad. This is the standard
// table used by every Linux-derived CFS: each step multiplies/divides by
// roughly 1.25, so a nice-plus-1 task gets ~10% less CPU time than its
// sibling.
var niceToWeight = [40]uint64{
	/* -20 */ 88761, 71755, 56483, 46273, 36291,
	/* -15 */ 29154, 23254, 18705, 14949, 11916,
	/* -10 */ 9548, 7620, 6100, 4904, 3906,
	/* -5  */ 3121, 2501, 1991, 1586, 1277,
	/*  0  */ 1024, 820, 655, 526, 423,
	/*  5  */ 335, 272, 215, 172, 137,
	/*  10 */ 110, 87, 70, 56, 45,
	/*  15 */ 36, 29, 23, 18, 15,
}

// WeightForNice returns the fixed-point weight for the given nice value,
// clamped to [-20, 19].
func WeightForNice(nice int) uint64 {
	if nice < -20 {
		nice = -20
	}
	if nice > 19 {
		nice = 19
	}
	return niceToWeight[nice+20]
}

// ScaleLoadDown converts a raw fixed-point weight into the "scaled load"
// domain used by avg_vruntime, entity_key projections, and PELT inputs.
func ScaleLoadDown(w uint64) uint64 { return w >> SchedLoadShift }

// ScaleLoad is the inverse of ScaleLoadDown, used when a group's cgroup
// share count is expressed in the unscaled domain.
func ScaleLoad(w uint64) uint64 { return w << SchedLoadShift }

// LoadWeight is a fixed-point weight plus its precomputed reciprocal, used
// throughout the core to convert wall-clock deltas into vruntime deltas and
// vice versa.
type LoadWeight struct {
	Weight    uint64
	InvWeight uint32
}

// NewLoadWeight builds a LoadWeight with its reciprocal precomputed.
func NewLoadWeight(weight uint64) LoadWeight {
	var lw LoadWeight
	lw.Set(weight)
	return lw
}

// Set assigns a new weight and recomputes InvWeight. Weight == 0 is a valid
// state (an empty accumulator) and is the only case where InvWeight is 0;
// CalculateDelta never divides by a zero Weight directly, substituting 1.
func (lw *LoadWeight) Set(weight uint64) {
	lw.Weight = weight
	if weight == 0 {
		lw.InvWeight = 0
		return
	}
	lw.InvWeight = computeInvWeight(weight)
}

func computeInvWeight(weight uint64) uint32 {
	w := weight
	if w == 0 {
		w = 1
	}
	inv := (uint64(1) << wmultShift) / w
	if inv > math.MaxUint32 {
		inv = math.MaxUint32
	}
	return uint32(inv)
}

// Add accumulates delta into Weight and refreshes InvWeight, matching
// update_load_add in the Rust source.
func (lw *LoadWeight) Add(delta uint64) { lw.Set(lw.Weight + delta) }

// Sub removes delta from Weight (floored at 0) and refreshes InvWeight,
// matching update_load_sub.
func (lw *LoadWeight) Sub(delta uint64) {
	if delta >= lw.Weight {
		lw.Set(0)
		return
	}
	lw.Set(lw.Weight - delta)
}

// CalculateDelta returns floor(delta*weight/lw.Weight), computed through the
// fixed-point reciprocal with a renormalizing fallback when intermediate
// products would overflow — the same shape as the kernel's calc_delta_mine:
// reduce the numerator's bit width before multiplying by the reciprocal,
// then halve the product back under 32 bits (lowering the shift to match), and
// finally do the delta multiply in full 128-bit precision so the result
// never silently truncates.
func (lw *LoadWeight) CalculateDelta(delta, weight uint64) uint64 {
	inv := lw.InvWeight
	if lw.Weight == 0 {
		inv = computeInvWeight(1)
	}

	fact := weight
	shift := wmultShift
	for fact>>32 != 0 {
		fact >>= 1
		shift--
	}

	fact = fact * uint64(inv)
	for fact>>32 != 0 {
		fact >>= 1
		shift--
	}

	hi, lo := bits.Mul64(delta, fact)
	result := shiftRight128(hi, lo, shift)
	if result > math.MaxInt64 {
		return math.MaxInt64
	}
	return result
}

// shiftRight128 returns ((hi<<64)|lo) >> shift as a (possibly truncated)
// uint64, saturating to 0 when the shift would discard the entire value and
// treating a negative shift (weight so large CalculateDelta's renormalizing
// loop ran out of headroom) as a left shift, matching the kernel's use of a
// signed shift count in the equivalent helper.
func shiftRight128(hi, lo uint64, shift int) uint64 {
	if shift == 0 {
		return lo
	}
	if shift < 0 {
		n := -shift
		if n >= 64 {
			return 0
		}
		return lo << n
	}
	if shift >= 128 {
		return 0
	}
	if shift < 64 {
		return (lo >> uint(shift)) | (hi << uint(64-shift))
	}
	return hi >> uint(shift-64)
}
