package sched

import "math/bits"

// PELT (Per-Entity Load Tracking) constants.
const (
	// PeltPeriodNs is the size of one PELT accumulation period.
	PeltPeriodNs uint64 = 1024

	// LoadAvgPeriod is the number of periods it takes for a contribution's
	// weight to halve: a 32-period half-life (32 * PeltPeriodNs = 32,768 ns).
	LoadAvgPeriod uint64 = 32

	// LoadAvgMax is the fixed-point saturation value of an infinite
	// geometric series of period contributions decayed at LoadAvgPeriod's
	// half-life: sum_{n=0}^{inf} 1024 * y^n, y^32 = 0.5.
	LoadAvgMax uint64 = 47742

	// PeltMinDivider is the floor of update_load_avg's divider
	// (LOAD_AVG_MAX - 1024), guaranteeing load_sum/runnable_sum/util_sum
	// never imply a load_avg/runnable_avg/util_avg below what period_contrib
	// alone would produce.
	PeltMinDivider uint64 = LoadAvgMax - PeltPeriodNs

	// schedCapacityShift scales a utilization sum into SCHED_CAPACITY_SCALE
	// units (1 << 10), used when running contributes to util_sum.
	schedCapacityShift = 10
)

// runnableAvgYNInv holds 2^32 * y^n for n in [0, LoadAvgPeriod), where
// y^32 = 0.5 exactly — the standard decay table every PELT implementation in
// this lineage precomputes so decay_load runs in constant time instead of
// calling a fractional power function.
var runnableAvgYNInv = [32]uint32{
	0xffffffff, 0xfa83b2da, 0xf5257d14, 0xefe4b99a, 0xeac0c6e6, 0xe5b906e6,
	0xe0ccdeeb, 0xdbfbb796, 0xd744fcc9, 0xd2a81d91, 0xce248c14, 0xc9b9bd85,
	0xc5672a10, 0xc12c4cc9, 0xbd08a39e, 0xb8fbaf46, 0xb504f333, 0xb123f581,
	0xad583ee9, 0xa9a15ab4, 0xa5fed6a9, 0xa2704302, 0x9ef5325f, 0x9b8d39b9,
	0x9837f050, 0x94f4efa8, 0x91c3d373, 0x8ea4398a, 0x8b95c1e3, 0x88980e80,
	0x85aac367, 0x82cd8698,
}

// mulU64U32Shr computes (val * mul) >> shift using a 96-bit intermediate
// product, matching the kernel's mul_u64_u32_shr helper this table's
// arithmetic depends on for exactness.
func mulU64U32Shr(val uint64, mul uint32, shift uint) uint64 {
	hi, lo := bits.Mul64(val, uint64(mul))
	return shiftRight128(hi, lo, int(shift))
}

// decayLoad returns val * y^n, y^32 = 1/2, using the period-folding
// identity y^n = (1/2)^(n/32) * y^(n%32) so the cost is O(1) regardless of n.
func decayLoad(val, n uint64) uint64 {
	if n == 0 {
		return val
	}
	if n > LoadAvgPeriod*63 {
		return 0
	}
	if n >= LoadAvgPeriod {
		val >>= n / LoadAvgPeriod
		n %= LoadAvgPeriod
	}
	return mulU64U32Shr(val, runnableAvgYNInv[n], 32)
}

// accumulatePeltSegments folds a prefix partial period (d1), `periods`
// whole periods, and a suffix partial period (d3) into a single decayed
// contribution, mirroring __accumulate_pelt_segments. The inputs are raw
// time, not yet scaled by load; UpdateLoadSum multiplies the returned
// contribution by load afterwards.
func accumulatePeltSegments(periods uint64, d1, d3 uint32) uint32 {
	c1 := decayLoad(uint64(d1), periods)
	c2 := LoadAvgMax - decayLoad(LoadAvgMax, periods) - PeltPeriodNs
	return uint32(c1) + uint32(c2) + d3
}

// SchedulerAvg is the PELT state block carried by every FairSchedEntity and
// every CfsRunQueue.
type SchedulerAvg struct {
	LastUpdateTime uint64
	LoadSum        uint64
	RunnableSum    uint64
	UtilSum        uint64
	LoadAvg        uint64
	RunnableAvg    uint64
	UtilAvg        uint64
	PeriodContrib  uint32
}

// Divider returns the current update_load_avg divider: LOAD_AVG_MAX - 1024
// plus whatever fraction of the current period has already accumulated.
func (a *SchedulerAvg) Divider() uint64 { return PeltMinDivider + uint64(a.PeriodContrib) }

// UpdateLoadSum advances the PELT accumulators to `now`, folding in `load`,
// `runnable`, and `running` contributions for the elapsed time. It returns
// true iff at least one full PELT period was crossed (the caller must then
// call UpdateLoadAvg to refresh the *_avg fields). A clock that has not
// advanced changes nothing and returns false; a clock that has gone
// backwards resyncs LastUpdateTime to now, accumulates nothing, and
// returns false.
func (a *SchedulerAvg) UpdateLoadSum(now uint64, load, runnable, running uint32) bool {
	if now < a.LastUpdateTime {
		a.LastUpdateTime = now
		return false
	}
	delta := now - a.LastUpdateTime
	if delta == 0 {
		return false
	}
	a.LastUpdateTime = now

	delta += uint64(a.PeriodContrib)
	periods := delta / PeltPeriodNs

	if periods > 0 {
		a.LoadSum = decayLoad(a.LoadSum, periods)
		a.RunnableSum = decayLoad(a.RunnableSum, periods)
		a.UtilSum = decayLoad(a.UtilSum, periods)

		delta %= PeltPeriodNs

		d1 := PeltPeriodNs - uint64(a.PeriodContrib)
		contrib := accumulatePeltSegments(periods, uint32(d1), uint32(delta))

		if load > 0 {
			a.LoadSum += uint64(load) * uint64(contrib)
		}
		if runnable > 0 {
			a.RunnableSum += uint64(runnable) * uint64(contrib)
		}
		if running > 0 {
			a.UtilSum += uint64(contrib) << schedCapacityShift
		}

		a.PeriodContrib = uint32(delta)
	} else {
		a.PeriodContrib += uint32(delta)

		if load > 0 {
			a.LoadSum += uint64(load) * delta
		}
		if runnable > 0 {
			a.RunnableSum += uint64(runnable) * delta
		}
		if running > 0 {
			a.UtilSum += delta << schedCapacityShift
		}
	}

	a.clampFloors()
	return periods > 0
}

// clampFloors enforces the SchedulerAvg invariant *_sum >= *_avg *
// PELT_MIN_DIVIDER, so a later UpdateLoadAvg never divides
// its way to a value smaller than what period_contrib alone would give.
func (a *SchedulerAvg) clampFloors() {
	if floor := a.LoadAvg * PeltMinDivider; a.LoadSum < floor {
		a.LoadSum = floor
	}
	if floor := a.RunnableAvg * PeltMinDivider; a.RunnableSum < floor {
		a.RunnableSum = floor
	}
	if floor := a.UtilAvg * PeltMinDivider; a.UtilSum < floor {
		a.UtilSum = floor
	}
}

// UpdateLoadAvg recomputes LoadAvg/RunnableAvg/UtilAvg from the current sums
// using `weight` (the owning entity or run queue's scaled-down LoadWeight)
// as the load_avg numerator.
func (a *SchedulerAvg) UpdateLoadAvg(weight uint64) {
	divider := a.Divider()
	if divider == 0 {
		return
	}
	a.LoadAvg = (a.LoadSum * weight) / divider
	a.RunnableAvg = a.RunnableSum / divider
	a.UtilAvg = a.UtilSum / divider
}

// SubPositive subtracts b from *a, flooring at 0 instead of wrapping —
// matching sub_positive in the Rust source, which guards every PELT
// detach/remove path against unsigned underflow.
func SubPositive(a *uint64, b uint64) {
	if b >= *a {
		*a = 0
		return
	}
	*a -= b
}

// AddPositive adds a (possibly negative) delta to *a, clamping at 0 instead
// of wrapping, mirroring add_positive.
func AddPositive(a *int64, delta int64) {
	*a += delta
	if *a < 0 {
		*a = 0
	}
}
