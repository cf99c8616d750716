package sched

import (
	"sort"

	"github.com/sasha-s/go-deadlock"
)

// entitySet is the CfsRunQueue's "ordered set of runnable entities keyed by
// vruntime". The Rust source backs it with a red-black tree
// (crate::libs::rbtree::RBTree), but that container — like every other
// filesystem/container implementation in the surrounding kernel repository —
// is explicitly out of scope for this module: only its
// ordering contract matters here. A sorted slice gives the same external
// behavior (O(log n) leftmost/insertion-point lookup via binary search,
// stable duplicate-key handling) at the cost of O(n) insert/delete shifting,
// which is an acceptable trade for a teaching-scale run queue and keeps the
// vruntime collision-retry logic below trivial to express correctly.
type entitySet struct {
	items []*FairSchedEntity
}

func (s *entitySet) len() int { return len(s.items) }

func (s *entitySet) first() *FairSchedEntity {
	if len(s.items) == 0 {
		return nil
	}
	return s.items[0]
}

func (s *entitySet) insert(se *FairSchedEntity) {
	idx := sort.Search(len(s.items), func(i int) bool { return s.items[i].Vruntime >= se.Vruntime })
	s.items = append(s.items, nil)
	copy(s.items[idx+1:], s.items[idx:])
	s.items[idx] = se
}

// removeKey removes and returns some entity whose Vruntime equals key (the
// leftmost such entity), or nil if none exists.
func (s *entitySet) removeKey(key uint64) *FairSchedEntity {
	idx := sort.Search(len(s.items), func(i int) bool { return s.items[i].Vruntime >= key })
	if idx >= len(s.items) || s.items[idx].Vruntime != key {
		return nil
	}
	se := s.items[idx]
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	return se
}

// removeIdentity removes se specifically, scanning the run of entries that
// share its key (used when se's identity, not just its key, is known).
func (s *entitySet) removeIdentity(se *FairSchedEntity) bool {
	idx := sort.Search(len(s.items), func(i int) bool { return s.items[i].Vruntime >= se.Vruntime })
	for i := idx; i < len(s.items) && s.items[i].Vruntime == se.Vruntime; i++ {
		if s.items[i] == se {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// firstExcept returns the leftmost entity other than skip, falling back to
// the true leftmost if skip is nil or isn't actually leftmost (mirrors
// pick_next_entity's one-shot handling of cfs_rq->skip).
func (s *entitySet) firstExcept(skip *FairSchedEntity) *FairSchedEntity {
	if len(s.items) == 0 {
		return nil
	}
	if skip == nil || s.items[0] != skip {
		return s.items[0]
	}
	if len(s.items) > 1 {
		return s.items[1]
	}
	return s.items[0]
}

func (s *entitySet) contains(se *FairSchedEntity) bool {
	for _, e := range s.items {
		if e == se {
			return true
		}
	}
	return false
}

// UpdateAvgFlags controls which side effects update_load_avg performs.
type UpdateAvgFlags uint32

const (
	UpdateTG UpdateAvgFlags = 1 << iota
	SkipAgeLoad
	DoAttach
	DoDetach
)

func (f UpdateAvgFlags) has(mask UpdateAvgFlags) bool { return f&mask == mask }

// CfsRemoved accumulates PELT load removed by migrations that have not yet
// been drained into the owning CfsRunQueue's own average.
type CfsRemoved struct {
	mu          deadlock.Mutex
	nr          uint32
	loadAvg     uint64
	utilAvg     uint64
	runnableAvg uint64
}

func (r *CfsRemoved) add(load, util, runnable uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nr++
	r.loadAvg += load
	r.utilAvg += util
	r.runnableAvg += runnable
}

func (r *CfsRemoved) drain() (nr uint32, load, util, runnable uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nr, load, util, runnable = r.nr, r.loadAvg, r.utilAvg, r.runnableAvg
	r.nr, r.loadAvg, r.utilAvg, r.runnableAvg = 0, 0, 0, 0
	return
}

// CfsRunQueue is the per-CPU (or per-group) ordered set of runnable
// entities, plus its aggregated load and min-vruntime tracking.
type CfsRunQueue struct {
	Load LoadWeight

	nrRunning      uint64
	HNrRunning     uint64
	idleNrRunning  uint64
	IdleHNrRunning uint64
	minVruntime    uint64

	entities entitySet

	idle bool

	current *FairSchedEntity
	next    *FairSchedEntity
	last    *FairSchedEntity
	skip    *FairSchedEntity

	avgLoad          int64
	avgVruntimeAccum int64

	Avg SchedulerAvg

	owner     *CpuRunQueue
	taskGroup *TaskGroup

	Removed CfsRemoved

	propagate       int64
	propRunnableSum int64

	// runtimeRemaining is the simple remaining-runtime counter
	// account_cfs_rq_runtime decrements: a flat slice that refills to
	// cfsBandwidthSliceNs on exhaustion and requests a reschedule when
	// other entities are waiting. This is not cgroup bandwidth throttling
	// (no quota, no period, no hierarchical throttle propagation) — just
	// the counter itself.
	runtimeRemaining uint64

	// ClockRegressionCount counts update_current calls observed with a
	// non-advancing clock_task.
	ClockRegressionCount uint64
}

// cfsBandwidthSliceNs is the flat slice account_cfs_rq_runtime refills
// runtime_remaining to on exhaustion (5ms, matching the Rust source's
// min_cfs_rq_runtime / sched_cfs_bandwidth_slice default).
const cfsBandwidthSliceNs uint64 = 5_000_000

// NewCfsRunQueue creates an empty run queue. min_vruntime starts at 1<<20,
// matching the Rust source's CfsRunQueue::new — an arbitrary but consistent
// non-zero baseline so early vruntime arithmetic never wraps through zero.
func NewCfsRunQueue() *CfsRunQueue {
	return &CfsRunQueue{minVruntime: 1 << 20, runtimeRemaining: cfsBandwidthSliceNs}
}

// SetOwner wires the back-reference to the owning CpuRunQueue.
func (rq *CfsRunQueue) SetOwner(owner *CpuRunQueue) { rq.owner = owner }

// Owner returns the owning CpuRunQueue.
func (rq *CfsRunQueue) Owner() *CpuRunQueue { return rq.owner }

// SetTaskGroup wires the TaskGroup this run queue belongs to (for a group's
// owned child queue).
func (rq *CfsRunQueue) SetTaskGroup(tg *TaskGroup) { rq.taskGroup = tg }

// TaskGroup returns the owning TaskGroup, or nil at the root.
func (rq *CfsRunQueue) TaskGroup() *TaskGroup { return rq.taskGroup }

// SetIdle marks this queue as belonging to the SCHED_IDLE class of cgroups.
func (rq *CfsRunQueue) SetIdle(idle bool) { rq.idle = idle }

// IsIdle reports whether this queue is SCHED_IDLE.
func (rq *CfsRunQueue) IsIdle() bool { return rq.idle }

// Current returns the currently-running entity at this level, or nil.
func (rq *CfsRunQueue) Current() *FairSchedEntity { return rq.current }

// SetCurrent sets the currently-running entity at this level.
func (rq *CfsRunQueue) SetCurrent(se *FairSchedEntity) { rq.current = se }

// Next returns the NEXT_BUDDY hint.
func (rq *CfsRunQueue) Next() *FairSchedEntity { return rq.next }

// NrRunning returns the number of entities directly queued at this level.
func (rq *CfsRunQueue) NrRunning() uint64 { return rq.nrRunning }

// Len returns the number of entities currently in the ordered set (not
// counting `current`, which is removed from the set while running).
func (rq *CfsRunQueue) Len() int { return rq.entities.len() }

// MinVruntime returns the queue's monotonically non-decreasing floor.
func (rq *CfsRunQueue) MinVruntime() uint64 { return rq.minVruntime }

func (rq *CfsRunQueue) tunables() *Tunables {
	if rq.owner != nil && rq.owner.Tunables != nil {
		return rq.owner.Tunables
	}
	return DefaultTunables
}

func (rq *CfsRunQueue) features() SchedFeature { return rq.tunables().Features() }

func (rq *CfsRunQueue) isCurr(se *FairSchedEntity) bool { return rq.current == se }

// entityKey returns se.Vruntime - min_vruntime as a signed offset, the
// comparison key used by eligibility and avg_vruntime accounting.
func (rq *CfsRunQueue) entityKey(se *FairSchedEntity) int64 {
	return int64(se.Vruntime) - int64(rq.minVruntime)
}

// SchedPeriod computes a scheduling period for nrRunning entities: when
// nrRunning exceeds SCHED_NR_LATENCY the period scales linearly
// (nrRunning * MIN_GRANULARITY); otherwise it returns SCHED_NR_LATENCY's raw
// count unscaled, exactly as the Rust source does (fair.rs: sched_period,
// else branch returns SCHED_NR_LATENCY itself, not a separate "base latency
// in ns" constant) — preserved exactly rather than "fixed", since guessing
// a more sensible replacement constant risks changing behavior the source
// relies on elsewhere.
func SchedPeriod(nrRunning uint64, t *Tunables) uint64 {
	if nrRunning > t.NrLatency() {
		return nrRunning * t.MinGranularityNs()
	}
	return t.NrLatency()
}

// SchedSlice walks se's ancestor chain, narrowing the scheduling period at
// each level by the ratio of se's weight to that level's run queue load.
func (rq *CfsRunQueue) SchedSlice(se *FairSchedEntity) uint64 {
	t := rq.tunables()
	features := rq.features()

	nrRunning := rq.nrRunning
	if features.Has(FeatureAltPeriod) {
		nrRunning = rq.HNrRunning
	}
	if se.OnRq == OnRqNone {
		nrRunning++
	}
	slice := SchedPeriod(nrRunning, t)

	for cur := se; cur != nil; cur = cur.Parent() {
		ancestorRq := cur.CfsRq()
		if ancestorRq == nil {
			break
		}
		load := ancestorRq.Load
		if cur.OnRq == OnRqNone {
			load.Add(cur.Load.Weight)
		}
		slice = load.CalculateDelta(slice, cur.Load.Weight)
	}

	if features.Has(FeatureBaseSlice) {
		if mg := t.MinGranularityNs(); slice < mg {
			slice = mg
		}
	}
	return slice
}

// SchedVslice converts SchedSlice's wall-clock grant into a vruntime delta.
func (rq *CfsRunQueue) SchedVslice(se *FairSchedEntity) uint64 {
	return se.CalculateDeltaFair(rq.SchedSlice(se))
}

// AvgVruntime returns the load-weighted average vruntime of every queued
// entity (including `current` if it is still on-rq): the weighted mean of
// their offsets from min_vruntime, rounded toward negative infinity, added
// back onto min_vruntime. With no load it returns min_vruntime.
func (rq *CfsRunQueue) AvgVruntime() uint64 {
	avg := rq.avgVruntimeAccum
	load := rq.avgLoad
	if cur := rq.current; cur != nil && cur.OnRq != OnRqNone {
		w := int64(ScaleLoadDown(cur.Load.Weight))
		avg += rq.entityKey(cur) * w
		load += w
	}
	if load > 0 {
		if avg < 0 {
			avg -= load - 1
		}
		avg /= load
	}
	return uint64(int64(rq.minVruntime) + avg)
}

func (rq *CfsRunQueue) avgVruntimeAdd(se *FairSchedEntity) {
	w := int64(ScaleLoadDown(se.Load.Weight))
	rq.avgVruntimeAccum += rq.entityKey(se) * w
	rq.avgLoad += w
}

func (rq *CfsRunQueue) avgVruntimeSub(se *FairSchedEntity) {
	w := int64(ScaleLoadDown(se.Load.Weight))
	rq.avgVruntimeAccum -= rq.entityKey(se) * w
	rq.avgLoad -= w
}

// EntityEligible reports whether se's key is at or below the queue's
// load-weighted average — the EEVDF eligibility test pick_next_entity
// consults before handing a non-leftmost buddy the CPU.
func (rq *CfsRunQueue) EntityEligible(se *FairSchedEntity) bool {
	avg := rq.avgVruntimeAccum
	load := rq.avgLoad
	if cur := rq.current; cur != nil && cur.OnRq != OnRqNone {
		w := int64(ScaleLoadDown(cur.Load.Weight))
		avg += rq.entityKey(cur) * w
		load += w
	}
	return avg >= rq.entityKey(se)*load
}

// PickNextEntity returns the NEXT_BUDDY hint when the feature is enabled,
// the hint is present, and it is eligible; else the LAST_BUDDY hint under
// the same conditions; otherwise the leftmost entity, skipping over
// cfs_rq->skip once. When the ordered set is empty but an entity is still
// `current` (a lone group entity mid-descent, with no sibling queued beside
// it), that current entity is returned — pick_eevdf's `if (!node) return se`
// fallback, since an empty tree doesn't mean nothing is runnable here.
func (rq *CfsRunQueue) PickNextEntity() *FairSchedEntity {
	if rq.entities.len() == 0 {
		return rq.current
	}
	if rq.features().Has(FeatureNextBuddy) && rq.next != nil && rq.next != rq.skip && rq.EntityEligible(rq.next) {
		return rq.next
	}
	if rq.features().Has(FeatureLastBuddy) && rq.last != nil && rq.last != rq.skip && rq.EntityEligible(rq.last) {
		return rq.last
	}
	se := rq.entities.firstExcept(rq.skip)
	rq.skip = nil
	return se
}

// clearBuddies clears se's ancestor-wide buddy hints, but only if se is
// currently this level's `next` hint.
func (rq *CfsRunQueue) clearBuddies(se *FairSchedEntity) {
	if rq.next == se {
		se.ClearBuddies()
	}
}

// setNextBuddy installs se as this level's NEXT_BUDDY hint, consulted by
// PickNextEntity.
func (rq *CfsRunQueue) setNextBuddy(se *FairSchedEntity) { rq.next = se }

// updateMinVruntime recomputes min_vruntime from `current` (if still on-rq)
// and the leftmost queued entity, then applies __update_min_vruntime to
// fold the forward jump into avg_vruntime.
func (rq *CfsRunQueue) updateMinVruntime() {
	vruntime := rq.minVruntime
	curr := rq.current
	haveCurr := curr != nil

	if haveCurr {
		if curr.OnRq != OnRqNone {
			vruntime = curr.Vruntime
		} else {
			rq.current = nil
			haveCurr = false
		}
	}

	if leftmost := rq.entities.first(); leftmost != nil {
		if !haveCurr {
			vruntime = leftmost.Vruntime
		} else if leftmost.Vruntime < vruntime {
			vruntime = leftmost.Vruntime
		}
	}

	rq.minVruntime = rq.updateMinVruntimeImpl(vruntime)
}

// updateMinVruntimeImpl is __update_min_vruntime: a forward-only update
// whose signed-delta arithmetic is preserved exactly, including its
// 2^63ns/~292yr wraparound assumption, inherited as-is rather than
// re-derived.
func (rq *CfsRunQueue) updateMinVruntimeImpl(vruntime uint64) uint64 {
	minVruntime := rq.minVruntime
	delta := int64(vruntime) - int64(minVruntime)
	if delta > 0 {
		rq.avgVruntimeAccum -= rq.avgLoad * delta
		minVruntime = vruntime
	}
	return minVruntime
}

// UpdateCurrent advances `current`'s vruntime by the wall-clock delta since
// its last update, then refreshes its deadline and the queue's
// min_vruntime floor. A non-advancing or regressing clock is
// counted and otherwise ignored, matching the Rust source's bare `if now <=
// curr.exec_start { return }` guard.
func (rq *CfsRunQueue) UpdateCurrent() {
	curr := rq.current
	if curr == nil {
		return
	}

	now := rq.cfsRqClockTask()
	if now <= curr.ExecStart {
		rq.ClockRegressionCount++
		return
	}

	delta := now - curr.ExecStart
	curr.ExecStart = now
	curr.SumExecRuntime += delta
	curr.Vruntime += curr.CalculateDeltaFair(delta)

	rq.updateDeadline(curr)
	rq.updateMinVruntime()
	rq.accountCfsRqRuntime(delta)
}

// accountCfsRqRuntime decrements runtime_remaining by delta and, once it is
// exhausted, refills it to a flat cfsBandwidthSliceNs slice and requests a
// reschedule if there is other work waiting. There is no quota, period, or
// throttle propagation here — that cgroup-level bandwidth enforcement is out
// of scope; this is only the simple remaining-runtime counter.
func (rq *CfsRunQueue) accountCfsRqRuntime(delta uint64) {
	if rq.runtimeRemaining > delta {
		rq.runtimeRemaining -= delta
		return
	}

	rq.runtimeRemaining = cfsBandwidthSliceNs
	if rq.nrRunning > 1 {
		if rq.owner != nil {
			rq.owner.ReschedCurrent()
		}
	}
}

func (rq *CfsRunQueue) cfsRqClockTask() uint64 {
	if rq.owner != nil {
		return rq.owner.ClockTask
	}
	return 0
}

// updateDeadline refreshes se's slice and deadline once its vruntime has
// caught up to the previous deadline, and requests a reschedule if other
// entities are waiting.
func (rq *CfsRunQueue) updateDeadline(se *FairSchedEntity) {
	if se.Vruntime < se.Deadline {
		return
	}
	se.Slice = rq.tunables().BaseSliceNs()
	se.Deadline = se.Vruntime + se.CalculateDeltaFair(se.Slice)

	if rq.nrRunning > 1 {
		if rq.owner != nil {
			rq.owner.ReschedCurrent()
		}
		rq.clearBuddies(se)
	}
}

// PlaceEntity computes se's initial vruntime and deadline on enqueue,
// preserving any carried-over lag so a sleeper doesn't return to a
// fairness-breaking head start nor a fairness-breaking penalty.
func (rq *CfsRunQueue) PlaceEntity(se *FairSchedEntity, flags EnqueueFlag) {
	vruntime := rq.AvgVruntime()
	var lag int64

	se.Slice = rq.tunables().BaseSliceNs()
	vslice := se.CalculateDeltaFair(se.Slice)

	if rq.nrRunning > 0 {
		lag = se.Vlag
		load := rq.avgLoad
		if cur := rq.current; cur != nil && cur.OnRq != OnRqNone {
			load += int64(ScaleLoadDown(cur.Load.Weight))
		}
		lag *= load + int64(ScaleLoadDown(se.Load.Weight))
		if load == 0 {
			load = 1
		}
		lag /= load
	}

	se.Vruntime = uint64(int64(vruntime) - lag)

	if flags.Has(EnqueueInitial) {
		vslice /= 2
	}
	se.Deadline = se.Vruntime + vslice
}

// updateEntityLag recomputes se.Vlag as avg_vruntime() - se.Vruntime,
// clamped to ±calculate_delta_fair(max(TICK_NSEC, 2*slice)) — preserved
// exactly from the Rust source (fair.rs:update_entity_lag).
func (rq *CfsRunQueue) updateEntityLag(se *FairSchedEntity) {
	lag := int64(rq.AvgVruntime()) - int64(se.Vruntime)

	bound := 2 * se.Slice
	if TickNsec > bound {
		bound = TickNsec
	}
	limit := int64(se.CalculateDeltaFair(bound))

	switch {
	case lag < -limit:
		se.Vlag = -limit
	case lag > limit:
		se.Vlag = limit
	default:
		se.Vlag = lag
	}
}

func (rq *CfsRunQueue) innerEnqueueEntity(se *FairSchedEntity) {
	rq.avgVruntimeAdd(se)
	se.MinDeadline = se.Deadline
	se.SetCfsRq(rq)
	rq.entities.insert(se)
}

// innerDequeueEntity removes se from the ordered set, resolving vruntime
// collisions with a retry loop: the entity actually removed by key is
// checked for identity; a mismatch is reinserted at vruntime+i for a
// strictly increasing i until se itself comes out.
func (rq *CfsRunQueue) innerDequeueEntity(se *FairSchedEntity) {
	i := uint64(1)
	for {
		rm := rq.entities.removeKey(se.Vruntime)
		if rm == nil || rm == se {
			break
		}
		rm.Vruntime += i
		rq.entities.insert(rm)
		i++
	}
	rq.avgVruntimeSub(se)
}

func (rq *CfsRunQueue) accountEntityEnqueue(se *FairSchedEntity) {
	rq.Load.Add(se.Load.Weight)
	if se.IsTask() && rq.owner != nil {
		rq.owner.addCfsTask(se)
	}
	rq.nrRunning++
	if se.IsIdle() {
		rq.idleNrRunning++
	}
}

func (rq *CfsRunQueue) accountEntityDequeue(se *FairSchedEntity) {
	rq.Load.Sub(se.Load.Weight)
	if se.IsTask() && rq.owner != nil {
		rq.owner.removeCfsTask(se)
	}
	if rq.nrRunning > 0 {
		rq.nrRunning--
	}
	if se.IsIdle() && rq.idleNrRunning > 0 {
		rq.idleNrRunning--
	}
}

func (rq *CfsRunQueue) cfsRqClockPelt() uint64 {
	if rq.owner != nil {
		return rq.owner.ClockPelt
	}
	return 0
}

// updateLoadAvg advances se's PELT state to the queue's clock_pelt, then
// folds it into this queue's own average and propagates any group changes,
// per the DO_ATTACH/DO_DETACH/UPDATE_TG bookkeeping in the Rust source's
// update_load_avg.
func (rq *CfsRunQueue) updateLoadAvg(se *FairSchedEntity, flags UpdateAvgFlags) {
	now := rq.cfsRqClockPelt()

	if se.Avg.LastUpdateTime > 0 && !flags.has(SkipAgeLoad) {
		if se.Avg.UpdateLoadSum(now, uint32(ScaleLoadDown(se.Load.Weight)), uint32(se.Runnable()), isCurrentU32(rq.current == se)) {
			se.Avg.UpdateLoadAvg(ScaleLoadDown(se.Load.Weight))
		}
	}

	decayed := rq.updateSelfLoadAvg(now)
	if se.propagateEntityLoadAvg() {
		decayed = true
	}

	switch {
	case se.Avg.LastUpdateTime == 0 && flags.has(DoAttach):
		rq.attachEntityLoadAvg(se)
	case flags.has(DoDetach):
		rq.detachEntityLoadAvg(se)
	case decayed:
		// cfs_rq_util_change: nothing to propagate further upward in this
		// module's scope (frequency scaling hooks are out of scope).
	}
}

func isCurrentU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// attachEntityLoadAvg folds a freshly-placed (or never-seen) entity's PELT
// state into the queue's own average, the mirror image of
// detachEntityLoadAvg.
func (rq *CfsRunQueue) attachEntityLoadAvg(se *FairSchedEntity) {
	se.Avg.LastUpdateTime = rq.cfsRqClockPelt()
	rq.enqueueLoadAvg(se)
	rq.propagate = 1
	rq.propRunnableSum += int64(se.Avg.LoadSum)
}

// detachEntityLoadAvg removes se's PELT contribution from this queue's own
// average.
func (rq *CfsRunQueue) detachEntityLoadAvg(se *FairSchedEntity) {
	rq.dequeueLoadAvg(se)

	SubPositive(&rq.Avg.UtilAvg, se.Avg.UtilAvg)
	SubPositive(&rq.Avg.UtilSum, se.Avg.UtilSum)
	if floor := rq.Avg.UtilAvg * PeltMinDivider; rq.Avg.UtilSum < floor {
		rq.Avg.UtilSum = floor
	}

	SubPositive(&rq.Avg.RunnableAvg, se.Avg.RunnableAvg)
	SubPositive(&rq.Avg.RunnableSum, se.Avg.RunnableSum)
	if floor := rq.Avg.RunnableAvg * PeltMinDivider; rq.Avg.RunnableSum < floor {
		rq.Avg.RunnableSum = floor
	}

	rq.propagate = 1
	rq.propRunnableSum += int64(se.Avg.LoadSum)
}

func (rq *CfsRunQueue) updateSelfLoadAvg(now uint64) bool {
	decayed := false

	if nr, removedLoad, removedUtil, removedRunnable := rq.Removed.drain(); nr > 0 {
		divider := rq.Avg.Divider()

		SubPositive(&rq.Avg.LoadAvg, removedLoad)
		SubPositive(&rq.Avg.LoadSum, removedLoad*divider)
		if floor := rq.Avg.LoadAvg * PeltMinDivider; rq.Avg.LoadSum < floor {
			rq.Avg.LoadSum = floor
		}

		SubPositive(&rq.Avg.UtilAvg, removedUtil)
		SubPositive(&rq.Avg.UtilSum, removedUtil*divider)
		if floor := rq.Avg.UtilAvg * PeltMinDivider; rq.Avg.UtilSum < floor {
			rq.Avg.UtilSum = floor
		}

		SubPositive(&rq.Avg.RunnableAvg, removedRunnable)
		SubPositive(&rq.Avg.RunnableSum, removedRunnable*divider)
		if floor := rq.Avg.RunnableAvg * PeltMinDivider; rq.Avg.RunnableSum < floor {
			rq.Avg.RunnableSum = floor
		}

		rq.addTaskGroupPropagate(-int64(removedRunnable*divider) >> schedCapacityShift)
		decayed = true
	}

	if rq.Avg.UpdateLoadSum(now, uint32(ScaleLoadDown(rq.Load.Weight)), uint32(rq.HNrRunning), isCurrentU32(rq.current != nil)) {
		rq.Avg.UpdateLoadAvg(1)
		decayed = true
	}

	return decayed
}

func (rq *CfsRunQueue) addTaskGroupPropagate(runnableSum int64) {
	rq.propagate = 1
	rq.propRunnableSum += runnableSum
}

func (rq *CfsRunQueue) enqueueLoadAvg(se *FairSchedEntity) {
	rq.Avg.LoadAvg += se.Avg.LoadAvg
	rq.Avg.LoadSum += ScaleLoadDown(se.Load.Weight) * se.Avg.LoadSum
}

func (rq *CfsRunQueue) dequeueLoadAvg(se *FairSchedEntity) {
	SubPositive(&rq.Avg.LoadAvg, se.Avg.LoadAvg)
	SubPositive(&rq.Avg.LoadSum, ScaleLoadDown(se.Load.Weight)*se.Avg.LoadSum)
	if floor := rq.Avg.LoadAvg * PeltMinDivider; rq.Avg.LoadSum < floor {
		rq.Avg.LoadSum = floor
	}
}

// updateTaskGroupUtil/Runnable/Load reconcile a group entity se's PELT
// state with its owned child queue gcfsRq, matching
// update_task_group_util/runnable/load in the Rust source.
func (rq *CfsRunQueue) updateTaskGroupUtil(se *FairSchedEntity, gcfsRq *CfsRunQueue) {
	deltaAvg := int64(gcfsRq.Avg.UtilAvg) - int64(se.Avg.UtilAvg)
	if deltaAvg == 0 {
		return
	}
	divider := rq.Avg.Divider()

	se.Avg.UtilAvg = gcfsRq.Avg.UtilAvg
	newSum := se.Avg.UtilAvg * divider
	deltaSum := int64(newSum) - int64(se.Avg.UtilSum)
	se.Avg.UtilSum = newSum

	addPositiveU64(&rq.Avg.UtilAvg, deltaAvg)
	addPositiveU64(&rq.Avg.UtilSum, deltaSum)

	if floor := rq.Avg.UtilAvg * PeltMinDivider; rq.Avg.UtilSum < floor {
		rq.Avg.UtilSum = floor
	}
}

func (rq *CfsRunQueue) updateTaskGroupRunnable(se *FairSchedEntity, gcfsRq *CfsRunQueue) {
	deltaAvg := int64(gcfsRq.Avg.RunnableAvg) - int64(se.Avg.RunnableAvg)
	if deltaAvg == 0 {
		return
	}
	divider := rq.Avg.Divider()

	se.Avg.RunnableAvg = gcfsRq.Avg.RunnableAvg
	newSum := se.Avg.RunnableAvg * divider
	deltaSum := int64(newSum) - int64(se.Avg.RunnableSum)
	se.Avg.RunnableSum = newSum

	addPositiveU64(&rq.Avg.RunnableAvg, deltaAvg)
	addPositiveU64(&rq.Avg.RunnableSum, deltaSum)

	if floor := rq.Avg.RunnableAvg * PeltMinDivider; rq.Avg.RunnableSum < floor {
		rq.Avg.RunnableSum = floor
	}
}

func (rq *CfsRunQueue) updateTaskGroupLoad(se *FairSchedEntity, gcfsRq *CfsRunQueue) {
	runnableSum := gcfsRq.propRunnableSum
	if runnableSum == 0 {
		return
	}
	gcfsRq.propRunnableSum = 0

	divider := int64(rq.Avg.Divider())
	var loadSum int64

	if runnableSum >= 0 {
		runnableSum += int64(se.Avg.LoadSum)
		if runnableSum > divider {
			runnableSum = divider
		}
	} else {
		if w := ScaleLoadDown(gcfsRq.Load.Weight); w > 0 {
			loadSum = int64(gcfsRq.Avg.LoadSum / w)
		}
		runnableSum = int64(se.Avg.LoadSum)
		if loadSum < runnableSum {
			runnableSum = loadSum
		}
	}

	runningSum := int64(se.Avg.UtilSum) >> schedCapacityShift
	if runningSum > runnableSum {
		runnableSum = runningSum
	}

	loadSum = int64(ScaleLoadDown(se.Load.Weight)) * runnableSum
	loadAvg := loadSum / divider

	deltaAvg := loadAvg - int64(se.Avg.LoadAvg)
	if deltaAvg == 0 {
		return
	}
	deltaSum := loadSum - int64(ScaleLoadDown(se.Load.Weight))*int64(se.Avg.LoadSum)

	se.Avg.LoadSum = uint64(runnableSum)
	se.Avg.LoadAvg = uint64(loadAvg)

	addPositiveU64(&rq.Avg.LoadAvg, deltaAvg)
	addPositiveU64(&rq.Avg.LoadSum, deltaSum)

	if floor := rq.Avg.LoadAvg * PeltMinDivider; rq.Avg.LoadSum < floor {
		rq.Avg.LoadSum = floor
	}
}

// addPositiveU64 adds a signed delta to a uint64 accumulator, clamping at 0
// instead of wrapping, the same guard AddPositive applies for the
// entity-level PELT fields the Rust source stores as isize.
func addPositiveU64(a *uint64, delta int64) {
	v := int64(*a) + delta
	if v < 0 {
		v = 0
	}
	*a = uint64(v)
}

// EnqueueEntity places se onto the queue (PlaceEntity runs before
// UpdateCurrent when se is current, and after it otherwise), charges its
// load, and inserts it into the ordered set.
func (rq *CfsRunQueue) EnqueueEntity(se *FairSchedEntity, flags EnqueueFlag) {
	isCurr := rq.isCurr(se)

	if isCurr {
		rq.PlaceEntity(se, flags)
	}

	rq.UpdateCurrent()
	rq.updateLoadAvg(se, UpdateTG|DoAttach)

	se.updateRunnable()
	se.UpdateCfsGroup(rq.taskGroup)

	if !isCurr {
		rq.PlaceEntity(se, flags)
	}

	rq.accountEntityEnqueue(se)

	if flags.Has(EnqueueMigrated) {
		se.ExecStart = 0
	}

	if !isCurr {
		rq.innerEnqueueEntity(se)
	}

	se.OnRq = OnRqQueued
}

// DequeueEntity removes se from the queue, preserving its lag for a future
// re-enqueue.
func (rq *CfsRunQueue) DequeueEntity(se *FairSchedEntity, flags DequeueFlag) {
	action := UpdateTG
	if se.IsTask() && se.OnRq == OnRqMigrating {
		action |= DoDetach
	}

	rq.UpdateCurrent()
	rq.updateLoadAvg(se, action)

	se.updateRunnable()
	rq.clearBuddies(se)
	rq.updateEntityLag(se)

	if rq.current != se {
		rq.innerDequeueEntity(se)
	}

	se.OnRq = OnRqNone
	rq.accountEntityDequeue(se)
	se.UpdateCfsGroup(rq.taskGroup)

	if !flags.Has(DequeueSave) {
		rq.updateMinVruntime()
	}
}

// PutPrevEntity accounts prev's final slice of execution, re-inserts it into
// the ordered set if it is still queued, stashes it as the LAST_BUDDY hint,
// then clears `current`.
func (rq *CfsRunQueue) PutPrevEntity(prev *FairSchedEntity) {
	if prev.OnRq != OnRqNone {
		rq.UpdateCurrent()
	}
	if prev.OnRq != OnRqNone {
		rq.innerEnqueueEntity(prev)
	}
	if rq.features().Has(FeatureLastBuddy) {
		rq.last = prev
	}
	rq.current = nil
}

// SetNextEntity removes se from the ordered set (if present), updates its
// load average, captures its deadline as the new vlag baseline, and makes
// it `current`.
func (rq *CfsRunQueue) SetNextEntity(se *FairSchedEntity) {
	rq.clearBuddies(se)

	if se.OnRq != OnRqNone {
		rq.innerDequeueEntity(se)
		rq.updateLoadAvg(se, UpdateTG)
		se.Vlag = int64(se.Deadline)
	}

	rq.current = se
	se.PrevSumExecRuntime = se.SumExecRuntime
}

// ReweightEntity changes se's weight, re-deriving vruntime/deadline around
// the queue's current avg_vruntime so the change doesn't itself create an
// unfair jump.
func (rq *CfsRunQueue) ReweightEntity(se *FairSchedEntity, weight uint64) {
	isCurr := rq.isCurr(se)

	if se.OnRq != OnRqNone {
		if isCurr {
			rq.UpdateCurrent()
		} else {
			rq.innerDequeueEntity(se)
		}
		rq.Load.Sub(se.Load.Weight)
	}

	rq.dequeueLoadAvg(se)

	if se.OnRq == OnRqNone {
		se.Vlag = se.Vlag * int64(se.Load.Weight) / int64(weight)
	} else {
		rq.reweightEevdf(se, weight)
	}
	se.Load.Set(weight)

	divider := se.Avg.Divider()
	if divider > 0 {
		se.Avg.LoadAvg = ScaleLoadDown(se.Load.Weight) * se.Avg.LoadSum / divider
	}

	rq.enqueueLoadAvg(se)

	if se.OnRq != OnRqNone {
		rq.Load.Add(se.Load.Weight)
		if !isCurr {
			rq.innerEnqueueEntity(se)
		}
		rq.updateMinVruntime()
	}
}

// reweightEevdf re-derives vruntime and deadline around avg_vruntime() when
// a queued entity's weight changes, preserving the fraction of the slice
// already consumed.
func (rq *CfsRunQueue) reweightEevdf(se *FairSchedEntity, weight uint64) {
	oldWeight := int64(se.Load.Weight)
	avgVruntime := rq.AvgVruntime()

	if avgVruntime != se.Vruntime {
		vlag := int64(avgVruntime) - int64(se.Vruntime)
		vlag = vlag * oldWeight / int64(weight)
		se.Vruntime = uint64(int64(avgVruntime) - vlag)
	}

	vslice := int64(se.Deadline) - int64(avgVruntime)
	vslice = vslice * oldWeight / int64(weight)
	se.Deadline = avgVruntime + uint64(vslice)
}

// Contains reports whether se is currently present in the ordered set (not
// counting `current`). Test-only convenience for invariant checks.
func (rq *CfsRunQueue) Contains(se *FairSchedEntity) bool { return rq.entities.contains(se) }
