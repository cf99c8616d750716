package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestEntity(vruntime uint64, weight uint64) *FairSchedEntity {
	se := NewFairSchedEntity(weight)
	se.Vruntime = vruntime
	return se
}

func TestEntitySet_Insert_KeepsVruntimeOrder(t *testing.T) {
	var s entitySet
	a := newTestEntity(30, NiceZeroLoad)
	b := newTestEntity(10, NiceZeroLoad)
	c := newTestEntity(20, NiceZeroLoad)

	s.insert(a)
	s.insert(b)
	s.insert(c)

	assert.Equal(t, b, s.first())
	assert.Equal(t, []*FairSchedEntity{b, c, a}, s.items)
}

func TestEntitySet_RemoveKey_MissingKey_ReturnsNil(t *testing.T) {
	var s entitySet
	s.insert(newTestEntity(10, NiceZeroLoad))
	assert.Nil(t, s.removeKey(999))
}

func TestEntitySet_RemoveIdentity_DisambiguatesEqualKeys(t *testing.T) {
	var s entitySet
	a := newTestEntity(10, NiceZeroLoad)
	b := newTestEntity(10, NiceZeroLoad)
	s.insert(a)
	s.insert(b)

	assert.True(t, s.removeIdentity(b))
	assert.True(t, s.contains(a))
	assert.False(t, s.contains(b))
}

func TestEntitySet_FirstExcept_SkipsGivenLeftmost(t *testing.T) {
	var s entitySet
	a := newTestEntity(10, NiceZeroLoad)
	b := newTestEntity(20, NiceZeroLoad)
	s.insert(a)
	s.insert(b)

	assert.Equal(t, b, s.firstExcept(a))
}

func TestEntitySet_FirstExcept_NonLeftmostSkip_ReturnsLeftmost(t *testing.T) {
	var s entitySet
	a := newTestEntity(10, NiceZeroLoad)
	b := newTestEntity(20, NiceZeroLoad)
	s.insert(a)
	s.insert(b)

	assert.Equal(t, a, s.firstExcept(b))
}

func TestEntitySet_FirstExcept_SoleEntryIsSkip_ReturnsItAnyway(t *testing.T) {
	var s entitySet
	a := newTestEntity(10, NiceZeroLoad)
	s.insert(a)

	assert.Equal(t, a, s.firstExcept(a))
}

func newTestCpuRunQueue() *CpuRunQueue {
	return NewCpuRunQueue(0, NewTunables())
}

func TestCfsRunQueue_EnqueueEntity_IncrementsNrRunning(t *testing.T) {
	rq := newTestCpuRunQueue()
	cfsRq := rq.CFS()
	se := NewFairSchedEntity(NiceZeroLoad)

	cfsRq.EnqueueEntity(se, EnqueueWakeup)

	assert.Equal(t, uint64(1), cfsRq.NrRunning())
	assert.Equal(t, OnRqQueued, se.OnRq)
}

func TestCfsRunQueue_DequeueEntity_DecrementsNrRunning(t *testing.T) {
	rq := newTestCpuRunQueue()
	cfsRq := rq.CFS()
	se := NewFairSchedEntity(NiceZeroLoad)

	cfsRq.EnqueueEntity(se, EnqueueWakeup)
	cfsRq.DequeueEntity(se, 0)

	assert.Equal(t, uint64(0), cfsRq.NrRunning())
	assert.Equal(t, OnRqNone, se.OnRq)
}

func TestCfsRunQueue_PickNextEntity_ReturnsLeftmostByDefault(t *testing.T) {
	rq := newTestCpuRunQueue()
	cfsRq := rq.CFS()

	heavy := NewFairSchedEntity(NiceZeroLoad)
	light := NewFairSchedEntity(NiceZeroLoad)
	cfsRq.EnqueueEntity(heavy, EnqueueWakeup)
	cfsRq.EnqueueEntity(light, EnqueueWakeup)

	leftmost := cfsRq.entities.first()
	picked := cfsRq.PickNextEntity()
	assert.NotNil(t, picked)
	assert.Same(t, leftmost, picked)
}

func TestCfsRunQueue_PickNextEntity_PrefersNextBuddyWhenEligible(t *testing.T) {
	rq := newTestCpuRunQueue()
	cfsRq := rq.CFS()

	a := NewFairSchedEntity(NiceZeroLoad)
	b := NewFairSchedEntity(NiceZeroLoad)
	cfsRq.EnqueueEntity(a, EnqueueWakeup)
	cfsRq.EnqueueEntity(b, EnqueueWakeup)

	cfsRq.setNextBuddy(b)
	assert.Equal(t, b, cfsRq.PickNextEntity())
}

func TestCfsRunQueue_PickNextEntity_SkipsCfsRqSkipOnce(t *testing.T) {
	rq := newTestCpuRunQueue()
	cfsRq := rq.CFS()

	a := newTestEntity(10, NiceZeroLoad)
	b := newTestEntity(20, NiceZeroLoad)
	cfsRq.innerEnqueueEntity(a)
	cfsRq.innerEnqueueEntity(b)

	cfsRq.skip = a
	picked := cfsRq.PickNextEntity()
	assert.Equal(t, b, picked)
	assert.Nil(t, cfsRq.skip, "skip is cleared after a single use")
}

func TestCfsRunQueue_PickNextEntity_FallsBackToLastBuddyWhenEnabled(t *testing.T) {
	rq := newTestCpuRunQueue()
	rq.Tunables.SetFeatures(DefaultSchedFeatures | FeatureLastBuddy)
	cfsRq := rq.CFS()

	a := NewFairSchedEntity(NiceZeroLoad)
	b := NewFairSchedEntity(NiceZeroLoad)
	cfsRq.EnqueueEntity(a, EnqueueWakeup)
	cfsRq.EnqueueEntity(b, EnqueueWakeup)

	cfsRq.last = b
	assert.Equal(t, b, cfsRq.PickNextEntity())
}

func TestCfsRunQueue_PutPrevEntity_StashesLastBuddyWhenFeatureEnabled(t *testing.T) {
	rq := newTestCpuRunQueue()
	rq.Tunables.SetFeatures(DefaultSchedFeatures | FeatureLastBuddy)
	cfsRq := rq.CFS()

	se := NewFairSchedEntity(NiceZeroLoad)
	cfsRq.EnqueueEntity(se, EnqueueWakeup)
	cfsRq.SetNextEntity(se)

	cfsRq.PutPrevEntity(se)

	assert.Equal(t, se, cfsRq.last)
	assert.Nil(t, cfsRq.current)
}

func TestCfsRunQueue_PutPrevEntity_NoLastBuddyWithoutFeature(t *testing.T) {
	rq := newTestCpuRunQueue()
	cfsRq := rq.CFS()

	se := NewFairSchedEntity(NiceZeroLoad)
	cfsRq.EnqueueEntity(se, EnqueueWakeup)
	cfsRq.SetNextEntity(se)

	cfsRq.PutPrevEntity(se)

	assert.Nil(t, cfsRq.last)
}

func TestCfsRunQueue_ClearBuddies_ClearsNextLastAndSkip(t *testing.T) {
	rq := newTestCpuRunQueue()
	cfsRq := rq.CFS()

	se := NewFairSchedEntity(NiceZeroLoad)
	cfsRq.EnqueueEntity(se, EnqueueWakeup)
	se.SetCfsRq(cfsRq)
	cfsRq.next = se
	cfsRq.last = se
	cfsRq.skip = se

	se.ClearBuddies()

	assert.Nil(t, cfsRq.next)
	assert.Nil(t, cfsRq.last)
	assert.Nil(t, cfsRq.skip)
}

func TestCfsRunQueue_AvgVruntime_EmptyQueue_ReturnsMinVruntime(t *testing.T) {
	cfsRq := NewCfsRunQueue()
	assert.Equal(t, cfsRq.MinVruntime(), cfsRq.AvgVruntime())
}

func TestCfsRunQueue_PlaceEntity_FirstEntityStartsAtAvgVruntime(t *testing.T) {
	rq := newTestCpuRunQueue()
	cfsRq := rq.CFS()
	se := NewFairSchedEntity(NiceZeroLoad)

	cfsRq.PlaceEntity(se, 0)

	assert.Equal(t, cfsRq.AvgVruntime(), se.Vruntime)
}

func TestCfsRunQueue_PlaceEntity_EnqueueInitialHalvesGrantedSlice(t *testing.T) {
	rq := newTestCpuRunQueue()
	cfsRq := rq.CFS()

	normal := NewFairSchedEntity(NiceZeroLoad)
	cfsRq.PlaceEntity(normal, 0)
	normalVslice := normal.Deadline - normal.Vruntime

	initial := NewFairSchedEntity(NiceZeroLoad)
	cfsRq.PlaceEntity(initial, EnqueueInitial)
	initialVslice := initial.Deadline - initial.Vruntime

	assert.Equal(t, normalVslice/2, initialVslice)
}

func TestCfsRunQueue_ReweightEntity_HeavierWeightNarrowsRemainingVslice(t *testing.T) {
	rq := newTestCpuRunQueue()
	cfsRq := rq.CFS()
	se := NewFairSchedEntity(NiceZeroLoad)
	cfsRq.EnqueueEntity(se, EnqueueWakeup)

	before := se.Deadline - se.Vruntime
	cfsRq.ReweightEntity(se, WeightForNice(-10))
	after := se.Deadline - se.Vruntime

	assert.Less(t, after, before)
}

func TestCfsRunQueue_UpdateMinVruntime_NeverDecreases(t *testing.T) {
	cfsRq := NewCfsRunQueue()
	start := cfsRq.MinVruntime()

	se := newTestEntity(start+1_000_000, NiceZeroLoad)
	cfsRq.innerEnqueueEntity(se)
	cfsRq.updateMinVruntime()

	assert.GreaterOrEqual(t, cfsRq.MinVruntime(), start)

	se2 := newTestEntity(start, NiceZeroLoad)
	cfsRq.innerEnqueueEntity(se2)
	cfsRq.updateMinVruntime()

	assert.GreaterOrEqual(t, cfsRq.MinVruntime(), start, "min_vruntime must never move backward")
}

func TestCfsRunQueue_InnerDequeueEntity_ResolvesVruntimeCollision(t *testing.T) {
	cfsRq := NewCfsRunQueue()
	a := newTestEntity(10, NiceZeroLoad)
	b := newTestEntity(10, NiceZeroLoad)
	cfsRq.innerEnqueueEntity(a)
	cfsRq.innerEnqueueEntity(b)

	cfsRq.innerDequeueEntity(b)

	assert.False(t, cfsRq.Contains(b))
	assert.True(t, cfsRq.Contains(a))
}

func TestCfsRunQueue_SchedSlice_HeavierEntityGetsLargerSlice(t *testing.T) {
	rq := newTestCpuRunQueue()
	cfsRq := rq.CFS()

	heavy := NewFairSchedEntity(WeightForNice(-10))
	light := NewFairSchedEntity(WeightForNice(10))
	cfsRq.EnqueueEntity(heavy, EnqueueWakeup)
	cfsRq.EnqueueEntity(light, EnqueueWakeup)

	assert.Greater(t, cfsRq.SchedSlice(heavy), cfsRq.SchedSlice(light))
}

func TestSchedPeriod_BelowNrLatency_ReturnsNrLatencyUnscaled(t *testing.T) {
	tun := NewTunables()
	assert.Equal(t, tun.NrLatency(), SchedPeriod(1, tun))
}

func TestSchedPeriod_AboveNrLatency_ScalesLinearly(t *testing.T) {
	tun := NewTunables()
	n := tun.NrLatency() + 4
	assert.Equal(t, n*tun.MinGranularityNs(), SchedPeriod(n, tun))
}

func TestCfsRunQueue_AccountCfsRqRuntime_DecrementsWithinSlice(t *testing.T) {
	cfsRq := NewCfsRunQueue()
	before := cfsRq.runtimeRemaining

	cfsRq.accountCfsRqRuntime(1_000_000)

	assert.Equal(t, before-1_000_000, cfsRq.runtimeRemaining)
}

func TestCfsRunQueue_AccountCfsRqRuntime_ExhaustionRefillsFlatSlice(t *testing.T) {
	cfsRq := NewCfsRunQueue()

	cfsRq.accountCfsRqRuntime(cfsBandwidthSliceNs + 1)

	assert.Equal(t, cfsBandwidthSliceNs, cfsRq.runtimeRemaining)
}

func TestCfsRunQueue_AccountCfsRqRuntime_ExhaustionReschedulesWhenOthersWaiting(t *testing.T) {
	rq := newTestCpuRunQueue()
	cfsRq := rq.CFS()
	a := NewFairSchedEntity(NiceZeroLoad)
	b := NewFairSchedEntity(NiceZeroLoad)
	cfsRq.EnqueueEntity(a, EnqueueWakeup)
	cfsRq.EnqueueEntity(b, EnqueueWakeup)

	rq.ClearNeedResched()
	cfsRq.accountCfsRqRuntime(cfsBandwidthSliceNs + 1)

	assert.True(t, rq.NeedResched())
}

func TestCfsRunQueue_AccountCfsRqRuntime_ExhaustionNoReschedWhenAlone(t *testing.T) {
	rq := newTestCpuRunQueue()
	cfsRq := rq.CFS()
	a := NewFairSchedEntity(NiceZeroLoad)
	cfsRq.EnqueueEntity(a, EnqueueWakeup)

	rq.ClearNeedResched()
	cfsRq.accountCfsRqRuntime(cfsBandwidthSliceNs + 1)

	assert.False(t, rq.NeedResched())
}

func TestCfsRunQueue_UpdateCurrent_AccountsRuntimeAgainstRemainingSlice(t *testing.T) {
	rq := newTestCpuRunQueue()
	cfsRq := rq.CFS()
	se := NewFairSchedEntity(NiceZeroLoad)
	cfsRq.EnqueueEntity(se, EnqueueWakeup)
	cfsRq.SetNextEntity(se)
	before := cfsRq.runtimeRemaining

	rq.UpdateRqClock(rq.ClockTask + 1_000_000)
	cfsRq.UpdateCurrent()

	assert.Equal(t, before-1_000_000, cfsRq.runtimeRemaining)
}
