package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecayLoad_ZeroPeriods_ReturnsInput(t *testing.T) {
	assert.Equal(t, uint64(1000), decayLoad(1000, 0))
}

func TestDecayLoad_OneHalfLife_HalvesValue(t *testing.T) {
	got := decayLoad(LoadAvgMax, LoadAvgPeriod)
	assert.InDelta(t, LoadAvgMax/2, got, LoadAvgMax/100)
}

func TestDecayLoad_ManyPeriods_ConvergesToZero(t *testing.T) {
	assert.Equal(t, uint64(0), decayLoad(LoadAvgMax, LoadAvgPeriod*64))
}

func TestSchedulerAvg_UpdateLoadSum_NonAdvancingClock_IsNoOp(t *testing.T) {
	var a SchedulerAvg
	a.LastUpdateTime = 1000
	crossed := a.UpdateLoadSum(1000, 1024, 1, 1)
	assert.False(t, crossed)
	assert.Equal(t, uint64(0), a.LoadSum)
}

func TestSchedulerAvg_UpdateLoadSum_RegressingClock_ResyncsWithoutPanic(t *testing.T) {
	var a SchedulerAvg
	a.LastUpdateTime = 5000
	crossed := a.UpdateLoadSum(1000, 1024, 1, 1)
	assert.False(t, crossed)
	assert.Equal(t, uint64(1000), a.LastUpdateTime)
}

func TestSchedulerAvg_UpdateLoadSum_AccumulatesWithinOnePeriod(t *testing.T) {
	var a SchedulerAvg
	crossed := a.UpdateLoadSum(PeltPeriodNs/2, 1024, 1, 1)
	assert.False(t, crossed)
	assert.Greater(t, a.LoadSum, uint64(0))
	assert.Equal(t, uint32(PeltPeriodNs/2), a.PeriodContrib)
}

func TestSchedulerAvg_UpdateLoadSum_CrossingFullPeriod_ReportsTrue(t *testing.T) {
	var a SchedulerAvg
	crossed := a.UpdateLoadSum(PeltPeriodNs*3, 1024, 1, 1)
	assert.True(t, crossed)
}

func TestSchedulerAvg_UpdateLoadAvg_ZeroSums_YieldsZeroAverages(t *testing.T) {
	var a SchedulerAvg
	a.UpdateLoadAvg(1024)
	assert.Equal(t, uint64(0), a.LoadAvg)
}

func TestSchedulerAvg_UpdateLoadAvg_BusyRunnerConvergesTowardWeight(t *testing.T) {
	var a SchedulerAvg
	now := uint64(0)
	weight := uint64(1024)
	for i := 0; i < 200; i++ {
		now += PeltPeriodNs
		a.UpdateLoadSum(now, uint32(weight), 1, 1)
		a.UpdateLoadAvg(weight)
	}
	assert.InDelta(t, weight, a.UtilAvg, float64(weight)/20)
}

func TestSchedulerAvg_ClampFloors_RaisesSumToAvgFloor(t *testing.T) {
	a := SchedulerAvg{LoadAvg: 1000, LoadSum: 0}
	a.clampFloors()
	assert.Equal(t, uint64(1000)*PeltMinDivider, a.LoadSum)
}

func TestSubPositive_FlooredAtZero(t *testing.T) {
	v := uint64(5)
	SubPositive(&v, 10)
	assert.Equal(t, uint64(0), v)
}

func TestSubPositive_NormalSubtraction(t *testing.T) {
	v := uint64(10)
	SubPositive(&v, 3)
	assert.Equal(t, uint64(7), v)
}

func TestAddPositive_ClampsNegativeResultToZero(t *testing.T) {
	v := int64(5)
	AddPositive(&v, -10)
	assert.Equal(t, int64(0), v)
}

func TestAddPositive_AddsPositiveDelta(t *testing.T) {
	v := int64(5)
	AddPositive(&v, 10)
	assert.Equal(t, int64(15), v)
}
