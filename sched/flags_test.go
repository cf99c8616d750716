package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnqueueFlag_Has_RequiresAllMaskBits(t *testing.T) {
	f := EnqueueWakeup | EnqueueMigrated
	assert.True(t, f.Has(EnqueueWakeup))
	assert.True(t, f.Has(EnqueueMigrated))
	assert.False(t, f.Has(EnqueueInitial))
	assert.True(t, f.Has(EnqueueWakeup|EnqueueMigrated))
}

func TestDequeueFlag_Has_RequiresAllMaskBits(t *testing.T) {
	f := DequeueSleep
	assert.True(t, f.Has(DequeueSleep))
	assert.False(t, f.Has(DequeueSave))
}

func TestSchedFeature_DefaultSet_HasExpectedBits(t *testing.T) {
	assert.True(t, DefaultSchedFeatures.Has(FeatureNextBuddy))
	assert.True(t, DefaultSchedFeatures.Has(FeatureBaseSlice))
	assert.True(t, DefaultSchedFeatures.Has(FeatureWakeupPreemption))
	assert.False(t, DefaultSchedFeatures.Has(FeatureLastBuddy))
	assert.False(t, DefaultSchedFeatures.Has(FeatureAltPeriod))
}

func TestPolicy_String_CoversEveryKnownValue(t *testing.T) {
	assert.Equal(t, "CFS", PolicyCFS.String())
	assert.Equal(t, "RT", PolicyRT.String())
	assert.Equal(t, "FIFO", PolicyFIFO.String())
	assert.Equal(t, "IDLE", PolicyIdle.String())
}

func TestPolicy_String_UnknownValue_ReturnsFallback(t *testing.T) {
	assert.Equal(t, "UNKNOWN", Policy(99).String())
}

func TestProcessFlags_Has_RequiresAllMaskBits(t *testing.T) {
	var f ProcessFlags
	assert.False(t, f.Has(NeedSchedule))
	f |= NeedSchedule
	assert.True(t, f.Has(NeedSchedule))
}
