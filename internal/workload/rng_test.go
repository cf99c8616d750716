package workload

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionedRNG_ForSubsystem_SameSubsystemReturnsStableInstance(t *testing.T) {
	rng := NewPartitionedRNG(NewRunKey(7))

	a := rng.ForSubsystem(SubsystemForkTiming)
	b := rng.ForSubsystem(SubsystemForkTiming)

	assert.Same(t, a, b)
}

func TestPartitionedRNG_ForSubsystem_DifferentSubsystemsDrawIndependently(t *testing.T) {
	rng := NewPartitionedRNG(NewRunKey(7))

	fork := rng.ForSubsystem(SubsystemForkTiming)
	slice := rng.ForSubsystem(SubsystemSliceLength)

	assert.NotEqual(t, fork.Int63(), slice.Int63())
}

func TestPartitionedRNG_SameRunKey_ProducesIdenticalSequences(t *testing.T) {
	a := NewPartitionedRNG(NewRunKey(42))
	b := NewPartitionedRNG(NewRunKey(42))

	seqA := a.ForSubsystem(SubsystemForkTiming)
	seqB := b.ForSubsystem(SubsystemForkTiming)

	for i := 0; i < 10; i++ {
		assert.Equal(t, seqA.Int63(), seqB.Int63())
	}
}

func TestPartitionedRNG_DifferentRunKeys_ProduceDifferentSequences(t *testing.T) {
	a := NewPartitionedRNG(NewRunKey(1))
	b := NewPartitionedRNG(NewRunKey(2))

	assert.NotEqual(t, a.ForSubsystem(SubsystemForkTiming).Int63(), b.ForSubsystem(SubsystemForkTiming).Int63())
}

func TestPartitionedRNG_Key_ReturnsConstructorKey(t *testing.T) {
	rng := NewPartitionedRNG(NewRunKey(99))
	assert.Equal(t, NewRunKey(99), rng.Key())
}
