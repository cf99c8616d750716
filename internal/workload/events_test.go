package workload

import (
	"container/heap"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventQueue_HeapOrder_DrainsByTimestampAscending(t *testing.T) {
	var q EventQueue
	heap.Push(&q, &TickEvent{time: 300})
	heap.Push(&q, &TickEvent{time: 100})
	heap.Push(&q, &TickEvent{time: 200})

	var order []uint64
	for q.Len() > 0 {
		order = append(order, heap.Pop(&q).(Event).Timestamp())
	}

	assert.Equal(t, []uint64{100, 200, 300}, order)
}

func TestForkEvent_Execute_ForksTaskOnDriver(t *testing.T) {
	d := NewDriver(0, 1000, 1)
	ev := NewForkEvent(0, "task-1", 0, "")

	ev.Execute(d)

	_, ok := d.tasks["task-1"]
	assert.True(t, ok)
}

func TestExitEvent_Execute_RemovesTaskFromDriver(t *testing.T) {
	d := NewDriver(0, 1000, 1)
	NewForkEvent(0, "task-1", 0, "").Execute(d)

	NewExitEvent(0, "task-1").Execute(d)

	_, ok := d.tasks["task-1"]
	assert.False(t, ok)
}

func TestExitEvent_Execute_UnknownPID_IsNoOp(t *testing.T) {
	d := NewDriver(0, 1000, 1)
	assert.NotPanics(t, func() {
		NewExitEvent(0, "ghost").Execute(d)
	})
}
