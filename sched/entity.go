package sched

// OnRqState is the three-way queued/migrating state of a FairSchedEntity.
type OnRqState int

const (
	// OnRqNone: the entity is not queued anywhere.
	OnRqNone OnRqState = iota
	// OnRqQueued: the entity sits in exactly one CfsRunQueue's ordered set
	// (or is the queue's `current`).
	OnRqQueued
	// OnRqMigrating: the entity has been dequeued from its source queue but
	// not yet enqueued on its destination; observable in no ordered set.
	OnRqMigrating
)

// Task is the minimal PCB surface the scheduler consumes. The
// PCB container itself is out of scope; this interface is the
// whole of the boundary contract.
type Task interface {
	SchedEntity() *FairSchedEntity
	Policy() Policy
	Flags() ProcessFlags
	SetFlags(ProcessFlags)
	PID() string
}

// FairSchedEntity is a schedulable unit — a task or a scheduling group —
// carrying vruntime, deadline, slice, lag, weight, PELT state, and
// parent/child links.
type FairSchedEntity struct {
	Load        LoadWeight
	Vruntime    uint64
	Deadline    uint64
	MinDeadline uint64
	Slice       uint64
	Vlag        int64

	PrevSumExecRuntime uint64
	SumExecRuntime     uint64
	ExecStart          uint64

	Avg SchedulerAvg

	OnRq  OnRqState
	Depth uint32

	RunnableWeight uint64

	// parent is a weak back-reference: the entity never outlives its owner
	// (the owning Task or TaskGroup), and parent is only read while the
	// owning CpuRunQueue's lock is held.
	parent *FairSchedEntity

	// cfsRq is a weak back-reference to the CfsRunQueue this entity is
	// queued in (its own level in the hierarchy, not its children's).
	cfsRq *CfsRunQueue

	// myCfsRq is the CfsRunQueue this entity owns, for group entities.
	// nil means this is a task-level (leaf) entity.
	myCfsRq *CfsRunQueue

	task Task

	// No self-reference field is stored: Go pointers are already stable, so
	// the Self() method simply returns the receiver, for readability at call
	// sites that mirror the Rust source's self_arc().
}

// NewFairSchedEntity creates a task-level entity with zeroed PELT state and
// the base slice, matching a freshly forked task's starting state.
func NewFairSchedEntity(weight uint64) *FairSchedEntity {
	se := &FairSchedEntity{
		Slice: DefaultTunables.BaseSliceNs(),
	}
	se.Load.Set(weight)
	se.initEntityRunnableAverage()
	return se
}

// Self returns the entity itself; present for symmetry with the Rust
// source's self_arc() at call sites that walk ancestor chains.
func (se *FairSchedEntity) Self() *FairSchedEntity { return se }

// Parent returns the entity's parent in the scheduling hierarchy, or nil at
// the root.
func (se *FairSchedEntity) Parent() *FairSchedEntity { return se.parent }

// SetParent wires se under parent and sets Depth to parent.Depth+1.
func (se *FairSchedEntity) SetParent(parent *FairSchedEntity) {
	se.parent = parent
	if parent == nil {
		se.Depth = 0
		return
	}
	se.Depth = parent.Depth + 1
}

// CfsRq returns the run queue this entity is (or was last) queued in.
func (se *FairSchedEntity) CfsRq() *CfsRunQueue { return se.cfsRq }

// SetCfsRq wires the back-reference used by SchedSlice's ancestor walk
// and by clear_buddies.
func (se *FairSchedEntity) SetCfsRq(rq *CfsRunQueue) { se.cfsRq = rq }

// MyCfsRq returns the run queue this (group) entity owns, or nil for a
// task-level entity.
func (se *FairSchedEntity) MyCfsRq() *CfsRunQueue { return se.myCfsRq }

// SetMyCfsRq marks se as a group entity owning child.
func (se *FairSchedEntity) SetMyCfsRq(child *CfsRunQueue) { se.myCfsRq = child }

// Task returns the owning task, or nil for a group entity.
func (se *FairSchedEntity) Task() Task { return se.task }

// SetTask wires the owning PCB-like handle, for task-level entities.
func (se *FairSchedEntity) SetTask(t Task) { se.task = t }

// IsTask reports whether se is a leaf (task) entity rather than a group
// entity. A group entity owns a child CfsRunQueue (MyCfsRq != nil); a task
// entity does not.
func (se *FairSchedEntity) IsTask() bool { return se.myCfsRq == nil }

// IsIdle reports whether se belongs to the IDLE scheduling policy, walking
// down into the owned child queue for group entities.
func (se *FairSchedEntity) IsIdle() bool {
	if se.IsTask() {
		if se.task == nil {
			return false
		}
		return se.task.Policy() == PolicyIdle
	}
	return se.myCfsRq.IsIdle()
}

// OnRqQueuedState reports whether se is currently queued.
func (se *FairSchedEntity) OnRqQueuedState() bool { return se.OnRq != OnRqNone }

// Runnable returns the weight this entity contributes to a parent group's
// runnable_weight: 1 for a queued task, 0 for a non-queued task, or the
// group's own RunnableWeight for a group entity.
func (se *FairSchedEntity) Runnable() uint64 {
	if se.IsTask() {
		if se.OnRq != OnRqNone {
			return 1
		}
		return 0
	}
	return se.RunnableWeight
}

// CalculateDeltaFair scales delta by NICE_0_LOAD/se.Load.Weight, converting
// a wall-clock delta into a vruntime delta.
func (se *FairSchedEntity) CalculateDeltaFair(delta uint64) uint64 {
	if se.Load.Weight == NiceZeroLoad {
		return delta
	}
	return se.Load.CalculateDelta(delta, NiceZeroLoad)
}

// initEntityRunnableAverage zeroes PELT state and, for task entities, seeds
// LoadAvg from the static weight so a freshly forked task is immediately
// visible to load-balancing without waiting a full PELT period.
func (se *FairSchedEntity) initEntityRunnableAverage() {
	se.Avg = SchedulerAvg{}
	if se.IsTask() {
		se.Avg.LoadAvg = ScaleLoadDown(se.Load.Weight)
	}
}

// updateRunnable refreshes RunnableWeight from the owned child queue's
// hierarchical running-task count, for group entities.
func (se *FairSchedEntity) updateRunnable() {
	if !se.IsTask() {
		se.RunnableWeight = se.myCfsRq.HNrRunning
	}
}

// ControlFlow is the visitor result for WalkGroup: Continue controls whether
// the walk proceeds to the parent, and ReturnToCaller signals that the
// caller of WalkGroup should itself return immediately rather than act on
// the final entity
// tuple; Go has no std::ops::ControlFlow, so this struct plays that role).
type ControlFlow struct {
	Continue       bool
	ReturnToCaller bool
}

// WalkGroup walks from se upward to the root, invoking visit at each
// ancestor. The walk stops when visit returns Continue == false or the root
// is reached. It returns the final ancestor visited (nil if visit requested
// an early stop with no ancestor processed — mirrors the Rust source's
// "failed upgrade" case, which cannot happen here since Go pointers don't
// expire, but is kept for call-site symmetry) and whether the caller should
// itself return immediately.
func WalkGroup(se *FairSchedEntity, visit func(*FairSchedEntity) ControlFlow) (final *FairSchedEntity, returnToCaller bool) {
	cur := se
	for {
		cf := visit(cur)
		if !cf.Continue {
			return cur, cf.ReturnToCaller
		}
		parent := cur.Parent()
		if parent == nil {
			return cur, cf.ReturnToCaller
		}
		cur = parent
	}
}

// ClearBuddies removes se from the next/last/skip buddy hints along its
// ancestor chain, stopping as soon as an ancestor's `next` hint points
// somewhere else.
func (se *FairSchedEntity) ClearBuddies() {
	WalkGroup(se, func(cur *FairSchedEntity) ControlFlow {
		rq := cur.CfsRq()
		if rq == nil {
			return ControlFlow{Continue: false, ReturnToCaller: true}
		}
		if rq.next != nil && rq.next != cur {
			return ControlFlow{Continue: false, ReturnToCaller: true}
		}
		rq.next = nil
		if rq.last == cur {
			rq.last = nil
		}
		if rq.skip == cur {
			rq.skip = nil
		}
		return ControlFlow{Continue: true, ReturnToCaller: true}
	})
}

// propagateEntityLoadAvg reconciles a group entity's PELT block with its
// owned child queue's accumulated propagation after the child's PELT state
// changed underneath it, and marks the parent queue's propagate flag so the
// parent's own update_self_load_avg picks the change up.
func (se *FairSchedEntity) propagateEntityLoadAvg() bool {
	if se.IsTask() {
		return false
	}
	gcfsRq := se.myCfsRq
	if gcfsRq.propagate == 0 {
		return false
	}
	gcfsRq.propagate = 0

	rq := se.CfsRq()
	if rq == nil {
		return true
	}
	rq.addTaskGroupPropagate(gcfsRq.propRunnableSum)
	rq.updateTaskGroupUtil(se, gcfsRq)
	rq.updateTaskGroupRunnable(se, gcfsRq)
	rq.updateTaskGroupLoad(se, gcfsRq)
	return true
}

// UpdateCfsGroup reweights se if its owned group's share count has drifted
// from its current Load.Weight — the group-scheduling analogue of a nice
// change.
func (se *FairSchedEntity) UpdateCfsGroup(group *TaskGroup) {
	if se.myCfsRq == nil || group == nil {
		return
	}
	shares := group.Shares()
	if se.Load.Weight != shares {
		rq := se.CfsRq()
		if rq != nil {
			rq.ReweightEntity(se, shares)
		}
	}
}
