package sched

import "github.com/sasha-s/go-deadlock"

// CpuRunQueue is the per-CPU container owning the lock, the clock sources
// every PELT/vruntime update reads, and the root CfsRunQueue. All
// structural mutation of the CFS hierarchy rooted here — enqueue, dequeue,
// pick, tick — requires holding this queue's lock first.
//
// The lock is a *github.com/sasha-s/go-deadlock* Mutex rather than a bare
// sync.Mutex: a scheduler run queue lock is exactly the kind of
// lock-ordering-sensitive primitive that benefits from deadlock's
// held-lock-graph cycle detection during development, the same reasoning
// that motivates its use for concurrently-accessed state elsewhere in the
// wider Go ecosystem.
type CpuRunQueue struct {
	lock deadlock.Mutex

	CPUID int

	// Clock, ClockTask, and ClockPelt are three distinct clock sources:
	// wall clock, task-runtime clock (excludes time
	// stolen by IRQs/steal time, which this module does not model and so
	// always equals Clock), and the PELT decay clock (equals ClockTask;
	// this module does not model the "lost idle time" compensation real
	// kernels apply when a CPU goes idle for PELT purposes).
	Clock     uint64
	ClockTask uint64
	ClockPelt uint64

	nrRunning uint64

	cfs  *CfsRunQueue
	idle IdleClass

	current Task

	// cfsTasks is the flat list of every task-level entity reachable from
	// this CPU's hierarchy, mirroring the Rust source's `cfs_tasks` linked
	// list, which exists for iteration without a full tree walk.
	cfsTasks []*FairSchedEntity

	Tunables *Tunables

	needResched bool

	nextBalance uint64
}

// NewCpuRunQueue creates a CpuRunQueue with an empty root CfsRunQueue, owned
// by the given CPU id. A nil tunables uses DefaultTunables.
func NewCpuRunQueue(cpuID int, tunables *Tunables) *CpuRunQueue {
	if tunables == nil {
		tunables = DefaultTunables
	}
	rq := &CpuRunQueue{
		CPUID:    cpuID,
		cfs:      NewCfsRunQueue(),
		Tunables: tunables,
	}
	rq.cfs.SetOwner(rq)
	return rq
}

// Lock acquires the run queue lock. Every exported Scheduler operation in
// this package expects the caller to hold it first.
func (rq *CpuRunQueue) Lock() { rq.lock.Lock() }

// Unlock releases the run queue lock.
func (rq *CpuRunQueue) Unlock() { rq.lock.Unlock() }

// CFS returns the root CfsRunQueue for this CPU.
func (rq *CpuRunQueue) CFS() *CfsRunQueue { return rq.cfs }

// NrRunning returns the number of runnable entities across this CPU's whole
// hierarchy.
func (rq *CpuRunQueue) NrRunning() uint64 { return rq.nrRunning }

// AddNrRunning increments the runnable count by n.
func (rq *CpuRunQueue) AddNrRunning(n uint64) { rq.nrRunning += n }

// SubNrRunning decrements the runnable count by n, flooring at 0.
func (rq *CpuRunQueue) SubNrRunning(n uint64) {
	if n >= rq.nrRunning {
		rq.nrRunning = 0
		return
	}
	rq.nrRunning -= n
}

// Current returns the task currently executing on this CPU, or nil if idle.
func (rq *CpuRunQueue) Current() Task { return rq.current }

// SetCurrent records the task currently executing on this CPU.
func (rq *CpuRunQueue) SetCurrent(t Task) { rq.current = t }

// SchedIdleRq reports whether every runnable entity on this CPU belongs to
// the IDLE scheduling policy.
func (rq *CpuRunQueue) SchedIdleRq() bool {
	return rq.nrRunning > 0 && rq.nrRunning == rq.cfs.idleNrRunning
}

// ReschedCurrent marks the currently running task as needing a reschedule
// at its next safe point.
func (rq *CpuRunQueue) ReschedCurrent() {
	rq.needResched = true
	if rq.current != nil {
		rq.current.SetFlags(rq.current.Flags() | NeedSchedule)
	}
}

// NeedResched reports whether a reschedule has been requested since the
// last ClearNeedResched.
func (rq *CpuRunQueue) NeedResched() bool { return rq.needResched }

// ClearNeedResched clears the pending reschedule request, typically called
// by the scheduling loop right before invoking PickNextTask.
func (rq *CpuRunQueue) ClearNeedResched() { rq.needResched = false }

// UpdateRqClock advances this CPU's clock sources to now. now must be
// monotonically non-decreasing; a caller driving a discrete-event
// simulation (internal/workload) is responsible for that ordering.
func (rq *CpuRunQueue) UpdateRqClock(now uint64) {
	rq.Clock = now
	rq.ClockTask = now
	rq.ClockPelt = now
}

func (rq *CpuRunQueue) addCfsTask(se *FairSchedEntity) {
	rq.cfsTasks = append(rq.cfsTasks, se)
}

func (rq *CpuRunQueue) removeCfsTask(se *FairSchedEntity) {
	for i, t := range rq.cfsTasks {
		if t == se {
			rq.cfsTasks = append(rq.cfsTasks[:i], rq.cfsTasks[i+1:]...)
			return
		}
	}
}

// CfsTasks returns the flat list of every task-level entity currently
// reachable from this CPU's hierarchy. The returned slice is owned by the queue; callers must
// not retain it past the next structural mutation.
func (rq *CpuRunQueue) CfsTasks() []*FairSchedEntity { return rq.cfsTasks }
