package sched

// Scheduler is the external surface a scheduling class exposes to the
// per-CPU run queue. CompletelyFairScheduler is this module's
// only implementation; the interface exists so internal/workload depends
// on a contract rather than a concrete type.
type Scheduler interface {
	// Enqueue places task onto rq, walking its group ancestry and
	// bumping h_nr_running at each level it enqueues.
	Enqueue(rq *CpuRunQueue, task Task, flags EnqueueFlag)
	// Dequeue removes task from rq, stopping the upward walk as soon as an
	// ancestor level still has other runnable work.
	Dequeue(rq *CpuRunQueue, task Task, flags DequeueFlag)
	// YieldTask forces the currently running task to the back of its level
	// without fully recomputing its placement.
	YieldTask(rq *CpuRunQueue)
	// CheckPreemptCurrent compares task against rq's current task and
	// requests a reschedule if task is due to run sooner.
	CheckPreemptCurrent(rq *CpuRunQueue, task Task, flags EnqueueFlag)
	// PickTask descends rq's hierarchy to the next task-level entity that
	// should run. It does not change `current`, but PickNextEntity consumes
	// a pending skip hint at each level it visits.
	PickTask(rq *CpuRunQueue) *FairSchedEntity
	// PickNextTask puts prev back, picks the next task, and installs it as
	// rq's current.
	PickNextTask(rq *CpuRunQueue, prev Task) Task
	// PutPrevTask reconciles a task that is stepping down from `current`
	// back into the ordered set at every ancestor level.
	PutPrevTask(rq *CpuRunQueue, prev Task)
	// Tick accounts one scheduler tick's worth of execution against task,
	// updating vruntime, deadline (requesting a reschedule on expiry), and
	// PELT averages at every ancestor level. queued is true for a running
	// task, false for one already dequeued this tick.
	Tick(rq *CpuRunQueue, task Task, queued bool)
	// TaskFork initializes child's starting vruntime relative to parent's
	// current position, before child's first Enqueue.
	TaskFork(rq *CpuRunQueue, parent, child Task)
}

// CompletelyFairScheduler is the EEVDF-flavored CFS implementation this
// package builds toward. It carries no state of its own: every mutable field it
// touches lives on the CpuRunQueue/CfsRunQueue/FairSchedEntity passed in,
// so a single instance is safely shared across every CPU's run queue.
type CompletelyFairScheduler struct{}

// NewCompletelyFairScheduler returns a stateless CompletelyFairScheduler.
func NewCompletelyFairScheduler() *CompletelyFairScheduler {
	return &CompletelyFairScheduler{}
}

var _ Scheduler = (*CompletelyFairScheduler)(nil)

// Enqueue walks task's entity up through its scheduling group, enqueuing and
// bumping h_nr_running at every level that is not already on-rq, stops at
// the first ancestor that is already queued, then bumps the CPU-wide
// nr_running.
func (s *CompletelyFairScheduler) Enqueue(rq *CpuRunQueue, task Task, flags EnqueueFlag) {
	se := task.SchedEntity()
	f := flags

	for cur := se; cur != nil; cur = cur.Parent() {
		if cur.OnRq != OnRqNone {
			break
		}
		cfsRq := cur.CfsRq()
		if cfsRq == nil {
			cfsRq = rq.CFS()
			cur.SetCfsRq(cfsRq)
		}

		cfsRq.EnqueueEntity(cur, f)
		cfsRq.HNrRunning++
		if cur.IsIdle() {
			cfsRq.IdleHNrRunning++
		}

		f = EnqueueWakeup
	}

	rq.AddNrRunning(1)

	if flags.Has(EnqueueWakeup) {
		s.CheckPreemptCurrent(rq, task, flags)
	}
}

// Dequeue walks task's entity up through its scheduling group, stopping as
// soon as a level still has other runnable work so a partially-emptied
// group's own entity is left queued in its parent.
func (s *CompletelyFairScheduler) Dequeue(rq *CpuRunQueue, task Task, flags DequeueFlag) {
	se := task.SchedEntity()

	for cur := se; cur != nil; cur = cur.Parent() {
		cfsRq := cur.CfsRq()
		if cfsRq == nil {
			break
		}

		cfsRq.DequeueEntity(cur, flags)
		if cfsRq.HNrRunning > 0 {
			cfsRq.HNrRunning--
		}
		if cur.IsIdle() && cfsRq.IdleHNrRunning > 0 {
			cfsRq.IdleHNrRunning--
		}

		if cfsRq.NrRunning() > 0 {
			break
		}
		flags |= DequeueMove
	}

	rq.SubNrRunning(1)
}

// YieldTask forces the current task's deadline one slice further out and
// marks it skipped, so PickNextEntity passes over it in favor of whatever
// else is runnable.
func (s *CompletelyFairScheduler) YieldTask(rq *CpuRunQueue) {
	cfsRq := rq.CFS()
	se := cfsRq.Current()
	if se == nil {
		return
	}

	cfsRq.UpdateCurrent()
	se.Deadline += se.CalculateDeltaFair(se.Slice)
	cfsRq.skip = se

	if cfsRq.NrRunning() > 1 {
		rq.ReschedCurrent()
	}
}

// CheckPreemptCurrent compares task's entity against rq's current entity —
// aligning them to a common ancestor depth first, since group scheduling
// can put the two at different hierarchy depths — and requests a
// reschedule when task would become eligible to run sooner.
func (s *CompletelyFairScheduler) CheckPreemptCurrent(rq *CpuRunQueue, task Task, flags EnqueueFlag) {
	cfsRq := rq.CFS()
	curSe := cfsRq.Current()
	if curSe == nil {
		return
	}

	se := task.SchedEntity()
	if curSe == se {
		return
	}

	if curSe.IsIdle() != se.IsIdle() {
		if curSe.IsIdle() {
			rq.ReschedCurrent()
		}
		return
	}

	if !cfsRq.features().Has(FeatureWakeupPreemption) {
		return
	}

	matchCur, matchSe := findMatchingSe(curSe, se)
	if matchCur == nil || matchSe == nil || matchCur == matchSe {
		return
	}

	if matchSe.Deadline < matchCur.Deadline {
		rq.ReschedCurrent()
		matchCur.CfsRq().setNextBuddy(matchSe)
	}
}

// findMatchingSe walks a and b up to a common depth, then further up in
// lockstep until they share a parent, returning the pair of entities at
// that shared level. It returns (nil, nil) if the two never converge
// (entities from unrelated hierarchies), matching find_matching_se's
// traversal in the Rust source.
func findMatchingSe(a, b *FairSchedEntity) (*FairSchedEntity, *FairSchedEntity) {
	for a != nil && a.Depth > b.Depth {
		a = a.Parent()
	}
	for b != nil && b.Depth > a.Depth {
		b = b.Parent()
	}
	for a != nil && b != nil && a.Parent() != b.Parent() {
		a = a.Parent()
		b = b.Parent()
	}
	if a == nil || b == nil {
		return nil, nil
	}
	return a, b
}

// PickTask descends rq's hierarchy, calling PickNextEntity at each group
// level, until it reaches a task-level entity.
func (s *CompletelyFairScheduler) PickTask(rq *CpuRunQueue) *FairSchedEntity {
	cfsRq := rq.CFS()
	for {
		if cfsRq.NrRunning() == 0 {
			return nil
		}
		se := cfsRq.PickNextEntity()
		if se == nil {
			return nil
		}
		if se.IsTask() {
			return se
		}
		cfsRq = se.MyCfsRq()
	}
}

// PutPrevTask reconciles prev back into the ordered set at every ancestor
// level it belongs to.
func (s *CompletelyFairScheduler) PutPrevTask(rq *CpuRunQueue, prev Task) {
	if prev == nil {
		return
	}
	for cur := prev.SchedEntity(); cur != nil; cur = cur.Parent() {
		cfsRq := cur.CfsRq()
		if cfsRq == nil {
			continue
		}
		cfsRq.PutPrevEntity(cur)
	}
}

// PickNextTask picks the next runnable task while prev is still `current`
// at every level it occupies, then unwinds prev's and the pick's ancestor
// chains no further than their common ancestor: PutPrevEntity/SetNextEntity
// run on every level strictly below the point where the two chains share a
// CfsRunQueue, and the shared ancestor (and everything above it) is left
// untouched, since it was already correctly `current` before this call and
// still is after it. This mirrors pick_next_task_fair's se_depth/pse_depth
// unwind (fair.rs:1707-1801) rather than independently walking both chains
// to the root, which would spuriously dequeue/reinsert, reset Vlag/
// PrevSumExecRuntime, and overwrite the `last` buddy hint on a shared group
// entity every switch between siblings.
//
// Returns nil when nothing is runnable; the caller falls back to IdleClass.
func (s *CompletelyFairScheduler) PickNextTask(rq *CpuRunQueue, prev Task) Task {
	se := s.PickTask(rq)
	if se == nil {
		s.PutPrevTask(rq, prev)
		rq.SetCurrent(nil)
		return nil
	}

	if prev == nil {
		return s.installNext(rq, se, nil)
	}

	if se.Task() == prev {
		rq.SetCurrent(prev)
		return prev
	}

	prevSe := prev.SchedEntity()
	matchPrev, matchSe := findMatchingSe(prevSe, se)
	if matchPrev == nil || matchSe == nil {
		// Unrelated hierarchies: fall back to independently unwinding both
		// chains to their roots.
		s.PutPrevTask(rq, prev)
		return s.installNext(rq, se, nil)
	}

	for cur := prevSe; cur != nil; cur = cur.Parent() {
		if cfsRq := cur.CfsRq(); cfsRq != nil {
			cfsRq.PutPrevEntity(cur)
		}
		if cur == matchPrev {
			break
		}
	}

	return s.installNext(rq, se, matchSe)
}

// installNext calls SetNextEntity from se up to and including stopAt (or to
// the root when stopAt is nil), then installs se's task as rq's current.
func (s *CompletelyFairScheduler) installNext(rq *CpuRunQueue, se, stopAt *FairSchedEntity) Task {
	for cur := se; cur != nil; cur = cur.Parent() {
		if cfsRq := cur.CfsRq(); cfsRq != nil {
			cfsRq.SetNextEntity(cur)
		}
		if cur == stopAt {
			break
		}
	}

	task := se.Task()
	rq.SetCurrent(task)
	return task
}

// Tick accounts one tick's worth of execution against task at every
// ancestor level and ages its PELT averages. update_deadline (invoked by
// UpdateCurrent) already requests a reschedule and clears buddies once an
// entity's vruntime catches up to its deadline, so the slice-expiry check
// itself needs no separate pass here — only the PELT update was missing.
func (s *CompletelyFairScheduler) Tick(rq *CpuRunQueue, task Task, queued bool) {
	se := task.SchedEntity()

	for cur := se; cur != nil; cur = cur.Parent() {
		cfsRq := cur.CfsRq()
		if cfsRq == nil {
			continue
		}
		cfsRq.UpdateCurrent()
		cfsRq.updateLoadAvg(cur, UpdateTG)
		cur.UpdateCfsGroup(cfsRq.TaskGroup())
	}
}

// TaskFork brings the parent's run queue accounting up to date, sets child's
// vruntime to that queue's min_vruntime, and wires child to that queue. It
// does not call PlaceEntity and computes no deadline; the child's first
// Enqueue places it (vruntime from avg_vruntime, and a halved slice for the
// deadline under ENQUEUE_INITIAL).
func (s *CompletelyFairScheduler) TaskFork(rq *CpuRunQueue, parent, child Task) {
	parentSe := parent.SchedEntity()
	childSe := child.SchedEntity()

	cfsRq := parentSe.CfsRq()
	if cfsRq == nil {
		cfsRq = rq.CFS()
	}

	cfsRq.UpdateCurrent()
	childSe.Vruntime = cfsRq.MinVruntime()
	childSe.SetCfsRq(cfsRq)
}
