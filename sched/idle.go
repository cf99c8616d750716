package sched

// IdleClass is the fallback scheduling class a CPU falls back to when its
// CFS hierarchy has nothing runnable.
type IdleClass struct {
	task Task
}

// SetIdleTask installs the per-CPU idle task returned by PickNextTask when
// nothing else is runnable.
func (c *IdleClass) SetIdleTask(t Task) { c.task = t }

// IdleTask returns the installed idle task, or nil if none was set.
func (c *IdleClass) IdleTask() Task { return c.task }

// PickNextTask returns the idle task, unconditionally: CompletelyFairScheduler
// only consults IdleClass after its own pick has failed.
func (c *IdleClass) PickNextTask(rq *CpuRunQueue) Task { return c.task }

// PutPrevTask is a no-op: the idle task carries no CFS accounting state to
// reconcile (it is never enqueued into a CfsRunQueue).
func (c *IdleClass) PutPrevTask(rq *CpuRunQueue, prev Task) {}
