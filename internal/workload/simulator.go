// Package workload drives a sched.CpuRunQueue through a synthetic
// fork/tick/exit timeline. It exists to exercise the scheduler core
// end-to-end and to produce the fairness traces sched.Fairness reports on;
// it is not itself part of the scheduling engine.
package workload

import (
	"container/heap"

	"github.com/sirupsen/logrus"

	"github.com/fairsched/fairsched/internal/pcb"
	"github.com/fairsched/fairsched/sched"
)

// Driver owns one CPU's run queue and the event queue that feeds it.
type Driver struct {
	rq *sched.CpuRunQueue
	sc sched.Scheduler

	idle sched.IdleClass

	tasks map[string]*pcb.PCB

	queue      EventQueue
	Clock      uint64
	horizon    uint64
	tickPeriod uint64

	rng *PartitionedRNG
}

// NewDriver creates a Driver over a fresh single-CPU run queue, pre-loaded
// with periodic TickEvents spaced tickPeriod nanoseconds apart out to
// horizon. Callers add ForkEvent/ExitEvent via Schedule before calling Run.
func NewDriver(horizon, tickPeriod uint64, seed int64) *Driver {
	d := &Driver{
		rq:         sched.NewCpuRunQueue(0, nil),
		sc:         sched.NewCompletelyFairScheduler(),
		tasks:      make(map[string]*pcb.PCB),
		horizon:    horizon,
		tickPeriod: tickPeriod,
		rng:        NewPartitionedRNG(NewRunKey(seed)),
	}
	for t := tickPeriod; t <= horizon; t += tickPeriod {
		heap.Push(&d.queue, &TickEvent{time: t})
	}
	return d
}

// RunQueue returns the run queue this driver owns, for inspection.
func (d *Driver) RunQueue() *sched.CpuRunQueue { return d.rq }

// RNG returns the driver's partitioned RNG, for callers generating
// synthetic fork timing or slice-length jitter ahead of a Run.
func (d *Driver) RNG() *PartitionedRNG { return d.rng }

// Schedule adds an event to the driver's queue.
func (d *Driver) Schedule(ev Event) { heap.Push(&d.queue, ev) }

// Run drains the event queue in timestamp order up to horizon, advancing
// the run queue's clock before each event executes.
func (d *Driver) Run() {
	for d.queue.Len() > 0 {
		ev := heap.Pop(&d.queue).(Event)
		if ev.Timestamp() > d.horizon {
			break
		}
		d.Clock = ev.Timestamp()
		d.rq.UpdateRqClock(d.Clock)
		ev.Execute(d)
	}
}

// Fork creates a new CFS task at the given nice value. If parentPID names
// a still-live task, the new task's vruntime is seeded from the parent's
// current position via TaskFork before it is first enqueued.
func (d *Driver) Fork(pid string, nice int, parentPID string) {
	task := pcb.New(pid, nice, sched.PolicyCFS)
	d.tasks[pid] = task

	if parent, ok := d.tasks[parentPID]; ok {
		d.sc.TaskFork(d.rq, parent, task)
	}

	d.sc.Enqueue(d.rq, task, sched.EnqueueInitial|sched.EnqueueWakeup)
	d.reschedule()
}

// Tick accounts one tick's worth of execution against the currently
// running task, if any, and re-evaluates who should run next.
func (d *Driver) Tick(now uint64) {
	if cur := d.rq.Current(); cur != nil {
		d.sc.Tick(d.rq, cur, true)
	}
	d.reschedule()
}

// Exit removes pid from the run queue for good.
func (d *Driver) Exit(pid string) {
	task, ok := d.tasks[pid]
	if !ok {
		return
	}

	d.sc.Dequeue(d.rq, task, 0)
	delete(d.tasks, pid)

	if d.rq.Current() == sched.Task(task) {
		d.rq.SetCurrent(nil)
		d.rq.ReschedCurrent()
	}
	d.reschedule()
}

// Report summarizes fairness across the tasks currently queued on this
// driver's run queue (CfsTasks); tasks that have exited are not counted.
func (d *Driver) Report() sched.FairnessReport { return sched.Fairness(d.rq) }

func (d *Driver) reschedule() {
	if d.rq.Current() != nil && !d.rq.NeedResched() {
		return
	}

	prev := d.rq.Current()
	next := d.sc.PickNextTask(d.rq, prev)
	d.rq.ClearNeedResched()

	if next == nil {
		d.rq.SetCurrent(d.idle.PickNextTask(d.rq))
		logrus.Debugf("cpu0 idle at %dns", d.Clock)
	}
}
