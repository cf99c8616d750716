package workload

import "github.com/sirupsen/logrus"

// Event is one discrete thing that happens to the run queue at a given
// nanosecond timestamp: a fork, a tick, or an exit.
type Event interface {
	Timestamp() uint64
	Execute(d *Driver)
}

// EventQueue orders Events by timestamp using container/heap.
type EventQueue []Event

func (eq EventQueue) Len() int           { return len(eq) }
func (eq EventQueue) Less(i, j int) bool { return eq[i].Timestamp() < eq[j].Timestamp() }
func (eq EventQueue) Swap(i, j int)      { eq[i], eq[j] = eq[j], eq[i] }

func (eq *EventQueue) Push(x any) {
	*eq = append(*eq, x.(Event))
}

func (eq *EventQueue) Pop() any {
	old := *eq
	n := len(old)
	item := old[n-1]
	*eq = old[0 : n-1]
	return item
}

// ForkEvent creates a new task at the given nice value and enqueues it.
type ForkEvent struct {
	time   uint64
	PID    string
	Nice   int
	Parent string // PID of the forking parent, empty for a root task
}

// NewForkEvent builds a ForkEvent firing at the given nanosecond timestamp.
func NewForkEvent(time uint64, pid string, nice int, parent string) *ForkEvent {
	return &ForkEvent{time: time, PID: pid, Nice: nice, Parent: parent}
}

func (e *ForkEvent) Timestamp() uint64 { return e.time }
func (e *ForkEvent) Execute(d *Driver) {
	logrus.Debugf("<< fork: %s (nice=%d) at %dns", e.PID, e.Nice, e.time)
	d.Fork(e.PID, e.Nice, e.Parent)
}

// TickEvent advances the driver's clock and accounts one tick's worth of
// execution against whichever task is current.
type TickEvent struct {
	time uint64
}

func (e *TickEvent) Timestamp() uint64 { return e.time }
func (e *TickEvent) Execute(d *Driver) {
	logrus.Debugf("<< tick at %dns", e.time)
	d.Tick(e.time)
}

// ExitEvent removes a task from the run queue for good.
type ExitEvent struct {
	time uint64
	PID  string
}

// NewExitEvent builds an ExitEvent firing at the given nanosecond timestamp.
func NewExitEvent(time uint64, pid string) *ExitEvent {
	return &ExitEvent{time: time, PID: pid}
}

func (e *ExitEvent) Timestamp() uint64 { return e.time }
func (e *ExitEvent) Execute(d *Driver) {
	logrus.Debugf("<< exit: %s at %dns", e.PID, e.time)
	d.Exit(e.PID)
}
