package sched

// EnqueueFlag controls how Enqueue places an entity on a run queue.
// Values are combined with bitwise OR, mirroring the bitflags idiom the
// Rust source uses for the same vocabulary (fair.rs, EnqueueFlag::*).
type EnqueueFlag uint32

const (
	// EnqueueWakeup marks an enqueue driven by a task waking from sleep.
	EnqueueWakeup EnqueueFlag = 1 << iota
	// EnqueueInitial marks the first enqueue of a freshly forked entity.
	// Causes place_entity to halve the granted vslice.
	EnqueueInitial
	// EnqueueMigrated marks an enqueue that followed a cross-CPU migration.
	EnqueueMigrated
	// EnqueueRestore marks a re-enqueue that restores previously saved state.
	EnqueueRestore
	// EnqueueMove marks an enqueue that is part of a same-CPU move between
	// scheduling classes or cgroups, not a genuine wakeup.
	EnqueueMove
)

// Has reports whether all bits in mask are set.
func (f EnqueueFlag) Has(mask EnqueueFlag) bool { return f&mask == mask }

// DequeueFlag controls how Dequeue removes an entity from a run queue.
type DequeueFlag uint32

const (
	// DequeueSleep marks a dequeue because the task is going to sleep.
	DequeueSleep DequeueFlag = 1 << iota
	// DequeueSave marks a dequeue that must not touch min_vruntime, because
	// the entity will be restored with ENQUEUE_RESTORE shortly.
	DequeueSave
	// DequeueMove marks a dequeue that is part of a same-CPU move between
	// scheduling classes or cgroups.
	DequeueMove
	// DequeueMigrate marks a dequeue preceding a cross-CPU migration.
	DequeueMigrate
)

// Has reports whether all bits in mask are set.
func (f DequeueFlag) Has(mask DequeueFlag) bool { return f&mask == mask }

// WakeupFlag carries context about why check_preempt_current was invoked.
type WakeupFlag uint32

const (
	// WakeupFork marks a wakeup check issued right after task_fork.
	WakeupFork WakeupFlag = 1 << iota
	// WakeupSync hints that the waker is about to sleep, so the wakee can
	// be favored without violating fairness over the short term.
	WakeupSync
	// WakeupMigrated marks a wakeup check following a cross-CPU migration.
	WakeupMigrated
)

// Has reports whether all bits in mask are set.
func (f WakeupFlag) Has(mask WakeupFlag) bool { return f&mask == mask }

// SchedFeature gates optional scheduler behaviors, matching SCHED_FEATURES
// in the Rust source (fair.rs references SchedFeature::NEXT_BUDDY etc via
// SCHED_FEATURES.contains(..)).
type SchedFeature uint32

const (
	// FeatureNextBuddy lets pick_next_entity favor the `next` buddy hint
	// over the leftmost entity when the hint is still eligible.
	FeatureNextBuddy SchedFeature = 1 << iota
	// FeatureAltPeriod switches sched_slice's nr_running input from the
	// root nr_running to the hierarchical h_nr_running.
	FeatureAltPeriod
	// FeatureBaseSlice floors sched_slice at SYSCTL_SCHED_MIN_GRANULARITY.
	FeatureBaseSlice
	// FeatureWakeupPreemption enables check_preempt_current's eligibility
	// comparison; when unset, only the IDLE-vs-non-IDLE fast path fires.
	FeatureWakeupPreemption
	// FeatureLastBuddy lets pick_next_entity favor the `last` buddy hint
	// (the entity that most recently stepped down from `current`) as a
	// fallback behind NEXT_BUDDY.
	FeatureLastBuddy
)

// DefaultSchedFeatures matches the Rust source's SCHED_FEATURES default set.
const DefaultSchedFeatures = FeatureNextBuddy | FeatureBaseSlice | FeatureWakeupPreemption

// Has reports whether all bits in mask are set.
func (f SchedFeature) Has(mask SchedFeature) bool { return f&mask == mask }

// Policy is the scheduling class a task belongs to, consumed via the PCB
// contract; defined here because FairSchedEntity.IsIdle and
// the preemption checks need to compare against it.
type Policy int

const (
	PolicyCFS Policy = iota
	PolicyRT
	PolicyFIFO
	PolicyIdle
)

func (p Policy) String() string {
	switch p {
	case PolicyCFS:
		return "CFS"
	case PolicyRT:
		return "RT"
	case PolicyFIFO:
		return "FIFO"
	case PolicyIdle:
		return "IDLE"
	default:
		return "UNKNOWN"
	}
}

// ProcessFlags mirrors the narrow PCB flag surface this module consumes.
type ProcessFlags uint32

const (
	// NeedSchedule is set by the scheduler to request a reschedule at the
	// next safe point (return to userspace, end of IRQ, etc).
	NeedSchedule ProcessFlags = 1 << iota
)

// Has reports whether all bits in mask are set.
func (f ProcessFlags) Has(mask ProcessFlags) bool { return f&mask == mask }
