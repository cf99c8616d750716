// Package pcb provides the minimal process control block the scheduler
// moves around: an identity, a scheduling policy, a pending-reschedule
// flag, and the FairSchedEntity CFS accounts all vruntime/deadline/PELT
// state against. The container itself is out of scope for sched; this is
// the whole of the boundary contract, "the thing the scheduling engine
// moves around".
package pcb

import "github.com/fairsched/fairsched/sched"

// PCB is a schedulable process: one FairSchedEntity plus the identity and
// policy bits sched.Task requires.
type PCB struct {
	ID string // Unique identifier for the process

	policy sched.Policy
	flags  sched.ProcessFlags

	se *sched.FairSchedEntity
}

// New creates a PCB under the given nice value and policy, with a fresh
// FairSchedEntity wired back to it.
func New(id string, nice int, policy sched.Policy) *PCB {
	p := &PCB{
		ID:     id,
		policy: policy,
	}
	p.se = sched.NewFairSchedEntity(sched.WeightForNice(nice))
	p.se.SetTask(p)
	return p
}

// SchedEntity returns the FairSchedEntity backing this PCB.
func (p *PCB) SchedEntity() *sched.FairSchedEntity { return p.se }

// Policy returns the scheduling class this PCB was created under.
func (p *PCB) Policy() sched.Policy { return p.policy }

// Flags returns the current process flags.
func (p *PCB) Flags() sched.ProcessFlags { return p.flags }

// SetFlags overwrites the current process flags.
func (p *PCB) SetFlags(f sched.ProcessFlags) { p.flags = f }

// PID returns this PCB's identifier.
func (p *PCB) PID() string { return p.ID }
