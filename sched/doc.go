// Package sched implements a weighted, virtual-time fair CPU scheduler in
// the EEVDF/CFS lineage: per-entity vruntime and deadline tracking, PELT
// load averages, hierarchical group scheduling, and a single-CPU run queue
// driving it all.
//
// # Reading Guide
//
// Start with these files to build a mental model bottom-up:
//   - weight.go: the NICE-0-centered fixed-point weight algebra every
//     wall-clock-to-vruntime conversion goes through.
//   - pelt.go: per-entity load tracking, the geometric decay used to
//     answer "how much CPU has this entity actually wanted lately".
//   - entity.go: FairSchedEntity, the schedulable unit, and its ownership
//     links up through a scheduling group.
//   - cfsrunqueue.go: CfsRunQueue, the ordered set of runnable entities and
//     every placement/reweight/PELT-propagation operation over it.
//   - cpurunqueue.go: CpuRunQueue, the per-CPU lock and clock sources
//     everything above assumes are already held/advanced.
//   - scheduler.go: CompletelyFairScheduler, the external Scheduler
//     surface that ties enqueue/dequeue/pick/tick together.
//
// # Concurrency
//
// Every exported CompletelyFairScheduler method and every CfsRunQueue
// method that mutates state assumes the caller already holds the owning
// CpuRunQueue's lock. Nothing in this package spawns
// goroutines or blocks; callers decide their own concurrency model.
package sched
