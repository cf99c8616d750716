package sched

import "sync/atomic"

// TaskGroup is the hierarchical group-scheduling surface referenced by a
// group FairSchedEntity's parent/my_cfs_rq links.
//
// This module only consumes a group's current share count; rebalancing
// cgroup cpu.shares writes across CPUs is out of scope for a fair
// scheduling engine with no multi-CPU topology to rebalance across.
type TaskGroup struct {
	shares atomic.Uint64
}

// NewTaskGroup creates a TaskGroup with the given initial share count.
func NewTaskGroup(shares uint64) *TaskGroup {
	tg := &TaskGroup{}
	tg.shares.Store(shares)
	return tg
}

// Shares returns the group's current share count.
func (tg *TaskGroup) Shares() uint64 { return tg.shares.Load() }

// SetShares updates the group's share count; the next UpdateCfsGroup call on
// any entity owned by this group will reweight it to match.
func (tg *TaskGroup) SetShares(shares uint64) { tg.shares.Store(shares) }
