package sched

// TickNsec is the scheduler tick period: 1ms, matching CONFIG_HZ=1000, the
// default most mainline kernels in this lineage ship with. update_entity_lag
// uses it as the lower bound of its clamp window.
const TickNsec uint64 = 1_000_000
