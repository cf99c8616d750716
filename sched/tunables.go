// Tunables groups the process-wide scheduling knobs a running kernel
// exposes as sysctls, expressed as atomic cells: relaxed loads in the hot
// path, sequentially consistent stores at reconfiguration time. This
// mirrors the grouping-struct convention used elsewhere in this codebase
// for runtime configuration.
package sched

import (
	"fmt"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Tunables holds the mutable scheduling knobs a running kernel would expose
// through /proc/sys/kernel/sched_*. All fields are atomic so a reconfigure
// (e.g. a sysctl write, or in this module a YAML reload) never races with a
// concurrent tick or enqueue reading them.
type Tunables struct {
	minGranularityNs atomic.Uint64
	baseSliceNs      atomic.Uint64
	nrLatency        atomic.Uint64
	features         atomic.Uint32
}

// DefaultTunables is the process-wide tunable set every package-level
// helper (NewFairSchedEntity, sched_period, sched_slice) reads from when no
// explicit Tunables is threaded through. Scheduler call sites that want
// isolated tunables for testing construct their own with NewTunables.
var DefaultTunables = NewTunables()

// NewTunables builds a Tunables set seeded with the standard CFS defaults:
// 750µs minimum granularity, 750µs base slice, nr_latency = 8.
func NewTunables() *Tunables {
	t := &Tunables{}
	t.minGranularityNs.Store(750_000)
	t.baseSliceNs.Store(750_000)
	t.nrLatency.Store(8)
	t.features.Store(uint32(DefaultSchedFeatures))
	return t
}

// MinGranularityNs returns SYSCTL_SCHED_MIN_GRANULARITY.
func (t *Tunables) MinGranularityNs() uint64 { return t.minGranularityNs.Load() }

// SetMinGranularityNs updates SYSCTL_SCHED_MIN_GRANULARITY.
func (t *Tunables) SetMinGranularityNs(v uint64) { t.minGranularityNs.Store(v) }

// BaseSliceNs returns SYSCTL_SCHED_BASE_SLICE.
func (t *Tunables) BaseSliceNs() uint64 { return t.baseSliceNs.Load() }

// SetBaseSliceNs updates SYSCTL_SCHED_BASE_SLICE.
func (t *Tunables) SetBaseSliceNs(v uint64) { t.baseSliceNs.Store(v) }

// NrLatency returns SCHED_NR_LATENCY.
func (t *Tunables) NrLatency() uint64 { return t.nrLatency.Load() }

// SetNrLatency updates SCHED_NR_LATENCY.
func (t *Tunables) SetNrLatency(v uint64) { t.nrLatency.Store(v) }

// Features returns the currently enabled SchedFeature bits.
func (t *Tunables) Features() SchedFeature { return SchedFeature(t.features.Load()) }

// SetFeatures overwrites the enabled SchedFeature bits.
func (t *Tunables) SetFeatures(f SchedFeature) { t.features.Store(uint32(f)) }

// TunableConfig is the YAML-serializable snapshot of a Tunables set, for
// loading sysctl overrides from a config file passed on the CLI.
type TunableConfig struct {
	MinGranularityNs *uint64 `yaml:"min_granularity_ns,omitempty"`
	BaseSliceNs      *uint64 `yaml:"base_slice_ns,omitempty"`
	NrLatency        *uint64 `yaml:"nr_latency,omitempty"`
}

// LoadTunableConfig parses YAML bytes into a TunableConfig. Unset fields
// leave the corresponding Tunables field at its current value when applied
// via Apply.
func LoadTunableConfig(data []byte) (*TunableConfig, error) {
	var cfg TunableConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("sched: parsing tunable config: %w", err)
	}
	return &cfg, nil
}

// Apply overlays cfg's set fields onto t.
func (cfg *TunableConfig) Apply(t *Tunables) {
	if cfg.MinGranularityNs != nil {
		t.SetMinGranularityNs(*cfg.MinGranularityNs)
	}
	if cfg.BaseSliceNs != nil {
		t.SetBaseSliceNs(*cfg.BaseSliceNs)
	}
	if cfg.NrLatency != nil {
		t.SetNrLatency(*cfg.NrLatency)
	}
}
