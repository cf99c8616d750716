package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTunables_SeedsStandardDefaults(t *testing.T) {
	tun := NewTunables()
	assert.Equal(t, uint64(750_000), tun.MinGranularityNs())
	assert.Equal(t, uint64(750_000), tun.BaseSliceNs())
	assert.Equal(t, uint64(8), tun.NrLatency())
	assert.Equal(t, DefaultSchedFeatures, tun.Features())
}

func TestTunables_SettersOverwritePreviousValue(t *testing.T) {
	tun := NewTunables()
	tun.SetMinGranularityNs(1_000_000)
	tun.SetBaseSliceNs(2_000_000)
	tun.SetNrLatency(16)
	tun.SetFeatures(FeatureNextBuddy)

	assert.Equal(t, uint64(1_000_000), tun.MinGranularityNs())
	assert.Equal(t, uint64(2_000_000), tun.BaseSliceNs())
	assert.Equal(t, uint64(16), tun.NrLatency())
	assert.Equal(t, FeatureNextBuddy, tun.Features())
}

func TestLoadTunableConfig_ParsesPartialOverrides(t *testing.T) {
	data := []byte("min_granularity_ns: 500000\n")
	cfg, err := LoadTunableConfig(data)

	assert.NoError(t, err)
	assert.NotNil(t, cfg.MinGranularityNs)
	assert.Equal(t, uint64(500000), *cfg.MinGranularityNs)
	assert.Nil(t, cfg.BaseSliceNs)
}

func TestLoadTunableConfig_InvalidYAML_ReturnsError(t *testing.T) {
	_, err := LoadTunableConfig([]byte("not: [valid"))
	assert.Error(t, err)
}

func TestTunableConfig_Apply_OnlyOverwritesSetFields(t *testing.T) {
	tun := NewTunables()
	originalNrLatency := tun.NrLatency()

	newGranularity := uint64(900_000)
	cfg := &TunableConfig{MinGranularityNs: &newGranularity}
	cfg.Apply(tun)

	assert.Equal(t, newGranularity, tun.MinGranularityNs())
	assert.Equal(t, originalNrLatency, tun.NrLatency())
}
