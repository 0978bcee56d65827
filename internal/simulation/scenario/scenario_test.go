package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProducesAValidScenario(t *testing.T) {
	s := Default(ModeV2, 0.01, false)
	require.NoError(t, s.Validate())
	assert.Len(t, s.Miners, 2)
	assert.True(t, s.Pool.SimulateLuck)
}

func TestDefaultNoLuckDisablesSimulateLuck(t *testing.T) {
	s := Default(ModeV1, 0.01, true)
	assert.False(t, s.Pool.SimulateLuck)
}

func TestLoadRoundTripsAYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	content := `
mode: v2v1
pool:
  name: custom-pool
  initial_difficulty: 500000
  extranonce2_size: 8
  avg_block_time_seconds: 30
  enable_vardiff: true
  desired_submits_per_sec: 0.5
  simulate_luck: false
network:
  latency_seconds: 0.02
miners:
  - name: rig-a
    speed_ghps: 5000
  - name: rig-b
    speed_ghps: 12000
    extended: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeV2V1, s.Mode)
	assert.Equal(t, "custom-pool", s.Pool.Name)
	assert.Equal(t, uint64(500000), s.Pool.InitialDifficulty)
	assert.Equal(t, 0.02, s.Network.LatencySeconds)
	require.Len(t, s.Miners, 2)
	assert.Equal(t, "rig-a", s.Miners[0].Name)
	assert.True(t, s.Miners[1].Extended)
}

func TestValidateRejectsEmptyMinerList(t *testing.T) {
	s := Default(ModeV1, 0.01, false)
	s.Miners = nil
	assert.Error(t, s.Validate())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	s := Default(ModeV1, 0.01, false)
	s.Mode = "bogus"
	assert.Error(t, s.Validate())
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}
