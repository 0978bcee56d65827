// Package scenario loads simulation run definitions from YAML, grounded
// on tos-network-tos-pool's internal/config package (defaults + Validate
// pattern) but without viper: the simulator only ever loads one file from
// one place, so a plain yaml.v3 Unmarshal is enough.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Mode selects which protocol stack a scenario's miners speak.
type Mode string

const (
	ModeV1   Mode = "v1"
	ModeV2   Mode = "v2"
	ModeV2V1 Mode = "v2v1"
)

// PoolSpec configures the simulated pool.
type PoolSpec struct {
	Name                 string  `yaml:"name"`
	InitialDifficulty    uint64  `yaml:"initial_difficulty"`
	Extranonce2Size      int     `yaml:"extranonce2_size"`
	AvgBlockTimeSeconds  float64 `yaml:"avg_block_time_seconds"`
	EnableVardiff        bool    `yaml:"enable_vardiff"`
	DesiredSubmitsPerSec float64 `yaml:"desired_submits_per_sec"`
	SimulateLuck         bool    `yaml:"simulate_luck"`
}

// NetworkSpec configures the latency applied to every connection link.
type NetworkSpec struct {
	LatencySeconds float64 `yaml:"latency_seconds"`
}

// MinerSpec describes one simulated miner device.
type MinerSpec struct {
	Name      string  `yaml:"name"`
	SpeedGhps float64 `yaml:"speed_ghps"`
	Extended  bool    `yaml:"extended"` // only meaningful under ModeV2/ModeV2V1
}

// Scenario is a complete simulation run definition.
type Scenario struct {
	Mode    Mode        `yaml:"mode"`
	Pool    PoolSpec    `yaml:"pool"`
	Network NetworkSpec `yaml:"network"`
	Miners  []MinerSpec `yaml:"miners"`
}

// Default builds the scenario the CLI runs when no --scenario file is
// given, parameterized by the §6 flag surface (--v1/--v2v1, --latency,
// --no-luck). It reproduces original_source/simulate_and_plot_results.py's
// hardcoded two-miner setup (10000 & 8000 Gh/s) as the default fleet.
func Default(mode Mode, latencySeconds float64, noLuck bool) *Scenario {
	return &Scenario{
		Mode: mode,
		Pool: PoolSpec{
			Name:                 "sim-pool",
			InitialDifficulty:    100000,
			Extranonce2Size:      8,
			AvgBlockTimeSeconds:  60,
			EnableVardiff:        true,
			DesiredSubmitsPerSec: 0.3,
			SimulateLuck:         !noLuck,
		},
		Network: NetworkSpec{LatencySeconds: latencySeconds},
		Miners: []MinerSpec{
			{Name: "miner-1", SpeedGhps: 10000},
			{Name: "miner-2", SpeedGhps: 8000},
		},
	}
}

// Load reads and validates a scenario file. Fields absent from the file
// keep Go's zero value; callers that need baseline defaults should start
// from Default and overlay the loaded file's non-zero fields, or rely on
// the file being complete — this simulator's scenario files are meant to
// be written in full, not layered like the teacher's config.yaml.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario file: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario validation failed: %w", err)
	}
	return &s, nil
}

// Validate checks a scenario for internal consistency.
func (s *Scenario) Validate() error {
	switch s.Mode {
	case ModeV1, ModeV2, ModeV2V1:
	default:
		return fmt.Errorf("mode must be one of v1, v2, v2v1, got %q", s.Mode)
	}

	if s.Pool.Name == "" {
		return fmt.Errorf("pool.name is required")
	}
	if s.Pool.AvgBlockTimeSeconds <= 0 {
		return fmt.Errorf("pool.avg_block_time_seconds must be positive")
	}
	if s.Network.LatencySeconds < 0 {
		return fmt.Errorf("network.latency_seconds must be >= 0")
	}
	if len(s.Miners) == 0 {
		return fmt.Errorf("at least one miner is required")
	}
	for i, m := range s.Miners {
		if m.SpeedGhps <= 0 {
			return fmt.Errorf("miners[%d].speed_ghps must be positive", i)
		}
	}
	return nil
}
