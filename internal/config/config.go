// Package config centralizes every tunable constant used across the
// dispatch pipeline so no component reaches for a package-level global.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is injected into every component that needs a tunable. Defaults
// match the clinical/financial constants of the dispatch specification.
type Config struct {
	// Physics / clinical.
	HalfLifeHours      float64
	InitialActivityPct float64
	FutilityThreshold  float64

	// Financial.
	DoseValue float64

	// Fleet.
	VehicleCount    int
	VehicleCapacity int

	// Solver.
	HorizonMinutes  int
	HardCapMinutes  int
	VehicleSlackMin int
	SolverTimeLimit time.Duration
	SoftBounds      [4]SoftBound // indexed by tier
	DropPenalty     [4]int       // indexed by tier

	// Geography / routing.
	EarthRadiusKM      float64
	ImpactRadiusKM     float64
	DetourOffsetDeg    float64
	PreFilterRadiusKM  float64
	RouterBaseURL      string
	RouteTimeout       time.Duration
	SnapTimeout        time.Duration
	RouterRateLimitHz  float64

	// Simulator scenario constants ("M5 black swan").
	SimulatorTriggerMinute     float64
	SimulatorSpikeFactor       float64
	SimulatorTargetMetro       string
	SimulatorViableActivityPct float64
}

// SoftBound is a per-tier arrival-time ceiling with a linear per-minute
// violation penalty.
type SoftBound struct {
	BoundMinutes  int
	PenaltyPerMin int
}

// Default returns the configuration matching the specification's design
// defaults. Callers may override individual fields or call Load to pull
// overrides from the environment.
func Default() Config {
	return Config{
		HalfLifeHours:      6.0,
		InitialActivityPct: 100.0,
		FutilityThreshold:  35.0,

		DoseValue: 1500,

		VehicleCount:    4,
		VehicleCapacity: 10,

		HorizonMinutes:  1440,
		HardCapMinutes:  720,
		VehicleSlackMin: 30,
		SolverTimeLimit: 10 * time.Second,
		SoftBounds: [4]SoftBound{
			0: {BoundMinutes: 0, PenaltyPerMin: 0},
			1: {BoundMinutes: 240, PenaltyPerMin: 50},
			2: {BoundMinutes: 180, PenaltyPerMin: 200},
			3: {BoundMinutes: 120, PenaltyPerMin: 500},
		},
		DropPenalty: [4]int{
			0: 0,
			1: 50_000,
			2: 200_000,
			3: 1_000_000,
		},

		EarthRadiusKM:     6371,
		ImpactRadiusKM:    2.0,
		DetourOffsetDeg:   0.045,
		PreFilterRadiusKM: 50,
		RouterBaseURL:     "http://router.project-osrm.org",
		RouteTimeout:      10 * time.Second,
		SnapTimeout:       5 * time.Second,
		RouterRateLimitHz: 4.0,

		SimulatorTriggerMinute:     45.0,
		SimulatorSpikeFactor:       10.0,
		SimulatorTargetMetro:       "St George",
		SimulatorViableActivityPct: 25.0,
	}
}

// Load builds a Config from defaults overridden by ISOTOPE_-prefixed
// environment variables: ISOTOPE_ROUTER_BASE_URL, ISOTOPE_VEHICLE_COUNT,
// ISOTOPE_VEHICLE_CAPACITY and ISOTOPE_SOLVER_TIME_LIMIT. Every other
// field keeps its default.
func Load() (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("ISOTOPE")
	v.AutomaticEnv()

	if url := v.GetString("ROUTER_BASE_URL"); url != "" {
		cfg.RouterBaseURL = url
	}
	if n := v.GetInt("VEHICLE_COUNT"); n > 0 {
		cfg.VehicleCount = n
	}
	if n := v.GetInt("VEHICLE_CAPACITY"); n > 0 {
		cfg.VehicleCapacity = n
	}
	if d := v.GetDuration("SOLVER_TIME_LIMIT"); d > 0 {
		cfg.SolverTimeLimit = d
	}

	return cfg, nil
}

// PriorityWeight returns the cost-function priority weight for a
// destination tier. Tier 0 is only ever the return arc to the depot.
// Any tier outside 0..3 is a programmer error.
func PriorityWeight(tier int) (float64, error) {
	switch tier {
	case 3:
		return 1.0, nil
	case 2:
		return 2.0, nil
	case 1:
		return 3.0, nil
	case 0:
		return 0.0, nil
	default:
		return 0, &InvalidTierError{Tier: tier}
	}
}

// InvalidTierError signals a hospital record outside the 0..3 tier range.
type InvalidTierError struct {
	Tier int
}

func (e *InvalidTierError) Error() string {
	return fmt.Sprintf("config: invalid tier %d (expected 0..3)", e.Tier)
}
