// Package simulator replays the "black swan" scenario: a disruption
// detected mid-route, after the fleet has already committed to a plan.
// It compares an ignorant system that pushes through the closure
// against an intelligent one that re-solves a reduced sub-problem from
// the van's interpolated position, and reports whether the
// re-optimized plan keeps or abandons the next delivery.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nuraz-ahamed/isotope-dispatch/internal/config"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/decay"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/geo"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/hospital"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/matrix"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/plan"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/vrp"
)

// Decision is the intelligent system's verdict on the disrupted
// delivery.
type Decision string

const (
	DecisionPersist        Decision = "PERSIST"
	DecisionAbandonReroute Decision = "ABANDON & REROUTE"
)

// Outcome is the comparison report produced by Run.
type Outcome struct {
	TargetVehicleID        string
	DisruptedHospital      string
	DisruptedHospitalTier  int
	IgnorantArrivalMinutes float64
	IgnorantActivityPct    float64
	IgnorantViable         bool
	Decision               Decision
	IntelligentNextStop    string
	IntelligentRouteNames  []string
	Narrative              string
}

// ErrNoTargetRoute means no vehicle in the baseline plan had a suitable
// route to disrupt (no preferred metro route, and no tier-1 fallback).
var ErrNoTargetRoute = fmt.Errorf("simulator: no suitable route found for disruption scenario")

// ErrRouteTooShort means the target route has only one viable stop, so
// there is nothing downstream left to disrupt.
var ErrRouteTooShort = fmt.Errorf("simulator: target route too short for disruption scenario")

// Run executes the M5-style scenario against an already-solved baseline
// plan: it finds the configured target vehicle's route, interpolates
// its position at the configured trigger minute, and compares pushing
// through the disrupted arc against re-solving from that position.
func Run(
	ctx context.Context,
	set *hospital.Set,
	baseline plan.Payload,
	cfg config.Config,
	dispatchStart time.Time,
) (Outcome, error) {
	// Materialized routes carry the depot at both ends; the scenario works
	// on the delivery stops only.
	deliveries := plan.Payload{Routes: make([]plan.VehiclePlan, len(baseline.Routes))}
	for i, r := range baseline.Routes {
		var steps []plan.Step
		for _, s := range r.Steps {
			if s.Tier != hospital.TierDepot {
				steps = append(steps, s)
			}
		}
		r.Steps = steps
		deliveries.Routes[i] = r
	}

	target, err := findTargetRoute(deliveries, cfg.SimulatorTargetMetro)
	if err != nil {
		return Outcome{}, err
	}
	if len(target.Steps) < 2 {
		return Outcome{}, ErrRouteTooShort
	}

	depot := set.At(set.DepotIndex())
	currentLoc, nextDest, remainingFromIdx := interpolatePosition(depot, target, cfg.SimulatorTriggerMinute)

	logrus.WithFields(logrus.Fields{
		"vehicle": target.VehicleID,
		"ahead":   nextDest.Name,
	}).Warn("simulator: disruption detected mid-route")

	baseTime := analyticArc(currentLoc, nextDest.Loc, nextDest.Tier, cfg.EarthRadiusKM)
	spikedTime := baseTime * cfg.SimulatorSpikeFactor
	ignorantArrival := cfg.SimulatorTriggerMinute + spikedTime
	ignorantActivity := decay.RemainingActivity(cfg.InitialActivityPct, ignorantArrival/60.0, cfg.HalfLifeHours)
	ignorantViable := ignorantActivity > cfg.SimulatorViableActivityPct

	logrus.Infof(
		"simulator: ignorant option arrives at %s at T=%.1fmin, activity=%.2f%%",
		nextDest.Name, ignorantArrival, ignorantActivity,
	)

	remainingNames := make([]string, 0, len(target.Steps)-remainingFromIdx)
	for _, s := range target.Steps[remainingFromIdx:] {
		remainingNames = append(remainingNames, s.Name)
	}

	intelligentNames, err := resolveFromCurrentPosition(ctx, set, currentLoc, remainingNames, spikedTime, cfg, dispatchStart)
	if err != nil {
		return Outcome{}, fmt.Errorf("simulator: rerouting: %w", err)
	}

	dropped := !containsName(intelligentNames, nextDest.Name)
	decision := DecisionPersist
	if dropped {
		decision = DecisionAbandonReroute
	}

	nextStop := "None"
	if len(intelligentNames) > 0 {
		nextStop = intelligentNames[0]
	}

	logrus.Infof("simulator: intelligent option next stop -> %s (%s)", nextStop, decision)

	outcome := Outcome{
		TargetVehicleID:        target.VehicleID,
		DisruptedHospital:      nextDest.Name,
		DisruptedHospitalTier:  nextDest.Tier,
		IgnorantArrivalMinutes: ignorantArrival,
		IgnorantActivityPct:    ignorantActivity,
		IgnorantViable:         ignorantViable,
		Decision:               decision,
		IntelligentNextStop:    nextStop,
		IntelligentRouteNames:  intelligentNames,
	}
	outcome.Narrative = narrative(outcome, cfg)
	return outcome, nil
}

func findTargetRoute(baseline plan.Payload, targetMetro string) (plan.VehiclePlan, error) {
	for _, r := range baseline.Routes {
		if len(r.Steps) > 1 && strings.Contains(r.Steps[0].Name, targetMetro) {
			return r, nil
		}
	}
	for _, r := range baseline.Routes {
		if len(r.Steps) > 0 && r.Steps[0].Tier == hospital.TierMetro {
			return r, nil
		}
	}
	return plan.VehiclePlan{}, ErrNoTargetRoute
}

// interpolatePosition mirrors the original scenario exactly: only the
// first two stops of the target route are ever considered, since the
// disruption is always detected early in the run.
func interpolatePosition(depot hospital.Hospital, target plan.VehiclePlan, triggerMinute float64) (geo.Location, plan.Step, int) {
	first := target.Steps[0]

	if triggerMinute < first.ArrivalMinutes {
		fraction := triggerMinute / first.ArrivalMinutes
		loc := geo.Interpolate(depot.Loc, first.Loc, fraction)
		return loc, first, 0
	}

	second := target.Steps[1]
	duration := second.ArrivalMinutes - first.ArrivalMinutes
	elapsed := triggerMinute - first.ArrivalMinutes
	fraction := 0.0
	if duration > 0 {
		fraction = elapsed / duration
	}
	loc := geo.Interpolate(first.Loc, second.Loc, fraction)
	return loc, second, 1
}

func analyticArc(origin, dest geo.Location, destTier int, earthRadiusKM float64) float64 {
	distKM := geo.Haversine(origin, dest, earthRadiusKM)
	return geo.AnalyticFallbackMinutes(distKM, destTier)
}

// resolveFromCurrentPosition re-solves a single-vehicle sub-problem
// rooted at the van's interpolated position, with the disrupted arc
// (index 0 -> 1) forced to the spiked duration, and returns the
// resulting stop order.
func resolveFromCurrentPosition(
	ctx context.Context,
	set *hospital.Set,
	currentLoc geo.Location,
	remainingNames []string,
	spikedTime float64,
	cfg config.Config,
	dispatchStart time.Time,
) ([]string, error) {
	byName := make(map[string]hospital.Hospital, set.Len())
	for i := 0; i < set.Len(); i++ {
		h := set.At(i)
		byName[h.Name] = h
	}

	reduced := make([]hospital.Hospital, 0, len(remainingNames)+1)
	reduced = append(reduced, hospital.Hospital{Name: "mobile-depot", Loc: currentLoc, Tier: hospital.TierDepot, Type: "Mobile"})
	for _, name := range remainingNames {
		if h, ok := byName[name]; ok {
			reduced = append(reduced, h)
		}
	}

	reducedSet, err := hospital.NewSet(reduced)
	if err != nil {
		return nil, err
	}

	b := matrix.NewBuilder(nil, nil, 0, cfg.EarthRadiusKM)
	reducedMatrix := b.Build(ctx, reducedSet)
	if len(reducedMatrix) > 1 {
		reducedMatrix[0][1] = spikedTime
	}

	reducedCfg := cfg
	reducedCfg.VehicleCount = 1

	result, err := vrp.Solve(ctx, reducedSet, reducedMatrix, reducedCfg, dispatchStart)
	if err != nil {
		if errors.Is(err, vrp.ErrNoSolution) {
			return nil, nil
		}
		return nil, err
	}
	if len(result.Vehicles) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(result.Vehicles[0].Stops))
	for i, s := range result.Vehicles[0].Stops {
		if i == 0 || i == len(result.Vehicles[0].Stops)-1 {
			continue // depot bookends
		}
		names = append(names, s.HospitalName)
	}
	return names, nil
}

func containsName(names []string, target string) bool {
	for _, n := range names {
		if n == target {
			return true
		}
	}
	return false
}

func narrative(o Outcome, cfg config.Config) string {
	viability := "NO (FUTILE)"
	if o.IgnorantViable {
		viability = "YES"
	}
	return fmt.Sprintf(
		"# Simulation Log: Black Swan Event\n\n"+
			"## Scenario\n"+
			"Target: %s (Tier %d). Viability threshold: %.0f%% activity.\n\n"+
			"## Option A: Ignorant System (Push Through)\n"+
			"Arrival: T=%.1fmin, Activity: %.2f%%, Viable: %s\n\n"+
			"## Option B: Intelligent System (Reroute)\n"+
			"Decision: %s, New route: %v\n",
		o.DisruptedHospital, o.DisruptedHospitalTier, cfg.SimulatorViableActivityPct,
		o.IgnorantArrivalMinutes, o.IgnorantActivityPct, viability,
		o.Decision, o.IntelligentRouteNames,
	)
}
