// Package vrp wires the priority-weighted arc cost, the per-tier soft
// delivery-time bound, and the hard routing-time ceiling onto the
// constraint-programming router via its custom Update/Constraint hooks,
// then drives the resulting solver to its last improving solution.
package vrp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/nextmv-io/sdk/measure"
	"github.com/nextmv-io/sdk/route"
	"github.com/nextmv-io/sdk/store"

	"github.com/nuraz-ahamed/isotope-dispatch/internal/config"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/hospital"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/matrix"
)

// ErrNoSolution is returned when the search budget elapsed without the
// solver ever producing a feasible plan. Callers must treat this as a
// hard failure; there is no such thing as a partial plan.
var ErrNoSolution = fmt.Errorf("vrp: solver produced no solution")

// StopArrival is one stop on a solved vehicle route, depot-inclusive.
type StopArrival struct {
	HospitalName   string
	ElapsedMinutes float64
}

// VehicleRoute is one vehicle's solved stop sequence.
type VehicleRoute struct {
	VehicleID     string
	Stops         []StopArrival // index 0 and last are the depot
	RouteDuration int
	RouteDistance float64
}

// Result is the solved plan in a shape the plan materializer consumes
// directly, with no further dependency on the solver's wire format.
type Result struct {
	Vehicles        []VehicleRoute
	UnassignedNames []string
}

// Solve builds the router for the given hospital set and time matrix and
// runs it to its last improving solution. dispatchStart anchors the
// solver's absolute time windows to the plan's elapsed-minutes clock.
func Solve(
	ctx context.Context,
	set *hospital.Set,
	m matrix.TimeMatrix,
	cfg config.Config,
	dispatchStart time.Time,
) (Result, error) {
	depotIdx := set.DepotIndex()
	n := set.Len()

	stops := make([]route.Stop, 0, n-1)
	quantities := make([]int, 0, n-1)
	penalties := make([]int, 0, n-1)
	tierByStop := make([]int, 0, n-1) // aligned with stops/quantities/penalties

	for i := 0; i < n; i++ {
		if i == depotIdx {
			continue
		}
		h := set.At(i)
		stops = append(stops, route.Stop{
			ID:       h.Name,
			Position: route.Position{Lon: h.Loc.Lon, Lat: h.Loc.Lat},
		})
		quantities = append(quantities, 1)
		tier := h.Tier
		if tier < 1 || tier > 3 {
			return Result{}, &config.InvalidTierError{Tier: tier}
		}
		penalties = append(penalties, cfg.DropPenalty[tier])
		tierByStop = append(tierByStop, tier)
	}

	vehicles := make([]string, cfg.VehicleCount)
	capacities := make([]int, cfg.VehicleCount)
	depots := make([]route.Position, cfg.VehicleCount)
	shifts := make([]route.TimeWindow, cfg.VehicleCount)

	depot := set.At(depotIdx)
	depotPos := route.Position{Lon: depot.Loc.Lon, Lat: depot.Loc.Lat}
	shiftEnd := dispatchStart.Add(time.Duration(cfg.HorizonMinutes) * time.Minute)

	for v := 0; v < cfg.VehicleCount; v++ {
		vehicles[v] = fmt.Sprintf("vehicle-%d", v)
		capacities[v] = cfg.VehicleCapacity
		depots[v] = depotPos
		shifts[v] = route.TimeWindow{Start: dispatchStart, End: shiftEnd}
	}

	timeMeasure := measure.Matrix(m)
	timeMeasures := make([]route.ByIndex, len(vehicles))
	for v := range timeMeasures {
		timeMeasures[v] = timeMeasure
	}

	vUpd := vehicleValue{
		cfg:           cfg,
		tierByStop:    tierByStop,
		dispatchEpoch: dispatchStart.Unix(),
	}
	pUpd := planValue{vehicleValues: map[string]int{}}
	hardCap := hardCapConstraint{capMinutes: cfg.HardCapMinutes, dispatchEpoch: dispatchStart.Unix()}

	router, err := route.NewRouter(
		stops,
		vehicles,
		route.Starts(depots),
		route.Ends(depots),
		route.Shifts(shifts),
		route.Capacity(quantities, capacities),
		route.Unassigned(penalties),
		route.TravelTimeMeasures(timeMeasures),
		route.Constraint(hardCap, vehicles),
		route.Update(vUpd, pUpd),
	)
	if err != nil {
		return Result{}, fmt.Errorf("vrp: building router: %w", err)
	}

	router.Format(solutionFormat)

	opts := store.Options{}
	opts.Diagram.Expansion.Limit = 1
	opts.Limits.Duration = cfg.SolverTimeLimit
	if opts.Limits.Duration == 0 {
		opts.Limits.Duration = 10 * time.Second
	}

	solver, err := router.Solver(opts)
	if err != nil {
		return Result{}, fmt.Errorf("vrp: building solver: %w", err)
	}

	var last store.Solution
	found := false
	for solution := range solver.Run(ctx) {
		last = solution
		found = true
	}
	if !found {
		return Result{}, ErrNoSolution
	}

	b, err := json.Marshal(last)
	if err != nil {
		return Result{}, fmt.Errorf("vrp: marshaling solution: %w", err)
	}

	var wire struct {
		Store wirePlan `json:"store"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return Result{}, fmt.Errorf("vrp: decoding solution: %w", err)
	}

	if len(wire.Store.Vehicles) == 0 {
		return Result{}, ErrNoSolution
	}

	result := Result{UnassignedNames: wire.Store.Unassigned}
	for _, wv := range wire.Store.Vehicles {
		vr := VehicleRoute{
			VehicleID:     wv.ID,
			RouteDuration: wv.RouteDuration,
			RouteDistance: wv.RouteDistance,
			Stops:         make([]StopArrival, len(wv.Route)),
		}
		for i, ws := range wv.Route {
			name := ws.ID
			// The router labels the synthetic start/end positions on its
			// own terms, not with a hospital ID from the stops list; both
			// bookends are always the depot in this fleet's model.
			if i == 0 || i == len(wv.Route)-1 {
				name = depot.Name
			}
			vr.Stops[i] = StopArrival{
				HospitalName:   name,
				ElapsedMinutes: elapsedMinutes(ws.EstimatedArrival, dispatchStart),
			}
		}
		result.Vehicles = append(result.Vehicles, vr)
	}

	return result, nil
}

func elapsedMinutes(arrival, dispatchStart time.Time) float64 {
	return arrival.Sub(dispatchStart).Minutes()
}

// wirePlan is the decoding counterpart of solutionFormat's return shape.
type wirePlan struct {
	Vehicles []struct {
		ID    string `json:"id"`
		Route []struct {
			ID               string    `json:"id"`
			EstimatedArrival time.Time `json:"estimated_arrival"`
		} `json:"route"`
		RouteDuration int     `json:"route_duration"`
		RouteDistance float64 `json:"route_distance"`
	} `json:"vehicles"`
	Unassigned []string `json:"unassigned"`
}

// solutionFormat flattens a solved route.Plan into the plain map shape
// wirePlan decodes, so the materializer never depends on the solver's
// own exported types.
func solutionFormat(p *route.Plan) any {
	vehicles := make([]any, len(p.Vehicles))
	for v, vehicle := range p.Vehicles {
		stops := make([]any, len(vehicle.Route))
		for i, stop := range vehicle.Route {
			stops[i] = map[string]any{
				"id":                stop.ID,
				"estimated_arrival": stop.EstimatedArrival,
			}
		}
		vehicles[v] = map[string]any{
			"id":             vehicle.ID,
			"route":          stops,
			"route_duration": vehicle.RouteDuration,
			"route_distance": vehicle.RouteDistance,
		}
	}

	unassigned := make([]string, len(p.Unassigned))
	for i, u := range p.Unassigned {
		unassigned[i] = u.ID
	}

	return map[string]any{
		"vehicles":   vehicles,
		"unassigned": unassigned,
	}
}

// vehicleValue implements route.VehicleUpdater: it replaces the
// router's default arc-length objective with the priority-weighted
// transit cost plus the per-tier soft delivery-time bound penalty.
type vehicleValue struct {
	cfg           config.Config
	tierByStop    []int
	dispatchEpoch int64
}

func (v vehicleValue) Update(s route.PartialVehicle) (route.VehicleUpdater, int, bool) {
	stopRoute := s.Route()
	etas := s.Times().EstimatedArrival

	cost := 0
	for i := 1; i < len(stopRoute); i++ {
		stopIdx := stopRoute[i]
		// Positions with no matching non-depot stop (the final return-to-
		// depot leg included) are priced as a tier-0 destination: weight
		// forced to 1.0, soft bound a no-op.
		tier := 0
		if stopIdx >= 0 && stopIdx < len(v.tierByStop) {
			tier = v.tierByStop[stopIdx]
		}

		weight, err := config.PriorityWeight(tier)
		if err != nil {
			weight = 1.0
		}
		cost += transitCost(etas[i-1], etas[i], weight)

		elapsed := elapsedMinutesFromEpoch(etas[i], v.dispatchEpoch)
		cost += softBoundPenalty(elapsed, v.cfg.SoftBounds[tier])
	}

	return v, cost, true
}

// transitCost mirrors the priority-weighted objective: raw transit
// minutes scaled by the inverse of the destination's priority weight,
// preserved bit-for-bit from the original formula.
func transitCost(etaPrev, etaThis int, weight float64) int {
	transitMinutes := float64(etaThis-etaPrev) / 60.0
	if transitMinutes < 0 {
		transitMinutes = 0
	}
	if weight <= 0 {
		weight = 1.0
	}
	return int(math.Round(transitMinutes * (1.0 / weight) * 100))
}

// softBoundPenalty charges a per-minute penalty for every minute an
// arrival falls past its tier's soft upper bound; on-time arrivals cost
// nothing.
func softBoundPenalty(elapsedMinutes float64, bound config.SoftBound) int {
	over := elapsedMinutes - float64(bound.BoundMinutes)
	if over <= 0 {
		return 0
	}
	return int(over * float64(bound.PenaltyPerMin))
}

func elapsedMinutesFromEpoch(etaUnix int, dispatchEpoch int64) float64 {
	return float64(int64(etaUnix)-dispatchEpoch) / 60.0
}

// planValue implements route.PlanUpdater: the fleet's value is the sum
// of each vehicle's custom value, tracked incrementally so only the
// vehicles that changed between search moves are re-summed.
type planValue struct {
	vehicleValues map[string]int
	total         int
}

func (p planValue) Update(_ route.PartialPlan, vehicles []route.PartialVehicle) (route.PlanUpdater, int, bool) {
	values := make(map[string]int, len(p.vehicleValues))
	for id, v := range p.vehicleValues {
		values[id] = v
	}
	p.vehicleValues = values

	for _, vh := range vehicles {
		id := vh.ID()
		p.total -= p.vehicleValues[id]
		p.vehicleValues[id] = vh.Value()
		p.total += p.vehicleValues[id]
	}

	return p, p.total, true
}

// hardCapConstraint implements route.VehicleConstraint: no non-depot
// stop may be reached later than capMinutes after dispatch, regardless
// of how favorable its value would otherwise be.
type hardCapConstraint struct {
	capMinutes    int
	dispatchEpoch int64
}

func (c hardCapConstraint) Violated(vehicle route.PartialVehicle) (route.VehicleConstraint, bool) {
	stopRoute := vehicle.Route()
	etas := vehicle.Times().EstimatedArrival

	// The last position is the vehicle's return to the depot, which is
	// bounded by the shift horizon rather than this cap.
	for i := 1; i < len(stopRoute)-1; i++ {
		if hardCapViolated(elapsedMinutesFromEpoch(etas[i], c.dispatchEpoch), c.capMinutes) {
			return c, true
		}
	}
	return c, false
}

func hardCapViolated(elapsedMinutes float64, capMinutes int) bool {
	return elapsedMinutes > float64(capMinutes)
}
