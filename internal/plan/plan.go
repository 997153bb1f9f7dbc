// Package plan turns a solved vrp.Result into the clinical/financial
// payload the API serves: per-stop potency and triage, the viable/
// canceled split, reconstructed road geometry, and fleet-wide analytics.
package plan

import (
	"context"
	"encoding/json"

	"github.com/nuraz-ahamed/isotope-dispatch/internal/config"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/decay"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/geo"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/hospital"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/routing"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/vrp"
)

// Triage labels a single stop's clinical viability at its arrival time.
type Triage string

const (
	TriageOptimal  Triage = "OPTIMAL"
	TriageDegraded Triage = "DEGRADED"
	TriageCanceled Triage = "CANCELED"
	TriageDepot    Triage = "DEPOT"
)

// Step is one stop on a materialized route.
type Step struct {
	Name           string
	Tier           int
	ArrivalMinutes float64
	Loc            geo.Location
	Potency        float64
	Triage         Triage
}

// MarshalJSON flattens Loc into top-level lat/lon keys instead of nesting
// it under its own "loc" object.
func (s Step) MarshalJSON() ([]byte, error) {
	type wire struct {
		Name           string  `json:"name"`
		Tier           int     `json:"tier"`
		ArrivalMinutes float64 `json:"arrival_time_min"`
		Lat            float64 `json:"lat"`
		Lon            float64 `json:"lon"`
		Potency        float64 `json:"potency"`
		Triage         Triage  `json:"triage"`
	}
	return json.Marshal(wire{
		Name:           s.Name,
		Tier:           s.Tier,
		ArrivalMinutes: s.ArrivalMinutes,
		Lat:            s.Loc.Lat,
		Lon:            s.Loc.Lon,
		Potency:        s.Potency,
		Triage:         s.Triage,
	})
}

// Financial summarizes one vehicle's dose economics.
type Financial struct {
	MissionValue   float64 `json:"mission_value"`
	PreservedValue float64 `json:"preserved_value"`
	WasteValue     float64 `json:"waste_value"`
}

// VehiclePlan is one vehicle's materialized route.
type VehiclePlan struct {
	VehicleID  string         `json:"vehicle_id"`
	Steps      []Step         `json:"steps"` // viable only, depot-inclusive at both ends
	Canceled   []Step         `json:"canceled"`
	Geometry   []geo.Location `json:"geometry"`
	AvgPotency float64        `json:"avg_potency"`
	Financial  Financial      `json:"financial"`
}

// CanceledMission is a fleet-wide record of a dropped delivery.
type CanceledMission struct {
	Name               string  `json:"name"`
	Potency            float64 `json:"potency"`
	Tier               int     `json:"tier"`
	OriginalETAMinutes float64 `json:"original_eta_min"`
}

// ClinicalOutcomes summarizes the fleet's clinical performance.
type ClinicalOutcomes struct {
	DosesSaved        int               `json:"doses_saved"`
	CardiacReady      int               `json:"cardiac_ready"`
	AvoidedWasteCount int               `json:"avoided_waste_count"`
	AvoidedWasteCost  float64           `json:"avoided_waste_cost"`
	CanceledMissions  []CanceledMission `json:"canceled_missions"`
}

// FleetFinancial summarizes the fleet's dose economics.
type FleetFinancial struct {
	DoseValue           float64 `json:"dose_value"`
	TotalMissionValue   float64 `json:"total_mission_value"`
	TotalPreservedValue float64 `json:"total_preserved_value"`
	TotalWasteValue     float64 `json:"total_waste_value"`
}

// Analytics is the fleet-wide rollup of every vehicle's plan.
type Analytics struct {
	FleetAvgPotency   float64          `json:"fleet_avg_potency"`
	FleetTotalPotency float64          `json:"fleet_total_potency"`
	FleetStopsServed  int              `json:"fleet_stops_served"`
	IncidentActive    bool             `json:"incident_active"`
	SnappedRoad       string           `json:"snapped_road"`
	Clinical          ClinicalOutcomes `json:"clinical_outcomes"`
	Financial         FleetFinancial   `json:"financial"`
}

// Payload is the complete materialized plan served to API clients.
type Payload struct {
	Routes    []VehiclePlan `json:"routes"`
	Analytics Analytics     `json:"analytics"`
}

// Materializer builds a Payload from a solved vrp.Result.
type Materializer struct {
	Router routing.Client
	Cfg    config.Config
}

// NewMaterializer constructs a Materializer.
func NewMaterializer(router routing.Client, cfg config.Config) *Materializer {
	return &Materializer{Router: router, Cfg: cfg}
}

// Build walks every vehicle's solved route, computing potency/triage per
// stop, splitting viable from canceled, reconstructing road geometry for
// the viable path, and rolling up fleet-wide financial and clinical
// analytics. avoidPoint/snappedRoad are non-nil/non-empty only when the
// plan was solved under an active disruption.
func (mz *Materializer) Build(
	ctx context.Context,
	set *hospital.Set,
	result vrp.Result,
	avoidPoint *geo.Location,
	snappedRoad string,
) (Payload, error) {
	byName := make(map[string]hospital.Hospital, set.Len())
	for i := 0; i < set.Len(); i++ {
		h := set.At(i)
		byName[h.Name] = h
	}

	var (
		fleetTotalPotency float64
		fleetServed       int
		allCanceled       []CanceledMission
		routes            []VehiclePlan
	)

	for _, v := range result.Vehicles {
		allSteps := make([]Step, len(v.Stops))
		for i, sa := range v.Stops {
			h, ok := byName[sa.HospitalName]
			if !ok {
				continue
			}
			potency := decay.PotencyAtMinute(sa.ElapsedMinutes, mz.Cfg.HalfLifeHours, mz.Cfg.InitialActivityPct)
			triage := triageFor(potency, mz.Cfg.FutilityThreshold)

			// The vehicle's final return to the depot is always reported
			// as DEPOT with full potency, regardless of the elapsed time:
			// no dose is in transit once the vehicle is home.
			if i == len(v.Stops)-1 {
				potency = 100.0
				triage = TriageDepot
			}

			allSteps[i] = Step{
				Name:           h.Name,
				Tier:           h.Tier,
				ArrivalMinutes: sa.ElapsedMinutes,
				Loc:            h.Loc,
				Potency:        potency,
				Triage:         triage,
			}
		}

		var viable, canceled []Step
		for _, step := range allSteps {
			if step.Tier != 0 && step.Potency < mz.Cfg.FutilityThreshold {
				step.Triage = TriageCanceled
				canceled = append(canceled, step)
				allCanceled = append(allCanceled, CanceledMission{
					Name:               step.Name,
					Potency:            step.Potency,
					Tier:               step.Tier,
					OriginalETAMinutes: step.ArrivalMinutes,
				})
				continue
			}
			viable = append(viable, step)
			if step.Tier != 0 {
				fleetTotalPotency += step.Potency
				fleetServed++
			}
		}

		geomPts, err := mz.reconstructGeometry(ctx, viable, avoidPoint)
		if err != nil {
			return Payload{}, err
		}

		routes = append(routes, VehiclePlan{
			VehicleID:  v.VehicleID,
			Steps:      viable,
			Canceled:   canceled,
			Geometry:   geomPts,
			AvgPotency: averageDeliveredPotency(viable),
			Financial:  vehicleFinancial(viable, canceled, mz.Cfg.DoseValue),
		})
	}

	return Payload{
		Routes:    routes,
		Analytics: buildAnalytics(routes, allCanceled, fleetTotalPotency, fleetServed, avoidPoint != nil, snappedRoad, mz.Cfg.DoseValue),
	}, nil
}

func triageFor(potency, futilityThreshold float64) Triage {
	switch {
	case potency >= 70:
		return TriageOptimal
	case potency >= futilityThreshold:
		return TriageDegraded
	default:
		return TriageCanceled
	}
}

// reconstructGeometry fetches per-leg road geometry for the viable path,
// skipping canceled stops entirely, and stitches consecutive legs
// together without duplicating the shared junction point.
func (mz *Materializer) reconstructGeometry(ctx context.Context, viable []Step, avoidPoint *geo.Location) ([]geo.Location, error) {
	if len(viable) < 2 || mz.Router == nil {
		return nil, nil
	}

	var geomPts []geo.Location
	for i := 0; i < len(viable)-1; i++ {
		seg := routing.Geometry(ctx, mz.Router, viable[i].Loc, viable[i+1].Loc, avoidPoint)
		if len(geomPts) > 0 && len(seg) > 0 && geomPts[len(geomPts)-1] == seg[0] {
			seg = seg[1:]
		}
		geomPts = append(geomPts, seg...)
	}
	return geomPts, nil
}

func averageDeliveredPotency(viable []Step) float64 {
	var sum float64
	var n int
	for _, s := range viable {
		if s.Tier == 0 {
			continue
		}
		sum += s.Potency
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// vehicleFinancial mirrors the dose-economics formula: delivered doses
// keep their potency fraction of value, lose the rest to decay waste;
// canceled doses are a total loss.
func vehicleFinancial(viable, canceled []Step, doseValue float64) Financial {
	var preserved, waste float64
	var deliveredCount int
	for _, s := range viable {
		if s.Tier == 0 {
			continue
		}
		deliveredCount++
		preserved += (s.Potency / 100.0) * doseValue
		waste += ((100.0 - s.Potency) / 100.0) * doseValue
	}
	waste += float64(len(canceled)) * doseValue
	mission := float64(deliveredCount+len(canceled)) * doseValue

	return Financial{
		MissionValue:   mission,
		PreservedValue: preserved,
		WasteValue:     waste,
	}
}

func buildAnalytics(
	routes []VehiclePlan,
	allCanceled []CanceledMission,
	fleetTotalPotency float64,
	fleetServed int,
	incidentActive bool,
	snappedRoad string,
	doseValue float64,
) Analytics {
	var fleetAvg float64
	if fleetServed > 0 {
		fleetAvg = fleetTotalPotency / float64(fleetServed)
	}

	var dosesSaved, cardiacReady int
	var totalPreserved, totalWaste float64
	for _, r := range routes {
		totalPreserved += r.Financial.PreservedValue
		totalWaste += r.Financial.WasteValue
		for _, s := range r.Steps {
			if s.Tier == 0 {
				continue
			}
			if s.Potency >= 60 {
				dosesSaved++
			}
			if s.Potency >= 70 {
				cardiacReady++
			}
		}
	}

	totalMission := float64(fleetServed)*doseValue + float64(len(allCanceled))*doseValue

	return Analytics{
		FleetAvgPotency:   fleetAvg,
		FleetTotalPotency: fleetTotalPotency,
		FleetStopsServed:  fleetServed,
		IncidentActive:    incidentActive,
		SnappedRoad:       snappedRoad,
		Clinical: ClinicalOutcomes{
			DosesSaved:        dosesSaved,
			CardiacReady:      cardiacReady,
			AvoidedWasteCount: len(allCanceled),
			AvoidedWasteCost:  float64(len(allCanceled)) * doseValue,
			CanceledMissions:  allCanceled,
		},
		Financial: FleetFinancial{
			DoseValue:           doseValue,
			TotalMissionValue:   totalMission,
			TotalPreservedValue: totalPreserved,
			TotalWasteValue:     totalWaste,
		},
	}
}
