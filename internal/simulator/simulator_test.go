package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuraz-ahamed/isotope-dispatch/internal/config"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/geo"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/hospital"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/plan"
)

func TestInterpolatePositionBeforeFirstStop(t *testing.T) {
	depot := hospital.Hospital{Name: "Depot", Loc: geo.Location{Lat: 0, Lon: 0}}
	target := plan.VehiclePlan{
		Steps: []plan.Step{
			{Name: "A", Loc: geo.Location{Lat: 0, Lon: 10}, ArrivalMinutes: 20},
			{Name: "B", Loc: geo.Location{Lat: 0, Lon: 20}, ArrivalMinutes: 40},
		},
	}

	loc, next, idx := interpolatePosition(depot, target, 10)

	assert.Equal(t, "A", next.Name)
	assert.Equal(t, 0, idx)
	assert.InDelta(t, 5.0, loc.Lon, 1e-9) // halfway from depot to A
}

func TestInterpolatePositionBetweenFirstAndSecondStop(t *testing.T) {
	depot := hospital.Hospital{Name: "Depot", Loc: geo.Location{Lat: 0, Lon: 0}}
	target := plan.VehiclePlan{
		Steps: []plan.Step{
			{Name: "A", Loc: geo.Location{Lat: 0, Lon: 10}, ArrivalMinutes: 20},
			{Name: "B", Loc: geo.Location{Lat: 0, Lon: 20}, ArrivalMinutes: 40},
		},
	}

	loc, next, idx := interpolatePosition(depot, target, 30)

	assert.Equal(t, "B", next.Name)
	assert.Equal(t, 1, idx)
	assert.InDelta(t, 15.0, loc.Lon, 1e-9) // halfway from A to B
}

func TestInterpolatePositionGuardsZeroDuration(t *testing.T) {
	depot := hospital.Hospital{Name: "Depot", Loc: geo.Location{Lat: 0, Lon: 0}}
	target := plan.VehiclePlan{
		Steps: []plan.Step{
			{Name: "A", Loc: geo.Location{Lat: 0, Lon: 10}, ArrivalMinutes: 20},
			{Name: "B", Loc: geo.Location{Lat: 0, Lon: 20}, ArrivalMinutes: 20},
		},
	}

	loc, next, idx := interpolatePosition(depot, target, 20)

	assert.Equal(t, "B", next.Name)
	assert.Equal(t, 1, idx)
	assert.Equal(t, target.Steps[0].Loc, loc) // fraction stays 0, no division by zero
}

func TestAnalyticArcUsesDestinationTierSpeed(t *testing.T) {
	origin := geo.Location{Lat: 0, Lon: 0}
	dest := geo.Location{Lat: 0, Lon: 1}

	metroMinutes := analyticArc(origin, dest, hospital.TierMetro, 6371)
	remoteMinutes := analyticArc(origin, dest, hospital.TierRemote, 6371)

	assert.Greater(t, metroMinutes, remoteMinutes) // metro tier assumes slower, congested roads
}

func TestContainsName(t *testing.T) {
	names := []string{"Alpha", "Bravo"}
	assert.True(t, containsName(names, "Bravo"))
	assert.False(t, containsName(names, "Charlie"))
	assert.False(t, containsName(nil, "Bravo"))
}

func TestFindTargetRouteMatchesMetroSubstring(t *testing.T) {
	baseline := plan.Payload{Routes: []plan.VehiclePlan{
		{VehicleID: "vehicle-0", Steps: []plan.Step{
			{Name: "Rural Clinic", Tier: hospital.TierRemote},
			{Name: "Outpost", Tier: hospital.TierRemote},
		}},
		{VehicleID: "vehicle-1", Steps: []plan.Step{
			{Name: "St George Metro", Tier: hospital.TierMetro},
			{Name: "Downtown", Tier: hospital.TierMetro},
		}},
	}}

	target, err := findTargetRoute(baseline, "St George")
	require.NoError(t, err)
	assert.Equal(t, "vehicle-1", target.VehicleID)
}

func TestFindTargetRouteFallsBackToFirstMetroTier(t *testing.T) {
	baseline := plan.Payload{Routes: []plan.VehiclePlan{
		{VehicleID: "vehicle-0", Steps: []plan.Step{
			{Name: "Rural Clinic", Tier: hospital.TierRemote},
			{Name: "Outpost", Tier: hospital.TierRemote},
		}},
		{VehicleID: "vehicle-1", Steps: []plan.Step{
			{Name: "Regional Medical", Tier: hospital.TierMetro},
		}},
	}}

	target, err := findTargetRoute(baseline, "No Such Metro")
	require.NoError(t, err)
	assert.Equal(t, "vehicle-1", target.VehicleID)
}

func TestFindTargetRouteErrorsWhenNoneSuitable(t *testing.T) {
	baseline := plan.Payload{Routes: []plan.VehiclePlan{
		{VehicleID: "vehicle-0", Steps: []plan.Step{
			{Name: "Rural Clinic", Tier: hospital.TierRemote},
		}},
	}}

	_, err := findTargetRoute(baseline, "No Such Metro")
	assert.ErrorIs(t, err, ErrNoTargetRoute)
}

func TestRunErrorsOnShortTargetRoute(t *testing.T) {
	set, err := hospital.NewSet([]hospital.Hospital{
		{Name: "Depot", Loc: geo.Location{Lat: 0, Lon: 0}, Tier: hospital.TierDepot},
		{Name: "Only", Loc: geo.Location{Lat: 0, Lon: 1}, Tier: hospital.TierMetro},
	})
	require.NoError(t, err)

	baseline := plan.Payload{Routes: []plan.VehiclePlan{
		{VehicleID: "vehicle-0", Steps: []plan.Step{
			{Name: "Only", Tier: hospital.TierMetro},
		}},
	}}

	cfg := config.Default()
	_, err = Run(context.Background(), set, baseline, cfg, time.Unix(0, 0))
	assert.ErrorIs(t, err, ErrRouteTooShort)
}
