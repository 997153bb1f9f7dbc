package routing

import (
	"context"

	"github.com/nuraz-ahamed/isotope-dispatch/internal/geo"
)

// FakeClient is a deterministic Client double for tests. SnapFunc and
// RouteFunc default to pass-through / analytic behavior when nil.
type FakeClient struct {
	SnapFunc  func(loc geo.Location) SnapResult
	RouteFunc func(origin, dest geo.Location, avoid *geo.Location) RouteResult

	EarthRadiusKM float64
}

// Snap implements Client.
func (f *FakeClient) Snap(_ context.Context, loc geo.Location) SnapResult {
	if f.SnapFunc != nil {
		return f.SnapFunc(loc)
	}
	return SnapResult{Loc: loc}
}

// Route implements Client.
func (f *FakeClient) Route(_ context.Context, origin, dest geo.Location, avoid *geo.Location) RouteResult {
	if f.RouteFunc != nil {
		return f.RouteFunc(origin, dest, avoid)
	}
	radius := f.EarthRadiusKM
	if radius == 0 {
		radius = 6371
	}
	distKM := geo.Haversine(origin, dest, radius)
	return RouteResult{
		DurationMin: geo.AnalyticFallbackMinutes(distKM, 1),
		DistanceKM:  distKM,
		Geometry:    []geo.Location{origin, dest},
		Fallback:    true,
	}
}
