// Package routing wraps the external road-router: a single abstraction
// with Snap and Route methods so the matrix builder, the disruption
// injector, and the geometry fetch path all go through the same
// fallback-on-failure logic, and so tests can inject deterministic
// responses.
package routing

import (
	"context"

	"github.com/nuraz-ahamed/isotope-dispatch/internal/geo"
)

// SnapResult is the outcome of snapping a point to the nearest road.
type SnapResult struct {
	Loc      geo.Location
	OffsetM  float64
	RoadName string
}

// RouteResult is the outcome of a route fetch, including decoded
// geometry and whether a detour waypoint was used.
type RouteResult struct {
	DurationMin float64
	DistanceKM  float64
	Geometry    []geo.Location
	Detoured    bool

	// Fallback reports whether this result came from the client's
	// internal analytic fallback (the routing service failed or
	// returned no route) rather than a live routed duration. Callers
	// that need a destination-tier-aware fallback (the matrix
	// builder) should ignore DurationMin when Fallback is true and
	// recompute using the correct destination tier, since the
	// client-internal fallback always assumes tier=1 per the
	// single-route convenience path.
	Fallback bool
}

// Client is the routing-service abstraction. Implementations must never
// return an error for routing-service failures: on any failure they
// degrade to the analytic fallback internally and set
// RouteResult.Fallback only to let callers log/observe, never to break
// the calling pipeline.
type Client interface {
	// Snap finds the nearest road point to loc. On any failure it
	// returns loc unchanged with zero offset and empty name.
	Snap(ctx context.Context, loc geo.Location) SnapResult

	// Route fetches a routed duration and geometry from origin to
	// dest, optionally routing around avoid. On any failure it
	// returns the analytic fallback duration (tier=1) and a
	// two-point straight-line geometry.
	Route(ctx context.Context, origin, dest geo.Location, avoid *geo.Location) RouteResult
}

// Geometry is a convenience wrapper returning only the decoded polyline
// for a route.
func Geometry(ctx context.Context, c Client, origin, dest geo.Location, avoid *geo.Location) []geo.Location {
	return c.Route(ctx, origin, dest, avoid).Geometry
}
