package routing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nuraz-ahamed/isotope-dispatch/internal/geo"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/routing"
)

func TestFakeClientDefaultRouteIsAnalyticFallback(t *testing.T) {
	c := &routing.FakeClient{}
	origin := geo.Location{Lat: 0, Lon: 0}
	dest := geo.Location{Lat: 0, Lon: 1}

	result := c.Route(context.Background(), origin, dest, nil)

	assert.Greater(t, result.DurationMin, 0.0)
	assert.Len(t, result.Geometry, 2)
	assert.False(t, result.Detoured)
}

func TestFakeClientSnapPassthrough(t *testing.T) {
	c := &routing.FakeClient{}
	loc := geo.Location{Lat: 1, Lon: 2}
	result := c.Snap(context.Background(), loc)
	assert.Equal(t, loc, result.Loc)
	assert.Equal(t, 0.0, result.OffsetM)
}

func TestGeometryConvenienceWrapper(t *testing.T) {
	c := &routing.FakeClient{
		RouteFunc: func(origin, dest geo.Location, avoid *geo.Location) routing.RouteResult {
			return routing.RouteResult{Geometry: []geo.Location{origin, dest}}
		},
	}
	origin := geo.Location{Lat: 0, Lon: 0}
	dest := geo.Location{Lat: 1, Lon: 1}

	geom := routing.Geometry(context.Background(), c, origin, dest, nil)
	assert.Equal(t, []geo.Location{origin, dest}, geom)
}
