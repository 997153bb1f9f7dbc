package disruption_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuraz-ahamed/isotope-dispatch/internal/disruption"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/geo"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/hospital"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/matrix"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/routing"
)

func buildSet(t *testing.T) *hospital.Set {
	t.Helper()
	set, err := hospital.NewSet([]hospital.Hospital{
		{Name: "Depot", Loc: geo.Location{Lat: 0, Lon: 0}, Tier: 0, Type: "Source"},
		{Name: "Near", Loc: geo.Location{Lat: 0, Lon: 1}, Tier: 1, Type: "Metro"},
		{Name: "Far", Loc: geo.Location{Lat: 50, Lon: 90}, Tier: 3, Type: "Remote"},
	})
	require.NoError(t, err)
	return set
}

func baseMatrix(set *hospital.Set) matrix.TimeMatrix {
	n := set.Len()
	m := make(matrix.TimeMatrix, n)
	for i := range m {
		m[i] = make([]float64, n)
		for j := range m[i] {
			if i != j {
				m[i][j] = 50
			}
		}
	}
	return m
}

func TestApplyNeverDecreasesMatrixCells(t *testing.T) {
	set := buildSet(t)
	m := baseMatrix(set)
	original := cloneMatrix(m)

	fake := &routing.FakeClient{
		RouteFunc: func(origin, dest geo.Location, avoid *geo.Location) routing.RouteResult {
			return routing.RouteResult{DurationMin: 10, Detoured: true} // shorter than original!
		},
	}
	inj := disruption.NewInjector(fake, 6371, 2.0, 50)

	avoid := geo.Location{Lat: 0, Lon: 0.5}
	inj.Apply(context.Background(), set, m, avoid)

	for i := range m {
		for j := range m[i] {
			assert.GreaterOrEqual(t, m[i][j], original[i][j])
		}
	}
}

func TestApplyLeavesFarSegmentsUnchanged(t *testing.T) {
	set := buildSet(t)
	m := baseMatrix(set)
	original := cloneMatrix(m)

	fake := &routing.FakeClient{
		RouteFunc: func(origin, dest geo.Location, avoid *geo.Location) routing.RouteResult {
			return routing.RouteResult{DurationMin: 99999, Detoured: true}
		},
	}
	inj := disruption.NewInjector(fake, 6371, 2.0, 50)

	// Avoid-point near Depot<->Near only; Depot<->Far and Near<->Far stay far away.
	avoid := geo.Location{Lat: 0, Lon: 0.5}
	inj.Apply(context.Background(), set, m, avoid)

	depotIdx, farIdx := 0, 2
	assert.Equal(t, original[depotIdx][farIdx], m[depotIdx][farIdx])
}

func TestApplyRewritesImpactedArc(t *testing.T) {
	set := buildSet(t)
	m := baseMatrix(set)

	fake := &routing.FakeClient{
		RouteFunc: func(origin, dest geo.Location, avoid *geo.Location) routing.RouteResult {
			return routing.RouteResult{DurationMin: 300, Detoured: true}
		},
	}
	inj := disruption.NewInjector(fake, 6371, 2.0, 50)

	// On the Depot<->Near line and within the 50 km pre-filter of Depot.
	avoid := geo.Location{Lat: 0, Lon: 0.3}
	stats := inj.Apply(context.Background(), set, m, avoid)

	depotIdx, nearIdx := 0, 1
	assert.Equal(t, 300.0, m[depotIdx][nearIdx])
	assert.GreaterOrEqual(t, stats.Rerouted, 1)
}

func cloneMatrix(m matrix.TimeMatrix) matrix.TimeMatrix {
	out := make(matrix.TimeMatrix, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
