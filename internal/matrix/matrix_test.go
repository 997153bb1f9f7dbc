package matrix_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuraz-ahamed/isotope-dispatch/internal/geo"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/hospital"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/matrix"
)

func threeNodeSet(t *testing.T) *hospital.Set {
	t.Helper()
	set, err := hospital.NewSet([]hospital.Hospital{
		{Name: "Depot", Loc: geo.Location{Lat: -33.9, Lon: 151.0}, Tier: 0, Type: "Source"},
		{Name: "A", Loc: geo.Location{Lat: -33.95, Lon: 151.1}, Tier: 1, Type: "Metro"},
		{Name: "B", Loc: geo.Location{Lat: -31.9, Lon: 141.4}, Tier: 3, Type: "Remote"},
	})
	require.NoError(t, err)
	return set
}

func TestBuildWithNoRouterMatchesAnalyticFallback(t *testing.T) {
	set := threeNodeSet(t)
	b := matrix.NewBuilder(nil, nil, 0, 6371)

	m := b.Build(context.Background(), set)

	n := set.Len()
	require.Len(t, m, n)
	for i := 0; i < n; i++ {
		require.Len(t, m[i], n)
		assert.Equal(t, 0.0, m[i][i])
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			distKM := geo.Haversine(set.At(i).Loc, set.At(j).Loc, 6371)
			want := geo.AnalyticFallbackMinutes(distKM, set.At(j).Tier)
			assert.InDelta(t, want, m[i][j], 1e-6)
		}
	}
}

func TestBuildIsFullyPopulatedWhenTransitClientAlwaysFails(t *testing.T) {
	set := threeNodeSet(t)
	b := matrix.NewBuilder(nil, alwaysFailTransit{}, 0, 6371)

	m := b.Build(context.Background(), set)

	for i := range m {
		for j := range m {
			if i == j {
				continue
			}
			assert.Greater(t, m[i][j], 0.0)
		}
	}
}

type alwaysFailTransit struct{}

func (alwaysFailTransit) TripDurationMinutes(ctx context.Context, origin, dest geo.Location) (float64, bool) {
	return 0, false
}
