// Package disruption materializes an ad-hoc road closure as a localized
// rewrite of the time matrix: every arc whose straight-line path passes
// near the avoid-point is replaced with a real detour duration, never a
// sentinel and never a value smaller than the original.
package disruption

import (
	"context"

	"github.com/nuraz-ahamed/isotope-dispatch/internal/geo"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/hospital"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/matrix"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/routing"
)

// Injector rewrites a TimeMatrix in place to reflect an avoid-point.
type Injector struct {
	Router            routing.Client
	EarthRadiusKM     float64
	ImpactRadiusKM    float64
	PreFilterRadiusKM float64
}

// NewInjector builds an Injector with the given tunables.
func NewInjector(router routing.Client, earthRadiusKM, impactRadiusKM, preFilterRadiusKM float64) *Injector {
	return &Injector{
		Router:            router,
		EarthRadiusKM:     earthRadiusKM,
		ImpactRadiusKM:    impactRadiusKM,
		PreFilterRadiusKM: preFilterRadiusKM,
	}
}

// Stats summarizes an Apply run. Checked counts the arcs that passed the
// pre-filter and the impact test and were re-routed; Rerouted counts
// those whose route response used a detour waypoint, whether or not the
// matrix cell then changed.
type Stats struct {
	Checked  int
	Rerouted int
}

// Apply rewrites m in place for the given avoid-point, returning a
// summary of how many arcs were checked/rerouted. The matrix is only
// ever made worse (higher), never better.
func (inj *Injector) Apply(ctx context.Context, set *hospital.Set, m matrix.TimeMatrix, avoid geo.Location) Stats {
	var stats Stats
	n := set.Len()

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			origin := set.At(i).Loc
			dest := set.At(j).Loc

			d1 := geo.Haversine(origin, avoid, inj.EarthRadiusKM)
			d2 := geo.Haversine(dest, avoid, inj.EarthRadiusKM)
			if d1 > inj.PreFilterRadiusKM && d2 > inj.PreFilterRadiusKM {
				continue
			}

			if !geo.SegmentImpacted(origin, dest, avoid, inj.ImpactRadiusKM, inj.EarthRadiusKM) {
				continue
			}

			stats.Checked++

			result := inj.Router.Route(ctx, origin, dest, &avoid)
			original := m[i][j]
			detoured := result.DurationMin

			if detoured > original {
				m[i][j] = detoured
			} else {
				m[i][j] = original
			}

			if result.Detoured {
				stats.Rerouted++
			}
		}
	}

	return stats
}
