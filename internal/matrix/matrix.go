// Package matrix builds the N×N travel-time matrix consumed by the VRP
// solver: router-primary, analytic-fallback, with an optional best-effort
// secondary transit-time client and a bounded, rate-limited worker pool
// for concurrent arc fetches.
package matrix

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/nuraz-ahamed/isotope-dispatch/internal/geo"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/hospital"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/routing"
)

// TimeMatrix is a dense N×N matrix of travel times in minutes.
type TimeMatrix [][]float64

// TransitClient is the optional best-effort secondary estimator (e.g. a
// regional transit API), consulted only when the router is absent or fell
// back. It returns ok=false whenever it cannot contribute an estimate, in
// which case the builder uses the analytic fallback.
type TransitClient interface {
	TripDurationMinutes(ctx context.Context, origin, dest geo.Location) (minutes float64, ok bool)
}

// Builder constructs TimeMatrix instances for a hospital set.
type Builder struct {
	Router        routing.Client
	Transit       TransitClient // optional, may be nil
	RateLimiter   *rate.Limiter // optional, may be nil (no throttling)
	EarthRadiusKM float64
	Concurrency   int // worker pool size; defaults to 8 if <= 0
}

// NewBuilder constructs a Builder with sane defaults.
func NewBuilder(router routing.Client, transit TransitClient, ratePerSecond float64, earthRadiusKM float64) *Builder {
	var limiter *rate.Limiter
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return &Builder{
		Router:        router,
		Transit:       transit,
		RateLimiter:   limiter,
		EarthRadiusKM: earthRadiusKM,
		Concurrency:   8,
	}
}

type arcJob struct {
	i, j int
}

// Build generates the time matrix for the given hospital set. Arcs are
// fetched concurrently from a bounded worker pool; each cell is written
// exactly once so there is no contention between workers.
func (b *Builder) Build(ctx context.Context, set *hospital.Set) TimeMatrix {
	n := set.Len()
	m := make(TimeMatrix, n)
	for i := range m {
		m[i] = make([]float64, n)
	}

	jobs := make(chan arcJob)
	var wg sync.WaitGroup

	workers := b.Concurrency
	if workers <= 0 {
		workers = 8
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				m[job.i][job.j] = b.arcDuration(ctx, set.At(job.i), set.At(job.j))
			}
		}()
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			jobs <- arcJob{i: i, j: j}
		}
	}
	close(jobs)
	wg.Wait()

	return m
}

func (b *Builder) arcDuration(ctx context.Context, origin, dest hospital.Hospital) float64 {
	if b.Router != nil {
		if b.RateLimiter != nil {
			_ = b.RateLimiter.Wait(ctx)
		}
		result := b.Router.Route(ctx, origin.Loc, dest.Loc, nil)
		if !result.Fallback {
			return result.DurationMin
		}
	}

	if b.Transit != nil {
		if b.RateLimiter != nil {
			_ = b.RateLimiter.Wait(ctx)
		}
		if minutes, ok := b.Transit.TripDurationMinutes(ctx, origin.Loc, dest.Loc); ok {
			return minutes
		}
	}

	// Router unconfigured/fell back and the best-effort transit estimator
	// (if any) also came up empty: fall back to our own analytic estimate
	// using the correct destination tier (the client's internal fallback
	// always assumes tier=1).
	distKM := geo.Haversine(origin.Loc, dest.Loc, b.EarthRadiusKM)
	return geo.AnalyticFallbackMinutes(distKM, dest.Tier)
}
