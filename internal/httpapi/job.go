package httpapi

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nuraz-ahamed/isotope-dispatch/internal/disruption"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/geo"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/matrix"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/plan"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/vrp"
)

// runOptimizeJob owns a matrix and solver run end to end: build the
// time matrix, optionally rewrite it for an ad-hoc road closure, solve,
// and materialize the plan. No state from this job is shared with any
// other concurrent request.
func (s *Server) runOptimizeJob(ctx context.Context, avoidPoint *geo.Location) (plan.Payload, error) {
	builder := matrix.NewBuilder(s.Router, nil, s.Cfg.RouterRateLimitHz, s.Cfg.EarthRadiusKM)
	m := builder.Build(ctx, s.Set)

	snappedRoad := ""
	if avoidPoint != nil {
		snap := s.Router.Snap(ctx, *avoidPoint)
		snappedRoad = snap.RoadName

		injector := disruption.NewInjector(s.Router, s.Cfg.EarthRadiusKM, s.Cfg.ImpactRadiusKM, s.Cfg.PreFilterRadiusKM)
		stats := injector.Apply(ctx, s.Set, m, snap.Loc)
		s.Log.WithFields(logrus.Fields{
			"checked":  stats.Checked,
			"rerouted": stats.Rerouted,
		}).Debug("httpapi: disruption injector applied")
	}

	dispatchStart := time.Now()
	result, err := vrp.Solve(ctx, s.Set, m, s.Cfg, dispatchStart)
	if err != nil {
		return plan.Payload{}, err
	}

	mz := plan.NewMaterializer(s.Router, s.Cfg)
	return mz.Build(ctx, s.Set, result, avoidPoint, snappedRoad)
}

// writeResultFile persists the given payload to s.ResultFilePath,
// serialized by resultMu. A no-op when ResultFilePath is empty. Write
// failures are logged, never surfaced to the caller: the side-channel
// file is best-effort only.
func (s *Server) writeResultFile(payload plan.Payload) {
	if s.ResultFilePath == "" {
		return
	}
	s.resultMu.Lock()
	defer s.resultMu.Unlock()

	if err := writeJSONFile(s.ResultFilePath, payload); err != nil {
		s.Log.WithError(err).Warn("httpapi: failed to persist result file")
	}
}
