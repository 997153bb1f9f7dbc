package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/nuraz-ahamed/isotope-dispatch/internal/geo"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/simulator"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/vrp"
)

// hospitalRecord is the JSON shape returned by GET /hospitals.
type hospitalRecord struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Tier int     `json:"tier"`
	Type string  `json:"type"`
}

// handleListHospitals handles GET /hospitals.
func (s *Server) handleListHospitals(w http.ResponseWriter, r *http.Request) {
	all := s.Set.All()
	records := make([]hospitalRecord, len(all))
	for i, h := range all {
		records[i] = hospitalRecord{Name: h.Name, Lat: h.Loc.Lat, Lon: h.Loc.Lon, Tier: h.Tier, Type: h.Type}
	}
	writeJSON(w, http.StatusOK, records)
}

// optimizeRequest is the JSON body for POST /optimize. AvoidPoint is
// optional; when present it models an ad-hoc road closure active for
// this solve only.
type optimizeRequest struct {
	AvoidPoint *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"avoid_point"`
}

// handleOptimize handles POST /optimize.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
	}

	var avoidPoint *geo.Location
	if req.AvoidPoint != nil {
		avoidPoint = &geo.Location{Lat: req.AvoidPoint.Lat, Lon: req.AvoidPoint.Lon}
	}

	payload, err := s.runOptimizeJob(r.Context(), avoidPoint)
	if err != nil {
		s.writeSolveError(w, err)
		return
	}

	s.writeResultFile(payload)
	writeJSON(w, http.StatusOK, payload)
}

// handleSimulateDisruption handles POST /simulate-disruption. It solves
// a fresh baseline plan, then replays the configured "black swan"
// scenario against it.
func (s *Server) handleSimulateDisruption(w http.ResponseWriter, r *http.Request) {
	baseline, err := s.runOptimizeJob(r.Context(), nil)
	if err != nil {
		s.writeSolveError(w, err)
		return
	}

	outcome, err := simulator.Run(r.Context(), s.Set, baseline, s.Cfg, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, simulator.ErrNoTargetRoute), errors.Is(err, simulator.ErrRouteTooShort):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		default:
			s.Log.WithError(err).Error("httpapi: simulation failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "simulation failed"})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rerouted_plan": map[string]any{
			"vehicle_id": outcome.TargetVehicleID,
			"next_stop":  outcome.IntelligentNextStop,
			"route":      outcome.IntelligentRouteNames,
			"decision":   outcome.Decision,
		},
		"summary": outcome.Narrative,
	})
}

func (s *Server) writeSolveError(w http.ResponseWriter, err error) {
	if errors.Is(err, vrp.ErrNoSolution) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "no feasible plan within the solver's time limit"})
		return
	}
	s.Log.WithError(err).Error("httpapi: optimize job failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

// writeJSON is a helper that writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
