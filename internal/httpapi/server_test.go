package httpapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuraz-ahamed/isotope-dispatch/internal/config"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/geo"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/hospital"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/httpapi"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/routing"
)

func buildTestServer(t *testing.T) *httpapi.Server {
	t.Helper()
	set, err := hospital.NewSet([]hospital.Hospital{
		{Name: "Depot", Loc: geo.Location{Lat: 0, Lon: 0}, Tier: hospital.TierDepot, Type: "Source"},
		{Name: "Metro General", Loc: geo.Location{Lat: 0, Lon: 0.2}, Tier: hospital.TierMetro, Type: "Metro"},
		{Name: "Regional Clinic", Loc: geo.Location{Lat: 0.1, Lon: 0.3}, Tier: hospital.TierRegional, Type: "Regional"},
	})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.VehicleCount = 2
	cfg.SolverTimeLimit = 2 * time.Second

	return httpapi.NewServer(set, &routing.FakeClient{}, cfg, "", nil)
}

func TestHandleListHospitalsReturnsEveryNode(t *testing.T) {
	srv := buildTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/hospitals", nil)
	rec := httptest.NewRecorder()

	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var records []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Len(t, records, 3)
	assert.Equal(t, "Depot", records[0]["name"])
}

func TestHandleOptimizeReturnsPlanPayload(t *testing.T) {
	srv := buildTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/optimize", nil)
	rec := httptest.NewRecorder()

	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Contains(t, payload, "routes")
	assert.Contains(t, payload, "analytics")
}

func TestHandleOptimizeRejectsMalformedBody(t *testing.T) {
	srv := buildTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/optimize", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
