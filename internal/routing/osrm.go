package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/twpayne/go-polyline"

	"github.com/nuraz-ahamed/isotope-dispatch/internal/geo"
)

// OSRMClient talks to an OSRM-shaped routing service: a "nearest"
// endpoint for road-snapping and a "route" endpoint for duration,
// distance, and encoded geometry.
type OSRMClient struct {
	BaseURL         string
	HTTPClient      *http.Client
	RouteTimeout    time.Duration
	SnapTimeout     time.Duration
	EarthRadiusKM   float64
	DetourOffsetDeg float64
	ImpactRadiusKM  float64
	Log             *logrus.Logger
}

// NewOSRMClient builds a client against baseURL (e.g.
// "http://router.project-osrm.org") with the given timeouts.
func NewOSRMClient(baseURL string, routeTimeout, snapTimeout time.Duration, log *logrus.Logger) *OSRMClient {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &OSRMClient{
		BaseURL:         strings.TrimRight(baseURL, "/"),
		HTTPClient:      &http.Client{},
		RouteTimeout:    routeTimeout,
		SnapTimeout:     snapTimeout,
		EarthRadiusKM:   6371,
		DetourOffsetDeg: 0.045,
		ImpactRadiusKM:  2.0,
		Log:             log,
	}
}

type nearestResponse struct {
	Code      string `json:"code"`
	Waypoints []struct {
		Location [2]float64 `json:"location"`
		Distance float64    `json:"distance"`
		Name     string     `json:"name"`
	} `json:"waypoints"`
}

// Snap implements Client.
func (c *OSRMClient) Snap(ctx context.Context, loc geo.Location) SnapResult {
	fallback := SnapResult{Loc: loc}

	ctx, cancel := context.WithTimeout(ctx, c.SnapTimeout)
	defer cancel()

	reqURL := fmt.Sprintf("%s/nearest/v1/driving/%s,%s?number=1",
		c.BaseURL, formatCoord(loc.Lon), formatCoord(loc.Lat))

	var parsed nearestResponse
	if err := c.getJSON(ctx, reqURL, &parsed); err != nil {
		c.Log.WithError(err).Debug("routing: snap-to-road failed, using raw point")
		return fallback
	}
	if parsed.Code != "Ok" || len(parsed.Waypoints) == 0 {
		return fallback
	}

	wp := parsed.Waypoints[0]
	return SnapResult{
		Loc:      geo.Location{Lat: wp.Location[1], Lon: wp.Location[0]},
		OffsetM:  wp.Distance,
		RoadName: wp.Name,
	}
}

type routeResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Duration float64 `json:"duration"`
		Distance float64 `json:"distance"`
		Geometry string  `json:"geometry"`
	} `json:"routes"`
}

// Route implements Client.
func (c *OSRMClient) Route(ctx context.Context, origin, dest geo.Location, avoid *geo.Location) RouteResult {
	detourWP, useDetour := c.resolveDetour(origin, dest, avoid)

	ctx, cancel := context.WithTimeout(ctx, c.RouteTimeout)
	defer cancel()

	var coords string
	q := url.Values{"overview": {"full"}, "geometries": {"polyline"}}
	if useDetour {
		coords = fmt.Sprintf("%s,%s;%s,%s;%s,%s",
			formatCoord(origin.Lon), formatCoord(origin.Lat),
			formatCoord(detourWP.Lon), formatCoord(detourWP.Lat),
			formatCoord(dest.Lon), formatCoord(dest.Lat))
		q.Set("radiuses", "unlimited;50;unlimited")
	} else {
		coords = fmt.Sprintf("%s,%s;%s,%s",
			formatCoord(origin.Lon), formatCoord(origin.Lat),
			formatCoord(dest.Lon), formatCoord(dest.Lat))
	}

	reqURL := fmt.Sprintf("%s/route/v1/driving/%s?%s", c.BaseURL, coords, q.Encode())

	var parsed routeResponse
	if err := c.getJSON(ctx, reqURL, &parsed); err != nil {
		c.Log.WithError(err).Debug("routing: route fetch failed, using analytic fallback")
		return c.fallbackRoute(origin, dest)
	}
	if parsed.Code != "Ok" || len(parsed.Routes) == 0 {
		return c.fallbackRoute(origin, dest)
	}

	route := parsed.Routes[0]
	coordsDecoded, _, err := polyline.DecodeCoords([]byte(route.Geometry))
	if err != nil {
		c.Log.WithError(err).Debug("routing: geometry decode failed, using analytic fallback")
		return c.fallbackRoute(origin, dest)
	}

	geometry := make([]geo.Location, 0, len(coordsDecoded))
	for _, pair := range coordsDecoded {
		geometry = append(geometry, geo.Location{Lat: pair[0], Lon: pair[1]})
	}

	return RouteResult{
		DurationMin: route.Duration / 60.0,
		DistanceKM:  route.Distance / 1000.0,
		Geometry:    geometry,
		Detoured:    useDetour,
	}
}

func (c *OSRMClient) resolveDetour(origin, dest geo.Location, avoid *geo.Location) (geo.Location, bool) {
	if avoid == nil {
		return geo.Location{}, false
	}
	if !geo.SegmentImpacted(origin, dest, *avoid, c.ImpactRadiusKM, c.EarthRadiusKM) {
		return geo.Location{}, false
	}
	return geo.DetourWaypoint(origin, dest, *avoid, c.DetourOffsetDeg, c.EarthRadiusKM), true
}

func (c *OSRMClient) fallbackRoute(origin, dest geo.Location) RouteResult {
	distKM := geo.Haversine(origin, dest, c.EarthRadiusKM)
	return RouteResult{
		DurationMin: geo.AnalyticFallbackMinutes(distKM, 1),
		DistanceKM:  distKM,
		Geometry:    []geo.Location{origin, dest},
		Detoured:    false,
		Fallback:    true,
	}
}

func (c *OSRMClient) getJSON(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("routing: unexpected status %d from %s", resp.StatusCode, reqURL)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
