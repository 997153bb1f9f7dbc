// Package hospital models the fixed delivery network: the depot plus
// every hospital it serves, and the JSON file that seeds it.
package hospital

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/nuraz-ahamed/isotope-dispatch/internal/geo"
)

// Tier constants, matching the clinical-urgency classes of the dispatch
// specification.
const (
	TierDepot    = 0
	TierMetro    = 1
	TierRegional = 2
	TierRemote   = 3
)

// Hospital is an immutable delivery node.
type Hospital struct {
	Name string
	Loc  geo.Location
	Tier int
	Type string
}

// record is the on-disk JSON shape.
type record struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Tier int     `json:"tier"`
	Type string  `json:"type"`
}

// Set is the ordered hospital network; index 0 is always the sole depot
// and also the solver node id used throughout the dispatch pipeline.
type Set struct {
	hospitals []Hospital
}

// NewSet validates and wraps a hospital slice. It requires that index 0
// (and only index 0) carries TierDepot.
func NewSet(hospitals []Hospital) (*Set, error) {
	if len(hospitals) == 0 {
		return nil, fmt.Errorf("hospital: empty hospital set")
	}
	depotCount := 0
	for i, h := range hospitals {
		if h.Tier == TierDepot {
			depotCount++
			if i != 0 {
				return nil, fmt.Errorf("hospital: depot must be at index 0, found at %d", i)
			}
		}
	}
	if depotCount == 0 {
		return nil, fmt.Errorf("hospital: no depot (tier 0) found")
	}
	if depotCount > 1 {
		return nil, fmt.Errorf("hospital: expected exactly one depot, found %d", depotCount)
	}
	return &Set{hospitals: hospitals}, nil
}

// All returns the ordered hospital slice (index == solver node id).
func (s *Set) All() []Hospital { return s.hospitals }

// Len returns the number of nodes, including the depot.
func (s *Set) Len() int { return len(s.hospitals) }

// At returns the hospital at node index i.
func (s *Set) At(i int) Hospital { return s.hospitals[i] }

// DepotIndex is always 0.
func (s *Set) DepotIndex() int { return 0 }

// Load reads a hospital JSON file from path and returns a validated Set.
func Load(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("hospital: open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses the hospital JSON array from r and returns a validated
// Set.
func Decode(r io.Reader) (*Set, error) {
	var records []record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("hospital: decode: %w", err)
	}

	hospitals := make([]Hospital, 0, len(records))
	for _, rec := range records {
		hospitals = append(hospitals, Hospital{
			Name: rec.Name,
			Loc:  geo.Location{Lat: rec.Lat, Lon: rec.Lon},
			Tier: rec.Tier,
			Type: rec.Type,
		})
	}

	return NewSet(hospitals)
}
