package geocode

import (
	"context"
	"fmt"
)

// Coordinates is a WGS84 point returned by the upstream geocoder.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.4f, %.4f", c.Latitude, c.Longitude)
}

// Outcome classifies a single lookup.
type Outcome string

const (
	OutcomeFound   Outcome = "found"
	OutcomeEmpty   Outcome = "empty"   // upstream answered with no candidate
	OutcomeFailed  Outcome = "failed"  // network, status or payload error
	OutcomeSkipped Outcome = "skipped" // blank query, nothing sent
)

// Result is the answer to one lookup. Coordinates is non-nil only when
// Outcome is OutcomeFound. Err is kept for diagnostics; callers never need
// to branch on it.
type Result struct {
	Coordinates *Coordinates
	Outcome     Outcome
	Cached      bool
	Err         error
}

// Found reports whether the lookup produced coordinates.
func (r Result) Found() bool {
	return r.Coordinates != nil
}

// Lookuper resolves a free-text query to at most one point.
type Lookuper interface {
	Lookup(ctx context.Context, query string) Result
}
