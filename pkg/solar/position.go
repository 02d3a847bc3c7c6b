// Package solar provides the solar position lookups used by the shading engine and a
// sunrise/sunset estimate for spotting polar day and night.
package solar

import (
	"fmt"
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/sidereal"
	meeussolar "github.com/soniakeys/meeus/v3/solar"
)

// Location is an observer position. Altitude is metres above sea level.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// Position is the sun's place in the observer's sky, in degrees. Azimuth is measured
// clockwise from north.
type Position struct {
	AltitudeDeg float64
	AzimuthDeg  float64
	ZenithDeg   float64
}

// Provider computes solar positions.
type Provider interface {
	Position(t time.Time, loc Location) (Position, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(t time.Time, loc Location) (Position, error)

// Position calls f.
func (f ProviderFunc) Position(t time.Time, loc Location) (Position, error) {
	return f(t, loc)
}

// Algorithm names a Provider implementation
type Algorithm string

const (
	// AlgorithmMeeus uses apparent equatorial coordinates and apparent sidereal time
	AlgorithmMeeus Algorithm = "meeus"

	// AlgorithmNOAA uses the NOAA solar calculator series expansions
	AlgorithmNOAA Algorithm = "noaa"
)

// NewProvider returns the provider for the named algorithm. An empty name selects
// AlgorithmMeeus.
func NewProvider(alg Algorithm) (Provider, error) {
	switch alg {
	case AlgorithmMeeus, "":
		return MeeusProvider{}, nil
	case AlgorithmNOAA:
		return NOAAProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown solar position algorithm %q", alg)
	}
}

// MeeusProvider computes geometric solar positions from Meeus' Astronomical
// Algorithms. Refraction is not applied.
type MeeusProvider struct{}

// Position returns the sun position at t for loc.
func (MeeusProvider) Position(t time.Time, loc Location) (Position, error) {
	jd := julian.TimeToJD(t.UTC())

	θ := sidereal.Apparent(jd).Rad() + degToRad(loc.Longitude)
	ra, dec := meeussolar.ApparentEquatorial(jd)
	h := θ - ra.Rad()

	return horizontal(h, dec.Rad(), degToRad(loc.Latitude)), nil
}

// horizontal converts a local hour angle and declination (radians) to altitude and
// azimuth for latitude φ (radians).
func horizontal(h, δ, φ float64) Position {
	sinAlt := math.Sin(φ)*math.Sin(δ) + math.Cos(φ)*math.Cos(δ)*math.Cos(h)
	alt := radToDeg(math.Asin(math.Max(-1, math.Min(1, sinAlt))))

	// Meeus measures azimuth westward from south.
	az := math.Atan2(math.Sin(h), math.Cos(h)*math.Sin(φ)-math.Tan(δ)*math.Cos(φ))
	azNorth := fixAngle(radToDeg(az) + 180)

	return Position{
		AltitudeDeg: alt,
		AzimuthDeg:  azNorth,
		ZenithDeg:   90 - alt,
	}
}

func degToRad(deg float64) float64 { return deg * math.Pi / 180.0 }
func radToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }
func fixAngle(a float64) float64   { return a - 360.0*math.Floor(a/360.0) }
