// Package geo provides coordinate validation and normalization.
//
// Every coordinate that leaves this service toward the routing engine or the
// order backend must pass through ValidateAndClean first: the upstream
// services fail unpredictably on malformed input, so malformed coordinates
// are rejected here with a descriptive error instead.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Sentinel errors for coordinate validation.
var (
	// ErrNotDefined indicates a nil latitude or longitude input.
	ErrNotDefined = errors.New("coordinates are not defined")
	// ErrNotNumeric indicates an input that could not be coerced to a number.
	ErrNotNumeric = errors.New("coordinates are not numeric")
	// ErrOutOfRange indicates a coordinate outside the valid geographic range.
	ErrOutOfRange = errors.New("coordinates out of range")
)

// Precision is the number of decimal places coordinates are rounded to.
// Six decimals (~11cm) bounds floating-point drift and produces stable
// fingerprints for deduplication and display.
const Precision = 1e6

// Coordinate is a geographic point. JSON field names follow the wire
// contract shared with the order backend and the dashboard ("lat"/"lng").
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate is finite and within range.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Clean returns the coordinate rounded to six decimal places.
// Clean is idempotent: Clean(Clean(c)) == Clean(c).
func Clean(c Coordinate) Coordinate {
	return Coordinate{
		Lat: math.Round(c.Lat*Precision) / Precision,
		Lng: math.Round(c.Lng*Precision) / Precision,
	}
}

// ValidateAndClean validates a latitude/longitude pair of loosely typed
// inputs and returns the cleaned coordinate.
//
// Inputs may be float64, any integer type, or a numeric string (values
// arriving through JSON decoding or query parameters). nil inputs, values
// that fail numeric coercion, NaN/Inf, and out-of-range values are rejected
// with an error that names the offending value and the valid range.
func ValidateAndClean(lat, lng any) (Coordinate, error) {
	if lat == nil || lng == nil {
		return Coordinate{}, ErrNotDefined
	}

	latF, err := toFloat(lat)
	if err != nil {
		return Coordinate{}, fmt.Errorf("latitude %v: %w", lat, ErrNotNumeric)
	}
	lngF, err := toFloat(lng)
	if err != nil {
		return Coordinate{}, fmt.Errorf("longitude %v: %w", lng, ErrNotNumeric)
	}

	if math.IsNaN(latF) || math.IsInf(latF, 0) || math.IsNaN(lngF) || math.IsInf(lngF, 0) {
		return Coordinate{}, fmt.Errorf("coordinates (%v, %v): %w", lat, lng, ErrNotNumeric)
	}

	if latF < -90 || latF > 90 {
		return Coordinate{}, fmt.Errorf("latitude %g out of range [-90, 90]: %w", latF, ErrOutOfRange)
	}
	if lngF < -180 || lngF > 180 {
		return Coordinate{}, fmt.Errorf("longitude %g out of range [-180, 180]: %w", lngF, ErrOutOfRange)
	}

	return Clean(Coordinate{Lat: latF, Lng: lngF}), nil
}

// toFloat coerces the supported input types to float64.
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
