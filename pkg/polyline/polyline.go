// Package polyline implements Google's encoded polyline algorithm.
// See https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"math"
)

// Coordinate is a geographic point along a polyline.
type Coordinate struct {
	Lat float64
	Lng float64
}

// Precision factors for the two encodings in use: 1e5 is the standard
// Google/OSRM format, 1e6 matches the six-decimal cleaned coordinates
// exchanged with the order backend.
const (
	Precision5 = 1e5
	Precision6 = 1e6
)

// Encode encodes coordinates at the standard precision of 5 decimal places.
func Encode(coords []Coordinate) string {
	return EncodeWithPrecision(coords, Precision5)
}

// EncodeWithPrecision encodes coordinates with the given precision factor.
func EncodeWithPrecision(coords []Coordinate, factor float64) string {
	if len(coords) == 0 {
		return ""
	}

	buf := make([]byte, 0, len(coords)*4)
	prevLat, prevLng := 0, 0

	for _, c := range coords {
		lat := int(math.Round(c.Lat * factor))
		lng := int(math.Round(c.Lng * factor))

		buf = appendValue(buf, lat-prevLat)
		buf = appendValue(buf, lng-prevLng)

		prevLat, prevLng = lat, lng
	}

	return string(buf)
}

// Decode decodes a polyline encoded at the standard precision of 5 decimal places.
func Decode(encoded string) []Coordinate {
	return DecodeWithPrecision(encoded, Precision5)
}

// DecodeWithPrecision decodes a polyline with the given precision factor.
func DecodeWithPrecision(encoded string, factor float64) []Coordinate {
	if encoded == "" {
		return nil
	}

	var coords []Coordinate
	index, lat, lng := 0, 0, 0

	for index < len(encoded) {
		latDelta, next := readValue(encoded, index)
		index = next
		lat += latDelta

		lngDelta, next := readValue(encoded, index)
		index = next
		lng += lngDelta

		coords = append(coords, Coordinate{
			Lat: float64(lat) / factor,
			Lng: float64(lng) / factor,
		})
	}

	return coords
}

// appendValue encodes a single delta value in 5-bit chunks.
func appendValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	return append(buf, byte(value)+63)
}

// readValue decodes a single delta value starting at index.
// Returns the value and the index of the next unread byte.
func readValue(encoded string, index int) (int, int) {
	shift, result := 0, 0

	for index < len(encoded) {
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), index
	}
	return result >> 1, index
}

const earthRadiusMeters = 6371000

// Length returns the total haversine length of the polyline in meters.
func Length(coords []Coordinate) float64 {
	if len(coords) < 2 {
		return 0
	}

	var total float64
	for i := 1; i < len(coords); i++ {
		total += haversine(coords[i-1], coords[i])
	}
	return total
}

func haversine(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
