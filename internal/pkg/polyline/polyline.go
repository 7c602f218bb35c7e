// Package polyline implements the Google encoded-polyline format: coordinate
// deltas scaled by 1e5, zig-zag encoded, then emitted as 5-bit groups in
// base-64-offset-63 ASCII with a continuation bit on all but the last group.
package polyline

import (
	"fmt"

	"github.com/samirrijal/nearbus/internal/core/domain"
)

const scale = 1e5

// Decode reconstructs the point sequence from an encoded polyline string.
func Decode(encoded string) ([]domain.GeoPoint, error) {
	var points []domain.GeoPoint
	var lat, lon int64

	i := 0
	for i < len(encoded) {
		dLat, n, err := decodeValue(encoded[i:])
		if err != nil {
			return nil, err
		}
		i += n
		lat += dLat

		dLon, n, err := decodeValue(encoded[i:])
		if err != nil {
			return nil, err
		}
		i += n
		lon += dLon

		points = append(points, domain.GeoPoint{
			Lat: float64(lat) / scale,
			Lon: float64(lon) / scale,
		})
	}
	return points, nil
}

// Encode produces the encoded polyline string for a point sequence.
func Encode(points []domain.GeoPoint) string {
	var out []byte
	var prevLat, prevLon int64
	for _, p := range points {
		lat := int64(round(p.Lat * scale))
		lon := int64(round(p.Lon * scale))
		out = encodeValue(out, lat-prevLat)
		out = encodeValue(out, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return string(out)
}

// decodeValue reads one zig-zag varint and returns it with the number of
// bytes consumed.
func decodeValue(s string) (int64, int, error) {
	var result int64
	var shift uint
	for i := 0; i < len(s); i++ {
		b := int64(s[i]) - 63
		if b < 0 {
			return 0, 0, fmt.Errorf("polyline: invalid character %q", s[i])
		}
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			// Undo zig-zag.
			if result&1 != 0 {
				return ^(result >> 1), i + 1, nil
			}
			return result >> 1, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("polyline: truncated value")
}

func encodeValue(out []byte, v int64) []byte {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		out = append(out, byte((0x20|(u&0x1f))+63))
		u >>= 5
	}
	return append(out, byte(u+63))
}

func round(f float64) float64 {
	if f < 0 {
		return float64(int64(f - 0.5))
	}
	return float64(int64(f + 0.5))
}
