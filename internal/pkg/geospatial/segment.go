package geospatial

import "math"

const earthRadiusM = earthRadiusKm * 1000

// CrossTrackMeters returns the perpendicular great-circle distance from a
// point to the great circle through segment start/end, in meters.
func CrossTrackMeters(lat, lon, lat1, lon1, lat2, lon2 float64) float64 {
	d13 := Haversine(lat1, lon1, lat, lon) / earthRadiusM
	b13 := bearing(lat1, lon1, lat, lon)
	b12 := bearing(lat1, lon1, lat2, lon2)
	return math.Abs(math.Asin(math.Sin(d13)*math.Sin(b13-b12)) * earthRadiusM)
}

// PointToSegmentMeters returns the great-circle distance in meters from a
// point to the segment between two points, clamping to the nearer endpoint
// when the perpendicular foot falls outside the segment.
func PointToSegmentMeters(lat, lon, lat1, lon1, lat2, lon2 float64) float64 {
	segLen := Haversine(lat1, lon1, lat2, lon2)
	if segLen == 0 {
		return Haversine(lat1, lon1, lat, lon)
	}

	d13 := Haversine(lat1, lon1, lat, lon) / earthRadiusM
	b13 := bearing(lat1, lon1, lat, lon)
	b12 := bearing(lat1, lon1, lat2, lon2)

	xt := math.Asin(math.Sin(d13) * math.Sin(b13-b12))
	// Along-track distance from the segment start to the foot of the
	// perpendicular.
	at := math.Acos(math.Cos(d13)/math.Cos(xt)) * earthRadiusM
	if math.Cos(b13-b12) < 0 {
		at = -at
	}

	if at < 0 {
		return Haversine(lat1, lon1, lat, lon)
	}
	if at > segLen {
		return Haversine(lat2, lon2, lat, lon)
	}
	return math.Abs(xt * earthRadiusM)
}

// bearing returns the initial great-circle bearing from point 1 to point 2
// in radians.
func bearing(lat1, lon1, lat2, lon2 float64) float64 {
	f1 := toRad(lat1)
	f2 := toRad(lat2)
	dl := toRad(lon2 - lon1)
	y := math.Sin(dl) * math.Cos(f2)
	x := math.Cos(f1)*math.Sin(f2) - math.Sin(f1)*math.Cos(f2)*math.Cos(dl)
	return math.Atan2(y, x)
}
