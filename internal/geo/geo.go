// Package geo computes distances between points on the WGS-84 ellipsoid.
package geo

import (
	"math"

	"github.com/tidwall/geodesic"
)

// MeanEarthRadiusKM is the IUGG mean radius used to size bounding boxes.
const MeanEarthRadiusKM = 6371.0088

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Box is a latitude/longitude rectangle in degrees. MinLon never exceeds
// MaxLon: a box that would wrap the antimeridian spans all longitudes.
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Contains reports whether p lies inside the box, edges included.
func (b Box) Contains(p Point) bool {
	return p.Latitude >= b.MinLat && p.Latitude <= b.MaxLat &&
		p.Longitude >= b.MinLon && p.Longitude <= b.MaxLon
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }

// Distance returns the geodesic distance between a and b in kilometres on
// WGS-84, solved with Karney's method. It is accurate to well under a
// millimetre everywhere, antipodal points included.
func Distance(a, b Point) float64 {
	var metres float64
	geodesic.WGS84.Inverse(a.Latitude, a.Longitude, b.Latitude, b.Longitude, &metres, nil, nil)
	return metres / 1000
}

// boxMargin widens the prefilter box so the ellipsoid's deviation from the
// mean-radius sphere (under 0.6%) never excludes a true match.
const boxMargin = 1.01

// BoundingBox returns a box containing every point whose geodesic distance
// from center is at most radiusKM. The box is a prefilter only: callers must
// still compute Distance for each candidate.
func BoundingBox(center Point, radiusKM float64) Box {
	if radiusKM < 0 {
		radiusKM = 0
	}
	// Angular radius on the sphere, padded for the ellipsoid.
	angular := radiusKM * boxMargin / MeanEarthRadiusKM
	dLat := toDegrees(angular)

	box := Box{
		MinLat: center.Latitude - dLat,
		MaxLat: center.Latitude + dLat,
		MinLon: -180,
		MaxLon: 180,
	}

	if box.MinLat <= -90 || box.MaxLat >= 90 {
		box.MinLat = math.Max(box.MinLat, -90)
		box.MaxLat = math.Min(box.MaxLat, 90)
		return box
	}

	dLon := toDegrees(math.Asin(math.Sin(angular) / math.Cos(toRadians(center.Latitude))))
	if center.Longitude-dLon < -180 || center.Longitude+dLon > 180 {
		return box
	}

	box.MinLon = center.Longitude - dLon
	box.MaxLon = center.Longitude + dLon
	return box
}
