package geo

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance_KnownGeodesic(t *testing.T) {
	// Flinders Peak to Buninyong, the reference case from Vincenty (1975).
	flinders := Point{Latitude: -37.95103342, Longitude: 144.42486789}
	buninyong := Point{Latitude: -37.65282114, Longitude: 143.92649554}

	assert.InDelta(t, 54.972271, Distance(flinders, buninyong), 0.001)
}

func TestDistance_AlongEquatorMatchesSemiMajorArc(t *testing.T) {
	want := 6378.137 * math.Pi / 180
	assert.InDelta(t, want, Distance(Point{0, 0}, Point{0, 1}), 1e-6)
}

func TestDistance_SamePointIsZero(t *testing.T) {
	p := Point{Latitude: 48.8566, Longitude: 2.3522}
	assert.Equal(t, 0.0, Distance(p, p))
}

func TestDistance_Symmetric(t *testing.T) {
	berlin := Point{Latitude: 52.52, Longitude: 13.405}
	tokyo := Point{Latitude: 35.6762, Longitude: 139.6503}
	assert.InDelta(t, Distance(berlin, tokyo), Distance(tokyo, berlin), 1e-9)
}

func TestDistance_MeridianReferences(t *testing.T) {
	// WGS-84 quarter meridian and its double, the equatorial antipode, whose
	// shortest geodesic runs over a pole.
	const quarterMeridian = 10001.965729

	assert.InDelta(t, quarterMeridian, Distance(Point{0, 0}, Point{90, 0}), 1e-5)
	assert.InDelta(t, 2*quarterMeridian, Distance(Point{0, 0}, Point{0, 180}), 1e-5)
}

func TestDistance_NearlyAntipodal(t *testing.T) {
	antipode := Distance(Point{0, 0}, Point{0, 180})
	for _, p := range []Point{{0.5, 179.7}, {-0.2, -179.9}, {0, 179.5}} {
		d := Distance(Point{0, 0}, p)
		assert.False(t, math.IsNaN(d), "%+v", p)
		assert.Less(t, d, antipode, "%+v", p)
		assert.Greater(t, d, 19900.0, "%+v", p)
	}
}

func TestBoundingBox_ContainsCenter(t *testing.T) {
	c := Point{Latitude: 40.7128, Longitude: -74.006}
	box := BoundingBox(c, 10)
	assert.True(t, box.Contains(c))
	assert.Less(t, box.MinLat, c.Latitude)
	assert.Greater(t, box.MaxLon, c.Longitude)
}

func TestBoundingBox_ZeroRadius(t *testing.T) {
	c := Point{Latitude: 10, Longitude: 20}
	box := BoundingBox(c, 0)
	assert.True(t, box.Contains(c))
	assert.False(t, box.Contains(Point{Latitude: 10.001, Longitude: 20}))
}

func TestBoundingBox_NearPoleSpansAllLongitudes(t *testing.T) {
	box := BoundingBox(Point{Latitude: 89.9, Longitude: 0}, 50)
	assert.Equal(t, -180.0, box.MinLon)
	assert.Equal(t, 180.0, box.MaxLon)
	assert.Equal(t, 90.0, box.MaxLat)
}

func TestBoundingBox_AntimeridianSpansAllLongitudes(t *testing.T) {
	box := BoundingBox(Point{Latitude: 0, Longitude: 179.99}, 20)
	assert.Equal(t, -180.0, box.MinLon)
	assert.Equal(t, 180.0, box.MaxLon)
	assert.True(t, box.Contains(Point{Latitude: 0, Longitude: -179.99}))
}

func TestBoundingBox_NeverExcludesPointsWithinRadius(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	centers := []Point{
		{Latitude: 0, Longitude: 0},
		{Latitude: 52.52, Longitude: 13.405},
		{Latitude: -33.8688, Longitude: 151.2093},
		{Latitude: 70, Longitude: -150},
	}
	const radius = 250.0

	for _, c := range centers {
		box := BoundingBox(c, radius)
		for i := 0; i < 2000; i++ {
			p := Point{
				Latitude:  c.Latitude + (rng.Float64()*2-1)*4,
				Longitude: c.Longitude + (rng.Float64()*2-1)*12,
			}
			if p.Latitude > 90 || p.Latitude < -90 {
				continue
			}
			if Distance(c, p) <= radius {
				assert.True(t, box.Contains(p), "center %+v point %+v outside box %+v", c, p, box)
			}
		}
	}
}
