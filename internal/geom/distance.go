package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// DistanceToLine returns the distance in meters from p to the nearest point of
// a LineString or MultiLineString. Segments are projected on an
// equirectangular plane centred on p, which is accurate at city scale.
// Empty geometries give +Inf.
func DistanceToLine(g orb.Geometry, p orb.Point) float64 {
	switch v := g.(type) {
	case orb.LineString:
		return distanceToLineString(v, p)
	case orb.MultiLineString:
		best := math.Inf(1)
		for _, ls := range v {
			best = math.Min(best, distanceToLineString(ls, p))
		}
		return best
	default:
		return math.Inf(1)
	}
}

func distanceToLineString(ls orb.LineString, p orb.Point) float64 {
	switch len(ls) {
	case 0:
		return math.Inf(1)
	case 1:
		return geo.DistanceHaversine(ls[0], p)
	}
	cosLat0 := math.Cos(p.Lat() * math.Pi / 180)
	toXY := func(q orb.Point) (x, y float64) {
		y = (q.Lat() - p.Lat()) * math.Pi / 180 * orb.EarthRadius
		x = (q.Lon() - p.Lon()) * math.Pi / 180 * orb.EarthRadius * cosLat0
		return
	}
	best2 := math.MaxFloat64
	x0, y0 := toXY(ls[0])
	for i := 1; i < len(ls); i++ {
		x1, y1 := toXY(ls[i])
		dx, dy := x1-x0, y1-y0
		t := 0.0
		if seg2 := dx*dx + dy*dy; seg2 > 0 {
			t = -(x0*dx + y0*dy) / seg2
			t = math.Max(0, math.Min(1, t))
		}
		px, py := x0+t*dx, y0+t*dy
		if d2 := px*px + py*py; d2 < best2 {
			best2 = d2
		}
		x0, y0 = x1, y1
	}
	return math.Sqrt(best2)
}

// Distances returns DistanceToLine for every point.
func Distances(g orb.Geometry, pts []orb.Point) []float64 {
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = DistanceToLine(g, p)
	}
	return out
}

// ShareWithin returns the fraction of distances strictly below threshold.
// An empty input gives 0.
func ShareWithin(dists []float64, threshold float64) float64 {
	if len(dists) == 0 {
		return 0
	}
	n := 0
	for _, d := range dists {
		if d < threshold {
			n++
		}
	}
	return float64(n) / float64(len(dists))
}
