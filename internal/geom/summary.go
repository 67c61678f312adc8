package geom

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes a distance sample in meters.
type Summary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	P25   float64 `json:"p25"`
	P50   float64 `json:"p50"`
	P75   float64 `json:"p75"`
	Max   float64 `json:"max"`
}

// Summarize ignores infinite values (points measured against an empty route).
func Summarize(dists []float64) Summary {
	x := make([]float64, 0, len(dists))
	for _, d := range dists {
		if !math.IsInf(d, 0) && !math.IsNaN(d) {
			x = append(x, d)
		}
	}
	if len(x) == 0 {
		return Summary{}
	}
	sort.Float64s(x)
	s := Summary{
		Count: len(x),
		Mean:  stat.Mean(x, nil),
		Min:   floats.Min(x),
		Max:   floats.Max(x),
		P25:   percentile(x, 0.25),
		P50:   percentile(x, 0.5),
		P75:   percentile(x, 0.75),
	}
	if len(x) > 1 {
		s.Std = stat.StdDev(x, nil)
	}
	return s
}

// percentile interpolates linearly between the order statistics around
// position (n-1)*p of the sorted sample x.
func percentile(x []float64, p float64) float64 {
	h := float64(len(x)-1) * p
	lo := math.Floor(h)
	hi := math.Ceil(h)
	return x[int(lo)] + (h-lo)*(x[int(hi)]-x[int(lo)])
}
