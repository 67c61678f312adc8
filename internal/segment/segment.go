// Package segment reshapes a matched edge path into ride rows: one row per
// continuous ride on a line, with exchange and inner_link edges passed
// through in traversal order.
package segment

import (
	"encoding/json"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"transit-scorer/internal/geom"
	"transit-scorer/internal/network"
)

type Kind int

const (
	KindRide Kind = iota
	KindExchange
	KindInnerLink
)

func (k Kind) String() string {
	switch k {
	case KindExchange:
		return network.DstExchange
	case KindInnerLink:
		return network.DstInnerLink
	default:
		return "ride"
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Row is one element of a segmented path.
type Row struct {
	Kind            Kind             `json:"kind"`
	WayID           network.WayID    `json:"way_id"`
	Src             network.NodeID   `json:"src"`
	Dst             network.NodeID   `json:"dst"`
	SrcName         string           `json:"src_name"`
	DstName         string           `json:"dst_name"`
	EdgeIDs         []network.EdgeID `json:"eids"`
	Dist            float64          `json:"dist"`
	Duration        float64          `json:"duration"`
	WalkingDuration *float64         `json:"walking_duration"` // nil on rides without transfer walking
	Speed           float64          `json:"speed"`
	Geometry        orb.Geometry     `json:"-"`
}

func (r Row) IsRide() bool { return r.Kind == KindRide }

func (r Row) MarshalJSON() ([]byte, error) {
	type plain Row
	out := struct {
		plain
		Geometry *geojson.Geometry `json:"geometry,omitempty"`
	}{plain: plain(r)}
	if !geom.IsEmpty(r.Geometry) {
		out.Geometry = geojson.NewGeometry(r.Geometry)
	}
	return json.Marshal(out)
}

// Steps assigns a step id to every edge. A new step starts when the way
// changes or when the edge is an exchange/inner_link edge; the first edge is
// step 0.
func Steps(path []network.Edge) []int {
	steps := make([]int, len(path))
	step := 0
	for i := 1; i < len(path); i++ {
		if path[i].WayID != path[i-1].WayID || path[i].IsSentinel() {
			step++
		}
		steps[i] = step
	}
	return steps
}

type keyed struct {
	row   Row
	order int
	step  int
}

// Segment groups consecutive same-way ride edges into one row each and keeps
// exchange/inner_link edges as single rows. Output follows traversal order.
// With multi set, ride geometries are always MultiLineStrings.
//
// Node contiguity is not checked here; see Validate.
func Segment(path []network.Edge, multi bool) []Row {
	if len(path) == 0 {
		return nil
	}
	steps := Steps(path)

	var rows []keyed
	var group []network.Edge
	groupOrder, groupStep := 0, -1
	flush := func() {
		if len(group) > 0 {
			rows = append(rows, keyed{row: aggregate(group, multi), order: groupOrder, step: groupStep})
		}
		group = nil
	}
	for i, e := range path {
		if e.IsSentinel() {
			rows = append(rows, keyed{row: passthrough(e), order: i, step: steps[i]})
			continue
		}
		if steps[i] != groupStep {
			flush()
			groupOrder, groupStep = i, steps[i]
		}
		group = append(group, e)
	}
	flush()

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].order != rows[j].order {
			return rows[i].order < rows[j].order
		}
		return rows[i].step < rows[j].step
	})
	out := make([]Row, len(rows))
	for i, k := range rows {
		out[i] = k.row
	}
	return out
}

func aggregate(edges []network.Edge, multi bool) Row {
	first, last := edges[0], edges[len(edges)-1]
	n := len(edges)
	ids := make([]network.EdgeID, n)
	dist := make([]float64, n)
	dur := make([]float64, n)
	walk := make([]float64, n)
	speed := make([]float64, n)
	lines := make([]orb.LineString, n)
	for i, e := range edges {
		ids[i] = e.ID
		dist[i] = e.Dist
		dur[i] = e.Duration
		walk[i] = e.WalkingDuration
		speed[i] = e.Speed
		lines[i] = e.Geometry
	}
	r := Row{
		Kind:     KindRide,
		WayID:    first.WayID,
		Src:      first.Src,
		Dst:      last.Dst,
		SrcName:  first.SrcName,
		DstName:  last.DstName,
		EdgeIDs:  ids,
		Dist:     floats.Sum(dist),
		Duration: floats.Sum(dur),
		Speed:    stat.Mean(speed, nil),
		Geometry: geom.MergeLines(lines, multi),
	}
	// zero walking time is indistinguishable from "no walking part"
	if w := floats.Sum(walk); w != 0 {
		r.WalkingDuration = &w
	}
	return r
}

func passthrough(e network.Edge) Row {
	kind := KindExchange
	if e.DstName == network.DstInnerLink {
		kind = KindInnerLink
	}
	walk := e.WalkingDuration
	return Row{
		Kind:            kind,
		WayID:           e.WayID,
		Src:             e.Src,
		Dst:             e.Dst,
		SrcName:         e.SrcName,
		DstName:         e.DstName,
		EdgeIDs:         []network.EdgeID{e.ID},
		Dist:            e.Dist,
		Duration:        e.Duration,
		WalkingDuration: &walk,
		Speed:           e.Speed,
		Geometry:        e.Geometry,
	}
}

// Rides returns only the ride rows.
func Rides(rows []Row) []Row {
	var out []Row
	for _, r := range rows {
		if r.IsRide() {
			out = append(out, r)
		}
	}
	return out
}

// EdgeIDs concatenates the edge ids of all rows in order.
func EdgeIDs(rows []Row) []network.EdgeID {
	var out []network.EdgeID
	for _, r := range rows {
		out = append(out, r.EdgeIDs...)
	}
	return out
}
