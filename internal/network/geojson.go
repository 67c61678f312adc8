package network

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// LoadGeoJSON reads an edge FeatureCollection exported from the network
// builder. Properties: eid, src, dst, src_name, dst_name, way_id, duration,
// walking_duration, distance (or dist), speed. A null geometry becomes an
// empty line.
func LoadGeoJSON(path string) ([]Edge, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseGeoJSON(b)
}

func ParseGeoJSON(b []byte) ([]Edge, error) {
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, fmt.Errorf("decode edges: %w", err)
	}
	edges := make([]Edge, 0, len(fc.Features))
	for i, f := range fc.Features {
		e, err := edgeFromFeature(f)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		edges = append(edges, e)
	}
	return edges, nil
}

func edgeFromFeature(f *geojson.Feature) (Edge, error) {
	p := f.Properties
	id, ok := p["eid"]
	if !ok {
		id = f.ID
	}
	num, ok := id.(float64)
	if !ok {
		return Edge{}, fmt.Errorf("missing numeric eid")
	}
	dist := p.MustFloat64("distance", 0)
	if dist == 0 {
		dist = p.MustFloat64("dist", 0)
	}
	e := Edge{
		ID:              EdgeID(num),
		Src:             NodeID(p.MustFloat64("src", 0)),
		Dst:             NodeID(p.MustFloat64("dst", 0)),
		SrcName:         p.MustString("src_name", ""),
		DstName:         p.MustString("dst_name", ""),
		WayID:           WayID(p.MustFloat64("way_id", 0)),
		Duration:        p.MustFloat64("duration", 0),
		WalkingDuration: p.MustFloat64("walking_duration", 0),
		Dist:            dist,
		Speed:           p.MustFloat64("speed", 0),
	}
	switch g := f.Geometry.(type) {
	case nil:
	case orb.LineString:
		e.Geometry = g
	default:
		return Edge{}, fmt.Errorf("edge %d: unsupported geometry %s", e.ID, g.GeoJSONType())
	}
	return e, nil
}
