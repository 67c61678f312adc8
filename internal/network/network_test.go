package network

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTablePath(t *testing.T) {
	tbl := NewTable([]Edge{{ID: 1, WayID: 7}, {ID: 2, WayID: 7}, {ID: 3, WayID: 8}})
	require.Equal(t, 3, tbl.Len())

	path, err := tbl.Path([]EdgeID{3, 1})
	require.NoError(t, err)
	assert.Equal(t, EdgeID(3), path[0].ID)
	assert.Equal(t, EdgeID(1), path[1].ID)

	_, err = tbl.Path([]EdgeID{1, 99})
	var ue *UnknownEdgeError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, EdgeID(99), ue.ID)
	assert.Equal(t, 1, ue.Index)
}

func TestNewWaitTimes(t *testing.T) {
	edges := []Edge{
		{ID: 1, WayID: 1, DstName: DstInnerLink, Duration: 180},
		{ID: 2, WayID: 1, DstName: "Futian", Duration: 90},
		{ID: 3, WayID: 2, DstName: DstInnerLink, Duration: 240},
		{ID: 4, WayID: 2, DstName: DstInnerLink, Duration: 300},
		{ID: 5, WayID: 3, DstName: DstExchange, Duration: 60},
	}
	w := NewWaitTimes(edges)

	d, ok := w.Lookup(1)
	assert.True(t, ok)
	assert.Equal(t, 180.0, d)

	d, ok = w.Lookup(2)
	assert.True(t, ok)
	assert.Equal(t, 300.0, d, "later inner_link of the same way wins")

	_, ok = w.Lookup(3)
	assert.False(t, ok, "exchange edges do not feed the wait table")
}

func TestIsSentinel(t *testing.T) {
	assert.True(t, Edge{DstName: DstExchange}.IsSentinel())
	assert.True(t, Edge{DstName: DstInnerLink}.IsSentinel())
	assert.False(t, Edge{DstName: "Nanshan"}.IsSentinel())
}

func TestParseGeoJSON(t *testing.T) {
	data := []byte(`{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature",
     "properties": {"eid": 10, "src": 1, "dst": 2, "src_name": "Nanshan", "dst_name": "Houhai",
                    "way_id": 11, "duration": 120, "walking_duration": 0, "distance": 1500, "speed": 12.5},
     "geometry": {"type": "LineString", "coordinates": [[113.92, 22.52], [113.94, 22.52]]}},
    {"type": "Feature",
     "properties": {"eid": 11, "src": 2, "dst": 3, "src_name": "Houhai", "dst_name": "exchange",
                    "way_id": 11, "duration": 90, "walking_duration": 60, "dist": 0, "speed": 0},
     "geometry": {"type": "LineString", "coordinates": []}}
  ]
}`)
	edges, err := ParseGeoJSON(data)
	require.NoError(t, err)
	require.Len(t, edges, 2)

	e := edges[0]
	assert.Equal(t, EdgeID(10), e.ID)
	assert.Equal(t, NodeID(1), e.Src)
	assert.Equal(t, NodeID(2), e.Dst)
	assert.Equal(t, "Houhai", e.DstName)
	assert.Equal(t, WayID(11), e.WayID)
	assert.Equal(t, 1500.0, e.Dist)
	assert.Equal(t, orb.LineString{{113.92, 22.52}, {113.94, 22.52}}, e.Geometry)

	assert.True(t, edges[1].IsSentinel())
	assert.Equal(t, 60.0, edges[1].WalkingDuration)
	assert.Empty(t, edges[1].Geometry)
}

func TestParseGeoJSONRejectsMissingID(t *testing.T) {
	data := []byte(`{"type": "FeatureCollection", "features": [
    {"type": "Feature", "properties": {"way_id": 1}, "geometry": {"type": "LineString", "coordinates": [[0,0],[1,1]]}}]}`)
	_, err := ParseGeoJSON(data)
	assert.Error(t, err)
}
