package traj

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSVWithGeometry(t *testing.T) {
	in := `,dt,geometry
0,2023-12-06 08:00:00,POINT (113.92 22.52)
1,2023-12-06 08:10:30,POINT (113.95 22.53)
2,2023-12-06 08:05:00,POINT (113.93 22.525)
`
	tr, err := ReadCSV(strings.NewReader(in), "t1")
	require.NoError(t, err)
	require.Len(t, tr.Points, 3)
	assert.Equal(t, "t1", tr.ID)
	assert.Equal(t, 113.92, tr.Points[0].Lon)
	assert.Equal(t, 22.52, tr.Points[0].Lat)
	assert.Equal(t, 630.0, tr.Duration())
	assert.Len(t, tr.Positions(), 3)
}

func TestReadCSVWithLonLat(t *testing.T) {
	in := "timestamp,lon,lat\n1701849600,114.0,22.5\n1701849660.5,114.1,22.6\n"
	tr, err := ReadCSV(strings.NewReader(in), "")
	require.NoError(t, err)
	require.Len(t, tr.Points, 2)
	assert.Equal(t, time.Unix(1701849600, 0).UTC(), tr.Points[0].Time)
	assert.InDelta(t, 60.5, tr.Duration(), 1e-6)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a,b\n1,2\n"), "")
	assert.ErrorIs(t, err, ErrNoTimeColumn)

	_, err = ReadCSV(strings.NewReader("dt,x\n2023-12-06 08:00:00,1\n"), "")
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("dt,geometry\nyesterday,POINT (1 2)\n"), "")
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("dt,geometry\n2023-12-06 08:00:00,LINESTRING (1 2, 3 4)\n"), "")
	assert.Error(t, err)
}

func TestDurationEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Trajectory{}.Duration())
}
