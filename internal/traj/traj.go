package traj

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

type Point struct {
	Time time.Time `json:"t"`
	Lon  float64   `json:"lon"`
	Lat  float64   `json:"lat"`
}

func (p Point) Pos() orb.Point { return orb.Point{p.Lon, p.Lat} }

// Trajectory is a cleaned GPS trace. Points need not be sorted.
type Trajectory struct {
	ID     string
	Points []Point
}

// Duration is the span between the earliest and latest timestamp in seconds.
func (t Trajectory) Duration() float64 {
	if len(t.Points) == 0 {
		return 0
	}
	lo, hi := t.Points[0].Time, t.Points[0].Time
	for _, p := range t.Points[1:] {
		if p.Time.Before(lo) {
			lo = p.Time
		}
		if p.Time.After(hi) {
			hi = p.Time
		}
	}
	return hi.Sub(lo).Seconds()
}

func (t Trajectory) Positions() []orb.Point {
	out := make([]orb.Point, len(t.Points))
	for i, p := range t.Points {
		out[i] = p.Pos()
	}
	return out
}

var ErrNoTimeColumn = errors.New("csv has no time column (dt, time or timestamp)")

var timeColumns = []string{"dt", "time", "timestamp"}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02T15:04:05",
}

func ReadCSVFile(path, id string) (Trajectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return Trajectory{}, err
	}
	defer f.Close()
	return ReadCSV(f, id)
}

// ReadCSV reads a trajectory export: one row per fix with a time column and
// either a WKT "geometry" POINT column or lon/lat columns. A leading unnamed
// index column is ignored.
func ReadCSV(r io.Reader, id string) (Trajectory, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return Trajectory{}, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	tcol := -1
	for _, name := range timeColumns {
		if i, ok := col[name]; ok {
			tcol = i
			break
		}
	}
	if tcol < 0 {
		return Trajectory{}, ErrNoTimeColumn
	}
	gcol, hasGeom := col["geometry"]
	loncol, hasLon := col["lon"]
	latcol, hasLat := col["lat"]
	if !hasGeom && !(hasLon && hasLat) {
		return Trajectory{}, errors.New("csv has neither geometry nor lon/lat columns")
	}

	t := Trajectory{ID: id}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Trajectory{}, fmt.Errorf("line %d: %w", line, err)
		}
		var p Point
		if p.Time, err = parseTime(field(rec, tcol)); err != nil {
			return Trajectory{}, fmt.Errorf("line %d: %w", line, err)
		}
		if hasGeom {
			pt, err := wkt.UnmarshalPoint(field(rec, gcol))
			if err != nil {
				return Trajectory{}, fmt.Errorf("line %d: geometry: %w", line, err)
			}
			p.Lon, p.Lat = pt.Lon(), pt.Lat()
		} else {
			if p.Lon, err = strconv.ParseFloat(field(rec, loncol), 64); err != nil {
				return Trajectory{}, fmt.Errorf("line %d: lon: %w", line, err)
			}
			if p.Lat, err = strconv.ParseFloat(field(rec, latcol), 64); err != nil {
				return Trajectory{}, fmt.Errorf("line %d: lat: %w", line, err)
			}
		}
		t.Points = append(t.Points, p)
	}
	return t, nil
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return strings.TrimSpace(rec[i])
	}
	return ""
}

// parseTime accepts the layouts pandas writes and unix seconds.
func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	if sec, err := strconv.ParseFloat(s, 64); err == nil {
		whole := int64(sec)
		return time.Unix(whole, int64((sec-float64(whole))*1e9)).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable time %q", s)
}
