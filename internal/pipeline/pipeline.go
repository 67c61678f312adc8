// Package pipeline runs one scoring pass for a matched trajectory.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"transit-scorer/internal/geom"
	"transit-scorer/internal/network"
	"transit-scorer/internal/segment"
	"transit-scorer/internal/temporal"
	"transit-scorer/internal/traj"
)

const (
	ProbTemporal     = "temporal_prob"
	ProbCellDistance = "cell_dis_prob"

	DefaultSpatialThreshold = 300.0 // meters
)

// ErrMatchFailed is returned for a match with a non-zero status. Such
// matches are never scored.
var ErrMatchFailed = errors.New("map matching failed")

// Match is the map-matching engine's output for one trajectory.
type Match struct {
	ID     string             `json:"id"`
	Status int                `json:"status"`
	EPath  []network.EdgeID   `json:"epath"`
	Step0  float64            `json:"step_0"` // share of the first edge covered
	StepN  float64            `json:"step_n"` // share of the last edge covered
	Probs  map[string]float64 `json:"probs"`
}

type Result struct {
	ID        string             `json:"id"`
	Status    int                `json:"status"`
	Path      []segment.Row      `json:"path"`
	Temporal  temporal.Score     `json:"temporal"`
	Probs     map[string]float64 `json:"probs"`
	Distances geom.Summary       `json:"distances"`
}

// Network is an immutable snapshot of the edge table and the wait times
// derived from it. It is shared by concurrent passes.
type Network struct {
	Edges *network.Table
	Waits network.WaitTimes
}

func NewNetwork(edges []network.Edge) *Network {
	tbl := network.NewTable(edges)
	return &Network{Edges: tbl, Waits: network.NewWaitTimes(tbl.Edges())}
}

type Options struct {
	TrimEps          float64
	SpatialThreshold float64
	// StrictContiguity rejects trimmed paths whose edges do not connect.
	StrictContiguity bool
	// MultiLine makes every ride geometry a MultiLineString.
	MultiLine bool
	Scorer    temporal.Scorer
}

func DefaultOptions() Options {
	return Options{
		TrimEps:          segment.DefaultTrimEps,
		SpatialThreshold: DefaultSpatialThreshold,
		StrictContiguity: true,
		Scorer:           temporal.NewScorer(),
	}
}

type Pipeline struct {
	opts Options
}

func New(opts Options) *Pipeline {
	return &Pipeline{opts: opts}
}

// Run scores one trajectory against its matched path. The returned Result is
// filled as far as the pass got, also when an error is returned.
func (p *Pipeline) Run(net *Network, m Match, tr traj.Trajectory) (Result, error) {
	res := Result{ID: m.ID, Status: m.Status, Probs: make(map[string]float64, len(m.Probs)+2)}
	for k, v := range m.Probs {
		res.Probs[k] = v
	}
	if m.Status != 0 {
		return res, fmt.Errorf("%w: status %d", ErrMatchFailed, m.Status)
	}

	edges, err := net.Edges.Path(m.EPath)
	if err != nil {
		return res, fmt.Errorf("resolve path: %w", err)
	}

	// spatial deviation is measured against the whole matched route
	lines := make([]orb.LineString, len(edges))
	for i, e := range edges {
		lines[i] = e.Geometry
	}
	route := geom.MergeLines(lines, false)
	dists := geom.Distances(route, tr.Positions())
	res.Probs[ProbCellDistance] = geom.ShareWithin(dists, p.opts.SpatialThreshold)
	res.Distances = geom.Summarize(dists)

	trimmed := segment.Trim(edges, m.Step0, m.StepN, p.opts.TrimEps)
	if p.opts.StrictContiguity {
		if err := segment.Validate(trimmed); err != nil {
			return res, err
		}
	}
	res.Path = segment.Segment(trimmed, p.opts.MultiLine)

	score, err := p.opts.Scorer.Score(tr.Duration(), res.Path, net.Waits)
	res.Temporal = score
	if err != nil {
		return res, err
	}
	res.Probs[ProbTemporal] = score.Probability
	return res, nil
}
