// Package temporal scores how plausible an observed trip duration is for a
// segmented candidate path.
package temporal

import (
	"errors"
	"fmt"
	"math"

	"transit-scorer/internal/network"
	"transit-scorer/internal/segment"
)

const (
	DefaultFactor = 5.0
	DefaultBias   = 120.0 // seconds
)

// Probability is an unnormalized bell kernel around avg with a hard floor:
//
//	0                                            if minDur > actual
//	exp(-(actual-avg)^2 / (factor*sigma^2))      otherwise, sigma = avg-minDur+bias
//
// It peaks at 1 when actual == avg, also for a zero sigma (bias 0 and
// avg == minDur). Any other zero-sigma input scores 0.
func Probability(actual, avg, minDur, factor, bias float64) float64 {
	if minDur > actual {
		return 0
	}
	d := actual - avg
	if d == 0 {
		return 1
	}
	sigma := avg - minDur + bias
	return math.Exp(-(d * d) / (factor * sigma * sigma))
}

// MissPolicy decides what happens when the first ride's way has no wait time.
type MissPolicy int

const (
	MissZero  MissPolicy = iota // use 0 and flag Bounds.WaitTimeMissing
	MissError                   // fail with *LookupMissError
)

func ParseMissPolicy(s string) (MissPolicy, error) {
	switch s {
	case "", "zero":
		return MissZero, nil
	case "error":
		return MissError, nil
	}
	return 0, fmt.Errorf("unknown wait time miss policy %q", s)
}

var ErrNoWaitTime = errors.New("no wait time for way")

type LookupMissError struct {
	Way network.WayID
}

func (e *LookupMissError) Error() string {
	return fmt.Sprintf("no wait time for way %d", e.Way)
}

func (e *LookupMissError) Unwrap() error { return ErrNoWaitTime }

// WaitLookup is satisfied by network.WaitTimes.
type WaitLookup interface {
	Lookup(way network.WayID) (float64, bool)
}

// Bounds are the duration figures of one scoring pass, in seconds.
type Bounds struct {
	Actual          float64       `json:"actual_duration"`
	Min             float64       `json:"min_duration"`
	Avg             float64       `json:"avg_duration"`
	Waiting         float64       `json:"waiting_time"`
	FirstWait       float64       `json:"first_wait"`
	FirstWay        network.WayID `json:"first_way_id"`
	WaitTimeMissing bool          `json:"wait_time_missing,omitempty"`
	// Inverted is set when Min > Avg, which points at bad edge data.
	Inverted bool `json:"inverted,omitempty"`
}

type Score struct {
	Bounds
	Probability float64 `json:"temporal_prob"`
}

type Scorer struct {
	Factor float64
	Bias   float64
	Miss   MissPolicy
}

func NewScorer() Scorer {
	return Scorer{Factor: DefaultFactor, Bias: DefaultBias, Miss: MissZero}
}

// Bounds derives min/avg durations from segmented rows:
//
//	waiting = Σ transfer duration − Σ transfer walking duration
//	min     = Σ ride duration − waiting
//	avg     = Σ ride duration + wait time of the first ride's way
func (s Scorer) Bounds(actual float64, rows []segment.Row, waits WaitLookup) (Bounds, error) {
	b := Bounds{Actual: actual}
	var total, transfer, walking float64
	first := -1
	for i, r := range rows {
		if r.IsRide() {
			total += r.Duration
			if first < 0 {
				first = i
			}
			continue
		}
		transfer += r.Duration
		if r.WalkingDuration != nil {
			walking += *r.WalkingDuration
		}
	}
	b.Waiting = transfer - walking
	b.Min = total - b.Waiting
	if first < 0 {
		return b, nil
	}

	b.FirstWay = rows[first].WayID
	if waits != nil {
		if w, ok := waits.Lookup(b.FirstWay); ok {
			b.FirstWait = w
		} else {
			b.WaitTimeMissing = true
		}
	} else {
		b.WaitTimeMissing = true
	}
	if b.WaitTimeMissing && s.Miss == MissError {
		return b, &LookupMissError{Way: b.FirstWay}
	}
	b.Avg = total + b.FirstWait
	b.Inverted = b.Min > b.Avg
	return b, nil
}

// Score computes the bounds and the temporal probability. A path without any
// ride scores 0.
func (s Scorer) Score(actual float64, rows []segment.Row, waits WaitLookup) (Score, error) {
	b, err := s.Bounds(actual, rows, waits)
	if err != nil {
		return Score{Bounds: b}, err
	}
	if len(segment.Rides(rows)) == 0 {
		return Score{Bounds: b}, nil
	}
	return Score{Bounds: b, Probability: Probability(actual, b.Avg, b.Min, s.Factor, s.Bias)}, nil
}
