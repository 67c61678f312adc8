package temporal

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transit-scorer/internal/network"
	"transit-scorer/internal/segment"
)

func f(v float64) *float64 { return &v }

// rows of: way 1 ride (20s), exchange (5s, all walking), way 2 ride (20s)
func scenarioRows() []segment.Row {
	return []segment.Row{
		{Kind: segment.KindRide, WayID: 1, EdgeIDs: []network.EdgeID{1, 2}, Duration: 20},
		{Kind: segment.KindExchange, WayID: 1, EdgeIDs: []network.EdgeID{3}, Duration: 5, WalkingDuration: f(5)},
		{Kind: segment.KindRide, WayID: 2, EdgeIDs: []network.EdgeID{4}, Duration: 20},
	}
}

func TestProbabilityFloor(t *testing.T) {
	for _, actual := range []float64{0, 10, 39.999} {
		assert.Equal(t, 0.0, Probability(actual, 48, 40, DefaultFactor, DefaultBias))
	}
}

func TestProbabilityPeak(t *testing.T) {
	assert.Equal(t, 1.0, Probability(48, 48, 40, DefaultFactor, DefaultBias))
}

func TestProbabilityAtMin(t *testing.T) {
	p := Probability(40, 48, 40, DefaultFactor, DefaultBias)
	assert.Greater(t, p, 0.0)
	assert.Less(t, p, 1.0)

	// avg == min: the floor and the peak coincide
	assert.Equal(t, 1.0, Probability(40, 40, 40, DefaultFactor, DefaultBias))
}

func TestProbabilityDecreasesAwayFromAvg(t *testing.T) {
	avg, lo := 600.0, 500.0
	prev := Probability(avg, avg, lo, DefaultFactor, DefaultBias)
	for d := 10.0; d <= 1000; d += 10 {
		p := Probability(avg+d, avg, lo, DefaultFactor, DefaultBias)
		assert.Less(t, p, prev, "above avg, offset %v", d)
		prev = p
	}
	prev = Probability(avg, avg, lo, DefaultFactor, DefaultBias)
	for d := 10.0; d <= 100; d += 10 {
		p := Probability(avg-d, avg, lo, DefaultFactor, DefaultBias)
		assert.Less(t, p, prev, "below avg, offset %v", d)
		prev = p
	}
}

func TestProbabilityExactForm(t *testing.T) {
	got := Probability(45, 48, 40, 5, 120)
	want := math.Exp(-9.0 / (5 * 128 * 128))
	assert.Equal(t, want, got)
	assert.InDelta(t, 0.9999, got, 1e-4)
}

func TestProbabilityZeroSigma(t *testing.T) {
	// avg sits bias below min: degenerate kernel
	assert.Equal(t, 0.0, Probability(100, 100, 220, 5, 120))
	assert.Equal(t, 0.0, Probability(300, 100, 220, 5, 120))
	assert.False(t, math.IsNaN(Probability(220, 100, 220, 5, 120)))
}

func TestProbabilityZeroBiasPeak(t *testing.T) {
	// bias 0 with actual == avg == min leaves no width at all
	assert.Equal(t, 1.0, Probability(60, 60, 60, 5, 0))
	assert.Equal(t, 0.0, Probability(61, 60, 60, 5, 0))
	for _, actual := range []float64{60, 61, 90} {
		assert.False(t, math.IsNaN(Probability(actual, 60, 60, 5, 0)), "actual %v", actual)
	}
}

func TestScoreScenario(t *testing.T) {
	waits := network.WaitTimes{1: 8}
	s, err := NewScorer().Score(45, scenarioRows(), waits)
	require.NoError(t, err)

	assert.Equal(t, 0.0, s.Waiting)
	assert.Equal(t, 40.0, s.Min)
	assert.Equal(t, 48.0, s.Avg)
	assert.Equal(t, 45.0, s.Actual)
	assert.Equal(t, 8.0, s.FirstWait)
	assert.Equal(t, network.WayID(1), s.FirstWay)
	assert.False(t, s.WaitTimeMissing)
	assert.False(t, s.Inverted)
	assert.Equal(t, math.Exp(-9.0/(5*128*128)), s.Probability)
}

func TestScoreWaitingFromTransfers(t *testing.T) {
	rows := scenarioRows()
	rows[1].WalkingDuration = f(2)
	rows = append(rows, segment.Row{Kind: segment.KindInnerLink, Duration: 30, WalkingDuration: f(0)})

	b, err := NewScorer().Bounds(100, rows, network.WaitTimes{1: 8})
	require.NoError(t, err)
	assert.Equal(t, 33.0, b.Waiting) // (5+30) - (2+0)
	assert.Equal(t, 7.0, b.Min)
	assert.Equal(t, 48.0, b.Avg)
}

func TestScoreLookupMiss(t *testing.T) {
	s, err := NewScorer().Score(45, scenarioRows(), network.WaitTimes{})
	require.NoError(t, err)
	assert.True(t, s.WaitTimeMissing)
	assert.Equal(t, 0.0, s.FirstWait)
	assert.Equal(t, 40.0, s.Avg)

	strict := NewScorer()
	strict.Miss = MissError
	_, err = strict.Score(45, scenarioRows(), network.WaitTimes{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoWaitTime))
	var le *LookupMissError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, network.WayID(1), le.Way)

	_, err = strict.Score(45, scenarioRows(), nil)
	assert.Error(t, err)
}

func TestScoreImpossibleDuration(t *testing.T) {
	s, err := NewScorer().Score(30, scenarioRows(), network.WaitTimes{1: 8})
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.Probability)
}

func TestScoreInvertedBounds(t *testing.T) {
	rows := scenarioRows()
	rows[1].WalkingDuration = f(500) // walking larger than the transfer itself
	s, err := NewScorer().Score(600, rows, network.WaitTimes{1: 8})
	require.NoError(t, err)
	assert.True(t, s.Inverted)
	assert.Greater(t, s.Min, s.Avg)
}

func TestScoreNoRides(t *testing.T) {
	s, err := NewScorer().Score(100, nil, network.WaitTimes{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.Probability)

	onlyTransfer := []segment.Row{{Kind: segment.KindExchange, Duration: 5, WalkingDuration: f(5)}}
	s, err = NewScorer().Score(100, onlyTransfer, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.Probability)
	assert.False(t, s.WaitTimeMissing)
}

func TestParseMissPolicy(t *testing.T) {
	p, err := ParseMissPolicy("")
	require.NoError(t, err)
	assert.Equal(t, MissZero, p)
	p, err = ParseMissPolicy("error")
	require.NoError(t, err)
	assert.Equal(t, MissError, p)
	_, err = ParseMissPolicy("guess")
	assert.Error(t, err)
}
