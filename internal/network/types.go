package network

import "github.com/paulmach/orb"

type (
	EdgeID int64
	NodeID int64
	WayID  int64
)

// Reserved destination names. Edges carrying them are not rides.
const (
	DstExchange  = "exchange"   // transfer between lines at the same station
	DstInnerLink = "inner_link" // platform connector / first-station wait
)

// Edge is one directed arc of the transit network.
type Edge struct {
	ID              EdgeID
	Src             NodeID
	Dst             NodeID
	SrcName         string
	DstName         string
	WayID           WayID
	Duration        float64 // seconds
	WalkingDuration float64 // seconds, nonzero only for walking parts of transfers
	Dist            float64 // meters
	Speed           float64
	Geometry        orb.LineString // may be empty
}

// IsSentinel reports whether the edge is an exchange or inner_link edge.
func (e Edge) IsSentinel() bool { return IsSentinelName(e.DstName) }

func IsSentinelName(name string) bool {
	return name == DstExchange || name == DstInnerLink
}
