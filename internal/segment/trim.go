package segment

import (
	"errors"
	"fmt"

	"transit-scorer/internal/network"
)

// DefaultTrimEps is the share of an end edge below which it is dropped.
const DefaultTrimEps = 0.1

// Trim removes degenerate boarding/alighting edges at the ends of a matched
// path. firstShare and lastShare are the fractions of the first and last edge
// actually covered by the trajectory, as reported by the matcher. An end edge
// covered less than eps is dropped; afterwards an exchange/inner_link edge
// left at either end is dropped too, since no ride precedes or follows it.
//
// The result shares the backing array of path.
func Trim(path []network.Edge, firstShare, lastShare, eps float64) []network.Edge {
	if len(path) == 0 {
		return nil
	}
	start, end := 0, len(path)-1
	if firstShare < eps {
		start++
	}
	if lastShare < eps {
		end--
	}
	if start > end {
		return nil
	}
	if path[start].IsSentinel() {
		start++
	}
	if start <= end && path[end].IsSentinel() {
		end--
	}
	if start > end {
		return nil
	}
	return path[start : end+1]
}

var ErrInvalidPath = errors.New("path is not contiguous")

// InvalidPathError marks the first place where consecutive edges do not share
// a node.
type InvalidPathError struct {
	Index int // index of the edge that does not start where the previous one ended
	From  network.NodeID
	To    network.NodeID
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("path breaks before edge %d: node %d does not continue to node %d", e.Index, e.From, e.To)
}

func (e *InvalidPathError) Unwrap() error { return ErrInvalidPath }

// Validate checks that each edge starts at the node where the previous one
// ended. Breaks next to an exchange or inner_link edge are allowed.
func Validate(path []network.Edge) error {
	for i := 1; i < len(path); i++ {
		prev, cur := path[i-1], path[i]
		if prev.Dst == cur.Src || prev.IsSentinel() || cur.IsSentinel() {
			continue
		}
		return &InvalidPathError{Index: i, From: prev.Dst, To: cur.Src}
	}
	return nil
}
