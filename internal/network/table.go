package network

import (
	"fmt"
	"sort"
)

// Table is a read-only edge lookup. It is safe for concurrent use once built.
type Table struct {
	edges map[EdgeID]Edge
}

func NewTable(edges []Edge) *Table {
	m := make(map[EdgeID]Edge, len(edges))
	for _, e := range edges {
		m[e.ID] = e
	}
	return &Table{edges: m}
}

func (t *Table) Len() int { return len(t.edges) }

func (t *Table) Edge(id EdgeID) (Edge, bool) {
	e, ok := t.edges[id]
	return e, ok
}

// UnknownEdgeError reports an edge id absent from the table.
type UnknownEdgeError struct {
	ID    EdgeID
	Index int
}

func (e *UnknownEdgeError) Error() string {
	return fmt.Sprintf("unknown edge %d at path index %d", e.ID, e.Index)
}

// Path resolves an ordered id sequence into edges.
func (t *Table) Path(ids []EdgeID) ([]Edge, error) {
	out := make([]Edge, 0, len(ids))
	for i, id := range ids {
		e, ok := t.edges[id]
		if !ok {
			return nil, &UnknownEdgeError{ID: id, Index: i}
		}
		out = append(out, e)
	}
	return out, nil
}

// Edges returns all edges ordered by id.
func (t *Table) Edges() []Edge {
	out := make([]Edge, 0, len(t.edges))
	for _, e := range t.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// WaitTimes maps a way to its representative first-station wait, taken from
// the way's inner_link edges.
type WaitTimes map[WayID]float64

// NewWaitTimes builds the table from inner_link edges in the given order; a
// later edge of the same way overwrites an earlier one.
func NewWaitTimes(edges []Edge) WaitTimes {
	w := make(WaitTimes)
	for _, e := range edges {
		if e.DstName != DstInnerLink {
			continue
		}
		w[e.WayID] = e.Duration
	}
	return w
}

func (w WaitTimes) Lookup(way WayID) (float64, bool) {
	d, ok := w[way]
	return d, ok
}
