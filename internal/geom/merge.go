package geom

import "github.com/paulmach/orb"

// MergeLines joins lines that meet end to end into as few connected lines as
// possible. Two lines are joined only at a point where exactly two line ends
// meet; a line is reversed when needed to continue a chain. Lines with fewer
// than two points count as empty and are dropped.
//
// No non-empty input gives an empty LineString. One chain gives a LineString,
// several give a MultiLineString. With multi set, a single chain is wrapped in
// a one-part MultiLineString so callers get a uniform type.
func MergeLines(lines []orb.LineString, multi bool) orb.Geometry {
	valid := make([]orb.LineString, 0, len(lines))
	for _, ls := range lines {
		if len(ls) >= 2 {
			valid = append(valid, ls)
		}
	}
	if len(valid) == 0 {
		return orb.LineString{}
	}

	touch := make(map[orb.Point][]int)
	for i, ls := range valid {
		touch[ls[0]] = append(touch[ls[0]], i)
		touch[ls[len(ls)-1]] = append(touch[ls[len(ls)-1]], i)
	}
	used := make([]bool, len(valid))

	// continuation returns the unused line continuing through p, oriented so
	// that it starts at p.
	continuation := func(p orb.Point) (orb.LineString, bool) {
		ids := touch[p]
		if len(ids) != 2 {
			return nil, false
		}
		for _, j := range ids {
			if used[j] {
				continue
			}
			used[j] = true
			ls := valid[j]
			if ls[0] == p {
				return ls, true
			}
			return reversed(ls), true
		}
		return nil, false
	}

	var chains []orb.LineString
	for i := range valid {
		if used[i] {
			continue
		}
		used[i] = true
		chain := append(orb.LineString(nil), valid[i]...)
		for {
			next, ok := continuation(chain[len(chain)-1])
			if !ok {
				break
			}
			chain = append(chain, next[1:]...)
		}
		for {
			prev, ok := continuation(chain[0])
			if !ok {
				break
			}
			// prev starts at chain[0]; walk it backwards in front of the chain
			head := reversed(prev)
			chain = append(head[:len(head)-1:len(head)-1], chain...)
		}
		chains = append(chains, chain)
	}

	if len(chains) == 1 && !multi {
		return chains[0]
	}
	return orb.MultiLineString(chains)
}

func reversed(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[len(ls)-1-i] = p
	}
	return out
}

// IsEmpty reports whether g holds no drawable line.
func IsEmpty(g orb.Geometry) bool {
	switch v := g.(type) {
	case nil:
		return true
	case orb.LineString:
		return len(v) < 2
	case orb.MultiLineString:
		for _, ls := range v {
			if len(ls) >= 2 {
				return false
			}
		}
		return true
	default:
		return false
	}
}
