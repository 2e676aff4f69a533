package pastry

import (
	"sort"

	"go.hopcount.dev/overbench/spec/ident"
)

// leafSet tracks the numerically closest live neighbors of a node, half
// below and half above on the ring.
type leafSet struct {
	self  uint64
	half  int
	lower []uint64 // nearest first, counter-clockwise from self
	upper []uint64 // nearest first, clockwise from self
}

func newLeafSet(self uint64, entries int) *leafSet {
	return &leafSet{
		self: self,
		half: entries / 2,
	}
}

// rebuild repopulates both halves from candidates, keeping the half nearest
// ids on each side. Candidates may contain self, duplicates, or ids from
// either side.
func (l *leafSet) rebuild(candidates []uint64) {
	seen := make(map[uint64]bool, len(candidates))
	unique := candidates[:0:0]
	for _, id := range candidates {
		if id == l.self || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}

	lower := append([]uint64(nil), unique...)
	sort.Slice(lower, func(i, j int) bool {
		return ident.RingDistance(lower[i], l.self) < ident.RingDistance(lower[j], l.self)
	})
	upper := append([]uint64(nil), unique...)
	sort.Slice(upper, func(i, j int) bool {
		return ident.RingDistance(l.self, upper[i]) < ident.RingDistance(l.self, upper[j])
	})

	if len(lower) > l.half {
		lower = lower[:l.half]
	}
	if len(upper) > l.half {
		upper = upper[:l.half]
	}
	l.lower = lower
	l.upper = upper
}

func (l *leafSet) members() []uint64 {
	out := make([]uint64, 0, len(l.lower)+len(l.upper))
	out = append(out, l.lower...)
	out = append(out, l.upper...)
	return out
}

func (l *leafSet) empty() bool {
	return len(l.lower) == 0 && len(l.upper) == 0
}

// covers reports whether key falls inside the arc spanned by the leaf set
// (between the furthest lower and the furthest upper leaf, through self).
func (l *leafSet) covers(key uint64) bool {
	if l.empty() {
		return true
	}
	min, max := l.self, l.self
	if len(l.lower) > 0 {
		min = l.lower[len(l.lower)-1]
	}
	if len(l.upper) > 0 {
		max = l.upper[len(l.upper)-1]
	}
	return ident.RingDistance(min, key) <= ident.RingDistance(min, max)
}

// closest returns the leaf (or self) numerically nearest to key, ties going
// to the lower id.
func (l *leafSet) closest(key uint64) uint64 {
	best := l.self
	bestDist := ident.NumericDistance(l.self, key)
	for _, id := range l.members() {
		d := ident.NumericDistance(id, key)
		if d < bestDist || (d == bestDist && id < best) {
			best = id
			bestDist = d
		}
	}
	return best
}
