package pastry

import (
	"go.hopcount.dev/overbench/spec/ident"
)

// routingTable is the prefix-routing state: rows indexed by shared prefix
// length, columns by the next digit. Cleared slots hold 0, but presence is
// tracked separately because 0 is also a valid identifier.
type routingTable struct {
	self  uint64
	slots [ident.Digits][ident.Radix]uint64
	set   [ident.Digits][ident.Radix]bool
}

func newRoutingTable(self uint64) *routingTable {
	return &routingTable{self: self}
}

// slot computes the (row, col) position id occupies in this table, or
// ok=false for the node's own id.
func (t *routingTable) slot(id uint64) (row, col int, ok bool) {
	row = ident.SharedPrefixLen(t.self, id)
	if row >= ident.Digits {
		return 0, 0, false
	}
	col, err := ident.Digit(id, row)
	if err != nil {
		return 0, 0, false
	}
	return row, col, true
}

func (t *routingTable) entry(row, col int) (uint64, bool) {
	if row < 0 || row >= ident.Digits || col < 0 || col >= ident.Radix {
		return 0, false
	}
	return t.slots[row][col], t.set[row][col]
}

func (t *routingTable) store(row, col int, id uint64) {
	t.slots[row][col] = id
	t.set[row][col] = true
}

func (t *routingTable) clear(row, col int) {
	t.slots[row][col] = 0
	t.set[row][col] = false
}

// consider offers id for its slot. An empty slot always takes it; an
// occupied slot switches only when id is numerically closer to the owner.
func (t *routingTable) consider(id uint64) {
	row, col, ok := t.slot(id)
	if !ok {
		return
	}
	current, occupied := t.entry(row, col)
	if occupied && current != id &&
		ident.NumericDistance(t.self, current) <= ident.NumericDistance(t.self, id) {
		return
	}
	t.store(row, col, id)
}

// remove drops id from whatever slot holds it.
func (t *routingTable) remove(id uint64) {
	row, col, ok := t.slot(id)
	if !ok {
		return
	}
	if current, occupied := t.entry(row, col); occupied && current == id {
		t.clear(row, col)
	}
}

// members lists every occupied slot.
func (t *routingTable) members() []uint64 {
	var out []uint64
	for row := 0; row < ident.Digits; row++ {
		for col := 0; col < ident.Radix; col++ {
			if t.set[row][col] {
				out = append(out, t.slots[row][col])
			}
		}
	}
	return out
}

// row copies one row's occupied entries.
func (t *routingTable) row(row int) []uint64 {
	var out []uint64
	if row < 0 || row >= ident.Digits {
		return out
	}
	for col := 0; col < ident.Radix; col++ {
		if t.set[row][col] {
			out = append(out, t.slots[row][col])
		}
	}
	return out
}
