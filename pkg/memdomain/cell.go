// Package memdomain implements the cell-based field-sensitive memory
// domain of spec.md §4.E: a scalar composite over synthetic cell
// variables, one set of Cells per memory location, a pointer set per
// location, and a lifetime domain. Grounded on the teacher's cpu.State
// `M` field (a single virtual memory byte read/written by the `(HL)`,
// `(BC)`, `(DE)`-indexed opcode cases in exec.go) generalized from one
// byte to many field-sensitive, possibly-overlapping cells per location.
package memdomain

import "github.com/oisee/ikos/pkg/ar"

// Cell identifies a field-sensitive slice of a memory location: base
// location, byte offset, byte size, and whether it's read/written as
// signed.
type Cell struct {
	Base   ar.LocID
	Offset int64
	Size   int64
	Signed bool
}

// overlaps reports whether c and d share any byte.
func (c Cell) overlaps(d Cell) bool {
	if c.Base != d.Base {
		return false
	}
	return c.Offset < d.Offset+d.Size && d.Offset < c.Offset+c.Size
}

// sameShape reports whether c and d denote the exact same byte range
// (ignoring sign), the condition under which a write can reuse c's
// variable rather than retiring it.
func (c Cell) sameShape(d Cell) bool {
	return c.Base == d.Base && c.Offset == d.Offset && c.Size == d.Size
}

func (c Cell) containedIn(lo, hi int64) bool {
	return c.Base != 0 && c.Offset >= lo && c.Offset+c.Size-1 <= hi
}

// Lifetime tracks whether a location is known-allocated,
// known-deallocated, unknown, or infeasible.
type Lifetime uint8

const (
	LifeBottom Lifetime = iota
	LifeAllocated
	LifeDeallocated
	LifeUnknown
)

func (l Lifetime) Join(m Lifetime) Lifetime {
	if l == LifeBottom {
		return m
	}
	if m == LifeBottom {
		return l
	}
	if l == m {
		return l
	}
	return LifeUnknown
}

func (l Lifetime) Meet(m Lifetime) Lifetime {
	if l == LifeUnknown {
		return m
	}
	if m == LifeUnknown {
		return l
	}
	if l == m {
		return l
	}
	return LifeBottom
}
