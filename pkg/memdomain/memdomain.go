package memdomain

import (
	"reflect"

	"github.com/oisee/ikos/pkg/ar"
	"github.com/oisee/ikos/pkg/lattice"
	"github.com/oisee/ikos/pkg/scalar"
)

// Domain is the memory abstract value: for every location, a set of
// cells plus the value held by each, a points-to set summarizing every
// pointer ever stored through that location, and a lifetime.
type Domain struct {
	bot      bool
	cells    map[ar.LocID][]Cell
	values   map[Cell]scalar.Value
	pointers map[ar.LocID]lattice.PointsToSet
	life     map[ar.LocID]Lifetime
	sizes    map[ar.LocID]lattice.Interval
}

func New() *Domain {
	return &Domain{
		cells:    map[ar.LocID][]Cell{},
		values:   map[Cell]scalar.Value{},
		pointers: map[ar.LocID]lattice.PointsToSet{},
		life:     map[ar.LocID]Lifetime{},
		sizes:    map[ar.LocID]lattice.Interval{},
	}
}

func Bottom() *Domain { return &Domain{bot: true} }

func (d *Domain) IsBottom() bool { return d.bot }

func (d *Domain) Clone() *Domain {
	if d.bot {
		return Bottom()
	}
	nd := New()
	for k, cs := range d.cells {
		nd.cells[k] = append([]Cell{}, cs...)
	}
	for k, v := range d.values {
		nd.values[k] = v
	}
	for k, v := range d.pointers {
		nd.pointers[k] = v
	}
	for k, v := range d.life {
		nd.life[k] = v
	}
	for k, v := range d.sizes {
		nd.sizes[k] = v
	}
	return nd
}

func (d *Domain) lifetimeOf(loc ar.LocID) Lifetime {
	if l, ok := d.life[loc]; ok {
		return l
	}
	return LifeUnknown
}

// Allocate marks loc as freshly allocated with the given allocated size
// (spec.md §4.J's `allocated_size(addr)`), clearing any stale cells. Pass
// lattice.Top() when the size is not statically known.
func (d *Domain) Allocate(loc ar.LocID, size lattice.Interval) *Domain {
	if d.bot {
		return d
	}
	nd := d.Clone()
	delete(nd.cells, loc)
	nd.life[loc] = LifeAllocated
	nd.sizes[loc] = size
	return nd
}

// AllocatedSize returns the tracked allocated size of loc, or ⊤ if no
// allocation of it has been observed.
func (d *Domain) AllocatedSize(loc ar.LocID) lattice.Interval {
	if s, ok := d.sizes[loc]; ok {
		return s
	}
	return lattice.Top()
}

// Deallocate marks loc as freed. Reads from it are caught by the checker
// layer per spec.md §4.E; the domain itself only refines lifetime.
func (d *Domain) Deallocate(loc ar.LocID) *Domain {
	if d.bot {
		return d
	}
	nd := d.Clone()
	nd.life[loc] = LifeDeallocated
	return nd
}

func (d *Domain) LifetimeOf(loc ar.LocID) Lifetime { return d.lifetimeOf(loc) }

func (d *Domain) dropOverlapping(loc ar.LocID, c Cell) {
	kept := d.cells[loc][:0]
	for _, old := range d.cells[loc] {
		if old.overlaps(c) {
			delete(d.values, old)
			continue
		}
		kept = append(kept, old)
	}
	d.cells[loc] = kept
}

func (d *Domain) addCell(loc ar.LocID, c Cell, v scalar.Value) {
	d.cells[loc] = append(d.cells[loc], c)
	d.values[c] = v
}

// realizeSingleWrite implements spec.md's single-offset write rule:
// retire every cell overlapping the new one (re-emitting uninitialized
// remnants is left to the checker layer, since this reference domain
// tracks whole cells rather than sub-byte bitmasks), then install the
// new cell. strongUpdate selects assignment (overwrite) vs weak join
// when the pointer resolves to more than one location.
func (d *Domain) realizeSingleWrite(loc ar.LocID, offset, size int64, v scalar.Value, strongUpdate bool) {
	c := Cell{Base: loc, Offset: offset, Size: size, Signed: false}
	if strongUpdate {
		d.dropOverlapping(loc, c)
		d.addCell(loc, c, v)
		return
	}
	// Weak update: join with any existing cell of the exact same shape,
	// otherwise the write merely widens what might be there without
	// erasing other possibilities.
	for _, old := range d.cells[loc] {
		if old.sameShape(c) {
			d.values[old] = d.values[old].Join(v)
			return
		}
	}
	d.addCell(loc, c, v.Join(scalar.Top()))
}

// MemWrite is the write contract of spec.md §4.E. p is p's resolved
// points-to set, offset is p's offset as an interval (already
// interval-congruence reduced by the caller), v is the value being
// stored, size is the byte width.
func (d *Domain) MemWrite(p lattice.PointsToSet, offset lattice.Interval, size int64, v scalar.Value) *Domain {
	if d.bot {
		return d
	}
	if p.IsTop() {
		return d.forgetAll()
	}
	if p.IsBottom() {
		return Bottom()
	}
	nd := d.Clone()
	singleton, isSingleton := offset.Singleton()
	strong := len(p.Locs) == 1
	for locL := range p.Locs {
		loc := ar.LocID(locL)
		if isSingleton {
			nd.realizeSingleWrite(loc, singleton, size, v, strong)
		} else {
			// Non-singleton offset: spec.md's realize-range-write keeps
			// only cells realized exactly once under the offset range;
			// this reference implementation conservatively drops every
			// overlapping cell at this location instead, which is sound
			// (never claims more precision than it can check) though
			// less precise than per-cell exact-realization tracking.
			nd.cells[loc] = nil
			for c := range nd.values {
				if c.Base == loc {
					delete(nd.values, c)
				}
			}
		}
		if !v.Points.IsBottom() {
			nd.pointers[loc] = nd.pointers[loc].Join(v.Points)
		}
	}
	return nd
}

// MemRead is the read contract of spec.md §4.E.
func (d *Domain) MemRead(p lattice.PointsToSet, offset lattice.Interval, size int64) scalar.Value {
	if d.bot {
		return scalar.Bottom()
	}
	if p.IsTop() {
		return scalar.Top()
	}
	if p.IsBottom() {
		return scalar.Bottom()
	}
	singleton, isSingleton := offset.Singleton()
	if !isSingleton {
		return scalar.Top()
	}
	result := scalar.Bottom()
	any := false
	for locL := range p.Locs {
		loc := ar.LocID(locL)
		want := Cell{Base: loc, Offset: singleton, Size: size}
		found := false
		for _, c := range d.cells[loc] {
			if c.sameShape(want) {
				v := d.values[c]
				if pts, ok := d.pointers[loc]; ok {
					v.Points = v.Points.Meet(pts)
				}
				if !any {
					result = v
				} else {
					result = result.Join(v)
				}
				any = true
				found = true
				break
			}
		}
		if !found {
			// Bit-coverage inference omitted in this reference domain;
			// an uncovered read at a known location is conservatively
			// top rather than bottom.
			v := scalar.Top()
			if !any {
				result = v
			} else {
				result = result.Join(v)
			}
			any = true
		}
	}
	if !any {
		return scalar.Bottom()
	}
	return result
}

// Memcpy implements spec.md's memcpy contract for the singleton-address,
// singleton-offset, positive-lower-bound-size case; anything looser
// conservatively forgets the destination's overlapping cells.
func (d *Domain) Memcpy(dstP, srcP lattice.PointsToSet, dstOff, srcOff, size lattice.Interval) *Domain {
	if d.bot {
		return d
	}
	nd := d.Clone()
	dstLocL, dstOk := dstP.Singleton()
	srcLocL, srcOk := srcP.Singleton()
	dstLoc, srcLoc := ar.LocID(dstLocL), ar.LocID(srcLocL)
	dOff, dOffOk := dstOff.Singleton()
	sOff, sOffOk := srcOff.Singleton()
	lb := size.Lo
	if !dstOk || !srcOk || !dOffOk || !sOffOk || lb <= 0 {
		if dstOk {
			nd.cells[dstLoc] = nil
			for c := range nd.values {
				if c.Base == dstLoc {
					delete(nd.values, c)
				}
			}
		} else {
			return nd.forgetAll()
		}
		return nd
	}
	for _, c := range d.cells[srcLoc] {
		if c.Offset >= sOff && c.Offset+c.Size-1 <= sOff+lb-1 {
			nc := Cell{Base: dstLoc, Offset: dOff + (c.Offset - sOff), Size: c.Size, Signed: c.Signed}
			nd.dropOverlapping(dstLoc, nc)
			nd.addCell(dstLoc, nc, d.values[c])
		}
	}
	if sp, ok := d.pointers[srcLoc]; ok {
		nd.pointers[dstLoc] = nd.pointers[dstLoc].Join(sp)
	}
	return nd
}

// Memset implements spec.md's memset contract. isZero indicates v
// abstracts exactly zero; certainLo/certainHi bound the
// certainly-written interval, possibleLo/possibleHi the
// possibly-written interval.
func (d *Domain) Memset(dstP lattice.PointsToSet, isZero bool, certainLo, certainHi, possibleLo, possibleHi int64) *Domain {
	if d.bot {
		return d
	}
	if dstP.IsTop() {
		return d.forgetAll()
	}
	nd := d.Clone()
	for locL := range dstP.Locs {
		loc := ar.LocID(locL)
		kept := nd.cells[loc][:0]
		for _, c := range nd.cells[loc] {
			switch {
			case isZero && c.containedIn(certainLo, certainHi):
				nd.values[c] = scalar.ExactInt(0)
				kept = append(kept, c)
			case c.Offset+c.Size-1 < possibleLo || c.Offset > possibleHi:
				kept = append(kept, c)
			default:
				delete(nd.values, c)
			}
		}
		nd.cells[loc] = kept
	}
	return nd
}

func (d *Domain) forgetAll() *Domain {
	nd := New()
	for k, v := range d.life {
		nd.life[k] = v
	}
	for k, v := range d.sizes {
		nd.sizes[k] = v
	}
	return nd
}

func (d *Domain) Join(o *Domain) *Domain {
	if d.bot {
		return o.Clone()
	}
	if o.bot {
		return d.Clone()
	}
	nd := New()
	for loc, cs := range d.cells {
		for _, c := range cs {
			if hasCell(o.cells[loc], c) {
				nd.addCell(loc, c, d.values[c].Join(o.values[c]))
			}
		}
	}
	for loc := range unionLocKeys(d.pointers, o.pointers) {
		nd.pointers[loc] = d.pointers[loc].Join(o.pointers[loc])
	}
	for loc := range unionLocKeys(d.life, o.life) {
		nd.life[loc] = d.lifetimeOf(loc).Join(o.lifetimeOf(loc))
	}
	for loc := range unionLocKeys(d.sizes, o.sizes) {
		nd.sizes[loc] = d.AllocatedSize(loc).Join(o.AllocatedSize(loc))
	}
	return nd
}

func (d *Domain) Meet(o *Domain) *Domain {
	if d.bot || o.bot {
		return Bottom()
	}
	nd := d.Clone()
	for loc, cs := range o.cells {
		for _, c := range cs {
			if v, ok := d.values[c]; ok {
				nd.values[c] = v.Meet(o.values[c])
			} else {
				nd.addCell(loc, c, o.values[c])
			}
		}
	}
	for loc := range unionLocKeys(d.life, o.life) {
		nd.life[loc] = d.lifetimeOf(loc).Meet(o.lifetimeOf(loc))
	}
	for loc := range unionLocKeys(d.sizes, o.sizes) {
		nd.sizes[loc] = d.AllocatedSize(loc).Meet(o.AllocatedSize(loc))
	}
	return nd
}

// Widen drops any cell not present in both operands (the memory-domain
// analogue of interval widening: an unstable cell set is abandoned
// rather than chased indefinitely) and widens the points-to sets, which
// are finite-height and so need no extrapolation beyond join.
func (d *Domain) Widen(o *Domain) *Domain {
	if d.bot {
		return o.Clone()
	}
	if o.bot {
		return d.Clone()
	}
	nd := New()
	for loc, cs := range d.cells {
		for _, c := range cs {
			if hasCell(o.cells[loc], c) {
				nd.addCell(loc, c, d.values[c].Widen(o.values[c]))
			}
		}
	}
	for loc := range unionLocKeys(d.pointers, o.pointers) {
		nd.pointers[loc] = d.pointers[loc].Join(o.pointers[loc])
	}
	for loc := range unionLocKeys(d.life, o.life) {
		nd.life[loc] = d.lifetimeOf(loc).Join(o.lifetimeOf(loc))
	}
	for loc := range unionLocKeys(d.sizes, o.sizes) {
		nd.sizes[loc] = d.AllocatedSize(loc).Widen(o.AllocatedSize(loc))
	}
	return nd
}

func (d *Domain) Narrow(o *Domain) *Domain {
	if d.bot || o.bot {
		return Bottom()
	}
	return d.Meet(o)
}

// Leq reports whether d is at least as precise as o (d ⊑ o), tested as
// d ⊔ o == o since the domain has no cheaper structural comparison.
func (d *Domain) Leq(o *Domain) bool {
	if d.bot {
		return true
	}
	if o.bot {
		return false
	}
	return reflect.DeepEqual(d.Join(o), o)
}

func hasCell(cs []Cell, c Cell) bool {
	for _, x := range cs {
		if x == c {
			return true
		}
	}
	return false
}

func unionLocKeys[T any](a, b map[ar.LocID]T) map[ar.LocID]struct{} {
	r := make(map[ar.LocID]struct{}, len(a)+len(b))
	for k := range a {
		r[k] = struct{}{}
	}
	for k := range b {
		r[k] = struct{}{}
	}
	return r
}
