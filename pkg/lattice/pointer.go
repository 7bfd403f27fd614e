package lattice

// LocID is a stable index into the memory-location factory. Ownership
// lives with pkg/ar's factory; this package only needs a comparable key to
// build sets of locations.
type LocID int

// PointsToSet is a finite set of memory locations a pointer may name, or
// the unconstrained ⊤ ("may point anywhere").
type PointsToSet struct {
	Top  bool
	Locs map[LocID]struct{} // nil/empty means ⊥ (the empty points-to set)
}

func PTSTop() PointsToSet { return PointsToSet{Top: true} }
func PTSBottom() PointsToSet { return PointsToSet{} }
func PTSSingle(l LocID) PointsToSet {
	return PointsToSet{Locs: map[LocID]struct{}{l: {}}}
}
func PTSOf(locs ...LocID) PointsToSet {
	s := PointsToSet{Locs: make(map[LocID]struct{}, len(locs))}
	for _, l := range locs {
		s.Locs[l] = struct{}{}
	}
	return s
}

func (p PointsToSet) IsBottom() bool { return !p.Top && len(p.Locs) == 0 }
func (p PointsToSet) IsTop() bool    { return p.Top }

// Singleton returns the one location in p and true, if p names exactly
// one location.
func (p PointsToSet) Singleton() (LocID, bool) {
	if p.Top || len(p.Locs) != 1 {
		return 0, false
	}
	for l := range p.Locs {
		return l, true
	}
	return 0, false
}

func (p PointsToSet) Contains(l LocID) bool {
	if p.Top {
		return true
	}
	_, ok := p.Locs[l]
	return ok
}

func (p PointsToSet) Leq(q PointsToSet) bool {
	if p.IsBottom() {
		return true
	}
	if q.Top {
		return true
	}
	if p.Top {
		return false
	}
	for l := range p.Locs {
		if _, ok := q.Locs[l]; !ok {
			return false
		}
	}
	return true
}

func (p PointsToSet) Join(q PointsToSet) PointsToSet {
	if p.Top || q.Top {
		return PTSTop()
	}
	r := PointsToSet{Locs: make(map[LocID]struct{}, len(p.Locs)+len(q.Locs))}
	for l := range p.Locs {
		r.Locs[l] = struct{}{}
	}
	for l := range q.Locs {
		r.Locs[l] = struct{}{}
	}
	return r
}

func (p PointsToSet) Meet(q PointsToSet) PointsToSet {
	if p.Top {
		return q
	}
	if q.Top {
		return p
	}
	r := PointsToSet{Locs: make(map[LocID]struct{})}
	for l := range p.Locs {
		if _, ok := q.Locs[l]; ok {
			r.Locs[l] = struct{}{}
		}
	}
	return r
}

// Widen on points-to sets is Join: the set of locations a pointer may name
// is finite (bounded by the memory-location factory), so repeated joins
// already stabilize without a separate extrapolation step.
func (p PointsToSet) Widen(q PointsToSet) PointsToSet { return p.Join(q) }

// Nullity tracks whether a pointer-typed value is definitely null,
// definitely non-null, both (⊤, unknown), or neither (⊥, unreachable).
type Nullity uint8

const (
	NullBottom Nullity = iota
	Null
	NonNull
	NullTop
)

func (n Nullity) Join(m Nullity) Nullity {
	if n == NullBottom {
		return m
	}
	if m == NullBottom {
		return n
	}
	if n == m {
		return n
	}
	return NullTop
}

func (n Nullity) Meet(m Nullity) Nullity {
	if n == NullTop {
		return m
	}
	if m == NullTop {
		return n
	}
	if n == m {
		return n
	}
	return NullBottom
}

func (n Nullity) Leq(m Nullity) bool {
	return n == NullBottom || m == NullTop || n == m
}

// Uninitialized tracks whether a scalar has a defined value.
type Uninitialized uint8

const (
	UninitBottom Uninitialized = iota
	Init
	Uninit
	UninitTop
)

func (u Uninitialized) Join(v Uninitialized) Uninitialized {
	if u == UninitBottom {
		return v
	}
	if v == UninitBottom {
		return u
	}
	if u == v {
		return u
	}
	return UninitTop
}

func (u Uninitialized) Meet(v Uninitialized) Uninitialized {
	if u == UninitTop {
		return v
	}
	if v == UninitTop {
		return u
	}
	if u == v {
		return u
	}
	return UninitBottom
}

func (u Uninitialized) Leq(v Uninitialized) bool {
	return u == UninitBottom || v == UninitTop || u == v
}

// PointerValue is the product (Uninitialized, Nullity, PointsToSet,
// offset Interval) described in spec.md §4.B.
type PointerValue struct {
	Init   Uninitialized
	Null   Nullity
	Points PointsToSet
	Offset Interval
}

func PointerTop() PointerValue {
	return PointerValue{Init: UninitTop, Null: NullTop, Points: PTSTop(), Offset: Top()}
}
func PointerBottom() PointerValue {
	return PointerValue{Init: UninitBottom, Null: NullBottom, Points: PTSBottom(), Offset: Bottom()}
}

func (p PointerValue) IsBottom() bool {
	return p.Init == UninitBottom || p.Null == NullBottom || p.Points.IsBottom() || p.Offset.IsBottom()
}

func (p PointerValue) Join(q PointerValue) PointerValue {
	return PointerValue{
		Init:   p.Init.Join(q.Init),
		Null:   p.Null.Join(q.Null),
		Points: p.Points.Join(q.Points),
		Offset: p.Offset.Join(q.Offset),
	}
}

func (p PointerValue) Meet(q PointerValue) PointerValue {
	return PointerValue{
		Init:   p.Init.Meet(q.Init),
		Null:   p.Null.Meet(q.Null),
		Points: p.Points.Meet(q.Points),
		Offset: p.Offset.Meet(q.Offset),
	}
}

func (p PointerValue) Widen(q PointerValue) PointerValue {
	return PointerValue{
		Init:   p.Init.Join(q.Init),
		Null:   p.Null.Join(q.Null),
		Points: p.Points.Widen(q.Points),
		Offset: p.Offset.Widen(q.Offset),
	}
}

func (p PointerValue) Leq(q PointerValue) bool {
	return p.Init.Leq(q.Init) && p.Null.Leq(q.Null) && p.Points.Leq(q.Points) && p.Offset.Leq(q.Offset)
}
