// Package scalar implements the scalar composite domain of spec.md §4.D: a
// per-variable product of uninitializedness, nullity, points-to, and
// numerical information, plus the dynamic-type read/write helpers and
// assertion primitives that the memory domain and symbolic executor build
// on. Grounded on the teacher's cpu.State, which composes several
// independently-updated register fields (A, F, BC, DE, HL, SP, PC) behind
// one struct; here the fields are abstract-value lattices instead of
// concrete bytes, and the struct is keyed by an open variable map instead
// of eight fixed names.
package scalar

import (
	"reflect"

	"github.com/oisee/ikos/pkg/ar"
	"github.com/oisee/ikos/pkg/lattice"
	"github.com/oisee/ikos/pkg/numerical"
)

// Value is the per-variable product: uninitializedness × nullity ×
// points-to × numerical interval.
type Value struct {
	Init   lattice.Uninitialized
	Null   lattice.Nullity
	Points lattice.PointsToSet
	Num    lattice.Interval
}

// Top is the most permissive scalar value: may or may not be
// initialized, null, point anywhere, or hold any number.
func Top() Value {
	return Value{Init: lattice.UninitTop, Null: lattice.NullTop, Points: lattice.PTSTop(), Num: lattice.Top()}
}

func Bottom() Value {
	return Value{Init: lattice.UninitBottom, Null: lattice.NullBottom, Points: lattice.PTSBottom(), Num: lattice.Bottom()}
}

// IsBottom is true if the init, nullity or numeric component is bottom.
// An empty points-to set is the normal shape of a non-pointer value
// (see ExactInt) and does not by itself make the value bottom.
func (v Value) IsBottom() bool {
	return v.Init == lattice.UninitBottom || v.Null == lattice.NullBottom ||
		v.Num.IsBottom()
}

func (v Value) Join(o Value) Value {
	return Value{
		Init:   v.Init.Join(o.Init),
		Null:   v.Null.Join(o.Null),
		Points: v.Points.Join(o.Points),
		Num:    v.Num.Join(o.Num),
	}
}

func (v Value) Meet(o Value) Value {
	return Value{
		Init:   v.Init.Meet(o.Init),
		Null:   v.Null.Meet(o.Null),
		Points: v.Points.Meet(o.Points),
		Num:    v.Num.Meet(o.Num),
	}
}

func (v Value) Widen(o Value) Value {
	return Value{
		Init:   v.Init.Join(o.Init),
		Null:   v.Null.Join(o.Null),
		Points: v.Points.Widen(o.Points),
		Num:    v.Num.Widen(o.Num),
	}
}

func (v Value) Leq(o Value) bool {
	return v.Init.Leq(o.Init) && v.Null.Leq(o.Null) && v.Points.Leq(o.Points) && v.Num.Leq(o.Num)
}

// ExactInt builds the Value of a definitely-initialized, definitely
// non-null, definitely-this-number scalar: the shape a literal constant
// produces.
func ExactInt(n int64) Value {
	return Value{Init: lattice.Init, Null: lattice.NonNull, Points: lattice.PTSBottom(), Num: lattice.Cst(n)}
}

// ExactNull builds the Value of the null pointer constant, pointing to
// the designated absolute-zero location with offset 0.
func ExactNull(absZero ar.LocID) Value {
	return Value{
		Init:   lattice.Init,
		Null:   lattice.Null,
		Points: lattice.PTSSingle(lattice.LocID(absZero)),
		Num:    lattice.Cst(0),
	}
}

// Composite is the product domain over the whole variable universe: a
// map from ar.VarID to Value, wrapping a numerical.Domain for the
// numeric projection so relational reasoning (DBM, gauges, packing)
// still applies to the Num coordinate.
type Composite struct {
	bot     bool
	meta    map[ar.VarID]metaValue // Init/Null/Points, everything but Num
	numeric numerical.Domain
	absZero ar.LocID
}

type metaValue struct {
	init   lattice.Uninitialized
	null   lattice.Nullity
	points lattice.PointsToSet
}

func topMeta() metaValue {
	return metaValue{init: lattice.UninitTop, null: lattice.NullTop, points: lattice.PTSTop()}
}

// NewComposite builds a ⊤ composite over a freshly-constructed numerical
// backing domain, with absZero identifying the memory location that
// `pointer_to_int`/`int_to_pointer` bridge through.
func NewComposite(numDomain numerical.Domain, absZero ar.LocID) *Composite {
	return &Composite{meta: map[ar.VarID]metaValue{}, numeric: numDomain, absZero: absZero}
}

func BottomComposite(absZero ar.LocID) *Composite {
	return &Composite{bot: true, absZero: absZero}
}

func (c *Composite) IsBottom() bool {
	return c.bot || (c.numeric != nil && c.numeric.IsBottom())
}

func (c *Composite) Clone() *Composite {
	if c.bot {
		return BottomComposite(c.absZero)
	}
	nm := make(map[ar.VarID]metaValue, len(c.meta))
	for k, v := range c.meta {
		nm[k] = v
	}
	return &Composite{meta: nm, numeric: c.numeric.Clone(), absZero: c.absZero}
}

func (c *Composite) metaOf(x ar.VarID) metaValue {
	if c.bot {
		return metaValue{init: lattice.UninitBottom, null: lattice.NullBottom, points: lattice.PTSBottom()}
	}
	if m, ok := c.meta[x]; ok {
		return m
	}
	return topMeta()
}

// Get reads the full scalar Value of x.
func (c *Composite) Get(x ar.VarID) Value {
	m := c.metaOf(x)
	return Value{Init: m.init, Null: m.null, Points: m.points, Num: c.numeric.ToInterval(x)}
}

// setCollapsing assigns x := v, collapsing the whole composite to bottom
// if v is infeasible (the product-domain analogue of a single-variable
// assignment in a non-relational numerical domain).
func (c *Composite) setCollapsing(x ar.VarID, v Value) *Composite {
	if v.IsBottom() {
		return BottomComposite(c.absZero)
	}
	nc := c.Clone()
	nc.meta[x] = metaValue{init: v.Init, null: v.Null, points: v.Points}
	nc.numeric = nc.numeric.Set(x, v.Num)
	return nc
}

// Set assigns x the value v directly (used when constructing a known
// literal or a freshly-allocated pointer).
func (c *Composite) Set(x ar.VarID, v Value) *Composite {
	if c.bot {
		return c
	}
	return c.setCollapsing(x, v)
}

// Forget removes all information about x, the composite analogue of
// numerical.Domain.Forget.
func (c *Composite) Forget(x ar.VarID) *Composite {
	if c.bot {
		return c
	}
	nc := c.Clone()
	delete(nc.meta, x)
	nc.numeric = nc.numeric.Forget(x)
	return nc
}

// AssertInitialized intersects x's value with "initialized"; per
// spec.md §4.D this is how a caller proves a use-of-uninitialized error:
// if the result is ⊥, the program point is unreachable under the
// assumption x was read only when initialized.
func (c *Composite) AssertInitialized(x ar.VarID) *Composite {
	return c.refineInit(x, lattice.Init)
}

func (c *Composite) AssertNonNull(x ar.VarID) *Composite {
	return c.refineNull(x, lattice.NonNull)
}

func (c *Composite) AssertNull(x ar.VarID) *Composite {
	return c.refineNull(x, lattice.Null)
}

func (c *Composite) refineInit(x ar.VarID, want lattice.Uninitialized) *Composite {
	if c.bot {
		return c
	}
	m := c.metaOf(x)
	m.init = m.init.Meet(want)
	if m.init == lattice.UninitBottom {
		return BottomComposite(c.absZero)
	}
	nc := c.Clone()
	nc.meta[x] = m
	return nc
}

func (c *Composite) refineNull(x ar.VarID, want lattice.Nullity) *Composite {
	if c.bot {
		return c
	}
	m := c.metaOf(x)
	m.null = m.null.Meet(want)
	if m.null == lattice.NullBottom {
		return BottomComposite(c.absZero)
	}
	nc := c.Clone()
	nc.meta[x] = m
	return nc
}

// DynamicIsZero and DynamicIsNull answer the implicit-coercion questions
// spec.md §4.D names: an integer cell read as zero behaves as null under
// a pointer-typed access, and vice versa.
func (c *Composite) DynamicIsZero(x ar.VarID) bool {
	v := c.Get(x)
	n, ok := v.Num.Singleton()
	return ok && n == 0
}

func (c *Composite) DynamicIsNull(x ar.VarID) bool {
	v := c.Get(x)
	return v.Null == lattice.Null || c.DynamicIsZero(x)
}

// DynamicWriteInt stores an initialized integer value n with unknown
// nullity and an empty points-to set.
func (c *Composite) DynamicWriteInt(x ar.VarID, n lattice.Interval) *Composite {
	if c.bot {
		return c
	}
	return c.setCollapsing(x, Value{Init: lattice.Init, Null: lattice.NullTop, Points: lattice.PTSBottom(), Num: n})
}

// DynamicWritePointer stores a pointer value; writing the constant 0
// through a pointer-typed access is routed through PointerToInt/IntToPointer
// at the call site rather than here, matching spec.md's "bridge through a
// designated absolute-zero location" design.
func (c *Composite) DynamicWritePointer(x ar.VarID, pts lattice.PointsToSet, null lattice.Nullity, offset lattice.Interval) *Composite {
	if c.bot {
		return c
	}
	return c.setCollapsing(x, Value{Init: lattice.Init, Null: null, Points: pts, Num: offset})
}

// PromoteLoopCounter marks x as a nonnegative, constant-incremented loop
// counter in the backing domain, a no-op unless that domain is a
// *numerical.GaugeDomain (spec.md §4.H's counter-promotion hook; every
// other numerical domain has no counter notion to promote into).
func (c *Composite) PromoteLoopCounter(x ar.VarID) *Composite {
	if c.bot {
		return c
	}
	gd, ok := c.numeric.(*numerical.GaugeDomain)
	if !ok {
		return c
	}
	nc := c.Clone()
	nc.numeric = gd.MarkCounter(x)
	return nc
}

// ApplyArith performs dst := a OP b through the backing numerical domain's
// relational Apply, so a DBM or packed-DBM backing actually forms the
// difference-bound edge instead of only ever seeing a plain interval Set.
func (c *Composite) ApplyArith(op ar.ArithOp, dst, a, b ar.VarID, noWrap bool) *Composite {
	if c.bot {
		return c
	}
	nc := c.Clone()
	nc.numeric = nc.numeric.Apply(op, dst, a, b, noWrap)
	nc.meta[dst] = metaValue{init: lattice.Init, null: lattice.NullTop, points: lattice.PTSBottom()}
	if nc.numeric.IsBottom() {
		return BottomComposite(c.absZero)
	}
	return nc
}

// AssignLinear performs dst := e through the backing numerical domain's
// Assign, the relational counterpart of DynamicWriteInt for the var-op-const
// and const-op-var shapes a DBM can still represent as a direct edge.
func (c *Composite) AssignLinear(dst ar.VarID, e numerical.Expr) *Composite {
	if c.bot {
		return c
	}
	nc := c.Clone()
	nc.numeric = nc.numeric.Assign(dst, e)
	nc.meta[dst] = metaValue{init: lattice.Init, null: lattice.NullTop, points: lattice.PTSBottom()}
	if nc.numeric.IsBottom() {
		return BottomComposite(c.absZero)
	}
	return nc
}

// RefineConstraint narrows the backing numerical domain by a linear
// constraint, the composite entry point for branch-guard refinement.
func (c *Composite) RefineConstraint(con numerical.Constraint) *Composite {
	if c.bot {
		return c
	}
	nc := c.Clone()
	nc.numeric = nc.numeric.AddConstraint(con)
	if nc.numeric.IsBottom() {
		return BottomComposite(c.absZero)
	}
	return nc
}

// IncrCounter bumps x as a loop counter by the nonnegative constant k. When
// the backing domain is a *numerical.GaugeDomain this drives its dedicated
// IncrCounter (keeping the gauge bound tight instead of widening to +inf
// the way a plain Assign would); every other domain falls back to the
// ordinary relational assignment x := x + k.
func (c *Composite) IncrCounter(x ar.VarID, k int64) *Composite {
	if c.bot {
		return c
	}
	if gd, ok := c.numeric.(*numerical.GaugeDomain); ok {
		nc := c.Clone()
		nc.numeric = gd.IncrCounter(x, k)
		return nc
	}
	return c.AssignLinear(x, numerical.Expr{Const: k, Terms: []numerical.Term{{Var: x, Coeff: 1}}})
}

// PointerToInt bridges x's pointer view into an integer view: a pointer
// whose points-to is exactly {absolute_zero} with offset 0 becomes the
// integer 0; any other pointer becomes top (its bit pattern cannot be
// soundly predicted).
func (c *Composite) PointerToInt(x ar.VarID) lattice.Interval {
	v := c.Get(x)
	if v.Points.Leq(lattice.PTSSingle(lattice.LocID(c.absZero))) && v.Num.Leq(lattice.Cst(0)) {
		return lattice.Cst(0)
	}
	return lattice.Top()
}

// IntToPointer is the inverse bridge: the integer zero maps to a pointer
// at absolute_zero/offset 0 (spec.md's `p == (T*)0` case); any other
// integer produces a pointer with unknown points-to.
func (c *Composite) IntToPointer(x ar.VarID) Value {
	v := c.Get(x)
	if v.Num.Leq(lattice.Cst(0)) {
		return Value{Init: v.Init, Null: lattice.Null, Points: lattice.PTSSingle(lattice.LocID(c.absZero)), Num: lattice.Cst(0)}
	}
	return Value{Init: v.Init, Null: lattice.NullTop, Points: lattice.PTSTop(), Num: lattice.Top()}
}

func (c *Composite) Join(o *Composite) *Composite {
	if c.bot {
		return o.Clone()
	}
	if o.bot {
		return c.Clone()
	}
	nc := &Composite{meta: map[ar.VarID]metaValue{}, numeric: c.numeric.Join(o.numeric), absZero: c.absZero}
	for x := range unionMetaKeys(c.meta, o.meta) {
		m1, m2 := c.metaOf(x), o.metaOf(x)
		nc.meta[x] = metaValue{
			init:   m1.init.Join(m2.init),
			null:   m1.null.Join(m2.null),
			points: m1.points.Join(m2.points),
		}
	}
	return nc
}

func (c *Composite) Meet(o *Composite) *Composite {
	if c.bot || o.bot {
		return BottomComposite(c.absZero)
	}
	nc := &Composite{meta: map[ar.VarID]metaValue{}, numeric: c.numeric.Meet(o.numeric), absZero: c.absZero}
	for x := range unionMetaKeys(c.meta, o.meta) {
		m1, m2 := c.metaOf(x), o.metaOf(x)
		nc.meta[x] = metaValue{
			init:   m1.init.Meet(m2.init),
			null:   m1.null.Meet(m2.null),
			points: m1.points.Meet(m2.points),
		}
	}
	return nc
}

func (c *Composite) Widen(o *Composite) *Composite {
	if c.bot {
		return o.Clone()
	}
	if o.bot {
		return c.Clone()
	}
	nc := &Composite{meta: map[ar.VarID]metaValue{}, numeric: c.numeric.Widen(o.numeric), absZero: c.absZero}
	for x := range unionMetaKeys(c.meta, o.meta) {
		m1, m2 := c.metaOf(x), o.metaOf(x)
		nc.meta[x] = metaValue{
			init:   m1.init.Join(m2.init),
			null:   m1.null.Join(m2.null),
			points: m1.points.Widen(m2.points),
		}
	}
	return nc
}

// WidenThreshold widens the numeric projection using the backing
// numerical domain's widening-to-threshold variant, and widens the
// points-to projection plainly (it carries no threshold notion).
func (c *Composite) WidenThreshold(o *Composite, thresholds []int64) *Composite {
	if c.bot {
		return o.Clone()
	}
	if o.bot {
		return c.Clone()
	}
	nc := &Composite{meta: map[ar.VarID]metaValue{}, numeric: c.numeric.WidenThreshold(o.numeric, thresholds), absZero: c.absZero}
	for x := range unionMetaKeys(c.meta, o.meta) {
		m1, m2 := c.metaOf(x), o.metaOf(x)
		nc.meta[x] = metaValue{
			init:   m1.init.Join(m2.init),
			null:   m1.null.Join(m2.null),
			points: m1.points.Widen(m2.points),
		}
	}
	return nc
}

func (c *Composite) Narrow(o *Composite) *Composite {
	if c.bot || o.bot {
		return BottomComposite(c.absZero)
	}
	nc := &Composite{meta: map[ar.VarID]metaValue{}, numeric: c.numeric.Narrow(o.numeric), absZero: c.absZero}
	for x := range unionMetaKeys(c.meta, o.meta) {
		nc.meta[x] = c.metaOf(x)
	}
	return nc
}

// Leq reports whether c is at least as precise as o (c ⊑ o), tested the
// standard way for a join-semilattice with no cheaper per-domain
// comparison: c ⊑ o iff c ⊔ o == o. Used by the fixpoint iterator to
// detect when widening/narrowing has stabilized.
func (c *Composite) Leq(o *Composite) bool {
	if c.bot {
		return true
	}
	if o.bot {
		return false
	}
	return reflect.DeepEqual(c.Join(o), o)
}

func unionMetaKeys(a, b map[ar.VarID]metaValue) map[ar.VarID]struct{} {
	r := make(map[ar.VarID]struct{}, len(a)+len(b))
	for k := range a {
		r[k] = struct{}{}
	}
	for k := range b {
		r[k] = struct{}{}
	}
	return r
}
