// Package polydomain implements the type-erased polymorphic domain of
// spec.md §4.F: a runtime-selected combination of numerical domain,
// scalar composite, and memory domain, so the driver can pick the
// concrete backing domain from configuration without every pass being
// re-templated per domain. Grounded on the teacher's pkg/search package,
// which let cmd/z80opt pick a search strategy (exhaustive, MCMC, GPU) at
// run time behind one Result shape; here the runtime choice is the
// numerical domain kind instead of the search strategy.
package polydomain

import (
	"fmt"

	"github.com/oisee/ikos/pkg/ar"
	"github.com/oisee/ikos/pkg/lattice"
	"github.com/oisee/ikos/pkg/memdomain"
	"github.com/oisee/ikos/pkg/numerical"
	"github.com/oisee/ikos/pkg/scalar"
)

// Kind selects the concrete numerical domain backing a Domain's scalar
// composite.
type Kind uint8

const (
	KindInterval Kind = iota
	KindDBM
	KindPackedDBM
	KindGauge
)

func (k Kind) String() string {
	switch k {
	case KindInterval:
		return "interval"
	case KindDBM:
		return "dbm"
	case KindPackedDBM:
		return "packed-dbm"
	case KindGauge:
		return "gauge"
	default:
		return "unknown"
	}
}

func newNumerical(k Kind) numerical.Domain {
	switch k {
	case KindDBM:
		return numerical.NewDBM()
	case KindPackedDBM:
		return numerical.NewPacking(func() numerical.Domain { return numerical.NewDBM() })
	case KindGauge:
		return numerical.NewGaugeDomain()
	default:
		return numerical.NewIntervalDomain()
	}
}

// Domain is the boxed capability set: a scalar composite (itself backed
// by the chosen numerical domain) plus a memory domain, value-typed with
// deep clone.
type Domain struct {
	kind    Kind
	absZero ar.LocID
	Scalar  *scalar.Composite
	Mem     *memdomain.Domain
}

func New(k Kind, absZero ar.LocID) *Domain {
	return &Domain{
		kind:    k,
		absZero: absZero,
		Scalar:  scalar.NewComposite(newNumerical(k), absZero),
		Mem:     memdomain.New(),
	}
}

func Bottom(k Kind, absZero ar.LocID) *Domain {
	return &Domain{
		kind:    k,
		absZero: absZero,
		Scalar:  scalar.BottomComposite(absZero),
		Mem:     memdomain.Bottom(),
	}
}

func (d *Domain) Kind() Kind { return d.kind }

func (d *Domain) IsBottom() bool { return d.Scalar.IsBottom() || d.Mem.IsBottom() }

func (d *Domain) Clone() *Domain {
	return &Domain{kind: d.kind, absZero: d.absZero, Scalar: d.Scalar.Clone(), Mem: d.Mem.Clone()}
}

// requireSameKind panics with an analyzer error (spec.md §7's
// "implementation invariant violation — fatal") rather than silently
// degrading precision by mixing domains.
func (d *Domain) requireSameKind(o *Domain) {
	if d.kind != o.kind {
		panic(fmt.Sprintf("polydomain: binary operation between mismatched kinds %s and %s", d.kind, o.kind))
	}
}

func (d *Domain) Join(o *Domain) *Domain {
	d.requireSameKind(o)
	return &Domain{kind: d.kind, absZero: d.absZero, Scalar: d.Scalar.Join(o.Scalar), Mem: d.Mem.Join(o.Mem)}
}

func (d *Domain) Meet(o *Domain) *Domain {
	d.requireSameKind(o)
	return &Domain{kind: d.kind, absZero: d.absZero, Scalar: d.Scalar.Meet(o.Scalar), Mem: d.Mem.Meet(o.Mem)}
}

func (d *Domain) Widen(o *Domain) *Domain {
	d.requireSameKind(o)
	return &Domain{kind: d.kind, absZero: d.absZero, Scalar: d.Scalar.Widen(o.Scalar), Mem: d.Mem.Widen(o.Mem)}
}

func (d *Domain) Narrow(o *Domain) *Domain {
	d.requireSameKind(o)
	return &Domain{kind: d.kind, absZero: d.absZero, Scalar: d.Scalar.Narrow(o.Scalar), Mem: d.Mem.Narrow(o.Mem)}
}

// WidenThreshold widens using the numerical domain's widening-to-threshold
// variant (spec.md §4.C): the post-widening bound saturates to the nearest
// configured threshold instead of jumping straight to infinity.
func (d *Domain) WidenThreshold(o *Domain, thresholds []int64) *Domain {
	d.requireSameKind(o)
	return &Domain{
		kind:    d.kind,
		absZero: d.absZero,
		Scalar:  d.Scalar.WidenThreshold(o.Scalar, thresholds),
		Mem:     d.Mem.Widen(o.Mem),
	}
}

// PromoteLoopCounter passes through to the scalar composite's gauge-domain
// counter promotion (spec.md §4.H).
func (d *Domain) PromoteLoopCounter(x ar.VarID) *Domain {
	return &Domain{kind: d.kind, absZero: d.absZero, Scalar: d.Scalar.PromoteLoopCounter(x), Mem: d.Mem}
}

// Leq reports whether d is at least as precise as o, needed by the
// fixpoint iterator to detect a stabilized widening/narrowing sequence.
func (d *Domain) Leq(o *Domain) bool {
	return d.Scalar.Leq(o.Scalar) && d.Mem.Leq(o.Mem)
}

// ToInterval is a convenience passthrough used by checkers that only
// need the numeric projection of a variable.
func (d *Domain) ToInterval(x ar.VarID) lattice.Interval {
	return d.Scalar.Get(x).Num
}
