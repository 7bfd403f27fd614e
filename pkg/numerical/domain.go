// Package numerical implements the relational and non-relational numerical
// abstract domains of spec.md §4.C: an interval environment, a
// difference-bound matrix, a gauge domain, and a variable-packing wrapper
// that partitions variables across independent instances of a wrapped
// relational domain. All four share the Domain contract below so the
// symbolic executor (pkg/symexec) and the summarization passes
// (pkg/interproc) are written against one interface, the way the teacher's
// pkg/search and the removed pkg/gpu both produced a result.Table behind
// one shape without the caller knowing which backend executed.
package numerical

import (
	"github.com/oisee/ikos/pkg/ar"
	"github.com/oisee/ikos/pkg/lattice"
)

// ConstraintOp is the relational operator of a linear constraint.
type ConstraintOp uint8

const (
	Leq ConstraintOp = iota
	Lt
	Eq
	Geq
	Gt
)

// Term is coeff*Var in a linear expression.
type Term struct {
	Var   ar.VarID
	Coeff int64
}

// Expr is a linear expression Const + Σ Terms.
type Expr struct {
	Const int64
	Terms []Term
}

// Var builds the expression denoting a bare variable.
func Var(v ar.VarID) Expr { return Expr{Terms: []Term{{Var: v, Coeff: 1}}} }

// Cst builds a constant expression.
func Cst(c int64) Expr { return Expr{Const: c} }

// Constraint is "expr OP 0", e.g. Terms: [x, -y], Const: -c, Op: Leq models
// x - y <= c.
type Constraint struct {
	Expr Expr
	Op   ConstraintOp
}

// Domain is the contract every numerical abstract domain implements.
// Every method is value-semantic: it returns a new Domain rather than
// mutating the receiver, so callers can safely alias and branch (the same
// value-typed-with-copy-on-write discipline as spec.md §3's Ownership
// model for abstract values).
type Domain interface {
	Assign(x ar.VarID, e Expr) Domain
	Apply(op ar.ArithOp, dst, a, b ar.VarID, noWrap bool) Domain
	AddConstraint(c Constraint) Domain
	Set(x ar.VarID, v Interval) Domain
	Refine(x ar.VarID, v Interval) Domain
	Forget(x ar.VarID) Domain

	ToInterval(x ar.VarID) Interval

	IsBottom() bool
	Join(Domain) Domain
	Meet(Domain) Domain
	Widen(Domain) Domain
	WidenThreshold(Domain, []int64) Domain
	Narrow(Domain) Domain
	Clone() Domain
}

// Interval is a re-export so callers of this package don't need to import
// pkg/lattice directly for the common case.
type Interval = lattice.Interval

// evalExprInterval evaluates a linear expression under an interval
// assignment function, used by every domain's Assign/Apply fallback for
// operations it cannot represent relationally.
func evalExprInterval(e Expr, get func(ar.VarID) Interval) Interval {
	acc := lattice.Cst(e.Const)
	for _, t := range e.Terms {
		term := get(t.Var).Mul(lattice.Cst(t.Coeff))
		acc = acc.Add(term)
	}
	return acc
}
