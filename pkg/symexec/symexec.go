// Package symexec implements the symbolic executor of spec.md §4.G: one
// transfer function per AR statement kind, updating the current
// polydomain.Domain abstract value. Grounded on the teacher's
// cpu/exec.go, whose opcode switch dispatches one concrete-state update
// per Z80 instruction; here the switch dispatches one abstract-state
// update per ar.StmtKind, and registers are replaced by the scalar
// composite's variable map.
package symexec

import (
	"fmt"

	"github.com/oisee/ikos/pkg/ar"
	"github.com/oisee/ikos/pkg/lattice"
	"github.com/oisee/ikos/pkg/numerical"
	"github.com/oisee/ikos/pkg/polydomain"
	"github.com/oisee/ikos/pkg/scalar"
)

// CallHooks lets the same transfer function serve both summary-building
// passes and checker passes: exec_call resolves a call's effect on the
// state, exec_ret resolves a return statement's effect.
type CallHooks struct {
	ExecCall func(state *polydomain.Domain, stmt ar.Statement) *polydomain.Domain
	ExecRet  func(state *polydomain.Domain, stmt ar.Statement) *polydomain.Domain
}

// Context bundles the collaborators every transfer function needs:
// data layout for store sizes and the call hooks. spec.md §9 requires these be
// passed explicitly rather than held as global singletons.
type Context struct {
	Layout ar.DataLayout
	Hooks  CallHooks
}

// Diagnostic is an unsoundness warning the transfer function raises
// in-band (spec.md §7 level 3); the caller (usually pkg/interproc) is
// responsible for forwarding it to pkg/results' diagnostics stream.
type Diagnostic struct {
	Message string
	Stmt    ar.Statement
}

// Exec runs one statement's transfer function over state, returning the
// successor abstract state and any unsoundness diagnostics raised along
// the way. A ⊥ input state short-circuits to ⊥ with no diagnostics,
// per spec.md §9's "is_normal_flow_bottom" check every transfer function
// performs first.
func Exec(state *polydomain.Domain, stmt ar.Statement, ctx *Context) (*polydomain.Domain, []Diagnostic) {
	if state.IsBottom() {
		return state, nil
	}
	switch stmt.Kind {
	case ar.StmtArith:
		return execArith(state, stmt), nil
	case ar.StmtICmp:
		return execICmp(state, stmt), nil
	case ar.StmtFCmp:
		// Floating-point comparison is outside the integer/pointer scope
		// this reference implementation covers; soundly forget the
		// destination rather than guess a truth value.
		return forgetDst(state.Clone(), stmt), nil
	case ar.StmtBitwise:
		return execArith(state, stmt), nil
	case ar.StmtConvert:
		return execConvert(state, stmt), nil
	case ar.StmtPtrShift:
		return execPtrShift(state, stmt), nil
	case ar.StmtAllocaStack:
		return execAlloca(state, stmt), nil
	case ar.StmtLoad:
		return execLoad(state, stmt, ctx)
	case ar.StmtStore:
		return execStore(state, stmt, ctx)
	case ar.StmtInsertElement, ar.StmtExtractElement:
		// Vector element insert/extract: no dedicated vector lattice in
		// this reference analyzer, so the destination is soundly
		// forgotten.
		return forgetDst(state.Clone(), stmt), nil
	case ar.StmtMemCpy:
		return execMemcpy(state, stmt, false), nil
	case ar.StmtMemMove:
		return execMemcpy(state, stmt, true), nil
	case ar.StmtMemSet:
		return execMemset(state, stmt), nil
	case ar.StmtAbstractVariable:
		return forgetDst(state.Clone(), stmt), nil
	case ar.StmtAbstractMemory:
		nd := state.Clone()
		nd.Mem = nd.Mem.Join(nd.Mem) // no-op join keeps the shape uniform; memory is soundly widened to itself
		return nd, nil
	case ar.StmtCall:
		return execCall(state, stmt, ctx)
	case ar.StmtInvoke:
		return execCall(state, stmt, ctx)
	case ar.StmtReturn:
		if ctx.Hooks.ExecRet != nil {
			return ctx.Hooks.ExecRet(state, stmt), nil
		}
		return state, nil
	case ar.StmtVAStart, ar.StmtVAEnd, ar.StmtVACopy:
		return state, nil
	case ar.StmtVAArg:
		return forgetDst(state.Clone(), stmt), nil
	case ar.StmtLandingPad, ar.StmtResume:
		// Exception-flow tracking (spec.md §9's auxiliary component) is a
		// Non-goal for this reference implementation; landing pads and
		// resumes are treated as ordinary forgets of their destination.
		return forgetDst(state.Clone(), stmt), nil
	case ar.StmtUnreachable:
		return polydomain.Bottom(state.Kind(), 0), nil
	default:
		panic(fmt.Sprintf("symexec: unhandled statement kind %d", stmt.Kind))
	}
}

func forgetDst(nd *polydomain.Domain, stmt ar.Statement) *polydomain.Domain {
	nd.Scalar = nd.Scalar.Forget(stmt.Dst)
	return nd
}

func evalOperand(state *polydomain.Domain, op ar.Operand) scalar.Value {
	if op.IsConst {
		return scalar.ExactInt(op.Const)
	}
	return state.Scalar.Get(op.Var)
}

func execArith(state *polydomain.Domain, stmt ar.Statement) *polydomain.Domain {
	nd := state.Clone()
	if rel, ok := relationalArith(nd, stmt); ok {
		return rel
	}
	a := evalOperand(nd, stmt.Src1)
	b := evalOperand(nd, stmt.Src2)
	var r lattice.Interval
	switch stmt.ArithOp {
	case ar.OpAdd:
		r = a.Num.Add(b.Num)
	case ar.OpSub:
		r = a.Num.Sub(b.Num)
	case ar.OpMul:
		r = a.Num.Mul(b.Num)
	default:
		// Division, remainder, shifts, and bitwise ops have no precise
		// interval transfer in this reference implementation; they
		// soundly collapse to top.
		r = lattice.Top()
	}
	nd.Scalar = nd.Scalar.DynamicWriteInt(stmt.Dst, r)
	return nd
}

// relationalArith routes add/sub/mul through the backing numerical domain's
// relational contract (Apply/Assign) instead of the plain interval
// computation above, so DBM/packed-DBM/gauge backings actually form
// difference-bound edges and counter increments during a real analysis
// instead of only ever being exercised by pkg/numerical's own unit tests.
// It reports ok=false for anything it doesn't recognize, letting the caller
// fall back to the interval path.
func relationalArith(nd *polydomain.Domain, stmt ar.Statement) (*polydomain.Domain, bool) {
	switch stmt.ArithOp {
	case ar.OpAdd, ar.OpSub, ar.OpMul:
	default:
		return nd, false
	}
	src1, src2 := stmt.Src1, stmt.Src2

	// The canonical loop-counter increment x := x + c drives the gauge
	// domain's dedicated IncrCounter instead of a generic Assign, so a
	// gauge backing keeps the counter's bound tight across iterations.
	if stmt.ArithOp == ar.OpAdd && !src1.IsConst && src1.Var == stmt.Dst && src2.IsConst && src2.Const >= 0 {
		nd.Scalar = nd.Scalar.IncrCounter(stmt.Dst, src2.Const)
		return nd, true
	}

	switch {
	case !src1.IsConst && !src2.IsConst:
		nd.Scalar = nd.Scalar.ApplyArith(stmt.ArithOp, stmt.Dst, src1.Var, src2.Var, stmt.NoWrap)
		return nd, true
	case !src1.IsConst && src2.IsConst:
		e, ok := linearExpr(stmt.ArithOp, src1.Var, 1, src2.Const)
		if !ok {
			return nd, false
		}
		nd.Scalar = nd.Scalar.AssignLinear(stmt.Dst, e)
		return nd, true
	case src1.IsConst && !src2.IsConst:
		// c - y needs a negated coefficient on y; c + y and c * y are
		// commutative, so they reuse the var-op-const shape.
		if stmt.ArithOp == ar.OpSub {
			e := numerical.Expr{Const: src1.Const, Terms: []numerical.Term{{Var: src2.Var, Coeff: -1}}}
			nd.Scalar = nd.Scalar.AssignLinear(stmt.Dst, e)
			return nd, true
		}
		e, ok := linearExpr(stmt.ArithOp, src2.Var, 1, src1.Const)
		if !ok {
			return nd, false
		}
		nd.Scalar = nd.Scalar.AssignLinear(stmt.Dst, e)
		return nd, true
	default:
		// const OP const: no relation to form, fall back to the interval
		// path (it'll compute the same singleton either way).
		return nd, false
	}
}

// linearExpr builds coeff*y + c for OpAdd, coeff*y - c for OpSub, and
// (coeff*c)*y for OpMul; reports ok=false for any other operator.
func linearExpr(op ar.ArithOp, y ar.VarID, coeff, c int64) (numerical.Expr, bool) {
	switch op {
	case ar.OpAdd:
		return numerical.Expr{Const: c, Terms: []numerical.Term{{Var: y, Coeff: coeff}}}, true
	case ar.OpSub:
		return numerical.Expr{Const: -c, Terms: []numerical.Term{{Var: y, Coeff: coeff}}}, true
	case ar.OpMul:
		return numerical.Expr{Terms: []numerical.Term{{Var: y, Coeff: coeff * c}}}, true
	default:
		return numerical.Expr{}, false
	}
}

func execICmp(state *polydomain.Domain, stmt ar.Statement) *polydomain.Domain {
	nd := state.Clone()
	nd.Scalar = nd.Scalar.DynamicWriteInt(stmt.Dst, lattice.Range(0, 1))
	return nd
}

func execConvert(state *polydomain.Domain, stmt ar.Statement) *polydomain.Domain {
	nd := state.Clone()
	switch {
	case stmt.Callee == "ptrtoint":
		r := nd.Scalar.PointerToInt(stmt.Src1.Var)
		nd.Scalar = nd.Scalar.DynamicWriteInt(stmt.Dst, r)
	case stmt.Callee == "inttoptr":
		v := nd.Scalar.IntToPointer(stmt.Src1.Var)
		nd.Scalar = nd.Scalar.Set(stmt.Dst, v)
	default:
		// trunc/zext/sext/bitcast: preserve the numeric value
		// conservatively (no width-aware remapping in this reference
		// domain); a tighter implementation would re-derive the
		// interval through pkg/mint's Trunc/Ext.
		v := evalOperand(nd, stmt.Src1)
		nd.Scalar = nd.Scalar.Set(stmt.Dst, v)
	}
	return nd
}

func execPtrShift(state *polydomain.Domain, stmt ar.Statement) *polydomain.Domain {
	nd := state.Clone()
	base := evalOperand(nd, stmt.Src1)
	delta := evalOperand(nd, stmt.Src2)
	nd.Scalar = nd.Scalar.Set(stmt.Dst, scalar.Value{
		Init:   base.Init,
		Null:   base.Null,
		Points: base.Points,
		Num:    base.Num.Add(delta.Num),
	})
	return nd
}

func execAlloca(state *polydomain.Domain, stmt ar.Statement) *polydomain.Domain {
	nd := state.Clone()
	loc := ar.LocID(stmt.Dst)
	size := resolveSize(nd, stmt.Size)
	nd.Mem = nd.Mem.Allocate(loc, lattice.Cst(size))
	nd.Scalar = nd.Scalar.Set(stmt.Dst, scalar.Value{
		Init:   lattice.Init,
		Null:   lattice.NonNull,
		Points: lattice.PTSSingle(lattice.LocID(loc)),
		Num:    lattice.Cst(0),
	})
	return nd
}

func resolveSize(state *polydomain.Domain, op ar.Operand) int64 {
	v := evalOperand(state, op)
	if n, ok := v.Num.Singleton(); ok {
		return n
	}
	return 8 // unresolved size: assume a machine word, a documented conservative default
}

func execLoad(state *polydomain.Domain, stmt ar.Statement, ctx *Context) (*polydomain.Domain, []Diagnostic) {
	nd := state.Clone()
	p := nd.Scalar.Get(stmt.Ptr.Var)
	nd.Scalar = nd.Scalar.AssertInitialized(stmt.Ptr.Var).AssertNonNull(stmt.Ptr.Var)
	if nd.IsBottom() {
		return nd, nil
	}
	size := resolveSize(nd, stmt.Size)
	v := nd.Mem.MemRead(p.Points, p.Num, size)
	nd.Scalar = nd.Scalar.Set(stmt.Dst, v)
	var diags []Diagnostic
	if p.Points.IsTop() {
		diags = append(diags, Diagnostic{Message: "load through unresolved points-to set", Stmt: stmt})
	}
	return nd, diags
}

func execStore(state *polydomain.Domain, stmt ar.Statement, ctx *Context) (*polydomain.Domain, []Diagnostic) {
	nd := state.Clone()
	nd.Scalar = nd.Scalar.AssertInitialized(stmt.Ptr.Var).AssertNonNull(stmt.Ptr.Var)
	if nd.IsBottom() {
		return nd, nil
	}
	p := nd.Scalar.Get(stmt.Ptr.Var)
	v := evalOperand(nd, stmt.Src1)
	size := resolveSize(nd, stmt.Size)
	nd.Mem = nd.Mem.MemWrite(p.Points, p.Num, size, v)
	var diags []Diagnostic
	if p.Points.IsTop() {
		diags = append(diags, Diagnostic{Message: "store through unresolved points-to set", Stmt: stmt})
	}
	return nd, diags
}

func execMemcpy(state *polydomain.Domain, stmt ar.Statement, _ bool) *polydomain.Domain {
	nd := state.Clone()
	nd.Scalar = nd.Scalar.AssertInitialized(stmt.Ptr.Var).AssertNonNull(stmt.Ptr.Var)
	nd.Scalar = nd.Scalar.AssertInitialized(stmt.Src1.Var).AssertNonNull(stmt.Src1.Var)
	if nd.IsBottom() {
		return nd
	}
	dst := nd.Scalar.Get(stmt.Ptr.Var)
	src := nd.Scalar.Get(stmt.Src1.Var)
	size := evalOperand(nd, stmt.Size).Num
	nd.Mem = nd.Mem.Memcpy(dst.Points, src.Points, dst.Num, src.Num, size)
	return nd
}

func execMemset(state *polydomain.Domain, stmt ar.Statement) *polydomain.Domain {
	nd := state.Clone()
	nd.Scalar = nd.Scalar.AssertInitialized(stmt.Ptr.Var).AssertNonNull(stmt.Ptr.Var)
	if nd.IsBottom() {
		return nd
	}
	p := nd.Scalar.Get(stmt.Ptr.Var)
	v := evalOperand(nd, stmt.Src1)
	size := evalOperand(nd, stmt.Size).Num
	isZero := v.Num.Leq(lattice.Cst(0))
	off := p.Num
	certainLo, certainHi := off.Hi, off.Lo+size.Lo-1
	possibleLo, possibleHi := off.Lo, off.Hi+size.Hi-1
	nd.Mem = nd.Mem.Memset(p.Points, isZero, certainLo, certainHi, possibleLo, possibleHi)
	return nd
}

func execCall(state *polydomain.Domain, stmt ar.Statement, ctx *Context) (*polydomain.Domain, []Diagnostic) {
	if stmt.Callee == "" {
		// Unresolved indirect call: spec.md §4.G requires an unsound-
		// assumption warning plus forgetting the return value and any
		// parameter-reachable memory.
		nd := state.Clone()
		nd.Scalar = nd.Scalar.Forget(stmt.Dst)
		for _, arg := range stmt.CallArgs {
			if pts := nd.Scalar.Get(arg).Points; !pts.IsBottom() {
				nd.Mem = nd.Mem.MemWrite(pts, lattice.Top(), 1, scalar.Top())
			}
			nd.Scalar = nd.Scalar.Forget(arg)
		}
		return nd, []Diagnostic{{Message: "unresolved indirect call: forgetting return value and parameter-reachable memory", Stmt: stmt}}
	}
	if model, ok := externalModels[stmt.Callee]; ok {
		return model(state, stmt), nil
	}
	if ctx.Hooks.ExecCall != nil {
		return ctx.Hooks.ExecCall(state, stmt), nil
	}
	return state.Clone(), nil
}

// externalModels hard-codes the hand-picked libc/libc++/analyzer-
// intrinsic call effects spec.md §4.G calls for. Extend this table as
// new externals need precise models; unmodeled externals fall through
// to the indirect-call-style conservative forget via execCall's caller.
var externalModels = map[string]func(*polydomain.Domain, ar.Statement) *polydomain.Domain{
	"malloc": func(state *polydomain.Domain, stmt ar.Statement) *polydomain.Domain {
		nd := state.Clone()
		loc := ar.LocID(stmt.Dst)
		size := evalOperand(nd, stmt.Size).Num
		nd.Mem = nd.Mem.Allocate(loc, size)
		nd.Scalar = nd.Scalar.Set(stmt.Dst, scalar.Value{
			Init:   lattice.Init,
			Null:   lattice.NullTop,
			Points: lattice.PTSSingle(lattice.LocID(loc)),
			Num:    lattice.Cst(0),
		})
		return nd
	},
	"free": func(state *polydomain.Domain, stmt ar.Statement) *polydomain.Domain {
		nd := state.Clone()
		p := nd.Scalar.Get(stmt.CallArgs[0])
		for locL := range p.Points.Locs {
			nd.Mem = nd.Mem.Deallocate(ar.LocID(locL))
		}
		return nd
	},
	"memcpy": func(state *polydomain.Domain, stmt ar.Statement) *polydomain.Domain {
		return execMemcpy(state, ar.Statement{Ptr: ar.VarOperand(stmt.CallArgs[0]), Src1: ar.VarOperand(stmt.CallArgs[1]), Size: ar.VarOperand(stmt.CallArgs[2])}, false)
	},
}
