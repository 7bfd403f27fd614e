// Package checker implements the four-valued memory-safety checks of
// spec.md §4.J: buffer-overflow, null-dereference, use-after-free, and an
// array-access heuristic, each evaluated against a statement and its
// pre-state. Grounded on the teacher's pkg/search/verifier.go, whose
// QuickCheck/ExhaustiveCheck pair runs a cheap filter before an expensive
// proof and returns one of a small result enum; here the "result enum" is
// the Ok/Warning/Error/Unreachable outcome and the "filter then proof"
// shape becomes "resolve the points-to set, then reason about every
// target location."
package checker

import (
	"fmt"

	"github.com/oisee/ikos/pkg/ar"
	"github.com/oisee/ikos/pkg/lattice"
	"github.com/oisee/ikos/pkg/memdomain"
	"github.com/oisee/ikos/pkg/polydomain"
)

// Outcome is the ordered four-valued check result of spec.md §4.J:
// Ok ranks lowest, then Warning, then Error, with Unreachable highest —
// Worse picks the higher-ranked of two outcomes for merging per-target
// results.
type Outcome uint8

const (
	Ok Outcome = iota
	Warning
	Error
	Unreachable
)

func (o Outcome) String() string {
	switch o {
	case Ok:
		return "Ok"
	case Warning:
		return "Warning"
	case Error:
		return "Error"
	case Unreachable:
		return "Unreachable"
	default:
		return "?"
	}
}

// Worse returns the more severe of o and p, where Unreachable dominates
// Error dominates Warning dominates Ok (spec.md §4.J's ordered set).
func (o Outcome) Worse(p Outcome) Outcome {
	rank := func(x Outcome) int {
		switch x {
		case Unreachable:
			return 3
		case Error:
			return 2
		case Warning:
			return 1
		default:
			return 0
		}
	}
	if rank(o) >= rank(p) {
		return o
	}
	return p
}

// AddrRange is one entry of spec.md §6's hardware_addresses allowlist.
type AddrRange struct{ Lo, Hi int64 }

func (r AddrRange) Contains(offset int64) bool { return offset >= r.Lo && offset <= r.Hi }

// Options configures checker behavior from spec.md §6's Configuration
// table: the hardware-address allowlist for absolute-zero accesses, and
// the set of external functions whose call convention tolerates a null
// argument (realloc, vararg printf-family functions, ...).
type Options struct {
	HardwareAddresses []AddrRange
	NullableCallees   map[string]bool
}

func (o Options) addressAllowed(offset int64) bool {
	for _, r := range o.HardwareAddresses {
		if r.Contains(offset) {
			return true
		}
	}
	return false
}

// Record is one check's outcome, carrying enough context for
// pkg/results to render it and for spec.md §7's "reported exactly once
// per (statement, call context)" dedup rule to key on.
type Record struct {
	Checker string
	Reason  string
	Outcome Outcome
	Stmt    ar.Statement
}

// Context supplies the per-location static facts the checker needs that
// neither the scalar nor the memory domain carries: a location's kind
// (global/local/heap/function/errno/absolute-zero) and the configured
// options.
type Context struct {
	Locations map[ar.LocID]ar.MemoryLocation
	Opts      Options
}

func (c *Context) kindOf(loc ar.LocID) ar.LocKind {
	if c == nil || c.Locations == nil {
		return ar.LocDynAlloc
	}
	if m, ok := c.Locations[loc]; ok {
		return m.Kind
	}
	return ar.LocDynAlloc
}

// Unreachable is the check every checker runs first (spec.md §4.J step
// 1): a bottom pre-state means this statement provably never executes.
func unreachable(pre *polydomain.Domain, checkerName string, stmt ar.Statement) (Record, bool) {
	if pre.IsBottom() {
		return Record{Checker: checkerName, Outcome: Unreachable, Reason: "pre-state is bottom", Stmt: stmt}, true
	}
	return Record{}, false
}

// BufferOverflow implements spec.md §4.J(2): the full buffer-overflow
// check for a memory access of size n bytes through pointer variable ptr.
func BufferOverflow(pre *polydomain.Domain, ptr ar.VarID, n int64, stmt ar.Statement, ctx *Context) Record {
	if rec, ok := unreachable(pre, "buffer-overflow", stmt); ok {
		return rec
	}
	p := pre.Scalar.Get(ptr)

	if p.Init == lattice.Uninit {
		return Record{Checker: "buffer-overflow", Outcome: Error, Reason: "UninitializedVariable", Stmt: stmt}
	}
	if p.Null == lattice.Null {
		if ctx != nil && ctx.Opts.NullableCallees[stmt.Callee] {
			return Record{Checker: "buffer-overflow", Outcome: Ok, Reason: "null permitted by callee convention", Stmt: stmt}
		}
		return Record{Checker: "buffer-overflow", Outcome: Error, Reason: "NullPointerDereference", Stmt: stmt}
	}

	if p.Points.IsBottom() {
		return Record{Checker: "buffer-overflow", Outcome: Error, Reason: "InvalidPointer", Stmt: stmt}
	}
	if p.Points.IsTop() {
		return Record{Checker: "buffer-overflow", Outcome: Warning, Reason: "UnknownMemoryAccess", Stmt: stmt}
	}

	worst := Ok
	var reason string
	for locL := range p.Points.Locs {
		loc := ar.LocID(locL)
		rec, done := checkTarget(pre, loc, p.Num, n, ctx)
		if done {
			worst = worst.Worse(rec.outcome)
			if rec.reason != "" && (reason == "" || rec.outcome == Error) {
				reason = rec.reason
			}
		}
	}
	return Record{Checker: "buffer-overflow", Outcome: worst, Reason: reason, Stmt: stmt}
}

type targetResult struct {
	outcome Outcome
	reason  string
}

// checkTarget evaluates one resolved target location for an access of
// size n bytes at offset interval off, per spec.md §4.J(2)'s per-location
// sub-cases.
func checkTarget(pre *polydomain.Domain, loc ar.LocID, off lattice.Interval, n int64, ctx *Context) (targetResult, bool) {
	if ctx != nil {
		switch ctx.kindOf(loc) {
		case ar.LocFunction:
			return targetResult{Error, "FunctionPointerDereference"}, true
		case ar.LocAbsoluteZero:
			lo, hi := off.Lo, off.Hi
			if lo == hi && ctx.Opts.addressAllowed(lo) {
				return targetResult{Ok, ""}, true
			}
			return targetResult{Warning, "AbsoluteZeroAccess"}, true
		}
	}

	switch pre.Mem.LifetimeOf(loc) {
	case memdomain.LifeBottom:
		return targetResult{}, false
	case memdomain.LifeDeallocated:
		return targetResult{Error, "UseAfterFree"}, true
	case memdomain.LifeUnknown:
		return targetResult{Warning, "UnknownMemoryAccess"}, true
	}

	size := pre.Mem.AllocatedSize(loc)
	if size.IsTop() {
		return targetResult{Warning, "UnknownMemoryAccess"}, true
	}

	// offset_plus_size = offset(p) + n; the access is Ok when neither
	// offset nor offset_plus_size can exceed size_var (checked against
	// size's lower bound, its smallest value), and Error when either
	// definitely exceeds it (checked against size's upper bound, its
	// largest value).
	// size is a non-relational projection here (this domain keeps offset
	// and allocated size as separate intervals, not one joint relational
	// fact), so a genuinely in-between case reports Warning rather than
	// claiming a proof spec.md §4.J's relational formulation would make.
	endOff := off.Add(lattice.Cst(n))
	definitelyInBounds := off.Hi <= size.Lo && endOff.Hi <= size.Lo
	definitelyOutOfBounds := off.Lo > size.Hi || endOff.Lo > size.Hi

	switch {
	case definitelyInBounds:
		return targetResult{Ok, ""}, true
	case definitelyOutOfBounds:
		return targetResult{Error, "OutOfBounds"}, true
	default:
		return targetResult{Warning, "UnknownMemoryAccess"}, true
	}
}

// NullDeref is the narrower check spec.md §4.J names beside the combined
// buffer-overflow check: whether ptr is proved null at this statement,
// ignoring size/bounds reasoning entirely.
func NullDeref(pre *polydomain.Domain, ptr ar.VarID, stmt ar.Statement) Record {
	if rec, ok := unreachable(pre, "null-deref", stmt); ok {
		return rec
	}
	p := pre.Scalar.Get(ptr)
	if p.Null == lattice.Null {
		return Record{Checker: "null-deref", Outcome: Error, Reason: "NullPointerDereference", Stmt: stmt}
	}
	if p.Null == lattice.NullTop {
		return Record{Checker: "null-deref", Outcome: Warning, Reason: "PossiblyNull", Stmt: stmt}
	}
	return Record{Checker: "null-deref", Outcome: Ok, Stmt: stmt}
}

// UseAfterFree checks every location ptr might name for deallocated
// lifetime, independent of any access size.
func UseAfterFree(pre *polydomain.Domain, ptr ar.VarID, stmt ar.Statement) Record {
	if rec, ok := unreachable(pre, "use-after-free", stmt); ok {
		return rec
	}
	p := pre.Scalar.Get(ptr)
	if p.Points.IsTop() || p.Points.IsBottom() {
		return Record{Checker: "use-after-free", Outcome: Ok, Stmt: stmt}
	}
	for locL := range p.Points.Locs {
		loc := ar.LocID(locL)
		if pre.Mem.LifetimeOf(loc) == memdomain.LifeDeallocated {
			return Record{Checker: "use-after-free", Outcome: Error, Reason: "UseAfterFree", Stmt: stmt}
		}
	}
	return Record{Checker: "use-after-free", Outcome: Ok, Stmt: stmt}
}

// ArrayElemKind identifies the statically-known element type of an array
// access, used by ArrayAccess to decide whether the offset lines up on an
// element boundary.
type ArrayElemKind struct {
	ElemSize int64
}

// ArrayAccess implements spec.md §4.J(3): when every target is an array
// of the same element size and the offset is provably a multiple of that
// size, the access is reported Ok under the array-access heuristic
// (distinct from, and in addition to, the general buffer-overflow
// result); otherwise it reports Warning rather than claiming a proof it
// cannot make.
func ArrayAccess(pre *polydomain.Domain, ptr ar.VarID, elems map[ar.LocID]ArrayElemKind, stmt ar.Statement) Record {
	if rec, ok := unreachable(pre, "array-access", stmt); ok {
		return rec
	}
	p := pre.Scalar.Get(ptr)
	if p.Points.IsTop() || p.Points.IsBottom() {
		return Record{Checker: "array-access", Outcome: Warning, Reason: "points-to not resolved", Stmt: stmt}
	}
	var elemSize int64 = -1
	for locL := range p.Points.Locs {
		info, ok := elems[ar.LocID(locL)]
		if !ok {
			return Record{Checker: "array-access", Outcome: Warning, Reason: "non-array target", Stmt: stmt}
		}
		if elemSize == -1 {
			elemSize = info.ElemSize
		} else if elemSize != info.ElemSize {
			return Record{Checker: "array-access", Outcome: Warning, Reason: "mismatched element types", Stmt: stmt}
		}
	}
	if elemSize <= 0 {
		return Record{Checker: "array-access", Outcome: Warning, Reason: "unknown element size", Stmt: stmt}
	}
	lo, hi := p.Num.Lo, p.Num.Hi
	if lo != hi || lo%elemSize != 0 {
		return Record{Checker: "array-access", Outcome: Warning, Reason: fmt.Sprintf("offset not a multiple of element size %d", elemSize), Stmt: stmt}
	}
	return Record{Checker: "array-access", Outcome: Ok, Stmt: stmt}
}
