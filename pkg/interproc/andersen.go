package interproc

import "github.com/oisee/ikos/pkg/ar"

// PointsToConstraint is one Andersen-style inclusion constraint, the
// four canonical forms: address-of (Dst ⊇ {Of}), copy (Dst ⊇ Src),
// load (Dst ⊇ *Src), store (*Dst ⊇ Src).
type PointsToConstraint struct {
	Kind ConstraintKind
	Dst  ar.VarID
	Src  ar.VarID
	Of   ar.LocID
}

type ConstraintKind uint8

const (
	ConstraintAddrOf ConstraintKind = iota
	ConstraintCopy
	ConstraintLoad
	ConstraintStore
)

// ExtractConstraints walks fn's statements and emits one constraint per
// pointer-producing or pointer-dereferencing statement, the input to
// SolveAndersen. This is a flow-insensitive, intraprocedural extraction;
// call-site argument/return binding is handled separately by the
// flow-sensitive summary passes, matching spec.md §4.I's division of
// labor between the Andersen pre-pass and the per-function fixpoints.
func ExtractConstraints(fn *ar.Function) []PointsToConstraint {
	var cs []PointsToConstraint
	for _, blk := range fn.Blocks {
		for _, stmt := range blk.Statements {
			switch stmt.Kind {
			case ar.StmtAllocaStack:
				cs = append(cs, PointsToConstraint{Kind: ConstraintAddrOf, Dst: stmt.Dst, Of: ar.LocID(stmt.Dst)})
			case ar.StmtPtrShift:
				if !stmt.Src1.IsConst {
					cs = append(cs, PointsToConstraint{Kind: ConstraintCopy, Dst: stmt.Dst, Src: stmt.Src1.Var})
				}
			case ar.StmtConvert:
				if stmt.Callee == "inttoptr" || stmt.Callee == "" {
					if !stmt.Src1.IsConst {
						cs = append(cs, PointsToConstraint{Kind: ConstraintCopy, Dst: stmt.Dst, Src: stmt.Src1.Var})
					}
				}
			case ar.StmtLoad:
				if !stmt.Ptr.IsConst {
					cs = append(cs, PointsToConstraint{Kind: ConstraintLoad, Dst: stmt.Dst, Src: stmt.Ptr.Var})
				}
			case ar.StmtStore:
				if !stmt.Ptr.IsConst && !stmt.Src1.IsConst {
					cs = append(cs, PointsToConstraint{Kind: ConstraintStore, Dst: stmt.Ptr.Var, Src: stmt.Src1.Var})
				}
			case ar.StmtCall, ar.StmtInvoke:
				if stmt.Callee == "malloc" {
					cs = append(cs, PointsToConstraint{Kind: ConstraintAddrOf, Dst: stmt.Dst, Of: ar.LocID(stmt.Dst)})
				}
			}
		}
	}
	return cs
}

// SolveAndersen runs the classic inclusion-based worklist fixpoint over
// cs: pts(x) starts empty, address-of constraints seed it, copy/load/
// store constraints propagate until no points-to set grows. Returns the
// solved points-to set per variable (as a set of LocIDs, flow- and
// context-insensitive — strictly less precise than, but a fast
// whole-program-safe initial seed for, the flow-sensitive per-function
// fixpoint the other summary passes run).
func SolveAndersen(cs []PointsToConstraint) map[ar.VarID]map[ar.LocID]bool {
	pts := map[ar.VarID]map[ar.LocID]bool{}
	ensure := func(v ar.VarID) map[ar.LocID]bool {
		if pts[v] == nil {
			pts[v] = map[ar.LocID]bool{}
		}
		return pts[v]
	}

	// complex constraints (load/store) are revisited every round since
	// their applicability depends on pts(Src)/pts(Dst) growing; a real
	// Andersen implementation indexes these per variable to avoid
	// rescanning, but this reference solver favors clarity over the
	// constant-factor optimization given the problem sizes pkg/interproc
	// targets.
	changed := true
	for changed {
		changed = false
		for _, c := range cs {
			switch c.Kind {
			case ConstraintAddrOf:
				set := ensure(c.Dst)
				if !set[c.Of] {
					set[c.Of] = true
					changed = true
				}
			case ConstraintCopy:
				dst, src := ensure(c.Dst), ensure(c.Src)
				for l := range src {
					if !dst[l] {
						dst[l] = true
						changed = true
					}
				}
			case ConstraintLoad:
				// dst ⊇ *src: for every location l in pts(src), union
				// pts(l-as-a-variable) into pts(dst). This reference
				// solver treats a LocID's own stored pointer set as
				// pts(VarID(l)) when such an entry exists (locations and
				// variables share an ID space in the synthetic alloca
				// numbering pkg/symexec uses).
				dst := ensure(c.Dst)
				for l := range ensure(c.Src) {
					for inner := range ensure(ar.VarID(l)) {
						if !dst[inner] {
							dst[inner] = true
							changed = true
						}
					}
				}
			case ConstraintStore:
				for l := range ensure(c.Dst) {
					target := ensure(ar.VarID(l))
					for s := range ensure(c.Src) {
						if !target[s] {
							target[s] = true
							changed = true
						}
					}
				}
			}
		}
	}
	return pts
}
