// Package fixpoint implements the WTO-based fixpoint iterator of
// spec.md §4.H: a weak topological ordering over a CFG's SCCs, stabilized
// with widening (optionally widening-to-threshold), then narrowing.
// Grounded on the teacher's pkg/search/worker.go, whose iterative
// improve-until-stable loop (mutate, evaluate, accept-or-reject, report
// progress on a ticker) is the same shape as a fixpoint ascent, here
// replaced by join/widen/narrow over an abstract domain instead of a
// fitness score.
package fixpoint

import "github.com/oisee/ikos/pkg/ar"

// WTOElem is either a single vertex or a nested component (the head of
// a loop plus the vertices/components inside it), mirroring Bourdoncle's
// weak topological order.
type WTOElem struct {
	Head     string
	Nested   []WTOElem // empty for a plain vertex
	IsVertex bool
}

// Build constructs a weak topological ordering over cfg starting at its
// entry block, identifying loops via a DFS numbering and the simplified,
// flattened construction of components().
func Build(cfg ar.CFG) []WTOElem {
	b := &wtoBuilder{cfg: cfg, dfn: map[string]int{}, stack: nil}
	b.visit(cfg.EntryName(), make(map[string]bool))
	return b.components(cfg.EntryName(), make(map[string]bool))
}

type wtoBuilder struct {
	cfg   ar.CFG
	dfn   map[string]int
	stack []string
	num   int
}

func (b *wtoBuilder) visit(v string, visited map[string]bool) {
	if visited[v] {
		return
	}
	visited[v] = true
	b.num++
	b.dfn[v] = b.num
	for _, w := range b.cfg.Successors(v) {
		b.visit(w, visited)
	}
}

// components partitions the CFG into a flat sequence of WTOElem,
// treating any successor with dfn <= current vertex's dfn as closing a
// loop headed at that successor (a standard, simplified WTO
// construction: precise nesting of irreducible loops is approximated by
// flattening them into one component headed at the lowest-dfn target).
func (b *wtoBuilder) components(entry string, visited map[string]bool) []WTOElem {
	order := b.topoOrder(entry)
	heads := map[string]bool{}
	for _, v := range order {
		for _, w := range b.cfg.Successors(v) {
			if b.dfn[w] <= b.dfn[v] {
				heads[w] = true
			}
		}
	}
	var out []WTOElem
	i := 0
	for i < len(order) {
		v := order[i]
		if heads[v] {
			j := i + 1
			for j < len(order) && !dominatesExit(b, v, order[j], heads) {
				j++
			}
			nested := make([]WTOElem, 0, j-i)
			for _, m := range order[i:j] {
				nested = append(nested, WTOElem{Head: m, IsVertex: true})
			}
			out = append(out, WTOElem{Head: v, Nested: nested})
			i = j
			continue
		}
		out = append(out, WTOElem{Head: v, IsVertex: true})
		i++
	}
	return out
}

// dominatesExit is a conservative stand-in for "has control left the
// loop headed at head": true once we reach another loop head or a vertex
// numbered before head; in the dfn order components() walks, a component
// otherwise runs to the end of the order. This reference WTO builder favors a
// simple, sound flattening over exact Bourdoncle nesting.
func dominatesExit(b *wtoBuilder, head, v string, heads map[string]bool) bool {
	return b.dfn[v] < b.dfn[head] || (heads[v] && v != head)
}

func (b *wtoBuilder) topoOrder(entry string) []string {
	type pair struct {
		name string
		dfn  int
	}
	pairs := make([]pair, 0, len(b.dfn))
	for n, d := range b.dfn {
		pairs = append(pairs, pair{n, d})
	}
	for i := 1; i < len(pairs); i++ {
		for j := i; j > 0 && pairs[j].dfn < pairs[j-1].dfn; j-- {
			pairs[j], pairs[j-1] = pairs[j-1], pairs[j]
		}
	}
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.name
	}
	return out
}
