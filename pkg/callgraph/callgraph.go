// Package callgraph builds the call graph's strongly-connected
// components in reverse topological order, the "strong-components
// graph" collaborator spec.md §6 requires: enumerate SCCs of the call
// graph in reverse topological order; component(root) returns the list
// of functions in that SCC. Grounded on the teacher's pkg/search
// worker-pool scheduling (which orders independent work units before
// dispatch), generalized from a flat work queue to Tarjan's algorithm
// over a directed graph with cycles.
package callgraph

// Graph is a caller -> callees adjacency list over function names.
type Graph struct {
	edges map[string][]string
	nodes []string
	seen  map[string]bool
}

func New() *Graph {
	return &Graph{edges: map[string][]string{}, seen: map[string]bool{}}
}

// AddFunction registers a function even if it has no outgoing calls
// (needed so leaf functions still appear in the SCC ordering).
func (g *Graph) AddFunction(name string) {
	if !g.seen[name] {
		g.seen[name] = true
		g.nodes = append(g.nodes, name)
	}
}

// AddCall records that caller invokes callee, possibly indirectly
// through a resolved points-to set; unresolved indirect calls
// contribute no edge (matching spec.md §4.G's documented unsoundness).
func (g *Graph) AddCall(caller, callee string) {
	g.AddFunction(caller)
	g.AddFunction(callee)
	g.edges[caller] = append(g.edges[caller], callee)
}

// tarjanState holds Tarjan's algorithm's bookkeeping.
type tarjanState struct {
	g        *Graph
	index    map[string]int
	lowlink  map[string]int
	onStack  map[string]bool
	stack    []string
	counter  int
	sccs     [][]string
}

// SCCs returns every strongly-connected component of g, ordered so that
// a component containing only callees of another component's functions
// comes before it — i.e. reverse topological order, the order
// spec.md §4.I's bottom-up summarization passes iterate in.
func (g *Graph) SCCs() [][]string {
	st := &tarjanState{
		g:       g,
		index:   map[string]int{},
		lowlink: map[string]int{},
		onStack: map[string]bool{},
	}
	for _, n := range g.nodes {
		if _, ok := st.index[n]; !ok {
			st.strongConnect(n)
		}
	}
	// Tarjan's algorithm emits components in reverse topological order
	// already (callees before callers), which is exactly the bottom-up
	// order spec.md requires.
	return st.sccs
}

func (st *tarjanState) strongConnect(v string) {
	st.index[v] = st.counter
	st.lowlink[v] = st.counter
	st.counter++
	st.stack = append(st.stack, v)
	st.onStack[v] = true

	for _, w := range st.g.edges[v] {
		if _, ok := st.index[w]; !ok {
			st.strongConnect(w)
			if st.lowlink[w] < st.lowlink[v] {
				st.lowlink[v] = st.lowlink[w]
			}
		} else if st.onStack[w] {
			if st.index[w] < st.lowlink[v] {
				st.lowlink[v] = st.index[w]
			}
		}
	}

	if st.lowlink[v] == st.index[v] {
		var comp []string
		for {
			n := len(st.stack) - 1
			w := st.stack[n]
			st.stack = st.stack[:n]
			st.onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		st.sccs = append(st.sccs, comp)
	}
}

// Component returns the SCC root belongs to; root may be any member of
// that component, and nil is returned when no SCC contains root.
func (g *Graph) Component(root string) []string {
	for _, comp := range g.SCCs() {
		for _, f := range comp {
			if f == root {
				return comp
			}
		}
	}
	return nil
}
