package ar

import "sync"

// VariableFactory owns the Variable universe for one analysis run. Spec.md
// §3 "Ownership": abstract values hold stable VarIDs into this factory for
// the life of the analysis; the factory itself is mutated only during
// construction (grounded on the teacher's result.Table: a mutex-guarded
// append-only store, pkg/result/table.go).
type VariableFactory struct {
	mu    sync.Mutex
	vars  []Variable
	named map[string]VarID
}

func NewVariableFactory() *VariableFactory {
	return &VariableFactory{named: make(map[string]VarID)}
}

func (f *VariableFactory) new(name string, kind VarKind, width uint, signed bool) VarID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := VarID(len(f.vars))
	f.vars = append(f.vars, Variable{ID: id, Name: name, Kind: kind, Width: width, Signed: signed})
	if name != "" {
		f.named[name] = id
	}
	return id
}

// GetInternal allocates a fresh anonymous internal variable of the given
// kind/width (spec.md §6 "Variable factory: get_internal(v)").
func (f *VariableFactory) GetInternal(kind VarKind, width uint, signed bool) VarID {
	return f.new("", kind, width, signed)
}

// GetGlobal returns (creating if needed) the variable bound to a named
// global.
func (f *VariableFactory) GetGlobal(name string, kind VarKind, width uint, signed bool) VarID {
	f.mu.Lock()
	if id, ok := f.named[name]; ok {
		f.mu.Unlock()
		return id
	}
	f.mu.Unlock()
	return f.new(name, kind, width, signed)
}

// GetNamedShadow returns the synthetic "shadow.offset_plus_size" variable
// the buffer-overflow checker uses to stage an offset+size computation
// (spec.md §6).
func (f *VariableFactory) GetNamedShadow(base string, width uint) VarID {
	return f.GetGlobal("shadow."+base, KindInteger, width, false)
}

// GetFunctionPtr returns the variable denoting a function's address.
func (f *VariableFactory) GetFunctionPtr(fn string, ptrWidth uint) VarID {
	return f.GetGlobal("fnptr."+fn, KindPointer, ptrWidth, false)
}

// NewPointer allocates a pointer variable together with its derived offset
// variable, per spec.md §3.
func (f *VariableFactory) NewPointer(name string, ptrWidth uint) VarID {
	off := f.new(name+".offset", KindInteger, ptrWidth, false)
	id := f.new(name, KindPointer, ptrWidth, false)
	f.mu.Lock()
	f.vars[id].OffsetOf = off
	f.mu.Unlock()
	return id
}

func (f *VariableFactory) Lookup(id VarID) Variable {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vars[id]
}

func (f *VariableFactory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.vars)
}

// MemoryLocationFactory owns the MemoryLocation universe, including the
// single absolute-zero sentinel every analysis shares (spec.md §3).
type MemoryLocationFactory struct {
	mu     sync.Mutex
	locs   []MemoryLocation
	named  map[string]LocID
	absZero LocID
	hasZero bool
}

func NewMemoryLocationFactory() *MemoryLocationFactory {
	f := &MemoryLocationFactory{named: make(map[string]LocID)}
	f.absZero = f.new("<absolute-zero>", LocAbsoluteZero)
	f.hasZero = true
	return f
}

func (f *MemoryLocationFactory) new(name string, kind LocKind) LocID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := LocID(len(f.locs))
	f.locs = append(f.locs, MemoryLocation{ID: id, Name: name, Kind: kind})
	if name != "" {
		f.named[name] = id
	}
	return id
}

func (f *MemoryLocationFactory) getNamed(name string, kind LocKind) LocID {
	f.mu.Lock()
	if id, ok := f.named[name]; ok {
		f.mu.Unlock()
		return id
	}
	f.mu.Unlock()
	return f.new(name, kind)
}

func (f *MemoryLocationFactory) GetGlobal(name string) LocID    { return f.getNamed("global."+name, LocGlobal) }
func (f *MemoryLocationFactory) GetLocal(name string) LocID     { return f.getNamed("local."+name, LocLocal) }
func (f *MemoryLocationFactory) GetFunction(name string) LocID  { return f.getNamed("func."+name, LocFunction) }
func (f *MemoryLocationFactory) GetErrno() LocID                { return f.getNamed("errno", LocErrno) }
func (f *MemoryLocationFactory) AbsoluteZero() LocID            { return f.absZero }

// GetDynAlloc returns a fresh call-site-keyed allocation location; callers
// pass a stable call-site key (e.g. "malloc@12@3") so repeated analyses of
// the same call site reuse the same abstract location.
func (f *MemoryLocationFactory) GetDynAlloc(callSiteKey string) LocID {
	return f.getNamed("alloc."+callSiteKey, LocDynAlloc)
}

func (f *MemoryLocationFactory) Lookup(id LocID) MemoryLocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locs[id]
}

// LiteralFactory interns integer/floating literals so repeated occurrences
// of the same constant share one representation, the way the teacher's
// inst.Catalog interns per-opcode metadata in a fixed array instead of
// allocating per instance.
type LiteralFactory struct {
	mu    sync.Mutex
	ints  map[int64]struct{}
}

func NewLiteralFactory() *LiteralFactory {
	return &LiteralFactory{ints: make(map[int64]struct{})}
}

func (f *LiteralFactory) Intern(v int64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ints[v] = struct{}{}
	return v
}

// CFGFactory resolves a function name to its CFG and target architecture
// string, and enumerates its variable classes (spec.md §6).
type CFGFactory struct {
	Funcs map[string]*Function
	Arch  string
}

func NewCFGFactory(arch string) *CFGFactory {
	return &CFGFactory{Funcs: make(map[string]*Function), Arch: arch}
}

func (f *CFGFactory) Add(fn *Function) { f.Funcs[fn.Name] = fn }

func (f *CFGFactory) CFG(name string) (CFG, string, bool) {
	fn, ok := f.Funcs[name]
	if !ok {
		return nil, "", false
	}
	return FuncCFG{F: fn}, f.Arch, true
}

func (f *CFGFactory) Locals(name string) []VarID {
	fn, ok := f.Funcs[name]
	if !ok {
		return nil
	}
	return fn.Locals
}

func (f *CFGFactory) Formals(name string) []VarID {
	fn, ok := f.Funcs[name]
	if !ok {
		return nil
	}
	return fn.Formals
}
