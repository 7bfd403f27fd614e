package main

// AR program loading lives here, in the driver binary, not in pkg/ar:
// spec.md §1/§6 name the on-disk AR format and its parser as external
// collaborators the core never owns. This loader is this reference
// binary's own convenience format, mirroring cmd/z80opt/main.go's
// parseAssembly/parseSingleInstruction — text-to-typed-value conversion
// that lives in main.go, not in pkg/inst.

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/oisee/ikos/pkg/ar"
)

type wireOperand struct {
	Const *int64 `json:"const,omitempty"`
	Var   int    `json:"var,omitempty"`
}

func (w wireOperand) operand() ar.Operand {
	if w.Const != nil {
		return ar.ConstOperand(*w.Const)
	}
	return ar.VarOperand(ar.VarID(w.Var))
}

type wireStatement struct {
	Kind     string       `json:"kind"`
	ArithOp  string       `json:"arith_op,omitempty"`
	Dst      int          `json:"dst,omitempty"`
	Src1     *wireOperand `json:"src1,omitempty"`
	Src2     *wireOperand `json:"src2,omitempty"`
	Ptr      *wireOperand `json:"ptr,omitempty"`
	Size     *wireOperand `json:"size,omitempty"`
	NoWrap   bool         `json:"no_wrap,omitempty"`
	Callee   string       `json:"callee,omitempty"`
	CallArgs []int        `json:"call_args,omitempty"`
	Line     int          `json:"line,omitempty"`
	Col      int          `json:"col,omitempty"`
}

var stmtKindNames = map[string]ar.StmtKind{
	"arith":             ar.StmtArith,
	"icmp":              ar.StmtICmp,
	"fcmp":              ar.StmtFCmp,
	"bitwise":           ar.StmtBitwise,
	"convert":           ar.StmtConvert,
	"ptr_shift":         ar.StmtPtrShift,
	"alloca_stack":      ar.StmtAllocaStack,
	"load":              ar.StmtLoad,
	"store":             ar.StmtStore,
	"insert_element":    ar.StmtInsertElement,
	"extract_element":   ar.StmtExtractElement,
	"memcpy":            ar.StmtMemCpy,
	"memmove":           ar.StmtMemMove,
	"memset":            ar.StmtMemSet,
	"abstract_variable": ar.StmtAbstractVariable,
	"abstract_memory":   ar.StmtAbstractMemory,
	"call":              ar.StmtCall,
	"invoke":            ar.StmtInvoke,
	"return":            ar.StmtReturn,
	"va_start":          ar.StmtVAStart,
	"va_end":            ar.StmtVAEnd,
	"va_arg":            ar.StmtVAArg,
	"va_copy":           ar.StmtVACopy,
	"landing_pad":       ar.StmtLandingPad,
	"resume":            ar.StmtResume,
	"unreachable":       ar.StmtUnreachable,
}

var arithOpNames = map[string]ar.ArithOp{
	"add":       ar.OpAdd,
	"sub":       ar.OpSub,
	"mul":       ar.OpMul,
	"div":       ar.OpDiv,
	"div_exact": ar.OpDivExact,
	"rem":       ar.OpRem,
	"shl":       ar.OpShl,
	"lshr":      ar.OpLShr,
	"ashr":      ar.OpAShr,
	"and":       ar.OpAnd,
	"or":        ar.OpOr,
	"xor":       ar.OpXor,
}

var locKindNames = map[string]ar.LocKind{
	"global":        ar.LocGlobal,
	"local":         ar.LocLocal,
	"dyn_alloc":     ar.LocDynAlloc,
	"function":      ar.LocFunction,
	"errno":         ar.LocErrno,
	"absolute_zero": ar.LocAbsoluteZero,
}

func (w wireStatement) statement() (ar.Statement, error) {
	kind, ok := stmtKindNames[w.Kind]
	if !ok {
		return ar.Statement{}, errors.Errorf("unknown statement kind %q", w.Kind)
	}
	s := ar.Statement{
		Kind:     kind,
		Dst:      ar.VarID(w.Dst),
		NoWrap:   w.NoWrap,
		Callee:   w.Callee,
		Line:     w.Line,
		Col:      w.Col,
	}
	if w.ArithOp != "" {
		op, ok := arithOpNames[w.ArithOp]
		if !ok {
			return ar.Statement{}, errors.Errorf("unknown arith op %q", w.ArithOp)
		}
		s.ArithOp = op
	}
	if w.Src1 != nil {
		s.Src1 = w.Src1.operand()
	}
	if w.Src2 != nil {
		s.Src2 = w.Src2.operand()
	}
	if w.Ptr != nil {
		s.Ptr = w.Ptr.operand()
	}
	if w.Size != nil {
		s.Size = w.Size.operand()
	}
	for _, a := range w.CallArgs {
		s.CallArgs = append(s.CallArgs, ar.VarID(a))
	}
	return s, nil
}

type wireBlock struct {
	Name       string          `json:"name"`
	Statements []wireStatement `json:"statements"`
	Succs      []string        `json:"succs,omitempty"`
}

type wireFunction struct {
	Name    string               `json:"name"`
	Entry   string               `json:"entry"`
	Blocks  map[string]wireBlock `json:"blocks"`
	Formals []int                `json:"formals,omitempty"`
	Locals  []int                `json:"locals,omitempty"`
	Return  int                  `json:"return,omitempty"`
}

func (w wireFunction) function() (*ar.Function, error) {
	fn := &ar.Function{
		Name:   w.Name,
		Entry:  w.Entry,
		Blocks: map[string]*ar.BasicBlock{},
		Return: ar.VarID(w.Return),
	}
	for _, v := range w.Formals {
		fn.Formals = append(fn.Formals, ar.VarID(v))
	}
	for _, v := range w.Locals {
		fn.Locals = append(fn.Locals, ar.VarID(v))
	}
	for name, wb := range w.Blocks {
		blk := &ar.BasicBlock{Name: name, Succs: wb.Succs}
		for _, ws := range wb.Statements {
			s, err := ws.statement()
			if err != nil {
				return nil, errors.Wrapf(err, "function %q block %q", w.Name, name)
			}
			blk.Statements = append(blk.Statements, s)
		}
		fn.Blocks[name] = blk
	}
	return fn, nil
}

type wireLocation struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
	Kind string `json:"kind"`
}

type wireLayout struct {
	PtrWidth     uint `json:"ptr_width"`
	LittleEndian bool `json:"little_endian"`
}

type wireProgram struct {
	Funcs       map[string]wireFunction `json:"funcs"`
	Locations   []wireLocation          `json:"locations,omitempty"`
	Layout      wireLayout              `json:"layout"`
	EntryPoints []string                `json:"entry_points,omitempty"`
}

// loadProgram reads this binary's JSON AR format from path and builds
// the in-memory ar.Program the core passes walk.
func loadProgram(path string) (*ar.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	var wp wireProgram
	if err := json.Unmarshal(data, &wp); err != nil {
		return nil, errors.Wrapf(err, "parsing %s as AR JSON", path)
	}

	prog := &ar.Program{
		Funcs:       map[string]*ar.Function{},
		Locations:   map[ar.LocID]ar.MemoryLocation{},
		EntryPoints: wp.EntryPoints,
	}
	if wp.Layout.PtrWidth == 0 {
		prog.Layout = ar.BasicDataLayout{PtrWidth: 64, LE: true}
	} else {
		prog.Layout = ar.BasicDataLayout{PtrWidth: wp.Layout.PtrWidth, LE: wp.Layout.LittleEndian}
	}

	for name, wf := range wp.Funcs {
		fn, err := wf.function()
		if err != nil {
			return nil, err
		}
		prog.Funcs[name] = fn
	}
	for _, wl := range wp.Locations {
		kind, ok := locKindNames[wl.Kind]
		if !ok {
			return nil, errors.Errorf("location %d: unknown kind %q", wl.ID, wl.Kind)
		}
		loc := ar.LocID(wl.ID)
		prog.Locations[loc] = ar.MemoryLocation{ID: loc, Name: wl.Name, Kind: kind}
	}
	return prog, nil
}
