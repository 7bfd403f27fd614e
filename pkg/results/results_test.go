package results

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oisee/ikos/pkg/ar"
	"github.com/oisee/ikos/pkg/checker"
	"github.com/oisee/ikos/pkg/symexec"
)

func finding(fn string, outcome checker.Outcome, line int) Finding {
	return Finding{
		Func: fn,
		Record: checker.Record{
			Checker: "buffer-overflow",
			Outcome: outcome,
			Stmt:    ar.Statement{Line: line},
		},
	}
}

func TestAddDedupsSameStatementAndContext(t *testing.T) {
	tab := NewTable()
	require.True(t, tab.Add(finding("f", checker.Error, 10)))
	require.False(t, tab.Add(finding("f", checker.Error, 10)))
	require.Equal(t, 1, tab.Len())
}

func TestAddAllowsSameStatementInDifferentContext(t *testing.T) {
	tab := NewTable()
	a := finding("f", checker.Error, 10)
	a.Context = "ctx-a"
	b := finding("f", checker.Error, 10)
	b.Context = "ctx-b"
	require.True(t, tab.Add(a))
	require.True(t, tab.Add(b))
	require.Equal(t, 2, tab.Len())
}

func TestFindingsSortsBySeverityThenPosition(t *testing.T) {
	tab := NewTable()
	tab.Add(finding("f", checker.Ok, 1))
	tab.Add(finding("f", checker.Unreachable, 2))
	tab.Add(finding("f", checker.Warning, 3))
	tab.Add(finding("f", checker.Error, 4))

	got := tab.Findings()
	require.Len(t, got, 4)
	require.Equal(t, checker.Unreachable, got[0].Outcome)
	require.Equal(t, checker.Error, got[1].Outcome)
	require.Equal(t, checker.Warning, got[2].Outcome)
	require.Equal(t, checker.Ok, got[3].Outcome)
}

func TestCountBySeverity(t *testing.T) {
	tab := NewTable()
	tab.Add(finding("f", checker.Error, 1))
	tab.Add(finding("f", checker.Error, 2))
	tab.Add(finding("f", checker.Warning, 3))

	counts := tab.CountBySeverity()
	require.Equal(t, 2, counts[checker.Error])
	require.Equal(t, 1, counts[checker.Warning])
	require.Equal(t, 0, counts[checker.Ok])
}

func TestWriteReportRendersOneLinePerFinding(t *testing.T) {
	var buf bytes.Buffer
	WriteReport(&buf, []Finding{finding("f", checker.Error, 10)})
	require.Contains(t, buf.String(), "f:10:0")
	require.Contains(t, buf.String(), "buffer-overflow")
}

func TestFuncFilterRestrictsToOneFunction(t *testing.T) {
	all := []Finding{finding("f", checker.Error, 1), finding("g", checker.Error, 2)}
	got := FuncFilter(all, "g")
	require.Len(t, got, 1)
	require.Equal(t, "g", got[0].Func)
}

func TestDiagnosticStreamRecordsEveryAdd(t *testing.T) {
	s := NewDiagnosticStream()
	s.AddAll("f", "ctx", []symexec.Diagnostic{
		{Message: "unresolved indirect call", Stmt: ar.Statement{Line: 1}},
		{Message: "load through unresolved points-to set", Stmt: ar.Statement{Line: 2}},
	})
	entries := s.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, "f", entries[0].Func)
	require.Equal(t, CallContext("ctx"), entries[0].Context)
}

func TestWriteDiagnosticsRendersNote(t *testing.T) {
	var buf bytes.Buffer
	WriteDiagnostics(&buf, []DiagnosticEntry{
		{Func: "f", Diagnostic: symexec.Diagnostic{Message: "forgetting return value", Stmt: ar.Statement{Line: 5}}},
	})
	require.Contains(t, buf.String(), "f:5:0")
	require.Contains(t, buf.String(), "forgetting return value")
}

func TestRecordCheckAddsUnderFuncAndContext(t *testing.T) {
	tab := NewTable()
	added := RecordCheck(tab, "f", "ctx-1", checker.Record{Checker: "null-deref", Outcome: checker.Error, Stmt: ar.Statement{Line: 7}})
	require.True(t, added)
	require.Equal(t, 1, tab.Len())
	require.Equal(t, "f", tab.Findings()[0].Func)
}
