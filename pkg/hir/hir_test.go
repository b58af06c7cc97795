package hir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/telagod/kooixc/pkg/lexer"
	"github.com/telagod/kooixc/pkg/parser"
)

func parseSrc(t *testing.T, src string) *Program {
	t.Helper()
	toks, lexErr := lexer.Lex(src)
	require.Nil(t, lexErr)
	prog, parseErr := parser.Parse(toks)
	require.Nil(t, parseErr)
	return Lower(prog)
}

func TestLowerPartitionsItemsByKind(t *testing.T) {
	h := parseSrc(t, `
cap Io<>;
record Pair { a: Int; b: Int; }
enum Opt { None; Some(Int); }
fn add(a: Int, b: Int) -> Int { a + b }
`)
	require.Len(t, h.Capabilities, 1)
	require.Len(t, h.Records, 1)
	require.Len(t, h.Enums, 1)
	require.Len(t, h.Functions, 1)
	require.Equal(t, "add", h.Functions[0].Name)
}

func TestInvocableNamesCollectsFunctionsWorkflowsAgents(t *testing.T) {
	h := parseSrc(t, `
fn helper() -> Int { 1 }
`)
	names := h.InvocableNames()
	require.True(t, names["helper"])
	require.False(t, names["missing"])
}
