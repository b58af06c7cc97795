package codegen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/telagod/kooixc/pkg/hir"
	"github.com/telagod/kooixc/pkg/lexer"
	"github.com/telagod/kooixc/pkg/mir"
	"github.com/telagod/kooixc/pkg/parser"
)

func TestEmitLLVMHeaderOnlyFunctions(t *testing.T) {
	toks, lexErr := lexer.Lex(`fn answer() -> Int; fn noop() -> Unit;`)
	require.Nil(t, lexErr)
	prog, parseErr := parser.Parse(toks)
	require.Nil(t, parseErr)

	mirProg, diags := mir.Lower(hir.Lower(prog))
	require.Empty(t, diags)

	out := EmitLLVM(mirProg)
	require.Contains(t, out, "define i64 @answer()")
	require.Contains(t, out, "ret i64 0")
	require.Contains(t, out, "define void @noop()")
	require.Contains(t, out, "ret void")
}

func TestSanitizeSymbolReplacesNonAlnum(t *testing.T) {
	require.Equal(t, "foo_bar", sanitizeSymbol("foo-bar"))
	require.Equal(t, "NS__item", sanitizeSymbol("NS__item"))
}
