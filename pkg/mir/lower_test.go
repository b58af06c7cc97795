package mir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/telagod/kooixc/pkg/hir"
	"github.com/telagod/kooixc/pkg/lexer"
	"github.com/telagod/kooixc/pkg/parser"
)

func lowerSrc(t *testing.T, src string) *Program {
	t.Helper()
	toks, lexErr := lexer.Lex(src)
	require.Nil(t, lexErr)
	prog, parseErr := parser.Parse(toks)
	require.Nil(t, parseErr)
	mirProg, diags := Lower(hir.Lower(prog))
	require.Empty(t, diags)
	return mirProg
}

func findFunc(p *Program, name string) *Function {
	for i := range p.Functions {
		if p.Functions[i].Name == name {
			return &p.Functions[i]
		}
	}
	return nil
}

func TestLowerHeaderOnlyFunctionReturnsDefault(t *testing.T) {
	p := lowerSrc(t, `fn answer() -> Int; fn noop() -> Unit;`)

	answer := findFunc(p, "answer")
	require.NotNil(t, answer)
	require.Len(t, answer.Blocks, 1)
	require.Equal(t, "bb0", answer.Blocks[0].Label)
	ret, ok := answer.Blocks[0].Terminator.(ReturnDefault)
	require.True(t, ok)
	require.Equal(t, "Int", ret.Ty.Name)

	noop := findFunc(p, "noop")
	require.NotNil(t, noop)
	_, ok = noop.Blocks[0].Terminator.(ReturnDefault)
	require.True(t, ok)
}

func TestLowerSimpleAddFunction(t *testing.T) {
	p := lowerSrc(t, `fn add(a: Int, b: Int) -> Int { a + b }`)

	fn := findFunc(p, "add")
	require.NotNil(t, fn)
	require.Len(t, fn.Params, 2)
	require.Len(t, fn.Blocks, 1)

	term, ok := fn.Blocks[0].Terminator.(Return)
	require.True(t, ok)
	require.NotNil(t, term.Value)

	require.Len(t, fn.Blocks[0].Statements, 1)
	assign, ok := fn.Blocks[0].Statements[0].(Assign)
	require.True(t, ok)
	bin, ok := assign.Rvalue.(Binary)
	require.True(t, ok)
	require.Equal(t, "+", bin.Op)
}

func TestLowerIfElseBranchesToThreeBlocksWithJoin(t *testing.T) {
	p := lowerSrc(t, `fn pick(c: Bool) -> Int { if c { 1 } else { 2 } }`)

	fn := findFunc(p, "pick")
	require.NotNil(t, fn)
	// entry + then + else + join
	require.Len(t, fn.Blocks, 4)

	_, ok := fn.Blocks[0].Terminator.(If)
	require.True(t, ok)

	last := fn.Blocks[len(fn.Blocks)-1]
	_, ok = last.Terminator.(Return)
	require.True(t, ok)
}

func TestLowerRecordLiteralAndFieldProjection(t *testing.T) {
	p := lowerSrc(t, `
record Pair { a: Int; b: Int; }
fn sum(p: Pair) -> Int { p.a + p.b }
`)
	require.Len(t, p.Records, 1)
	require.Equal(t, "Pair", p.Records[0].Name)

	fn := findFunc(p, "sum")
	require.NotNil(t, fn)

	var sawProject bool
	for _, stmt := range fn.Blocks[0].Statements {
		if assign, ok := stmt.(Assign); ok {
			if _, ok := assign.Rvalue.(ProjectField); ok {
				sawProject = true
			}
		}
	}
	require.True(t, sawProject)
}

func TestLowerRejectsGenericFunction(t *testing.T) {
	toks, lexErr := lexer.Lex(`fn identity<T>(x: T) -> T { x }`)
	require.Nil(t, lexErr)
	prog, parseErr := parser.Parse(toks)
	require.Nil(t, parseErr)

	mirProg, diags := Lower(hir.Lower(prog))
	require.NotEmpty(t, diags)
	require.Nil(t, findFunc(mirProg, "identity"))
}

func TestLowerRejectsEffectfulFunction(t *testing.T) {
	toks, lexErr := lexer.Lex(`cap Io<>; fn touch() -> Unit !{io} requires [Io<>] { }`)
	require.Nil(t, lexErr)
	prog, parseErr := parser.Parse(toks)
	require.Nil(t, parseErr)

	mirProg, diags := Lower(hir.Lower(prog))
	require.NotEmpty(t, diags)
	require.Nil(t, findFunc(mirProg, "touch"))
}
