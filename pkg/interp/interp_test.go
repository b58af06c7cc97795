package interp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/telagod/kooixc/pkg/hir"
	"github.com/telagod/kooixc/pkg/lexer"
	"github.com/telagod/kooixc/pkg/parser"
)

func lowerSrc(t *testing.T, src string) *hir.Program {
	t.Helper()
	toks, lexErr := lexer.Lex(src)
	require.Nil(t, lexErr)
	prog, parseErr := parser.Parse(toks)
	require.Nil(t, parseErr)
	return hir.Lower(prog)
}

func TestRunProgramEvaluatesArithmetic(t *testing.T) {
	h := lowerSrc(t, `
fn add(a: Int, b: Int) -> Int { a + b }
fn main() -> Int { add(20, 22) }
`)
	v, d := RunProgram(h)
	require.Nil(t, d)
	require.Equal(t, KindInt, v.Kind)
	require.Equal(t, int64(42), v.Int)
}

func TestRunProgramRejectsMissingMain(t *testing.T) {
	h := lowerSrc(t, `
fn helper() -> Int { 1 }
`)
	_, d := RunProgram(h)
	require.NotNil(t, d)
	require.Contains(t, d.Message, "missing function 'main'")
}

func TestRunProgramRejectsParameterizedMain(t *testing.T) {
	h := lowerSrc(t, `
fn main(x: Int) -> Int { x }
`)
	_, d := RunProgram(h)
	require.NotNil(t, d)
	require.Contains(t, d.Message, "interpreter only supports main()")
}

func TestRunProgramRejectsEffectfulCallee(t *testing.T) {
	h := lowerSrc(t, `
cap Net<"example.com">;
fn fetch() -> Int !{ net } { 1 }
fn main() -> Int { fetch() }
`)
	_, d := RunProgram(h)
	require.NotNil(t, d)
	require.Contains(t, d.Message, "declares effects and cannot be executed")
}

func TestRunProgramIfExpression(t *testing.T) {
	h := lowerSrc(t, `
fn main() -> Int {
    let x: Int = 10;
    if x == 10 {
        1
    } else {
        0
    }
}
`)
	v, d := RunProgram(h)
	require.Nil(t, d)
	require.Equal(t, int64(1), v.Int)
}

func TestRunProgramWhileAccumulates(t *testing.T) {
	h := lowerSrc(t, `
fn main() -> Int {
    let total: Int = 0;
    let i: Int = 0;
    while i != 5 {
        total = total + i;
        i = i + 1;
    }
    total
}
`)
	v, d := RunProgram(h)
	require.Nil(t, d)
	require.Equal(t, int64(10), v.Int)
}

func TestRunProgramMatchBindsPayload(t *testing.T) {
	h := lowerSrc(t, `
enum Opt { None; Some(Int); }
fn main() -> Int {
    let o: Opt = Some(7);
    match o {
        Some(v) => v,
        _ => 0,
    }
}
`)
	v, d := RunProgram(h)
	require.Nil(t, d)
	require.Equal(t, int64(7), v.Int)
}

func TestRunProgramMatchNonExhaustiveErrorsAtRuntime(t *testing.T) {
	h := lowerSrc(t, `
enum Opt { None; Some(Int); }
fn main() -> Int {
    let o: Opt = None;
    match o {
        Some(v) => v,
    }
}
`)
	_, d := RunProgram(h)
	require.NotNil(t, d)
	require.Contains(t, d.Message, "non-exhaustive match")
}

func TestRunProgramRecordFieldAccess(t *testing.T) {
	h := lowerSrc(t, `
record Pair { a: Int; b: Int; }
fn main() -> Int {
    let p: Pair = Pair { a: 3; b: 4; };
    p.a + p.b
}
`)
	v, d := RunProgram(h)
	require.Nil(t, d)
	require.Equal(t, int64(7), v.Int)
}

func TestRunProgramLetRedeclarationErrors(t *testing.T) {
	h := lowerSrc(t, `
fn main() -> Int {
    let x: Int = 1;
    let x: Int = 2;
    x
}
`)
	_, d := RunProgram(h)
	require.NotNil(t, d)
	require.Contains(t, d.Message, "redefines variable 'x'")
}

func TestRunProgramIntrinsicTextLen(t *testing.T) {
	h := lowerSrc(t, `
fn text_len(s: Text) -> Int;
fn main() -> Int { text_len("hello") }
`)
	v, d := RunProgram(h)
	require.Nil(t, d)
	require.Equal(t, int64(5), v.Int)
}

func TestRunProgramCallStackOverflow(t *testing.T) {
	h := lowerSrc(t, `
fn loopy(x: Int) -> Int { loopy(x + 1) }
fn main() -> Int { loopy(0) }
`)
	_, d := RunProgram(h)
	require.NotNil(t, d)
	require.Contains(t, d.Message, "call stack overflow")
}
