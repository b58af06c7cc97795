package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/telagod/kooixc/pkg/diagnostic"
	"github.com/telagod/kooixc/pkg/interp"
)

func TestCheckCleanProgramProducesNoDiagnostics(t *testing.T) {
	program, diags := Check(`
fn add(a: Int, b: Int) -> Int { a + b }
fn main() -> Int { add(20, 22) }
`)
	require.NotNil(t, program)
	require.Empty(t, diags)
}

func TestInterpretReturnsComputedValue(t *testing.T) {
	value, diags := Interpret(`
fn add(a: Int, b: Int) -> Int { a + b }
fn main() -> Int { add(20, 22) }
`)
	require.Empty(t, diags)
	require.Equal(t, interp.IntValue(42), value)
}

func TestEmitLLVMContainsDefineForHeaderOnlyFunction(t *testing.T) {
	out, diags := EmitLLVM(`fn answer() -> Int; fn noop() -> Unit;`)
	require.Empty(t, diags)
	require.Contains(t, out, "define i64 @answer()")
	require.Contains(t, out, "define void @noop()")
}

func TestCheckReportsEffectWithoutRequiredCapability(t *testing.T) {
	_, diags := Check(`
cap Net<"api.openai.com">;
fn summarize(doc: Text) -> Text !{model(openai), net} requires [Net<"api.openai.com">] { doc }
`)
	require.NotEmpty(t, diags)
	found := false
	for _, d := range diags {
		if d.Severity == diagnostic.Error {
			found = true
		}
	}
	require.True(t, found)
}
