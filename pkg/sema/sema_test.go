package sema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/telagod/kooixc/pkg/diagnostic"
	"github.com/telagod/kooixc/pkg/hir"
	"github.com/telagod/kooixc/pkg/lexer"
	"github.com/telagod/kooixc/pkg/parser"
)

func analyzeSrc(t *testing.T, src string) []diagnostic.Diagnostic {
	t.Helper()
	toks, lexErr := lexer.Lex(src)
	require.Nil(t, lexErr)
	prog, parseErr := parser.Parse(toks)
	require.Nil(t, parseErr)
	return Analyze(hir.Lower(prog))
}

func messages(ds []diagnostic.Diagnostic) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Message
	}
	return out
}

func TestCleanProgramProducesNoDiagnostics(t *testing.T) {
	ds := analyzeSrc(t, `
fn add(a: Int, b: Int) -> Int { a + b }
fn double(x: Int) -> Int {
    let doubled: Int = add(x, x);
    doubled
}
`)
	require.Empty(t, ds)
}

func TestDuplicateFunctionNameIsRejected(t *testing.T) {
	ds := analyzeSrc(t, `
fn f() -> Int { 1 }
fn f() -> Int { 2 }
`)
	require.NotEmpty(t, ds)
	require.Contains(t, messages(ds)[0], "duplicate function declaration 'f'")
}

func TestEffectWithoutCapabilityIsRejected(t *testing.T) {
	ds := analyzeSrc(t, `
cap Model<"openai", "chat", 1>;
fn fetch() -> Int !{ net } requires [Model<"openai", "chat", 1>] { 1 }
`)
	require.NotEmpty(t, ds)
	found := false
	for _, m := range messages(ds) {
		if m == "function 'fetch' uses effect 'net' but does not require 'Net' capability" {
			found = true
		}
	}
	require.True(t, found)
}

func TestEffectWithGrantedCapabilityPasses(t *testing.T) {
	ds := analyzeSrc(t, `
cap Net<"example.com">;
fn fetch() -> Int !{ net } requires [Net<"example.com">] { 1 }
`)
	require.Empty(t, ds)
}

func TestEffectWithoutRequiresIsRejected(t *testing.T) {
	ds := analyzeSrc(t, `
cap Net<"example.com">;
fn fetch() -> Int !{ net } { 1 }
`)
	require.NotEmpty(t, ds)
	found := false
	for _, m := range messages(ds) {
		if m == "function 'fetch' declares effects but has no requires clause" {
			found = true
		}
	}
	require.True(t, found)
}

func TestUnknownVariableInBodyIsRejected(t *testing.T) {
	ds := analyzeSrc(t, `
fn f() -> Int { missing }
`)
	require.NotEmpty(t, ds)
	require.Contains(t, messages(ds)[0], "unknown variable 'missing'")
}

func TestLetRedeclarationIsRejected(t *testing.T) {
	ds := analyzeSrc(t, `
fn f() -> Int {
    let x: Int = 1;
    let x: Int = 2;
    x
}
`)
	require.NotEmpty(t, ds)
	require.Contains(t, messages(ds)[0], "redefines variable 'x'")
}

func TestReturnTypeMismatchIsRejected(t *testing.T) {
	ds := analyzeSrc(t, `
fn f() -> Bool { 1 }
`)
	require.NotEmpty(t, ds)
}

func TestRecordLiteralMissingFieldIsRejected(t *testing.T) {
	ds := analyzeSrc(t, `
record Pair { a: Int; b: Int; }
fn f() -> Pair { Pair { a: 1; } }
`)
	require.NotEmpty(t, ds)
	found := false
	for _, m := range messages(ds) {
		if m == "function 'f' record literal for 'Pair' is missing field 'b'" {
			found = true
		}
	}
	require.True(t, found)
}

func TestEmptyRecordIsRejected(t *testing.T) {
	ds := analyzeSrc(t, `record Empty { }`)
	require.NotEmpty(t, ds)
	require.Contains(t, messages(ds)[0], "declares no fields")
}

func TestMatchMissingVariantIsRejected(t *testing.T) {
	ds := analyzeSrc(t, `
enum Opt { None; Some(Int); }
fn f(o: Opt) -> Int {
    match o {
        Some(v) => v,
    }
}
`)
	require.NotEmpty(t, ds)
	found := false
	for _, m := range messages(ds) {
		if m == "function 'f' match does not cover variant 'None' of 'Opt'" {
			found = true
		}
	}
	require.True(t, found)
}

func TestMatchWithWildcardCoversAllVariants(t *testing.T) {
	ds := analyzeSrc(t, `
enum Opt { None; Some(Int); }
fn f(o: Opt) -> Int {
    match o {
        Some(v) => v,
        _ => 0,
    }
}
`)
	require.Empty(t, ds)
}

func TestAmbiguousEnumVariantIsRejected(t *testing.T) {
	ds := analyzeSrc(t, `
enum A { Shared; }
enum B { Shared; }
fn f() -> A { Shared }
`)
	require.NotEmpty(t, ds)
	require.Contains(t, messages(ds)[0], "ambiguous enum variant 'Shared'")
}

func TestAgentUnreachableStateIsRejected(t *testing.T) {
	ds := analyzeSrc(t, `
agent A() -> Int
state {
    INIT -> Running;
    Dangling -> Dangling;
}
policy {
}
loop {
    plan -> act;
    stop when result == 1;
};
`)
	found := false
	for _, m := range messages(ds) {
		if m == "agent 'A' state 'Dangling' is unreachable from 'INIT'" {
			found = true
		}
	}
	require.True(t, found)
}

func TestAgentPolicyAllowDenyConflictIsRejected(t *testing.T) {
	ds := analyzeSrc(t, `
agent A() -> Int
state {
    INIT -> Running;
}
policy {
    allow_tools ["search"];
    deny_tools ["search"];
}
loop {
    plan -> act;
    stop when result == 1;
};
`)
	found := false
	for _, m := range messages(ds) {
		if m == "agent 'A' both allows and denies tool 'search'" {
			found = true
		}
	}
	require.True(t, found)
}

func TestAgentTerminationWarningsWithoutMaxIterations(t *testing.T) {
	ds := analyzeSrc(t, `
agent A() -> Int
state {
    INIT -> Running;
    Running -> Running;
}
policy {
}
loop {
    plan -> act;
    stop when state == Done;
};
`)
	msgs := messages(ds)
	require.Contains(t, msgs, "agent 'A' stop condition targets unknown state 'Done'")
	found := false
	for _, m := range msgs {
		if m == "agent 'A' closed state cycle without exit: Running" {
			found = true
		}
	}
	require.True(t, found)
	require.Contains(t, msgs, "agent 'A' may not terminate")
}

func TestAgentMaxIterationsSuppressesOnlyMayNotTerminate(t *testing.T) {
	ds := analyzeSrc(t, `
agent A() -> Int
state {
    INIT -> Running;
    Running -> Running;
}
policy {
    max_iterations = 5;
}
loop {
    plan -> act;
    stop when state == Done;
};
`)
	msgs := messages(ds)
	require.NotContains(t, msgs, "agent 'A' may not terminate")
	require.Contains(t, msgs, "agent 'A' stop condition targets unknown state 'Done'")
}

func TestCapabilityWrongArityIsRejected(t *testing.T) {
	ds := analyzeSrc(t, `cap Model<"openai">;`)
	require.NotEmpty(t, ds)
	require.Contains(t, messages(ds)[0], "capability 'Model' requires 3 argument(s), found 1")
}

func TestGenericArityMismatchIsRejected(t *testing.T) {
	ds := analyzeSrc(t, `
record Box<T> { value: T; }
record Wrong { pair: Box<Int, Int>; }
`)
	require.NotEmpty(t, ds)
	found := false
	for _, m := range messages(ds) {
		if m == "record 'Wrong' references 'Box' with 2 type argument(s) but it declares 1" {
			found = true
		}
	}
	require.True(t, found)
}

func TestGenericSingleBoundNotSatisfiedIsRejected(t *testing.T) {
	ds := analyzeSrc(t, `
record Bound { id: Int; }
record Box<T: Bound> { value: T; }
record Holder { boxed: Box<Int>; }
`)
	require.NotEmpty(t, ds)
	found := false
	for _, m := range messages(ds) {
		if m == "record 'Holder' type argument 'Int' for 'T' must satisfy bound 'Bound'" {
			found = true
		}
	}
	require.True(t, found)
}

func TestGenericMultipleBoundsNotSatisfiedIsRejected(t *testing.T) {
	ds := analyzeSrc(t, `
record A { id: Int; }
record B { id: Int; }
record Box<T: A+B> { value: T; }
record Holder { boxed: Box<Int>; }
`)
	require.NotEmpty(t, ds)
	found := false
	for _, m := range messages(ds) {
		if m == "record 'Holder' type argument 'Int' for 'T' must satisfy bounds 'A + B'" {
			found = true
		}
	}
	require.True(t, found)
}

func TestGenericBoundSatisfiedByStructuralMatchPasses(t *testing.T) {
	ds := analyzeSrc(t, `
record Bound { id: Int; }
record Box<T: Bound> { value: T; }
record Holder { boxed: Box<Bound>; }
`)
	require.Empty(t, ds)
}

func TestNetEffectArgumentMismatchIsRejected(t *testing.T) {
	ds := analyzeSrc(t, `
cap Net<"example.com">;
fn fetch() -> Int !{ net("other.com") } requires [Net<"example.com">] { 1 }
`)
	require.NotEmpty(t, ds)
	found := false
	for _, m := range messages(ds) {
		if m == "function 'fetch' uses effect 'net(other.com)' but does not require a matching 'Net' capability instance" {
			found = true
		}
	}
	require.True(t, found)
}

func TestRequiresUnmatchedInstanceIsRejected(t *testing.T) {
	ds := analyzeSrc(t, `
cap Net<"example.com">;
fn fetch() -> Int !{ net } requires [Net<"other.com">] { 1 }
`)
	require.NotEmpty(t, ds)
	found := false
	for _, m := range messages(ds) {
		if m == "function 'fetch' requires capability 'Net<\"other.com\">' but no matching instance is declared" {
			found = true
		}
	}
	require.True(t, found)
}
