package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/telagod/kooixc/pkg/ast"
	"github.com/telagod/kooixc/pkg/lexer"
)

func parseSrc(t *testing.T, src string) *ast.Program {
	t.Helper()
	toks, lexErr := lexer.Lex(src)
	require.Nil(t, lexErr)
	prog, err := Parse(toks)
	require.Nil(t, err)
	return prog
}

func TestParseCapabilityDecl(t *testing.T) {
	prog := parseSrc(t, `cap Net<"api.openai.com">;`)
	require.Len(t, prog.Items, 1)
	cap, ok := prog.Items[0].(*ast.CapabilityDecl)
	require.True(t, ok)
	require.Equal(t, "Net", cap.Capability.Name)
	require.Equal(t, `Net<"api.openai.com">`, cap.Capability.String())
}

func TestParseImportDecl(t *testing.T) {
	prog := parseSrc(t, `import "util/text.kooix" as Text;`)
	imp := prog.Items[0].(*ast.ImportDecl)
	require.Equal(t, "util/text.kooix", imp.Path)
	require.Equal(t, "Text", imp.Alias)
}

func TestParseRecordAndEnumDecl(t *testing.T) {
	prog := parseSrc(t, `
record Pair<T: Bound> where T: Other {
  a: Int;
  b: T;
}
enum Option<T> {
  None;
  Some(T);
}
`)
	require.Len(t, prog.Items, 2)

	rec := prog.Items[0].(*ast.RecordDecl)
	require.Equal(t, "Pair", rec.Name)
	require.Len(t, rec.Generics, 1)
	require.Equal(t, "T", rec.Generics[0].Name)
	require.Len(t, rec.Generics[0].Bounds, 2)
	require.Equal(t, "Bound", rec.Generics[0].Bounds[0].Name)
	require.Equal(t, "Other", rec.Generics[0].Bounds[1].Name)
	require.Len(t, rec.Fields, 2)

	en := prog.Items[1].(*ast.EnumDecl)
	require.Equal(t, "Option", en.Name)
	require.Len(t, en.Variants, 2)
	require.Nil(t, en.Variants[0].Payload)
	require.NotNil(t, en.Variants[1].Payload)
	require.Equal(t, "T", en.Variants[1].Payload.Name)
}

func TestParseFunctionDeclFullClauses(t *testing.T) {
	prog := parseSrc(t, `
fn summarize(doc: Text) -> Summary
  intent "summarize a document"
  !{model(openai), net}
  requires [Net<"api.openai.com">]
  ensures [output.length <= 280]
  failure {
    timeout -> retry(max = 3);
  }
  evidence {
    trace "summarize";
    metrics [latency_ms];
  };
`)
	fn := prog.Items[0].(*ast.FunctionDecl)
	require.Equal(t, "summarize", fn.Name)
	require.True(t, fn.HasIntent)
	require.Equal(t, "summarize a document", fn.Intent)
	require.Len(t, fn.Effects, 2)
	require.Equal(t, "model", fn.Effects[0].Name)
	require.Equal(t, "openai", fn.Effects[0].Argument)
	require.Len(t, fn.Requires, 1)
	require.Len(t, fn.Ensures, 1)
	require.NotNil(t, fn.Failure)
	require.Len(t, fn.Failure.Rules, 1)
	require.Equal(t, "retry", fn.Failure.Rules[0].Action.Name)
	require.NotNil(t, fn.Evidence)
	require.True(t, fn.Evidence.HasTrace)
	require.Nil(t, fn.Body)
}

func TestParseFunctionBodyArithmeticAndIf(t *testing.T) {
	prog := parseSrc(t, `
fn add(a: Int, b: Int) -> Int { a + b }
fn main() -> Int {
  let x: Int = add(20, 22);
  if x == 42 {
    x
  } else {
    0
  }
}
`)
	require.Len(t, prog.Items, 2)
	add := prog.Items[0].(*ast.FunctionDecl)
	require.NotNil(t, add.Body)
	bin, ok := add.Body.Tail.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, "+", bin.Op)

	main := prog.Items[1].(*ast.FunctionDecl)
	require.Len(t, main.Body.Stmts, 1)
	let := main.Body.Stmts[0].(*ast.LetStmt)
	require.Equal(t, "x", let.Name)
	call, ok := let.Value.(*ast.CallExpr)
	require.True(t, ok)
	require.Equal(t, "add", call.Callee)
	require.Len(t, call.Args, 2)

	ifExpr, ok := main.Body.Tail.(*ast.IfExpr)
	require.True(t, ok)
	require.NotNil(t, ifExpr.Else)
}

func TestParseRecordLiteralAndFieldAccess(t *testing.T) {
	prog := parseSrc(t, `
record Pair { a: Int; b: Int; }
fn main() -> Int {
  let p: Pair = Pair { a: 1; b: 2; };
  p.a + p.b
}
`)
	main := prog.Items[1].(*ast.FunctionDecl)
	let := main.Body.Stmts[0].(*ast.LetStmt)
	lit, ok := let.Value.(*ast.RecordLit)
	require.True(t, ok)
	require.Equal(t, "Pair", lit.Record)
	require.Len(t, lit.Fields, 2)

	bin := main.Body.Tail.(*ast.BinaryExpr)
	left := bin.Left.(*ast.FieldAccess)
	require.Equal(t, "a", left.Field)
}

func TestParseMatchExpr(t *testing.T) {
	prog := parseSrc(t, `
fn describe(o: Option) -> Int {
  match o {
    Option.Some(v) => v,
    Option.None => 0,
    _ => 0,
  }
}
`)
	fn := prog.Items[0].(*ast.FunctionDecl)
	m := fn.Body.Tail.(*ast.MatchExpr)
	require.Len(t, m.Arms, 3)
	require.Equal(t, "Option", m.Arms[0].Enum)
	require.Equal(t, "Some", m.Arms[0].Variant)
	require.True(t, m.Arms[0].HasBind)
	require.Equal(t, "v", m.Arms[0].Bind)
	require.True(t, m.Arms[2].Wildcard)
}

func TestParseWorkflowDecl(t *testing.T) {
	prog := parseSrc(t, `
workflow summarizeDoc(doc: Text) -> Summary
  intent "summarize"
  requires [Net<"api.openai.com">]
  steps {
    fetched: fetch(doc) ensures [output.length > 0] on_fail -> abort("fetch failed");
    summary: summarize(fetched) ensures [output.length <= 280];
  }
  output {
    result: Summary = summary;
  }
  evidence {
    trace "workflow";
    metrics [latency_ms, tokens];
  };
`)
	wf := prog.Items[0].(*ast.WorkflowDecl)
	require.Equal(t, "summarizeDoc", wf.Name)
	require.Len(t, wf.Steps, 2)
	require.Equal(t, "fetched", wf.Steps[0].ID)
	require.NotNil(t, wf.Steps[0].OnFail)
	require.Equal(t, "abort", wf.Steps[0].OnFail.Name)
	require.Len(t, wf.Output, 1)
	require.Equal(t, []string{"summary"}, wf.Output[0].Source)
}

func TestParseAgentDecl(t *testing.T) {
	prog := parseSrc(t, `
agent Researcher() -> Int
  intent "research loop"
  state {
    INIT -> RUNNING;
    RUNNING -> RUNNING, DONE;
    any -> FAILED;
  }
  policy {
    allow_tools ["search", "fetch"];
    deny_tools ["shell"];
    max_iterations = 5;
    human_in_loop when state == FAILED;
  }
  requires [Tool<"search", "web">]
  loop {
    plan -> act -> observe;
    stop when state == DONE;
  }
  ensures [output > 0]
  evidence {
    trace "researcher";
    metrics [iterations];
  };
`)
	agent := prog.Items[0].(*ast.AgentDecl)
	require.Equal(t, "Researcher", agent.Name)
	require.Len(t, agent.StateRules, 3)
	require.Equal(t, "any", agent.StateRules[2].From)
	require.Len(t, agent.Policy.AllowTools, 2)
	require.True(t, agent.Policy.HasMaxIterations)
	require.Equal(t, "5", agent.Policy.MaxIterations)
	require.NotNil(t, agent.Policy.HumanInLoopWhen)
	require.Equal(t, []string{"plan", "act", "observe"}, agent.LoopSpec.Stages)
}

func TestParseErrorReportsSpan(t *testing.T) {
	toks, lexErr := lexer.Lex(`fn broken(`)
	require.Nil(t, lexErr)
	_, err := Parse(toks)
	require.NotNil(t, err)
	require.Contains(t, err.Message, "expected identifier")
}

func TestParseTopLevelUnknownDecl(t *testing.T) {
	toks, lexErr := lexer.Lex(`let x = 1;`)
	require.Nil(t, lexErr)
	_, err := Parse(toks)
	require.NotNil(t, err)
	require.Contains(t, err.Message, "expected top-level declaration")
}
