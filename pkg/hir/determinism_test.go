package hir

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/telagod/kooixc/pkg/lexer"
	"github.com/telagod/kooixc/pkg/parser"
)

// TestLowerIsDeterministic checks Lower's idempotence-of-repetition
// property: running it twice over the same parsed program yields
// structurally identical HIR, never drifting via map iteration order or
// shared mutable state.
func TestLowerIsDeterministic(t *testing.T) {
	const src = `
cap Net<"api.openai.com">;

record Doc { title: Text; body: Text; }

enum Outcome { Accepted; Rejected(Text); }

fn summarize(doc: Text) -> Text { doc }

workflow Review(doc: Text) -> Text
  requires [Net<"api.openai.com">]
  steps {
    step1: summarize(doc);
  }
  output {
    result: Text = step1;
  };
`
	tokens, lexErr := lexer.Lex(src)
	require.Nil(t, lexErr)
	program, parseErr := parser.Parse(tokens)
	require.Nil(t, parseErr)

	first := Lower(program)
	second := Lower(program)

	require.Empty(t, cmp.Diff(first, second))
}
