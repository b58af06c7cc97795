package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/telagod/kooixc/pkg/token"
)

func kinds(tokens []token.Token) []token.Kind {
	out := make([]token.Kind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

func TestLexKeywordsAndPunctuation(t *testing.T) {
	toks, err := Lex(`cap Net<"api.openai.com">;`)
	require.Nil(t, err)
	require.Equal(t, []token.Kind{
		token.KwCap, token.Ident, token.LAngle, token.String, token.RAngle, token.Semicolon, token.EOF,
	}, kinds(toks))
	require.Equal(t, "Net", toks[1].Text)
	require.Equal(t, "api.openai.com", toks[3].Text)
}

func TestLexTwoCharOperatorsWinOverPrefix(t *testing.T) {
	toks, err := Lex("-> => == != <= >= ::")
	require.Nil(t, err)
	require.Equal(t, []token.Kind{
		token.Arrow, token.FatArrow, token.EqEq, token.NotEq, token.Lte, token.Gte, token.ColonColon, token.EOF,
	}, kinds(toks))
}

func TestLexCommentsAndWhitespaceSkipped(t *testing.T) {
	toks, err := Lex("fn // trailing comment\n  main")
	require.Nil(t, err)
	require.Equal(t, []token.Kind{token.KwFn, token.Ident, token.EOF}, kinds(toks))
}

func TestLexStringEscapes(t *testing.T) {
	toks, err := Lex(`"line\nwith\ttab and \"quote\""`)
	require.Nil(t, err)
	require.Equal(t, "line\nwith\ttab and \"quote\"", toks[0].Text)
}

func TestLexUnterminatedString(t *testing.T) {
	_, err := Lex(`"unterminated`)
	require.NotNil(t, err)
	require.Contains(t, err.Message, "unterminated string literal")
}

func TestLexUnexpectedCharacter(t *testing.T) {
	_, err := Lex("@")
	require.NotNil(t, err)
	require.Contains(t, err.Message, "unexpected character '@'")
}

func TestLexDashNotArrow(t *testing.T) {
	_, err := Lex("-")
	require.NotNil(t, err)
	require.Contains(t, err.Message, "unexpected '-', expected '->'")
}

func TestLexNumberPreservedAsText(t *testing.T) {
	toks, err := Lex("42 007")
	require.Nil(t, err)
	require.Equal(t, "42", toks[0].Text)
	require.Equal(t, "007", toks[1].Text)
}
