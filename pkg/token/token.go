// Package token defines the lexical tokens of the Kooix source language.
package token

import (
	"fmt"

	"github.com/telagod/kooixc/pkg/position"
)

// Kind identifies the lexical class of a Token.
type Kind int

const (
	EOF Kind = iota
	Ident
	String
	Number

	// Keywords
	KwCap
	KwImport
	KwAs
	KwFn
	KwWorkflow
	KwAgent
	KwRecord
	KwEnum
	KwSteps
	KwOnFail
	KwOutput
	KwState
	KwPolicy
	KwLoop
	KwAllowTools
	KwDenyTools
	KwMaxIterations
	KwHumanInLoop
	KwStop
	KwWhen
	KwAny
	KwIntent
	KwEnsures
	KwFailure
	KwEvidence
	KwTrace
	KwMetrics
	KwIn
	KwRequires
	KwWhere
	KwLet
	KwReturn
	KwTrue
	KwFalse
	KwIf
	KwElse
	KwWhile
	KwMatch

	// Punctuation
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	LAngle
	RAngle
	Comma
	Dot
	Colon
	ColonColon
	Semicolon
	Bang
	Eq
	EqEq
	NotEq
	Lte
	Gte
	Arrow
	FatArrow
	Plus
)

var names = map[Kind]string{
	EOF: "EOF", Ident: "identifier", String: "string literal", Number: "number literal",
	KwCap: "cap", KwImport: "import", KwAs: "as", KwFn: "fn", KwWorkflow: "workflow",
	KwAgent: "agent", KwRecord: "record", KwEnum: "enum", KwSteps: "steps", KwOnFail: "on_fail",
	KwOutput: "output", KwState: "state", KwPolicy: "policy", KwLoop: "loop",
	KwAllowTools: "allow_tools", KwDenyTools: "deny_tools", KwMaxIterations: "max_iterations",
	KwHumanInLoop: "human_in_loop", KwStop: "stop", KwWhen: "when", KwAny: "any",
	KwIntent: "intent", KwEnsures: "ensures", KwFailure: "failure", KwEvidence: "evidence",
	KwTrace: "trace", KwMetrics: "metrics", KwIn: "in", KwRequires: "requires", KwWhere: "where",
	KwLet: "let", KwReturn: "return", KwTrue: "true", KwFalse: "false", KwIf: "if",
	KwElse: "else", KwWhile: "while", KwMatch: "match",
	LParen: "(", RParen: ")", LBrace: "{", RBrace: "}", LBracket: "[", RBracket: "]",
	LAngle: "<", RAngle: ">", Comma: ",", Dot: ".", Colon: ":", ColonColon: "::",
	Semicolon: ";", Bang: "!", Eq: "=", EqEq: "==", NotEq: "!=", Lte: "<=", Gte: ">=",
	Arrow: "->", FatArrow: "=>", Plus: "+",
}

func (k Kind) String() string {
	if name, ok := names[k]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(k))
}

// Keywords maps the reserved-word spellings to their Kind.
var Keywords = map[string]Kind{
	"cap": KwCap, "import": KwImport, "as": KwAs, "fn": KwFn, "workflow": KwWorkflow,
	"agent": KwAgent, "record": KwRecord, "enum": KwEnum, "steps": KwSteps,
	"on_fail": KwOnFail, "output": KwOutput, "state": KwState, "policy": KwPolicy,
	"loop": KwLoop, "allow_tools": KwAllowTools, "deny_tools": KwDenyTools,
	"max_iterations": KwMaxIterations, "human_in_loop": KwHumanInLoop, "stop": KwStop,
	"when": KwWhen, "any": KwAny, "intent": KwIntent, "ensures": KwEnsures,
	"failure": KwFailure, "evidence": KwEvidence, "trace": KwTrace, "metrics": KwMetrics,
	"in": KwIn, "requires": KwRequires, "where": KwWhere, "let": KwLet, "return": KwReturn,
	"true": KwTrue, "false": KwFalse, "if": KwIf, "else": KwElse, "while": KwWhile,
	"match": KwMatch,
}

// Token is a single lexical unit: a kind, its span, and (for Ident, String,
// Number) the literal text it was lexed from.
type Token struct {
	Kind  Kind
	Text  string
	Span  position.Span
}

func (t Token) String() string {
	if t.Text != "" {
		return fmt.Sprintf("%s(%q)", t.Kind, t.Text)
	}
	return t.Kind.String()
}
