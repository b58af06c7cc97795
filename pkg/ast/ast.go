// Package ast defines the syntax tree produced by the Kooix parser, using
// plain struct-valued nodes that each carry their own source span, covering
// the capability/record/enum/function/workflow/agent item set Kooix
// programs are built from.
package ast

import (
	"fmt"
	"strings"

	"github.com/telagod/kooixc/pkg/position"
)

// Program is the root of a parsed file: an ordered list of top-level items.
type Program struct {
	Items []Item
}

// Item is implemented by every top-level declaration kind.
type Item interface {
	itemNode()
	Span() position.Span
}

// TypeRef is a named type reference with optional type/value arguments,
// e.g. Net<"host"> or Pair<Int, Bool>.
type TypeRef struct {
	Name string
	Args []TypeArg
	Sp   position.Span
}

func (t TypeRef) Head() string { return t.Name }

func (t TypeRef) Span() position.Span { return t.Sp }

func (t TypeRef) String() string {
	if len(t.Args) == 0 {
		return t.Name
	}
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.Display()
	}
	return fmt.Sprintf("%s<%s>", t.Name, strings.Join(parts, ", "))
}

// TypeArgKind distinguishes the three forms a type argument may take.
type TypeArgKind int

const (
	TypeArgType TypeArgKind = iota
	TypeArgString
	TypeArgNumber
)

// TypeArg is one element of a TypeRef's argument list: a nested type, a
// string literal, or a numeric literal.
type TypeArg struct {
	Kind   TypeArgKind
	Type   *TypeRef
	String string
	Number string
}

// Display renders the argument as it appears inside a TypeRef's `<...>`.
func (a TypeArg) Display() string {
	switch a.Kind {
	case TypeArgType:
		return a.Type.String()
	case TypeArgString:
		return fmt.Sprintf("%q", a.String)
	default:
		return a.Number
	}
}

// GenericParam is a declared generic parameter with its structural bounds.
type GenericParam struct {
	Name   string
	Bounds []TypeRef
}

// CapabilityDecl is `cap TypeRef;`.
type CapabilityDecl struct {
	Capability TypeRef
	Sp         position.Span
}

func (d *CapabilityDecl) itemNode()            {}
func (d *CapabilityDecl) Span() position.Span { return d.Sp }

// ImportDecl is `import "path" [as Ident];`.
type ImportDecl struct {
	Path  string
	Alias string // empty when no `as` clause
	Sp    position.Span
}

func (d *ImportDecl) itemNode()            {}
func (d *ImportDecl) Span() position.Span { return d.Sp }

// RecordField is one `name: Type` field of a record.
type RecordField struct {
	Name string
	Type TypeRef
}

// RecordDecl is a `record Name<generics> { fields... }` declaration.
type RecordDecl struct {
	Name     string
	Generics []GenericParam
	Fields   []RecordField
	Sp       position.Span
}

func (d *RecordDecl) itemNode()            {}
func (d *RecordDecl) Span() position.Span { return d.Sp }

// EnumVariant is one variant of an enum, with an optional payload type.
type EnumVariant struct {
	Name    string
	Payload *TypeRef
}

// EnumDecl is an `enum Name<generics> { variants... }` declaration.
type EnumDecl struct {
	Name     string
	Generics []GenericParam
	Variants []EnumVariant
	Sp       position.Span
}

func (d *EnumDecl) itemNode()            {}
func (d *EnumDecl) Span() position.Span { return d.Sp }

// Param is one function/workflow/agent parameter.
type Param struct {
	Name string
	Type TypeRef
}

// Effect is a declared side-effect, e.g. `model(openai)` or `net`.
type Effect struct {
	Name     string
	Argument string // empty when the effect takes no argument
	HasArg   bool
}

// PredicateOp is the comparison operator of an EnsureClause.
type PredicateOp int

const (
	OpEq PredicateOp = iota
	OpNotEq
	OpLt
	OpLte
	OpGt
	OpGte
	OpIn
)

func (o PredicateOp) String() string {
	switch o {
	case OpEq:
		return "=="
	case OpNotEq:
		return "!="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	default:
		return "in"
	}
}

// PredicateValueKind distinguishes the three forms a predicate operand
// may take.
type PredicateValueKind int

const (
	PredicatePath PredicateValueKind = iota
	PredicateString
	PredicateNumber
)

// PredicateValue is one side of an EnsureClause.
type PredicateValue struct {
	Kind    PredicateValueKind
	Path    []string
	String  string
	Number  string
}

// EnsureClause is a single `left op right` postcondition.
type EnsureClause struct {
	Left  PredicateValue
	Op    PredicateOp
	Right PredicateValue
}

// FailureValueKind distinguishes the three forms a failure-action argument
// value may take.
type FailureValueKind int

const (
	FailureValueIdent FailureValueKind = iota
	FailureValueString
	FailureValueNumber
)

// FailureActionArg is one (optionally keyed) argument to a failure action.
type FailureActionArg struct {
	Key    string // empty for positional args
	HasKey bool
	Kind   FailureValueKind
	Value  string
}

// FailureAction is `name(args...)`.
type FailureAction struct {
	Name string
	Args []FailureActionArg
	Sp   position.Span
}

// FailureRule is `condition -> action;` within a failure block.
type FailureRule struct {
	Condition string
	Action    FailureAction
}

// FailurePolicy is the `failure { rule; rule; ... }` block.
type FailurePolicy struct {
	Rules []FailureRule
}

// EvidenceSpec is the `evidence { trace "..."; metrics [...]; }` block.
type EvidenceSpec struct {
	Trace       string
	HasTrace    bool
	Metrics     []string
	Sp          position.Span
}

// FunctionDecl is a `fn name<generics>(params) -> Type ... { body }` or
// header-only (no body, trailing `;`) declaration.
type FunctionDecl struct {
	Name       string
	Generics   []GenericParam
	Params     []Param
	ReturnType TypeRef
	Intent     string
	HasIntent  bool
	Effects    []Effect
	Requires   []TypeRef
	Ensures    []EnsureClause
	Failure    *FailurePolicy
	Evidence   *EvidenceSpec
	Body       *Block // nil for header-only declarations
	Sp         position.Span
}

func (d *FunctionDecl) itemNode()            {}
func (d *FunctionDecl) Span() position.Span { return d.Sp }

// WorkflowCallArgKind distinguishes the three forms a step call argument
// may take.
type WorkflowCallArgKind int

const (
	CallArgPath WorkflowCallArgKind = iota
	CallArgString
	CallArgNumber
)

// WorkflowCallArg is one argument to a workflow step's call.
type WorkflowCallArg struct {
	Kind   WorkflowCallArgKind
	Path   []string
	String string
	Number string
}

// WorkflowCall is the `target(args...)` call of a workflow step.
type WorkflowCall struct {
	Target string
	Args   []WorkflowCallArg
}

// WorkflowStep is one `id: call(...) [ensures ...] [on_fail -> action];`.
type WorkflowStep struct {
	ID      string
	Call    WorkflowCall
	Ensures []EnsureClause
	OnFail  *FailureAction
	Sp      position.Span
}

// OutputField is one field of a workflow's `output { ... }` contract.
type OutputField struct {
	Name   string
	Type   TypeRef
	Source []string // nil when unset; name/type inference applies
}

// WorkflowDecl is a `workflow name(params) -> Type { steps... output... }`.
type WorkflowDecl struct {
	Name       string
	Params     []Param
	ReturnType TypeRef
	Intent     string
	HasIntent  bool
	Requires   []TypeRef
	Steps      []WorkflowStep
	Output     []OutputField
	Evidence   *EvidenceSpec
	Sp         position.Span
}

func (d *WorkflowDecl) itemNode()            {}
func (d *WorkflowDecl) Span() position.Span { return d.Sp }

// StateRule is one `from -> to1, to2;` agent state transition rule. From
// is the literal text "any" for the any-source pseudo-rule.
type StateRule struct {
	From string
	To   []string
}

// AgentPolicy is the `policy { allow_tools; deny_tools; max_iterations;
// human_in_loop when ...; }` block.
type AgentPolicy struct {
	AllowTools        []string
	DenyTools         []string
	MaxIterations     string // empty when unset
	HasMaxIterations  bool
	HumanInLoopWhen   *EnsureClause
}

// LoopSpec is the `loop { stage -> stage -> ...; stop when ...; }` block.
type LoopSpec struct {
	Stages   []string
	StopWhen EnsureClause
}

// AgentDecl is a policy-bounded agent declaration.
type AgentDecl struct {
	Name       string
	Params     []Param
	ReturnType TypeRef
	Intent     string
	HasIntent  bool
	StateRules []StateRule
	Policy     AgentPolicy
	Requires   []TypeRef
	LoopSpec   LoopSpec
	Ensures    []EnsureClause
	Evidence   *EvidenceSpec
	Sp         position.Span
}

func (d *AgentDecl) itemNode()            {}
func (d *AgentDecl) Span() position.Span { return d.Sp }
