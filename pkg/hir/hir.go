// Package hir holds the partitioned intermediate representation produced
// from a (possibly module-normalized) ast.Program: the same declarations
// split into per-kind slices so later stages iterate one declaration kind
// at a time instead of re-discriminating ast.Item on every visit, the way
// minzc's pkg/sema walks a flat ast.Program but keyed by kind internally.
package hir

import (
	"github.com/telagod/kooixc/pkg/ast"
	"github.com/telagod/kooixc/pkg/position"
)

// Program is the flattened, item-typed form of an ast.Program.
type Program struct {
	Capabilities []Capability
	Functions    []Function
	Workflows    []Workflow
	Agents       []Agent
	Records      []Record
	Enums        []Enum
}

type Capability struct {
	Type ast.TypeRef
	Span position.Span
}

type Param struct {
	Name string
	Type ast.TypeRef
}

type Function struct {
	Name       string
	Generics   []ast.GenericParam
	Params     []Param
	ReturnType ast.TypeRef
	Intent     string
	HasIntent  bool
	Effects    []ast.Effect
	Requires   []ast.TypeRef
	Ensures    []ast.EnsureClause
	Failure    *ast.FailurePolicy
	Evidence   *ast.EvidenceSpec
	Body       *ast.Block
	Span       position.Span
}

type Workflow struct {
	Name       string
	Params     []Param
	ReturnType ast.TypeRef
	Intent     string
	HasIntent  bool
	Requires   []ast.TypeRef
	Steps      []ast.WorkflowStep
	Output     []ast.OutputField
	Evidence   *ast.EvidenceSpec
	Span       position.Span
}

type Record struct {
	Name     string
	Generics []ast.GenericParam
	Fields   []ast.RecordField
	Span     position.Span
}

type Enum struct {
	Name     string
	Generics []ast.GenericParam
	Variants []ast.EnumVariant
	Span     position.Span
}

type Agent struct {
	Name       string
	Params     []Param
	ReturnType ast.TypeRef
	Intent     string
	HasIntent  bool
	StateRules []ast.StateRule
	Policy     ast.AgentPolicy
	Requires   []ast.TypeRef
	LoopSpec   ast.LoopSpec
	Ensures    []ast.EnsureClause
	Evidence   *ast.EvidenceSpec
	Span       position.Span
}

// Lower produces a fresh Program from program, one structural copy that
// flattens items by kind; it never mutates program.
func Lower(program *ast.Program) *Program {
	out := &Program{}
	for _, item := range program.Items {
		switch it := item.(type) {
		case *ast.CapabilityDecl:
			out.Capabilities = append(out.Capabilities, Capability{Type: it.Capability, Span: it.Sp})
		case *ast.ImportDecl:
			// imports carry no runtime meaning past module normalization.
		case *ast.FunctionDecl:
			out.Functions = append(out.Functions, lowerFunction(it))
		case *ast.WorkflowDecl:
			out.Workflows = append(out.Workflows, lowerWorkflow(it))
		case *ast.AgentDecl:
			out.Agents = append(out.Agents, lowerAgent(it))
		case *ast.RecordDecl:
			out.Records = append(out.Records, Record{
				Name: it.Name, Generics: it.Generics, Fields: it.Fields, Span: it.Sp,
			})
		case *ast.EnumDecl:
			out.Enums = append(out.Enums, Enum{
				Name: it.Name, Generics: it.Generics, Variants: it.Variants, Span: it.Sp,
			})
		}
	}
	return out
}

func lowerParams(params []ast.Param) []Param {
	out := make([]Param, len(params))
	for i, p := range params {
		out[i] = Param{Name: p.Name, Type: p.Type}
	}
	return out
}

func lowerFunction(d *ast.FunctionDecl) Function {
	return Function{
		Name: d.Name, Generics: d.Generics, Params: lowerParams(d.Params),
		ReturnType: d.ReturnType, Intent: d.Intent, HasIntent: d.HasIntent,
		Effects: d.Effects, Requires: d.Requires, Ensures: d.Ensures,
		Failure: d.Failure, Evidence: d.Evidence, Body: d.Body, Span: d.Sp,
	}
}

func lowerWorkflow(d *ast.WorkflowDecl) Workflow {
	return Workflow{
		Name: d.Name, Params: lowerParams(d.Params), ReturnType: d.ReturnType,
		Intent: d.Intent, HasIntent: d.HasIntent, Requires: d.Requires,
		Steps: d.Steps, Output: d.Output, Evidence: d.Evidence, Span: d.Sp,
	}
}

func lowerAgent(d *ast.AgentDecl) Agent {
	return Agent{
		Name: d.Name, Params: lowerParams(d.Params), ReturnType: d.ReturnType,
		Intent: d.Intent, HasIntent: d.HasIntent, StateRules: d.StateRules,
		Policy: d.Policy, Requires: d.Requires, LoopSpec: d.LoopSpec,
		Ensures: d.Ensures, Evidence: d.Evidence, Span: d.Sp,
	}
}

// InvocableNames returns the set of top-level names a workflow step or
// call expression may target: functions, workflows, and agents.
func (p *Program) InvocableNames() map[string]bool {
	out := map[string]bool{}
	for _, f := range p.Functions {
		out[f.Name] = true
	}
	for _, w := range p.Workflows {
		out[w.Name] = true
	}
	for _, a := range p.Agents {
		out[a.Name] = true
	}
	return out
}
