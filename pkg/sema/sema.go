// Package sema implements the semantic analyzer: the rule checks that run
// over a lowered hir.Program after parsing and module normalization. Each
// check group accumulates into a shared diagnostic.Bag rather than failing
// fast, the way minzc's pkg/semantic walks a whole AST and reports every
// problem it can find in one pass.
package sema

import (
	"github.com/telagod/kooixc/pkg/ast"
	"github.com/telagod/kooixc/pkg/diagnostic"
	"github.com/telagod/kooixc/pkg/hir"
	"github.com/telagod/kooixc/pkg/position"
)

// RecordSchema is the declaration-time shape of a record, indexed for
// field-type lookup during literal and projection checking.
type RecordSchema struct {
	Name     string
	Generics []ast.GenericParam
	Fields   map[string]ast.TypeRef
	Order    []string
}

// EnumSchema is the declaration-time shape of an enum, indexed for variant
// lookup during literal, path, and match checking.
type EnumSchema struct {
	Name     string
	Generics []ast.GenericParam
	Variants map[string]*ast.TypeRef
	Order    []string
}

// Signature is the call shape of anything a workflow step or expression
// call may target: a function, workflow, or agent.
type Signature struct {
	Name       string
	Kind       string // "function", "workflow", "agent"
	Params     []hir.Param
	ReturnType ast.TypeRef
	Effects    []ast.Effect
}

// index is the set of declaration tables every check group consults.
type index struct {
	capabilities        map[string]bool
	capabilityInstances map[string]bool
	capabilityArgs      map[string]map[string]bool
	records             map[string]*RecordSchema
	enums               map[string]*EnumSchema
	signatures          map[string]*Signature
}

// Analyze runs every semantic rule group over program and returns every
// diagnostic produced, sorted by span start.
func Analyze(program *hir.Program) []diagnostic.Diagnostic {
	var bag diagnostic.Bag

	idx := buildIndex(program, &bag)

	checkDuplicateTopLevelNames(program, &bag)
	checkCapabilities(program, idx, &bag)
	checkRecords(program, idx, &bag)
	checkEnums(program, idx, &bag)
	checkFunctions(program, idx, &bag)
	checkWorkflows(program, idx, &bag)
	checkAgents(program, idx, &bag)

	return bag.Diagnostics()
}

func buildIndex(program *hir.Program, bag *diagnostic.Bag) *index {
	idx := &index{
		capabilities:        map[string]bool{},
		capabilityInstances: map[string]bool{},
		records:             map[string]*RecordSchema{},
		enums:               map[string]*EnumSchema{},
		signatures:          map[string]*Signature{},
	}

	for _, c := range program.Capabilities {
		idx.capabilities[c.Type.Head()] = true
		idx.capabilityInstances[c.Type.String()] = true
		recordCapabilityArguments(idx, c.Type)
	}

	for _, r := range program.Records {
		schema := &RecordSchema{Name: r.Name, Generics: r.Generics, Fields: map[string]ast.TypeRef{}}
		for _, f := range r.Fields {
			if _, exists := schema.Fields[f.Name]; !exists {
				schema.Order = append(schema.Order, f.Name)
			}
			schema.Fields[f.Name] = f.Type
		}
		idx.records[r.Name] = schema
	}

	for _, e := range program.Enums {
		schema := &EnumSchema{Name: e.Name, Generics: e.Generics, Variants: map[string]*ast.TypeRef{}}
		for _, v := range e.Variants {
			if _, exists := schema.Variants[v.Name]; !exists {
				schema.Order = append(schema.Order, v.Name)
			}
			schema.Variants[v.Name] = v.Payload
		}
		idx.enums[e.Name] = schema
	}

	for _, f := range program.Functions {
		idx.signatures[f.Name] = &Signature{
			Name: f.Name, Kind: "function", Params: f.Params, ReturnType: f.ReturnType, Effects: f.Effects,
		}
	}
	for _, w := range program.Workflows {
		idx.signatures[w.Name] = &Signature{
			Name: w.Name, Kind: "workflow", Params: w.Params, ReturnType: w.ReturnType,
		}
	}
	for _, a := range program.Agents {
		idx.signatures[a.Name] = &Signature{
			Name: a.Name, Kind: "agent", Params: a.Params, ReturnType: a.ReturnType,
		}
	}

	return idx
}

// checkDuplicateTopLevelNames flags a name reused across any combination of
// function/workflow/agent/record/enum declarations; the invocable and type
// namespaces are each flat, so a collision anywhere in one is ambiguous.
func checkDuplicateTopLevelNames(program *hir.Program, bag *diagnostic.Bag) {
	seenInvocable := map[string]bool{}
	for _, f := range program.Functions {
		reportIfDuplicate(seenInvocable, f.Name, "function", f.Span, bag)
	}
	for _, w := range program.Workflows {
		reportIfDuplicate(seenInvocable, w.Name, "workflow", w.Span, bag)
	}
	for _, a := range program.Agents {
		reportIfDuplicate(seenInvocable, a.Name, "agent", a.Span, bag)
	}

	seenType := map[string]bool{}
	for _, r := range program.Records {
		reportIfDuplicate(seenType, r.Name, "record", r.Span, bag)
	}
	for _, e := range program.Enums {
		reportIfDuplicate(seenType, e.Name, "enum", e.Span, bag)
	}
}

func reportIfDuplicate(seen map[string]bool, name, kind string, span position.Span, bag *diagnostic.Bag) {
	if seen[name] {
		bag.Errorf(span, "duplicate %s declaration '%s'", kind, name)
		return
	}
	seen[name] = true
}
