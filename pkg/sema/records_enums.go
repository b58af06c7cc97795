package sema

import (
	"github.com/telagod/kooixc/pkg/ast"
	"github.com/telagod/kooixc/pkg/diagnostic"
	"github.com/telagod/kooixc/pkg/hir"
	"github.com/telagod/kooixc/pkg/position"
)

// builtinTypeHeads are the scalar and container heads known without a
// record/enum declaration.
var builtinTypeHeads = map[string]bool{
	"Int": true, "Bool": true, "Text": true, "Unit": true,
	"List": true, "Map": true, "Option": true, "Result": true,
}

// checkRecords validates every record declaration: it must declare at least
// one field, its field names and generic parameter names must each be
// unique, and a field whose type names an unknown record/enum head is
// rejected.
func checkRecords(program *hir.Program, idx *index, bag *diagnostic.Bag) {
	for _, r := range program.Records {
		if len(r.Fields) == 0 {
			bag.Warnf(r.Span, "record '%s' declares no fields", r.Name)
		}

		seenFields := map[string]bool{}
		for _, f := range r.Fields {
			if seenFields[f.Name] {
				bag.Errorf(r.Span, "record '%s' repeats field '%s'", r.Name, f.Name)
				continue
			}
			seenFields[f.Name] = true
		}

		checkGenericsUnique(r.Generics, "record", r.Name, r.Span, bag)

		for _, f := range r.Fields {
			checkTypeRefKnown(f.Type, r.Generics, idx, "record", r.Name, r.Span, bag)
		}
	}
}

// checkEnums validates every enum declaration: it must declare at least one
// variant, its variant names and generic parameter names must each be
// unique, and a payload type naming an unknown record/enum head is
// rejected.
func checkEnums(program *hir.Program, idx *index, bag *diagnostic.Bag) {
	for _, e := range program.Enums {
		if len(e.Variants) == 0 {
			bag.Warnf(e.Span, "enum '%s' declares no variants", e.Name)
		}

		seenVariants := map[string]bool{}
		for _, v := range e.Variants {
			if seenVariants[v.Name] {
				bag.Errorf(e.Span, "enum '%s' repeats variant '%s'", e.Name, v.Name)
				continue
			}
			seenVariants[v.Name] = true
		}

		checkGenericsUnique(e.Generics, "enum", e.Name, e.Span, bag)

		for _, v := range e.Variants {
			if v.Payload != nil {
				checkTypeRefKnown(*v.Payload, e.Generics, idx, "enum", e.Name, e.Span, bag)
			}
		}
	}
}

func checkGenericsUnique(generics []ast.GenericParam, kind, name string, span position.Span, bag *diagnostic.Bag) {
	seen := map[string]bool{}
	for _, g := range generics {
		if seen[g.Name] {
			bag.Errorf(span, "%s '%s' repeats generic parameter '%s'", kind, name, g.Name)
			continue
		}
		seen[g.Name] = true

		seenBound := map[string]bool{}
		for _, b := range g.Bounds {
			printed := b.String()
			if seenBound[printed] {
				bag.Warnf(span, "%s '%s' generic parameter '%s' repeats bound '%s'", kind, name, g.Name, printed)
				continue
			}
			seenBound[printed] = true
		}
	}
}

// checkTypeRefKnown reports an error if t's head is neither a builtin
// scalar/container, a declared generic parameter of the enclosing
// declaration, nor a declared record or enum. A bare generic parameter head
// may carry no type arguments of its own. A reference to a declared generic
// record/enum is checked for arity and per-parameter bound satisfaction via
// checkGenericArity. It then recurses into t's type-kind arguments.
func checkTypeRefKnown(t ast.TypeRef, generics []ast.GenericParam, idx *index, kind, name string, span position.Span, bag *diagnostic.Bag) {
	head := t.Head()
	isGeneric := false
	for _, g := range generics {
		if g.Name == head {
			isGeneric = true
			break
		}
	}

	if isGeneric {
		if len(t.Args) > 0 {
			bag.Errorf(span, "%s '%s' generic parameter '%s' may not take type arguments here", kind, name, head)
		}
	} else {
		if !builtinTypeHeads[head] {
			_, isRecord := idx.records[head]
			_, isEnum := idx.enums[head]
			if !isRecord && !isEnum {
				bag.Errorf(span, "%s '%s' references unknown type '%s'", kind, name, head)
				return
			}
		}
		checkGenericArity(t, idx, kind, name, span, bag)
	}

	for _, a := range t.Args {
		if a.Kind == ast.TypeArgType && a.Type != nil {
			checkTypeRefKnown(*a.Type, generics, idx, kind, name, span, bag)
		}
	}
}
