package sema

import (
	"github.com/telagod/kooixc/pkg/ast"
	"github.com/telagod/kooixc/pkg/diagnostic"
	"github.com/telagod/kooixc/pkg/hir"
	"github.com/telagod/kooixc/pkg/position"
)

// capabilityArgShape is the fixed positional argument kind list for one of
// the four recognized capability heads, per spec.md §4.5: Model takes
// (string, string, number), Net takes (string), Tool takes (string,
// string), Io takes none.
var capabilityArgShape = map[string][]ast.TypeArgKind{
	"Model": {ast.TypeArgString, ast.TypeArgString, ast.TypeArgNumber},
	"Net":   {ast.TypeArgString},
	"Tool":  {ast.TypeArgString, ast.TypeArgString},
	"Io":    {},
}

// checkCapabilities validates the shape of every `cap` declaration against
// its head and flags an exact duplicate instance: a program may declare
// the same printed capability instance only once, though distinct
// instances of the same head (e.g. two different `Tool<...>` grants) are
// allowed. An unrecognized head warns instead of erroring.
func checkCapabilities(program *hir.Program, idx *index, bag *diagnostic.Bag) {
	seenInstance := map[string]bool{}
	for _, c := range program.Capabilities {
		printed := c.Type.String()
		if seenInstance[printed] {
			bag.Errorf(c.Span, "duplicate capability declaration '%s'", printed)
		}
		seenInstance[printed] = true

		validateCapabilityShape(c.Type, c.Span, bag)
	}
}

// validateCapabilityShape enforces the fixed argument shape of the four
// recognized capability heads. An unrecognized head warns and carries no
// further shape rule of its own.
func validateCapabilityShape(t ast.TypeRef, span position.Span, bag *diagnostic.Bag) {
	shape, known := capabilityArgShape[t.Head()]
	if !known {
		bag.Warnf(span, "capability '%s' has an unrecognized head", t.Head())
		return
	}
	if len(t.Args) != len(shape) {
		bag.Errorf(span, "capability '%s' requires %d argument(s), found %d", t.Head(), len(shape), len(t.Args))
		return
	}
	for i, kind := range shape {
		if t.Args[i].Kind != kind {
			bag.Errorf(span, "capability '%s' argument %d has the wrong kind", t.Head(), i+1)
		}
	}
}

// checkRequires validates one declaration's `requires [...]` list: every
// entry's head must be granted by some `cap` declaration, and the exact
// printed instance (head plus arguments) must also be granted — requiring
// `Net<"a">` when only `Net<"b">` is declared is still an error.
func checkRequires(requires []ast.TypeRef, idx *index, kind, name string, span position.Span, bag *diagnostic.Bag) {
	for _, r := range requires {
		head := r.Head()
		if !idx.capabilities[head] {
			bag.Errorf(span, "%s '%s' requires capability '%s' which is not declared", kind, name, head)
			continue
		}
		if !idx.capabilityInstances[r.String()] {
			bag.Errorf(span, "%s '%s' requires capability '%s' but no matching instance is declared", kind, name, r.String())
		}
	}
}
