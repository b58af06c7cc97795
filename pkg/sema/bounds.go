package sema

import (
	"strings"

	"github.com/telagod/kooixc/pkg/ast"
	"github.com/telagod/kooixc/pkg/diagnostic"
	"github.com/telagod/kooixc/pkg/position"
)

// typeSatisfiesBound reports whether actual structurally satisfies bound:
// every field bound's fields must be present on actual with the bound's
// declared type, recursively. seen guards against a bound cycle (A bounded
// by B bounded by A) by tracking the (actual, bound) pairs already in
// progress on the call stack, treating a revisited pair as satisfied rather
// than looping forever.
func typeSatisfiesBound(actual, bound ast.TypeRef, records map[string]*RecordSchema) bool {
	return typeSatisfiesBoundSeen(actual, bound, records, map[string]bool{})
}

func typeSatisfiesBoundSeen(actual, bound ast.TypeRef, records map[string]*RecordSchema, seen map[string]bool) bool {
	if actual.Head() == bound.Head() {
		return true
	}

	key := actual.Head() + "|" + bound.Head()
	if seen[key] {
		return true
	}
	seen[key] = true

	actualSchema, ok := records[actual.Head()]
	if !ok {
		return false
	}
	boundSchema, ok := records[bound.Head()]
	if !ok {
		return false
	}

	for _, fieldName := range boundSchema.Order {
		boundFieldType := boundSchema.Fields[fieldName]
		actualFieldType, hasField := actualSchema.Fields[fieldName]
		if !hasField {
			return false
		}
		if !typeSatisfiesBoundSeen(actualFieldType, boundFieldType, records, seen) {
			return false
		}
	}
	return true
}

// checkGenericArity validates a reference t to a declared generic record or
// enum: the number of supplied type arguments must equal the number of
// declared generic parameters, and each supplied type argument must
// structurally satisfy its generic parameter's bound set. It is a no-op for
// a head that names no declared record/enum (builtins, generic parameters
// of the enclosing declaration, or an unknown type already reported
// elsewhere).
func checkGenericArity(t ast.TypeRef, idx *index, kind, name string, span position.Span, bag *diagnostic.Bag) {
	var generics []ast.GenericParam
	if r, ok := idx.records[t.Head()]; ok {
		generics = r.Generics
	} else if e, ok := idx.enums[t.Head()]; ok {
		generics = e.Generics
	} else {
		return
	}
	if len(generics) == 0 {
		return
	}

	if len(t.Args) != len(generics) {
		bag.Errorf(span, "%s '%s' references '%s' with %d type argument(s) but it declares %d", kind, name, t.Head(), len(t.Args), len(generics))
		return
	}

	for i, g := range generics {
		if len(g.Bounds) == 0 {
			continue
		}
		arg := t.Args[i]
		if arg.Kind != ast.TypeArgType || arg.Type == nil {
			bag.Errorf(span, "%s '%s' references '%s' with a non-type argument where generic parameter '%s' expects a type", kind, name, t.Head(), g.Name)
			continue
		}

		var unsatisfied []string
		for _, b := range g.Bounds {
			if !typeSatisfiesBound(*arg.Type, b, idx.records) {
				unsatisfied = append(unsatisfied, b.String())
			}
		}
		switch len(unsatisfied) {
		case 0:
		case 1:
			bag.Errorf(span, "%s '%s' type argument '%s' for '%s' must satisfy bound '%s'", kind, name, arg.Type.String(), g.Name, unsatisfied[0])
		default:
			bag.Errorf(span, "%s '%s' type argument '%s' for '%s' must satisfy bounds '%s'", kind, name, arg.Type.String(), g.Name, strings.Join(unsatisfied, " + "))
		}
	}
}

// substituteRecordGenericType replaces occurrences of generic parameter
// names in templateType with the concrete type arguments actually supplied
// at a record literal's use site, so a field declared `value: T` resolves
// to the literal's actual T.
func substituteRecordGenericType(templateType ast.TypeRef, generics []ast.GenericParam, args []ast.TypeArg) ast.TypeRef {
	for i, g := range generics {
		if i >= len(args) {
			break
		}
		if templateType.Name == g.Name && len(templateType.Args) == 0 {
			if args[i].Kind == ast.TypeArgType && args[i].Type != nil {
				return *args[i].Type
			}
		}
	}
	if len(templateType.Args) == 0 {
		return templateType
	}
	substituted := templateType
	substituted.Args = make([]ast.TypeArg, len(templateType.Args))
	for i, a := range templateType.Args {
		if a.Kind == ast.TypeArgType && a.Type != nil {
			sub := substituteRecordGenericType(*a.Type, generics, args)
			substituted.Args[i] = ast.TypeArg{Kind: ast.TypeArgType, Type: &sub}
		} else {
			substituted.Args[i] = a
		}
	}
	return substituted
}
