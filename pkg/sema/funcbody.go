package sema

import (
	"github.com/telagod/kooixc/pkg/ast"
	"github.com/telagod/kooixc/pkg/diagnostic"
	"github.com/telagod/kooixc/pkg/hir"
)

func unitType() ast.TypeRef  { return ast.TypeRef{Name: "Unit"} }
func intType() ast.TypeRef   { return ast.TypeRef{Name: "Int"} }
func boolType() ast.TypeRef  { return ast.TypeRef{Name: "Bool"} }
func textType() ast.TypeRef  { return ast.TypeRef{Name: "Text"} }
func isErrType(t ast.TypeRef) bool { return t.Name == "" }
func errType() ast.TypeRef   { return ast.TypeRef{} }

func typeEq(a, b ast.TypeRef) bool { return a.String() == b.String() }

// bodyChecker type-checks one function's body against its declared
// signature, threading a flat (function-wide, not block-scoped) let
// environment the way a `let` in one branch of an if is visible to
// statements written after it at the same nesting level.
type bodyChecker struct {
	fn       *hir.Function
	idx      *index
	bag      *diagnostic.Bag
	declared map[string]bool
}

func (c *bodyChecker) checkBlock(b *ast.Block, env map[string]ast.TypeRef, expected *ast.TypeRef) ast.TypeRef {
	if c.declared == nil {
		c.declared = map[string]bool{}
		for _, p := range c.fn.Params {
			c.declared[p.Name] = true
		}
	}

	for _, stmt := range b.Stmts {
		c.checkStmt(stmt, env)
	}

	var tailType ast.TypeRef
	if b.Tail == nil {
		tailType = unitType()
	} else {
		tailType = c.inferExpr(b.Tail, env, expected)
		if isErrType(tailType) {
			return tailType
		}
	}

	if expected != nil && !typeEq(tailType, *expected) {
		c.bag.Errorf(c.fn.Span, "function '%s' body evaluates to '%s' but expected '%s'", c.fn.Name, tailType.String(), expected.String())
	}
	return tailType
}

func (c *bodyChecker) checkStmt(stmt ast.Stmt, env map[string]ast.TypeRef) {
	switch s := stmt.(type) {
	case *ast.LetStmt:
		if c.declared[s.Name] {
			c.bag.Errorf(c.fn.Span, "function '%s' redefines variable '%s' in body", c.fn.Name, s.Name)
		}
		c.declared[s.Name] = true

		valueType := c.inferExpr(s.Value, env, s.Type)
		if isErrType(valueType) {
			if s.Type != nil {
				env[s.Name] = *s.Type
			}
			return
		}
		if s.Type != nil {
			if !typeEq(valueType, *s.Type) {
				c.bag.Errorf(c.fn.Span, "function '%s' let '%s' declares type '%s' but value is '%s'", c.fn.Name, s.Name, s.Type.String(), valueType.String())
			}
			env[s.Name] = *s.Type
			return
		}
		env[s.Name] = valueType

	case *ast.AssignStmt:
		current, ok := env[s.Name]
		if !ok {
			c.bag.Errorf(c.fn.Span, "function '%s' assigns to unknown variable '%s' in body", c.fn.Name, s.Name)
			c.inferExpr(s.Value, env, nil)
			return
		}
		valueType := c.inferExpr(s.Value, env, &current)
		if !isErrType(valueType) && !typeEq(valueType, current) {
			c.bag.Errorf(c.fn.Span, "function '%s' assigns '%s' to variable '%s' of type '%s'", c.fn.Name, valueType.String(), s.Name, current.String())
		}

	case *ast.ReturnStmt:
		if s.Value == nil {
			if !typeEq(c.fn.ReturnType, unitType()) {
				c.bag.Errorf(c.fn.Span, "function '%s' returns nothing but expected '%s'", c.fn.Name, c.fn.ReturnType.String())
			}
			return
		}
		retType := c.inferExpr(s.Value, env, &c.fn.ReturnType)
		if !isErrType(retType) && !typeEq(retType, c.fn.ReturnType) {
			c.bag.Errorf(c.fn.Span, "function '%s' returns '%s' but expected '%s'", c.fn.Name, retType.String(), c.fn.ReturnType.String())
		}

	case *ast.ExprStmt:
		c.inferExpr(s.Value, env, nil)
	}
}

// inferExpr infers the type of e, reporting at most one diagnostic per
// unresolved subexpression, and returns the zero TypeRef on failure so
// callers can skip cascading checks against an already-reported error.
func (c *bodyChecker) inferExpr(e ast.Expr, env map[string]ast.TypeRef, expected *ast.TypeRef) ast.TypeRef {
	switch ex := e.(type) {
	case *ast.IntLit:
		return intType()
	case *ast.BoolLit:
		return boolType()
	case *ast.StringLit:
		return textType()

	case *ast.Ident:
		if t, ok := env[ex.Name]; ok {
			return t
		}
		switch res := resolveVariantUnqualified(ex.Name, c.idx.enums); res.Kind {
		case variantUnique:
			if res.HasPayload {
				c.bag.Errorf(c.fn.Span, "function '%s' uses enum variant '%s' without a payload (expected '%s(<expr>)')", c.fn.Name, ex.Name, ex.Name)
				return errType()
			}
			return ast.TypeRef{Name: res.EnumName}
		case variantAmbiguous:
			c.bag.Errorf(c.fn.Span, "function '%s' uses ambiguous enum variant '%s'; qualify it as '<Enum>.%s'", c.fn.Name, ex.Name, ex.Name)
			return errType()
		default:
			c.bag.Errorf(c.fn.Span, "function '%s' uses unknown variable '%s' in body", c.fn.Name, ex.Name)
			return errType()
		}

	case *ast.FieldAccess:
		return c.inferFieldAccess(ex, env)

	case *ast.BinaryExpr:
		return c.inferBinary(ex, env)

	case *ast.CallExpr:
		return c.inferCall(ex, env)

	case *ast.RecordLit:
		return c.inferRecordLit(ex, env, expected)

	case *ast.EnumLit:
		return c.inferEnumLit(ex, env, expected)

	case *ast.IfExpr:
		return c.inferIf(ex, env)

	case *ast.WhileExpr:
		c.inferExpr(ex.Cond, env, ptrTo(boolType()))
		c.checkBlock(ex.Body, env, nil)
		return unitType()

	case *ast.MatchExpr:
		return c.inferMatch(ex, env, expected)

	case *ast.BlockExpr:
		return c.checkBlock(ex.Block, env, expected)
	}
	return errType()
}

func ptrTo(t ast.TypeRef) *ast.TypeRef { return &t }

func (c *bodyChecker) inferBinary(ex *ast.BinaryExpr, env map[string]ast.TypeRef) ast.TypeRef {
	left := c.inferExpr(ex.Left, env, nil)
	right := c.inferExpr(ex.Right, env, nil)
	if isErrType(left) || isErrType(right) {
		return errType()
	}

	switch ex.Op {
	case "+":
		if typeEq(left, intType()) && typeEq(right, intType()) {
			return intType()
		}
		c.bag.Errorf(c.fn.Span, "function '%s' applies '+' to '%s' and '%s' but both operands must be 'Int'", c.fn.Name, left.String(), right.String())
		return errType()
	case "==", "!=":
		if typeEq(left, right) {
			return boolType()
		}
		c.bag.Errorf(c.fn.Span, "function '%s' compares '%s' with '%s' but operands must share a type", c.fn.Name, left.String(), right.String())
		return errType()
	default:
		c.bag.Errorf(c.fn.Span, "function '%s' uses unknown operator '%s'", c.fn.Name, ex.Op)
		return errType()
	}
}

func (c *bodyChecker) inferCall(ex *ast.CallExpr, env map[string]ast.TypeRef) ast.TypeRef {
	sig, ok := c.idx.signatures[ex.Callee]
	if !ok {
		c.bag.Errorf(c.fn.Span, "function '%s' calls unknown function '%s'", c.fn.Name, ex.Callee)
		for _, a := range ex.Args {
			c.inferExpr(a, env, nil)
		}
		return errType()
	}

	if len(ex.Args) != len(sig.Params) {
		c.bag.Errorf(c.fn.Span, "function '%s' calls '%s' with %d argument(s), expected %d", c.fn.Name, ex.Callee, len(ex.Args), len(sig.Params))
	}

	for i, a := range ex.Args {
		var expectedParam *ast.TypeRef
		if i < len(sig.Params) {
			expectedParam = &sig.Params[i].Type
		}
		argType := c.inferExpr(a, env, expectedParam)
		if !isErrType(argType) {
			checkGenericArity(argType, c.idx, "function", c.fn.Name, c.fn.Span, c.bag)
		}
		if expectedParam != nil && !isErrType(argType) && !typeEq(argType, *expectedParam) {
			c.bag.Errorf(c.fn.Span, "function '%s' calls '%s' with argument %d of type '%s' but expected '%s'", c.fn.Name, ex.Callee, i+1, argType.String(), expectedParam.String())
		}
	}

	return sig.ReturnType
}

// inferRecordLit type-checks a record literal against its declared schema.
// When expected names this same record with the right generic arity (the
// literal appears where its instantiation is already pinned down, e.g. a
// `let` annotation or a call argument slot), each field's declared type is
// first substituted via substituteRecordGenericType so a field declared
// `value: T` is checked against expected's concrete argument for `T` rather
// than skipped outright.
func (c *bodyChecker) inferRecordLit(ex *ast.RecordLit, env map[string]ast.TypeRef, expected *ast.TypeRef) ast.TypeRef {
	schema, ok := c.idx.records[ex.Record]
	if !ok {
		c.bag.Errorf(c.fn.Span, "function '%s' uses record literal of unknown type '%s'", c.fn.Name, ex.Record)
		return errType()
	}

	var genericArgs []ast.TypeArg
	if expected != nil && expected.Head() == ex.Record && len(expected.Args) == len(schema.Generics) {
		genericArgs = expected.Args
	}

	seen := map[string]bool{}
	for _, f := range ex.Fields {
		if seen[f.Name] {
			c.bag.Errorf(c.fn.Span, "function '%s' record literal repeats field '%s'", c.fn.Name, f.Name)
			continue
		}
		seen[f.Name] = true

		fieldType, exists := schema.Fields[f.Name]
		if !exists {
			c.bag.Errorf(c.fn.Span, "function '%s' record literal uses unknown field '%s' on type '%s'", c.fn.Name, f.Name, ex.Record)
			c.inferExpr(f.Value, env, nil)
			continue
		}

		resolvedType := fieldType
		if genericArgs != nil {
			resolvedType = substituteRecordGenericType(fieldType, schema.Generics, genericArgs)
		}

		actual := c.inferExpr(f.Value, env, &resolvedType)
		if isErrType(actual) {
			continue
		}
		checkGenericArity(actual, c.idx, "function", c.fn.Name, c.fn.Span, c.bag)
		if genericArgs == nil && isGenericHead(fieldType.Name, schema.Generics) {
			continue
		}
		if !typeEq(actual, resolvedType) {
			c.bag.Errorf(c.fn.Span, "function '%s' record literal field '%s' is '%s' but expected '%s'", c.fn.Name, f.Name, actual.String(), resolvedType.String())
		}
	}

	for _, name := range schema.Order {
		if !seen[name] {
			c.bag.Errorf(c.fn.Span, "function '%s' record literal for '%s' is missing field '%s'", c.fn.Name, ex.Record, name)
		}
	}

	return ast.TypeRef{Name: ex.Record, Args: genericArgs}
}

func isGenericHead(name string, generics []ast.GenericParam) bool {
	for _, g := range generics {
		if g.Name == name {
			return true
		}
	}
	return false
}

func (c *bodyChecker) inferEnumLit(ex *ast.EnumLit, env map[string]ast.TypeRef, expected *ast.TypeRef) ast.TypeRef {
	var schema *EnumSchema
	var enumName string

	if ex.Enum != "" {
		var hasPayload bool
		var ok bool
		schema, hasPayload, ok = resolveVariantQualified(ex.Enum, ex.Variant, c.idx.enums)
		if !ok {
			c.bag.Errorf(c.fn.Span, "function '%s' uses unknown enum variant '%s.%s'", c.fn.Name, ex.Enum, ex.Variant)
			return errType()
		}
		enumName = ex.Enum
		_ = hasPayload
	} else {
		switch res := resolveVariantUnqualified(ex.Variant, c.idx.enums); res.Kind {
		case variantUnique:
			schema, enumName = res.Schema, res.EnumName
		case variantAmbiguous:
			c.bag.Errorf(c.fn.Span, "function '%s' uses ambiguous enum variant '%s'; qualify it as '<Enum>.%s'", c.fn.Name, ex.Variant, ex.Variant)
			return errType()
		default:
			c.bag.Errorf(c.fn.Span, "function '%s' uses unknown enum variant '%s'", c.fn.Name, ex.Variant)
			return errType()
		}
	}

	payloadType := schema.Variants[ex.Variant]
	if payloadType == nil && ex.Payload != nil {
		c.bag.Errorf(c.fn.Span, "function '%s' uses enum variant '%s' with a payload but it takes none", c.fn.Name, ex.Variant)
	} else if payloadType != nil && ex.Payload == nil {
		c.bag.Errorf(c.fn.Span, "function '%s' uses enum variant '%s' without a payload (expected '%s(<expr>)')", c.fn.Name, ex.Variant, ex.Variant)
	} else if payloadType != nil {
		actual := c.inferExpr(ex.Payload, env, payloadType)
		if !isErrType(actual) {
			checkGenericArity(actual, c.idx, "function", c.fn.Name, c.fn.Span, c.bag)
		}
		if !isErrType(actual) && !isGenericHead(payloadType.Name, schema.Generics) && !typeEq(actual, *payloadType) {
			c.bag.Errorf(c.fn.Span, "function '%s' enum variant '%s' payload is '%s' but expected '%s'", c.fn.Name, ex.Variant, actual.String(), payloadType.String())
		}
	}

	if expected != nil && expected.Head() == enumName {
		return *expected
	}
	return ast.TypeRef{Name: enumName}
}

func (c *bodyChecker) inferIf(ex *ast.IfExpr, env map[string]ast.TypeRef) ast.TypeRef {
	c.inferExpr(ex.Cond, env, ptrTo(boolType()))

	thenType := c.checkBlock(ex.Then, env, nil)
	if ex.Else == nil {
		return unitType()
	}
	elseType := c.checkBlock(ex.Else, env, nil)
	if isErrType(thenType) || isErrType(elseType) {
		return errType()
	}
	if !typeEq(thenType, elseType) {
		c.bag.Errorf(c.fn.Span, "function '%s' if branches produce '%s' and '%s' but must match", c.fn.Name, thenType.String(), elseType.String())
		return errType()
	}
	return thenType
}

// inferMatch checks arm coverage (every declared variant of the scrutinee's
// enum must be matched, or a wildcard arm must be present), rejects a
// repeated variant arm, and requires every arm body to agree on a result
// type.
func (c *bodyChecker) inferMatch(ex *ast.MatchExpr, env map[string]ast.TypeRef, expected *ast.TypeRef) ast.TypeRef {
	scrutineeType := c.inferExpr(ex.Scrutinee, env, nil)
	if isErrType(scrutineeType) {
		for _, arm := range ex.Arms {
			c.inferExpr(arm.Body, env, expected)
		}
		return errType()
	}

	schema, ok := c.idx.enums[scrutineeType.Head()]
	if !ok {
		c.bag.Errorf(c.fn.Span, "function '%s' matches non-enum type '%s'", c.fn.Name, scrutineeType.String())
		return errType()
	}

	seenVariant := map[string]bool{}
	hasWildcard := false
	var resultType ast.TypeRef
	resultSet := false

	for _, arm := range ex.Arms {
		armEnv := env
		if arm.Wildcard {
			if hasWildcard {
				c.bag.Errorf(c.fn.Span, "function '%s' match repeats wildcard arm '_'", c.fn.Name)
			}
			hasWildcard = true
		} else {
			if seenVariant[arm.Variant] {
				c.bag.Errorf(c.fn.Span, "function '%s' match repeats variant '%s'", c.fn.Name, arm.Variant)
			}
			seenVariant[arm.Variant] = true

			payloadType, known := schema.Variants[arm.Variant]
			if !known {
				c.bag.Errorf(c.fn.Span, "function '%s' match arm references unknown variant '%s' of '%s'", c.fn.Name, arm.Variant, scrutineeType.Head())
			} else if arm.HasBind {
				if payloadType == nil {
					c.bag.Errorf(c.fn.Span, "function '%s' match arm binds a payload for '%s' which takes none", c.fn.Name, arm.Variant)
				} else {
					armEnv = cloneEnv(env)
					armEnv[arm.Bind] = *payloadType
				}
			} else if payloadType != nil {
				c.bag.Errorf(c.fn.Span, "function '%s' match arm for '%s' must bind its payload", c.fn.Name, arm.Variant)
			}
		}

		armType := c.inferExpr(arm.Body, armEnv, expected)
		if isErrType(armType) {
			continue
		}
		if !resultSet {
			resultType, resultSet = armType, true
		} else if !typeEq(resultType, armType) {
			c.bag.Errorf(c.fn.Span, "function '%s' match arms produce '%s' and '%s' but must match", c.fn.Name, resultType.String(), armType.String())
		}
	}

	if !hasWildcard {
		for _, variant := range schema.Order {
			if !seenVariant[variant] {
				c.bag.Errorf(c.fn.Span, "function '%s' match does not cover variant '%s' of '%s'", c.fn.Name, variant, scrutineeType.Head())
			}
		}
	}

	if !resultSet {
		return unitType()
	}
	return resultType
}

func cloneEnv(env map[string]ast.TypeRef) map[string]ast.TypeRef {
	out := make(map[string]ast.TypeRef, len(env)+1)
	for k, v := range env {
		out[k] = v
	}
	return out
}

// inferFieldAccess handles both user record field projection and the
// recognized built-in pseudo-projections on Option/Result/List/Map.
func (c *bodyChecker) inferFieldAccess(ex *ast.FieldAccess, env map[string]ast.TypeRef) ast.TypeRef {
	baseType := c.inferExpr(ex.Base, env, nil)
	if isErrType(baseType) {
		return errType()
	}

	switch baseType.Head() {
	case "Option":
		switch ex.Field {
		case "some":
			return boolType()
		case "value":
			return typeArgOrErr(baseType, 0, c)
		}
	case "Result":
		switch ex.Field {
		case "ok":
			return boolType()
		case "value":
			return typeArgOrErr(baseType, 0, c)
		case "err", "error":
			return typeArgOrErr(baseType, 1, c)
		}
	case "List":
		switch ex.Field {
		case "item", "first":
			return typeArgOrErr(baseType, 0, c)
		}
	case "Map":
		switch ex.Field {
		case "key":
			return typeArgOrErr(baseType, 0, c)
		case "value":
			return typeArgOrErr(baseType, 1, c)
		}
	}

	schema, ok := c.idx.records[baseType.Head()]
	if !ok {
		c.bag.Errorf(c.fn.Span, "function '%s' uses member '%s' but cannot infer member on type '%s'", c.fn.Name, ex.Field, baseType.String())
		return errType()
	}
	fieldType, ok := schema.Fields[ex.Field]
	if !ok {
		c.bag.Errorf(c.fn.Span, "function '%s' uses member '%s' but cannot infer member on type '%s'", c.fn.Name, ex.Field, baseType.String())
		return errType()
	}
	return fieldType
}

func typeArgOrErr(t ast.TypeRef, index int, c *bodyChecker) ast.TypeRef {
	if index >= len(t.Args) || t.Args[index].Kind != ast.TypeArgType || t.Args[index].Type == nil {
		c.bag.Errorf(c.fn.Span, "function '%s' projects '%s' but it has no type argument %d", c.fn.Name, t.String(), index)
		return errType()
	}
	return *t.Args[index].Type
}
