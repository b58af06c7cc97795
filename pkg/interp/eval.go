package interp

import (
	"strconv"

	"github.com/telagod/kooixc/pkg/ast"
	"github.com/telagod/kooixc/pkg/diagnostic"
	"github.com/telagod/kooixc/pkg/hir"
)

func (it *interpreter) evalExpr(expr ast.Expr, fn *hir.Function, e *env, depth int) (Value, *diagnostic.Diagnostic) {
	switch ex := expr.(type) {
	case *ast.IntLit:
		n, err := strconv.ParseInt(ex.Text, 10, 64)
		if err != nil {
			return Value{}, errf(fn.Span, "invalid integer literal '%s'", ex.Text)
		}
		return IntValue(n), nil

	case *ast.BoolLit:
		return BoolValue(ex.Value), nil

	case *ast.StringLit:
		return TextValue(ex.Value), nil

	case *ast.Ident:
		if v, ok := e.get(ex.Name); ok {
			return v, nil
		}
		return it.evalBareVariantRef(ex.Name, fn)

	case *ast.FieldAccess:
		return it.evalFieldAccess(ex, fn, e, depth)

	case *ast.RecordLit:
		return it.evalRecordLit(ex, fn, e, depth)

	case *ast.EnumLit:
		return it.evalEnumLit(ex, fn, e, depth)

	case *ast.CallExpr:
		return it.evalCall(ex, fn, e, depth)

	case *ast.IfExpr:
		return it.evalIf(ex, fn, e, depth)

	case *ast.WhileExpr:
		return it.evalWhile(ex, fn, e, depth)

	case *ast.MatchExpr:
		return it.evalMatch(ex, fn, e, depth)

	case *ast.BinaryExpr:
		return it.evalBinary(ex, fn, e, depth)

	case *ast.BlockExpr:
		return it.evalBlock(ex.Block, fn, e, depth)

	default:
		return Value{}, errf(fn.Span, "function '%s' encountered an unsupported expression in the interpreter", fn.Name)
	}
}

// evalBareVariantRef resolves a bare identifier that is not a bound
// variable: it must name a payload-less enum variant, unambiguously.
func (it *interpreter) evalBareVariantRef(name string, fn *hir.Function) (Value, *diagnostic.Diagnostic) {
	info, ok := it.variants.unqualifiedInfo(name)
	if !ok {
		return Value{}, errf(fn.Span, "unknown variable '%s'", name)
	}
	if info.hasPayload {
		return Value{}, errf(fn.Span, "enum variant '%s' requires a payload (use '%s(...)')", name, name)
	}
	return EnumValue(info.enumName, name, nil), nil
}

// evalFieldAccess looks up base.field: a record field projection, or the
// `Enum.Variant` qualified-reference syntax when base is itself a bare
// identifier naming an enum rather than a bound variable.
func (it *interpreter) evalFieldAccess(ex *ast.FieldAccess, fn *hir.Function, e *env, depth int) (Value, *diagnostic.Diagnostic) {
	if baseIdent, ok := ex.Base.(*ast.Ident); ok {
		if _, bound := e.get(baseIdent.Name); !bound {
			if info, ok := it.variants.qualifiedInfo(baseIdent.Name, ex.Field); ok {
				if info.hasPayload {
					return Value{}, errf(fn.Span, "enum variant '%s.%s' requires a payload (use '%s.%s(...)')", baseIdent.Name, ex.Field, baseIdent.Name, ex.Field)
				}
				return EnumValue(info.enumName, ex.Field, nil), nil
			}
		}
	}

	base, d := it.evalExpr(ex.Base, fn, e, depth)
	if d != nil {
		return Value{}, d
	}
	if base.Kind != KindRecord {
		return Value{}, errf(fn.Span, "cannot access member '%s' on value of type '%s'", ex.Field, base.TypeName())
	}
	for i := len(base.RecordFields) - 1; i >= 0; i-- {
		if base.RecordFields[i].Name == ex.Field {
			return base.RecordFields[i].Value, nil
		}
	}
	return Value{}, errf(fn.Span, "unknown member '%s' on record value", ex.Field)
}

func (it *interpreter) evalRecordLit(ex *ast.RecordLit, fn *hir.Function, e *env, depth int) (Value, *diagnostic.Diagnostic) {
	var fields []RecordField
	for _, f := range ex.Fields {
		v, d := it.evalExpr(f.Value, fn, e, depth)
		if d != nil {
			return Value{}, d
		}
		replaced := false
		for i := range fields {
			if fields[i].Name == f.Name {
				fields[i].Value = v
				replaced = true
				break
			}
		}
		if !replaced {
			fields = append(fields, RecordField{Name: f.Name, Value: v})
		}
	}
	return RecordValue(ex.Record, fields), nil
}

func (it *interpreter) evalEnumLit(ex *ast.EnumLit, fn *hir.Function, e *env, depth int) (Value, *diagnostic.Diagnostic) {
	var info variantInfo
	var ok bool
	if ex.Enum != "" {
		info, ok = it.variants.qualifiedInfo(ex.Enum, ex.Variant)
	} else {
		info, ok = it.variants.unqualifiedInfo(ex.Variant)
	}
	if !ok {
		return Value{}, errf(fn.Span, "function '%s' calls unknown target '%s'", fn.Name, qualifiedName(ex.Enum, ex.Variant))
	}

	if info.hasPayload {
		if ex.Payload == nil {
			return Value{}, errf(fn.Span, "enum variant '%s' expects 1 payload argument but got 0", qualifiedName(ex.Enum, ex.Variant))
		}
		payload, d := it.evalExpr(ex.Payload, fn, e, depth)
		if d != nil {
			return Value{}, d
		}
		return EnumValue(info.enumName, ex.Variant, &payload), nil
	}
	if ex.Payload != nil {
		return Value{}, errf(fn.Span, "enum variant '%s' expects 0 arguments but got 1", qualifiedName(ex.Enum, ex.Variant))
	}
	return EnumValue(info.enumName, ex.Variant, nil), nil
}

func qualifiedName(enumName, variant string) string {
	if enumName == "" {
		return variant
	}
	return enumName + "." + variant
}

func (it *interpreter) evalCall(ex *ast.CallExpr, fn *hir.Function, e *env, depth int) (Value, *diagnostic.Diagnostic) {
	if callee, ok := it.functions[ex.Callee]; ok {
		args := make([]Value, len(ex.Args))
		for i, a := range ex.Args {
			v, d := it.evalExpr(a, fn, e, depth)
			if d != nil {
				return Value{}, d
			}
			args[i] = v
		}
		return it.callFunction(callee, args, depth+1)
	}

	// Not a function: must be an enum variant constructor call.
	info, ok := it.variants.unqualifiedInfo(ex.Callee)
	if !ok {
		return Value{}, errf(fn.Span, "function '%s' calls unknown target '%s'", fn.Name, ex.Callee)
	}

	if info.hasPayload {
		if len(ex.Args) != 1 {
			return Value{}, errf(fn.Span, "enum variant '%s' expects 1 payload argument but got %d", ex.Callee, len(ex.Args))
		}
		payload, d := it.evalExpr(ex.Args[0], fn, e, depth)
		if d != nil {
			return Value{}, d
		}
		return EnumValue(info.enumName, ex.Callee, &payload), nil
	}
	if len(ex.Args) != 0 {
		return Value{}, errf(fn.Span, "enum variant '%s' expects 0 arguments but got %d", ex.Callee, len(ex.Args))
	}
	return EnumValue(info.enumName, ex.Callee, nil), nil
}

func (it *interpreter) evalIf(ex *ast.IfExpr, fn *hir.Function, e *env, depth int) (Value, *diagnostic.Diagnostic) {
	cond, d := it.evalExpr(ex.Cond, fn, e, depth)
	if d != nil {
		return Value{}, d
	}
	if cond.Kind != KindBool {
		return Value{}, errf(fn.Span, "if condition evaluated to '%s' but expected 'Bool'", cond.TypeName())
	}
	if cond.Bool {
		return it.evalBlock(ex.Then, fn, e, depth)
	}
	if ex.Else != nil {
		return it.evalBlock(ex.Else, fn, e, depth)
	}
	return UnitValue(), nil
}

func (it *interpreter) evalWhile(ex *ast.WhileExpr, fn *hir.Function, e *env, depth int) (Value, *diagnostic.Diagnostic) {
	iterations := 0
	for {
		cond, d := it.evalExpr(ex.Cond, fn, e, depth)
		if d != nil {
			return Value{}, d
		}
		if cond.Kind != KindBool {
			return Value{}, errf(fn.Span, "while condition evaluated to '%s' but expected 'Bool'", cond.TypeName())
		}
		if !cond.Bool {
			break
		}
		iterations++
		if iterations > MaxLoopIterations {
			return Value{}, errf(fn.Span, "while loop exceeded %d iterations in function '%s' (possible non-termination)", MaxLoopIterations, fn.Name)
		}
		if _, d := it.evalBlock(ex.Body, fn, e, depth); d != nil {
			return Value{}, d
		}
	}
	return UnitValue(), nil
}

func (it *interpreter) evalMatch(ex *ast.MatchExpr, fn *hir.Function, e *env, depth int) (Value, *diagnostic.Diagnostic) {
	scrutinee, d := it.evalExpr(ex.Scrutinee, fn, e, depth)
	if d != nil {
		return Value{}, d
	}

	for _, arm := range ex.Arms {
		if arm.Wildcard {
			return it.evalMatchArmBody(arm, fn, e, depth)
		}

		if scrutinee.Kind != KindEnum {
			return Value{}, errf(fn.Span, "match scrutinee evaluated to '%s' but expected an enum value", scrutinee.TypeName())
		}
		matched := scrutinee.EnumVariant == arm.Variant && (arm.Enum == "" || scrutinee.EnumName == arm.Enum)
		if !matched {
			continue
		}

		e.push()
		if arm.HasBind {
			if scrutinee.Payload == nil {
				e.pop()
				return Value{}, errf(fn.Span, "match arm '%s' binds '%s' but variant has no payload", qualifiedName(arm.Enum, arm.Variant), arm.Bind)
			}
			e.insert(arm.Bind, *scrutinee.Payload)
		}
		v, d := it.evalExpr(arm.Body, fn, e, depth)
		e.pop()
		return v, d
	}

	return Value{}, errf(fn.Span, "non-exhaustive match expression")
}

func (it *interpreter) evalMatchArmBody(arm ast.MatchArm, fn *hir.Function, e *env, depth int) (Value, *diagnostic.Diagnostic) {
	return it.evalExpr(arm.Body, fn, e, depth)
}

func (it *interpreter) evalBinary(ex *ast.BinaryExpr, fn *hir.Function, e *env, depth int) (Value, *diagnostic.Diagnostic) {
	left, d := it.evalExpr(ex.Left, fn, e, depth)
	if d != nil {
		return Value{}, d
	}
	right, d := it.evalExpr(ex.Right, fn, e, depth)
	if d != nil {
		return Value{}, d
	}

	switch ex.Op {
	case "+":
		if left.Kind != KindInt || right.Kind != KindInt {
			return Value{}, errf(fn.Span, "cannot apply '+' to '%s' and '%s'", left.TypeName(), right.TypeName())
		}
		sum := left.Int + right.Int
		if (right.Int > 0 && sum < left.Int) || (right.Int < 0 && sum > left.Int) {
			return Value{}, errf(fn.Span, "integer overflow while executing '+' in function '%s'", fn.Name)
		}
		return IntValue(sum), nil
	case "==":
		return BoolValue(Equal(left, right)), nil
	case "!=":
		return BoolValue(!Equal(left, right)), nil
	default:
		return Value{}, errf(fn.Span, "function '%s' uses unsupported operator '%s'", fn.Name, ex.Op)
	}
}
