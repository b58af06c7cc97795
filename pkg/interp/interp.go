// Package interp is a tree-walking executor over hir.Program. It runs only
// non-effectful functions reachable from a zero-argument main, the way the
// teacher's pkg/z80testing emulator runs a program to completion and reports
// the final machine state rather than streaming instructions.
package interp

import (
	"fmt"

	"github.com/telagod/kooixc/pkg/ast"
	"github.com/telagod/kooixc/pkg/diagnostic"
	"github.com/telagod/kooixc/pkg/hir"
	"github.com/telagod/kooixc/pkg/position"
)

// MaxCallDepth bounds recursive call nesting before the interpreter reports
// a stack overflow instead of exhausting the host stack.
const MaxCallDepth = 1024

// MaxLoopIterations bounds a single while loop's iteration count before the
// interpreter reports probable non-termination.
const MaxLoopIterations = 1_000_000

// ValueKind discriminates the Value union.
type ValueKind int

const (
	KindUnit ValueKind = iota
	KindInt
	KindBool
	KindText
	KindRecord
	KindEnum
)

// RecordField is one name/value pair of a Record value, ordered as
// constructed.
type RecordField struct {
	Name  string
	Value Value
}

// Value is the runtime representation of every evaluated expression.
type Value struct {
	Kind   ValueKind
	Int    int64
	Bool   bool
	Text   string

	RecordName   string
	RecordFields []RecordField

	EnumName    string
	EnumVariant string
	Payload     *Value // nil when the variant has no payload
}

func UnitValue() Value               { return Value{Kind: KindUnit} }
func IntValue(v int64) Value         { return Value{Kind: KindInt, Int: v} }
func BoolValue(v bool) Value         { return Value{Kind: KindBool, Bool: v} }
func TextValue(v string) Value       { return Value{Kind: KindText, Text: v} }

func RecordValue(name string, fields []RecordField) Value {
	return Value{Kind: KindRecord, RecordName: name, RecordFields: fields}
}

func EnumValue(enumName, variant string, payload *Value) Value {
	return Value{Kind: KindEnum, EnumName: enumName, EnumVariant: variant, Payload: payload}
}

func OptionSome(v Value) Value { return EnumValue("Option", "Some", &v) }
func OptionNone() Value        { return EnumValue("Option", "None", nil) }
func ResultOk(v Value) Value   { return EnumValue("Result", "Ok", &v) }
func ResultErr(v Value) Value  { return EnumValue("Result", "Err", &v) }

// TypeName returns the informal type name used in diagnostic messages.
func (v Value) TypeName() string {
	switch v.Kind {
	case KindUnit:
		return "Unit"
	case KindInt:
		return "Int"
	case KindBool:
		return "Bool"
	case KindText:
		return "Text"
	case KindRecord:
		return v.RecordName
	case KindEnum:
		return v.EnumName
	default:
		return "?"
	}
}

// String renders a Value the way the Rust original's Display impl does.
func (v Value) String() string {
	switch v.Kind {
	case KindUnit:
		return "()"
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindText:
		return v.Text
	case KindRecord:
		return fmt.Sprintf("<%s>", v.RecordName)
	case KindEnum:
		return fmt.Sprintf("<%s::%s>", v.EnumName, v.EnumVariant)
	default:
		return "?"
	}
}

// Equal compares two values structurally, matching the Rust original's
// derived PartialEq used by `==`/`!=`.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindUnit:
		return true
	case KindInt:
		return a.Int == b.Int
	case KindBool:
		return a.Bool == b.Bool
	case KindText:
		return a.Text == b.Text
	case KindRecord:
		if a.RecordName != b.RecordName || len(a.RecordFields) != len(b.RecordFields) {
			return false
		}
		for i := range a.RecordFields {
			if a.RecordFields[i].Name != b.RecordFields[i].Name {
				return false
			}
			if !Equal(a.RecordFields[i].Value, b.RecordFields[i].Value) {
				return false
			}
		}
		return true
	case KindEnum:
		if a.EnumName != b.EnumName || a.EnumVariant != b.EnumVariant {
			return false
		}
		if (a.Payload == nil) != (b.Payload == nil) {
			return false
		}
		if a.Payload == nil {
			return true
		}
		return Equal(*a.Payload, *b.Payload)
	default:
		return false
	}
}

// ConformsTo reports whether v is an acceptable runtime value for the
// declared type ty within fn (a function-local generic parameter name
// accepts any value, matching value_conforms_to_type_in_function).
func ConformsTo(v Value, ty ast.TypeRef, generics []ast.GenericParam) bool {
	if len(ty.Args) == 0 {
		for _, g := range generics {
			if g.Name == ty.Head() {
				return true
			}
		}
	}
	switch ty.Head() {
	case "Unit":
		return v.Kind == KindUnit
	case "Int":
		return v.Kind == KindInt
	case "Bool":
		return v.Kind == KindBool
	case "Text", "String":
		return v.Kind == KindText
	default:
		if v.Kind == KindRecord {
			return v.RecordName == ty.Head()
		}
		if v.Kind == KindEnum {
			return v.EnumName == ty.Head()
		}
		return false
	}
}

// errf builds a stop-the-interpreter error diagnostic, matching the Rust
// original's eager Result<Value, Diagnostic> propagation.
func errf(span position.Span, format string, args ...any) *diagnostic.Diagnostic {
	d := diagnostic.NewError(span, format, args...)
	return &d
}

// env is a stack of scopes: the innermost (last) scope shadows the rest.
// insert always writes into the innermost scope; assign walks outward and
// fails if the name was never let-bound.
type env struct {
	scopes []map[string]Value
}

func newEnv() *env {
	return &env{scopes: []map[string]Value{{}}}
}

func (e *env) get(name string) (Value, bool) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if v, ok := e.scopes[i][name]; ok {
			return v, true
		}
	}
	return Value{}, false
}

func (e *env) insert(name string, v Value) {
	e.scopes[len(e.scopes)-1][name] = v
}

func (e *env) assign(name string, v Value) bool {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if _, ok := e.scopes[i][name]; ok {
			e.scopes[i][name] = v
			return true
		}
	}
	return false
}

func (e *env) push() { e.scopes = append(e.scopes, map[string]Value{}) }

func (e *env) pop() {
	if len(e.scopes) > 1 {
		e.scopes = e.scopes[:len(e.scopes)-1]
	}
}

// variantInfo is what the registry remembers about a declared enum variant:
// which enum owns it and whether it carries a payload.
type variantInfo struct {
	enumName   string
	hasPayload bool
}

// variantRegistry resolves bare and `Enum.Variant`-qualified references
// against every enum in the program. An unqualified name that two enums
// share becomes permanently unresolvable, matching the Rust original's
// duplicate-then-remove behavior.
type variantRegistry struct {
	qualified   map[string]variantInfo
	unqualified map[string]variantInfo
}

func buildVariantRegistry(enums []hir.Enum) *variantRegistry {
	reg := &variantRegistry{
		qualified:   map[string]variantInfo{},
		unqualified: map[string]variantInfo{},
	}
	duplicated := map[string]bool{}
	for _, en := range enums {
		for _, variant := range en.Variants {
			info := variantInfo{enumName: en.Name, hasPayload: variant.Payload != nil}
			reg.qualified[en.Name+"."+variant.Name] = info

			if duplicated[variant.Name] {
				continue
			}
			if _, exists := reg.unqualified[variant.Name]; exists {
				delete(reg.unqualified, variant.Name)
				duplicated[variant.Name] = true
				continue
			}
			reg.unqualified[variant.Name] = info
		}
	}
	return reg
}

func (r *variantRegistry) unqualifiedInfo(name string) (variantInfo, bool) {
	info, ok := r.unqualified[name]
	return info, ok
}

func (r *variantRegistry) qualifiedInfo(enumName, variant string) (variantInfo, bool) {
	info, ok := r.qualified[enumName+"."+variant]
	return info, ok
}

// interpreter is the shared, read-only context threaded through a single
// RunProgram invocation.
type interpreter struct {
	functions map[string]*hir.Function
	variants  *variantRegistry
}

// RunProgram executes `main` (which must take zero parameters and declare
// no effects) and returns its result, or the first diagnostic encountered.
func RunProgram(program *hir.Program) (Value, *diagnostic.Diagnostic) {
	it := &interpreter{
		functions: map[string]*hir.Function{},
		variants:  buildVariantRegistry(program.Enums),
	}
	for i := range program.Functions {
		it.functions[program.Functions[i].Name] = &program.Functions[i]
	}

	main, ok := it.functions["main"]
	if !ok {
		return Value{}, errf(position.Span{}, "missing function 'main'")
	}
	if len(main.Params) != 0 {
		return Value{}, errf(main.Span, "function 'main' expects %d parameters but interpreter only supports main()", len(main.Params))
	}

	return it.callFunction(main, nil, 0)
}

func (it *interpreter) callFunction(fn *hir.Function, args []Value, depth int) (Value, *diagnostic.Diagnostic) {
	if depth > MaxCallDepth {
		return Value{}, errf(fn.Span, "call stack overflow while executing function '%s'", fn.Name)
	}
	if len(fn.Effects) > 0 {
		return Value{}, errf(fn.Span, "function '%s' declares effects and cannot be executed by the interpreter", fn.Name)
	}
	if len(fn.Params) != len(args) {
		return Value{}, errf(fn.Span, "function '%s' called with %d arguments but expects %d", fn.Name, len(args), len(fn.Params))
	}

	if fn.Body == nil {
		if v, d, handled := evalIntrinsic(fn, args); handled {
			return v, d
		}
		return Value{}, errf(fn.Span, "function '%s' has no body to execute", fn.Name)
	}

	e := newEnv()
	for i, p := range fn.Params {
		if !ConformsTo(args[i], p.Type, fn.Generics) {
			return Value{}, errf(fn.Span, "function '%s' parameter '%s' expects type '%s' but got '%s'", fn.Name, p.Name, p.Type.String(), args[i].TypeName())
		}
		e.insert(p.Name, args[i])
	}

	var returned *Value
	for _, stmt := range fn.Body.Stmts {
		switch s := stmt.(type) {
		case *ast.LetStmt:
			if _, ok := e.get(s.Name); ok {
				return Value{}, errf(fn.Span, "function '%s' redefines variable '%s' in interpreter", fn.Name, s.Name)
			}
			v, d := it.evalExpr(s.Value, fn, e, depth)
			if d != nil {
				return Value{}, d
			}
			e.insert(s.Name, v)
		case *ast.AssignStmt:
			v, d := it.evalExpr(s.Value, fn, e, depth)
			if d != nil {
				return Value{}, d
			}
			if !e.assign(s.Name, v) {
				return Value{}, errf(fn.Span, "function '%s' assigns to unknown variable '%s' in interpreter", fn.Name, s.Name)
			}
		case *ast.ReturnStmt:
			if s.Value == nil {
				v := UnitValue()
				returned = &v
			} else {
				v, d := it.evalExpr(s.Value, fn, e, depth)
				if d != nil {
					return Value{}, d
				}
				returned = &v
			}
		case *ast.ExprStmt:
			if _, d := it.evalExpr(s.Value, fn, e, depth); d != nil {
				return Value{}, d
			}
		}
		if returned != nil {
			break
		}
	}

	var value Value
	if returned != nil {
		value = *returned
	} else if fn.Body.Tail != nil {
		v, d := it.evalExpr(fn.Body.Tail, fn, e, depth)
		if d != nil {
			return Value{}, d
		}
		value = v
	} else {
		value = UnitValue()
	}

	if fn.ReturnType.Head() == "Unit" {
		return UnitValue(), nil
	}
	if !ConformsTo(value, fn.ReturnType, fn.Generics) {
		return Value{}, errf(fn.Span, "function '%s' evaluated to '%s' but declared return type is '%s'", fn.Name, value.TypeName(), fn.ReturnType.String())
	}
	return value, nil
}

func (it *interpreter) evalBlock(b *ast.Block, fn *hir.Function, e *env, depth int) (Value, *diagnostic.Diagnostic) {
	e.push()
	defer e.pop()

	for _, stmt := range b.Stmts {
		switch s := stmt.(type) {
		case *ast.LetStmt:
			if _, ok := e.get(s.Name); ok {
				return Value{}, errf(fn.Span, "function '%s' redefines variable '%s' in interpreter block", fn.Name, s.Name)
			}
			v, d := it.evalExpr(s.Value, fn, e, depth)
			if d != nil {
				return Value{}, d
			}
			e.insert(s.Name, v)
		case *ast.AssignStmt:
			v, d := it.evalExpr(s.Value, fn, e, depth)
			if d != nil {
				return Value{}, d
			}
			if !e.assign(s.Name, v) {
				return Value{}, errf(fn.Span, "function '%s' assigns to unknown variable '%s' in interpreter block", fn.Name, s.Name)
			}
		case *ast.ReturnStmt:
			return Value{}, errf(fn.Span, "return is not supported inside a block expression")
		case *ast.ExprStmt:
			if _, d := it.evalExpr(s.Value, fn, e, depth); d != nil {
				return Value{}, d
			}
		}
	}

	if b.Tail != nil {
		return it.evalExpr(b.Tail, fn, e, depth)
	}
	return UnitValue(), nil
}
