// Package mir defines the typed, basic-block-and-terminator intermediate
// representation kooixc lowers hir.Program into, and the LLVM-text emitter
// in pkg/codegen consumes. The shapes mirror minzc's pkg/ir basic-block
// model (Instruction/Register/Label) but keyed by typed locals and Go
// interfaces per operand/rvalue/terminator kind instead of a single
// Opcode+Register instruction struct, since MIR values here are SSA-like
// temporaries rather than Z80 virtual registers.
package mir

import "github.com/telagod/kooixc/pkg/ast"

// Program is the full lowered module: every record/enum declaration kept
// for the emitter's field/variant layout, plus every function that lowered
// successfully.
type Program struct {
	Records   []RecordLayout
	Enums     []EnumLayout
	Functions []Function
}

// RecordLayout is a record declaration's field order and types, as needed
// by RecordLit/ProjectField lowering and emission.
type RecordLayout struct {
	Name   string
	Fields []FieldLayout
}

// FieldLayout is one field of a RecordLayout, in declaration order.
type FieldLayout struct {
	Name string
	Type ast.TypeRef
}

// EnumLayout is an enum declaration's variant order, tags, and optional
// payload types.
type EnumLayout struct {
	Name     string
	Variants []VariantLayout
}

// VariantLayout is one variant of an EnumLayout; Tag is its 0-based
// ordinal, matching declaration order.
type VariantLayout struct {
	Name    string
	Tag     int
	Payload *ast.TypeRef
}

// Param is one function parameter, tying its name and type to the local
// slot it occupies.
type Param struct {
	Name       string
	Type       ast.TypeRef
	LocalIndex int
}

// Local is one local slot of a function: every parameter, every `let`
// binding, and every temporary the lowering synthesizes (operation
// results and if-expression join values) occupies one, indexed
// contiguously from 0.
type Local struct {
	Name string
	Type ast.TypeRef
}

// Function is one lowered function: locals, parameters, and a list of
// basic blocks starting with "bb0".
type Function struct {
	Name       string
	Params     []Param
	ReturnType ast.TypeRef
	Effects    []string
	Locals     []Local
	Blocks     []Block
}

// Block is one basic block: a label, a statement list, and exactly one
// terminator.
type Block struct {
	Label      string
	Statements []Statement
	Terminator Terminator
}

// Statement is implemented by Assign and Eval.
type Statement interface {
	statementNode()
}

// Assign stores the result of an Rvalue into a local slot.
type Assign struct {
	Dst    int
	Rvalue Rvalue
}

func (Assign) statementNode() {}

// Eval computes an Rvalue purely for its side effect (a Unit-returning
// call) and discards the result.
type Eval struct {
	Rvalue Rvalue
}

func (Eval) statementNode() {}

// Terminator is implemented by Return, ReturnDefault, Goto, and If.
type Terminator interface {
	terminatorNode()
}

// Return exits the function with an optional value (nil for Unit).
type Return struct {
	Value *Operand
}

func (Return) terminatorNode() {}

// ReturnDefault exits a header-only function's single block with the
// zero value of Ty: 0 for Int, false for Bool, void for Unit.
type ReturnDefault struct {
	Ty ast.TypeRef
}

func (ReturnDefault) terminatorNode() {}

// Goto transfers control unconditionally to Label.
type Goto struct {
	Label string
}

func (Goto) terminatorNode() {}

// If transfers control to ThenLabel when Cond is true, ElseLabel otherwise.
type If struct {
	Cond       Operand
	ThenLabel  string
	ElseLabel  string
}

func (If) terminatorNode() {}

// Rvalue is implemented by every right-hand-side value kind a Statement
// may compute.
type Rvalue interface {
	rvalueNode()
}

// Use wraps a plain Operand as an Rvalue (the `let x = y` / `let x = 1`
// case, with no further computation).
type Use struct {
	Operand Operand
}

func (Use) rvalueNode() {}

// Binary is a two-operand arithmetic or comparison operation: "+", "==",
// or "!=".
type Binary struct {
	Op    string
	Left  Operand
	Right Operand
}

func (Binary) rvalueNode() {}

// Call invokes a known monomorphic, non-generic, effect-free function by
// name.
type Call struct {
	Callee string
	Args   []Operand
}

func (Call) rvalueNode() {}

// RecordLit constructs a record value, fields in declaration order.
type RecordLit struct {
	Record string
	Fields []Operand
}

func (RecordLit) rvalueNode() {}

// ProjectField reads field Index (named Field, declared on Record) out of
// Base.
type ProjectField struct {
	Base   Operand
	Record string
	Field  string
	Index  int
}

func (ProjectField) rvalueNode() {}

// EnumLit constructs an enum value of variant Tag, with an optional
// payload.
type EnumLit struct {
	Enum       string
	Tag        int
	Payload    *Operand
	PayloadTy  *ast.TypeRef
}

func (EnumLit) rvalueNode() {}

// EnumTag reads the discriminant tag out of an enum-valued Base.
type EnumTag struct {
	Base Operand
}

func (EnumTag) rvalueNode() {}

// EnumPayload reads the payload out of an enum-valued Base, assuming the
// caller has already matched on its tag.
type EnumPayload struct {
	Base Operand
}

func (EnumPayload) rvalueNode() {}

// Operand is implemented by every value a Statement or Terminator may
// reference directly: a constant or a local slot.
type Operand interface {
	operandNode()
}

// ConstInt is a literal integer operand.
type ConstInt struct {
	Value int64
}

func (ConstInt) operandNode() {}

// ConstBool is a literal boolean operand.
type ConstBool struct {
	Value bool
}

func (ConstBool) operandNode() {}

// LocalOperand references a local slot by index.
type LocalOperand struct {
	Index int
}

func (LocalOperand) operandNode() {}
