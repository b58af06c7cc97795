package ast

import "github.com/telagod/kooixc/pkg/position"

// Block is a brace-delimited sequence of statements with an optional tail
// expression that becomes the block's value.
type Block struct {
	Stmts []Stmt
	Tail  Expr // nil when the block has no trailing expression (Unit)
	Sp    position.Span
}

func (b *Block) Span() position.Span { return b.Sp }

// Stmt is implemented by every statement kind.
type Stmt interface {
	stmtNode()
	Span() position.Span
}

// LetStmt is `let name[: Type] = expr;`.
type LetStmt struct {
	Name string
	Type *TypeRef // nil when the type is inferred from Value
	Value Expr
	Sp   position.Span
}

func (s *LetStmt) stmtNode()            {}
func (s *LetStmt) Span() position.Span { return s.Sp }

// AssignStmt is `name = expr;` to a previously-let-bound name.
type AssignStmt struct {
	Name  string
	Value Expr
	Sp    position.Span
}

func (s *AssignStmt) stmtNode()            {}
func (s *AssignStmt) Span() position.Span { return s.Sp }

// ReturnStmt is `return [expr];`.
type ReturnStmt struct {
	Value Expr // nil for a bare `return;`
	Sp    position.Span
}

func (s *ReturnStmt) stmtNode()            {}
func (s *ReturnStmt) Span() position.Span { return s.Sp }

// ExprStmt wraps an expression used in statement position (if/while loops,
// or any expression whose value is discarded).
type ExprStmt struct {
	Value Expr
	Sp    position.Span
}

func (s *ExprStmt) stmtNode()            {}
func (s *ExprStmt) Span() position.Span { return s.Sp }

// Expr is implemented by every expression kind.
type Expr interface {
	exprNode()
	Span() position.Span
}

// Ident is a bare identifier reference.
type Ident struct {
	Name string
	Sp   position.Span
}

func (e *Ident) exprNode()             {}
func (e *Ident) Span() position.Span { return e.Sp }

// IntLit is an integer literal, preserved as the text the lexer produced.
type IntLit struct {
	Text string
	Sp   position.Span
}

func (e *IntLit) exprNode()             {}
func (e *IntLit) Span() position.Span { return e.Sp }

// BoolLit is `true` or `false`.
type BoolLit struct {
	Value bool
	Sp    position.Span
}

func (e *BoolLit) exprNode()             {}
func (e *BoolLit) Span() position.Span { return e.Sp }

// StringLit is a string literal used as an expression.
type StringLit struct {
	Value string
	Sp    position.Span
}

func (e *StringLit) exprNode()             {}
func (e *StringLit) Span() position.Span { return e.Sp }

// FieldAccess is `base.field`, used both for record field projection and
// the recognized pseudo-projections (option.some, result.ok, list.item, …).
type FieldAccess struct {
	Base  Expr
	Field string
	Sp    position.Span
}

func (e *FieldAccess) exprNode()             {}
func (e *FieldAccess) Span() position.Span { return e.Sp }

// BinaryExpr is `left op right`.
type BinaryExpr struct {
	Op    string // "+", "==", "!="
	Left  Expr
	Right Expr
	Sp    position.Span
}

func (e *BinaryExpr) exprNode()             {}
func (e *BinaryExpr) Span() position.Span { return e.Sp }

// CallExpr is `callee(args...)`.
type CallExpr struct {
	Callee string
	Args   []Expr
	Sp     position.Span
}

func (e *CallExpr) exprNode()             {}
func (e *CallExpr) Span() position.Span { return e.Sp }

// RecordFieldInit is one `name: expr` initializer in a record literal.
type RecordFieldInit struct {
	Name  string
	Value Expr
}

// RecordLit is `Name { field: expr; ... }`.
type RecordLit struct {
	Record string
	Fields []RecordFieldInit
	Sp     position.Span
}

func (e *RecordLit) exprNode()             {}
func (e *RecordLit) Span() position.Span { return e.Sp }

// EnumLit is `[Enum.]Variant[(payload)]`, used for constructing enum
// values. Enum is empty when the variant reference is unqualified.
type EnumLit struct {
	Enum    string
	Variant string
	Payload Expr // nil when the variant carries no payload
	Sp      position.Span
}

func (e *EnumLit) exprNode()             {}
func (e *EnumLit) Span() position.Span { return e.Sp }

// IfExpr is `if cond { then } [else { else }]`.
type IfExpr struct {
	Cond Expr
	Then *Block
	Else *Block // nil when there is no else branch
	Sp   position.Span
}

func (e *IfExpr) exprNode()             {}
func (e *IfExpr) Span() position.Span { return e.Sp }

// WhileExpr is `while cond { body }`.
type WhileExpr struct {
	Cond Expr
	Body *Block
	Sp   position.Span
}

func (e *WhileExpr) exprNode()             {}
func (e *WhileExpr) Span() position.Span { return e.Sp }

// MatchArm is one arm of a match expression: either a (possibly qualified)
// variant pattern with an optional bind name, or the wildcard `_`.
type MatchArm struct {
	Wildcard bool
	Enum     string // qualifier, empty when unqualified
	Variant  string
	Bind     string
	HasBind  bool
	Body     Expr
	Sp       position.Span
}

// MatchExpr is `match scrutinee { arm, arm, ... }`.
type MatchExpr struct {
	Scrutinee Expr
	Arms      []MatchArm
	Sp        position.Span
}

func (e *MatchExpr) exprNode()             {}
func (e *MatchExpr) Span() position.Span { return e.Sp }

// BlockExpr wraps a Block used directly as an expression (e.g. an if/else
// branch body).
type BlockExpr struct {
	Block *Block
}

func (e *BlockExpr) exprNode()             {}
func (e *BlockExpr) Span() position.Span { return e.Block.Sp }
