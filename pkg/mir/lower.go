package mir

import (
	"fmt"

	"github.com/telagod/kooixc/pkg/ast"
	"github.com/telagod/kooixc/pkg/diagnostic"
	"github.com/telagod/kooixc/pkg/hir"
)

// recordInfo is the declaration-time shape of a record as needed by
// lowering: field order/types and whether the shape itself is supported.
type recordInfo struct {
	name      string
	fields    []FieldLayout
	supported bool
}

// enumInfo is the declaration-time shape of an enum as needed by
// lowering: variant order/tags/payload types and supportedness.
type enumInfo struct {
	name      string
	variants  []VariantLayout
	byName    map[string]VariantLayout
	supported bool
}

func intTy() ast.TypeRef  { return ast.TypeRef{Name: "Int"} }
func boolTy() ast.TypeRef { return ast.TypeRef{Name: "Bool"} }
func unitTy() ast.TypeRef { return ast.TypeRef{Name: "Unit"} }

func isScalarTy(t ast.TypeRef) bool {
	return t.Name == "Int" || t.Name == "Bool" || t.Name == "Unit"
}

func tyEq(a, b ast.TypeRef) bool { return a.String() == b.String() }

// Lower lowers every eligible function in program to MIR, collecting a
// lowering error diagnostic (on the function's own span) for each function
// it cannot lower rather than aborting the whole program, mirroring the
// semantic analyzer's accumulate-don't-abort posture in §7.
func Lower(program *hir.Program) (*Program, []diagnostic.Diagnostic) {
	var bag diagnostic.Bag

	records, recIndex := lowerRecordLayouts(program)
	enums, enumIndex := lowerEnumLayouts(program)

	funcIndex := map[string]*hir.Function{}
	for i := range program.Functions {
		funcIndex[program.Functions[i].Name] = &program.Functions[i]
	}

	out := &Program{Records: records, Enums: enums}

	for i := range program.Functions {
		fn := &program.Functions[i]
		mirFn, err := lowerFunction(fn, recIndex, enumIndex, funcIndex)
		if err != nil {
			bag.Errorf(fn.Span, "function '%s' cannot be lowered to MIR: %v", fn.Name, err)
			continue
		}
		out.Functions = append(out.Functions, *mirFn)
	}

	return out, bag.Diagnostics()
}

func lowerRecordLayouts(program *hir.Program) ([]RecordLayout, map[string]*recordInfo) {
	index := map[string]*recordInfo{}
	var out []RecordLayout
	for _, r := range program.Records {
		info := &recordInfo{name: r.Name}
		info.supported = len(r.Generics) == 0
		for _, f := range r.Fields {
			if f.Type.Name != "Int" && f.Type.Name != "Bool" {
				info.supported = false
			}
			info.fields = append(info.fields, FieldLayout{Name: f.Name, Type: f.Type})
		}
		index[r.Name] = info
		if info.supported {
			out = append(out, RecordLayout{Name: r.Name, Fields: info.fields})
		}
	}
	return out, index
}

func lowerEnumLayouts(program *hir.Program) ([]EnumLayout, map[string]*enumInfo) {
	index := map[string]*enumInfo{}
	var out []EnumLayout
	for _, e := range program.Enums {
		info := &enumInfo{name: e.Name, byName: map[string]VariantLayout{}}
		info.supported = len(e.Generics) == 0 && len(e.Variants) <= 255
		for tag, v := range e.Variants {
			if v.Payload != nil && v.Payload.Name != "Int" && v.Payload.Name != "Bool" {
				info.supported = false
			}
			vl := VariantLayout{Name: v.Name, Tag: tag, Payload: v.Payload}
			info.variants = append(info.variants, vl)
			info.byName[v.Name] = vl
		}
		index[e.Name] = info
		if info.supported {
			out = append(out, EnumLayout{Name: e.Name, Variants: info.variants})
		}
	}
	return out, index
}

// typeSupported reports whether t is one of the native scalars, a
// supported record, or a supported enum per §4.7.
func typeSupported(t ast.TypeRef, recIndex map[string]*recordInfo, enumIndex map[string]*enumInfo) bool {
	if isScalarTy(t) {
		return true
	}
	if r, ok := recIndex[t.Name]; ok {
		return r.supported
	}
	if e, ok := enumIndex[t.Name]; ok {
		return e.supported
	}
	return false
}

// builder accumulates locals and basic blocks for a single function being
// lowered, tracking the in-progress block so callers terminate it exactly
// once.
type builder struct {
	locals       []Local
	scopes       []map[string]int
	blocks       []Block
	current      int  // index into blocks of the block being appended to
	terminated   bool // true once the current block's Terminator is set
	labelCounter int

	recIndex  map[string]*recordInfo
	enumIndex map[string]*enumInfo
	funcIndex map[string]*hir.Function
}

func (b *builder) newLabel(prefix string) string {
	label := fmt.Sprintf("%s%d", prefix, b.labelCounter)
	b.labelCounter++
	return label
}

func (b *builder) newBlock(label string) int {
	b.blocks = append(b.blocks, Block{Label: label})
	return len(b.blocks) - 1
}

func (b *builder) switchTo(idx int) {
	b.current = idx
	b.terminated = b.blocks[idx].Terminator != nil
}

func (b *builder) emit(stmt Statement) {
	b.blocks[b.current].Statements = append(b.blocks[b.current].Statements, stmt)
}

func (b *builder) terminate(term Terminator) {
	if b.terminated {
		return
	}
	b.blocks[b.current].Terminator = term
	b.terminated = true
}

func (b *builder) pushScope()            { b.scopes = append(b.scopes, map[string]int{}) }
func (b *builder) popScope()              { b.scopes = b.scopes[:len(b.scopes)-1] }
func (b *builder) declare(name string, idx int) error {
	top := b.scopes[len(b.scopes)-1]
	if _, exists := top[name]; exists {
		return fmt.Errorf("redeclares local '%s'", name)
	}
	top[name] = idx
	return nil
}

func (b *builder) lookup(name string) (int, bool) {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if idx, ok := b.scopes[i][name]; ok {
			return idx, true
		}
	}
	return 0, false
}

func (b *builder) allocLocal(name string, ty ast.TypeRef) int {
	b.locals = append(b.locals, Local{Name: name, Type: ty})
	return len(b.locals) - 1
}

func lowerFunction(fn *hir.Function, recIndex map[string]*recordInfo, enumIndex map[string]*enumInfo, funcIndex map[string]*hir.Function) (*Function, error) {
	if len(fn.Generics) != 0 {
		return nil, fmt.Errorf("generic functions are not supported in MIR")
	}
	if len(fn.Effects) != 0 {
		return nil, fmt.Errorf("effectful functions are not supported in MIR")
	}
	if !typeSupported(fn.ReturnType, recIndex, enumIndex) {
		return nil, fmt.Errorf("return type '%s' is not representable in MIR", fn.ReturnType.String())
	}
	for _, p := range fn.Params {
		if !typeSupported(p.Type, recIndex, enumIndex) {
			return nil, fmt.Errorf("parameter '%s' has type '%s' not representable in MIR", p.Name, p.Type.String())
		}
	}

	b := &builder{recIndex: recIndex, enumIndex: enumIndex, funcIndex: funcIndex}
	b.pushScope()

	var params []Param
	for _, p := range fn.Params {
		idx := b.allocLocal(p.Name, p.Type)
		if err := b.declare(p.Name, idx); err != nil {
			return nil, err
		}
		params = append(params, Param{Name: p.Name, Type: p.Type, LocalIndex: idx})
	}

	entry := b.newBlock(b.newLabel("bb"))
	b.switchTo(entry)

	effectNames := make([]string, 0, len(fn.Effects))
	for _, e := range fn.Effects {
		effectNames = append(effectNames, e.Name)
	}

	if fn.Body == nil {
		b.terminate(ReturnDefault{Ty: fn.ReturnType})
		return &Function{
			Name: fn.Name, Params: params, ReturnType: fn.ReturnType,
			Effects: effectNames, Locals: b.locals, Blocks: b.blocks,
		}, nil
	}

	op, _, err := b.lowerBlock(fn.Body)
	if err != nil {
		return nil, err
	}
	if !b.terminated {
		if tyEq(fn.ReturnType, unitTy()) {
			b.terminate(Return{Value: nil})
		} else {
			b.terminate(Return{Value: &op})
		}
	}

	return &Function{
		Name: fn.Name, Params: params, ReturnType: fn.ReturnType,
		Effects: effectNames, Locals: b.locals, Blocks: b.blocks,
	}, nil
}

// lowerBlock lowers every statement in blk into the builder's current
// block, then evaluates (without terminating) the tail expression,
// returning its operand and type. A Unit-typed tail/void block yields a
// ConstBool(false) placeholder operand that callers must not read.
func (b *builder) lowerBlock(blk *ast.Block) (Operand, ast.TypeRef, error) {
	b.pushScope()
	defer b.popScope()

	for _, stmt := range blk.Stmts {
		if b.terminated {
			break // unreachable tail after a return is discarded
		}
		if err := b.lowerStmt(stmt); err != nil {
			return nil, ast.TypeRef{}, err
		}
	}

	if b.terminated {
		return ConstBool{Value: false}, unitTy(), nil
	}
	if blk.Tail == nil {
		return ConstBool{Value: false}, unitTy(), nil
	}
	return b.lowerExpr(blk.Tail)
}

func (b *builder) lowerStmt(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.LetStmt:
		op, ty, err := b.lowerExpr(s.Value)
		if err != nil {
			return err
		}
		if s.Type != nil {
			ty = *s.Type
		}
		idx := b.allocLocal(s.Name, ty)
		if err := b.declare(s.Name, idx); err != nil {
			return err
		}
		if !tyEq(ty, unitTy()) {
			b.emit(Assign{Dst: idx, Rvalue: Use{Operand: op}})
		}
		return nil

	case *ast.AssignStmt:
		idx, ok := b.lookup(s.Name)
		if !ok {
			return fmt.Errorf("assigns to unknown local '%s'", s.Name)
		}
		op, ty, err := b.lowerExpr(s.Value)
		if err != nil {
			return err
		}
		if !tyEq(ty, unitTy()) {
			b.emit(Assign{Dst: idx, Rvalue: Use{Operand: op}})
		}
		return nil

	case *ast.ReturnStmt:
		if s.Value == nil {
			b.terminate(Return{Value: nil})
			return nil
		}
		op, ty, err := b.lowerExpr(s.Value)
		if err != nil {
			return err
		}
		if tyEq(ty, unitTy()) {
			b.terminate(Return{Value: nil})
		} else {
			b.terminate(Return{Value: &op})
		}
		return nil

	case *ast.ExprStmt:
		_, _, err := b.lowerExpr(s.Value)
		return err
	}
	return fmt.Errorf("unsupported statement kind")
}

func (b *builder) lowerExpr(e ast.Expr) (Operand, ast.TypeRef, error) {
	switch ex := e.(type) {
	case *ast.IntLit:
		var v int64
		fmt.Sscanf(ex.Text, "%d", &v)
		return ConstInt{Value: v}, intTy(), nil

	case *ast.BoolLit:
		return ConstBool{Value: ex.Value}, boolTy(), nil

	case *ast.Ident:
		idx, ok := b.lookup(ex.Name)
		if !ok {
			return nil, ast.TypeRef{}, fmt.Errorf("references unknown local '%s'", ex.Name)
		}
		return LocalOperand{Index: idx}, b.locals[idx].Type, nil

	case *ast.BinaryExpr:
		return b.lowerBinary(ex)

	case *ast.CallExpr:
		return b.lowerCall(ex)

	case *ast.RecordLit:
		return b.lowerRecordLit(ex)

	case *ast.FieldAccess:
		return b.lowerFieldAccess(ex)

	case *ast.EnumLit:
		return b.lowerEnumLit(ex)

	case *ast.IfExpr:
		return b.lowerIf(ex)

	case *ast.WhileExpr:
		return b.lowerWhile(ex)

	case *ast.BlockExpr:
		return b.lowerBlock(ex.Block)

	case *ast.MatchExpr:
		// §4.7's lowering rules enumerate let/if/while/Call/RecordLit/
		// field-projection only; match arms over enum payloads are left
		// unlowered here the same way §9's Open Questions leave the LLVM
		// emitter's non-ReturnDefault terminators unserialized — a gap
		// carried forward rather than silently closed.
		return nil, ast.TypeRef{}, fmt.Errorf("match expressions are not lowered to MIR")
	}
	return nil, ast.TypeRef{}, fmt.Errorf("unsupported expression kind")
}

func (b *builder) lowerBinary(ex *ast.BinaryExpr) (Operand, ast.TypeRef, error) {
	left, leftTy, err := b.lowerExpr(ex.Left)
	if err != nil {
		return nil, ast.TypeRef{}, err
	}
	right, _, err := b.lowerExpr(ex.Right)
	if err != nil {
		return nil, ast.TypeRef{}, err
	}

	resultTy := boolTy()
	if ex.Op == "+" {
		resultTy = leftTy
	}

	idx := b.allocLocal("", resultTy)
	b.emit(Assign{Dst: idx, Rvalue: Binary{Op: ex.Op, Left: left, Right: right}})
	return LocalOperand{Index: idx}, resultTy, nil
}

func (b *builder) lowerCall(ex *ast.CallExpr) (Operand, ast.TypeRef, error) {
	target, ok := b.funcIndex[ex.Callee]
	if !ok {
		return nil, ast.TypeRef{}, fmt.Errorf("calls unknown function '%s'", ex.Callee)
	}
	if len(target.Generics) != 0 {
		return nil, ast.TypeRef{}, fmt.Errorf("calls generic function '%s'", ex.Callee)
	}
	if len(target.Effects) != 0 {
		return nil, ast.TypeRef{}, fmt.Errorf("calls effectful function '%s'", ex.Callee)
	}

	args := make([]Operand, 0, len(ex.Args))
	for _, a := range ex.Args {
		op, _, err := b.lowerExpr(a)
		if err != nil {
			return nil, ast.TypeRef{}, err
		}
		args = append(args, op)
	}

	if tyEq(target.ReturnType, unitTy()) {
		b.emit(Eval{Rvalue: Call{Callee: ex.Callee, Args: args}})
		return ConstBool{Value: false}, unitTy(), nil
	}
	idx := b.allocLocal("", target.ReturnType)
	b.emit(Assign{Dst: idx, Rvalue: Call{Callee: ex.Callee, Args: args}})
	return LocalOperand{Index: idx}, target.ReturnType, nil
}

func (b *builder) lowerRecordLit(ex *ast.RecordLit) (Operand, ast.TypeRef, error) {
	info, ok := b.recIndex[ex.Record]
	if !ok || !info.supported {
		return nil, ast.TypeRef{}, fmt.Errorf("record '%s' is not representable in MIR", ex.Record)
	}

	byName := map[string]ast.Expr{}
	for _, f := range ex.Fields {
		byName[f.Name] = f.Value
	}

	fields := make([]Operand, 0, len(info.fields))
	for _, f := range info.fields {
		valueExpr, ok := byName[f.Name]
		if !ok {
			return nil, ast.TypeRef{}, fmt.Errorf("record literal for '%s' is missing field '%s'", ex.Record, f.Name)
		}
		op, _, err := b.lowerExpr(valueExpr)
		if err != nil {
			return nil, ast.TypeRef{}, err
		}
		fields = append(fields, op)
	}

	ty := ast.TypeRef{Name: ex.Record}
	idx := b.allocLocal("", ty)
	b.emit(Assign{Dst: idx, Rvalue: RecordLit{Record: ex.Record, Fields: fields}})
	return LocalOperand{Index: idx}, ty, nil
}

func (b *builder) lowerFieldAccess(ex *ast.FieldAccess) (Operand, ast.TypeRef, error) {
	baseOp, baseTy, err := b.lowerExpr(ex.Base)
	if err != nil {
		return nil, ast.TypeRef{}, err
	}
	info, ok := b.recIndex[baseTy.Name]
	if !ok || !info.supported {
		return nil, ast.TypeRef{}, fmt.Errorf("field projection base '%s' is not a known record", baseTy.String())
	}
	for i, f := range info.fields {
		if f.Name == ex.Field {
			idx := b.allocLocal("", f.Type)
			b.emit(Assign{Dst: idx, Rvalue: ProjectField{Base: baseOp, Record: baseTy.Name, Field: f.Name, Index: i}})
			return LocalOperand{Index: idx}, f.Type, nil
		}
	}
	return nil, ast.TypeRef{}, fmt.Errorf("record '%s' has no field '%s'", baseTy.Name, ex.Field)
}

func (b *builder) lowerEnumLit(ex *ast.EnumLit) (Operand, ast.TypeRef, error) {
	enumName := ex.Enum
	var info *enumInfo
	if enumName != "" {
		info = b.enumIndex[enumName]
	} else {
		for name, candidate := range b.enumIndex {
			if _, ok := candidate.byName[ex.Variant]; ok {
				if info != nil {
					return nil, ast.TypeRef{}, fmt.Errorf("variant '%s' is ambiguous across enums", ex.Variant)
				}
				info = candidate
				enumName = name
			}
		}
	}
	if info == nil || !info.supported {
		return nil, ast.TypeRef{}, fmt.Errorf("enum variant '%s' is not representable in MIR", ex.Variant)
	}
	variant, ok := info.byName[ex.Variant]
	if !ok {
		return nil, ast.TypeRef{}, fmt.Errorf("enum '%s' has no variant '%s'", enumName, ex.Variant)
	}

	var payload *Operand
	if ex.Payload != nil {
		op, _, err := b.lowerExpr(ex.Payload)
		if err != nil {
			return nil, ast.TypeRef{}, err
		}
		payload = &op
	}

	ty := ast.TypeRef{Name: enumName}
	idx := b.allocLocal("", ty)
	b.emit(Assign{Dst: idx, Rvalue: EnumLit{Enum: enumName, Tag: variant.Tag, Payload: payload, PayloadTy: variant.Payload}})
	return LocalOperand{Index: idx}, ty, nil
}

func (b *builder) lowerIf(ex *ast.IfExpr) (Operand, ast.TypeRef, error) {
	cond, _, err := b.lowerExpr(ex.Cond)
	if err != nil {
		return nil, ast.TypeRef{}, err
	}

	thenLabel := b.newLabel("bb")
	elseLabel := b.newLabel("bb")
	joinLabel := b.newLabel("bb")

	thenIdx := b.newBlock(thenLabel)
	elseIdx := b.newBlock(elseLabel)
	b.terminate(If{Cond: cond, ThenLabel: thenLabel, ElseLabel: elseLabel})

	joinIdx := b.newBlock(joinLabel)

	b.switchTo(thenIdx)
	thenOp, thenTy, err := b.lowerBlock(ex.Then)
	if err != nil {
		return nil, ast.TypeRef{}, err
	}
	thenEndIdx := b.current
	thenTerminated := b.terminated
	if !thenTerminated {
		b.terminate(Goto{Label: joinLabel})
	}

	var elseOp Operand = ConstBool{Value: false}
	elseTy := unitTy()
	b.switchTo(elseIdx)
	if ex.Else != nil {
		elseOp, elseTy, err = b.lowerBlock(ex.Else)
		if err != nil {
			return nil, ast.TypeRef{}, err
		}
	}
	elseEndIdx := b.current
	elseTerminated := b.terminated
	if !elseTerminated {
		b.terminate(Goto{Label: joinLabel})
	}

	b.switchTo(joinIdx)

	resultTy := thenTy
	if thenTerminated && !elseTerminated {
		resultTy = elseTy
	}

	if tyEq(resultTy, unitTy()) {
		return ConstBool{Value: false}, unitTy(), nil
	}

	resultIdx := b.allocLocal("", resultTy)
	if !thenTerminated {
		b.blocks[thenEndIdx].Statements = append(b.blocks[thenEndIdx].Statements, Assign{Dst: resultIdx, Rvalue: Use{Operand: thenOp}})
	}
	if !elseTerminated {
		b.blocks[elseEndIdx].Statements = append(b.blocks[elseEndIdx].Statements, Assign{Dst: resultIdx, Rvalue: Use{Operand: elseOp}})
	}
	return LocalOperand{Index: resultIdx}, resultTy, nil
}

func (b *builder) lowerWhile(ex *ast.WhileExpr) (Operand, ast.TypeRef, error) {
	condLabel := b.newLabel("bb")
	bodyLabel := b.newLabel("bb")
	exitLabel := b.newLabel("bb")

	b.terminate(Goto{Label: condLabel})

	condIdx := b.newBlock(condLabel)
	bodyIdx := b.newBlock(bodyLabel)
	exitIdx := b.newBlock(exitLabel)

	b.switchTo(condIdx)
	cond, _, err := b.lowerExpr(ex.Cond)
	if err != nil {
		return nil, ast.TypeRef{}, err
	}
	b.terminate(If{Cond: cond, ThenLabel: bodyLabel, ElseLabel: exitLabel})

	b.switchTo(bodyIdx)
	if _, _, err := b.lowerBlock(ex.Body); err != nil {
		return nil, ast.TypeRef{}, err
	}
	b.terminate(Goto{Label: condLabel})

	b.switchTo(exitIdx)
	return ConstBool{Value: false}, unitTy(), nil
}
