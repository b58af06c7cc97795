package normalize

import "github.com/telagod/kooixc/pkg/ast"

// cloneProgram deep-copies a Program so normalization never mutates the
// LoadedModule it started from; a module re-normalized twice (or reused to
// build the export index for a sibling module) must see its original form.
func cloneProgram(p *ast.Program) *ast.Program {
	out := &ast.Program{Items: make([]ast.Item, len(p.Items))}
	for i, item := range p.Items {
		out.Items[i] = cloneItem(item)
	}
	return out
}

func cloneItem(item ast.Item) ast.Item {
	switch it := item.(type) {
	case *ast.CapabilityDecl:
		cp := *it
		return &cp
	case *ast.ImportDecl:
		cp := *it
		return &cp
	case *ast.RecordDecl:
		return cloneRecordDecl(it)
	case *ast.EnumDecl:
		return cloneEnumDecl(it)
	case *ast.FunctionDecl:
		return cloneFunctionDecl(it)
	case *ast.WorkflowDecl:
		cp := *it
		cp.Params = append([]ast.Param(nil), it.Params...)
		cp.Requires = cloneTypeRefSlice(it.Requires)
		cp.Steps = append([]ast.WorkflowStep(nil), it.Steps...)
		cp.Output = append([]ast.OutputField(nil), it.Output...)
		return &cp
	case *ast.AgentDecl:
		cp := *it
		cp.Params = append([]ast.Param(nil), it.Params...)
		cp.Requires = cloneTypeRefSlice(it.Requires)
		return &cp
	default:
		return item
	}
}

func cloneRecordDecl(r *ast.RecordDecl) *ast.RecordDecl {
	cp := *r
	cp.Generics = cloneGenerics(r.Generics)
	cp.Fields = make([]ast.RecordField, len(r.Fields))
	for i, f := range r.Fields {
		cp.Fields[i] = ast.RecordField{Name: f.Name, Type: cloneTypeRef(f.Type)}
	}
	return &cp
}

func cloneEnumDecl(e *ast.EnumDecl) *ast.EnumDecl {
	cp := *e
	cp.Generics = cloneGenerics(e.Generics)
	cp.Variants = make([]ast.EnumVariant, len(e.Variants))
	for i, v := range e.Variants {
		nv := ast.EnumVariant{Name: v.Name}
		if v.Payload != nil {
			p := cloneTypeRef(*v.Payload)
			nv.Payload = &p
		}
		cp.Variants[i] = nv
	}
	return &cp
}

func cloneFunctionDecl(f *ast.FunctionDecl) *ast.FunctionDecl {
	cp := *f
	cp.Generics = cloneGenerics(f.Generics)
	cp.Params = make([]ast.Param, len(f.Params))
	for i, p := range f.Params {
		cp.Params[i] = ast.Param{Name: p.Name, Type: cloneTypeRef(p.Type)}
	}
	cp.ReturnType = cloneTypeRef(f.ReturnType)
	cp.Requires = cloneTypeRefSlice(f.Requires)
	cp.Ensures = append([]ast.EnsureClause(nil), f.Ensures...)
	if f.Failure != nil {
		fp := *f.Failure
		fp.Rules = append([]ast.FailureRule(nil), f.Failure.Rules...)
		cp.Failure = &fp
	}
	if f.Evidence != nil {
		ev := *f.Evidence
		cp.Evidence = &ev
	}
	if f.Body != nil {
		cp.Body = cloneBlock(f.Body)
	}
	return &cp
}

func cloneGenerics(gs []ast.GenericParam) []ast.GenericParam {
	out := make([]ast.GenericParam, len(gs))
	for i, g := range gs {
		out[i] = ast.GenericParam{Name: g.Name, Bounds: cloneTypeRefSlice(g.Bounds)}
	}
	return out
}

func cloneTypeRefSlice(ts []ast.TypeRef) []ast.TypeRef {
	if ts == nil {
		return nil
	}
	out := make([]ast.TypeRef, len(ts))
	for i, t := range ts {
		out[i] = cloneTypeRef(t)
	}
	return out
}

func cloneTypeRef(t ast.TypeRef) ast.TypeRef {
	cp := t
	if len(t.Args) > 0 {
		cp.Args = make([]ast.TypeArg, len(t.Args))
		for i, a := range t.Args {
			na := a
			if a.Kind == ast.TypeArgType && a.Type != nil {
				nt := cloneTypeRef(*a.Type)
				na.Type = &nt
			}
			cp.Args[i] = na
		}
	}
	return cp
}

func cloneBlock(b *ast.Block) *ast.Block {
	cp := &ast.Block{Sp: b.Sp}
	cp.Stmts = make([]ast.Stmt, len(b.Stmts))
	for i, s := range b.Stmts {
		cp.Stmts[i] = cloneStmt(s)
	}
	if b.Tail != nil {
		cp.Tail = cloneExpr(b.Tail)
	}
	return cp
}

func cloneStmt(s ast.Stmt) ast.Stmt {
	switch st := s.(type) {
	case *ast.LetStmt:
		cp := *st
		if st.Type != nil {
			t := cloneTypeRef(*st.Type)
			cp.Type = &t
		}
		cp.Value = cloneExpr(st.Value)
		return &cp
	case *ast.AssignStmt:
		cp := *st
		cp.Value = cloneExpr(st.Value)
		return &cp
	case *ast.ReturnStmt:
		cp := *st
		if st.Value != nil {
			cp.Value = cloneExpr(st.Value)
		}
		return &cp
	case *ast.ExprStmt:
		cp := *st
		cp.Value = cloneExpr(st.Value)
		return &cp
	default:
		return s
	}
}

func cloneExpr(e ast.Expr) ast.Expr {
	switch ex := e.(type) {
	case *ast.Ident, *ast.IntLit, *ast.BoolLit, *ast.StringLit:
		return e
	case *ast.FieldAccess:
		cp := *ex
		cp.Base = cloneExpr(ex.Base)
		return &cp
	case *ast.BinaryExpr:
		cp := *ex
		cp.Left = cloneExpr(ex.Left)
		cp.Right = cloneExpr(ex.Right)
		return &cp
	case *ast.CallExpr:
		cp := *ex
		cp.Args = make([]ast.Expr, len(ex.Args))
		for i, a := range ex.Args {
			cp.Args[i] = cloneExpr(a)
		}
		return &cp
	case *ast.RecordLit:
		cp := *ex
		cp.Fields = make([]ast.RecordFieldInit, len(ex.Fields))
		for i, f := range ex.Fields {
			cp.Fields[i] = ast.RecordFieldInit{Name: f.Name, Value: cloneExpr(f.Value)}
		}
		return &cp
	case *ast.EnumLit:
		cp := *ex
		if ex.Payload != nil {
			cp.Payload = cloneExpr(ex.Payload)
		}
		return &cp
	case *ast.IfExpr:
		cp := *ex
		cp.Cond = cloneExpr(ex.Cond)
		cp.Then = cloneBlock(ex.Then)
		if ex.Else != nil {
			cp.Else = cloneBlock(ex.Else)
		}
		return &cp
	case *ast.WhileExpr:
		cp := *ex
		cp.Cond = cloneExpr(ex.Cond)
		cp.Body = cloneBlock(ex.Body)
		return &cp
	case *ast.MatchExpr:
		cp := *ex
		cp.Scrutinee = cloneExpr(ex.Scrutinee)
		cp.Arms = make([]ast.MatchArm, len(ex.Arms))
		for i, arm := range ex.Arms {
			na := arm
			na.Body = cloneExpr(arm.Body)
			cp.Arms[i] = na
		}
		return &cp
	case *ast.BlockExpr:
		return &ast.BlockExpr{Block: cloneBlock(ex.Block)}
	default:
		return e
	}
}
