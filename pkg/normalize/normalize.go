// Package normalize rewrites a module's qualified `NS::Item` references
// into internal `NS__Item` symbols and inserts header-only stubs for every
// imported function, record, or enum the module actually references, so
// later stages only ever see a single flat, alias-free symbol space. A
// declared alias whose module does not export the named item produces a
// "module check: unknown imported <kind> 'NS::Name'" diagnostic rather than
// failing silently; a qualifier that names no declared alias is left as
// written.
package normalize

import (
	"path/filepath"
	"strings"

	"github.com/telagod/kooixc/pkg/ast"
	"github.com/telagod/kooixc/pkg/diagnostic"
	"github.com/telagod/kooixc/pkg/loader"
	"github.com/telagod/kooixc/pkg/position"
)

// ExportIndex records every top-level function, record, and enum each
// loaded module declares, keyed by the module's canonical file path.
type ExportIndex struct {
	Functions map[string]map[string]*ast.FunctionDecl
	Records   map[string]map[string]*ast.RecordDecl
	Enums     map[string]map[string]*ast.EnumDecl
}

// BuildExportIndex scans every loaded module's top-level items into an
// ExportIndex that Normalize consults to resolve `NS::Item` references.
func BuildExportIndex(modules []loader.LoadedModule) *ExportIndex {
	idx := &ExportIndex{
		Functions: map[string]map[string]*ast.FunctionDecl{},
		Records:   map[string]map[string]*ast.RecordDecl{},
		Enums:     map[string]map[string]*ast.EnumDecl{},
	}
	for _, m := range modules {
		path := canonical(m.Path)
		for _, item := range m.Program.Items {
			switch it := item.(type) {
			case *ast.FunctionDecl:
				if idx.Functions[path] == nil {
					idx.Functions[path] = map[string]*ast.FunctionDecl{}
				}
				idx.Functions[path][it.Name] = it
			case *ast.RecordDecl:
				if idx.Records[path] == nil {
					idx.Records[path] = map[string]*ast.RecordDecl{}
				}
				idx.Records[path][it.Name] = it
			case *ast.EnumDecl:
				if idx.Enums[path] == nil {
					idx.Enums[path] = map[string]*ast.EnumDecl{}
				}
				idx.Enums[path][it.Name] = it
			}
		}
	}
	return idx
}

func canonical(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

type neededRef struct {
	Original string
	Module   string
}

type state struct {
	aliasMap        map[string]string
	exports         *ExportIndex
	neededFunctions map[string]neededRef
	neededRecords   map[string]neededRef
	neededEnums     map[string]neededRef
	fnQueue         []string
	recordQueue     []string
	enumQueue       []string
	inserted        map[string]bool
	diags           []diagnostic.Diagnostic
}

func zero() position.Span { return position.Span{} }

// Normalize rewrites module's qualified references against graph's import
// edges and exports, returning a new Program (module's own AST is left
// untouched) with header-only stubs appended for every imported symbol the
// module actually used. A module with no aliased imports is returned
// unchanged, satisfying idempotence: normalizing twice is a no-op the
// second time since the first pass left no `NS::` reference to match an
// alias against.
func Normalize(module loader.LoadedModule, graph *loader.ModuleGraph, exports *ExportIndex) (*ast.Program, []diagnostic.Diagnostic) {
	modulePath := canonical(module.Path)
	aliasMap := moduleAliasMap(modulePath, graph)
	if len(aliasMap) == 0 {
		return module.Program, nil
	}

	st := &state{
		aliasMap:        aliasMap,
		exports:         exports,
		neededFunctions: map[string]neededRef{},
		neededRecords:   map[string]neededRef{},
		neededEnums:     map[string]neededRef{},
		inserted:        map[string]bool{},
	}

	program := cloneProgram(module.Program)
	for _, item := range program.Items {
		if fn, ok := item.(*ast.FunctionDecl); ok {
			st.normalizeFunctionBody(fn)
		}
	}

	for name := range st.neededRecords {
		st.recordQueue = append(st.recordQueue, name)
	}
	for name := range st.neededEnums {
		st.enumQueue = append(st.enumQueue, name)
	}
	for name := range st.neededFunctions {
		st.fnQueue = append(st.fnQueue, name)
	}

	for len(st.fnQueue) > 0 {
		internal := st.fnQueue[len(st.fnQueue)-1]
		st.fnQueue = st.fnQueue[:len(st.fnQueue)-1]
		if st.inserted[insertedKey("fn", internal)] {
			continue
		}
		st.inserted[insertedKey("fn", internal)] = true

		ref, ok := st.neededFunctions[internal]
		if !ok {
			continue
		}
		template, ok := st.exports.Functions[ref.Module][ref.Original]
		if !ok {
			st.diags = append(st.diags, diagnostic.NewError(zero(),
				"module check: unknown imported function '%s::%s' (from '%s')",
				internalNamespace(internal), ref.Original, ref.Module))
			continue
		}

		alias := internalNamespace(internal)
		stub := stubFunction(template, internal)
		st.rewriteFunctionSignatureForImportedModule(stub, alias, ref.Module)
		program.Items = append(program.Items, stub)
	}

	for len(st.recordQueue) > 0 || len(st.enumQueue) > 0 {
		for len(st.recordQueue) > 0 {
			internal := st.recordQueue[len(st.recordQueue)-1]
			st.recordQueue = st.recordQueue[:len(st.recordQueue)-1]
			if st.inserted[insertedKey("record", internal)] {
				continue
			}
			st.inserted[insertedKey("record", internal)] = true

			ref, ok := st.neededRecords[internal]
			if !ok {
				continue
			}
			template, ok := st.exports.Records[ref.Module][ref.Original]
			if !ok {
				st.diags = append(st.diags, diagnostic.NewError(zero(),
					"module check: unknown imported record '%s::%s' (from '%s')",
					internalNamespace(internal), ref.Original, ref.Module))
				continue
			}

			alias := internalNamespace(internal)
			stub := cloneRecordDecl(template)
			stub.Name = internal
			stub.Sp = zero()
			st.rewriteRecordDeclForImportedModule(stub, alias, ref.Module)
			program.Items = append(program.Items, stub)
		}

		for len(st.enumQueue) > 0 {
			internal := st.enumQueue[len(st.enumQueue)-1]
			st.enumQueue = st.enumQueue[:len(st.enumQueue)-1]
			if st.inserted[insertedKey("enum", internal)] {
				continue
			}
			st.inserted[insertedKey("enum", internal)] = true

			ref, ok := st.neededEnums[internal]
			if !ok {
				continue
			}
			template, ok := st.exports.Enums[ref.Module][ref.Original]
			if !ok {
				st.diags = append(st.diags, diagnostic.NewError(zero(),
					"module check: unknown imported enum '%s::%s' (from '%s')",
					internalNamespace(internal), ref.Original, ref.Module))
				continue
			}

			alias := internalNamespace(internal)
			stub := cloneEnumDecl(template)
			stub.Name = internal
			stub.Sp = zero()
			st.rewriteEnumDeclForImportedModule(stub, alias, ref.Module)
			program.Items = append(program.Items, stub)
		}
	}

	return program, st.diags
}

func insertedKey(kind, internal string) string { return kind + ":" + internal }

// internalNamespace returns the `NS` half of an `NS__Item` mangled name.
func internalNamespace(internal string) string {
	if idx := strings.Index(internal, "__"); idx >= 0 {
		return internal[:idx]
	}
	return internal
}

func moduleAliasMap(modulePath string, graph *loader.ModuleGraph) map[string]string {
	out := map[string]string{}
	if graph == nil {
		return out
	}
	for _, node := range graph.Modules {
		if canonical(node.Path) != modulePath {
			continue
		}
		for _, edge := range node.Imports {
			if !edge.HasNS {
				continue
			}
			out[edge.NS] = canonical(edge.Resolved)
		}
		return out
	}
	return out
}

func stubFunction(template *ast.FunctionDecl, newName string) *ast.FunctionDecl {
	clone := cloneFunctionDecl(template)
	clone.Name = newName
	clone.Intent = ""
	clone.HasIntent = false
	clone.Effects = nil
	clone.Requires = nil
	clone.Ensures = nil
	clone.Failure = nil
	clone.Evidence = nil
	clone.Body = nil
	clone.Sp = zero()
	return clone
}

func (st *state) normalizeFunctionBody(fn *ast.FunctionDecl) {
	st.rewriteTypeRef(&fn.ReturnType)
	for i := range fn.Params {
		st.rewriteTypeRef(&fn.Params[i].Type)
	}
	for i := range fn.Requires {
		st.rewriteTypeRef(&fn.Requires[i])
	}
	if fn.Body == nil {
		return
	}
	st.normalizeBlock(fn.Body)
}

func (st *state) normalizeBlock(b *ast.Block) {
	for _, s := range b.Stmts {
		switch stmt := s.(type) {
		case *ast.LetStmt:
			if stmt.Type != nil {
				st.rewriteTypeRef(stmt.Type)
			}
			st.normalizeExpr(stmt.Value)
		case *ast.AssignStmt:
			st.normalizeExpr(stmt.Value)
		case *ast.ReturnStmt:
			if stmt.Value != nil {
				st.normalizeExpr(stmt.Value)
			}
		case *ast.ExprStmt:
			st.normalizeExpr(stmt.Value)
		}
	}
	if b.Tail != nil {
		st.normalizeExpr(b.Tail)
	}
}

func (st *state) normalizeExpr(e ast.Expr) {
	switch ex := e.(type) {
	case *ast.Ident, *ast.IntLit, *ast.BoolLit, *ast.StringLit:
		// bare name references are resolved in semantic analysis, not here.
	case *ast.FieldAccess:
		st.normalizeExpr(ex.Base)
	case *ast.BinaryExpr:
		st.normalizeExpr(ex.Left)
		st.normalizeExpr(ex.Right)
	case *ast.CallExpr:
		st.rewriteQualifiedCallTarget(&ex.Callee)
		for _, a := range ex.Args {
			st.normalizeExpr(a)
		}
	case *ast.RecordLit:
		rt := ast.TypeRef{Name: ex.Record}
		st.rewriteTypeRef(&rt)
		ex.Record = rt.Name
		for _, f := range ex.Fields {
			st.normalizeExpr(f.Value)
		}
	case *ast.EnumLit:
		st.rewriteQualifiedEnumQualifier(&ex.Enum)
		if ex.Payload != nil {
			st.normalizeExpr(ex.Payload)
		}
	case *ast.IfExpr:
		st.normalizeExpr(ex.Cond)
		st.normalizeBlock(ex.Then)
		if ex.Else != nil {
			st.normalizeBlock(ex.Else)
		}
	case *ast.WhileExpr:
		st.normalizeExpr(ex.Cond)
		st.normalizeBlock(ex.Body)
	case *ast.MatchExpr:
		st.normalizeExpr(ex.Scrutinee)
		for i := range ex.Arms {
			st.normalizeMatchArm(&ex.Arms[i])
		}
	case *ast.BlockExpr:
		st.normalizeBlock(ex.Block)
	}
}

func (st *state) normalizeMatchArm(arm *ast.MatchArm) {
	if arm.Enum != "" {
		st.rewriteQualifiedEnumQualifier(&arm.Enum)
	}
	if arm.Body != nil {
		st.normalizeExpr(arm.Body)
	}
}

// rewriteQualifiedCallTarget rewrites a `NS::name` call target into
// `NS__name` when NS is a declared alias and name is one of its exported
// functions, emitting a "module check: unknown imported function" error
// otherwise. Unqualified and unaliased targets are left untouched.
func (st *state) rewriteQualifiedCallTarget(target *string) {
	parts := strings.Split(*target, "::")
	if len(parts) != 2 {
		return
	}
	alias, name := parts[0], parts[1]
	module, ok := st.aliasMap[alias]
	if !ok {
		return
	}

	internal := alias + "__" + name
	if _, ok := st.exports.Functions[module][name]; ok {
		st.neededFunctions[internal] = neededRef{Original: name, Module: module}
		*target = internal
		return
	}

	st.diags = append(st.diags, diagnostic.NewError(zero(),
		"module check: unknown imported function '%s::%s' (from '%s')", alias, name, module))
}

// rewriteQualifiedEnumQualifier rewrites an EnumLit/MatchArm `NS::Enum`
// qualifier the same way rewriteQualifiedCallTarget rewrites call targets.
func (st *state) rewriteQualifiedEnumQualifier(qualifier *string) {
	parts := strings.Split(*qualifier, "::")
	if len(parts) != 2 {
		return
	}
	alias, name := parts[0], parts[1]
	module, ok := st.aliasMap[alias]
	if !ok {
		return
	}

	internal := alias + "__" + name
	if _, ok := st.exports.Enums[module][name]; ok {
		st.neededEnums[internal] = neededRef{Original: name, Module: module}
		*qualifier = internal
		return
	}

	st.diags = append(st.diags, diagnostic.NewError(zero(),
		"module check: unknown imported enum '%s::%s' (from '%s')", alias, name, module))
}

// rewriteTypeRef rewrites ty's name in place when it is a qualified
// `NS::Type` reference resolvable against NS's exported records or enums.
func (st *state) rewriteTypeRef(ty *ast.TypeRef) {
	for i := range ty.Args {
		if ty.Args[i].Kind == ast.TypeArgType && ty.Args[i].Type != nil {
			st.rewriteTypeRef(ty.Args[i].Type)
		}
	}

	parts := strings.SplitN(ty.Name, "::", 2)
	if len(parts) != 2 {
		return
	}
	head, rest := parts[0], parts[1]
	module, ok := st.aliasMap[head]
	if !ok {
		return
	}
	if strings.Contains(rest, "::") {
		st.diags = append(st.diags, diagnostic.NewError(zero(),
			"module check: imported type ref must be '<ns>::<Type>' (found '%s')", ty.Name))
		return
	}

	internal := head + "__" + rest
	if _, ok := st.exports.Records[module][rest]; ok {
		ty.Name = internal
		st.neededRecords[internal] = neededRef{Original: rest, Module: module}
		return
	}
	if _, ok := st.exports.Enums[module][rest]; ok {
		ty.Name = internal
		st.neededEnums[internal] = neededRef{Original: rest, Module: module}
		return
	}

	st.diags = append(st.diags, diagnostic.NewError(zero(),
		"module check: unknown imported type '%s::%s' (from '%s')", head, rest, module))
}

func (st *state) rewriteFunctionSignatureForImportedModule(fn *ast.FunctionDecl, alias, module string) {
	for gi := range fn.Generics {
		for bi := range fn.Generics[gi].Bounds {
			st.rewriteTypeRefForImportedModule(&fn.Generics[gi].Bounds[bi], alias, module)
		}
	}
	for i := range fn.Params {
		st.rewriteTypeRefForImportedModule(&fn.Params[i].Type, alias, module)
	}
	st.rewriteTypeRefForImportedModule(&fn.ReturnType, alias, module)
}

func (st *state) rewriteRecordDeclForImportedModule(rec *ast.RecordDecl, alias, module string) {
	for gi := range rec.Generics {
		for bi := range rec.Generics[gi].Bounds {
			st.rewriteTypeRefForImportedModule(&rec.Generics[gi].Bounds[bi], alias, module)
		}
	}
	for i := range rec.Fields {
		st.rewriteTypeRefForImportedModule(&rec.Fields[i].Type, alias, module)
	}
}

func (st *state) rewriteEnumDeclForImportedModule(en *ast.EnumDecl, alias, module string) {
	for gi := range en.Generics {
		for bi := range en.Generics[gi].Bounds {
			st.rewriteTypeRefForImportedModule(&en.Generics[gi].Bounds[bi], alias, module)
		}
	}
	for i := range en.Variants {
		if en.Variants[i].Payload != nil {
			st.rewriteTypeRefForImportedModule(en.Variants[i].Payload, alias, module)
		}
	}
}

// rewriteTypeRefForImportedModule rewrites every unqualified type name in
// ty that module exports, queuing its own stub for insertion. Names that
// are already namespace-qualified (referring to some other module) are
// left untouched; only local references from within the imported module's
// own signature get the alias prefix applied.
func (st *state) rewriteTypeRefForImportedModule(ty *ast.TypeRef, alias, module string) {
	for i := range ty.Args {
		if ty.Args[i].Kind == ast.TypeArgType && ty.Args[i].Type != nil {
			st.rewriteTypeRefForImportedModule(ty.Args[i].Type, alias, module)
		}
	}
	if strings.Contains(ty.Name, "::") {
		return
	}

	original := ty.Name
	if _, ok := st.exports.Records[module][original]; ok {
		internal := alias + "__" + original
		ty.Name = internal
		if _, exists := st.neededRecords[internal]; !exists {
			st.neededRecords[internal] = neededRef{Original: original, Module: module}
			st.recordQueue = append(st.recordQueue, internal)
		}
		return
	}
	if _, ok := st.exports.Enums[module][original]; ok {
		internal := alias + "__" + original
		ty.Name = internal
		if _, exists := st.neededEnums[internal]; !exists {
			st.neededEnums[internal] = neededRef{Original: original, Module: module}
			st.enumQueue = append(st.enumQueue, internal)
		}
	}
}
