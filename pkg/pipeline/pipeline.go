// Package pipeline wires every compiler stage together into the few
// whole-program operations cmd/kooixc's subcommands need: lex+parse a
// single file, resolve+normalize+merge a module graph, lower to HIR/MIR,
// check, and emit LLVM text or a native binary. It is glue only — no
// stage's logic lives here — the same role minzc's cmd/minzc main.go
// inlines directly into its cobra RunE closures; kooixc factors it out so
// cmd/kooixc stays a thin dispatcher per spec.md's CLI non-goal.
package pipeline

import (
	"github.com/telagod/kooixc/pkg/ast"
	"github.com/telagod/kooixc/pkg/codegen"
	"github.com/telagod/kooixc/pkg/diagnostic"
	"github.com/telagod/kooixc/pkg/hir"
	"github.com/telagod/kooixc/pkg/interp"
	"github.com/telagod/kooixc/pkg/lexer"
	"github.com/telagod/kooixc/pkg/loader"
	"github.com/telagod/kooixc/pkg/mir"
	"github.com/telagod/kooixc/pkg/native"
	"github.com/telagod/kooixc/pkg/normalize"
	"github.com/telagod/kooixc/pkg/parser"
	"github.com/telagod/kooixc/pkg/sema"
)

// ParseSource lexes and parses a single source buffer, returning the AST
// or a single fatal diagnostic per spec.md §7.
func ParseSource(src string) (*ast.Program, *diagnostic.Diagnostic) {
	tokens, lexErr := lexer.Lex(src)
	if lexErr != nil {
		return nil, lexErr
	}
	program, parseErr := parser.Parse(tokens)
	if parseErr != nil {
		return nil, parseErr
	}
	return program, nil
}

// LowerSource parses src and lowers it directly to HIR, for the `hir`
// subcommand and as a building block of Check.
func LowerSource(src string) (*hir.Program, *diagnostic.Diagnostic) {
	program, err := ParseSource(src)
	if err != nil {
		return nil, err
	}
	return hir.Lower(program), nil
}

// Check lexes, parses, lowers, and semantically analyzes a single source
// buffer, for the `check` subcommand. A fatal lex/parse error is returned
// as the sole element of the diagnostics slice.
func Check(src string) (*hir.Program, []diagnostic.Diagnostic) {
	program, err := LowerSource(src)
	if err != nil {
		return nil, []diagnostic.Diagnostic{*err}
	}
	return program, sema.Analyze(program)
}

// CheckModules resolves entry's transitive import graph, normalizes every
// module's namespaced references, merges them into one program in
// dependency order, and semantically analyzes the merge, for the
// `check-modules` subcommand.
func CheckModules(entry string) (*hir.Program, []diagnostic.Diagnostic) {
	graph, modules, diags := loader.LoadPrograms(entry)
	if len(diags) > 0 {
		return nil, diags
	}

	exports := normalize.BuildExportIndex(modules)

	merged := &ast.Program{}
	var allDiags []diagnostic.Diagnostic
	for _, module := range modules {
		normalized, normDiags := normalize.Normalize(module, graph, exports)
		allDiags = append(allDiags, normDiags...)
		if normalized != nil {
			merged.Items = append(merged.Items, normalized.Items...)
		}
	}
	if len(allDiags) > 0 {
		hasError := false
		for _, d := range allDiags {
			if d.Severity == diagnostic.Error {
				hasError = true
				break
			}
		}
		if hasError {
			return nil, allDiags
		}
	}

	program := hir.Lower(merged)
	allDiags = append(allDiags, sema.Analyze(program)...)
	return program, allDiags
}

// LowerMIR parses, lowers to HIR, semantically checks, and (when the
// program checks clean) lowers to MIR, for the `mir` subcommand. Semantic
// errors block lowering per spec.md §7; lowering errors for individual
// functions are appended alongside them.
func LowerMIR(src string) (*mir.Program, []diagnostic.Diagnostic) {
	program, diags := Check(src)
	if program == nil {
		return nil, diags
	}
	for _, d := range diags {
		if d.Severity == diagnostic.Error {
			return nil, diags
		}
	}
	mirProgram, lowerDiags := mir.Lower(program)
	return mirProgram, append(diags, lowerDiags...)
}

// EmitLLVM runs the full pipeline through LLVM-text emission, for the
// `llvm` subcommand.
func EmitLLVM(src string) (string, []diagnostic.Diagnostic) {
	mirProgram, diags := LowerMIR(src)
	if mirProgram == nil {
		return "", diags
	}
	return codegen.EmitLLVM(mirProgram), diags
}

// Interpret runs a non-effectful zero-argument `main` over src's checked
// HIR, for callers exercising the tree-walking interpreter directly
// (spec.md §4.6 is a core capability even though it has no dedicated CLI
// subcommand in §6's list).
func Interpret(src string) (interp.Value, []diagnostic.Diagnostic) {
	program, diags := Check(src)
	for _, d := range diags {
		if d.Severity == diagnostic.Error {
			return interp.UnitValue(), diags
		}
	}
	value, runErr := interp.RunProgram(program)
	if runErr != nil {
		return value, append(diags, *runErr)
	}
	return value, diags
}

// NativeBuildOptions configures BuildNative beyond the LLVM text it
// compiles.
type NativeBuildOptions struct {
	LLC        string
	Clang      string
	OutputPath string
	TimeoutMs  int
}

// BuildNative runs the full pipeline through a linked native executable,
// for the `native` subcommand.
func BuildNative(src string, opts NativeBuildOptions) (string, []diagnostic.Diagnostic, *native.Error) {
	llvmIR, diags := EmitLLVM(src)
	for _, d := range diags {
		if d.Severity == diagnostic.Error {
			return "", diags, &native.Error{Kind: native.ErrDiagnostics, Diagnostics: diags}
		}
	}
	path, buildErr := native.Build(llvmIR, native.BuildOptions{
		LLC: opts.LLC, Clang: opts.Clang, OutputPath: opts.OutputPath, TimeoutMs: opts.TimeoutMs,
	})
	return path, diags, buildErr
}
