package sema

import (
	"github.com/telagod/kooixc/pkg/ast"
	"github.com/telagod/kooixc/pkg/diagnostic"
	"github.com/telagod/kooixc/pkg/hir"
	"github.com/telagod/kooixc/pkg/position"
)

// checkFunctions validates every function declaration's signature, effect
// list, ensures clauses, and (when present) body.
func checkFunctions(program *hir.Program, idx *index, bag *diagnostic.Bag) {
	for i := range program.Functions {
		fn := &program.Functions[i]

		checkParamsUnique(fn.Name, fn.Params, fn.Span, bag)
		checkGenericsUnique(fn.Generics, "function", fn.Name, fn.Span, bag)
		checkRequires(fn.Requires, idx, "function", fn.Name, fn.Span, bag)
		checkFunctionEffects(fn, idx, bag)
		checkEnsureClauses(fn.Ensures, fn.Params, "function", fn.Name, fn.Span, bag)
		checkFailurePolicy(fn.Failure, "function", fn.Name, fn.Span, bag)

		if fn.Body == nil {
			continue
		}

		env := map[string]ast.TypeRef{}
		for _, p := range fn.Params {
			env[p.Name] = p.Type
		}

		checker := &bodyChecker{fn: fn, idx: idx, bag: bag}
		checker.checkBlock(fn.Body, env, &fn.ReturnType)
	}
}

// checkParamsUnique flags a parameter name reused within a single
// declaration's parameter list.
func checkParamsUnique(fnName string, params []hir.Param, span position.Span, bag *diagnostic.Bag) {
	seen := map[string]bool{}
	for _, p := range params {
		if seen[p.Name] {
			bag.Errorf(span, "'%s' repeats parameter '%s'", fnName, p.Name)
			continue
		}
		seen[p.Name] = true
	}
}
