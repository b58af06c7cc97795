package sema

import (
	"strings"

	"github.com/telagod/kooixc/pkg/ast"
	"github.com/telagod/kooixc/pkg/diagnostic"
	"github.com/telagod/kooixc/pkg/hir"
	"github.com/telagod/kooixc/pkg/position"
)

// checkEnsureClauses validates that every path-valued operand of an ensures
// clause resolves to a declared parameter (or the special `result` name
// bound to the declaration's return value).
func checkEnsureClauses(clauses []ast.EnsureClause, params []hir.Param, kind, name string, span position.Span, bag *diagnostic.Bag) {
	known := map[string]bool{"result": true}
	for _, p := range params {
		known[p.Name] = true
	}

	for _, c := range clauses {
		checkPredicateValue(c.Left, known, kind, name, span, bag)
		checkPredicateValue(c.Right, known, kind, name, span, bag)
	}
}

func checkPredicateValue(v ast.PredicateValue, known map[string]bool, kind, name string, span position.Span, bag *diagnostic.Bag) {
	if v.Kind != ast.PredicatePath || len(v.Path) == 0 {
		return
	}
	if !known[v.Path[0]] {
		bag.Warnf(span, "%s '%s' ensures clause references unknown variable '%s'", kind, name, strings.Join(v.Path, "."))
	}
}

// checkFailurePolicy validates a failure block's rules: it rejects a
// repeated condition string, which would make the second rule dead code.
func checkFailurePolicy(policy *ast.FailurePolicy, kind, name string, span position.Span, bag *diagnostic.Bag) {
	if policy == nil {
		return
	}
	seen := map[string]bool{}
	for _, r := range policy.Rules {
		if seen[r.Condition] {
			bag.Errorf(span, "%s '%s' failure policy repeats condition '%s'", kind, name, r.Condition)
			continue
		}
		seen[r.Condition] = true

		argKeys := map[string]bool{}
		for _, a := range r.Action.Args {
			if !a.HasKey {
				continue
			}
			if argKeys[a.Key] {
				bag.Errorf(span, "%s '%s' failure action '%s' repeats argument '%s'", kind, name, r.Action.Name, a.Key)
				continue
			}
			argKeys[a.Key] = true
		}
	}
}
