package sema

import (
	"github.com/telagod/kooixc/pkg/ast"
	"github.com/telagod/kooixc/pkg/diagnostic"
	"github.com/telagod/kooixc/pkg/hir"
	"github.com/telagod/kooixc/pkg/position"
)

// checkWorkflows validates every workflow: step id uniqueness, call target
// resolution and argument matching, per-step ensures clauses, and the
// output contract's explicit/name/type inference rules.
func checkWorkflows(program *hir.Program, idx *index, bag *diagnostic.Bag) {
	for i := range program.Workflows {
		w := &program.Workflows[i]
		checkParamsUnique(w.Name, w.Params, w.Span, bag)
		checkRequires(w.Requires, idx, "workflow", w.Name, w.Span, bag)

		env := map[string]ast.TypeRef{}
		for _, p := range w.Params {
			env[p.Name] = p.Type
		}

		seenStepID := map[string]bool{}
		for _, step := range w.Steps {
			if seenStepID[step.ID] {
				bag.Errorf(step.Sp, "workflow '%s' repeats step id '%s'", w.Name, step.ID)
			}
			seenStepID[step.ID] = true

			env[step.ID] = checkWorkflowStep(w.Name, step, step.Sp, env, idx, bag)
		}

		checkWorkflowOutput(w, env, bag)
	}
}

func checkWorkflowStep(workflowName string, step ast.WorkflowStep, span position.Span, env map[string]ast.TypeRef, idx *index, bag *diagnostic.Bag) ast.TypeRef {
	sig, ok := idx.signatures[step.Call.Target]
	if !ok {
		bag.Errorf(span, "workflow '%s' step '%s' calls unknown target '%s'", workflowName, step.ID, step.Call.Target)
		return errType()
	}

	if len(step.Call.Args) != len(sig.Params) {
		bag.Errorf(span, "workflow '%s' step '%s' calls '%s' with %d argument(s), expected %d", workflowName, step.ID, step.Call.Target, len(step.Call.Args), len(sig.Params))
	}

	for i, arg := range step.Call.Args {
		var expected *ast.TypeRef
		if i < len(sig.Params) {
			expected = &sig.Params[i].Type
		}
		checkWorkflowCallArg(workflowName, step.ID, arg, span, env, expected, bag)
	}

	known := map[string]bool{}
	for name := range env {
		known[name] = true
	}
	known[step.ID] = true
	checkEnsurePredicatesAgainstKnown(step.Ensures, known, span, "workflow step", step.ID, bag)

	if step.OnFail != nil {
		checkFailureActionArgs(*step.OnFail, span, "workflow step", step.ID, bag)
	}

	return sig.ReturnType
}

func checkWorkflowCallArg(workflowName, stepID string, arg ast.WorkflowCallArg, span position.Span, env map[string]ast.TypeRef, expected *ast.TypeRef, bag *diagnostic.Bag) {
	switch arg.Kind {
	case ast.CallArgPath:
		if len(arg.Path) == 0 {
			return
		}
		actual, ok := env[arg.Path[0]]
		if !ok {
			bag.Errorf(span, "workflow '%s' step '%s' references unknown variable '%s'", workflowName, stepID, arg.Path[0])
			return
		}
		if expected != nil && !typeEq(actual, *expected) {
			bag.Errorf(span, "workflow '%s' step '%s' passes '%s' of type '%s' but expected '%s'", workflowName, stepID, arg.Path[0], actual.String(), expected.String())
		}
	case ast.CallArgString:
		if expected != nil && expected.Head() != "Text" {
			bag.Errorf(span, "workflow '%s' step '%s' passes a string literal but expected '%s'", workflowName, stepID, expected.String())
		}
	case ast.CallArgNumber:
		if expected != nil && expected.Head() != "Int" {
			bag.Errorf(span, "workflow '%s' step '%s' passes a number literal but expected '%s'", workflowName, stepID, expected.String())
		}
	}
}

// checkWorkflowOutput resolves each declared output field either from its
// explicit Source path, or (when unset) by matching exactly one bound name
// or exactly one bound type among the workflow's params and step results;
// zero matches is an error, more than one is an ambiguity error.
func checkWorkflowOutput(w *hir.Workflow, env map[string]ast.TypeRef, bag *diagnostic.Bag) {
	for _, of := range w.Output {
		var resolved ast.TypeRef
		var ok bool

		switch {
		case len(of.Source) > 0:
			resolved, ok = env[of.Source[0]]
			if !ok {
				bag.Errorf(w.Span, "workflow '%s' output field '%s' references unknown variable '%s'", w.Name, of.Name, of.Source[0])
				continue
			}
		case env[of.Name].Name != "" || hasKey(env, of.Name):
			resolved, ok = env[of.Name]
		default:
			var matches []string
			for name, t := range env {
				if typeEq(t, of.Type) {
					matches = append(matches, name)
				}
			}
			switch len(matches) {
			case 0:
				bag.Errorf(w.Span, "workflow '%s' output field '%s' of type '%s' cannot be inferred from any step or parameter", w.Name, of.Name, of.Type.String())
				continue
			case 1:
				resolved, ok = env[matches[0]], true
			default:
				bag.Errorf(w.Span, "workflow '%s' output field '%s' is ambiguous among bindings of type '%s'", w.Name, of.Name, of.Type.String())
				continue
			}
		}

		if ok && !typeEq(resolved, of.Type) {
			bag.Errorf(w.Span, "workflow '%s' output field '%s' resolves to type '%s' but declares '%s'", w.Name, of.Name, resolved.String(), of.Type.String())
		}
	}
}

func hasKey(m map[string]ast.TypeRef, key string) bool {
	_, ok := m[key]
	return ok
}

func checkEnsurePredicatesAgainstKnown(clauses []ast.EnsureClause, known map[string]bool, span position.Span, kind, name string, bag *diagnostic.Bag) {
	for _, c := range clauses {
		checkPredicatePath(c.Left, known, span, kind, name, bag)
		checkPredicatePath(c.Right, known, span, kind, name, bag)
	}
}

func checkPredicatePath(v ast.PredicateValue, known map[string]bool, span position.Span, kind, name string, bag *diagnostic.Bag) {
	if v.Kind != ast.PredicatePath || len(v.Path) == 0 {
		return
	}
	if !known[v.Path[0]] {
		bag.Errorf(span, "%s '%s' ensures clause references unknown variable '%s'", kind, name, v.Path[0])
	}
}

func checkFailureActionArgs(action ast.FailureAction, span position.Span, kind, name string, bag *diagnostic.Bag) {
	seen := map[string]bool{}
	for _, a := range action.Args {
		if !a.HasKey {
			continue
		}
		if seen[a.Key] {
			bag.Errorf(span, "%s '%s' failure action '%s' repeats argument '%s'", kind, name, action.Name, a.Key)
			continue
		}
		seen[a.Key] = true
	}
}
