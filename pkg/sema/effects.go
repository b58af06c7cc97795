package sema

import (
	"github.com/telagod/kooixc/pkg/ast"
	"github.com/telagod/kooixc/pkg/diagnostic"
	"github.com/telagod/kooixc/pkg/hir"
)

var knownEffectNames = map[string]bool{"net": true, "model": true, "tool": true, "io": true}

// checkFunctionEffects validates one function's effect list: every effect
// should be one of the known names (unknown warns), declared only once per
// name:arg pair (a repeat warns), and its required capability head must be
// required by the function's own `requires` list. `model`/`tool`/`net`
// effects that carry an argument must also match a required instance of
// that head whose first string argument equals the effect's argument;
// `model` without an argument is always an error.
func checkFunctionEffects(fn *hir.Function, idx *index, bag *diagnostic.Bag) {
	if len(fn.Effects) > 0 && len(fn.Requires) == 0 {
		bag.Errorf(fn.Span, "function '%s' declares effects but has no requires clause", fn.Name)
	}

	seen := map[string]bool{}
	for _, eff := range fn.Effects {
		if !knownEffectNames[eff.Name] {
			bag.Warnf(fn.Span, "function '%s' declares unknown effect '%s'", fn.Name, eff.Name)
			continue
		}
		key := eff.Name + ":" + eff.Argument
		if seen[key] {
			bag.Warnf(fn.Span, "function '%s' declares effect '%s' more than once", fn.Name, eff.Name)
			continue
		}
		seen[key] = true

		if eff.Name == "model" && !eff.HasArg {
			bag.Errorf(fn.Span, "function '%s' uses effect 'model' without a provider argument", fn.Name)
		}

		head, _ := effectRequiredCapabilityHead(eff.Name)
		if !requiresHead(fn.Requires, head) {
			bag.Errorf(fn.Span, "function '%s' uses effect '%s' but does not require '%s' capability", fn.Name, eff.Name, head)
			continue
		}

		if eff.HasArg && (eff.Name == "model" || eff.Name == "tool" || eff.Name == "net") && !requiresMatchingArgument(fn.Requires, head, eff.Argument) {
			bag.Errorf(fn.Span, "function '%s' uses effect '%s(%s)' but does not require a matching '%s' capability instance", fn.Name, eff.Name, eff.Argument, head)
		}
	}
}

// requiresHead reports whether requires contains at least one entry whose
// head equals head.
func requiresHead(requires []ast.TypeRef, head string) bool {
	for _, r := range requires {
		if r.Head() == head {
			return true
		}
	}
	return false
}

// requiresMatchingArgument reports whether requires contains an entry
// whose head equals head and whose first string-kind argument equals arg.
func requiresMatchingArgument(requires []ast.TypeRef, head, arg string) bool {
	for _, r := range requires {
		if r.Head() != head {
			continue
		}
		for _, a := range r.Args {
			if a.Kind == ast.TypeArgString {
				if a.String == arg {
					return true
				}
				break
			}
		}
	}
	return false
}

// effectRequiredCapabilityHead maps an effect name to the capability head a
// function declaring it must also declare.
func effectRequiredCapabilityHead(effectName string) (string, bool) {
	switch effectName {
	case "model":
		return "Model", true
	case "net":
		return "Net", true
	case "tool":
		return "Tool", true
	case "io":
		return "Io", true
	default:
		return "", false
	}
}

// recordCapabilityArguments is called during index construction to capture
// each capability's first string argument, kept for callers that still
// want a program-wide view of granted capability arguments independent of
// any one declaration's requires list.
func recordCapabilityArguments(idx *index, t ast.TypeRef) {
	if idx.capabilityArgs == nil {
		idx.capabilityArgs = map[string]map[string]bool{}
	}
	for _, a := range t.Args {
		if a.Kind != ast.TypeArgString {
			continue
		}
		head := t.Head()
		if idx.capabilityArgs[head] == nil {
			idx.capabilityArgs[head] = map[string]bool{}
		}
		idx.capabilityArgs[head][a.String] = true
		break
	}
}
