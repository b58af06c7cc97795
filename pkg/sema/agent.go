package sema

import (
	"sort"
	"strings"

	"github.com/telagod/kooixc/pkg/ast"
	"github.com/telagod/kooixc/pkg/diagnostic"
	"github.com/telagod/kooixc/pkg/hir"
)

// initStateName is the conventional entry state every agent's reachability
// analysis starts from; a state machine with no rule reaching it from INIT
// can never run.
const initStateName = "INIT"

// checkAgents validates every agent declaration: its parameters and loop
// stages, its policy's allow/deny tool conflicts and iteration bound, every
// state-rule's reachability from INIT, and the termination guarantee that
// no closed state cycle exists without an exit.
func checkAgents(program *hir.Program, idx *index, bag *diagnostic.Bag) {
	for i := range program.Agents {
		a := &program.Agents[i]
		checkParamsUnique(a.Name, a.Params, a.Span, bag)
		checkRequires(a.Requires, idx, "agent", a.Name, a.Span, bag)
		checkEnsureClauses(a.Ensures, a.Params, "agent", a.Name, a.Span, bag)
		checkAgentPolicy(a, bag)
		checkAgentLoop(a, bag)
		checkAgentStateMachine(a, bag)
	}
}

func checkAgentPolicy(a *hir.Agent, bag *diagnostic.Bag) {
	deny := map[string]bool{}
	for _, t := range a.Policy.DenyTools {
		deny[t] = true
	}
	conflicted := false
	for _, t := range a.Policy.AllowTools {
		if deny[t] {
			bag.Errorf(a.Span, "agent '%s' both allows and denies tool '%s'", a.Name, t)
			conflicted = true
		}
	}
	if conflicted {
		bag.Warnf(a.Span, "agent '%s' policy conflict: deny_tools wins over allow_tools", a.Name)
	}

	if a.Policy.HasMaxIterations {
		if !isPositiveIntLiteral(a.Policy.MaxIterations) {
			bag.Errorf(a.Span, "agent '%s' max_iterations '%s' must be a positive integer", a.Name, a.Policy.MaxIterations)
		}
	}

	if a.Policy.HumanInLoopWhen != nil {
		known := agentKnownNames(a)
		checkPredicateValue(a.Policy.HumanInLoopWhen.Left, known, "agent", a.Name, a.Span, bag)
		checkPredicateValue(a.Policy.HumanInLoopWhen.Right, known, "agent", a.Name, a.Span, bag)
	}
}

// agentKnownNames is the set of identifiers a predicate in an agent's
// policy or loop block may reference: the implicit `state`/`result`
// bindings, its parameters, and every explicit state symbol its state
// rules mention.
func agentKnownNames(a *hir.Agent) map[string]bool {
	known := map[string]bool{"result": true, "state": true}
	for _, p := range a.Params {
		known[p.Name] = true
	}
	for _, rule := range a.StateRules {
		known[rule.From] = true
		for _, to := range rule.To {
			known[to] = true
		}
	}
	return known
}

func isPositiveIntLiteral(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != "0"
}

func checkAgentLoop(a *hir.Agent, bag *diagnostic.Bag) {
	if len(a.LoopSpec.Stages) == 0 {
		bag.Errorf(a.Span, "agent '%s' loop declares no stages", a.Name)
	}
	seen := map[string]bool{}
	for _, s := range a.LoopSpec.Stages {
		if seen[s] {
			bag.Warnf(a.Span, "agent '%s' loop repeats stage '%s'", a.Name, s)
			continue
		}
		seen[s] = true
	}

	known := agentKnownNames(a)
	checkPredicateValue(a.LoopSpec.StopWhen.Left, known, "agent", a.Name, a.Span, bag)
	checkPredicateValue(a.LoopSpec.StopWhen.Right, known, "agent", a.Name, a.Span, bag)
}

// checkAgentStateMachine builds the transition graph from a's StateRules
// (expanding `any -> X` fan-ins to an edge from every other known state),
// verifies every state is reachable from INIT via BFS, and runs Tarjan's
// SCC algorithm to reject a cycle with no edge leaving it.
func checkAgentStateMachine(a *hir.Agent, bag *diagnostic.Bag) {
	if len(a.StateRules) == 0 {
		bag.Errorf(a.Span, "agent '%s' declares no state rules", a.Name)
		return
	}

	states := map[string]bool{initStateName: true}
	var explicitEdges []struct{ From, To string }
	var anyTargets []string

	for _, rule := range a.StateRules {
		if len(rule.To) == 0 {
			bag.Errorf(a.Span, "agent '%s' state rule from '%s' has no target", a.Name, rule.From)
		}
		if rule.From != "any" {
			states[rule.From] = true
		}
		for _, to := range rule.To {
			states[to] = true
		}
	}
	seenEdges := map[[2]string]bool{}
	for _, rule := range a.StateRules {
		if rule.From == "any" {
			anyTargets = append(anyTargets, rule.To...)
			continue
		}
		for _, to := range rule.To {
			edge := [2]string{rule.From, to}
			if seenEdges[edge] {
				bag.Warnf(a.Span, "agent '%s' duplicate state edge '%s -> %s'", a.Name, rule.From, to)
				continue
			}
			seenEdges[edge] = true
			explicitEdges = append(explicitEdges, struct{ From, To string }{rule.From, to})
		}
	}

	graph := map[string][]string{}
	for s := range states {
		graph[s] = nil
	}
	for _, e := range explicitEdges {
		graph[e.From] = append(graph[e.From], e.To)
	}
	for from := range states {
		for _, to := range anyTargets {
			graph[from] = append(graph[from], to)
		}
	}

	reachable := bfsReachable(graph, initStateName)
	var unreachable []string
	for s := range states {
		if s == initStateName {
			continue
		}
		if !reachable[s] {
			unreachable = append(unreachable, s)
		}
	}
	sort.Strings(unreachable)
	for _, s := range unreachable {
		bag.Warnf(a.Span, "agent '%s' state '%s' is unreachable from '%s'", a.Name, s, initStateName)
	}

	reachGraph := map[string][]string{}
	for s := range reachable {
		for _, to := range graph[s] {
			if reachable[to] {
				reachGraph[s] = append(reachGraph[s], to)
			}
		}
	}

	stopTarget, hasTarget := extractStateEqualityTarget(a.LoopSpec.StopWhen)
	if hasTarget && !states[stopTarget] {
		bag.Warnf(a.Span, "agent '%s' stop condition targets unknown state '%s'", a.Name, stopTarget)
	}

	anyClosed := false
	for _, scc := range tarjanSCC(reachGraph) {
		if !isClosedCycle(reachGraph, scc) {
			continue
		}
		if hasTarget && len(scc) == 1 && scc[0] == stopTarget {
			continue
		}
		anyClosed = true
		members := append([]string(nil), scc...)
		sort.Strings(members)
		bag.Warnf(a.Span, "agent '%s' closed state cycle without exit: %s", a.Name, strings.Join(members, ", "))
	}

	if a.Policy.HasMaxIterations {
		return
	}
	hasTerminal := false
	for s := range reachable {
		if len(reachGraph[s]) == 0 {
			hasTerminal = true
			break
		}
	}
	if anyClosed || !hasTerminal {
		bag.Warnf(a.Span, "agent '%s' may not terminate", a.Name)
	}
}

// extractStateEqualityTarget recovers the state name X from a `stop when
// state == X` clause; it matches only an equality comparison whose left
// side is the bare path `state` and whose right side is a single-segment
// path (a bare identifier naming a state).
func extractStateEqualityTarget(clause ast.EnsureClause) (string, bool) {
	if clause.Op != ast.OpEq {
		return "", false
	}
	if clause.Left.Kind != ast.PredicatePath || len(clause.Left.Path) != 1 || clause.Left.Path[0] != "state" {
		return "", false
	}
	if clause.Right.Kind != ast.PredicatePath || len(clause.Right.Path) != 1 {
		return "", false
	}
	return clause.Right.Path[0], true
}

func bfsReachable(graph map[string][]string, start string) map[string]bool {
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range graph[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return visited
}

// isClosedCycle reports whether scc is a nontrivial cycle (more than one
// state, or one state with a self-edge) that has no edge leaving its
// member set.
func isClosedCycle(graph map[string][]string, scc []string) bool {
	members := map[string]bool{}
	for _, s := range scc {
		members[s] = true
	}

	isCycle := len(scc) > 1
	if len(scc) == 1 {
		for _, to := range graph[scc[0]] {
			if to == scc[0] {
				isCycle = true
			}
		}
	}
	if !isCycle {
		return false
	}

	for _, s := range scc {
		for _, to := range graph[s] {
			if !members[to] {
				return false
			}
		}
	}
	return true
}

// tarjanSCC computes the strongly connected components of graph using
// Tarjan's algorithm, visiting nodes in sorted order so the result is
// deterministic across runs.
func tarjanSCC(graph map[string][]string) [][]string {
	index := 0
	indices := map[string]int{}
	lowlink := map[string]int{}
	onStack := map[string]bool{}
	var stack []string
	var result [][]string

	var names []string
	for n := range graph {
		names = append(names, n)
	}
	sort.Strings(names)

	var strongconnect func(v string)
	strongconnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var comp []string
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			result = append(result, comp)
		}
	}

	for _, n := range names {
		if _, visited := indices[n]; !visited {
			strongconnect(n)
		}
	}
	return result
}
