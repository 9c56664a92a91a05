package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// CycleWarning represents an alias cycle among compiled queries.
//
// Cycles are warnings rather than compile errors because references are
// found lexically: a prefix form can qualify an id differently than it
// reads. The engine still rejects a real cycle when the term is parsed.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning"
}

// AnalyzeCycles builds the alias dependency graph (alias id -> alias ids
// its term mentions) and reports each strongly connected component with
// more than one member, or with a self-reference, as a warning.
//
// A DAG (no cycles) returns an empty warning list.
func AnalyzeCycles(entries []Entry) []CycleWarning {
	graph := buildAliasGraph(entries)
	if len(graph) == 0 {
		return []CycleWarning{}
	}

	var warnings []CycleWarning
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	if warnings == nil {
		return []CycleWarning{}
	}
	return warnings
}

// dependencyGraph maps an alias id to the alias ids it references.
type dependencyGraph map[string][]string

func buildAliasGraph(entries []Entry) dependencyGraph {
	aliases := make(map[string]bool)
	for _, e := range entries {
		if e.Interface.IsAlias() {
			aliases[e.ID] = true
		}
	}

	graph := make(dependencyGraph)
	for _, e := range entries {
		if !e.Interface.IsAlias() {
			continue
		}
		graph[e.ID] = []string{}
		for _, ref := range termRefs(e.Interface.Term) {
			if aliases[ref] {
				graph[e.ID] = append(graph[e.ID], ref)
			}
		}
	}
	return graph
}

func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so the result is deterministic.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Strings(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		id := scc[0]
		return CycleWarning{
			Path:    []string{id, id},
			Message: fmt.Sprintf("alias %s refers to itself", id),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("alias cycle %s", strings.Join(path, " -> ")),
		Level:   "warning",
	}
}

// reconstructCyclePath starts at the first SCC member and follows edges
// inside the SCC until it returns to the start.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)
	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
