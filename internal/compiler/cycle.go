package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/blockjit/internal/ir"
)

// RecursionGroup is a set of procedure variants that can call back into
// themselves.
//
// Recursion is legal. Groups are reported so that a listing can show
// where a non-warp call chain suspends at every level.
type RecursionGroup struct {
	// Variants are the members, sorted.
	Variants []string `json:"variants"`
	// Path is one call cycle through the group, starting and ending at
	// the same variant.
	Path    []string `json:"path"`
	Message string   `json:"message"`
	// Self is set for a single procedure calling itself.
	Self bool `json:"self"`
}

// AnalyzeRecursion finds the recursive procedure groups of rep.
//
// The algorithm:
//  1. Build the call graph from every script's DependedProcedures
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each component with more than one member, or with a self
//     call, as a group
//
// Groups are ordered by their first member.
func AnalyzeRecursion(rep *ir.Representation) []RecursionGroup {
	if rep == nil || len(rep.Procedures) == 0 {
		return []RecursionGroup{}
	}

	graph := buildCallGraph(rep)
	sccs := tarjanSCC(graph)

	groups := []RecursionGroup{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			groups = append(groups, sccToGroup(scc, graph))
		}
	}
	slices.SortFunc(groups, func(a, b RecursionGroup) int {
		return strings.Compare(a.Variants[0], b.Variants[0])
	})
	return groups
}

// callGraph maps a procedure variant to the variants it calls.
type callGraph map[string][]string

// buildCallGraph constructs the graph over procedure variants. Calls to
// variants missing from rep are dropped; the entry script is not a node
// since nothing can call it.
func buildCallGraph(rep *ir.Representation) callGraph {
	graph := make(callGraph)
	for variant, proc := range rep.Procedures {
		edges := []string{}
		for _, callee := range proc.DependedProcedures {
			if _, ok := rep.Procedures[callee]; ok {
				edges = append(edges, callee)
			}
		}
		graph[variant] = edges
	}
	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph callGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so the output is deterministic.
func tarjanSCC(graph callGraph) [][]string {
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

		// v is the root of a component.
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
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func sccToGroup(scc []string, graph callGraph) RecursionGroup {
	members := slices.Clone(scc)
	slices.Sort(members)

	if len(members) == 1 {
		v := members[0]
		return RecursionGroup{
			Variants: members,
			Path:     []string{v, v},
			Message:  fmt.Sprintf("procedure %s calls itself", v),
			Self:     true,
		}
	}

	path := reconstructCyclePath(members, graph)
	return RecursionGroup{
		Variants: members,
		Path:     path,
		Message:  fmt.Sprintf("mutually recursive procedures: %s", strings.Join(path, " → ")),
	}
}

// reconstructCyclePath follows edges inside the component from its first
// member until it gets back to it.
func reconstructCyclePath(scc []string, graph callGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	inSCC := make(map[string]bool, len(scc))
	for _, node := range scc {
		inSCC[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if inSCC[neighbor] && (!visited[neighbor] || neighbor == start) {
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
