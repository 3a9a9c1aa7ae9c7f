// Package dag provides the dependency graph behind column lineage and view
// expansion: nodes keyed by name, edges pointing from a node to what it
// depends on, cycle detection with the offending path, and a dependency
// first ordering.
package dag

import (
	"fmt"
	"slices"
	"sort"
)

// Graph is a directed graph of dependencies. It is not safe for concurrent
// mutation; build it once, then read it from any goroutine.
type Graph[T any] struct {
	nodes map[string]T
	deps  map[string][]string // node -> what it depends on
	users map[string][]string // node -> what depends on it
}

// New creates an empty graph.
func New[T any]() *Graph[T] {
	return &Graph[T]{
		nodes: make(map[string]T),
		deps:  make(map[string][]string),
		users: make(map[string][]string),
	}
}

// AddNode adds a node, or replaces the data of an existing one.
func (g *Graph[T]) AddNode(id string, data T) {
	if _, exists := g.nodes[id]; !exists {
		g.deps[id] = nil
		g.users[id] = nil
	}
	g.nodes[id] = data
}

// DependsOn records that id depends on dep. Both nodes must exist. A node
// may depend on itself; HasCycle reports it.
func (g *Graph[T]) DependsOn(id, dep string) error {
	if _, exists := g.nodes[id]; !exists {
		return fmt.Errorf("node %q does not exist", id)
	}
	if _, exists := g.nodes[dep]; !exists {
		return fmt.Errorf("node %q does not exist", dep)
	}
	if !slices.Contains(g.deps[id], dep) {
		g.deps[id] = append(g.deps[id], dep)
		g.users[dep] = append(g.users[dep], id)
	}
	return nil
}

// Node returns the data of a node.
func (g *Graph[T]) Node(id string) (T, bool) {
	data, ok := g.nodes[id]
	return data, ok
}

// Dependencies returns the direct dependencies of a node.
func (g *Graph[T]) Dependencies(id string) []string {
	return g.deps[id]
}

// Dependents returns the nodes that directly depend on id.
func (g *Graph[T]) Dependents(id string) []string {
	return g.users[id]
}

// Len returns the number of nodes.
func (g *Graph[T]) Len() int {
	return len(g.nodes)
}

// IDs returns every node id, sorted.
func (g *Graph[T]) IDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasCycle reports whether the graph contains a cycle, along with the path
// of the first one found: each element depends on the next and the path
// ends where it starts. Nodes are visited in sorted order so the reported
// cycle is stable.
func (g *Graph[T]) HasCycle() (bool, []string) {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int, len(g.nodes))
	var stack []string
	var cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		state[id] = onStack
		stack = append(stack, id)

		for _, dep := range g.deps[id] {
			switch state[dep] {
			case unvisited:
				if dfs(dep) {
					return true
				}
			case onStack:
				start := slices.Index(stack, dep)
				cycle = append(slices.Clone(stack[start:]), dep)
				return true
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	for _, id := range g.IDs() {
		if state[id] == unvisited && dfs(id) {
			return true, cycle
		}
	}
	return false, nil
}

// TopologicalSort returns node ids with every dependency before its
// dependents. It fails if the graph contains a cycle.
func (g *Graph[T]) TopologicalSort() ([]string, error) {
	if hasCycle, path := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("cycle detected: %v", path)
	}

	visited := make(map[string]bool, len(g.nodes))
	result := make([]string, 0, len(g.nodes))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, dep := range g.deps[id] {
			visit(dep)
		}
		result = append(result, id)
	}

	for _, id := range g.IDs() {
		visit(id)
	}
	return result, nil
}

// Upstream returns everything id depends on, directly or transitively,
// sorted.
func (g *Graph[T]) Upstream(id string) []string {
	return g.reach(id, g.deps)
}

// Downstream returns everything that depends on id, directly or
// transitively, sorted.
func (g *Graph[T]) Downstream(id string) []string {
	return g.reach(id, g.users)
}

func (g *Graph[T]) reach(id string, edges map[string][]string) []string {
	seen := make(map[string]bool)
	var walk func(string)
	walk = func(n string) {
		for _, next := range edges[n] {
			if !seen[next] {
				seen[next] = true
				walk(next)
			}
		}
	}
	walk(id)

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
