// Package graph orders named nodes by their declared dependencies.
package graph

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	gonumgraph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// ErrCycle is returned when the dependencies cannot be ordered.
var ErrCycle = errors.New("dependency cycle")

// Order returns names so that every name comes after the names it depends
// on. Among names whose dependencies are met, the earliest in input order
// comes first, so independent names keep input order. deps may omit names with no dependencies; a dependency
// on a name not in names is an error.
func Order(names []string, deps map[string][]string) ([]string, error) {
	g := simple.NewDirectedGraph()
	ids := make(map[string]int64, len(names))
	for i, name := range names {
		if _, dup := ids[name]; dup {
			return nil, fmt.Errorf("duplicate node %q", name)
		}
		ids[name] = int64(i)
		g.AddNode(simple.Node(i))
	}

	for _, name := range names {
		for _, dep := range deps[name] {
			from, ok := ids[dep]
			if !ok {
				return nil, fmt.Errorf("%s depends on unknown node %q", name, dep)
			}
			if from == ids[name] {
				return nil, fmt.Errorf("%w: %s depends on itself", ErrCycle, name)
			}
			g.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(ids[name])})
		}
	}

	// Kahn's algorithm, always taking the lowest ready input index.
	indegree := make([]int, len(names))
	for i := range names {
		indegree[i] = g.To(int64(i)).Len()
	}
	var ready []int64
	for i, d := range indegree {
		if d == 0 {
			ready = append(ready, int64(i))
		}
	}
	out := make([]string, 0, len(names))
	for len(ready) > 0 {
		slices.Sort(ready)
		id := ready[0]
		ready = ready[1:]
		out = append(out, names[id])
		to := g.From(id)
		for to.Next() {
			next := to.Node().ID()
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}
	if len(out) < len(names) {
		return nil, fmt.Errorf("%w: %s", ErrCycle, describe(cycles(g), names))
	}
	return out, nil
}

// cycles returns the strongly connected components that contain a cycle.
func cycles(g gonumgraph.Directed) [][]gonumgraph.Node {
	var out [][]gonumgraph.Node
	for _, c := range topo.TarjanSCC(g) {
		if len(c) > 1 {
			out = append(out, c)
		}
	}
	return out
}

func describe(components [][]gonumgraph.Node, names []string) string {
	parts := make([]string, 0, len(components))
	for _, c := range components {
		members := make([]string, 0, len(c))
		for _, n := range c {
			members = append(members, names[n.ID()])
		}
		slices.Sort(members)
		parts = append(parts, strings.Join(members, " <-> "))
	}
	return strings.Join(parts, "; ")
}
