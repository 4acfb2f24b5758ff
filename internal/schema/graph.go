package schema

import (
	"github.com/mesh-intelligence/dbstarter/pkg/types"
)

// Edge is a link from one table to another, both as graph keys.
type Edge struct {
	From string
	To   string
}

// Graph is the link graph over table definitions. Nodes are keyed by
// "database.table"; edges follow each table's links. Links to tables that are
// not defined in the graph do not take part in ordering.
type Graph struct {
	order []string
	nodes map[string]*types.TableSpec
}

// NewGraph indexes tables in the given order. A later table with the same key
// replaces an earlier one; Group never produces that.
func NewGraph(tables []*types.TableSpec) *Graph {
	g := &Graph{nodes: make(map[string]*types.TableSpec, len(tables))}
	for _, t := range tables {
		key := t.Key()
		if _, ok := g.nodes[key]; !ok {
			g.order = append(g.order, key)
		}
		g.nodes[key] = t
	}
	return g
}

// Len returns the number of tables.
func (g *Graph) Len() int { return len(g.order) }

// Node returns the table for a key.
func (g *Graph) Node(key string) (*types.TableSpec, bool) {
	t, ok := g.nodes[key]
	return t, ok
}

// Tables returns every table in insertion order.
func (g *Graph) Tables() []*types.TableSpec {
	out := make([]*types.TableSpec, 0, len(g.order))
	for _, k := range g.order {
		out = append(out, g.nodes[k])
	}
	return out
}

// Dependencies returns the keys a table links to that are nodes of this
// graph. Self links are left out: a table may reference its own ID.
func (g *Graph) Dependencies(key string) []string {
	t, ok := g.nodes[key]
	if !ok {
		return nil
	}
	var deps []string
	for _, l := range t.Links {
		k := l.Key()
		if k == key {
			continue
		}
		if _, ok := g.nodes[k]; ok {
			deps = append(deps, k)
		}
	}
	return deps
}

// Edges returns every link between two nodes of the graph, self links
// included, in insertion order.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, k := range g.order {
		for _, l := range g.nodes[k].Links {
			if _, ok := g.nodes[l.Key()]; ok {
				out = append(out, Edge{From: k, To: l.Key()})
			}
		}
	}
	return out
}

// Ordering is the result of Sort.
type Ordering struct {
	// Tables in creation order.
	Tables []*types.TableSpec
	// BackEdges are the links that closed a cycle during the walk. The From
	// table of each is created before its To table.
	BackEdges []Edge
}

// Cyclic reports whether the walk met a cycle.
func (o Ordering) Cyclic() bool { return len(o.BackEdges) > 0 }

// CyclicTables returns the From side of each back edge without repeats.
func (o Ordering) CyclicTables() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range o.BackEdges {
		if !seen[e.From] {
			seen[e.From] = true
			out = append(out, e.From)
		}
	}
	return out
}

// Sort orders tables depth first so every table follows the tables it links
// to. Reaching a table that is still on the recursion stack means a cycle:
// that branch is abandoned, the edge is recorded, and the walk carries on.
// Every table is emitted exactly once.
func (g *Graph) Sort() Ordering {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int, len(g.order))
	var out Ordering

	var visit func(key string)
	visit = func(key string) {
		state[key] = onStack
		for _, dep := range g.Dependencies(key) {
			switch state[dep] {
			case onStack:
				out.BackEdges = append(out.BackEdges, Edge{From: key, To: dep})
			case unvisited:
				visit(dep)
			}
		}
		state[key] = done
		out.Tables = append(out.Tables, g.nodes[key])
	}

	for _, key := range g.order {
		if state[key] == unvisited {
			visit(key)
		}
	}
	return out
}
