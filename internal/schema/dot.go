package schema

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// WriteDOT writes the link graph as a Graphviz digraph. Tables are clustered
// by database, cross-database links are dashed and tables whose links closed
// a cycle are filled.
func WriteDOT(w io.Writer, g *Graph) error {
	bw := bufio.NewWriter(w)

	cyclic := make(map[string]bool)
	for _, k := range g.Sort().CyclicTables() {
		cyclic[k] = true
	}

	byDB := make(map[string][]string)
	var dbs []string
	for _, t := range g.Tables() {
		db := strings.ToLower(t.Database)
		if _, ok := byDB[db]; !ok {
			dbs = append(dbs, db)
		}
		byDB[db] = append(byDB[db], t.Key())
	}
	sort.Strings(dbs)

	fmt.Fprintln(bw, "digraph tables {")
	fmt.Fprintln(bw, "  rankdir=LR;")
	fmt.Fprintln(bw, "  node [shape=box];")
	for i, db := range dbs {
		fmt.Fprintf(bw, "  subgraph cluster_%d {\n", i)
		fmt.Fprintf(bw, "    label=%s;\n", dotQuote(db))
		for _, key := range byDB[db] {
			t, _ := g.Node(key)
			attrs := "label=" + dotQuote(t.Table)
			if cyclic[key] {
				attrs += ", style=filled, fillcolor=lightpink"
			}
			fmt.Fprintf(bw, "    %s [%s];\n", dotQuote(key), attrs)
		}
		fmt.Fprintln(bw, "  }")
	}
	for _, e := range g.Edges() {
		from, _ := g.Node(e.From)
		to, _ := g.Node(e.To)
		style := ""
		if !strings.EqualFold(from.Database, to.Database) {
			style = " [style=dashed]"
		}
		fmt.Fprintf(bw, "  %s -> %s%s;\n", dotQuote(e.From), dotQuote(e.To), style)
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

func dotQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
