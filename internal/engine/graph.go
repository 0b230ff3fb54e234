package engine

import (
	"container/heap"
	"fmt"
	"sort"
	"strings"
)

// Graph orders a set of resource addresses by their dependency edges.
// Edges pointing outside the node set are silently dropped, so
// dependencies on resources managed elsewhere never block ordering.
// Ordering is fully deterministic: among ready nodes the lowest
// (priority, address) pair wins, independent of insertion order.
type Graph struct {
	nodes      map[string]struct{}
	deps       map[string][]string
	priorities map[string]int
}

// NewGraph builds a graph over nodes. deps maps a node to the nodes it
// depends on; priorities is the per-node tie-break (missing entries
// rank as zero) and may be nil.
func NewGraph(nodes []string, deps map[string][]string, priorities map[string]int) *Graph {
	g := &Graph{
		nodes:      make(map[string]struct{}, len(nodes)),
		deps:       make(map[string][]string, len(nodes)),
		priorities: priorities,
	}
	for _, n := range nodes {
		g.nodes[n] = struct{}{}
	}
	for _, n := range nodes {
		seen := make(map[string]struct{})
		var filtered []string
		for _, d := range deps[n] {
			if _, ok := g.nodes[d]; !ok {
				continue
			}
			if _, dup := seen[d]; dup {
				continue
			}
			seen[d] = struct{}{}
			filtered = append(filtered, d)
		}
		g.deps[n] = filtered
	}
	return g
}

// TopologicalOrder returns every node with dependencies before
// dependents. A cycle yields a DependencyCycleError naming the sorted
// set of nodes that could not be ordered, never a partial result.
func (g *Graph) TopologicalOrder() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))
	for n := range g.nodes {
		indegree[n] = len(g.deps[n])
		for _, d := range g.deps[n] {
			dependents[d] = append(dependents[d], n)
		}
	}
	for _, list := range dependents {
		sort.Strings(list)
	}

	ready := &nodeHeap{}
	for n, deg := range indegree {
		if deg == 0 {
			ready.push(g.rank(n))
		}
	}
	heap.Init(ready)

	order := make([]string, 0, len(g.nodes))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(nodeRank).addr
		order = append(order, n)
		for _, child := range dependents[n] {
			indegree[child]--
			if indegree[child] == 0 {
				heap.Push(ready, g.rank(child))
			}
		}
	}

	if len(order) != len(g.nodes) {
		emitted := make(map[string]struct{}, len(order))
		for _, n := range order {
			emitted[n] = struct{}{}
		}
		var remaining []string
		for n := range g.nodes {
			if _, ok := emitted[n]; !ok {
				remaining = append(remaining, n)
			}
		}
		sort.Strings(remaining)
		return nil, &DependencyCycleError{Addresses: remaining}
	}
	return order, nil
}

// ReverseTopologicalOrder returns TopologicalOrder reversed: dependents
// before their dependencies, the safe teardown order.
func (g *Graph) ReverseTopologicalOrder() ([]string, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}

// DOT renders the graph in Graphviz syntax, dependency pointing at
// dependent so arrows follow creation order.
func (g *Graph) DOT() string {
	nodes := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	var b strings.Builder
	b.WriteString("digraph {\n")
	b.WriteString("  node [shape = rect];\n\n")
	for _, n := range nodes {
		fmt.Fprintf(&b, "  %q;\n", n)
	}
	b.WriteString("\n")
	for _, n := range nodes {
		deps := append([]string(nil), g.deps[n]...)
		sort.Strings(deps)
		for _, d := range deps {
			fmt.Fprintf(&b, "  %q -> %q;\n", d, n)
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func (g *Graph) rank(addr string) nodeRank {
	prio := 0
	if g.priorities != nil {
		prio = g.priorities[addr]
	}
	return nodeRank{priority: prio, addr: addr}
}

type nodeRank struct {
	priority int
	addr     string
}

// nodeHeap is a min-heap over (priority, address).
type nodeHeap []nodeRank

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].addr < h[j].addr
}

func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x any) { *h = append(*h, x.(nodeRank)) }

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// push appends without sifting; callers heap.Init afterwards.
func (h *nodeHeap) push(r nodeRank) { *h = append(*h, r) }
