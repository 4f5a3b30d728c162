// Package graph provides directed-graph utilities shared by the checkers:
// cycle detection with path reconstruction, reachability, topological order
// and PageRank.
package graph

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
)

// Graph is a directed graph over comparable, ordered node ids. Iteration is
// deterministic: nodes in sorted order, successors in insertion order.
type Graph[K cmp.Ordered] struct {
	nodes map[K]struct{}
	out   map[K][]K
}

// New returns an empty graph.
func New[K cmp.Ordered]() *Graph[K] {
	return &Graph[K]{
		nodes: make(map[K]struct{}),
		out:   make(map[K][]K),
	}
}

// AddNode adds k if it is not present.
func (g *Graph[K]) AddNode(k K) {
	g.nodes[k] = struct{}{}
}

// AddEdge adds from -> to, creating both nodes. Parallel edges are collapsed.
func (g *Graph[K]) AddEdge(from, to K) {
	g.AddNode(from)
	g.AddNode(to)
	if slices.Contains(g.out[from], to) {
		return
	}
	g.out[from] = append(g.out[from], to)
}

// Has reports whether k is a node.
func (g *Graph[K]) Has(k K) bool {
	_, ok := g.nodes[k]
	return ok
}

// Len returns the number of nodes.
func (g *Graph[K]) Len() int { return len(g.nodes) }

// Nodes returns every node sorted.
func (g *Graph[K]) Nodes() []K {
	keys := make([]K, 0, len(g.nodes))
	for k := range g.nodes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Successors returns the targets of k's outgoing edges.
func (g *Graph[K]) Successors(k K) []K {
	return g.out[k]
}

// Reverse returns a graph with every edge flipped.
func (g *Graph[K]) Reverse() *Graph[K] {
	r := New[K]()
	for _, n := range g.Nodes() {
		r.AddNode(n)
	}
	for _, n := range g.Nodes() {
		for _, m := range g.out[n] {
			r.AddEdge(m, n)
		}
	}
	return r
}

// CycleMode selects how many cycles Cycles reports.
type CycleMode int

const (
	// AllBackEdges reports a cycle for every back edge found.
	AllBackEdges CycleMode = iota
	// FirstPerRoot stops exploring a DFS tree at its first cycle.
	FirstPerRoot
)

type color uint8

const (
	white color = iota
	gray
	black
)

// Cycles runs a three-color DFS from every unvisited node in sorted order and
// returns each cycle found as the node sequence from the repeated node up to
// the edge that closes it. A self loop yields a one-node cycle.
func (g *Graph[K]) Cycles(mode CycleMode) [][]K {
	colors := make(map[K]color, len(g.nodes))
	var (
		cycles [][]K
		stack  []K
		stop   bool
	)

	var visit func(n K)
	visit = func(n K) {
		colors[n] = gray
		stack = append(stack, n)
		for _, next := range g.out[n] {
			if stop {
				break
			}
			switch colors[next] {
			case white:
				visit(next)
			case gray:
				pos := slices.Index(stack, next)
				cycles = append(cycles, slices.Clone(stack[pos:]))
				if mode == FirstPerRoot {
					stop = true
				}
			case black:
			}
		}
		colors[n] = black
		stack = stack[:len(stack)-1]
	}

	for _, n := range g.Nodes() {
		if colors[n] != white {
			continue
		}
		stop = false
		visit(n)
	}
	return cycles
}

// Render formats a cycle as "a -> b -> c -> a".
func Render[K cmp.Ordered](cycle []K) string {
	if len(cycle) == 0 {
		return ""
	}
	parts := make([]string, 0, len(cycle)+1)
	for _, n := range cycle {
		parts = append(parts, fmt.Sprint(n))
	}
	parts = append(parts, fmt.Sprint(cycle[0]))
	return strings.Join(parts, " -> ")
}

// Reachable returns every node reachable from starts by breadth-first search,
// starts included.
func (g *Graph[K]) Reachable(starts []K) map[K]bool {
	seen := make(map[K]bool, len(g.nodes))
	queue := slices.Clone(starts)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if seen[n] {
			continue
		}
		seen[n] = true
		queue = append(queue, g.out[n]...)
	}
	return seen
}

// TopoOrder returns the nodes so that every edge's target precedes its
// source, breaking ties by node order. It fails if the graph has a cycle.
func (g *Graph[K]) TopoOrder() ([]K, error) {
	pending := make(map[K]int, len(g.nodes))
	for n := range g.nodes {
		pending[n] = len(g.out[n])
	}
	rev := g.Reverse()

	var ready []K
	for _, n := range g.Nodes() {
		if pending[n] == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]K, 0, len(g.nodes))
	for len(ready) > 0 {
		slices.Sort(ready)
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, dependent := range rev.out[n] {
			pending[dependent]--
			if pending[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, fmt.Errorf("graph has a cycle")
	}
	return order, nil
}

// Rank computes PageRank over g; rank flows along edges, so frequently
// targeted nodes score higher. Scores sum to 1.
func Rank[K cmp.Ordered](g *Graph[K]) map[K]float64 {
	n := len(g.nodes)
	if n == 0 {
		return nil
	}

	edges := 0
	for _, targets := range g.out {
		edges += len(targets)
	}
	if edges == 0 {
		uniform := 1.0 / float64(n)
		ranks := make(map[K]float64, n)
		for node := range g.nodes {
			ranks[node] = uniform
		}
		return ranks
	}

	return pageRank(g, 0.85, 100, 1e-6)
}

func pageRank[K cmp.Ordered](g *Graph[K], alpha float64, maxIter int, tol float64) map[K]float64 {
	nodes := g.Nodes()
	n := len(nodes)

	rank := make(map[K]float64, n)
	initial := 1.0 / float64(n)
	for _, node := range nodes {
		rank[node] = initial
	}

	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		newRank := make(map[K]float64, n)

		// Dangling node contribution (nodes with no outgoing edges)
		var danglingSum float64
		for _, node := range nodes {
			if len(g.out[node]) == 0 {
				danglingSum += rank[node]
			}
		}
		danglingContrib := alpha * danglingSum / float64(n)

		for _, node := range nodes {
			newRank[node] = teleport + danglingContrib
		}

		for _, src := range nodes {
			targets := g.out[src]
			if len(targets) == 0 {
				continue
			}
			contrib := alpha * rank[src] / float64(len(targets))
			for _, tgt := range targets {
				newRank[tgt] += contrib
			}
		}

		var diff float64
		for _, node := range nodes {
			diff += math.Abs(newRank[node] - rank[node])
		}

		rank = newRank

		if diff < tol {
			break
		}
	}

	return rank
}
