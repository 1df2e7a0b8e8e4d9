// Package graph computes the dependency subgraph induced by a selection and
// validates it before anything is dispatched. A graph is built fresh per
// invocation and never persisted.
package graph

import (
	"context"
	"errors"

	"github.com/vk/taskforge/internal/ctxlog"
	"github.com/vk/taskforge/internal/project"
)

// Graph is the validated dependency subgraph for one run. The edge
// dep -> dependent means dep must reach a terminal success-or-skip state
// before the dependent may run.
type Graph struct {
	order      []*project.Task
	index      map[string]*project.Task
	deps       map[string][]*project.Task
	dependents map[string][]*project.Task
}

// Build computes the transitive closure of roots over declared dependencies
// and validates it. All unknown-dependency errors are collected before
// returning; cycle detection runs on the fully linked graph.
func Build(ctx context.Context, registry *project.Registry, roots []*project.Task) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	g := &Graph{
		index:      make(map[string]*project.Task),
		deps:       make(map[string][]*project.Task),
		dependents: make(map[string][]*project.Task),
	}

	// Breadth-first closure from the roots. Unknown dependency addresses are
	// collected so the caller sees every structural defect at once.
	var unknown []error
	queue := append([]*project.Task(nil), roots...)
	for _, t := range roots {
		g.add(t)
	}
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		for _, depAddr := range t.DependsOn {
			dep, ok := registry.Lookup(depAddr)
			if !ok {
				unknown = append(unknown, &UnknownTaskError{
					Referencer: t.Addr.String(),
					Missing:    depAddr.String(),
				})
				continue
			}
			if g.add(dep) {
				queue = append(queue, dep)
			}
			g.link(dep, t)
		}
	}
	if len(unknown) > 0 {
		return nil, errors.Join(unknown...)
	}

	if err := g.detectCycles(); err != nil {
		return nil, err
	}
	logger.Debug("dependency graph built", "tasks", len(g.order))
	return g, nil
}

// Tasks returns every task in the graph in discovery order.
func (g *Graph) Tasks() []*project.Task {
	return g.order
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int {
	return len(g.order)
}

// Roots returns the tasks without dependencies inside the graph, in
// discovery order. Execution starts from these.
func (g *Graph) Roots() []*project.Task {
	var out []*project.Task
	for _, t := range g.order {
		if len(g.deps[t.Addr.String()]) == 0 {
			out = append(out, t)
		}
	}
	return out
}

// Contains reports whether the task is part of the induced subgraph.
func (g *Graph) Contains(t *project.Task) bool {
	_, ok := g.index[t.Addr.String()]
	return ok
}

// Dependencies returns the direct dependencies of t within the graph.
func (g *Graph) Dependencies(t *project.Task) []*project.Task {
	return g.deps[t.Addr.String()]
}

// Dependents returns the tasks that directly depend on t within the graph.
func (g *Graph) Dependents(t *project.Task) []*project.Task {
	return g.dependents[t.Addr.String()]
}

// add registers a task node; returns true if it was not yet present.
func (g *Graph) add(t *project.Task) bool {
	key := t.Addr.String()
	if _, ok := g.index[key]; ok {
		return false
	}
	g.index[key] = t
	g.order = append(g.order, t)
	return true
}

// link records the edge dep -> dependent, once.
func (g *Graph) link(dep, dependent *project.Task) {
	key := dependent.Addr.String()
	for _, existing := range g.deps[key] {
		if existing == dep {
			return
		}
	}
	g.deps[key] = append(g.deps[key], dep)
	g.dependents[dep.Addr.String()] = append(g.dependents[dep.Addr.String()], dependent)
}

// detectCycles runs a depth-first traversal with an active-path marker and
// reports the first cycle as an ordered address list.
func (g *Graph) detectCycles() error {
	done := make(map[string]bool)
	active := make(map[string]bool)
	var path []string

	var visit func(t *project.Task) error
	visit = func(t *project.Task) error {
		key := t.Addr.String()
		if done[key] {
			return nil
		}
		if active[key] {
			// Trim the path down to the first occurrence of key and close
			// the loop so the error shows the cycle in dependency order.
			start := 0
			for i, addr := range path {
				if addr == key {
					start = i
					break
				}
			}
			cycle := append(append([]string(nil), path[start:]...), key)
			return &CyclicDependencyError{Cycle: cycle}
		}

		active[key] = true
		path = append(path, key)
		for _, dep := range g.deps[key] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		delete(active, key)
		done[key] = true
		return nil
	}

	for _, t := range g.order {
		if err := visit(t); err != nil {
			return err
		}
	}
	return nil
}
