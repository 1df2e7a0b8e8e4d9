// Package query provides read-only inspection over the registry and the
// graph builder. Nothing here mutates task status or triggers execution.
package query

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vk/taskforge/internal/address"
	"github.com/vk/taskforge/internal/graph"
	"github.com/vk/taskforge/internal/project"
	"github.com/vk/taskforge/internal/selector"
)

var (
	projectStyle = lipgloss.NewStyle().Bold(true)
	taskStyle    = lipgloss.NewStyle()
	groupStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Engine answers read-only queries for one registry.
type Engine struct {
	registry *project.Registry
}

// New creates a query engine over the registry.
func New(registry *project.Registry) *Engine {
	return &Engine{registry: registry}
}

// Ls resolves the selector tokens and prints the matching addresses, sorted.
func (e *Engine) Ls(w io.Writer, tokens ...string) error {
	tasks, err := selector.New(e.registry, nil).Resolve(tokens...)
	if err != nil {
		return err
	}
	addrs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		addrs = append(addrs, t.Addr.String())
	}
	sort.Strings(addrs)
	for _, addr := range addrs {
		fmt.Fprintln(w, addr)
	}
	return nil
}

// Tree prints the project hierarchy rooted at the given project address
// (":" for the whole tree), including the tasks of each project.
func (e *Engine) Tree(w io.Writer, root string) error {
	addr, err := address.Parse(root)
	if err != nil {
		return err
	}
	p, ok := e.registry.Project(addr)
	if !ok {
		return fmt.Errorf("no project at address %s", addr)
	}
	name := p.Addr().String()
	fmt.Fprintln(w, projectStyle.Render(name))
	e.printTree(w, p, "")
	return nil
}

func (e *Engine) printTree(w io.Writer, p *project.Project, indent string) {
	tasks := p.Tasks()
	children := p.Children()
	for i, t := range tasks {
		glyph := "├── "
		if i == len(tasks)-1 && len(children) == 0 {
			glyph = "└── "
		}
		line := taskStyle.Render(t.Name())
		if len(t.Groups) > 0 {
			line += " " + groupStyle.Render("["+strings.Join(t.Groups, ", ")+"]")
		}
		fmt.Fprintln(w, indent+glyph+line)
	}
	for i, child := range children {
		glyph, childIndent := "├── ", indent+"│   "
		if i == len(children)-1 {
			glyph, childIndent = "└── ", indent+"    "
		}
		fmt.Fprintln(w, indent+glyph+projectStyle.Render(child.Name()))
		e.printTree(w, child, childIndent)
	}
}

// Viz emits a DOT digraph over the full induced subgraph of the selection,
// for external rendering.
func (e *Engine) Viz(ctx context.Context, w io.Writer, tokens ...string) error {
	tasks, err := selector.New(e.registry, nil).Resolve(tokens...)
	if err != nil {
		return err
	}
	g, err := graph.Build(ctx, e.registry, tasks)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "digraph tasks {")
	fmt.Fprintln(w, "  rankdir=LR;")
	nodes := make([]string, 0, g.Len())
	for _, t := range g.Tasks() {
		nodes = append(nodes, t.Addr.String())
	}
	sort.Strings(nodes)
	for _, n := range nodes {
		fmt.Fprintf(w, "  %q;\n", n)
	}
	var edges []string
	for _, t := range g.Tasks() {
		for _, dep := range g.Dependencies(t) {
			edges = append(edges, fmt.Sprintf("  %q -> %q;", dep.Addr.String(), t.Addr.String()))
		}
	}
	sort.Strings(edges)
	for _, edge := range edges {
		fmt.Fprintln(w, edge)
	}
	fmt.Fprintln(w, "}")
	return nil
}

// Deps prints only the direct declared dependencies of one task.
func (e *Engine) Deps(w io.Writer, raw string) error {
	addr, err := address.Parse(raw)
	if err != nil {
		return err
	}
	t, ok := e.registry.Lookup(addr)
	if !ok {
		return fmt.Errorf("no task at address %s", addr)
	}
	deps := make([]string, 0, len(t.DependsOn))
	for _, dep := range t.DependsOn {
		deps = append(deps, dep.String())
	}
	sort.Strings(deps)
	for _, dep := range deps {
		fmt.Fprintln(w, dep)
	}
	return nil
}
