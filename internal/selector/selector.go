// Package selector translates selector expressions into sets of tasks.
//
// An expression is one or more tokens, unioned and deduplicated. A token is
// an absolute address (":sub:test"), a project wildcard (":sub:*", ":sub:**",
// bare "*" or "**" relative to the invoking project), or a bare name that is
// matched against groups first and then against the invoking project's own
// tasks.
package selector

import (
	"fmt"
	"strings"

	"github.com/vk/taskforge/internal/address"
	"github.com/vk/taskforge/internal/project"
)

// UnknownSelectorError is returned when a token matches nothing.
type UnknownSelectorError struct {
	Token string
}

func (e *UnknownSelectorError) Error() string {
	return fmt.Sprintf("selector %q does not match any task, group or project", e.Token)
}

// AmbiguousAddressError is returned when a bare token names both a group and
// a task of the invoking project.
type AmbiguousAddressError struct {
	Token string
	Task  string
}

func (e *AmbiguousAddressError) Error() string {
	return fmt.Sprintf("selector %q is ambiguous: it names a group and the task %s", e.Token, e.Task)
}

// Resolver resolves selector tokens against a registry, relative to an
// invoking project (the root for CLI invocations).
type Resolver struct {
	registry *project.Registry
	current  *project.Project
}

// New creates a resolver. current may be nil to resolve relative to the root.
func New(registry *project.Registry, current *project.Project) *Resolver {
	if current == nil {
		current = registry.Root()
	}
	return &Resolver{registry: registry, current: current}
}

// Resolve resolves every token and returns the union as a deduplicated task
// list in first-mention order.
func (r *Resolver) Resolve(tokens ...string) ([]*project.Task, error) {
	var out []*project.Task
	seen := make(map[string]struct{})
	add := func(tasks ...*project.Task) {
		for _, t := range tasks {
			key := t.Addr.String()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, t)
		}
	}

	for _, token := range tokens {
		tasks, err := r.resolveToken(token)
		if err != nil {
			return nil, err
		}
		add(tasks...)
	}
	return out, nil
}

// Defaults returns every registered task whose default flag is set, for runs
// invoked without a selector.
func (r *Resolver) Defaults() []*project.Task {
	var out []*project.Task
	for _, t := range r.registry.Tasks() {
		if t.Default {
			out = append(out, t)
		}
	}
	return out
}

func (r *Resolver) resolveToken(token string) ([]*project.Task, error) {
	switch {
	case token == "*":
		return directTasks(r.current), nil
	case token == "**":
		return recursiveTasks(r.current), nil
	case strings.HasPrefix(token, address.Separator):
		return r.resolveAbsolute(token)
	default:
		return r.resolveBare(token)
	}
}

func (r *Resolver) resolveAbsolute(token string) ([]*project.Task, error) {
	// Project wildcards address a project, then expand its tasks.
	if strings.HasSuffix(token, ":**") {
		p, err := r.wildcardProject(token, ":**")
		if err != nil {
			return nil, err
		}
		return recursiveTasks(p), nil
	}
	if strings.HasSuffix(token, ":*") {
		p, err := r.wildcardProject(token, ":*")
		if err != nil {
			return nil, err
		}
		return directTasks(p), nil
	}

	addr, err := address.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("selector %q: %w", token, err)
	}
	if task, ok := r.registry.Lookup(addr); ok {
		return []*project.Task{task}, nil
	}
	return nil, &UnknownSelectorError{Token: token}
}

func (r *Resolver) wildcardProject(token, suffix string) (*project.Project, error) {
	prefix := strings.TrimSuffix(token, suffix)
	if prefix == "" {
		prefix = address.Separator
	}
	addr, err := address.Parse(prefix)
	if err != nil {
		return nil, fmt.Errorf("selector %q: %w", token, err)
	}
	p, ok := r.registry.Project(addr)
	if !ok {
		return nil, &UnknownSelectorError{Token: token}
	}
	return p, nil
}

func (r *Resolver) resolveBare(token string) ([]*project.Task, error) {
	members, isGroup := r.registry.Group(token)
	local := r.current.Task(token)

	if isGroup && local != nil {
		return nil, &AmbiguousAddressError{Token: token, Task: local.Addr.String()}
	}
	if isGroup {
		return members, nil
	}
	if local != nil {
		return []*project.Task{local}, nil
	}
	return nil, &UnknownSelectorError{Token: token}
}

func directTasks(p *project.Project) []*project.Task {
	return p.Tasks()
}

func recursiveTasks(p *project.Project) []*project.Task {
	out := append([]*project.Task(nil), p.Tasks()...)
	for _, child := range p.Children() {
		out = append(out, recursiveTasks(child)...)
	}
	return out
}
