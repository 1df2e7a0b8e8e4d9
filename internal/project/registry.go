package project

import (
	"github.com/vk/taskforge/internal/address"
)

// Registry is the per-run store of the project tree and the flat index of
// every registered task. It is constructed once per invocation and passed by
// reference, never shared between runs.
type Registry struct {
	root   *Project
	tasks  map[string]*Task
	groups map[string][]*Task
}

// NewRegistry creates an empty registry with a fresh root project.
func NewRegistry() *Registry {
	r := &Registry{
		tasks:  make(map[string]*Task),
		groups: make(map[string][]*Task),
	}
	r.root = &Project{
		registry:   r,
		childIndex: make(map[string]*Project),
		taskIndex:  make(map[string]*Task),
	}
	return r
}

// Root returns the root project.
func (r *Registry) Root() *Project {
	return r.root
}

// Lookup returns the task registered under addr, or false.
func (r *Registry) Lookup(addr address.Address) (*Task, bool) {
	t, ok := r.tasks[addr.String()]
	return t, ok
}

// Group returns the member tasks of the named group across the whole tree,
// in registration order. The second result is false if no task declared the
// group.
func (r *Registry) Group(name string) ([]*Task, bool) {
	tasks, ok := r.groups[name]
	return tasks, ok
}

// Tasks returns every registered task in registration order.
func (r *Registry) Tasks() []*Task {
	out := make([]*Task, 0, len(r.tasks))
	var walk func(p *Project)
	walk = func(p *Project) {
		out = append(out, p.tasks...)
		for _, child := range p.children {
			walk(child)
		}
	}
	walk(r.root)
	return out
}

// Project walks the project tree by address and returns the project, or
// false if any element does not name a subproject.
func (r *Registry) Project(addr address.Address) (*Project, bool) {
	p := r.root
	for _, name := range addr.Elements() {
		p = p.childIndex[name]
		if p == nil {
			return nil, false
		}
	}
	return p, true
}

// AddToGroup adds an already registered task to the named group. Group
// declarations that list members by address use this after registration;
// adding a task to a group it is already part of is a no-op.
func (r *Registry) AddToGroup(name string, t *Task) {
	for _, member := range r.groups[name] {
		if member == t {
			return
		}
	}
	r.groups[name] = append(r.groups[name], t)
	t.Groups = append(t.Groups, name)
}

// add indexes a freshly registered task. Uniqueness was already enforced by
// the owning project.
func (r *Registry) add(t *Task) {
	r.tasks[t.Addr.String()] = t
	for _, group := range t.Groups {
		r.groups[group] = append(r.groups[group], t)
	}
}
