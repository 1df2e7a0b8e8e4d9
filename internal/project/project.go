// Package project holds the build registry: the hierarchical project tree,
// the tasks and groups declared in it, and the address index over both.
// Registration is strictly single-threaded and finishes before any graph
// construction or execution starts.
package project

import (
	"fmt"

	"github.com/vk/taskforge/internal/address"
)

// Project is a node in the hierarchical namespace tree. Member names (tasks
// and subprojects alike) are unique within one project.
type Project struct {
	name     string
	parent   *Project
	registry *Registry

	children   []*Project
	childIndex map[string]*Project
	tasks      []*Task
	taskIndex  map[string]*Task
}

// Addr returns the project's address prefix.
func (p *Project) Addr() address.Address {
	if p.parent == nil {
		return address.Root
	}
	return p.parent.Addr().Append(p.name)
}

// Name returns the project's name; "" for the root project.
func (p *Project) Name() string {
	return p.name
}

// Parent returns the owning project, or nil for the root.
func (p *Project) Parent() *Project {
	return p.parent
}

// Children returns the subprojects in declaration order.
func (p *Project) Children() []*Project {
	return p.children
}

// Child returns the named subproject, or nil.
func (p *Project) Child(name string) *Project {
	return p.childIndex[name]
}

// Tasks returns the tasks declared directly in this project, in declaration order.
func (p *Project) Tasks() []*Task {
	return p.tasks
}

// Task returns the named task declared directly in this project, or nil.
func (p *Project) Task(name string) *Task {
	return p.taskIndex[name]
}

// Subproject mounts a new child project under p. It fails with a
// DuplicateNameError if the name collides with an existing member.
func (p *Project) Subproject(name string) (*Project, error) {
	if !address.ValidName(name) {
		return nil, fmt.Errorf("invalid project name %q", name)
	}
	if p.member(name) {
		return nil, &DuplicateNameError{Project: p.Addr().String(), Name: name}
	}
	child := &Project{
		name:       name,
		parent:     p,
		registry:   p.registry,
		childIndex: make(map[string]*Project),
		taskIndex:  make(map[string]*Task),
	}
	p.children = append(p.children, child)
	p.childIndex[name] = child
	return child, nil
}

// Register creates a task from spec and adds it to the project. It fails
// with a DuplicateTaskError if the resulting address already exists.
func (p *Project) Register(spec TaskSpec) (*Task, error) {
	if !address.ValidName(spec.Name) {
		return nil, fmt.Errorf("invalid task name %q", spec.Name)
	}
	addr := p.Addr().Append(spec.Name)
	if p.member(spec.Name) {
		return nil, &DuplicateTaskError{Address: addr.String()}
	}

	deps := make([]address.Address, 0, len(spec.DependsOn))
	for _, raw := range spec.DependsOn {
		dep, err := address.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("task %s: dependency %w", addr, err)
		}
		deps = append(deps, dep)
	}

	task := &Task{
		Addr:      addr,
		Project:   p,
		DependsOn: deps,
		Groups:    append([]string(nil), spec.Groups...),
		Outputs:   append([]string(nil), spec.Outputs...),
		Inputs:    spec.Inputs,
		Action:    spec.Action,
		Default:   spec.Default,
		Timeout:   spec.Timeout,
	}
	p.tasks = append(p.tasks, task)
	p.taskIndex[spec.Name] = task
	p.registry.add(task)
	return task, nil
}

// member reports whether name is taken by a task or a subproject.
func (p *Project) member(name string) bool {
	if _, ok := p.childIndex[name]; ok {
		return true
	}
	_, ok := p.taskIndex[name]
	return ok
}
