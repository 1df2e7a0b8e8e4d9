package project

import "fmt"

// DuplicateNameError is returned when a subproject name collides with an
// existing member of the same parent project.
type DuplicateNameError struct {
	Project string
	Name    string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("project %s already has a member named %q", e.Project, e.Name)
}

// DuplicateTaskError is returned when task registration would produce an
// address that already exists.
type DuplicateTaskError struct {
	Address string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("task address %s is already registered", e.Address)
}
