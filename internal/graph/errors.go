package graph

import (
	"fmt"
	"strings"
)

// UnknownTaskError is returned when a declared dependency address does not
// resolve to a registered task.
type UnknownTaskError struct {
	Referencer string
	Missing    string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("task %s depends on %s, which is not registered", e.Referencer, e.Missing)
}

// CyclicDependencyError is returned when the dependency relation contains a
// cycle. Cycle holds the ordered addresses, first repeated last.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}
