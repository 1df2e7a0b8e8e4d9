package executor

import (
	"fmt"
	"time"
)

// TaskExecutionError wraps a failure reported by a task's action.
type TaskExecutionError struct {
	Address string
	Err     error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.Address, e.Err)
}

func (e *TaskExecutionError) Unwrap() error {
	return e.Err
}

// TimeoutError marks a task that exceeded its declared wall-clock timeout.
// It propagates like any other failure.
type TimeoutError struct {
	Address string
	Limit   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %s exceeded its timeout of %s", e.Address, e.Limit)
}
