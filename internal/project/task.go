package project

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/vk/taskforge/internal/address"
)

// Status is the lifecycle state of a task. Transitions are monotone:
// Pending -> Queued -> Running -> {Succeeded, Failed}, with Skipped reachable
// from Pending (up-to-date or upstream failure). The executor is the single
// writer; everyone else only reads.
type Status int32

const (
	Pending Status = iota
	Queued
	Running
	Succeeded
	Failed
	Skipped
)

// String returns the human-readable status name.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Queued:
		return "queued"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is one of the three end states.
func (s Status) Terminal() bool {
	return s == Succeeded || s == Failed || s == Skipped
}

// ExecContext is handed to an action when it runs. Out receives the action's
// diagnostic output and ends up in the execution report.
type ExecContext struct {
	Task *Task
	Out  io.Writer
}

// Action is the opaque unit of work attached to a task. The core never
// inspects it; it only observes the returned error.
type Action func(ctx context.Context, ec *ExecContext) error

// TaskSpec describes a task to register. Dependency addresses are recorded
// as references; their existence is checked at graph build time, so forward
// references across projects are legal.
type TaskSpec struct {
	Name      string
	DependsOn []string
	Groups    []string
	Outputs   []string
	Inputs    map[string]string
	Action    Action
	Default   bool
	Timeout   time.Duration
}

// Task is a registered unit of work. All fields except the status are
// immutable after registration.
type Task struct {
	Addr      address.Address
	Project   *Project
	DependsOn []address.Address
	Groups    []string
	Outputs   []string
	Inputs    map[string]string
	Action    Action
	Default   bool
	Timeout   time.Duration

	status atomic.Int32
}

// Status returns a consistent snapshot of the task's current status.
func (t *Task) Status() Status {
	return Status(t.status.Load())
}

// SetStatus records a status transition. Only the executor may call this.
func (t *Task) SetStatus(s Status) {
	t.status.Store(int32(s))
}

// Name returns the last element of the task's address.
func (t *Task) Name() string {
	return t.Addr.Name()
}
