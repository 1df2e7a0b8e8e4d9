package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vk/taskforge/internal/cache"
	"github.com/vk/taskforge/internal/ctxlog"
	"github.com/vk/taskforge/internal/project"
	"github.com/vk/taskforge/internal/report"
)

// worker is the processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, readyChan chan *node, rootCause *atomic.Pointer[error], workerID int) {
	logger := ctxlog.FromContext(ctx).With("worker", workerID)

	for n := range readyChan {
		// After an interrupt or a fail-fast trigger no new work is
		// dispatched. Ready tasks drain as Skipped so every task still
		// reaches a terminal state and the run can report.
		if ctx.Err() != nil || (e.aborted.Load() && !e.keepGoing) {
			cause := ctx.Err()
			if cause == nil {
				cause = errors.New("run aborted after earlier task failure")
			}
			if n.claimed.CompareAndSwap(false, true) {
				n.task.SetStatus(project.Skipped)
				e.report.Add(report.Record{
					Address: n.task.Addr.String(),
					Status:  project.Skipped,
					Err:     cause,
				})
				e.unlockDependents(n, readyChan)
				e.wg.Done()
			}
			continue
		}

		if !n.claimed.CompareAndSwap(false, true) {
			continue
		}
		e.process(ctx, n, readyChan, rootCause, logger)
	}
}

// process executes a single claimed task: cache consult, dispatch, terminal
// transition, and dependent bookkeeping.
func (e *Executor) process(ctx context.Context, n *node, readyChan chan *node, rootCause *atomic.Pointer[error], logger *slog.Logger) {
	addr := n.task.Addr.String()
	taskLogger := logger.With("task", addr)

	n.fingerprint = cache.Fingerprint(n.task, e.depFingerprints(n))
	if entry, ok := e.store.Lookup(ctx, n.fingerprint); ok {
		taskLogger.Info("task is up to date", "fingerprint", n.fingerprint, "cachedAt", entry.CreatedAt)
		n.task.SetStatus(project.Skipped)
		e.report.Add(report.Record{Address: addr, Status: project.Skipped})
		e.unlockDependents(n, readyChan)
		e.wg.Done()
		return
	}

	taskLogger.Info("task starting")
	n.task.SetStatus(project.Running)
	started := time.Now()
	err := e.invoke(ctx, n.task)
	duration := time.Since(started)

	if err != nil {
		taskLogger.Error("task failed", "error", err, "duration", duration)
		n.task.SetStatus(project.Failed)
		e.report.Add(report.Record{
			Address:  addr,
			Status:   project.Failed,
			Duration: duration,
			Output:   outputOf(err),
			Err:      err,
		})
		rootCause.CompareAndSwap(nil, &err)
		if !e.keepGoing {
			e.aborted.Store(true)
		}
		e.skipDependents(ctx, n, fmt.Errorf("upstream task %s failed", addr))
		e.wg.Done()
		return
	}

	taskLogger.Info("task succeeded", "duration", duration)
	n.task.SetStatus(project.Succeeded)
	if werr := e.store.Write(ctx, n.fingerprint, &cache.Entry{
		Address:   addr,
		Outputs:   n.task.Outputs,
		CreatedAt: time.Now(),
	}); werr != nil {
		taskLogger.Warn("cache write failed, result will not be reusable", "error", werr)
	}
	e.report.Add(report.Record{Address: addr, Status: project.Succeeded, Duration: duration})
	e.unlockDependents(n, readyChan)
	e.wg.Done()
}

// invoke runs the task's action with captured output and the declared
// wall-clock timeout. The action context is detached from the run context so
// an external interrupt never preempts a task that already started; the run
// instead waits for it to finish.
func (e *Executor) invoke(ctx context.Context, t *project.Task) error {
	if t.Action == nil {
		return nil
	}

	actionCtx := context.WithoutCancel(ctx)
	var cancel context.CancelFunc = func() {}
	if t.Timeout > 0 {
		actionCtx, cancel = context.WithTimeout(actionCtx, t.Timeout)
	}
	defer cancel()

	var out bytes.Buffer
	err := t.Action(actionCtx, &project.ExecContext{Task: t, Out: &out})
	if err == nil {
		return nil
	}
	if t.Timeout > 0 && (errors.Is(err, context.DeadlineExceeded) || actionCtx.Err() == context.DeadlineExceeded) {
		return &TimeoutError{Address: t.Addr.String(), Limit: t.Timeout}
	}
	return &TaskExecutionError{Address: t.Addr.String(), Err: capturedError{err: err, output: out.String()}}
}

// capturedError pairs an action error with the diagnostic output the action
// wrote before failing.
type capturedError struct {
	err    error
	output string
}

func (c capturedError) Error() string {
	return c.err.Error()
}

func (c capturedError) Unwrap() error {
	return c.err
}

// outputOf recovers captured output from a task failure for the report.
func outputOf(err error) string {
	var captured capturedError
	if errors.As(err, &captured) {
		return captured.output
	}
	return ""
}
