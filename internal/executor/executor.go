// Package executor drives parallel execution of a validated dependency
// graph. A bounded worker pool pulls ready tasks from a channel; a task is
// ready once every dependency reached a terminal success-or-skip state. The
// executor is the single writer of task status and consults the build cache
// before dispatching each task.
package executor

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/vk/taskforge/internal/cache"
	"github.com/vk/taskforge/internal/ctxlog"
	"github.com/vk/taskforge/internal/graph"
	"github.com/vk/taskforge/internal/project"
	"github.com/vk/taskforge/internal/report"
)

// Options configure a run.
type Options struct {
	// Workers bounds concurrent task execution. Zero means host parallelism.
	Workers int
	// KeepGoing keeps dispatching branches unaffected by a failure instead
	// of aborting after the first failed task.
	KeepGoing bool
}

// Executor executes one graph to completion. It must not be reused.
type Executor struct {
	graph     *graph.Graph
	store     *cache.Store
	report    *report.Report
	workers   int
	keepGoing bool

	nodes   map[string]*node
	wg      sync.WaitGroup
	aborted atomic.Bool
}

// node is the executor's per-task bookkeeping around the immutable task.
type node struct {
	task *project.Task
	// remaining counts dependencies that have not yet reached a terminal
	// success-or-skip state.
	remaining atomic.Int32
	// claimed guards the terminal transition: exactly one of the worker
	// path and the skip-propagation path may own the task.
	claimed atomic.Bool
	// fingerprint is set before the task becomes terminal-successful so
	// dependents can fold it into their own fingerprints.
	fingerprint string
}

// New prepares an executor for the given graph.
func New(g *graph.Graph, store *cache.Store, rep *report.Report, opts Options) *Executor {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	e := &Executor{
		graph:     g,
		store:     store,
		report:    rep,
		workers:   workers,
		keepGoing: opts.KeepGoing,
		nodes:     make(map[string]*node, g.Len()),
	}
	for _, t := range g.Tasks() {
		n := &node{task: t}
		n.remaining.Store(int32(len(g.Dependencies(t))))
		e.nodes[t.Addr.String()] = n
	}
	return e
}

// Run executes the graph and blocks until every task reached a terminal
// status. It returns the root-cause error of the first failed task, the
// context error on interrupt, or nil.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	readyChan := make(chan *node, e.graph.Len())
	rootCount := 0
	for _, n := range e.nodes {
		if n.remaining.Load() == 0 {
			n.task.SetStatus(project.Queued)
			readyChan <- n
			rootCount++
		}
	}
	logger.Debug("executor starting", "tasks", e.graph.Len(), "roots", rootCount, "workers", e.workers)

	e.wg.Add(e.graph.Len())

	var rootCause atomic.Pointer[error]
	for i := 0; i < e.workers; i++ {
		go e.worker(ctx, readyChan, &rootCause, i)
	}

	e.wg.Wait()
	close(readyChan)
	logger.Debug("executor finished", "runID", e.report.RunID())

	if err := rootCause.Load(); err != nil {
		return *err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// unlockDependents decrements every dependent's remaining count and queues
// the ones that became ready. Called after a task reaches terminal
// success-or-skip.
func (e *Executor) unlockDependents(n *node, readyChan chan *node) {
	for _, dep := range e.graph.Dependents(n.task) {
		dependent := e.nodes[dep.Addr.String()]
		if dependent.remaining.Add(-1) == 0 {
			dependent.task.SetStatus(project.Queued)
			readyChan <- dependent
		}
	}
}

// skipDependents transitively marks every dependent of a failed task as
// Skipped. Dependents were never queued (their remaining count cannot reach
// zero through a failed dependency), so claiming them here is race-free.
func (e *Executor) skipDependents(ctx context.Context, n *node, cause error) {
	logger := ctxlog.FromContext(ctx)
	for _, dep := range e.graph.Dependents(n.task) {
		dependent := e.nodes[dep.Addr.String()]
		if !dependent.claimed.CompareAndSwap(false, true) {
			continue
		}
		logger.Warn("skipping task, upstream failed", "task", dependent.task.Addr.String(), "upstream", n.task.Addr.String())
		dependent.task.SetStatus(project.Skipped)
		e.report.Add(report.Record{
			Address: dependent.task.Addr.String(),
			Status:  project.Skipped,
			Err:     cause,
		})
		e.wg.Done()
		e.skipDependents(ctx, dependent, cause)
	}
}

// depFingerprints collects the realized fingerprints of a task's
// dependencies. All of them are terminal-successful by the time the task is
// picked up, so the reads are safe.
func (e *Executor) depFingerprints(n *node) map[string]string {
	deps := e.graph.Dependencies(n.task)
	if len(deps) == 0 {
		return nil
	}
	out := make(map[string]string, len(deps))
	for _, dep := range deps {
		out[dep.Addr.String()] = e.nodes[dep.Addr.String()].fingerprint
	}
	return out
}
