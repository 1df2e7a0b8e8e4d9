// Package testutil provides helpers shared by package tests: quick registry
// construction, one-call graph execution against an in-memory cache, and a
// CLI harness over an in-memory filesystem.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/vk/taskforge/internal/cache"
	"github.com/vk/taskforge/internal/cli"
	"github.com/vk/taskforge/internal/executor"
	"github.com/vk/taskforge/internal/graph"
	"github.com/vk/taskforge/internal/project"
	"github.com/vk/taskforge/internal/report"
)

// SafeBuffer is a thread-safe buffer for capturing output in tests.
type SafeBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// MustSubproject mounts a subproject or fails the test.
func MustSubproject(t *testing.T, p *project.Project, name string) *project.Project {
	t.Helper()
	child, err := p.Subproject(name)
	require.NoError(t, err)
	return child
}

// MustRegister registers a task or fails the test.
func MustRegister(t *testing.T, p *project.Project, spec project.TaskSpec) *project.Task {
	t.Helper()
	task, err := p.Register(spec)
	require.NoError(t, err)
	return task
}

// NoopAction returns an action that records each invocation in the counter.
func NoopAction(invocations *atomic.Int32) project.Action {
	return func(ctx context.Context, ec *project.ExecContext) error {
		if invocations != nil {
			invocations.Add(1)
		}
		return nil
	}
}

// MemStore returns a cache store backed by a fresh in-memory filesystem.
func MemStore() *cache.Store {
	return cache.NewStore(afero.NewMemMapFs(), "cache")
}

// MustBuildGraph builds the induced graph for roots or fails the test.
func MustBuildGraph(t *testing.T, registry *project.Registry, roots []*project.Task) *graph.Graph {
	t.Helper()
	g, err := graph.Build(context.Background(), registry, roots)
	require.NoError(t, err)
	return g
}

// RunResult bundles the outcome of a harness execution.
type RunResult struct {
	Report *report.Report
	Store  *cache.Store
	Err    error
}

// RunGraph builds the induced graph for roots and executes it against the
// given store (a fresh in-memory store when nil).
func RunGraph(t *testing.T, registry *project.Registry, roots []*project.Task, store *cache.Store, opts executor.Options) *RunResult {
	t.Helper()
	if store == nil {
		store = MemStore()
	}
	g := MustBuildGraph(t, registry, roots)

	rep := report.New()
	runErr := executor.New(g, store, rep, opts).Run(context.Background())
	return &RunResult{Report: rep, Store: store, Err: runErr}
}

// CLIResult is the outcome of a harness CLI invocation.
type CLIResult struct {
	Stdout string
	Stderr string
	Code   int
	Err    error
}

// RunCLI executes the command tree against an in-memory filesystem seeded
// with the given files and returns captured output plus the exit code.
func RunCLI(t *testing.T, files map[string]string, args ...string) *CLIResult {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}

	var out, errW SafeBuffer
	root := cli.NewRootCommand(fs, &out, &errW)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())

	res := &CLIResult{Stdout: out.String(), Stderr: errW.String(), Err: err}
	if err != nil {
		res.Code = cli.ExitInternal
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			res.Code = exitErr.Code
		}
	}
	return res
}
