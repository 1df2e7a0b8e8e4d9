// Package app wires the components of one invocation together: config,
// logging, build file loading, selection, graph validation, the cache and
// the executor.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/spf13/afero"

	"github.com/vk/taskforge/internal/buildfile"
	"github.com/vk/taskforge/internal/cache"
	"github.com/vk/taskforge/internal/ctxlog"
	"github.com/vk/taskforge/internal/executor"
	"github.com/vk/taskforge/internal/graph"
	"github.com/vk/taskforge/internal/project"
	"github.com/vk/taskforge/internal/query"
	"github.com/vk/taskforge/internal/report"
	"github.com/vk/taskforge/internal/selector"
)

// App is one configured application instance.
type App struct {
	config *Config
	logger *slog.Logger
	fs     afero.Fs
	out    io.Writer
	errW   io.Writer
}

// New creates an app writing user output to out and logs to errW.
func New(cfg *Config, fs afero.Fs, out, errW io.Writer) *App {
	return &App{
		config: cfg,
		logger: newLogger(cfg.LogLevel, cfg.LogFormat, errW),
		fs:     fs,
		out:    out,
		errW:   errW,
	}
}

// Run resolves the selector tokens, validates the induced graph and executes
// it. With no tokens the default-selected tasks run. The returned report is
// non-nil whenever execution started.
func (a *App) Run(ctx context.Context, tokens []string) (*report.Report, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := a.logger

	registry, err := buildfile.NewLoader(a.fs).Load(ctx, a.config.BuildFile)
	if err != nil {
		return nil, err
	}

	resolver := selector.New(registry, nil)
	roots, err := a.selectRoots(resolver, tokens)
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		logger.Warn("selection matched no tasks, nothing to do")
		return report.New(), nil
	}

	g, err := graph.Build(ctx, registry, roots)
	if err != nil {
		return nil, err
	}
	logger.Info("starting run", "tasks", g.Len(), "keepGoing", a.config.KeepGoing)

	store := cache.NewStore(a.fs, a.config.CacheDir)
	envKey, envBlob := a.restoreEnvironment(ctx, store)

	rep := report.New()
	exec := executor.New(g, store, rep, executor.Options{
		Workers:   a.config.Workers,
		KeepGoing: a.config.KeepGoing,
	})
	runErr := exec.Run(ctx)

	rep.Render(a.out)
	if runErr == nil {
		a.saveEnvironment(ctx, store, envKey, envBlob)
	}
	return rep, runErr
}

// selectRoots resolves the requested tokens, falling back to the
// default-selected tasks when the invocation named none.
func (a *App) selectRoots(resolver *selector.Resolver, tokens []string) ([]*project.Task, error) {
	if len(tokens) == 0 {
		return resolver.Defaults(), nil
	}
	return resolver.Resolve(tokens...)
}

// restoreEnvironment computes the coarse environment cache key from the lock
// file and platform and restores the opaque collaborator blob, if any. A
// missing lock file simply means a cold environment.
func (a *App) restoreEnvironment(ctx context.Context, store *cache.Store) (string, []byte) {
	logger := ctxlog.FromContext(ctx)
	lock, err := afero.ReadFile(a.fs, a.config.LockFile)
	if err != nil {
		logger.Debug("no lock file, environment cache disabled", "path", a.config.LockFile)
		return "", nil
	}
	key := cache.EnvKey(lock, runtime.GOOS+"/"+runtime.GOARCH)
	blob, ok := store.Restore(ctx, key)
	if ok {
		logger.Info("environment cache restored", "key", key, "bytes", len(blob))
	} else {
		logger.Info("environment cache cold", "key", key)
	}
	return key, blob
}

// saveEnvironment persists the environment blob after a fully successful
// run. The contents belong to external collaborators; a cold run stores a
// small timestamp marker so the next run reports warm.
func (a *App) saveEnvironment(ctx context.Context, store *cache.Store, key string, blob []byte) {
	if key == "" {
		return
	}
	if blob == nil {
		blob = []byte(time.Now().UTC().Format(time.RFC3339))
	}
	if err := store.Save(ctx, key, blob); err != nil {
		ctxlog.FromContext(ctx).Warn("environment cache save failed", "error", err)
	}
}

// Query dispatches a read-only query subcommand.
func (a *App) Query(ctx context.Context, sub string, args []string) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	registry, err := buildfile.NewLoader(a.fs).Load(ctx, a.config.BuildFile)
	if err != nil {
		return err
	}
	engine := query.New(registry)

	switch sub {
	case "ls":
		return engine.Ls(a.out, args...)
	case "tree":
		root := ":"
		if len(args) > 0 {
			root = args[0]
		}
		return engine.Tree(a.out, root)
	case "viz":
		return engine.Viz(ctx, a.out, args...)
	case "deps":
		if len(args) != 1 {
			return fmt.Errorf("query deps takes exactly one task address")
		}
		return engine.Deps(a.out, args[0])
	default:
		return fmt.Errorf("unknown query subcommand %q", sub)
	}
}
