// Package cli defines the command surface: `taskforge run` and
// `taskforge query ls|tree|viz|deps`, plus the exit-code contract scripts
// rely on.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/vk/taskforge/internal/app"
	"github.com/vk/taskforge/internal/executor"
	"github.com/vk/taskforge/internal/graph"
	"github.com/vk/taskforge/internal/selector"
)

// Exit codes. Scripts depend on these staying distinct and stable.
const (
	ExitSuccess     = 0
	ExitTaskFailure = 1
	ExitSelector    = 2
	ExitCycle       = 3
	ExitUnknownTask = 4
	ExitInternal    = 5
)

// ExitError carries a process exit code alongside the message.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// classify maps an error to its exit code per the taxonomy: structural
// request defects get their own codes, execution failures share one, and
// everything else is internal.
func classify(err error) int {
	var (
		unknownSel *selector.UnknownSelectorError
		ambiguous  *selector.AmbiguousAddressError
		cyclic     *graph.CyclicDependencyError
		unknownTsk *graph.UnknownTaskError
		taskFail   *executor.TaskExecutionError
		timeout    *executor.TimeoutError
	)
	switch {
	case errors.As(err, &unknownSel), errors.As(err, &ambiguous):
		return ExitSelector
	case errors.As(err, &cyclic):
		return ExitCycle
	case errors.As(err, &unknownTsk):
		return ExitUnknownTask
	case errors.As(err, &taskFail), errors.As(err, &timeout),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ExitTaskFailure
	default:
		return ExitInternal
	}
}

// exit wraps err into an ExitError with its classified code.
func exit(err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: classify(err), Message: err.Error()}
}

// NewRootCommand builds the command tree. fs backs build file and cache
// access; out receives user-facing output, errW receives logs.
func NewRootCommand(fs afero.Fs, out, errW io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "taskforge",
		Short:         "taskforge runs declared task graphs with incremental skipping",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errW)

	flags := root.PersistentFlags()
	flags.StringP("file", "f", "forge.hcl", "Path to the build file.")
	flags.String("lockfile", "forge.lock", "Path to the lock file hashed into the environment cache key.")
	flags.String("cache-dir", ".forge/cache", "Directory of the build cache.")
	flags.String("log-level", "info", "Logging level: debug, info, warn or error.")
	flags.String("log-format", "text", "Log output format: text or json.")

	root.AddCommand(newRunCommand(fs, out, errW))
	root.AddCommand(newQueryCommand(fs, out, errW))
	return root
}

func newRunCommand(fs afero.Fs, out, errW io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [selector...]",
		Short: "Resolve, validate and execute the selected tasks",
		Long: "Resolves the selector expressions to tasks, validates the induced\n" +
			"dependency graph and executes it in parallel, skipping tasks whose\n" +
			"fingerprint matches a prior successful run. Without a selector the\n" +
			"default-flagged tasks run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(cmd.Flags())
			if err != nil {
				return &ExitError{Code: ExitInternal, Message: err.Error()}
			}
			_, err = app.New(cfg, fs, out, errW).Run(cmd.Context(), args)
			return exit(err)
		},
	}
	cmd.Flags().IntP("workers", "j", 0, "Concurrent workers; 0 means host parallelism.")
	cmd.Flags().Bool("keep-going", false, "Keep executing branches unaffected by a failure.")
	return cmd
}

func newQueryCommand(fs afero.Fs, out, errW io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Read-only inspection of the registry and dependency graph",
	}

	sub := func(name, short string, arity cobra.PositionalArgs) *cobra.Command {
		return &cobra.Command{
			Use:   fmt.Sprintf("%s [arg...]", name),
			Short: short,
			Args:  arity,
			RunE: func(c *cobra.Command, args []string) error {
				cfg, err := app.LoadConfig(c.Flags())
				if err != nil {
					return &ExitError{Code: ExitInternal, Message: err.Error()}
				}
				return exit(app.New(cfg, fs, out, errW).Query(c.Context(), name, args))
			},
		}
	}

	ls := sub("ls", "Print the addresses a selector resolves to", cobra.MinimumNArgs(1))
	ls.Aliases = []string{"list"}

	cmd.AddCommand(
		ls,
		sub("tree", "Print the project hierarchy", cobra.MaximumNArgs(1)),
		sub("viz", "Emit a DOT graph of the induced dependency subgraph", cobra.MinimumNArgs(1)),
		sub("deps", "List the direct dependencies of one task", cobra.ExactArgs(1)),
	)
	return cmd
}
