package buildfile

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/vk/taskforge/internal/project"
)

// execAction compiles an argv declaration into the built-in process action.
// The command inherits the parent environment plus the declared overrides;
// combined output goes to the execution context and ends up in the report.
func execAction(argv []string, dir string, env map[string]string) project.Action {
	argv = append([]string(nil), argv...)
	return func(ctx context.Context, ec *project.ExecContext) error {
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Dir = dir
		cmd.Stdout = ec.Out
		cmd.Stderr = ec.Out
		cmd.Env = os.Environ()
		for key, value := range env {
			cmd.Env = append(cmd.Env, key+"="+value)
		}
		if err := cmd.Run(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("command %q: %w", argv[0], err)
		}
		return nil
	}
}
