// Package buildfile loads HCL build files and populates the task registry
// from them. Loading is single-threaded and completes before any graph is
// built; a malformed declaration fails here, never at dispatch time.
package buildfile

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/taskforge/internal/address"
	"github.com/vk/taskforge/internal/ctxlog"
	"github.com/vk/taskforge/internal/project"
)

// Loader parses build files from an afero filesystem so tests can feed it
// in-memory fixtures.
type Loader struct {
	fs afero.Fs
}

// NewLoader creates a build file loader over the given filesystem.
func NewLoader(fs afero.Fs) *Loader {
	return &Loader{fs: fs}
}

// Load parses the build file at path and returns a freshly populated
// registry.
func (l *Loader) Load(ctx context.Context, path string) (*project.Registry, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("loading build file", "path", path)

	src, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading build file %s: %w", path, err)
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing build file %s: %w", path, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, evalContext(), &root); diags.HasErrors() {
		return nil, fmt.Errorf("decoding build file %s: %w", path, diags)
	}

	registry := project.NewRegistry()
	if err := populate(registry.Root(), root.Projects, root.Tasks); err != nil {
		return nil, err
	}
	// Group declarations resolve after every task is registered so members
	// may reference tasks declared anywhere in the tree.
	if err := applyGroups(registry, collectGroups(root.Groups, root.Projects)); err != nil {
		return nil, err
	}
	logger.Debug("build file loaded", "path", path, "tasks", len(registry.Tasks()))
	return registry, nil
}

// collectGroups gathers group blocks from the whole project tree. The scope
// of the declaring block is irrelevant: members are absolute addresses.
func collectGroups(groups []*groupBlock, projects []*projectBlock) []*groupBlock {
	out := append([]*groupBlock(nil), groups...)
	for _, block := range projects {
		out = append(out, collectGroups(block.Groups, block.Projects)...)
	}
	return out
}

// applyGroups resolves declared group members and records the memberships.
func applyGroups(registry *project.Registry, groups []*groupBlock) error {
	for _, block := range groups {
		for _, member := range block.Members {
			addr, err := address.Parse(member)
			if err != nil {
				return fmt.Errorf("group %q: member %w", block.Name, err)
			}
			task, ok := registry.Lookup(addr)
			if !ok {
				return fmt.Errorf("group %q: member %s is not a registered task", block.Name, addr)
			}
			registry.AddToGroup(block.Name, task)
		}
	}
	return nil
}

// evalContext exposes the variables build files may reference, currently the
// target platform. Values feed fingerprint inputs, so platform-dependent
// tasks re-run when built on another platform.
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"platform": cty.ObjectVal(map[string]cty.Value{
				"os":   cty.StringVal(runtime.GOOS),
				"arch": cty.StringVal(runtime.GOARCH),
			}),
		},
	}
}

// populate registers the decoded blocks into the project, depth-first.
func populate(p *project.Project, projects []*projectBlock, tasks []*taskBlock) error {
	for _, block := range tasks {
		spec, err := taskSpec(block)
		if err != nil {
			return fmt.Errorf("project %s: %w", p.Addr(), err)
		}
		if _, err := p.Register(spec); err != nil {
			return err
		}
	}
	for _, block := range projects {
		child, err := p.Subproject(block.Name)
		if err != nil {
			return err
		}
		if err := populate(child, block.Projects, block.Tasks); err != nil {
			return err
		}
	}
	return nil
}

// taskSpec translates a decoded task block into a registry spec.
func taskSpec(block *taskBlock) (project.TaskSpec, error) {
	var timeout time.Duration
	if block.Timeout != "" {
		parsed, err := time.ParseDuration(block.Timeout)
		if err != nil {
			return project.TaskSpec{}, fmt.Errorf("task %q: invalid timeout %q: %w", block.Name, block.Timeout, err)
		}
		timeout = parsed
	}

	var action project.Action
	if len(block.Exec) > 0 {
		action = execAction(block.Exec, block.Dir, block.Env)
	}

	return project.TaskSpec{
		Name:      block.Name,
		DependsOn: block.DependsOn,
		Groups:    block.Groups,
		Outputs:   block.Outputs,
		Inputs:    block.Inputs,
		Action:    action,
		Default:   block.Default,
		Timeout:   timeout,
	}, nil
}
