package buildfile

// fileRoot decodes the top-level blocks of a build file.
type fileRoot struct {
	Projects []*projectBlock `hcl:"project,block"`
	Tasks    []*taskBlock    `hcl:"task,block"`
	Groups   []*groupBlock   `hcl:"group,block"`
}

// projectBlock is a `project "name" { ... }` block. Projects nest to form
// the namespace tree.
type projectBlock struct {
	Name     string          `hcl:"name,label"`
	Projects []*projectBlock `hcl:"project,block"`
	Tasks    []*taskBlock    `hcl:"task,block"`
	Groups   []*groupBlock   `hcl:"group,block"`
}

// groupBlock is a `group "name" { members = [...] }` block, the dual of the
// `groups` attribute on tasks. Members are absolute task addresses.
type groupBlock struct {
	Name    string   `hcl:"name,label"`
	Members []string `hcl:"members"`
}

// taskBlock is a `task "name" { ... }` block.
type taskBlock struct {
	Name      string            `hcl:"name,label"`
	DependsOn []string          `hcl:"depends_on,optional"`
	Groups    []string          `hcl:"groups,optional"`
	Default   bool              `hcl:"default,optional"`
	Outputs   []string          `hcl:"outputs,optional"`
	Inputs    map[string]string `hcl:"inputs,optional"`
	Exec      []string          `hcl:"exec,optional"`
	Dir       string            `hcl:"dir,optional"`
	Env       map[string]string `hcl:"env,optional"`
	Timeout   string            `hcl:"timeout,optional"`
}
