package buildfile

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/taskforge/internal/address"
)

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "forge.hcl", []byte(`
task "build" {
  inputs  = { sources = "src/**" }
  outputs = ["dist/app"]
  default = true
}

task "lint" {
  depends_on = [":build"]
  groups     = ["check"]
}

project "docs" {
  task "render" {
    timeout = "90s"
  }

  project "api" {
    task "gen" {}
  }
}
`), 0o644))

	registry, err := NewLoader(fs).Load(context.Background(), "forge.hcl")
	require.NoError(t, err)

	build, ok := registry.Lookup(address.MustParse(":build"))
	require.True(t, ok)
	assert.True(t, build.Default)
	assert.Equal(t, map[string]string{"sources": "src/**"}, build.Inputs)
	assert.Equal(t, []string{"dist/app"}, build.Outputs)

	lint, ok := registry.Lookup(address.MustParse(":lint"))
	require.True(t, ok)
	require.Len(t, lint.DependsOn, 1)
	assert.Equal(t, ":build", lint.DependsOn[0].String())

	members, ok := registry.Group("check")
	require.True(t, ok)
	assert.Equal(t, []string{":lint"}, []string{members[0].Addr.String()})

	render, ok := registry.Lookup(address.MustParse(":docs:render"))
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, render.Timeout)

	_, ok = registry.Lookup(address.MustParse(":docs:api:gen"))
	assert.True(t, ok)
}

func TestLoadExecAction(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "forge.hcl", []byte(`
task "hello" {
  exec = ["echo", "hello"]
}

task "bare" {}
`), 0o644))

	registry, err := NewLoader(fs).Load(context.Background(), "forge.hcl")
	require.NoError(t, err)

	hello, ok := registry.Lookup(address.MustParse(":hello"))
	require.True(t, ok)
	assert.NotNil(t, hello.Action)

	bare, ok := registry.Lookup(address.MustParse(":bare"))
	require.True(t, ok)
	assert.Nil(t, bare.Action)
}

func TestLoadGroupBlock(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "forge.hcl", []byte(`
group "check" {
  members = [":lint", ":sub:test"]
}

task "lint" {
  groups = ["check"]
}

project "sub" {
  task "test" {}
}
`), 0o644))

	registry, err := NewLoader(fs).Load(context.Background(), "forge.hcl")
	require.NoError(t, err)

	members, ok := registry.Group("check")
	require.True(t, ok)
	addrs := make([]string, 0, len(members))
	for _, m := range members {
		addrs = append(addrs, m.Addr.String())
	}
	// :lint joined via its groups attribute and is not duplicated by the
	// group block naming it again.
	assert.ElementsMatch(t, []string{":lint", ":sub:test"}, addrs)
}

func TestLoadGroupBlockUnknownMember(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "forge.hcl", []byte(`
group "check" {
  members = [":missing"]
}
`), 0o644))

	_, err := NewLoader(fs).Load(context.Background(), "forge.hcl")
	assert.ErrorContains(t, err, "is not a registered task")
}

func TestLoadPlatformVariable(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "forge.hcl", []byte(`
task "build" {
  inputs = { platform = "${platform.os}/${platform.arch}" }
}
`), 0o644))

	registry, err := NewLoader(fs).Load(context.Background(), "forge.hcl")
	require.NoError(t, err)

	build, ok := registry.Lookup(address.MustParse(":build"))
	require.True(t, ok)
	assert.Contains(t, build.Inputs["platform"], "/")
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name:    "syntax error",
			src:     `task "a" {`,
			wantErr: "parsing build file",
		},
		{
			name:    "unknown attribute",
			src:     `task "a" { retries = 3 }`,
			wantErr: "decoding build file",
		},
		{
			name:    "invalid timeout",
			src:     `task "a" { timeout = "soon" }`,
			wantErr: "invalid timeout",
		},
		{
			name: "duplicate task",
			src: `
task "a" {}
task "a" {}
`,
			wantErr: ":a",
		},
		{
			name: "project shadows task",
			src: `
task "a" {}
project "a" {}
`,
			wantErr: "a",
		},
		{
			name:    "malformed dependency",
			src:     `task "a" { depends_on = ["b"] }`,
			wantErr: "not absolute",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "forge.hcl", []byte(tc.src), 0o644))
			_, err := NewLoader(fs).Load(context.Background(), "forge.hcl")
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader(afero.NewMemMapFs()).Load(context.Background(), "nope.hcl")
	assert.ErrorContains(t, err, "reading build file")
}
