package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/taskforge/internal/address"
	"github.com/vk/taskforge/internal/project"
)

// fixture builds the registry used across the resolver tests:
//
//	:a [lint]   :b [lint]   :c (default)
//	:sub:test   :sub:deep:clean
func fixture(t *testing.T) *project.Registry {
	t.Helper()
	reg := project.NewRegistry()
	root := reg.Root()

	_, err := root.Register(project.TaskSpec{Name: "a", Groups: []string{"lint"}})
	require.NoError(t, err)
	_, err = root.Register(project.TaskSpec{Name: "b", Groups: []string{"lint"}})
	require.NoError(t, err)
	_, err = root.Register(project.TaskSpec{Name: "c", Default: true})
	require.NoError(t, err)

	sub, err := root.Subproject("sub")
	require.NoError(t, err)
	_, err = sub.Register(project.TaskSpec{Name: "test"})
	require.NoError(t, err)

	deep, err := sub.Subproject("deep")
	require.NoError(t, err)
	_, err = deep.Register(project.TaskSpec{Name: "clean"})
	require.NoError(t, err)

	return reg
}

func addresses(tasks []*project.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.Addr.String())
	}
	return out
}

func TestResolveAbsolute(t *testing.T) {
	r := New(fixture(t), nil)

	tasks, err := r.Resolve(":sub:test")
	require.NoError(t, err)
	assert.Equal(t, []string{":sub:test"}, addresses(tasks))

	_, err = r.Resolve(":sub:missing")
	var unknown *UnknownSelectorError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, ":sub:missing", unknown.Token)
}

func TestResolveGroupUnionAndDedup(t *testing.T) {
	r := New(fixture(t), nil)

	// The documented dedup scenario: a group plus an absolute address.
	tasks, err := r.Resolve("lint", ":sub:test")
	require.NoError(t, err)
	assert.Equal(t, []string{":a", ":b", ":sub:test"}, addresses(tasks))

	// Overlapping tokens are unioned without duplicates.
	tasks, err = r.Resolve("lint", ":a", "lint")
	require.NoError(t, err)
	assert.Equal(t, []string{":a", ":b"}, addresses(tasks))
}

func TestResolveBareName(t *testing.T) {
	reg := fixture(t)

	t.Run("falls back to a task of the invoking project", func(t *testing.T) {
		tasks, err := New(reg, nil).Resolve("c")
		require.NoError(t, err)
		assert.Equal(t, []string{":c"}, addresses(tasks))
	})

	t.Run("group wins from another project scope", func(t *testing.T) {
		sub, ok := reg.Project(address.MustParse(":sub"))
		require.True(t, ok)
		tasks, err := New(reg, sub).Resolve("lint")
		require.NoError(t, err)
		assert.Equal(t, []string{":a", ":b"}, addresses(tasks))
	})

	t.Run("unknown bare name fails", func(t *testing.T) {
		_, err := New(reg, nil).Resolve("nope")
		var unknown *UnknownSelectorError
		assert.ErrorAs(t, err, &unknown)
	})
}

func TestResolveAmbiguous(t *testing.T) {
	reg := fixture(t)
	// A task of the invoking project that shadows the group name.
	_, err := reg.Root().Register(project.TaskSpec{Name: "lint"})
	require.NoError(t, err)

	_, err = New(reg, nil).Resolve("lint")
	var ambiguous *AmbiguousAddressError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, "lint", ambiguous.Token)
	assert.Equal(t, ":lint", ambiguous.Task)
}

func TestResolveWildcards(t *testing.T) {
	r := New(fixture(t), nil)

	t.Run("star is non-recursive", func(t *testing.T) {
		tasks, err := r.Resolve("*")
		require.NoError(t, err)
		assert.Equal(t, []string{":a", ":b", ":c"}, addresses(tasks))
	})

	t.Run("double star recurses", func(t *testing.T) {
		tasks, err := r.Resolve("**")
		require.NoError(t, err)
		assert.Equal(t, []string{":a", ":b", ":c", ":sub:test", ":sub:deep:clean"}, addresses(tasks))
	})

	t.Run("project-addressed wildcard", func(t *testing.T) {
		tasks, err := r.Resolve(":sub:*")
		require.NoError(t, err)
		assert.Equal(t, []string{":sub:test"}, addresses(tasks))

		tasks, err = r.Resolve(":sub:**")
		require.NoError(t, err)
		assert.Equal(t, []string{":sub:test", ":sub:deep:clean"}, addresses(tasks))
	})

	t.Run("wildcard on unknown project fails", func(t *testing.T) {
		_, err := r.Resolve(":nope:*")
		var unknown *UnknownSelectorError
		assert.ErrorAs(t, err, &unknown)
	})
}

func TestDefaults(t *testing.T) {
	r := New(fixture(t), nil)
	assert.Equal(t, []string{":c"}, addresses(r.Defaults()))
}
