package cache

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/taskforge/internal/project"
)

func newTask(t *testing.T, name string, inputs map[string]string) *project.Task {
	t.Helper()
	reg := project.NewRegistry()
	task, err := reg.Root().Register(project.TaskSpec{Name: name, Inputs: inputs})
	require.NoError(t, err)
	return task
}

func TestFingerprint(t *testing.T) {
	t.Run("stable across calls", func(t *testing.T) {
		task := newTask(t, "build", map[string]string{"sources": "src/**", "flags": "-O2"})
		assert.Equal(t, Fingerprint(task, nil), Fingerprint(task, nil))
	})

	t.Run("changes with inputs", func(t *testing.T) {
		a := newTask(t, "build", map[string]string{"flags": "-O2"})
		b := newTask(t, "build", map[string]string{"flags": "-O3"})
		assert.NotEqual(t, Fingerprint(a, nil), Fingerprint(b, nil))
	})

	t.Run("changes with address", func(t *testing.T) {
		a := newTask(t, "build", nil)
		b := newTask(t, "lint", nil)
		assert.NotEqual(t, Fingerprint(a, nil), Fingerprint(b, nil))
	})

	t.Run("changes with dependency fingerprints", func(t *testing.T) {
		task := newTask(t, "build", nil)
		cold := Fingerprint(task, map[string]string{":dep": "aaa"})
		warm := Fingerprint(task, map[string]string{":dep": "bbb"})
		assert.NotEqual(t, cold, warm)
	})
}

func TestEnvKey(t *testing.T) {
	lock := []byte("lockfile contents")
	assert.Equal(t, EnvKey(lock, "linux/amd64"), EnvKey(lock, "linux/amd64"))
	assert.NotEqual(t, EnvKey(lock, "linux/amd64"), EnvKey(lock, "darwin/arm64"))
	assert.NotEqual(t, EnvKey(lock, "linux/amd64"), EnvKey([]byte("other"), "linux/amd64"))
}

func TestStoreFingerprintRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore(afero.NewMemMapFs(), "cache")

	_, ok := store.Lookup(ctx, "deadbeef")
	assert.False(t, ok)

	entry := &Entry{Address: ":build", Outputs: []string{"dist/app"}, CreatedAt: time.Now().UTC()}
	require.NoError(t, store.Write(ctx, "deadbeef", entry))

	got, ok := store.Lookup(ctx, "deadbeef")
	require.True(t, ok)
	assert.Equal(t, ":build", got.Address)
	assert.Equal(t, []string{"dist/app"}, got.Outputs)
}

func TestStoreCorruptEntryDegradesToMiss(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "cache")
	require.NoError(t, afero.WriteFile(fs, store.fingerprintPath("deadbeef"), []byte("{not json"), 0o644))

	_, ok := store.Lookup(ctx, "deadbeef")
	assert.False(t, ok)
}

func TestStoreReadOnlyFilesystemIsNotFatal(t *testing.T) {
	ctx := context.Background()
	store := NewStore(afero.NewReadOnlyFs(afero.NewMemMapFs()), "cache")

	// Writes fail with an IOError the caller logs and ignores.
	err := store.Write(ctx, "deadbeef", &Entry{Address: ":build"})
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)

	// Lookups on the same filesystem still degrade to a cold miss.
	_, ok := store.Lookup(ctx, "deadbeef")
	assert.False(t, ok)

	assert.Error(t, store.Save(ctx, "envkey", []byte("blob")))
}

func TestStoreEnvironmentRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore(afero.NewMemMapFs(), "cache")

	_, ok := store.Restore(ctx, "envkey")
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, "envkey", []byte("opaque blob")))
	blob, ok := store.Restore(ctx, "envkey")
	require.True(t, ok)
	assert.Equal(t, []byte("opaque blob"), blob)
}

func TestStoreConcurrentWritesSameKey(t *testing.T) {
	ctx := context.Background()
	store := NewStore(afero.NewMemMapFs(), "cache")

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_ = store.Write(ctx, "samekey", &Entry{Address: ":build", CreatedAt: time.Now()})
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	_, ok := store.Lookup(ctx, "samekey")
	assert.True(t, ok)
}
