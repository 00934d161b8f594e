package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture is a project with one generated output depending on two files
type fixture struct {
	cache  *Cache
	dir    string
	output string
	deps   []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	c, err := New(filepath.Join(dir, DefaultCacheDir))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	f := &fixture{
		cache:  c,
		dir:    dir,
		output: filepath.Join(dir, "shaders", "triangle_spv.go"),
		deps: []string{
			filepath.Join(dir, "shaders", "triangle.vert"),
			filepath.Join(dir, "common.glsl"),
		},
	}

	f.write(t, f.deps[0], "#include <common.glsl>\nvoid main() {}\n")
	f.write(t, f.deps[1], "float common;\n")
	f.write(t, f.output, "package shaders\n")

	return f
}

func (f *fixture) write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNew(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", DefaultCacheDir)

	c, err := New(dir)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, dir, c.Dir())
	assert.FileExists(t, filepath.Join(dir, "cache.db"))
}

func TestCache_GetMiss(t *testing.T) {
	f := newFixture(t)

	entry, err := f.cache.Get(f.output)
	require.NoError(t, err)
	assert.Nil(t, entry)

	fresh, err := f.cache.Fresh(f.output, "key")
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestCache_StoreAndGet(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.cache.Store(f.output, "key", f.deps))

	entry, err := f.cache.Get(f.output)
	require.NoError(t, err)
	require.NotNil(t, entry)

	assert.Equal(t, f.output, entry.Output)
	assert.Equal(t, "key", entry.Key)
	require.Len(t, entry.Dependencies, 2)
	assert.Equal(t, f.deps[0], entry.Dependencies[0].Path)
	assert.Equal(t, f.deps[1], entry.Dependencies[1].Path)

	outHash, err := HashFile(f.output)
	require.NoError(t, err)
	assert.Equal(t, outHash, entry.OutputHash)
	assert.False(t, entry.Timestamp.IsZero())
}

func TestCache_Fresh(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		mutate func(t *testing.T, f *fixture)
		want   bool
	}{
		{
			name: "unchanged",
			key:  "key",
			want: true,
		},
		{
			name: "different key",
			key:  "other",
			want: false,
		},
		{
			name: "dependency edited",
			key:  "key",
			mutate: func(t *testing.T, f *fixture) {
				f.write(t, f.deps[1], "float changed;\n")
			},
			want: false,
		},
		{
			name: "dependency deleted",
			key:  "key",
			mutate: func(t *testing.T, f *fixture) {
				require.NoError(t, os.Remove(f.deps[0]))
			},
			want: false,
		},
		{
			name: "output edited by hand",
			key:  "key",
			mutate: func(t *testing.T, f *fixture) {
				f.write(t, f.output, "package edited\n")
			},
			want: false,
		},
		{
			name: "output deleted is restored",
			key:  "key",
			mutate: func(t *testing.T, f *fixture) {
				require.NoError(t, os.Remove(f.output))
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.cache.Store(f.output, "key", f.deps))

			if tt.mutate != nil {
				tt.mutate(t, f)
			}

			fresh, err := f.cache.Fresh(f.output, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, fresh)
		})
	}
}

func TestCache_FreshRestoresContent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cache.Store(f.output, "key", f.deps))
	require.NoError(t, os.Remove(f.output))

	fresh, err := f.cache.Fresh(f.output, "key")
	require.NoError(t, err)
	require.True(t, fresh)

	content, err := os.ReadFile(f.output)
	require.NoError(t, err)
	assert.Equal(t, "package shaders\n", string(content))
}

func TestCache_RestoreMissingCopy(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cache.Store(f.output, "key", f.deps))
	require.NoError(t, os.RemoveAll(filepath.Join(f.cache.Dir(), "artifacts")))
	require.NoError(t, os.Remove(f.output))

	fresh, err := f.cache.Fresh(f.output, "key")
	require.NoError(t, err)
	assert.False(t, fresh, "an output that cannot be restored is stale")
}

func TestCache_StoreMissingDependency(t *testing.T) {
	f := newFixture(t)

	err := f.cache.Store(f.output, "key", []string{filepath.Join(f.dir, "missing.glsl")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to hash dependency")
}

func TestCache_StoreOverwrites(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cache.Store(f.output, "first", f.deps))
	require.NoError(t, f.cache.Store(f.output, "second", f.deps[:1]))

	entry, err := f.cache.Get(f.output)
	require.NoError(t, err)
	assert.Equal(t, "second", entry.Key)
	assert.Len(t, entry.Dependencies, 1)

	count, _, err := f.cache.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCache_Invalidate(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cache.Store(f.output, "key", f.deps))
	require.NoError(t, f.cache.Invalidate(f.output))

	entry, err := f.cache.Get(f.output)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestCache_ClearAndStats(t *testing.T) {
	f := newFixture(t)
	other := filepath.Join(f.dir, "shaders", "quad.spv")
	f.write(t, other, "\x03\x02\x23\x07")

	require.NoError(t, f.cache.Store(f.output, "a", f.deps))
	require.NoError(t, f.cache.Store(other, "b", nil))

	count, size, err := f.cache.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, int64(len("package shaders\n")+4), size)

	require.NoError(t, f.cache.Clear())

	count, size, err = f.cache.Stats()
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, size)
	assert.NoDirExists(t, filepath.Join(f.cache.Dir(), "artifacts"))
}

func TestHashKey(t *testing.T) {
	assert.Equal(t, HashKey("a", "b"), HashKey("a", "b"))
	assert.NotEqual(t, HashKey("a", "b"), HashKey("b", "a"))
	assert.NotEqual(t, HashKey("ab", ""), HashKey("a", "b"), "parts are length prefixed")
	assert.Len(t, HashKey(), 64)
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.glsl")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	hash, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", hash)

	_, err = HashFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
