package include

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/spvgen/internal/codes"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestTracker_RelativeAndStandard(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "common.glsl"), "// root copy")
	writeFile(t, filepath.Join(root, "shaders", "common.glsl"), "// nested copy")
	src := filepath.Join(root, "shaders", "main.vert")
	writeFile(t, src, "")

	tr := New(root).Track(src)

	rel, err := tr.Resolve("common.glsl", Relative, src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "shaders", "common.glsl"), rel.Name)
	assert.Equal(t, "// nested copy", rel.Content)

	std, err := tr.Resolve("common.glsl", Standard, src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "common.glsl"), std.Name)
	assert.Equal(t, "// root copy", std.Content)

	assert.Equal(t, []string{src, rel.Name, std.Name}, tr.Dependencies())
}

func TestTracker_StandardIgnoresNesting(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "lib", "util.glsl"), "util")
	deep := filepath.Join(root, "a", "b", "c", "deep.glsl")

	tr := New(root).Track("")
	res, err := tr.Resolve("lib/util.glsl", Standard, deep)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "lib", "util.glsl"), res.Name)
}

func TestTracker_LiteralSource(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "inc.glsl"), "x")

	tr := New(root).Track("")
	assert.Empty(t, tr.Dependencies(), "literal sources start with no dependency")

	res, err := tr.Resolve("inc.glsl", Relative, "inline")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "inc.glsl"), res.Name)
	assert.Equal(t, []string{res.Name}, tr.Dependencies())
}

func TestTracker_DuplicatesKept(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a.frag")
	writeFile(t, filepath.Join(root, "x.glsl"), "x")

	tr := New(root).Track(src)
	for range 3 {
		_, err := tr.Resolve("x.glsl", Relative, src)
		require.NoError(t, err)
	}

	assert.Len(t, tr.Dependencies(), 4)
}

func TestTracker_AbsoluteName(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	abs := filepath.Join(other, "abs.glsl")
	writeFile(t, abs, "abs")

	tr := New(root).Track("")
	res, err := tr.Resolve(abs, Relative, filepath.Join(root, "main.vert"))
	require.NoError(t, err)
	assert.Equal(t, abs, res.Name)
}

func TestTracker_Missing(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "main.vert")

	tr := New(root).Track(src)
	_, err := tr.Resolve("local.glsl", Relative, src)
	require.Error(t, err)

	kind, ok := codes.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, codes.ResolutionError, kind)
	assert.Contains(t, err.Error(), filepath.Join(root, "local.glsl"))

	// The attempted path is still recorded.
	assert.Equal(t, []string{src, filepath.Join(root, "local.glsl")}, tr.Dependencies())
}

func TestTracker_NonUnicodePath(t *testing.T) {
	tr := New(t.TempDir()).Track("")
	_, err := tr.Resolve("bad\xff.glsl", Standard, "inline")
	require.Error(t, err)

	kind, _ := codes.KindOf(err)
	assert.Equal(t, codes.ResolutionError, kind)
	assert.Contains(t, err.Error(), "non-unicode")
	assert.Empty(t, tr.Dependencies())
}

func TestType_String(t *testing.T) {
	assert.Equal(t, "relative", Relative.String())
	assert.Equal(t, "standard", Standard.String())
}
