package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Norgate-AV/spvgen/internal/codes"
	"github.com/Norgate-AV/spvgen/internal/compiler"
	"github.com/Norgate-AV/spvgen/internal/config"
	"github.com/Norgate-AV/spvgen/internal/embed"
)

// stubBackend expands includes and returns a fixed module
type stubBackend struct {
	requests []*compiler.Request
}

func (s *stubBackend) Compile(_ context.Context, req *compiler.Request) (*compiler.Output, error) {
	s.requests = append(s.requests, req)

	if _, err := compiler.Preprocess(req.Source, req.Name, req.Macros(), req.Include); err != nil {
		return nil, err
	}

	return &compiler.Output{Words: []uint32{compiler.MagicNumber, 0x00010000, 7}}, nil
}

// setupProject creates a module with shader files, moves into it and points
// the CLI at a stub backend
func setupProject(t *testing.T, files map[string]string) (string, *stubBackend) {
	t.Helper()

	root := t.TempDir()
	files["go.mod"] = "module example.com/app\n"

	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	t.Chdir(root)
	t.Setenv("SPVGEN_CONFIG_DIR", t.TempDir())
	t.Setenv("GOFILE", "gen.go")
	t.Setenv("GOLINE", "12")
	t.Setenv("GOPACKAGE", "shaders")

	viper.Reset()
	t.Cleanup(viper.Reset)

	backend := &stubBackend{}
	orig := newBackend
	newBackend = func(*config.Config, *zap.Logger) compiler.Backend { return backend }
	t.Cleanup(func() { newBackend = orig })

	return root, backend
}

// execute runs the CLI with args, starting from default flag values
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetIn(nil)
	})

	err := rootCmd.Execute()

	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}

	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)

	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

const triangle = "#version 450\n#include \"common.glsl\"\nvoid main() {}\n"

func TestBuildCommand(t *testing.T) {
	root, backend := setupProject(t, map[string]string{
		"shaders/tri.vert":    triangle,
		"shaders/common.glsl": "// common\n",
	})

	_, err := execute(t, "", "build", "shaders/tri.vert", "optimize:", "size,", "define:", "N", "1", "--depfile", "--no-cache")
	require.NoError(t, err)

	require.Len(t, backend.requests, 1)
	req := backend.requests[0]
	assert.Equal(t, filepath.Join(root, "shaders", "tri.vert"), req.Name)
	require.Len(t, req.Options.Macros, 1)
	assert.Equal(t, "N", req.Options.Macros[0].Name)
	require.NotNil(t, req.Options.Macros[0].Value)
	assert.Equal(t, "1", *req.Options.Macros[0].Value)

	src, err := os.ReadFile(filepath.Join(root, "tri_vert_spv.go"))
	require.NoError(t, err)
	assert.Contains(t, string(src), "package shaders")
	assert.Contains(t, string(src), "var TriVert = []uint32{")
	assert.Contains(t, string(src), "0x07230203")

	dep, err := os.ReadFile(filepath.Join(root, "tri_vert_spv.go.d"))
	require.NoError(t, err)
	assert.Contains(t, string(dep), filepath.Join(root, "shaders", "common.glsl"))
}

func TestBuildCommand_SPVOutput(t *testing.T) {
	root, _ := setupProject(t, map[string]string{
		"shaders/tri.vert":    triangle,
		"shaders/common.glsl": "",
	})

	_, err := execute(t, "", "build", "shaders/tri.vert", "--format", "spv", "-o", "out/tri.spv", "--no-cache")
	require.NoError(t, err)

	bin, err := os.ReadFile(filepath.Join(root, "out", "tri.spv"))
	require.NoError(t, err)

	words, err := compiler.DecodeWords(bin)
	require.NoError(t, err)
	assert.Equal(t, []uint32{compiler.MagicNumber, 0x00010000, 7}, words)
}

func TestBuildCommand_UpToDate(t *testing.T) {
	setupProject(t, map[string]string{
		"shaders/tri.vert":    triangle,
		"shaders/common.glsl": "",
	})

	out, err := execute(t, "", "build", "shaders/tri.vert")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = execute(t, "", "build", "shaders/tri.vert")
	require.NoError(t, err)
	assert.Equal(t, "tri_vert_spv.go is up to date\n", out)

	out, err = execute(t, "", "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Stamps:    1\n")

	_, err = execute(t, "", "cache", "clear")
	require.NoError(t, err)

	out, err = execute(t, "", "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Stamps:    0\n")
}

func TestBuildCommand_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		exitCode int
		contains string
	}{
		{
			name:     "missing source",
			args:     []string{"build", "shaders/nope.vert", "--no-cache"},
			exitCode: 4,
			contains: "gen.go:12: source read error: cannot read shader source",
		},
		{
			name:     "missing include",
			args:     []string{"build", "shaders/broken.vert", "--no-cache"},
			exitCode: 3,
			contains: "missing.glsl",
		},
		{
			name:     "bad option",
			args:     []string{"build", "shaders/tri.vert", "optimize:", "fast", "--no-cache"},
			exitCode: 2,
			contains: "gen.go:12: config error",
		},
		{
			name:     "options twice",
			args:     []string{"build", "shaders/tri.vert", "kind:", "vert", "--opts", "kind: vert"},
			exitCode: 2,
			contains: "options given both as arguments and with --opts",
		},
		{
			name:     "bad format",
			args:     []string{"build", "shaders/tri.vert", "--format", "hex"},
			exitCode: 2,
			contains: "invalid --format",
		},
		{
			name:     "bad root",
			args:     []string{"build", "shaders/tri.vert", "--root", "does-not-exist"},
			exitCode: 2,
			contains: "invalid configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupProject(t, map[string]string{
				"shaders/tri.vert":    triangle,
				"shaders/common.glsl": "",
				"shaders/broken.vert": "#version 450\n#include \"missing.glsl\"\n",
			})

			_, err := execute(t, "", tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, codes.GetExitCode(err))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestInlineCommand(t *testing.T) {
	root, backend := setupProject(t, map[string]string{
		"shaders/common.glsl": "",
	})

	stdin := "kind: frag,\n`#version 450\n#include \"shaders/common.glsl\"\nvoid main() {}`\n"

	_, err := execute(t, stdin, "inline", "-o", "flat.go", "--var", "Flat", "--no-cache")
	require.NoError(t, err)

	require.Len(t, backend.requests, 1)
	assert.Equal(t, "inline", backend.requests[0].Name)

	src, err := os.ReadFile(filepath.Join(root, "flat.go"))
	require.NoError(t, err)
	assert.Contains(t, string(src), "var Flat = []uint32{")
}

func TestInlineCommand_MissingFile(t *testing.T) {
	setupProject(t, map[string]string{})

	_, err := execute(t, "", "inline", "nope.txt")
	require.Error(t, err)
	assert.Equal(t, 4, codes.GetExitCode(err))
	assert.Contains(t, err.Error(), "cannot read inline shader nope.txt")
}

func TestBatchCommand(t *testing.T) {
	root, backend := setupProject(t, map[string]string{
		"shaders/tri.vert":    triangle,
		"shaders/common.glsl": "",
		"spvgen.hcl": `package = "shaders"

shader "tri" {
  path   = "shaders/tri.vert"
  output = "tri_spv.go"
}

shader "flat" {
  source  = "#version 450\nvoid main() {}\n"
  options = "kind: frag"
  output  = "flat.spv"
  format  = "spv"
}
`,
	})

	out, err := execute(t, "", "batch", "--no-cache")
	require.NoError(t, err)
	assert.Equal(t, "2 built, 0 up to date\n", out)
	assert.Len(t, backend.requests, 2)

	assert.FileExists(t, filepath.Join(root, "tri_spv.go"))
	assert.FileExists(t, filepath.Join(root, "flat.spv"))
}

func TestBatchCommand_ReportsAllFailures(t *testing.T) {
	setupProject(t, map[string]string{
		"spvgen.hcl": `shader "a" {
  path   = "shaders/a.vert"
  output = "a.spv"
  format = "spv"
}

shader "b" {
  path   = "shaders/b.vert"
  output = "b.spv"
  format = "spv"
}
`,
	})

	_, err := execute(t, "", "batch", "--no-cache")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.vert")
	assert.Contains(t, err.Error(), "b.vert")
}

func TestBatchCommand_MissingManifest(t *testing.T) {
	setupProject(t, map[string]string{})

	_, err := execute(t, "", "batch", "other.hcl")
	require.Error(t, err)
	assert.Equal(t, 4, codes.GetExitCode(err))
}

func TestCallSite(t *testing.T) {
	t.Setenv("GOFILE", "shaders.go")
	t.Setenv("GOLINE", "42")
	assert.Equal(t, codes.Location{File: "shaders.go", Line: 42}, callSite())

	t.Setenv("GOFILE", "")
	t.Setenv("GOLINE", "")
	assert.False(t, callSite().IsValid())
}

func TestDefaultOutput(t *testing.T) {
	assert.Equal(t, "triangle_vert_spv.go", defaultOutput("shaders/triangle.vert", embed.FormatGo))
	assert.Equal(t, "triangle.vert.spv", defaultOutput("shaders/triangle.vert", embed.FormatSPV))
	assert.Equal(t, "inline_spv.go", defaultOutput("inline", embed.FormatGo))
}

func TestJoinOptions(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "plain tokens",
			args: []string{"kind:", "vert,", "optimize:", "size"},
			want: "kind: vert, optimize: size",
		},
		{
			name: "define value",
			args: []string{"define:", "N", "1,", "strip"},
			want: `define: N "1", strip`,
		},
		{
			name: "define without space",
			args: []string{"define:N", "4,", "define:M", "x"},
			want: `define:N "4", define:M "x"`,
		},
		{
			name: "define without space or value",
			args: []string{"define:DEBUG,", "strip"},
			want: "define:DEBUG, strip",
		},
		{
			name: "define without value",
			args: []string{"define:", "DEBUG,", "strip"},
			want: "define: DEBUG, strip",
		},
		{
			name: "unquoted string",
			args: []string{"define:", "EXPR", "a + b"},
			want: `define: EXPR "a + b"`,
		},
		{
			name: "punctuation",
			args: []string{"kind:", "vert", "x=1"},
			want: `kind: vert "x=1"`,
		},
		{
			name: "empty argument",
			args: []string{"kind:", ""},
			want: `kind: ""`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, joinOptions(tt.args))
		})
	}
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger(false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.DebugLevel))

	l, err = newLogger(true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))
}
