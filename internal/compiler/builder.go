package compiler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Norgate-AV/spvgen/internal/codes"
	"github.com/Norgate-AV/spvgen/internal/options"
)

// DefaultCompilerPath is the shaderc command line compiler looked up on PATH
const DefaultCompilerPath = "glslc"

// Commander interface for testing
type Commander interface {
	Run() error
}

// Glslc is a Backend that runs the shaderc glslc compiler. Includes are
// expanded in-process through the request's IncludeFunc before glslc sees
// the source.
type Glslc struct {
	// Path to the glslc binary
	Path string

	logger      *zap.Logger
	execCommand func(ctx context.Context, output io.Writer, name string, args ...string) Commander
}

// NewGlslc creates a glslc backend
func NewGlslc(path string, logger *zap.Logger) *Glslc {
	if path == "" {
		path = DefaultCompilerPath
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Glslc{
		Path:   path,
		logger: logger,
		execCommand: func(ctx context.Context, output io.Writer, name string, args ...string) Commander {
			cmd := exec.CommandContext(ctx, name, args...)
			cmd.Stdout = output
			cmd.Stderr = output
			return cmd
		},
	}
}

// Compile preprocesses the request, runs glslc once in a scratch directory
// and reads back the module. The scratch directory is removed on every path.
func (g *Glslc) Compile(ctx context.Context, req *Request) (*Output, error) {
	src := req.Source
	if req.Stage != options.SpirvAssembly && req.Include != nil {
		expanded, err := Preprocess(req.Source, req.Name, req.Macros(), req.Include)
		if err != nil {
			return nil, err
		}

		src = expanded
	}

	dir, err := os.MkdirTemp("", "spvgen-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}

	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "shader."+inputExtension(req.Stage))
	if err := os.WriteFile(input, []byte(src), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write shader source: %w", err)
	}

	output := filepath.Join(dir, "shader.spv")
	args := BuildCommandArgs(req, input, output)
	g.PrintBuildInfo(req, args)

	var diag bytes.Buffer
	runErr := g.execCommand(ctx, &diag, g.Path, args...).Run()
	text := strings.TrimSpace(strings.ReplaceAll(diag.String(), input, req.Name))

	if runErr != nil {
		if text == "" {
			return nil, codes.Wrap(codes.BackendError, codes.Location{}, runErr, "failed to run %s", g.Path)
		}

		return nil, codes.New(codes.BackendError, codes.Location{}, "%s", text)
	}

	bin, err := os.ReadFile(output)
	if err != nil {
		return nil, codes.Wrap(codes.BackendError, codes.Location{}, err, "%s produced no output", g.Path)
	}

	words, err := DecodeWords(bin)
	if err != nil {
		return nil, codes.Wrap(codes.BackendError, codes.Location{}, err, "%s produced an invalid module", g.Path)
	}

	count, warnings := CountWarnings(text)

	return &Output{Words: words, Warnings: count, WarningText: warnings}, nil
}

// BuildCommandArgs builds the glslc arguments for a request
func BuildCommandArgs(req *Request, input, output string) []string {
	opts := req.Options
	if opts == nil {
		opts = options.NewCompileOptions(options.Defaults{})
	}

	var cmdArgs []string

	if req.Stage != options.InferFromSource && req.Stage != options.SpirvAssembly {
		cmdArgs = append(cmdArgs, "-fshader-stage="+req.Stage.String())
	}

	if req.EntryPoint != "" && req.EntryPoint != DefaultEntryPoint {
		cmdArgs = append(cmdArgs, "-fentry-point="+req.EntryPoint)
	}

	if req.Stage != options.SpirvAssembly {
		if opts.ForcedVersion != nil {
			cmdArgs = append(cmdArgs, "-std="+strconv.FormatUint(uint64(*opts.ForcedVersion), 10))
		}

		for _, m := range opts.Macros {
			if m.Value != nil {
				cmdArgs = append(cmdArgs, "-D"+m.Name+"="+*m.Value)
			} else {
				cmdArgs = append(cmdArgs, "-D"+m.Name)
			}
		}

		if opts.GenerateDebugInfo {
			cmdArgs = append(cmdArgs, "-g")
		}
	}

	switch opts.Optimization {
	case options.Zero:
		cmdArgs = append(cmdArgs, "-O0")
	case options.Size:
		cmdArgs = append(cmdArgs, "-Os")
	default:
		cmdArgs = append(cmdArgs, "-O")
	}

	major, minor := options.SplitTargetVersion(opts.TargetVersion)
	cmdArgs = append(cmdArgs, fmt.Sprintf("--target-env=vulkan%d.%d", major, minor))
	cmdArgs = append(cmdArgs, "-o", output, input)

	return cmdArgs
}

// inputExtension names the scratch input so glslc recognizes the stage.
// Sources with an unknown stage use .glsl, which makes glslc honor
// `#pragma shader_stage`.
func inputExtension(stage options.Stage) string {
	if stage == options.InferFromSource {
		return "glsl"
	}

	return stage.String()
}

// CountWarnings counts `warning:` diagnostics in compiler output and returns
// them as a single message
func CountWarnings(diag string) (int, string) {
	var lines []string

	for _, line := range strings.Split(diag, "\n") {
		if strings.Contains(strings.ToLower(line), "warning:") && !strings.HasSuffix(strings.TrimSpace(line), "generated.") {
			lines = append(lines, strings.TrimSpace(line))
		}
	}

	return len(lines), strings.Join(lines, "\n")
}

// PrintBuildInfo logs the compiler invocation at debug level
func (g *Glslc) PrintBuildInfo(req *Request, args []string) {
	g.logger.Debug("Invoking compiler",
		zap.String("compiler", g.Path),
		zap.String("source", req.Name),
		zap.Stringer("stage", req.Stage),
		zap.String("command", g.Path+" "+strings.Join(args, " ")),
	)
}
