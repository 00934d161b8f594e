// Package build turns a shader source and its compile options into SPIR-V
// words plus the list of files the result depends on.
package build

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Norgate-AV/spvgen/internal/codes"
	"github.com/Norgate-AV/spvgen/internal/compiler"
	"github.com/Norgate-AV/spvgen/internal/include"
	"github.com/Norgate-AV/spvgen/internal/options"
)

// Result is a successfully compiled shader
type Result struct {
	Words []uint32

	// Dependencies lists every file that contributed to Words in the order
	// it was encountered, starting with the source file itself
	Dependencies []string
}

// Error is a failed build. Dependencies lists the files the build read or
// tried to read before it failed, so a watcher can retry once they change.
type Error struct {
	Dependencies []string
	Err          error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Attempted returns the files a failed build read or tried to read
func Attempted(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Dependencies
	}

	return nil
}

// Builder compiles source units against a backend. A Builder holds no
// per-call state and may be shared by concurrent builds.
type Builder struct {
	Backend  compiler.Backend
	Resolver *include.Resolver
	Logger   *zap.Logger
}

// New creates a builder resolving standard includes under root
func New(backend compiler.Backend, root string, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Builder{
		Backend:  backend,
		Resolver: include.New(root),
		Logger:   logger,
	}
}

// Build compiles unit with opts in a single backend call. Any warning fails
// the build. Every error is reported at the unit's location and is an
// *Error carrying the files read so far.
func (b *Builder) Build(ctx context.Context, unit *SourceUnit, opts *options.CompileOptions) (*Result, error) {
	if opts == nil {
		opts = options.NewCompileOptions(options.Defaults{})
	}

	tracker := b.Resolver.Track(unit.Path)
	stage := SelectStage(opts.Stage, unit.Path)

	b.Logger.Debug("Building shader",
		zap.String("source", unit.Name),
		zap.Stringer("stage", stage),
		zap.Stringer("options", opts),
	)

	out, err := b.Backend.Compile(ctx, &compiler.Request{
		Source:     unit.Text,
		Stage:      stage,
		Name:       unit.Name,
		EntryPoint: compiler.DefaultEntryPoint,
		Options:    opts,
		Include: func(name string, typ include.Type, includer string, _ int) (*include.Resolved, error) {
			return tracker.Resolve(name, typ, includer)
		},
	})
	deps := tracker.Dependencies()

	if err != nil {
		if _, ok := codes.KindOf(err); !ok {
			err = codes.Wrap(codes.BackendError, unit.Location, err, "failed to compile %s", unit.Name)
		}

		return nil, &Error{Dependencies: deps, Err: codes.At(err, unit.Location)}
	}

	if out.Warnings > 0 {
		err := codes.New(codes.BackendError, unit.Location, "%s produced %d warning(s):\n%s", unit.Name, out.Warnings, out.WarningText)
		return nil, &Error{Dependencies: deps, Err: err}
	}

	b.Logger.Debug("Built shader",
		zap.String("source", unit.Name),
		zap.Int("words", len(out.Words)),
		zap.Strings("dependencies", deps),
	)

	return &Result{Words: out.Words, Dependencies: deps}, nil
}

// SelectStage picks the stage passed to the backend: an explicit stage wins,
// then the source file's extension, then inference from the source itself
func SelectStage(explicit options.Stage, path string) options.Stage {
	if explicit != options.InferFromSource {
		return explicit
	}

	if path == "" {
		return options.InferFromSource
	}

	if stage, ok := options.StageFromExtension(strings.TrimPrefix(filepath.Ext(path), ".")); ok {
		return stage
	}

	return options.InferFromSource
}
