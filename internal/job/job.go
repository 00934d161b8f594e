// Package job runs shader generation jobs: it checks rebuild stamps, parses
// options, compiles, encodes and writes the output with its depfile.
package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Norgate-AV/spvgen/internal/build"
	"github.com/Norgate-AV/spvgen/internal/cache"
	"github.com/Norgate-AV/spvgen/internal/codes"
	"github.com/Norgate-AV/spvgen/internal/embed"
	"github.com/Norgate-AV/spvgen/internal/options"
)

// stampVersion changes whenever generated output changes shape
const stampVersion = "1"

// Job is one shader to generate. Exactly one of Path, Source or Inline
// names the shader source.
type Job struct {
	// Name identifies the job in logs
	Name string

	// Path is the source file, relative to the project root
	Path string

	// Source is literal source text, compiled with Options
	Source string

	// Inline is option text followed by the source as a string literal
	Inline string

	// Options is the option list for Path and Source jobs
	Options string

	Output  string
	Format  embed.Format
	Package string
	Var     string

	// Depfile writes a Make rule next to Output
	Depfile bool

	// Location is where the job was requested, for diagnostics
	Location codes.Location
}

// DepfilePath returns where the job's depfile is written
func (j *Job) DepfilePath() string {
	return j.Output + ".d"
}

// Outcome is the result of a successful job
type Outcome struct {
	Job          Job
	Dependencies []string

	// Cached is set when the output was already up to date
	Cached bool
}

// Runner runs jobs against a builder. Cache is optional.
type Runner struct {
	Builder      *build.Builder
	Cache        *cache.Cache
	Defaults     options.Defaults
	CompilerPath string

	// Jobs bounds how many jobs RunAll compiles at once
	Jobs int

	Logger *zap.Logger
}

// Failure is a job that produced no output. Dependencies lists the files it
// read or tried to read, so a watcher knows when to retry it.
type Failure struct {
	Job          Job
	Dependencies []string
	Err          error
}

func (f *Failure) Error() string {
	return f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Failures returns every job failure found in err, including those joined by
// RunAll
func Failures(err error) []*Failure {
	switch e := err.(type) {
	case nil:
		return nil

	case *Failure:
		return []*Failure{e}

	case interface{ Unwrap() []error }:
		var out []*Failure
		for _, inner := range e.Unwrap() {
			out = append(out, Failures(inner)...)
		}

		return out
	}

	var f *Failure
	if errors.As(err, &f) {
		return []*Failure{f}
	}

	return nil
}

// Run generates a single job's output. Errors are *Failure values.
func (r *Runner) Run(ctx context.Context, j Job) (*Outcome, error) {
	outcome, err := r.run(ctx, j)
	if err != nil {
		deps := build.Attempted(err)
		if len(deps) == 0 && j.Path != "" {
			deps = []string{r.SourcePath(j)}
		}

		return nil, &Failure{Job: j, Dependencies: deps, Err: err}
	}

	return outcome, nil
}

// SourcePath returns the absolute path of a path job's source file
func (r *Runner) SourcePath(j Job) string {
	if filepath.IsAbs(j.Path) {
		return filepath.Clean(j.Path)
	}

	return filepath.Join(r.Builder.Resolver.Root, j.Path)
}

func (r *Runner) run(ctx context.Context, j Job) (*Outcome, error) {
	logger := r.logger().With(zap.String("job", j.Name))

	if err := validate(&j); err != nil {
		return nil, err
	}

	key := r.key(&j)
	if r.Cache != nil {
		fresh, err := r.Cache.Fresh(j.Output, key)
		if err != nil {
			logger.Warn("Failed to check rebuild stamp", zap.Error(err))
		}

		if fresh {
			entry, err := r.Cache.Get(j.Output)
			if err == nil && entry != nil {
				logger.Debug("Output is up to date", zap.String("output", j.Output))

				deps := make([]string, len(entry.Dependencies))
				for i, d := range entry.Dependencies {
					deps[i] = d.Path
				}

				return &Outcome{Job: j, Dependencies: deps, Cached: true}, nil
			}
		}
	}

	unit, opts, err := r.prepare(&j)
	if err != nil {
		return nil, err
	}

	res, err := r.Builder.Build(ctx, unit, opts)
	if err != nil {
		return nil, err
	}

	artifact := &embed.Artifact{Words: res.Words, Dependencies: res.Dependencies}
	data, err := embed.Encode(artifact, j.Format, embed.GoOptions{
		Package: j.Package,
		Var:     j.Var,
		Source:  unit.Name,
		Options: opts.String(),
		Root:    r.Builder.Resolver.Root,
	})
	if err != nil {
		return nil, codes.Wrap(codes.BackendError, j.Location, err, "failed to encode %s", j.Name)
	}

	if err := writeIfChanged(j.Output, data); err != nil {
		return nil, err
	}

	if j.Depfile {
		if err := writeIfChanged(j.DepfilePath(), embed.Depfile(j.Output, res.Dependencies)); err != nil {
			return nil, err
		}
	}

	if r.Cache != nil {
		if err := r.Cache.Store(j.Output, key, res.Dependencies); err != nil {
			logger.Warn("Failed to store rebuild stamp", zap.Error(err))
		}
	}

	logger.Info("Generated shader",
		zap.String("output", j.Output),
		zap.Int("words", len(res.Words)),
		zap.Int("dependencies", len(res.Dependencies)),
	)

	return &Outcome{Job: j, Dependencies: res.Dependencies}, nil
}

// RunAll runs jobs in parallel, at most Jobs at a time. Every job runs to
// completion; the returned error joins all failures in job order.
func (r *Runner) RunAll(ctx context.Context, jobs []Job) ([]*Outcome, error) {
	outcomes := make([]*Outcome, len(jobs))
	errs := make([]error, len(jobs))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(r.Jobs, 1))

	for i, j := range jobs {
		eg.Go(func() error {
			outcomes[i], errs[i] = r.Run(egCtx, j)
			return nil
		})
	}

	_ = eg.Wait()

	return outcomes, errors.Join(errs...)
}

// prepare parses the job's options and loads its source
func (r *Runner) prepare(j *Job) (*build.SourceUnit, *options.CompileOptions, error) {
	switch {
	case j.Inline != "":
		opts, src, err := options.ParseInline("options", j.Inline, r.Defaults)
		if err != nil {
			return nil, nil, anchorOptions(err, j.Location)
		}

		return build.FromLiteral(src, j.Location), opts, nil

	default:
		opts, err := options.ParseList("options", j.Options, r.Defaults)
		if err != nil {
			return nil, nil, anchorOptions(err, j.Location)
		}

		if j.Path == "" {
			return build.FromLiteral(j.Source, j.Location), opts, nil
		}

		unit, err := build.FromFile(r.Builder.Resolver.Root, j.Path, j.Location)
		if err != nil {
			return nil, nil, err
		}

		return unit, opts, nil
	}
}

// anchorOptions reports an option error at the job's location, keeping the
// position inside the option text in the message
func anchorOptions(err error, loc codes.Location) error {
	var e *codes.Error
	if !loc.IsValid() || !errors.As(err, &e) {
		return err
	}

	if e.Location.Line > 0 {
		e.Msg = fmt.Sprintf("options:%d:%d: %s", e.Location.Line, e.Location.Column, e.Msg)
	}

	e.Location = loc

	return err
}

func validate(j *Job) error {
	sources := 0
	for _, s := range []string{j.Path, j.Source, j.Inline} {
		if s != "" {
			sources++
		}
	}

	if sources != 1 {
		return codes.New(codes.ConfigError, j.Location, "job %s needs exactly one of a source path, source text or inline text", j.Name)
	}

	if j.Output == "" {
		return codes.New(codes.ConfigError, j.Location, "job %s has no output path", j.Name)
	}

	if j.Format == "" {
		j.Format = embed.FormatGo
	}

	return nil
}

// key identifies everything about a job that affects its output apart from
// dependency contents
func (r *Runner) key(j *Job) string {
	return cache.HashKey(
		stampVersion,
		r.Builder.Resolver.Root,
		r.CompilerPath,
		strconv.FormatBool(r.Defaults.Strip),
		strconv.FormatBool(r.Defaults.OptimizeZero),
		j.Path,
		j.Source,
		j.Inline,
		j.Options,
		string(j.Format),
		j.Package,
		j.Var,
		strconv.FormatBool(j.Depfile),
	)
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}

	return r.Logger
}

// writeIfChanged writes data to path unless it already holds exactly data,
// so unchanged outputs keep their modification time
func writeIfChanged(path string, data []byte) error {
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, data) {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}
