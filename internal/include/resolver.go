// Package include resolves #include targets to files and records every file
// it resolves, so callers know which sources a compiled shader depends on.
package include

import (
	"os"
	"path/filepath"
	"slices"
	"unicode/utf8"

	"github.com/Norgate-AV/spvgen/internal/codes"
)

// Type is the syntactic form of an #include directive
type Type int

const (
	// Relative is the quoted form, resolved against the including file
	Relative Type = iota

	// Standard is the angle-bracket form, resolved against the project root
	Standard
)

func (t Type) String() string {
	if t == Standard {
		return "standard"
	}

	return "relative"
}

// Resolved is an include target located on disk
type Resolved struct {
	// Name is the absolute path of the included file. Nested includes use it
	// as their includer.
	Name    string
	Content string
}

// Resolver locates include targets under a project root
type Resolver struct {
	Root string
}

// New creates a resolver for the given project root
func New(root string) *Resolver {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	return &Resolver{Root: root}
}

// Track starts the dependency list of one compile call. sourcePath is the
// top-level source file, or empty for a literal source.
func (r *Resolver) Track(sourcePath string) *Tracker {
	t := &Tracker{root: r.Root}
	if sourcePath != "" {
		t.deps = append(t.deps, sourcePath)
	}

	return t
}

// Tracker is the dependency accumulator of a single compile call. It is not
// safe for concurrent use; every call owns its own tracker.
type Tracker struct {
	root string
	deps []string
}

// Path computes where an include target lives without reading it
func (t *Tracker) Path(name string, typ Type, includer string) string {
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}

	if typ == Standard {
		return filepath.Join(t.root, name)
	}

	dir := filepath.Dir(includer)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(t.root, dir)
	}

	return filepath.Join(dir, name)
}

// Resolve locates name as included from includer, records the resolved path
// and reads the file. Paths are recorded in call order, repeats included.
func (t *Tracker) Resolve(name string, typ Type, includer string) (*Resolved, error) {
	path := t.Path(name, typ, includer)
	if !utf8.ValidString(path) {
		return nil, codes.New(codes.ResolutionError, codes.Location{}, "include %q resolves to non-unicode path %q", name, path)
	}

	t.deps = append(t.deps, path)

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, codes.Wrap(codes.ResolutionError, codes.Location{}, err, "cannot include %q from %s: %s", name, includer, path)
	}

	return &Resolved{Name: path, Content: string(content)}, nil
}

// Dependencies returns the paths recorded so far
func (t *Tracker) Dependencies() []string {
	return slices.Clone(t.deps)
}
