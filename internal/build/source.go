package build

import (
	"os"
	"path/filepath"

	"github.com/Norgate-AV/spvgen/internal/codes"
)

// InlineName is the display name of sources given as literals
const InlineName = "inline"

// SourceUnit is a shader to compile
type SourceUnit struct {
	Text string

	// Name is shown in diagnostics: the absolute file path, or InlineName
	Name string

	// Path is the originating file, empty for literal sources
	Path string

	// Location is the call site that requested the compile
	Location codes.Location
}

// FromFile reads a source file given relative to the project root
func FromFile(root, rel string, loc codes.Location) (*SourceUnit, error) {
	path := rel
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, rel)
	}

	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	text, err := os.ReadFile(path)
	if err != nil {
		return nil, codes.Wrap(codes.SourceReadError, loc, err, "cannot read shader source %s", path)
	}

	return &SourceUnit{
		Text:     string(text),
		Name:     path,
		Path:     path,
		Location: loc,
	}, nil
}

// FromLiteral wraps source text given directly at the call site
func FromLiteral(text string, loc codes.Location) *SourceUnit {
	return &SourceUnit{
		Text:     text,
		Name:     InlineName,
		Location: loc,
	}
}
