// Package options implements the shader compile option model: the option
// structure and its defaults, the lookup tables for textual option values, and
// the parser for comma-separated `key: value` option lists.
package options

import (
	"fmt"
	"strconv"
	"strings"
)

// Defaults holds the build-wide modes that change option defaults
type Defaults struct {
	// Strip disables debug info unless an option list asks for `debug`
	Strip bool

	// OptimizeZero makes `zero` the default optimization level
	OptimizeZero bool
}

// Macro is a preprocessor definition forwarded to the compiler. A nil Value
// defines the macro without a value.
type Macro struct {
	Name  string
	Value *string
}

// CompileOptions is the configuration of a single compile call
type CompileOptions struct {
	// Stage is the shader stage; InferFromSource when not given explicitly
	Stage Stage

	// ForcedVersion is the GLSL version to force, nil when the source must
	// declare its own #version
	ForcedVersion *uint32

	GenerateDebugInfo bool

	// Macros are forwarded in order, duplicates included
	Macros []Macro

	Optimization OptimizationLevel

	// TargetVersion encodes the Vulkan version, see TargetVersion
	TargetVersion uint32
}

// NewCompileOptions returns the options used when an option list is empty
func NewCompileOptions(d Defaults) *CompileOptions {
	opt := Performance
	if d.OptimizeZero {
		opt = Zero
	}

	return &CompileOptions{
		Stage:             InferFromSource,
		GenerateDebugInfo: !d.Strip,
		Optimization:      opt,
		TargetVersion:     DefaultTargetVersion,
	}
}

// String renders the options in canonical option-list form
func (o *CompileOptions) String() string {
	var parts []string

	if o.Stage != InferFromSource {
		parts = append(parts, "kind: "+o.Stage.String())
	}

	if o.ForcedVersion != nil {
		parts = append(parts, "version: "+strconv.FormatUint(uint64(*o.ForcedVersion), 10))
	}

	if o.GenerateDebugInfo {
		parts = append(parts, "debug")
	} else {
		parts = append(parts, "strip")
	}

	for _, m := range o.Macros {
		if m.Value != nil {
			parts = append(parts, fmt.Sprintf("define: %s %q", m.Name, *m.Value))
		} else {
			parts = append(parts, "define: "+m.Name)
		}
	}

	parts = append(parts, "optimize: "+o.Optimization.String())
	parts = append(parts, "target: "+TargetName(o.TargetVersion))

	return strings.Join(parts, ", ")
}
