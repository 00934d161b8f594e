// Package manifest loads spvgen.hcl files, which declare many shaders to
// generate in one run.
//
//	package = "shaders"
//
//	shader "TriangleVert" {
//	  path    = "shaders/triangle.vert"
//	  options = "optimize: size"
//	  output  = "triangle_vert_spv.go"
//	}
//
//	shader "Blit" {
//	  source  = file("blit.frag")
//	  options = "kind: frag, strip"
//	  output  = "${root}/assets/blit.spv"
//	  format  = "spv"
//	}
//
// Source paths are relative to the project root, output paths to the
// manifest's directory. Expressions can use the variables root, dir and env
// and a small set of string functions.
package manifest

import (
	"fmt"
	"go/token"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/Norgate-AV/spvgen/internal/codes"
	"github.com/Norgate-AV/spvgen/internal/embed"
	"github.com/Norgate-AV/spvgen/internal/job"
)

// DefaultFile is the manifest name looked up when none is given
const DefaultFile = "spvgen.hcl"

var fileSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "package"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "shader", LabelNames: []string{"name"}},
	},
}

// hclShader is the body of a shader block
type hclShader struct {
	Path    *string `hcl:"path,optional"`
	Source  *string `hcl:"source,optional"`
	Options string  `hcl:"options,optional"`
	Output  string  `hcl:"output"`
	Format  string  `hcl:"format,optional"`
	Package string  `hcl:"package,optional"`
	Depfile bool    `hcl:"depfile,optional"`
}

// Manifest is a loaded manifest file
type Manifest struct {
	// Path is the manifest file
	Path    string
	Package string
	Jobs    []job.Job
}

// Load reads and decodes a manifest file
func Load(path, root string) (*Manifest, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, codes.Wrap(codes.SourceReadError, codes.Location{File: path}, err, "cannot read manifest")
	}

	return Parse(src, path, root)
}

// Parse decodes manifest source. filename locates diagnostics and anchors
// relative output paths.
func Parse(src []byte, filename, root string) (*Manifest, error) {
	if abs, err := filepath.Abs(filename); err == nil {
		filename = abs
	}

	parser := hclparse.NewParser()

	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, manifestError(filename, diags)
	}

	dir := filepath.Dir(filename)
	evalCtx := newEvalContext(root, dir)

	content, diags := file.Body.Content(fileSchema)
	if diags.HasErrors() {
		return nil, manifestError(filename, diags)
	}

	m := &Manifest{Path: filename}

	if attr, ok := content.Attributes["package"]; ok {
		diags = append(diags, gohcl.DecodeExpression(attr.Expr, evalCtx, &m.Package)...)
		if !diags.HasErrors() && !token.IsIdentifier(m.Package) {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid package name",
				Detail:   fmt.Sprintf("%q is not a valid Go package name.", m.Package),
				Subject:  attr.Expr.Range().Ptr(),
			})
		}
	}

	names := map[string]hcl.Range{}
	outputs := map[string]hcl.Range{}

	for _, block := range content.Blocks {
		j, blockDiags := decodeShader(block, evalCtx, m.Package, dir)
		diags = append(diags, blockDiags...)
		if blockDiags.HasErrors() {
			continue
		}

		if prev, ok := names[j.Var]; ok {
			diags = append(diags, duplicate("shader", j.Var, block.LabelRanges[0], prev))
			continue
		}

		if prev, ok := outputs[j.Output]; ok {
			diags = append(diags, duplicate("output", j.Output, block.DefRange, prev))
			continue
		}

		names[j.Var] = block.LabelRanges[0]
		outputs[j.Output] = block.DefRange
		m.Jobs = append(m.Jobs, *j)
	}

	if diags.HasErrors() {
		return nil, manifestError(filename, diags)
	}

	return m, nil
}

func decodeShader(block *hcl.Block, evalCtx *hcl.EvalContext, pkg, dir string) (*job.Job, hcl.Diagnostics) {
	var s hclShader

	diags := gohcl.DecodeBody(block.Body, evalCtx, &s)
	if diags.HasErrors() {
		return nil, diags
	}

	name := block.Labels[0]
	if !token.IsIdentifier(name) {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid shader name",
			Detail:   fmt.Sprintf("Shader names become Go variable names; %q is not a valid identifier.", name),
			Subject:  block.LabelRanges[0].Ptr(),
		})
	}

	if (s.Path == nil) == (s.Source == nil) {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid shader source",
			Detail:   "Exactly one of \"path\" or \"source\" must be set.",
			Subject:  block.DefRange.Ptr(),
		})
	}

	format, err := embed.ParseFormat(s.Format)
	if err != nil {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid output format",
			Detail:   err.Error() + ".",
			Subject:  block.DefRange.Ptr(),
		})
	}

	if s.Package != "" {
		pkg = s.Package
	}

	output := s.Output
	if !filepath.IsAbs(output) {
		output = filepath.Join(dir, output)
	}

	if pkg == "" {
		pkg = filepath.Base(filepath.Dir(output))
	}

	if format == embed.FormatGo && !token.IsIdentifier(pkg) {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Missing package name",
			Detail:   fmt.Sprintf("Go output needs a package name; %q is not valid. Set \"package\".", pkg),
			Subject:  block.DefRange.Ptr(),
		})
	}

	if diags.HasErrors() {
		return nil, diags
	}

	j := &job.Job{
		Name:    name,
		Options: s.Options,
		Output:  output,
		Format:  format,
		Package: pkg,
		Var:     name,
		Depfile: s.Depfile,
		Location: codes.Location{
			File:   block.DefRange.Filename,
			Line:   block.DefRange.Start.Line,
			Column: block.DefRange.Start.Column,
		},
	}

	if s.Path != nil {
		j.Path = *s.Path
	} else {
		j.Source = *s.Source
	}

	return j, diags
}

func duplicate(what, name string, subject, prev hcl.Range) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  fmt.Sprintf("Duplicate %s", what),
		Detail:   fmt.Sprintf("%s %q was already declared at %s.", what, name, prev),
		Subject:  subject.Ptr(),
	}
}

// manifestError turns HCL diagnostics into a config error anchored at the
// first error's position
func manifestError(filename string, diags hcl.Diagnostics) error {
	loc := codes.Location{File: filename}

	for _, d := range diags {
		if d.Severity == hcl.DiagError && d.Subject != nil {
			loc.Line = d.Subject.Start.Line
			loc.Column = d.Subject.Start.Column
			break
		}
	}

	return codes.Wrap(codes.ConfigError, loc, diags, "invalid manifest")
}
