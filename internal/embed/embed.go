// Package embed encodes compiled shaders into artifacts the host program can
// embed: generated Go source, raw SPIR-V files and Make-style depfiles.
package embed

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"go/format"
	"go/token"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Norgate-AV/spvgen/internal/compiler"
)

// Format selects the artifact written for a shader
type Format string

const (
	// FormatGo is a generated Go file holding a []uint32 variable
	FormatGo Format = "go"

	// FormatSPV is a raw little-endian SPIR-V module for //go:embed
	FormatSPV Format = "spv"
)

// ParseFormat validates a format name
func ParseFormat(name string) (Format, error) {
	switch f := Format(name); f {
	case FormatGo, FormatSPV:
		return f, nil
	case "":
		return FormatGo, nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected go or spv)", name)
	}
}

// Artifact is a compiled module plus the files it was built from
type Artifact struct {
	Words        []uint32
	Dependencies []string
}

// Validate checks that the artifact holds a SPIR-V module
func (a *Artifact) Validate() error {
	if len(a.Words) == 0 {
		return fmt.Errorf("empty SPIR-V module")
	}

	if a.Words[0] != compiler.MagicNumber {
		return fmt.Errorf("missing SPIR-V magic number, found %#08x", a.Words[0])
	}

	return nil
}

// GoOptions control the generated Go file
type GoOptions struct {
	Package string
	Var     string

	// Source is the shader's display name, recorded in the header
	Source string

	// Options is the canonical option list the shader was compiled with
	Options string

	// Root makes dependency paths in the doc comment project relative
	Root string
}

const wordsPerLine = 8

var goTemplate = template.Must(template.New("go").Parse(`// Code generated by spvgen. DO NOT EDIT.

package {{.Package}}

// {{.Var}} is the SPIR-V module compiled from {{.Source}}.
{{- if .Options}}
//
// Options: {{.Options}}
{{- end}}
{{- if .Dependencies}}
//
// Dependencies:
{{- range .Dependencies}}
//   - {{.}}
{{- end}}
{{- end}}
var {{.Var}} = []uint32{
{{- range .Lines}}
	{{.}}
{{- end}}
}
`))

// GoSource renders the artifact as a gofmt-ed Go file
func GoSource(a *Artifact, opts GoOptions) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	if !token.IsIdentifier(opts.Package) {
		return nil, fmt.Errorf("invalid package name %q", opts.Package)
	}

	if !token.IsIdentifier(opts.Var) {
		return nil, fmt.Errorf("invalid variable name %q", opts.Var)
	}

	deps := make([]string, len(a.Dependencies))
	for i, dep := range a.Dependencies {
		deps[i] = displayPath(opts.Root, dep)
	}

	source := opts.Source
	if filepath.IsAbs(source) {
		source = displayPath(opts.Root, source)
	}

	var buf bytes.Buffer
	err := goTemplate.Execute(&buf, struct {
		GoOptions
		Source       string
		Dependencies []string
		Lines        []string
	}{
		GoOptions:    opts,
		Source:       source,
		Dependencies: deps,
		Lines:        wordLines(a.Words),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render Go source: %w", err)
	}

	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to format Go source: %w", err)
	}

	return src, nil
}

func wordLines(words []uint32) []string {
	var lines []string

	for i := 0; i < len(words); i += wordsPerLine {
		end := min(i+wordsPerLine, len(words))

		var b strings.Builder
		for j, w := range words[i:end] {
			if j > 0 {
				b.WriteByte(' ')
			}

			fmt.Fprintf(&b, "0x%08x,", w)
		}

		lines = append(lines, b.String())
	}

	return lines
}

// displayPath shortens path to be relative to root when it lies below it
func displayPath(root, path string) string {
	if root == "" {
		return filepath.ToSlash(path)
	}

	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}

	return filepath.ToSlash(rel)
}

// Binary encodes the artifact as a little-endian SPIR-V module
func Binary(a *Artifact) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	out := make([]byte, 0, 4*len(a.Words))
	for _, w := range a.Words {
		out = binary.LittleEndian.AppendUint32(out, w)
	}

	return out, nil
}

// Encode renders the artifact in the given format
func Encode(a *Artifact, f Format, opts GoOptions) ([]byte, error) {
	switch f {
	case FormatSPV:
		return Binary(a)
	case FormatGo, "":
		return GoSource(a, opts)
	default:
		return nil, fmt.Errorf("unknown output format %q", f)
	}
}

// Depfile renders a Make rule stating that output depends on deps
func Depfile(output string, deps []string) []byte {
	var b strings.Builder

	b.WriteString(escapeMake(output))
	b.WriteByte(':')

	for _, dep := range deps {
		b.WriteString(" \\\n  ")
		b.WriteString(escapeMake(dep))
	}

	b.WriteByte('\n')

	return []byte(b.String())
}

func escapeMake(path string) string {
	r := strings.NewReplacer(
		` `, `\ `,
		`#`, `\#`,
		`$`, `$$`,
	)

	return r.Replace(filepath.ToSlash(path))
}
