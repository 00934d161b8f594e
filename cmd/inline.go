package cmd

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/spvgen/internal/build"
	"github.com/Norgate-AV/spvgen/internal/codes"
)

var inlineCmd = &cobra.Command{
	Use:   "inline [file|-]",
	Short: "Compile GLSL given inline with its options",
	Long: `Compile shader source written inline, read from a file or stdin as an option
list, a comma and the source as a Go string literal:

  kind: frag, optimize: size,
  ` + "`" + `#version 450
  layout(location = 0) out vec4 color;
  void main() { color = vec4(1.0); }` + "`" + `

Relative includes resolve against the project root.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInline,
}

func init() {
	addOutputFlags(inlineCmd)
}

func runInline(cmd *cobra.Command, args []string) error {
	name := "-"
	if len(args) == 1 {
		name = args[0]
	}

	text, err := readInline(cmd, name)
	if err != nil {
		return err
	}

	derived := build.InlineName
	if name != "-" {
		derived = filepath.Base(name)
	}

	j, err := outputJob(cmd, derived)
	if err != nil {
		return err
	}

	j.Inline = text

	return runOne(cmd, j)
}

// readInline reads inline text from name, or stdin for "-"
func readInline(cmd *cobra.Command, name string) (string, error) {
	var data []byte
	var err error

	if name == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(name)
	}

	if err != nil {
		return "", codes.Wrap(codes.SourceReadError, callSite(), err, "cannot read inline shader %s", name)
	}

	return string(data), nil
}
