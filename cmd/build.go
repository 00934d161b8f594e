package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/spvgen/internal/codes"
	"github.com/Norgate-AV/spvgen/internal/embed"
	"github.com/Norgate-AV/spvgen/internal/job"
	"github.com/Norgate-AV/spvgen/internal/utils"
)

var buildCmd = &cobra.Command{
	Use:   "build <path> [options...]",
	Short: "Compile a GLSL file",
	Long: `Compile a GLSL source file, given relative to the project root, and write it
as Go source or a raw .spv file. Options follow the path:

  spvgen build shaders/blur.frag optimize: size, define: RADIUS "4"

Quoting is lost when go:generate splits arguments, so a define value is
re-quoted when it follows the macro name. Use --opts for anything else.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

func init() {
	addOutputFlags(buildCmd)
	buildCmd.Flags().String("opts", "", "Option list, instead of trailing arguments")
}

// addOutputFlags registers the flags shared by single-shader commands
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "", "Output file (default: derived from the shader name)")
	cmd.Flags().String("var", "", "Name of the generated variable (default: derived from the shader name)")
	cmd.Flags().String("package", "", "Package of the generated file (default: $GOPACKAGE)")
	cmd.Flags().String("format", string(embed.FormatGo), "Output format: go or spv")
	cmd.Flags().Bool("depfile", false, "Also write a Make depfile next to the output")
}

func runBuild(cmd *cobra.Command, args []string) error {
	path := args[0]

	opts, _ := cmd.Flags().GetString("opts")
	if len(args) > 1 {
		if opts != "" {
			return codes.New(codes.ConfigError, callSite(), "options given both as arguments and with --opts")
		}

		opts = joinOptions(args[1:])
	}

	j, err := outputJob(cmd, path)
	if err != nil {
		return err
	}

	j.Path = path
	j.Options = opts

	return runOne(cmd, j)
}

// outputJob fills in the output side of a job from flags, deriving whatever
// was left unset from name
func outputJob(cmd *cobra.Command, name string) (job.Job, error) {
	output, _ := cmd.Flags().GetString("output")
	varName, _ := cmd.Flags().GetString("var")
	pkg, _ := cmd.Flags().GetString("package")
	formatName, _ := cmd.Flags().GetString("format")
	depfile, _ := cmd.Flags().GetBool("depfile")

	loc := callSite()

	format, err := embed.ParseFormat(formatName)
	if err != nil {
		return job.Job{}, codes.Wrap(codes.ConfigError, loc, err, "invalid --format")
	}

	if output == "" {
		output = defaultOutput(name, format)
	}

	if varName == "" {
		varName = utils.ExportedName(name)
	}

	if pkg == "" {
		pkg = os.Getenv("GOPACKAGE")
	}

	if pkg == "" && format == embed.FormatGo {
		return job.Job{}, codes.New(codes.ConfigError, loc, "--package is required outside go:generate")
	}

	return job.Job{
		Name:     name,
		Output:   output,
		Format:   format,
		Package:  pkg,
		Var:      varName,
		Depfile:  depfile,
		Location: loc,
	}, nil
}

// runOne runs a single job and reports what happened
func runOne(cmd *cobra.Command, j job.Job) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	outcome, err := e.runner.Run(cmd.Context(), j)
	if err != nil {
		return err
	}

	if outcome.Cached {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is up to date\n", j.Output)
	}

	return nil
}

// defaultOutput names the output after the shader file, in the working
// directory: triangle.vert becomes triangle_vert_spv.go or triangle.vert.spv
func defaultOutput(name string, format embed.Format) string {
	base := filepath.Base(name)
	if format == embed.FormatSPV {
		return base + ".spv"
	}

	return strings.ReplaceAll(base, ".", "_") + "_spv.go"
}

// joinOptions rebuilds option text from arguments go:generate has already
// split and unquoted
func joinOptions(args []string) string {
	parts := make([]string, len(args))

	for i, arg := range args {
		if isDefineValue(args, i) || needsQuote(arg) {
			arg = quoteArg(arg)
		}

		parts[i] = arg
	}

	return strings.Join(parts, " ")
}

// isDefineValue reports whether args[i] follows a macro name, written either
// as `define: NAME` or `define:NAME`
func isDefineValue(args []string, i int) bool {
	if i < 1 || strings.HasSuffix(args[i-1], ",") {
		return false
	}

	if name, ok := strings.CutPrefix(args[i-1], "define:"); ok && name != "" {
		return true
	}

	return i >= 2 && args[i-2] == "define:"
}

// needsQuote reports whether arg cannot be a run of option tokens
func needsQuote(arg string) bool {
	if arg == "" {
		return true
	}

	for _, r := range arg {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == ':', r == ',':
		default:
			return true
		}
	}

	return false
}

// quoteArg quotes arg, keeping a trailing separator outside the literal
func quoteArg(arg string) string {
	if trimmed, ok := strings.CutSuffix(arg, ","); ok && trimmed != "" {
		return strconv.Quote(trimmed) + ","
	}

	return strconv.Quote(arg)
}
