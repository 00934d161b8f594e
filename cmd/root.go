package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Norgate-AV/spvgen/internal/codes"
	"github.com/Norgate-AV/spvgen/internal/version"
)

var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "spvgen",
	Short: "GLSL to SPIR-V generator for Go programs",
	Long: `spvgen compiles GLSL shaders to SPIR-V at build time and writes them as
Go source or raw .spv files. Run it from //go:generate directives:

  //go:generate spvgen build shaders/triangle.vert kind: vert, optimize: size -o triangle_spv.go

Any compiler warning fails the build.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")

		l, err := newLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		logger = l

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command and exits with the error's exit code
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(codes.GetExitCode(err))
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime)
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Ignore rebuild stamps and always compile")
	rootCmd.PersistentFlags().String("compiler", "", "Path to the glslc compiler")
	rootCmd.PersistentFlags().String("root", "", "Project root for standard includes and source paths (default: nearest go.mod)")
	rootCmd.PersistentFlags().Bool("strip", false, "Omit debug info unless a shader asks for it")
	rootCmd.PersistentFlags().IntP("jobs", "j", 0, "Maximum shaders compiled in parallel (default: number of CPUs)")

	rootCmd.AddCommand(buildCmd, inlineCmd, batchCmd, watchCmd, cacheCmd)
}

// newLogger builds a console logger on stderr, at debug level when verbose
func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true

	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	return config.Build()
}
