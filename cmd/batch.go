package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Norgate-AV/spvgen/internal/manifest"
)

var batchCmd = &cobra.Command{
	Use:   "batch [manifest]",
	Short: "Compile every shader in a manifest",
	Long: `Compile every shader block of an HCL manifest (default: ` + manifest.DefaultFile + `) in parallel.
All failures are reported, not just the first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	m, err := loadManifest(e, args)
	if err != nil {
		return err
	}

	outcomes, err := e.runner.RunAll(cmd.Context(), m.Jobs)

	built, cached := 0, 0
	for _, o := range outcomes {
		if o == nil {
			continue
		}

		if o.Cached {
			cached++
		} else {
			built++
		}
	}

	logger.Debug("Batch finished",
		zap.String("manifest", m.Path),
		zap.Int("built", built),
		zap.Int("up_to_date", cached),
	)

	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d built, %d up to date\n", built, cached)

	return nil
}

// loadManifest loads the manifest named by args, or the default one
func loadManifest(e *env, args []string) (*manifest.Manifest, error) {
	path := manifest.DefaultFile
	if len(args) == 1 {
		path = args[0]
	}

	return manifest.Load(path, e.cfg.ProjectRoot)
}
