package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Norgate-AV/spvgen/internal/job"
	"github.com/Norgate-AV/spvgen/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [manifest]",
	Short: "Rebuild manifest shaders when their sources change",
	Long: `Build every shader in the manifest, then rebuild a shader whenever its source
or one of the files it includes changes. Failures are logged and watching
continues. Stop with Ctrl-C.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	m, err := loadManifest(e, args)
	if err != nil {
		return err
	}

	w, err := watch.New(e.runner, m.Jobs, logger)
	if err != nil {
		return err
	}

	w.OnBuild = func(outcomes []*job.Outcome, err error) {
		if err != nil {
			logger.Error("Build failed", zap.Error(err))
			return
		}

		logger.Info("Build succeeded", zap.Int("shaders", len(outcomes)))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Watching shaders", zap.String("manifest", m.Path), zap.Int("shaders", len(m.Jobs)))

	return w.Run(ctx)
}
