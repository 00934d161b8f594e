package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Norgate-AV/spvgen/internal/build"
	"github.com/Norgate-AV/spvgen/internal/cache"
	"github.com/Norgate-AV/spvgen/internal/codes"
	"github.com/Norgate-AV/spvgen/internal/compiler"
	"github.com/Norgate-AV/spvgen/internal/config"
	"github.com/Norgate-AV/spvgen/internal/job"
)

// newBackend creates the compiler backend; tests replace it
var newBackend = func(cfg *config.Config, logger *zap.Logger) compiler.Backend {
	return compiler.NewGlslc(cfg.CompilerPath, logger)
}

// env is everything a generating command needs
type env struct {
	cfg    *config.Config
	runner *job.Runner
	cache  *cache.Cache
}

// newEnv loads configuration for the working directory and wires the runner
func newEnv(cmd *cobra.Command) (*env, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	cfg, err := config.NewLoader().LoadForBuild(cmd, cwd)
	if err != nil {
		return nil, codes.Wrap(codes.ConfigError, callSite(), err, "invalid configuration")
	}

	logger.Debug("Loaded configuration",
		zap.String("compiler", cfg.CompilerPath),
		zap.String("root", cfg.ProjectRoot),
		zap.Bool("strip", cfg.Strip),
		zap.Bool("default_optimize_zero", cfg.DefaultOptimizeZero),
		zap.Int("jobs", cfg.Jobs),
	)

	e := &env{cfg: cfg}
	e.runner = &job.Runner{
		Builder:      build.New(newBackend(cfg, logger), cfg.ProjectRoot, logger),
		Defaults:     cfg.Defaults(),
		CompilerPath: cfg.CompilerPath,
		Jobs:         cfg.Jobs,
		Logger:       logger,
	}

	if !cfg.NoCache {
		c, err := cache.New(cfg.CacheDir)
		if err != nil {
			// Stamps only save work; generate without them
			logger.Warn("Rebuild stamps unavailable", zap.Error(err))
		} else {
			e.cache = c
			e.runner.Cache = c
		}
	}

	return e, nil
}

func (e *env) Close() {
	if e.cache != nil {
		_ = e.cache.Close()
	}
}

// callSite is the go:generate directive that invoked us, when there is one
func callSite() codes.Location {
	loc := codes.Location{File: os.Getenv("GOFILE")}
	if line, err := strconv.Atoi(os.Getenv("GOLINE")); err == nil {
		loc.Line = line
	}

	return loc
}
