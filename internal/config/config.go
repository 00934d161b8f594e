package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/Norgate-AV/spvgen/internal/cache"
	"github.com/Norgate-AV/spvgen/internal/options"
)

// Default configuration values
const (
	DefaultCompilerPath = "glslc"
	DefaultStrip        = false
	DefaultOptimizeZero = false
	DefaultVerbose      = false
	DefaultNoCache      = false
)

// Holds the configuration options for spvgen
type Config struct {
	// Path to the glslc compiler, or a command name looked up on PATH
	CompilerPath string

	// Directory that standard includes and source paths are resolved
	// against. Defaults to the nearest directory holding a go.mod.
	ProjectRoot string

	// Build without debug info unless a shader asks for `debug`
	Strip bool

	// Make `zero` the default optimization level
	DefaultOptimizeZero bool

	// Enable verbose output
	Verbose bool

	// Always rebuild, ignoring rebuild stamps
	NoCache bool

	// Directory holding rebuild stamps
	CacheDir string

	// Maximum number of shaders compiled in parallel
	Jobs int
}

func Load() (*Config, error) {
	cfg := &Config{
		CompilerPath:        viper.GetString("compiler_path"),
		ProjectRoot:         viper.GetString("project_root"),
		Strip:               viper.GetBool("strip"),
		DefaultOptimizeZero: viper.GetBool("default_optimize_zero"),
		Verbose:             viper.GetBool("verbose"),
		NoCache:             viper.GetBool("no_cache"),
		CacheDir:            viper.GetString("cache_dir"),
		Jobs:                viper.GetInt("jobs"),
	}

	// Apply defaults if not set
	if cfg.CompilerPath == "" {
		cfg.CompilerPath = DefaultCompilerPath
	}

	if !viper.IsSet("jobs") {
		cfg.Jobs = runtime.GOMAXPROCS(0)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	// Bare command names are looked up on PATH at run time
	if strings.ContainsAny(c.CompilerPath, `/\`) {
		if abs, err := filepath.Abs(c.CompilerPath); err == nil {
			c.CompilerPath = abs
		}
	}

	if c.ProjectRoot == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}

		c.ProjectRoot = FindProjectRoot(cwd)
	}

	root, err := filepath.Abs(c.ProjectRoot)
	if err != nil {
		return fmt.Errorf("invalid project root: %v", err)
	}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("project root %s is not a directory", root)
	}

	c.ProjectRoot = root

	// Resolve cache directory
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(c.ProjectRoot, cache.DefaultCacheDir)
	} else if !filepath.IsAbs(c.CacheDir) {
		c.CacheDir = filepath.Join(c.ProjectRoot, c.CacheDir)
	}

	if c.Jobs < 1 {
		return fmt.Errorf("invalid jobs: %d (must be at least 1)", c.Jobs)
	}

	return nil
}

// Defaults returns the build-wide option defaults selected by the config
func (c *Config) Defaults() options.Defaults {
	return options.Defaults{
		Strip:        c.Strip,
		OptimizeZero: c.DefaultOptimizeZero,
	}
}
