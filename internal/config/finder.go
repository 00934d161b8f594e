package config

import (
	"path/filepath"

	"github.com/Norgate-AV/spvgen/internal/utils"
)

var configExtensions = []string{"yml", "yaml", "json", "toml"}

// FindLocalConfig finds local config file by walking up directories
func FindLocalConfig(dir string) string {
	names := make([]string, len(configExtensions))
	for i, ext := range configExtensions {
		names[i] = ".spvgen." + ext
	}

	return utils.FindUp(dir, names...)
}

// FindProjectRoot returns the nearest directory at or above dir holding a
// go.mod, or dir itself when there is none
func FindProjectRoot(dir string) string {
	if goMod := utils.FindUp(dir, "go.mod"); goMod != "" {
		return filepath.Dir(goMod)
	}

	return dir
}
