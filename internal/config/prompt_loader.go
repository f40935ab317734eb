package config

import (
	"os"
	"path/filepath"
)

// defaultPromptDir is the subdirectory within the user's home directory that
// may hold <lang>.tmpl overrides.
const defaultPromptDir = ".config/vouchercat/prompts"

// PromptDir resolves the directory searched for prompt overrides.
// An absolute configuredPath is used directly; a relative one is taken from
// the working directory when it exists there and from ~/.config/vouchercat
// otherwise. An empty one means ~/.config/vouchercat/prompts.
func PromptDir(configuredPath string) string {
	if filepath.IsAbs(configuredPath) {
		return configuredPath
	}
	if configuredPath != "" {
		if info, err := os.Stat(configuredPath); err == nil && info.IsDir() {
			return configuredPath
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return configuredPath
	}
	if configuredPath == "" {
		return filepath.Join(homeDir, defaultPromptDir)
	}
	return filepath.Join(homeDir, ".config", "vouchercat", configuredPath)
}
