package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// EnsureUserConfig returns dataDir/config.yml, creating it first when
// missing. A readable defaultPath seeds it, loaded over Default so keys it
// omits are filled in; otherwise Default is written as is.
func EnsureUserConfig(dataDir string, defaultPath string) (string, error) {
	userPath := filepath.Join(dataDir, "config.yml")

	_, err := os.Stat(userPath)
	if err == nil {
		return userPath, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	seed := Default()
	if defaultPath != "" {
		cfg, err := Load(defaultPath)
		switch {
		case err == nil:
			seed = cfg
		case errors.Is(err, os.ErrNotExist):
		default:
			return "", fmt.Errorf("read default config %s: %w", defaultPath, err)
		}
	}
	return userPath, SaveAtomic(userPath, seed)
}
