// Package setup scaffolds an ookd installation: the config file and the
// directories the daemon expects around it.
package setup

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/msageha/ookd/internal/config"
)

// Run writes a default config at configPath and creates the log directory
// beside it. An existing config is refused unless force is set; the log
// directory is always kept.
func Run(configPath string, force bool) (config.Config, error) {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	if _, err := os.Stat(abs); err == nil && !force {
		return config.Config{}, fmt.Errorf("%s already exists (use --force to overwrite)", abs)
	}

	base := filepath.Dir(abs)
	if err := os.MkdirAll(base, 0o755); err != nil {
		return config.Config{}, fmt.Errorf("create %s: %w", base, err)
	}

	cfg := config.Default()
	cfg.Logging.Dir = filepath.Join(base, "logs")

	if err := os.MkdirAll(cfg.Logging.Dir, 0o755); err != nil {
		return config.Config{}, fmt.Errorf("create log directory: %w", err)
	}

	if err := cfg.WriteFile(abs); err != nil {
		return config.Config{}, fmt.Errorf("write config: %w", err)
	}

	return cfg, nil
}
