package yaml

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Quarantine moves an unparseable file into a quarantine directory beside
// it, timestamped, and returns the new path. Pi SD cards losing power
// mid-write are the usual source of these files.
func Quarantine(path string) (string, error) {
	quarantineDir := filepath.Join(filepath.Dir(path), "quarantine")
	if err := os.MkdirAll(quarantineDir, 0o755); err != nil {
		return "", fmt.Errorf("create quarantine dir: %w", err)
	}

	name := fmt.Sprintf("%s.%s.corrupt", filepath.Base(path), time.Now().Format("20060102T150405"))
	quarantinePath := filepath.Join(quarantineDir, name)

	if err := os.Rename(path, quarantinePath); err != nil {
		return "", fmt.Errorf("move to quarantine: %w", err)
	}
	return quarantinePath, nil
}

// RestoreFromBackup copies the .bak written by AtomicWriteRaw back over
// path, refusing if the backup itself does not parse.
func RestoreFromBackup(path string) error {
	bakPath := path + ".bak"
	if _, err := os.Stat(bakPath); os.IsNotExist(err) {
		return fmt.Errorf("no backup file: %s", bakPath)
	}

	content, err := os.ReadFile(bakPath)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	if err := validateYAML(content); err != nil {
		return fmt.Errorf("backup YAML is also corrupted: %w", err)
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("restore from backup: %w", err)
	}
	return nil
}
