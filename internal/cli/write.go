package cli

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeFileAtomic writes data to path via a temp file and rename so readers
// never observe a half-written file. Without force an existing regular file
// is an error.
func writeFileAtomic(path string, data []byte, force bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	if st, err := os.Stat(abs); err == nil && !force {
		if st.Mode().IsRegular() {
			return fmt.Errorf("%q already exists (use --force to overwrite)", abs)
		}
	}

	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure target directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-openapi2mcp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if tmp != nil {
			tmp.Close()
		}
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("set file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	tmp = nil

	if err := os.Rename(tmpPath, abs); err != nil {
		return fmt.Errorf("atomic rename %s to %s: %w", tmpPath, abs, err)
	}
	success = true
	return nil
}
