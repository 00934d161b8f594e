package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
)

// artifactPath returns where the cached copy of an output lives
func (c *Cache) artifactPath(output string) string {
	sum := sha256.Sum256([]byte(output))
	return filepath.Join(c.root, "artifacts", hex.EncodeToString(sum[:8]), filepath.Base(output))
}

// copyFile copies src to dst through a temporary file in dst's directory, so
// a reader never sees a partially written output
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".spvgen-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), dst)
}
