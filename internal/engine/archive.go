package engine

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// archiveWorkingDir moves the working directory to target and recreates
// an empty working directory in its place. Rename is preferred; when the
// target sits on another filesystem the contents are copied instead.
func archiveWorkingDir(working, target string) error {
	if _, err := os.Stat(target); err == nil {
		return fmt.Errorf("archive target %s already exists", target)
	}

	err := os.Rename(working, target)
	if err != nil {
		if copyErr := copyTree(working, target); copyErr != nil {
			return fmt.Errorf("archiving %s: %w", working, copyErr)
		}
		if rmErr := os.RemoveAll(working); rmErr != nil {
			return fmt.Errorf("archiving %s: %w", working, rmErr)
		}
	}

	if err := os.Mkdir(working, 0o755); err != nil {
		return fmt.Errorf("recreating working directory: %w", err)
	}
	return nil
}

// copyTree copies a directory recursively.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		out := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(out, 0o755)
		}
		return copyFile(path, out)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
