package workflow

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sigreer/phoenixforge/internal/ferr"
)

// copyEntry is one file copied during a tree copy, in traversal order.
type copyEntry struct {
	RelPath string
	Bytes   int64
}

// copyTree recursively copies every regular file under src into dst,
// creating directories as needed, and returns the copied files in
// source-traversal order.
func copyTree(src, dst string) ([]copyEntry, error) {
	var entries []copyEntry
	err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		n, err := copyFile(path, target)
		if err != nil {
			return err
		}
		entries = append(entries, copyEntry{RelPath: filepath.ToSlash(rel), Bytes: n})
		return nil
	})
	if err != nil {
		return entries, ferr.Wrap(ferr.IO, "copy tree", err)
	}
	return entries, nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer out.Close()
	return io.Copy(out, in)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
