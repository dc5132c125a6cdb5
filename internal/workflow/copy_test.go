package workflow

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyTreePreservesRelativeStructure(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	writeFile(t, filepath.Join(src, "a.txt"), []byte("hello"))
	writeFile(t, filepath.Join(src, "nested", "b.txt"), []byte("world!!"))

	entries, err := copyTree(src, dst)
	if err != nil {
		t.Fatalf("copyTree failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 copied files, got %d", len(entries))
	}

	data, err := os.ReadFile(filepath.Join(dst, "nested", "b.txt"))
	if err != nil {
		t.Fatalf("expected nested file to be copied: %v", err)
	}
	if string(data) != "world!!" {
		t.Fatalf("copied content mismatch: %q", data)
	}
}

func TestDirExistsAndFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "present.txt")
	writeFile(t, file, []byte("x"))

	if !dirExists(dir) {
		t.Fatal("expected directory to exist")
	}
	if dirExists(file) {
		t.Fatal("a regular file should not report as a directory")
	}
	if !fileExists(file) {
		t.Fatal("expected file to exist")
	}
	if fileExists(filepath.Join(dir, "missing.txt")) {
		t.Fatal("missing file should not report as existing")
	}
}
