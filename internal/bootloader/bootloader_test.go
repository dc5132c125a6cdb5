package bootloader

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateFindsEntry(t *testing.T) {
	dir := t.TempDir()
	bootDir := filepath.Join(dir, "EFI", "BOOT")
	if err := os.MkdirAll(bootDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(bootDir, "BOOTX64.EFI"), []byte("stub"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	pkg, err := Validate(dir)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(pkg.Entries) != 1 || pkg.Entries[0].Arch != ArchX64 {
		t.Errorf("unexpected entries: %+v", pkg.Entries)
	}
}

func TestValidateFailsWithoutEntries(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "EFI", "BOOT"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if _, err := Validate(dir); err == nil {
		t.Error("expected error for package with no boot entries")
	}
}

func TestValidateFailsWithoutBootDir(t *testing.T) {
	dir := t.TempDir()
	if _, err := Validate(dir); err == nil {
		t.Error("expected error for missing EFI/BOOT directory")
	}
}
