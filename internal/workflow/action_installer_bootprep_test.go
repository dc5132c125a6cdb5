package workflow

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestPreflightInstallerUSBRejectsMissingBootMarkers(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("installer-usb preflight only runs on linux/darwin hosts")
	}
	source := t.TempDir()
	sc := &stepContext{
		graph: sampleGraph(),
		step: stepFor(actionInstallerUSBForHost(), map[string]interface{}{
			"source_path":  source,
			"target_mount": "/media/usb",
		}),
	}
	if err := preflightInstallerUSB(runtime.GOOS)(sc); err == nil {
		t.Fatal("expected missing boot markers to fail preflight")
	}
}

func TestPreflightInstallerUSBAcceptsWithBootMarker(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("installer-usb preflight only runs on linux/darwin hosts")
	}
	source := t.TempDir()
	if err := os.MkdirAll(filepath.Join(source, "EFI", "BOOT"), 0o755); err != nil {
		t.Fatal(err)
	}
	sc := &stepContext{
		graph: sampleGraph(),
		step: stepFor(actionInstallerUSBForHost(), map[string]interface{}{
			"source_path":  source,
			"target_mount": "/media/usb",
		}),
	}
	if err := preflightInstallerUSB(runtime.GOOS)(sc); err != nil {
		t.Fatalf("expected preflight to pass with EFI/BOOT present, got %v", err)
	}
}

func TestEffectInstallerUSBDryRunDoesNotMutate(t *testing.T) {
	source := t.TempDir()
	target := t.TempDir()
	writeFile(t, filepath.Join(source, "EFI", "BOOT", "BOOTX64.EFI"), []byte("stub"))

	sc := &stepContext{
		engine: &Engine{},
		graph:  sampleGraph(),
		opts:   RunOptions{DryRun: true},
		step: stepFor(actionInstallerUSBForHost(), map[string]interface{}{
			"source_path":  source,
			"target_mount": target,
		}),
	}

	meta, _, err := effectInstallerUSB(sc)
	if err != nil {
		t.Fatalf("dry-run effect should not fail, got %v", err)
	}
	if meta["bytes_copied"] != 0 || meta["files_copied"] != 0 {
		t.Fatalf("expected zero-mutation meta in dry run, got %+v", meta)
	}
	entries, err := os.ReadDir(target)
	if err != nil {
		t.Fatalf("target dir should still exist: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("dry run must not write into target, found %d entries", len(entries))
	}
}

func TestPreflightBootPrepRejectsSourceWithNoCandidates(t *testing.T) {
	source := t.TempDir()
	sc := &stepContext{
		graph: sampleGraph(),
		step: stepFor("linux_boot_prep", map[string]interface{}{
			"source_path":  source,
			"target_mount": "/media/usb",
		}),
	}
	if err := preflightBootPrep(sc); err == nil {
		t.Fatal("expected source with no candidate boot directories to fail preflight")
	}
}

func TestEffectBootPrepCopiesOnlyCandidatesAndSkipsExisting(t *testing.T) {
	source := t.TempDir()
	target := t.TempDir()

	writeFile(t, filepath.Join(source, "EFI", "BOOT", "BOOTX64.EFI"), []byte("stub"))
	writeFile(t, filepath.Join(source, "boot", "grub", "grub.cfg"), []byte("cfg"))
	writeFile(t, filepath.Join(source, "unrelated.txt"), []byte("ignored"))

	// Pre-seed the target's boot/grub so it is skipped rather than overwritten.
	if err := os.MkdirAll(filepath.Join(target, "boot", "grub"), 0o755); err != nil {
		t.Fatal(err)
	}

	sc := &stepContext{
		engine: &Engine{},
		graph:  sampleGraph(),
		step: stepFor("linux_boot_prep", map[string]interface{}{
			"source_path":  source,
			"target_mount": target,
		}),
	}

	meta, _, err := effectBootPrep(sc)
	if err != nil {
		t.Fatalf("effect should succeed, got %v", err)
	}

	if _, err := os.Stat(filepath.Join(target, "EFI", "BOOT", "BOOTX64.EFI")); err != nil {
		t.Fatalf("expected EFI/BOOT candidate to be copied: %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, "boot", "grub", "grub.cfg")); err == nil {
		t.Fatal("expected pre-existing boot/grub target to be skipped, not overwritten")
	}
	if _, err := os.Stat(filepath.Join(target, "unrelated.txt")); err == nil {
		t.Fatal("boot_prep must not copy files outside the candidate subtrees")
	}

	skipped, _ := meta["candidates_skipped"].([]string)
	found := false
	for _, c := range skipped {
		if c == "boot/grub" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected boot/grub to be reported skipped, got %+v", meta)
	}
}

func actionInstallerUSBForHost() string {
	if runtime.GOOS == "darwin" {
		return "macos_installer_usb"
	}
	return "linux_installer_usb"
}
