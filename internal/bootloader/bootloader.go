// Package bootloader validates custom bootloader packages before
// staging: every package must carry at least one recognized
// architecture's EFI/BOOT/BOOT*.EFI entry point.
package bootloader

import (
	"os"
	"path/filepath"

	"github.com/sigreer/phoenixforge/internal/cache"
	"github.com/sigreer/phoenixforge/internal/ferr"
)

// Arch identifies the CPU architecture a boot entry targets.
type Arch string

const (
	ArchX64   Arch = "x64"
	ArchARM64 Arch = "arm64"
	ArchIA32  Arch = "ia32"
)

var entryByArch = map[string]Arch{
	"BOOTX64.EFI":  ArchX64,
	"BOOTAA64.EFI": ArchARM64,
	"BOOTIA32.EFI": ArchIA32,
}

// Entry is one discovered EFI boot entry point.
type Entry struct {
	Arch Arch
	Path string
}

// Package describes a validated bootloader package root.
type Package struct {
	Root    string
	Entries []Entry
}

// Validate scans root/EFI/BOOT for recognized BOOT*.EFI entry points,
// failing if none are present. A package's validated entries rarely
// change between repeated steps of the same run, so a successful
// result is cached under a long TTL keyed by the package root.
func Validate(root string) (Package, error) {
	cacheKey := "bootloader:" + root
	if cached := cache.Global().Get(cacheKey); cached != nil {
		return cached.(Package), nil
	}

	pkg, err := validate(root)
	if err != nil {
		return Package{}, err
	}
	cache.Global().SetStatic(cacheKey, pkg)
	return pkg, nil
}

func validate(root string) (Package, error) {
	bootDir := filepath.Join(root, "EFI", "BOOT")
	info, err := os.Stat(bootDir)
	if err != nil || !info.IsDir() {
		return Package{}, ferr.Newf(ferr.Precondition, "bootloader package missing EFI/BOOT directory under %s", root)
	}

	pkg := Package{Root: root}
	for name, arch := range entryByArch {
		candidate := filepath.Join(bootDir, name)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			pkg.Entries = append(pkg.Entries, Entry{Arch: arch, Path: candidate})
		}
	}

	if len(pkg.Entries) == 0 {
		return Package{}, ferr.Newf(ferr.Precondition, "no EFI/BOOT/*.EFI entry point found under %s", root)
	}
	return pkg, nil
}
