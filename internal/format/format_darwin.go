//go:build darwin

package format

import (
	"os/exec"

	"github.com/sigreer/phoenixforge/internal/ferr"
)

func FormatVolume(devicePath string, fs Filesystem, label string) error {
	var diskutilFS string
	switch fs {
	case FAT32:
		diskutilFS = "MS-DOS FAT32"
	case NTFS:
		diskutilFS = "NTFS"
	case ExFAT:
		diskutilFS = "ExFAT"
	default:
		return ferr.Newf(ferr.Precondition, "unsupported filesystem %q", fs)
	}

	name := label
	if name == "" {
		name = "PHOENIX"
	}

	cmd := exec.Command("diskutil", "eraseVolume", diskutilFS, name, devicePath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return ferr.Wrap(ferr.IO, "diskutil eraseVolume: "+string(out), err)
	}
	return nil
}
