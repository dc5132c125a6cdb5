//go:build linux

package format

import (
	"os/exec"

	"github.com/sigreer/phoenixforge/internal/ferr"
)

// FormatVolume formats devicePath (a partition device node, e.g.
// /dev/sdb1) with fs, applying label if non-blank.
func FormatVolume(devicePath string, fs Filesystem, label string) error {
	var args []string
	switch fs {
	case FAT32:
		args = []string{"-F", "32"}
		if label != "" {
			args = append(args, "-n", label)
		}
		args = append(args, devicePath)
		return run("mkfs.vfat", args...)
	case NTFS:
		if label != "" {
			args = append(args, "-L", label)
		}
		args = append(args, "-f", devicePath)
		return run("mkfs.ntfs", args...)
	case ExFAT:
		if label != "" {
			args = append(args, "-n", label)
		}
		args = append(args, devicePath)
		return run("mkfs.exfat", args...)
	default:
		return ferr.Newf(ferr.Precondition, "unsupported filesystem %q", fs)
	}
}

func run(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return ferr.Wrap(ferr.IO, name+": "+string(out), err)
	}
	return nil
}
