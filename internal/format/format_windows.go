//go:build windows

package format

import (
	"os/exec"
	"strings"

	"github.com/sigreer/phoenixforge/internal/ferr"
)

func FormatVolume(driveLetter string, fs Filesystem, label string) error {
	fsType, err := windowsFsType(fs)
	if err != nil {
		return err
	}

	name := label
	if name == "" {
		name = "PHOENIX"
	}
	letter := strings.TrimSuffix(strings.TrimSuffix(driveLetter, "\\"), ":")

	script := "Format-Volume -DriveLetter '" + letter + "' -FileSystem '" + fsType +
		"' -NewFileSystemLabel '" + name + "' -Confirm:$false -Force"
	cmd := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	if out, err := cmd.CombinedOutput(); err != nil {
		return ferr.Wrap(ferr.IO, "format-volume: "+string(out), err)
	}
	return nil
}

func windowsFsType(fs Filesystem) (string, error) {
	switch fs {
	case FAT32:
		return "FAT32", nil
	case NTFS:
		return "NTFS", nil
	case ExFAT:
		return "exFAT", nil
	default:
		return "", ferr.Newf(ferr.Precondition, "unsupported filesystem %q", fs)
	}
}
