//go:build linux

package content

import (
	"os"
	"os/exec"

	"github.com/sigreer/phoenixforge/internal/ferr"
)

func mountISO(path string) (*PreparedSource, error) {
	dir, err := os.MkdirTemp("", "phoenixforge-iso-")
	if err != nil {
		return nil, ferr.Wrap(ferr.IO, "create iso mount point", err)
	}

	cmd := exec.Command("mount", "-o", "loop,ro", path, dir)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.RemoveAll(dir)
		return nil, ferr.Wrap(ferr.IO, "mount iso: "+string(out), err)
	}

	released := false
	release := func() error {
		if released {
			return nil
		}
		released = true
		umount := exec.Command("umount", dir)
		out, err := umount.CombinedOutput()
		os.RemoveAll(dir)
		if err != nil {
			return ferr.Wrap(ferr.IO, "unmount iso: "+string(out), err)
		}
		return nil
	}

	return &PreparedSource{Root: dir, Kind: SourceISO, release: release}, nil
}
