//go:build darwin

package content

import (
	"os/exec"
	"strings"

	"howett.net/plist"

	"github.com/sigreer/phoenixforge/internal/ferr"
)

type hdiutilAttachResult struct {
	SystemEntities []hdiutilEntity `plist:"system-entities"`
}

type hdiutilEntity struct {
	MountPoint string `plist:"mount-point"`
}

func mountISO(path string) (*PreparedSource, error) {
	cmd := exec.Command("hdiutil", "attach", "-nobrowse", "-readonly", "-plist", path)
	out, err := cmd.Output()
	if err != nil {
		return nil, ferr.Wrap(ferr.IO, "hdiutil attach", err)
	}

	var result hdiutilAttachResult
	if _, err := plist.Unmarshal(out, &result); err != nil {
		return nil, ferr.Wrap(ferr.IO, "parse hdiutil attach plist", err)
	}

	var mountPoint string
	for _, ent := range result.SystemEntities {
		if strings.TrimSpace(ent.MountPoint) != "" {
			mountPoint = ent.MountPoint
			break
		}
	}
	if mountPoint == "" {
		return nil, ferr.New(ferr.IO, "hdiutil attach produced no mount point")
	}

	released := false
	release := func() error {
		if released {
			return nil
		}
		released = true
		detach := exec.Command("hdiutil", "detach", mountPoint)
		if out, err := detach.CombinedOutput(); err != nil {
			return ferr.Wrap(ferr.IO, "hdiutil detach: "+string(out), err)
		}
		return nil
	}

	return &PreparedSource{Root: mountPoint, Kind: SourceISO, release: release}, nil
}
