//go:build windows

package content

import (
	"encoding/json"
	"os/exec"
	"strings"

	"github.com/sigreer/phoenixforge/internal/ferr"
)

type psMountResult struct {
	DriveLetter string `json:"DriveLetter"`
}

func mountISO(path string) (*PreparedSource, error) {
	script := "$i = Mount-DiskImage -ImagePath '" + path + "' -PassThru; " +
		"$v = $i | Get-Volume; " +
		"[pscustomobject]@{DriveLetter=$v.DriveLetter} | ConvertTo-Json -Compress"

	cmd := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	out, err := cmd.Output()
	if err != nil {
		return nil, ferr.Wrap(ferr.IO, "mount-diskimage", err)
	}

	var result psMountResult
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, ferr.Wrap(ferr.IO, "parse mount-diskimage output", err)
	}
	letter := strings.TrimSpace(result.DriveLetter)
	if letter == "" {
		return nil, ferr.New(ferr.IO, "mount-diskimage produced no drive letter")
	}
	root := letter + ":\\"

	released := false
	release := func() error {
		if released {
			return nil
		}
		released = true
		dismount := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command",
			"Dismount-DiskImage -ImagePath '"+path+"'")
		if out, err := dismount.CombinedOutput(); err != nil {
			return ferr.Wrap(ferr.IO, "dismount-diskimage: "+string(out), err)
		}
		return nil
	}

	return &PreparedSource{Root: root, Kind: SourceISO, release: release}, nil
}
