package workflow

import (
	"path/filepath"
	"strings"

	"github.com/sigreer/phoenixforge/internal/ferr"
	"github.com/sigreer/phoenixforge/internal/report"
)

func bootPrepOSName(action string) string {
	if strings.HasPrefix(action, "linux_") {
		return "linux"
	}
	return "darwin"
}

// candidateBootDirs returns the boot markers (from bootMarkers,
// shared with the installer-usb actions) that are actually present
// under sourcePath.
func candidateBootDirs(osName, sourcePath string) []string {
	var found []string
	for _, marker := range bootMarkers[osName] {
		candidate := filepath.Join(sourcePath, filepath.FromSlash(marker))
		if dirExists(candidate) || fileExists(candidate) {
			found = append(found, marker)
		}
	}
	return found
}

func preflightBootPrep(sc *stepContext) error {
	sourcePath, err := requireString(sc.step.Params, sc.step.Action, "source_path")
	if err != nil {
		return err
	}
	targetMount, err := requireString(sc.step.Params, sc.step.Action, "target_mount")
	if err != nil {
		return err
	}

	if len(candidateBootDirs(bootPrepOSName(sc.step.Action), sourcePath)) == 0 {
		return ferr.Newf(ferr.Precondition, "no candidate boot directories found under %s", sourcePath)
	}

	disk, err := resolveWritableDiskByMount(sc.graph, targetMount)
	if err != nil {
		return err
	}
	sc.isSystemTarget = disk.IsSystemDisk
	return nil
}

func effectBootPrep(sc *stepContext) (map[string]interface{}, []report.Artifact, error) {
	sourcePath, _ := stringParam(sc.step.Params, "source_path")
	targetMount, _ := stringParam(sc.step.Params, "target_mount")

	if sc.opts.DryRun {
		sc.log("dry_run=true source=%s target=%s", sourcePath, targetMount)
		return map[string]interface{}{"files_copied": 0}, nil, nil
	}

	candidates := candidateBootDirs(bootPrepOSName(sc.step.Action), sourcePath)

	var totalCopied int
	var skipped []string
	for _, candidate := range candidates {
		rel := filepath.FromSlash(candidate)
		src := filepath.Join(sourcePath, rel)
		dst := filepath.Join(targetMount, rel)
		if dirExists(dst) || fileExists(dst) {
			skipped = append(skipped, candidate)
			continue
		}
		entries, err := copyTree(src, dst)
		if err != nil {
			return nil, nil, err
		}
		totalCopied += len(entries)
	}
	sc.log("staged %d boot files into %s (candidates=%v skipped=%v)", totalCopied, targetMount, candidates, skipped)

	return map[string]interface{}{
		"files_copied":       totalCopied,
		"candidates_found":   candidates,
		"candidates_skipped": skipped,
	}, nil, nil
}
