package workflow

import (
	"path/filepath"
	"strings"

	"github.com/sigreer/phoenixforge/internal/ferr"
	"github.com/sigreer/phoenixforge/internal/report"
)

const kextDefaultRelPath = "EFI/OC/Kexts"

func preflightKextStage(sc *stepContext) error {
	kextPath, err := requireString(sc.step.Params, sc.step.Action, "source")
	if err != nil {
		return err
	}
	targetMount, err := requireString(sc.step.Params, sc.step.Action, "target_mount")
	if err != nil {
		return err
	}
	if !strings.EqualFold(filepath.Ext(kextPath), ".kext") {
		return ferr.Newf(ferr.Precondition, "source %s must end in .kext", kextPath)
	}
	if !fileExists(filepath.Join(kextPath, "Contents", "Info.plist")) {
		return ferr.Newf(ferr.Precondition, "kext bundle %s missing Contents/Info.plist", kextPath)
	}
	disk, err := resolveWritableDiskByMount(sc.graph, targetMount)
	if err != nil {
		return err
	}
	sc.isSystemTarget = disk.IsSystemDisk
	return nil
}

func effectKextStage(sc *stepContext) (map[string]interface{}, []report.Artifact, error) {
	kextPath, _ := stringParam(sc.step.Params, "source")
	targetMount, _ := stringParam(sc.step.Params, "target_mount")
	relDest, _ := stringParam(sc.step.Params, "target_rel_path")
	if relDest == "" {
		relDest = kextDefaultRelPath
	}

	dest := filepath.Join(targetMount, relDest, filepath.Base(kextPath))

	if sc.opts.DryRun {
		sc.log("dry_run=true kext=%s target=%s", kextPath, dest)
		return map[string]interface{}{"files_copied": 0}, nil, nil
	}

	entries, err := copyTree(kextPath, dest)
	if err != nil {
		return nil, nil, err
	}
	sc.log("staged kext bundle %s into %s", filepath.Base(kextPath), dest)

	return map[string]interface{}{
		"files_copied": len(entries),
		"staged_path":  dest,
	}, nil, nil
}
