package workflow

import (
	"github.com/sigreer/phoenixforge/internal/bootloader"
	"github.com/sigreer/phoenixforge/internal/report"
)

func preflightStageBootloader(sc *stepContext) error {
	bootloaderPath, err := requireString(sc.step.Params, sc.step.Action, "source_path")
	if err != nil {
		return err
	}
	targetMount, err := requireString(sc.step.Params, sc.step.Action, "target_mount")
	if err != nil {
		return err
	}
	if _, err := bootloader.Validate(bootloaderPath); err != nil {
		return err
	}
	disk, err := resolveWritableDiskByMount(sc.graph, targetMount)
	if err != nil {
		return err
	}
	sc.isSystemTarget = disk.IsSystemDisk
	return nil
}

func effectStageBootloader(sc *stepContext) (map[string]interface{}, []report.Artifact, error) {
	bootloaderPath, _ := stringParam(sc.step.Params, "source_path")
	targetMount, _ := stringParam(sc.step.Params, "target_mount")

	if sc.opts.DryRun {
		sc.log("dry_run=true bootloader=%s target=%s", bootloaderPath, targetMount)
		return map[string]interface{}{"entries_staged": 0}, nil, nil
	}

	pkg, err := bootloader.Validate(bootloaderPath)
	if err != nil {
		return nil, nil, err
	}

	entries, err := copyTree(bootloaderPath, targetMount)
	if err != nil {
		return nil, nil, err
	}
	sc.log("staged bootloader package from %s (%d arches) into %s", bootloaderPath, len(pkg.Entries), targetMount)

	var arches []string
	for _, e := range pkg.Entries {
		arches = append(arches, string(e.Arch))
	}

	return map[string]interface{}{
		"files_copied":  len(entries),
		"architectures": arches,
	}, nil, nil
}
