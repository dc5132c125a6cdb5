package workflow

import (
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sigreer/phoenixforge/internal/bootloader"
	"github.com/sigreer/phoenixforge/internal/content"
	"github.com/sigreer/phoenixforge/internal/ferr"
	"github.com/sigreer/phoenixforge/internal/format"
	"github.com/sigreer/phoenixforge/internal/report"
	"github.com/sigreer/phoenixforge/internal/wim"
)

const fat32MaxFileBytes = 4*1024*1024*1024 - 1

func preflightWindowsInstallerUSB(sc *stepContext) error {
	diskID, err := requireString(sc.step.Params, "windows_installer_usb", "target_disk_id")
	if err != nil {
		return err
	}
	sourcePath, err := requireString(sc.step.Params, "windows_installer_usb", "source_path")
	if err != nil {
		return err
	}

	if _, err := resolveWritableDiskByID(sc.graph, diskID); err != nil {
		return err
	}

	fsName, _ := stringParam(sc.step.Params, "filesystem")
	if fsName == "" {
		fsName = "FAT32"
	}
	fs, err := format.ParseFilesystem(fsName)
	if err != nil {
		return err
	}

	bootWim := filepath.Join(sourcePath, "sources", "boot.wim")
	if !fileExists(bootWim) {
		return ferr.New(ferr.Precondition, "missing sources/boot.wim in installer source")
	}
	if _, err := bootloader.Validate(sourcePath); err != nil {
		return err
	}

	if fs == format.FAT32 {
		var tooLarge string
		_ = filepath.Walk(sourcePath, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return nil
			}
			if info.Size() > fat32MaxFileBytes {
				tooLarge = path
			}
			return nil
		})
		if tooLarge != "" {
			return ferr.Newf(ferr.Precondition, "file %s exceeds FAT32's 4GiB-1 limit", tooLarge)
		}
	}

	return nil
}

func effectWindowsInstallerUSB(sc *stepContext) (map[string]interface{}, []report.Artifact, error) {
	diskID, _ := stringParam(sc.step.Params, "target_disk_id")
	sourcePath, _ := stringParam(sc.step.Params, "source_path")
	targetMount, err := requireString(sc.step.Params, "windows_installer_usb", "target_mount")
	if err != nil {
		return nil, nil, err
	}
	fsName, _ := stringParam(sc.step.Params, "filesystem")
	if fsName == "" {
		fsName = "FAT32"
	}
	fs, _ := format.ParseFilesystem(fsName)
	label, _ := stringParam(sc.step.Params, "label")
	if label == "" {
		label = "PHOENIX"
	}

	if sc.opts.DryRun {
		sc.log("dry_run=true target_disk=%s source=%s", diskID, sourcePath)
		return map[string]interface{}{"target_disk_id": diskID, "bytes_copied": 0}, nil, nil
	}

	disk, _ := resolveWritableDiskByID(sc.graph, diskID)

	if boolParam(sc.step.Params, "format", true) {
		if err := format.PartitionGPT(disk.ID, disk.SizeBytes, label); err != nil {
			return nil, nil, err
		}
		if err := format.FormatVolume(targetMount, fs, label); err != nil {
			return nil, nil, err
		}
	}

	entries, err := copyTree(sourcePath, targetMount)
	if err != nil {
		return nil, nil, err
	}
	sc.log("copied %d files to %s", len(entries), targetMount)

	if overlay, _ := stringParam(sc.step.Params, "driver_overlay_path"); overlay != "" {
		overlayDest := filepath.Join(targetMount, "sources", "$OEM$", "$1", "Drivers")
		if _, err := copyTree(overlay, overlayDest); err != nil {
			return nil, nil, err
		}
		sc.log("staged driver overlay from %s", overlay)
	}

	var totalBytes int64
	for _, e := range entries {
		totalBytes += e.Bytes
	}

	meta := map[string]interface{}{
		"target_disk_id": diskID,
		"filesystem":     string(fs),
		"files_copied":   len(entries),
		"bytes_copied":   totalBytes,
	}

	var artifacts []report.Artifact
	if boolParam(sc.step.Params, "copy_manifest", false) {
		artifacts = append(artifacts, report.Artifact{
			Name: "copy_manifest.json",
			Data: copyManifestJSON(entries),
		})
	}

	return meta, artifacts, nil
}

func preflightWindowsApplyImage(sc *stepContext) error {
	if _, err := requireString(sc.step.Params, "windows_apply_image", "source_path"); err != nil {
		return err
	}
	if _, err := requireString(sc.step.Params, "windows_apply_image", "target_dir"); err != nil {
		return err
	}
	if _, ok := sc.step.Params["image_index"]; !ok {
		return ferr.New(ferr.Precondition, "windows_apply_image: missing required param \"image_index\"")
	}
	return nil
}

func effectWindowsApplyImage(sc *stepContext) (map[string]interface{}, []report.Artifact, error) {
	sourcePath, _ := stringParam(sc.step.Params, "source_path")
	targetDir, _ := stringParam(sc.step.Params, "target_dir")
	index := intParam(sc.step.Params, "image_index", 1)

	if sc.opts.DryRun {
		sc.log("dry_run=true source=%s target=%s", sourcePath, targetDir)
		return map[string]interface{}{"image_index": index}, nil, nil
	}

	wimPath, prepared, err := content.ResolveWindowsImage(sourcePath)
	if err != nil {
		return nil, nil, err
	}
	sc.prepared = prepared

	images, err := wim.ListImages(wimPath)
	if err != nil {
		return nil, nil, err
	}
	var selected *wim.ImageInfo
	for i := range images {
		if images[i].Index == uint32(index) {
			selected = &images[i]
			break
		}
	}
	if selected == nil {
		return nil, nil, ferr.Newf(ferr.Precondition, "image index %d not found in %s", index, wimPath)
	}

	if err := wim.ApplyImage(wimPath, uint32(index), targetDir); err != nil {
		return nil, nil, err
	}
	sc.log("applied wim image %d from %s to %s", index, wimPath, targetDir)

	meta := map[string]interface{}{
		"image_index":  index,
		"image_name":   selected.Name,
		"source_bytes": selected.TotalBytes,
	}

	if boolParam(sc.step.Params, "verify", true) && selected.TotalBytes > 0 {
		applied, err := dirSize(targetDir)
		if err != nil {
			return nil, nil, err
		}
		tolerance := sc.engine.applyImageTolerance()
		diff := math.Abs(float64(applied) - float64(selected.TotalBytes))
		withinTolerance := diff <= tolerance*float64(selected.TotalBytes)
		meta["applied_bytes"] = applied
		meta["within_tolerance"] = withinTolerance
		if !withinTolerance {
			return nil, nil, ferr.Newf(ferr.VerifyFailed, "applied size %d deviates from reported %d beyond tolerance", applied, selected.TotalBytes)
		}
	}

	return meta, nil, nil
}

func (e *Engine) applyImageTolerance() float64 {
	if e.Config != nil && e.Config.ApplyImage.ToleranceFraction > 0 {
		return e.Config.ApplyImage.ToleranceFraction
	}
	return 0.01
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, ferr.Wrap(ferr.IO, "measure applied image size", err)
	}
	return total, nil
}

func copyManifestJSON(entries []copyEntry) []byte {
	var b []byte
	b = append(b, '[')
	for i, e := range entries {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, []byte(`{"path":"`+e.RelPath+`","bytes":`+strconv.FormatInt(e.Bytes, 10)+`}`)...)
	}
	b = append(b, ']')
	return b
}
