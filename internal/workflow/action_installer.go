package workflow

import (
	"path/filepath"
	"runtime"

	"github.com/sigreer/phoenixforge/internal/content"
	"github.com/sigreer/phoenixforge/internal/fat32"
	"github.com/sigreer/phoenixforge/internal/ferr"
	"github.com/sigreer/phoenixforge/internal/imaging"
	"github.com/sigreer/phoenixforge/internal/report"
)

// bootMarkers lists the boot-file markers preflight accepts per host
// OS; any one present under source_path satisfies the check.
var bootMarkers = map[string][]string{
	"linux":  {"EFI/BOOT", "boot/grub", "isolinux"},
	"darwin": {"boot.efi", "EFI/BOOT"},
}

// preflightInstallerUSB returns a preflight for the linux/macos
// installer-usb actions, which are identical in required params and
// effect but are registered as distinct dispatch entries restricted
// to their matching host OS.
func preflightInstallerUSB(osName string) func(*stepContext) error {
	return func(sc *stepContext) error {
		if runtime.GOOS != osName {
			return ferr.Newf(ferr.UnsupportedPlatform, "action %s requires a %s host", sc.step.Action, osName)
		}
		sourcePath, err := requireString(sc.step.Params, sc.step.Action, "source_path")
		if err != nil {
			return err
		}
		targetMount, err := requireString(sc.step.Params, sc.step.Action, "target_mount")
		if err != nil {
			return err
		}

		if err := requireBootMarker(osName, sourcePath); err != nil {
			return err
		}

		disk, err := resolveWritableDiskByMount(sc.graph, targetMount)
		if err != nil {
			return err
		}
		sc.isSystemTarget = disk.IsSystemDisk

		needed, err := dirSize(sourcePath)
		if err != nil {
			return err
		}
		if needed > 0 {
			available, err := availableBytes(targetMount)
			if err != nil {
				return err
			}
			if uint64(needed) > available {
				return ferr.Newf(ferr.Precondition, "target %s has %d bytes free, need %d", targetMount, available, needed)
			}
		}
		return nil
	}
}

func requireBootMarker(osName, sourcePath string) error {
	for _, marker := range bootMarkers[osName] {
		candidate := filepath.Join(sourcePath, filepath.FromSlash(marker))
		if dirExists(candidate) || fileExists(candidate) {
			return nil
		}
	}
	return ferr.Newf(ferr.Precondition, "no recognized boot files found under %s", sourcePath)
}

func effectInstallerUSB(sc *stepContext) (map[string]interface{}, []report.Artifact, error) {
	sourcePath, _ := stringParam(sc.step.Params, "source_path")
	targetMount, _ := stringParam(sc.step.Params, "target_mount")

	if sc.opts.DryRun {
		sc.log("dry_run=true source=%s target=%s", sourcePath, targetMount)
		return map[string]interface{}{"bytes_copied": 0, "files_copied": 0}, nil, nil
	}

	if formatDevice, _ := stringParam(sc.step.Params, "format_device"); formatDevice != "" {
		disk, err := resolveWritableDiskByMount(sc.graph, targetMount)
		if err != nil {
			return nil, nil, err
		}
		label, _ := stringParam(sc.step.Params, "label")
		if label == "" {
			label = "PHOENIX"
		}
		if _, err := fat32.Format(formatDevice, disk.SizeBytes, label); err != nil {
			return nil, nil, err
		}
		sc.log("formatted %s as FAT32", formatDevice)
	}

	prepared, err := content.PrepareSource(sourcePath)
	if err != nil {
		return nil, nil, err
	}
	sc.prepared = prepared

	entries, err := copyTree(prepared.Root, targetMount)
	if err != nil {
		return nil, nil, err
	}
	sc.log("copied %d files from %s to %s", len(entries), prepared.Root, targetMount)

	if overlay, _ := stringParam(sc.step.Params, "driver_overlay_path"); overlay != "" {
		overlayDest := filepath.Join(targetMount, "drivers")
		if _, err := copyTree(overlay, overlayDest); err != nil {
			return nil, nil, err
		}
		sc.log("staged driver overlay from %s", overlay)
	}

	var totalBytes int64
	for _, e := range entries {
		totalBytes += e.Bytes
	}

	if boolParam(sc.step.Params, "verify", true) {
		copied, err := dirSize(targetMount)
		if err != nil {
			return nil, nil, err
		}
		if copied < totalBytes {
			return nil, nil, ferr.Newf(ferr.VerifyFailed, "copied %d bytes to %s, expected at least %d", copied, targetMount, totalBytes)
		}
	}

	meta := map[string]interface{}{
		"files_copied": len(entries),
		"bytes_copied": totalBytes,
	}

	var artifacts []report.Artifact
	if boolParam(sc.step.Params, "hash_manifest", false) {
		manifest, err := hashManifestJSON(targetMount, entries, sc.chunkSize())
		if err != nil {
			return nil, nil, err
		}
		artifacts = append(artifacts, report.Artifact{Name: "hash_manifest.json", Data: manifest})
	}

	return meta, artifacts, nil
}

func hashManifestJSON(root string, entries []copyEntry, chunkSize int64) ([]byte, error) {
	var b []byte
	b = append(b, '[')
	for i, e := range entries {
		_, sum, err := imaging.HashFileChunks(filepath.Join(root, filepath.FromSlash(e.RelPath)), chunkSize, nil)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, []byte(`{"path":"`+e.RelPath+`","sha256":"`+sum+`"}`)...)
	}
	b = append(b, ']')
	return b, nil
}
