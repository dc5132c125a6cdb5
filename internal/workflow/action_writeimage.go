package workflow

import (
	"github.com/sigreer/phoenixforge/internal/imaging"
	"github.com/sigreer/phoenixforge/internal/report"
)

func preflightWriteImage(sc *stepContext) error {
	if _, err := requireString(sc.step.Params, sc.step.Action, "source_image"); err != nil {
		return err
	}
	targetDevice, err := requireString(sc.step.Params, sc.step.Action, "target_device")
	if err != nil {
		return err
	}
	disk, err := resolveWritableDiskByID(sc.graph, targetDevice)
	if err != nil {
		return err
	}
	sc.isSystemTarget = disk.IsSystemDisk
	return nil
}

func effectWriteImage(sc *stepContext) (map[string]interface{}, []report.Artifact, error) {
	targetDevice, _ := stringParam(sc.step.Params, "target_device")
	sourceImage, _ := stringParam(sc.step.Params, "source_image")
	verify := boolParam(sc.step.Params, "verify", true)

	if sc.opts.DryRun {
		sc.log("dry_run=true target_device=%s source_image=%s", targetDevice, sourceImage)
		return map[string]interface{}{"bytes_written": 0, "verified": false}, nil, nil
	}

	disk, _ := resolveWritableDiskByID(sc.graph, targetDevice)

	result, err := imaging.StreamImageToDevice(sourceImage, disk.ID, sc.chunkSize(), verify, nil)
	if err != nil {
		return nil, nil, err
	}
	sc.log("wrote %d bytes from %s to %s (verified=%v)", result.BytesWritten, sourceImage, disk.ID, result.VerifyOK)

	meta := map[string]interface{}{
		"target_device": targetDevice,
		"bytes_written": result.BytesWritten,
		"image_sha256":  result.ImageHash,
	}
	if result.Verified {
		meta["device_sha256"] = result.DeviceHash
		meta["verify_ok"] = result.VerifyOK
	}
	return meta, nil, nil
}
