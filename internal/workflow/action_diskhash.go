package workflow

import (
	"encoding/json"

	"github.com/sigreer/phoenixforge/internal/ferr"
	"github.com/sigreer/phoenixforge/internal/imaging"
	"github.com/sigreer/phoenixforge/internal/report"
)

// disk_hash_report is read-only: it never mutates the target, so its
// preflight does not require the disk to be removable or non-system.
func preflightDiskHashReport(sc *stepContext) error {
	diskID, err := requireString(sc.step.Params, sc.step.Action, "disk_id")
	if err != nil {
		return err
	}
	if _, ok := sc.graph.DiskByID(diskID); !ok {
		return ferr.Newf(ferr.Precondition, "disk %s not found in device graph", diskID)
	}
	return nil
}

func effectDiskHashReport(sc *stepContext) (map[string]interface{}, []report.Artifact, error) {
	diskID, _ := stringParam(sc.step.Params, "disk_id")
	disk, _ := sc.graph.DiskByID(diskID)

	if sc.opts.DryRun {
		sc.log("dry_run=true disk_id=%s", diskID)
		return map[string]interface{}{"bytes_hashed": 0}, nil, nil
	}

	chunks, overall, err := imaging.HashFileChunks(disk.ID, sc.chunkSize(), nil)
	if err != nil {
		return nil, nil, err
	}
	sc.log("hashed %d chunks of %s", len(chunks), disk.ID)

	chunksJSON, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return nil, nil, ferr.Wrap(ferr.IO, "marshal chunk hashes", err)
	}

	meta := map[string]interface{}{
		"disk_id":     diskID,
		"chunk_count": len(chunks),
		"sha256":      overall,
	}
	artifacts := []report.Artifact{{Name: "disk_hashes.json", Data: chunksJSON}}
	return meta, artifacts, nil
}
