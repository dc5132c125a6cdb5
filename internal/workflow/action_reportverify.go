package workflow

import (
	"path/filepath"

	"github.com/sigreer/phoenixforge/internal/ferr"
	"github.com/sigreer/phoenixforge/internal/report"
)

func preflightReportVerify(sc *stepContext) error {
	root, err := requireString(sc.step.Params, sc.step.Action, "path")
	if err != nil {
		return err
	}
	if !dirExists(root) {
		return ferr.Newf(ferr.Precondition, "report root %s does not exist", root)
	}
	return nil
}

func effectReportVerify(sc *stepContext) (map[string]interface{}, []report.Artifact, error) {
	root, _ := stringParam(sc.step.Params, "path")

	if sc.opts.DryRun {
		sc.log("dry_run=true path=%s", root)
		return map[string]interface{}{"verified": false}, nil, nil
	}

	var result report.VerifyResult
	var err error
	if fileExists(filepath.Join(root, "manifest.json")) {
		result, err = report.Verify(root, sc.signingKey())
	} else {
		var tree map[string]report.VerifyResult
		tree, err = report.VerifyTree(root, sc.signingKey())
		if err == nil {
			ok := true
			for _, r := range tree {
				if !r.OK {
					ok = false
				}
				result.EntriesChecked += r.EntriesChecked
				result.Mismatches = append(result.Mismatches, r.Mismatches...)
			}
			result.OK = ok
		}
	}
	if err != nil {
		return nil, nil, err
	}
	sc.log("verified report tree at %s ok=%v", root, result.OK)

	if !result.OK {
		return nil, nil, ferr.Newf(ferr.VerifyFailed, "report verification failed at %s: %v", root, result.Mismatches)
	}

	meta := map[string]interface{}{
		"path":            root,
		"entries_checked": result.EntriesChecked,
		"ok":              result.OK,
	}
	if result.SignatureValid != nil {
		meta["signature_valid"] = *result.SignatureValid
	}
	return meta, nil, nil
}
