package content

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"

	"github.com/sigreer/phoenixforge/internal/ferr"
)

// ExportPackZip archives the manifest, every referenced workflow
// file, the optional assets directory, and the pack.sig sidecar (if
// present) into outputPath, using forward-slash archive entry names.
func ExportPackZip(manifestPath, outputPath string) (string, error) {
	manifest, err := LoadPackManifest(manifestPath)
	if err != nil {
		return "", err
	}
	base := filepath.Dir(manifestPath)

	out, err := os.Create(outputPath)
	if err != nil {
		return "", ferr.Wrap(ferr.IO, "create pack zip", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	if err := addFileToZip(zw, base, manifestPath); err != nil {
		zw.Close()
		return "", err
	}
	for _, rel := range manifest.Workflows {
		if err := addFileToZip(zw, base, filepath.Join(base, rel)); err != nil {
			zw.Close()
			return "", err
		}
	}
	if manifest.Assets != "" {
		if err := addDirToZip(zw, base, filepath.Join(base, manifest.Assets)); err != nil {
			zw.Close()
			return "", err
		}
	}
	sigPath := sigPathFor(manifestPath)
	if _, err := os.Stat(sigPath); err == nil {
		if err := addFileToZip(zw, base, sigPath); err != nil {
			zw.Close()
			return "", err
		}
	}

	if err := zw.Close(); err != nil {
		return "", ferr.Wrap(ferr.IO, "finalize pack zip", err)
	}
	return outputPath, nil
}

func addFileToZip(zw *zip.Writer, base, path string) error {
	if _, err := os.Stat(path); err != nil {
		return ferr.Newf(ferr.Precondition, "missing pack file %s", path)
	}
	rel, err := filepath.Rel(base, path)
	if err != nil {
		rel = path
	}
	w, err := zw.Create(filepath.ToSlash(rel))
	if err != nil {
		return ferr.Wrap(ferr.IO, "add pack zip entry", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return ferr.Wrap(ferr.IO, "open pack file", err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return ferr.Wrap(ferr.IO, "write pack zip entry", err)
	}
	return nil
}

func addDirToZip(zw *zip.Writer, base, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil // missing assets directory is not an error
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := addDirToZip(zw, base, path); err != nil {
				return err
			}
			continue
		}
		if err := addFileToZip(zw, base, path); err != nil {
			return err
		}
	}
	return nil
}
