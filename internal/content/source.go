package content

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sigreer/phoenixforge/internal/ferr"
)

// SourceKind distinguishes how a PreparedSource's root was obtained.
type SourceKind int

const (
	SourceDirectory SourceKind = iota
	SourceISO
)

// PreparedSource owns the lifetime of a resolved content root. When
// Kind is SourceISO, Release must be called exactly once to detach
// the mount; it is safe to call on any PreparedSource.
type PreparedSource struct {
	Root    string
	Kind    SourceKind
	release func() error
}

// Release detaches any OS-level mount held by this source. It is a
// no-op for directory sources.
func (p *PreparedSource) Release() error {
	if p.release == nil {
		return nil
	}
	release := p.release
	p.release = nil
	return release()
}

// PrepareSource resolves path into a usable root: a directory is
// canonicalized in place; an .iso file is mounted read-only and the
// mount root returned. Any other path is an error.
func PrepareSource(path string) (*PreparedSource, error) {
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		root, err := filepath.Abs(path)
		if err != nil {
			root = path
		}
		return &PreparedSource{Root: root, Kind: SourceDirectory}, nil
	}

	if strings.EqualFold(filepath.Ext(path), ".iso") {
		return mountISO(path)
	}

	return nil, ferr.Newf(ferr.Precondition, "unsupported source path %s", path)
}

// FindWindowsImage locates install.wim or install.esd under a
// resolved source root, preferring the sources/ subdirectory.
func FindWindowsImage(root string) (string, error) {
	candidates := []string{
		filepath.Join(root, "sources", "install.wim"),
		filepath.Join(root, "sources", "install.esd"),
		filepath.Join(root, "install.wim"),
		filepath.Join(root, "install.esd"),
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", ferr.New(ferr.Precondition, "install.wim or install.esd not found in source")
}

// ResolveWindowsImage resolves path either directly (a .wim/.esd
// file) or via a prepared source (directory or mounted ISO), locating
// the install image within it. When a PreparedSource is returned, the
// caller owns its release.
func ResolveWindowsImage(path string) (string, *PreparedSource, error) {
	info, err := os.Stat(path)
	if err == nil && !info.IsDir() {
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".wim" || ext == ".esd" {
			return path, nil, nil
		}
		return "", nil, ferr.New(ferr.Precondition, "unsupported image file type")
	}

	prepared, err := PrepareSource(path)
	if err != nil {
		return "", nil, err
	}
	wimPath, err := FindWindowsImage(prepared.Root)
	if err != nil {
		prepared.Release()
		return "", nil, err
	}
	return wimPath, prepared, nil
}
