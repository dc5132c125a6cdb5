//go:build !linux && !darwin

package workflow

import "github.com/sigreer/phoenixforge/internal/ferr"

func availableBytes(path string) (uint64, error) {
	return 0, ferr.New(ferr.UnsupportedPlatform, "free-space check is not implemented on this platform")
}
