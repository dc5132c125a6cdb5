//go:build !linux && !darwin && !windows

package hostgraph

import (
	"github.com/sigreer/phoenixforge/internal/core"
	"github.com/sigreer/phoenixforge/internal/ferr"
)

func buildDeviceGraph() (core.DeviceGraph, error) {
	return core.DeviceGraph{}, ferr.New(ferr.UnsupportedPlatform, "no host device-graph provider for this platform")
}
