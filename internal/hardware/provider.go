// Package hardware provides live host and accelerator memory probes.
//
// Providers are treated as opaque and possibly slow by callers; results are
// never cached here. The resource planner re-queries on every call so that
// memory consumed by processes outside our control is observed.
package hardware

import (
	"inferd/pkg/types"
)

// Provider supplies live memory availability for planning decisions.
type Provider interface {
	// AcceleratorMemoryMB returns total VRAM in MB per visible device.
	// An empty slice means no accelerator was found; that is not an error.
	AcceleratorMemoryMB() ([]int, error)

	// HostMemory returns total and available host RAM in MB.
	HostMemory() (totalMB int, availableMB int, err error)

	// Devices describes the discovered accelerators for reporting.
	Devices() []types.GPUDevice
}

// Detect probes for accelerators and returns the first provider that finds
// any, preferring nvidia-smi over the amdgpu sysfs reader. When neither
// reports a device the sysfs provider is returned anyway so host memory
// queries still work (VRAM reads simply yield zero devices).
func Detect() Provider {
	if smi := NewSmiProvider(); smi.Present() {
		return smi
	}
	sysfs := NewSysfsProvider(DefaultSysfsRoot)
	return sysfs
}
