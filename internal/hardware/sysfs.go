package hardware

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"inferd/pkg/types"
)

// DefaultSysfsRoot is the sysfs mount point probed for DRM cards.
const DefaultSysfsRoot = "/sys"

const (
	drmClassPath     = "class/drm"
	vramTotalFile    = "mem_info_vram_total"
	vendorFile       = "vendor"
	deviceFile       = "device"
	subsysVendorFile = "subsystem_vendor"
	subsysDeviceFile = "subsystem_device"
)

// SysfsProvider reads VRAM totals from the amdgpu sysfs interface
// (/sys/class/drm/cardN/device/mem_info_vram_total) and host memory from
// /proc/meminfo. Cards without a VRAM counter are skipped.
type SysfsProvider struct {
	root    string
	procfs  string
	devices []types.GPUDevice
}

// NewSysfsProvider discovers DRM cards under root at construction time.
// Memory counters themselves are read fresh on every call.
func NewSysfsProvider(root string) *SysfsProvider {
	p := &SysfsProvider{root: root, procfs: defaultProcfsRoot}
	p.devices = p.discover()
	return p
}

func (p *SysfsProvider) discover() []types.GPUDevice {
	entries, err := os.ReadDir(filepath.Join(p.root, drmClassPath))
	if err != nil {
		return nil
	}
	var devices []types.GPUDevice
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "card") || strings.ContainsRune(name, '-') {
			continue
		}
		if !allDigits(name[len("card"):]) {
			continue
		}
		devPath := filepath.Join(p.root, drmClassPath, name, "device")
		total, err := readMBFromBytes(filepath.Join(devPath, vramTotalFile))
		if err != nil {
			// Not an amdgpu-style card; skip rather than fail discovery.
			continue
		}
		idx, _ := strconv.Atoi(name[len("card"):])
		vendor, _ := readTrim(filepath.Join(devPath, vendorFile))
		device, _ := readTrim(filepath.Join(devPath, deviceFile))
		subVendor, _ := readTrim(filepath.Join(devPath, subsysVendorFile))
		subDevice, _ := readTrim(filepath.Join(devPath, subsysDeviceFile))
		devices = append(devices, types.GPUDevice{
			Index:   idx,
			Name:    lookupGPUName(vendor, device, subVendor, subDevice),
			VRAMMB:  total,
			Vendor:  strings.TrimPrefix(vendor, "0x"),
			SysPath: devPath,
		})
	}
	return devices
}

// AcceleratorMemoryMB re-reads the VRAM totals of the discovered cards.
func (p *SysfsProvider) AcceleratorMemoryMB() ([]int, error) {
	out := make([]int, 0, len(p.devices))
	for _, d := range p.devices {
		mb, err := readMBFromBytes(filepath.Join(d.SysPath, vramTotalFile))
		if err != nil {
			// Card disappeared (driver unbind); report zero rather than abort.
			mb = 0
		}
		out = append(out, mb)
	}
	return out, nil
}

// HostMemory reads /proc/meminfo.
func (p *SysfsProvider) HostMemory() (int, int, error) {
	return readMeminfo(p.procfs)
}

// Devices returns copies of the discovered device descriptors.
func (p *SysfsProvider) Devices() []types.GPUDevice {
	out := make([]types.GPUDevice, len(p.devices))
	copy(out, p.devices)
	return out
}

func readMBFromBytes(path string) (int, error) {
	s, err := readTrim(path)
	if err != nil {
		return 0, err
	}
	b, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return int(b / (1024 * 1024)), nil
}

func readTrim(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
