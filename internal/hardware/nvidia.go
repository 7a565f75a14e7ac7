package hardware

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"inferd/pkg/types"
)

// smiTimeout bounds each nvidia-smi invocation so a wedged driver cannot
// stall planning calls.
const smiTimeout = 5 * time.Second

// SmiProvider shells out to nvidia-smi for VRAM totals. Each query runs the
// tool fresh; nothing is cached between calls.
type SmiProvider struct {
	bin    string
	procfs string
}

// NewSmiProvider locates nvidia-smi on PATH. Use Present to check whether
// it was found and reports at least one device.
func NewSmiProvider() *SmiProvider {
	bin, err := exec.LookPath("nvidia-smi")
	if err != nil {
		bin = ""
	}
	return &SmiProvider{bin: bin, procfs: defaultProcfsRoot}
}

// Present reports whether nvidia-smi exists and sees at least one GPU.
func (p *SmiProvider) Present() bool {
	if p.bin == "" {
		return false
	}
	mbs, err := p.AcceleratorMemoryMB()
	return err == nil && len(mbs) > 0
}

// AcceleratorMemoryMB runs
// `nvidia-smi --query-gpu=memory.total --format=csv,noheader,nounits`
// and parses one MB value per line, one line per device.
func (p *SmiProvider) AcceleratorMemoryMB() ([]int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), smiTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, p.bin,
		"--query-gpu=memory.total", "--format=csv,noheader,nounits").Output()
	if err != nil {
		return nil, err
	}
	var mbs []int
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		mb, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		mbs = append(mbs, mb)
	}
	return mbs, nil
}

// HostMemory reads /proc/meminfo.
func (p *SmiProvider) HostMemory() (int, int, error) {
	return readMeminfo(p.procfs)
}

// Devices queries index, name and memory in one shot.
func (p *SmiProvider) Devices() []types.GPUDevice {
	if p.bin == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), smiTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, p.bin,
		"--query-gpu=index,name,memory.total", "--format=csv,noheader,nounits").Output()
	if err != nil {
		return nil
	}
	var devices []types.GPUDevice
	for _, line := range strings.Split(string(out), "\n") {
		parts := strings.SplitN(strings.TrimSpace(line), ",", 3)
		if len(parts) != 3 {
			continue
		}
		idx, _ := strconv.Atoi(strings.TrimSpace(parts[0]))
		mb, _ := strconv.Atoi(strings.TrimSpace(parts[2]))
		devices = append(devices, types.GPUDevice{
			Index:  idx,
			Name:   strings.TrimSpace(parts[1]),
			VRAMMB: mb,
			Vendor: "nvidia",
		})
	}
	return devices
}
