// Package planner decides how a model's memory footprint is split between
// accelerator memory and host RAM, and keeps the ledger of committed
// allocations. The hardware snapshot is re-queried on every call; only the
// ledger itself is owned state.
package planner

import (
	"fmt"
	"log"
	"os"
	"sync"

	"inferd/internal/hardware"
	"inferd/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	// defaultRuntimeMultiplier scales file size to runtime footprint
	// (weights + KV cache + activations).
	defaultRuntimeMultiplier = 1.5
	// defaultMinVRAMFraction is the smallest share of the model worth
	// placing on the accelerator for a hybrid split.
	defaultMinVRAMFraction = 0.3
)

// Config carries the planner tunables. Zero values select defaults.
type Config struct {
	RuntimeMultiplier float64
	MinVRAMFraction   float64
	Estimator         LayerEstimator
}

// Planner tracks committed VRAM/RAM allocations and proposes offload
// options against freshly queried hardware state. It is safe for
// concurrent use; Reserve makes the read-status-then-commit sequence
// atomic with respect to other callers.
type Planner struct {
	mu          sync.Mutex
	hw          hardware.Provider
	multiplier  float64
	minVRAMFrac float64
	estimator   LayerEstimator
	allocations map[string]types.ModelAllocation
}

// New constructs a Planner over the given hardware provider.
func New(hw hardware.Provider, cfg Config) *Planner {
	p := &Planner{
		hw:          hw,
		multiplier:  cfg.RuntimeMultiplier,
		minVRAMFrac: cfg.MinVRAMFraction,
		estimator:   cfg.Estimator,
		allocations: make(map[string]types.ModelAllocation),
	}
	if p.multiplier <= 0 {
		p.multiplier = defaultRuntimeMultiplier
	}
	if p.minVRAMFrac <= 0 {
		p.minVRAMFrac = defaultMinVRAMFraction
	}
	if p.estimator == nil {
		p.estimator = SizeTierEstimator{}
	}
	return p
}

// ResourceStatus queries the hardware provider and subtracts the committed
// ledger. Never memoized: availability can change between calls.
func (p *Planner) ResourceStatus() (types.HardwareSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statusLocked()
}

func (p *Planner) statusLocked() (types.HardwareSnapshot, error) {
	var snap types.HardwareSnapshot
	vram, err := p.hw.AcceleratorMemoryMB()
	if err != nil {
		return snap, fmt.Errorf("accelerator memory: %w", err)
	}
	for _, mb := range vram {
		snap.VRAMTotalMB += mb
	}
	snap.GPUCount = len(vram)

	for _, a := range p.allocations {
		snap.VRAMUsedMB += a.VRAMMB
	}
	snap.VRAMAvailableMB = snap.VRAMTotalMB - snap.VRAMUsedMB
	if snap.VRAMAvailableMB < 0 {
		snap.VRAMAvailableMB = 0
	}

	ramTotal, ramAvail, err := p.hw.HostMemory()
	if err != nil {
		return snap, fmt.Errorf("host memory: %w", err)
	}
	snap.RAMTotalMB = ramTotal
	snap.RAMAvailableMB = ramAvail
	snap.RAMUsedMB = ramTotal - ramAvail
	return snap, nil
}

// EstimateModelSize computes the memory estimate for the model file at path.
// The estimate is derived from file size once per load attempt and not
// refreshed afterwards.
func (p *Planner) EstimateModelSize(path string) (types.ModelResourceEstimate, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.ModelResourceEstimate{}, fileNotFoundError{path: path}
		}
		return types.ModelResourceEstimate{}, err
	}
	fileSizeMB := int(fi.Size() / (1024 * 1024))

	total := int(float64(fileSizeMB) * p.multiplier)
	layers := p.estimator.EstimateLayers(fileSizeMB)
	var perLayer float64
	if layers > 0 {
		perLayer = float64(total) / float64(layers)
	}
	return types.ModelResourceEstimate{
		TotalSizeMB:    total,
		VRAMRequiredMB: total,
		RAMRequiredMB:  total,
		MinVRAMMB:      int(float64(total) * p.minVRAMFrac),
		LayerCount:     layers,
		MBPerLayer:     perLayer,
	}, nil
}

// SuggestOffloadStrategies returns the viable placements for the estimate
// given the stated availability, fastest first. Callers pick the first
// option by default; policy overrides are external.
func (p *Planner) SuggestOffloadStrategies(est types.ModelResourceEstimate, availVRAMMB, availRAMMB int) []types.OffloadOption {
	totalLayers := est.LayerCount
	if totalLayers <= 0 {
		totalLayers = 32
	}
	perLayer := est.MBPerLayer
	if perLayer <= 0 {
		perLayer = float64(est.TotalSizeMB) / float64(totalLayers)
	}

	var options []types.OffloadOption
	if availVRAMMB >= est.VRAMRequiredMB {
		options = append(options, types.OffloadOption{
			Strategy:    types.OffloadFullVRAM,
			VRAMLayers:  totalLayers,
			VRAMMB:      est.VRAMRequiredMB,
			SpeedRating: types.SpeedFast,
			Description: fmt.Sprintf("all %d layers on GPU, fastest inference", totalLayers),
		})
	}
	if availVRAMMB >= est.MinVRAMMB && availRAMMB >= est.RAMRequiredMB {
		vramLayers := 0
		if perLayer > 0 {
			vramLayers = int(float64(availVRAMMB) / perLayer)
		}
		if vramLayers > totalLayers {
			vramLayers = totalLayers
		}
		ramLayers := totalLayers - vramLayers
		if vramLayers > 0 && ramLayers > 0 {
			options = append(options, types.OffloadOption{
				Strategy:    types.OffloadHybrid,
				VRAMLayers:  vramLayers,
				RAMLayers:   ramLayers,
				VRAMMB:      int(float64(vramLayers) * perLayer),
				RAMMB:       int(float64(ramLayers) * perLayer),
				SpeedRating: types.SpeedMedium,
				Description: fmt.Sprintf("%d layers on GPU, %d layers in RAM", vramLayers, ramLayers),
			})
		}
	}
	if availRAMMB >= est.RAMRequiredMB {
		options = append(options, types.OffloadOption{
			Strategy:    types.OffloadFullRAM,
			RAMLayers:   totalLayers,
			RAMMB:       est.RAMRequiredMB,
			SpeedRating: types.SpeedSlow,
			Description: fmt.Sprintf("all %d layers in RAM, slower but works", totalLayers),
		})
	}
	return options
}

// Reserve atomically re-queries availability, picks an offload option and
// commits the allocation. This closes the check-then-act race between two
// concurrent loads both observing the same free VRAM.
//
// When prefer is non-empty only that strategy is accepted; otherwise the
// first (fastest) viable option wins.
func (p *Planner) Reserve(modelID string, backend types.BackendType, est types.ModelResourceEstimate, prefer types.OffloadStrategy) (types.OffloadOption, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap, err := p.statusLocked()
	if err != nil {
		return types.OffloadOption{}, err
	}
	options := p.SuggestOffloadStrategies(est, snap.VRAMAvailableMB, snap.RAMAvailableMB)
	var picked *types.OffloadOption
	for i := range options {
		if prefer == "" || options[i].Strategy == prefer {
			picked = &options[i]
			break
		}
	}
	if picked == nil {
		return types.OffloadOption{}, resourceExhaustedError{modelID: modelID, requiredMB: est.TotalSizeMB}
	}
	// Committed VRAM must never exceed the freshly queried total.
	if snap.VRAMUsedMB+picked.VRAMMB > snap.VRAMTotalMB {
		return types.OffloadOption{}, resourceExhaustedError{modelID: modelID, requiredMB: picked.VRAMMB}
	}
	p.allocations[modelID] = types.ModelAllocation{
		ModelID:    modelID,
		VRAMMB:     picked.VRAMMB,
		RAMMB:      picked.RAMMB,
		Backend:    backend,
		VRAMLayers: picked.VRAMLayers,
		RAMLayers:  picked.RAMLayers,
	}
	log.Printf("planner event=reserve model=%q strategy=%s vram_mb=%d ram_mb=%d", modelID, picked.Strategy, picked.VRAMMB, picked.RAMMB)
	return *picked, nil
}

// Allocate records a committed allocation in the ledger.
func (p *Planner) Allocate(alloc types.ModelAllocation) {
	p.mu.Lock()
	p.allocations[alloc.ModelID] = alloc
	p.mu.Unlock()
	log.Printf("planner event=allocate model=%q vram_mb=%d ram_mb=%d", alloc.ModelID, alloc.VRAMMB, alloc.RAMMB)
}

// Deallocate removes the ledger entry for modelID. Absence is expected,
// not exceptional: it returns false, never an error.
func (p *Planner) Deallocate(modelID string) bool {
	p.mu.Lock()
	_, ok := p.allocations[modelID]
	if ok {
		delete(p.allocations, modelID)
	}
	p.mu.Unlock()
	if ok {
		log.Printf("planner event=deallocate model=%q", modelID)
	}
	return ok
}

// Allocation returns the ledger entry for modelID, if present.
func (p *Planner) Allocation(modelID string) (types.ModelAllocation, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.allocations[modelID]
	return a, ok
}

// Allocations returns a copy of the ledger.
func (p *Planner) Allocations() map[string]types.ModelAllocation {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]types.ModelAllocation, len(p.allocations))
	for k, v := range p.allocations {
		out[k] = v
	}
	return out
}
