package types

// BackendType identifies which runtime executes a loaded model.
type BackendType string

const (
	BackendLlamaCpp BackendType = "llamacpp"
	BackendBitNet   BackendType = "bitnet"
	BackendONNX     BackendType = "onnx"
)

// OffloadStrategy describes how a model's layers are split between
// accelerator memory and host RAM.
type OffloadStrategy string

const (
	OffloadFullVRAM OffloadStrategy = "full_vram"
	OffloadHybrid   OffloadStrategy = "hybrid"
	OffloadFullRAM  OffloadStrategy = "full_ram"
)

// SpeedRating is a coarse relative ranking of offload options.
type SpeedRating string

const (
	SpeedFast   SpeedRating = "fast"
	SpeedMedium SpeedRating = "medium"
	SpeedSlow   SpeedRating = "slow"
)

// ModelState is the lifecycle state of a tracked model.
// available -> downloaded -> loading -> loaded -> unloading -> (removed),
// with loading -> failed as the terminal error branch.
type ModelState string

const (
	StateAvailable  ModelState = "available"
	StateDownloaded ModelState = "downloaded"
	StateLoading    ModelState = "loading"
	StateLoaded     ModelState = "loaded"
	StateUnloading  ModelState = "unloading"
	StateFailed     ModelState = "failed"
)

// Model is a catalog entry for a model file on disk.
type Model struct {
	// Stable identifier, derived from the filename.
	ID string `json:"id"`
	// Human-friendly name.
	Name string `json:"name"`
	// Absolute path to the model file.
	Path string `json:"path"`
	// File size in MB as last scanned.
	SizeMB int `json:"size_mb"`
}

// GPUDevice describes one discovered accelerator.
type GPUDevice struct {
	Index   int    `json:"index"`
	Name    string `json:"name,omitempty"`
	VRAMMB  int    `json:"vram_mb"`
	Vendor  string `json:"vendor,omitempty"`
	Busy    bool   `json:"-"`
	SysPath string `json:"-"`
}

// HardwareSnapshot is a point-in-time view of host resources. It is
// re-queried on every call and never cached: external processes can
// change availability between calls.
type HardwareSnapshot struct {
	VRAMTotalMB     int `json:"vram_total_mb"`
	VRAMUsedMB      int `json:"vram_used_mb"`
	VRAMAvailableMB int `json:"vram_available_mb"`
	RAMTotalMB      int `json:"ram_total_mb"`
	RAMUsedMB       int `json:"ram_used_mb"`
	RAMAvailableMB  int `json:"ram_available_mb"`
	GPUCount        int `json:"gpu_count"`
}

// ModelResourceEstimate is computed once per load attempt from the model
// file size and is immutable afterwards.
type ModelResourceEstimate struct {
	// Estimated runtime footprint: file size times the runtime multiplier
	// (weights + KV cache + activations).
	TotalSizeMB int `json:"total_size_mb"`
	// VRAM needed to run fully on the accelerator.
	VRAMRequiredMB int `json:"vram_required_mb"`
	// RAM needed to run fully on the host.
	RAMRequiredMB int `json:"ram_required_mb"`
	// Smallest useful VRAM share for a hybrid split.
	MinVRAMMB int `json:"min_vram_mb"`
	// Heuristic layer count used for split math.
	LayerCount int `json:"layer_count"`
	// TotalSizeMB / LayerCount.
	MBPerLayer float64 `json:"mb_per_layer"`
}

// OffloadOption is a candidate placement for a model, not a commitment.
type OffloadOption struct {
	Strategy    OffloadStrategy `json:"strategy"`
	VRAMLayers  int             `json:"vram_layers"`
	RAMLayers   int             `json:"ram_layers"`
	VRAMMB      int             `json:"vram_mb"`
	RAMMB       int             `json:"ram_mb"`
	SpeedRating SpeedRating     `json:"speed_rating"`
	Description string          `json:"description"`
}

// ModelAllocation is a committed ledger entry: created when a load is
// admitted, removed on deallocate.
type ModelAllocation struct {
	ModelID    string      `json:"model_id"`
	VRAMMB     int         `json:"vram_mb"`
	RAMMB      int         `json:"ram_mb"`
	Backend    BackendType `json:"backend"`
	VRAMLayers int         `json:"vram_layers"`
	RAMLayers  int         `json:"ram_layers"`
}

// LoadedModel is the external, read-only projection of a tracked model.
// The registry owns the underlying record; consumers receive copies.
type LoadedModel struct {
	ModelID      string            `json:"model_id"`
	ModelPath    string            `json:"model_path"`
	Backend      BackendType       `json:"backend"`
	State        ModelState        `json:"state"`
	VRAMMB       int               `json:"vram_mb"`
	RAMMB        int               `json:"ram_mb"`
	VRAMLayers   int               `json:"vram_layers"`
	RAMLayers    int               `json:"ram_layers"`
	LoadedAtUnix int64             `json:"loaded_at_unix"`
	LastUsedUnix int64             `json:"last_used_unix,omitempty"`
	Active       bool              `json:"active"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}
