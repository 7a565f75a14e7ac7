package types

// EstimateRequest asks for a size estimate of a model file.
type EstimateRequest struct {
	// Path to the model file on disk.
	ModelPath string `json:"model_path,omitempty"`
	// Alternatively, a catalog model id resolved by the server.
	ModelID string `json:"model_id,omitempty"`
}

// EstimateResponse carries the estimate plus the offload options viable
// against the current snapshot, fastest first.
type EstimateResponse struct {
	Estimate ModelResourceEstimate `json:"estimate"`
	Options  []OffloadOption       `json:"options"`
}

// LoadRequest asks the daemon to load a model.
type LoadRequest struct {
	ModelID string `json:"model_id"`
	// Optional strategy override; empty means first viable option wins.
	Strategy OffloadStrategy `json:"strategy,omitempty"`
	Backend  BackendType     `json:"backend,omitempty"`
}

// LoadResult summarizes a successful load.
type LoadResult struct {
	ModelID  string          `json:"model_id"`
	State    ModelState      `json:"state"`
	Backend  BackendType     `json:"backend"`
	Strategy OffloadStrategy `json:"strategy"`
	VRAMMB   int             `json:"vram_mb"`
	RAMMB    int             `json:"ram_mb"`
	Port     int             `json:"port,omitempty"`
	PID      int             `json:"pid,omitempty"`
}

// UnloadRequest asks the daemon to unload a model.
type UnloadRequest struct {
	ModelID string `json:"model_id"`
}

// SelectRequest switches the active model.
type SelectRequest struct {
	ModelID string `json:"model_id"`
}

// ModelsResponse wraps the catalog listing.
type ModelsResponse struct {
	Models []Model `json:"models"`
}

// LoadedModelsResponse wraps the loaded-model listing.
type LoadedModelsResponse struct {
	Models        []LoadedModel `json:"models"`
	ActiveModelID string        `json:"active_model_id,omitempty"`
}

// ResourceStatusResponse is the snapshot plus the committed ledger.
type ResourceStatusResponse struct {
	Resources   HardwareSnapshot           `json:"resources"`
	Allocations map[string]ModelAllocation `json:"allocations"`
	LoadedCount int                        `json:"loaded_models_count"`
	ByBackend   map[string]int             `json:"by_backend,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	State             string        `json:"state"`
	Models            []LoadedModel `json:"models"`
	ActiveModelID     string        `json:"active_model_id,omitempty"`
	VRAMAllocatedMB   int           `json:"vram_allocated_mb"`
	RAMAllocatedMB    int           `json:"ram_allocated_mb"`
	LoadsTotal        uint64        `json:"loads_total"`
	LoadFailuresTotal uint64        `json:"load_failures_total"`
	UptimeSeconds     int64         `json:"uptime_seconds"`
	ServerTimeUnix    int64         `json:"server_time_unix"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
