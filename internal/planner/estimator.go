package planner

// LayerEstimator guesses a model's layer count from its file size. The
// default is a stand-in for real model metadata; per-backend introspection
// can replace it without touching the planner.
type LayerEstimator interface {
	EstimateLayers(fileSizeMB int) int
}

// SizeTierEstimator maps file size to a typical layer count:
// roughly 1-3B, 7-13B and 13B+ parameter classes.
type SizeTierEstimator struct{}

func (SizeTierEstimator) EstimateLayers(fileSizeMB int) int {
	switch {
	case fileSizeMB < 2000:
		return 28
	case fileSizeMB < 8000:
		return 32
	default:
		return 40
	}
}

// FixedLayerEstimator returns a constant layer count, for backends that
// report true metadata or for tests.
type FixedLayerEstimator int

func (f FixedLayerEstimator) EstimateLayers(int) int { return int(f) }
