package model

// ResultMetrics carries per-dispatch timing and quality figures.
// DurationMs is wall-clock dispatch time; Score is in [0,1].
type ResultMetrics struct {
	DurationMs int64   `json:"durationMs"`
	Score      float64 `json:"score"`
}

// OptimizationResult is the outcome of a single dispatch. Exactly one is
// produced per call; cached copies are returned verbatim, so Result payloads
// of two dispatches for the same request are bit-identical.
type OptimizationResult struct {
	RequestID string         `json:"requestId"`
	Success   bool           `json:"success"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	Metrics   ResultMetrics  `json:"metrics"`
}
