package model

// Resources is a multi-dimensional resource vector. CPU is in cores,
// Memory in MiB, Storage in GiB, GPU in whole devices. Zero means
// "not requested" on demand vectors and "absent" on capacity vectors.
type Resources struct {
	CPU     float64 `json:"cpu"`
	Memory  float64 `json:"memory"`
	Storage float64 `json:"storage,omitempty"`
	GPU     float64 `json:"gpu,omitempty"`
}

// Add returns the component-wise sum of r and other.
func (r Resources) Add(other Resources) Resources {
	return Resources{
		CPU:     r.CPU + other.CPU,
		Memory:  r.Memory + other.Memory,
		Storage: r.Storage + other.Storage,
		GPU:     r.GPU + other.GPU,
	}
}

// Sub returns r minus other, floored at zero per dimension.
func (r Resources) Sub(other Resources) Resources {
	return Resources{
		CPU:     max(0, r.CPU-other.CPU),
		Memory:  max(0, r.Memory-other.Memory),
		Storage: max(0, r.Storage-other.Storage),
		GPU:     max(0, r.GPU-other.GPU),
	}
}

// Fits reports whether r fits entirely within avail on every dimension.
func (r Resources) Fits(avail Resources) bool {
	return r.CPU <= avail.CPU &&
		r.Memory <= avail.Memory &&
		r.Storage <= avail.Storage &&
		r.GPU <= avail.GPU
}

// IsZero reports whether no dimension is requested.
func (r Resources) IsZero() bool {
	return r.CPU == 0 && r.Memory == 0 && r.Storage == 0 && r.GPU == 0
}
