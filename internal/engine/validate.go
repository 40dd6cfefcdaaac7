package engine

import (
	"github.com/optiplace/optiplace-engine/internal/errors"
	"github.com/optiplace/optiplace-engine/pkg/model"
)

// validateRequest checks the request schema before the cache or plugins are
// consulted. It admits any non-empty type string: plugin-defined types are
// legal, and whether anything can actually serve them is decided later in
// dispatch.
func validateRequest(req model.OptimizationRequest) *errors.EngineError {
	if req.ID == "" {
		return errors.New(errors.ErrValidationFailed, "engine", "request id is required")
	}
	if req.Type == "" {
		return errors.New(errors.ErrValidationFailed, "engine", "request type is required")
	}
	if req.Data == nil {
		return errors.New(errors.ErrValidationFailed, "engine", "request data is required")
	}
	return nil
}
