package errors

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Code represents a typed error code surfaced in failed results and on the
// health endpoint.
type Code string

// Engine error codes. The first five form the dispatch taxonomy; the rest
// cover infrastructure faults.
const (
	ErrValidationFailed Code = "VALIDATION_FAILED"
	ErrUninitialized    Code = "UNINITIALIZED"
	ErrNoCandidate      Code = "NO_CANDIDATE"
	ErrTimeout          Code = "TIMEOUT"
	ErrProviderError    Code = "PROVIDER_ERROR"

	ErrPluginFailed     Code = "PLUGIN_FAILED"
	ErrAdapterUnhealthy Code = "ADAPTER_UNHEALTHY"
)

// defaultTTL is the auto-expiry duration for errors not re-reported.
const defaultTTL = 5 * time.Minute

// EngineError is a typed engine error with code, component, and an optional
// wrapped cause.
type EngineError struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Component string `json:"component"`
	Timestamp int64  `json:"timestamp"`
	Err       error  `json:"-"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return e.Message
}

// Unwrap returns the wrapped cause for errors.Is/As compatibility.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// New creates an EngineError with the given code, component, and message.
func New(code Code, component, format string, args ...any) *EngineError {
	return &EngineError{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Component: component,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Wrap creates an EngineError around an existing cause.
func Wrap(code Code, component string, err error) *EngineError {
	return &EngineError{
		Code:      code,
		Message:   err.Error(),
		Component: component,
		Timestamp: time.Now().UnixMilli(),
		Err:       err,
	}
}

// CodeOf extracts the typed code from err's wrap chain, or "" for
// unclassified errors.
func CodeOf(err error) Code {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// entry wraps an EngineError with its last-reported time for expiry tracking.
type entry struct {
	err        EngineError
	lastReport time.Time
}

// Collector is a thread-safe store of active engine errors. Errors are keyed
// by Code+Component and auto-expire after 5 minutes if not re-reported.
type Collector struct {
	mu      sync.Mutex
	clock   clock.PassiveClock
	entries map[string]entry // key = string(Code) + "|" + Component
}

// NewCollector creates a Collector using the given clock.
func NewCollector(c clock.PassiveClock) *Collector {
	return &Collector{
		clock:   c,
		entries: make(map[string]entry),
	}
}

func key(code Code, component string) string {
	return string(code) + "|" + component
}

// Report stores or refreshes an error. The dedup key is Code+Component.
func (c *Collector) Report(err EngineError) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(err.Code, err.Component)
	c.entries[k] = entry{
		err:        err,
		lastReport: c.clock.Now(),
	}
}

// Active returns all errors reported within the TTL window.
func (c *Collector) Active() []EngineError {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	result := make([]EngineError, 0, len(c.entries))
	for k, e := range c.entries {
		if now.Sub(e.lastReport) > defaultTTL {
			delete(c.entries, k)
			continue
		}
		result = append(result, e.err)
	}
	return result
}

// ActiveCodes returns a deduplicated list of active error codes.
func (c *Collector) ActiveCodes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	seen := make(map[Code]struct{})
	codes := make([]string, 0)
	for k, e := range c.entries {
		if now.Sub(e.lastReport) > defaultTTL {
			delete(c.entries, k)
			continue
		}
		if _, ok := seen[e.err.Code]; !ok {
			seen[e.err.Code] = struct{}{}
			codes = append(codes, string(e.err.Code))
		}
	}
	return codes
}

// Clear removes all tracked errors.
func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry)
}
