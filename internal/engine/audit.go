package engine

import (
	"sync"
	"time"
)

// Decision is one dispatch outcome kept for the debug surface.
type Decision struct {
	Time       time.Time `json:"time"`
	RequestID  string    `json:"requestId"`
	Type       string    `json:"type"`
	Handler    string    `json:"handler"` // "cache", "builtin", or a plugin name
	Success    bool      `json:"success"`
	DurationMs float64   `json:"durationMs"`
	Error      string    `json:"error,omitempty"`
}

// DecisionLog is a fixed-size ring of recent dispatch decisions. Old
// entries are overwritten once the ring wraps.
type DecisionLog struct {
	mu   sync.Mutex
	ring []Decision
	next int
	full bool
}

// NewDecisionLog creates a ring holding up to size decisions.
func NewDecisionLog(size int) *DecisionLog {
	if size <= 0 {
		size = 128
	}
	return &DecisionLog{ring: make([]Decision, size)}
}

// Add records a decision, evicting the oldest once the ring is full.
func (l *DecisionLog) Add(d Decision) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ring[l.next] = d
	l.next++
	if l.next == len(l.ring) {
		l.next = 0
		l.full = true
	}
}

// Recent returns the stored decisions, newest first.
func (l *DecisionLog) Recent() []Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.next
	if l.full {
		n = len(l.ring)
	}
	out := make([]Decision, 0, n)
	for i := 0; i < n; i++ {
		idx := l.next - 1 - i
		if idx < 0 {
			idx += len(l.ring)
		}
		out = append(out, l.ring[idx])
	}
	return out
}
