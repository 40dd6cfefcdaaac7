package engine

import (
	"context"
	"sync"
)

// State is the engine's lifecycle state.
type State string

// Lifecycle states. The engine dispatches requests only while ready.
const (
	StateStarting State = "starting"
	StateReady    State = "ready"
	StateDraining State = "draining"
	StateStopped  State = "stopped"
)

// StateMachine tracks the engine lifecycle. Optimize calls are admitted
// only in StateReady; Shutdown moves through draining so in-flight requests
// finish before the process exits.
type StateMachine struct {
	mu         sync.RWMutex
	state      State
	reason     string
	cancelFunc context.CancelFunc // set externally, called on StateStopped
}

// NewStateMachine creates a StateMachine in StateStarting.
func NewStateMachine() *StateMachine {
	return &StateMachine{state: StateStarting}
}

// State returns the current lifecycle state.
func (sm *StateMachine) State() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state
}

// Reason returns the human-readable reason for the current state.
func (sm *StateMachine) Reason() string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.reason
}

// Ready reports whether requests may be dispatched.
func (sm *StateMachine) Ready() bool {
	return sm.State() == StateReady
}

// SetCancelFunc registers the context cancel function called on StateStopped.
func (sm *StateMachine) SetCancelFunc(cancel context.CancelFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.cancelFunc = cancel
}

// TransitionTo sets the state with a reason. Moving to StateStopped fires
// the registered cancel function.
func (sm *StateMachine) TransitionTo(state State, reason string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.state = state
	sm.reason = reason
	if state == StateStopped && sm.cancelFunc != nil {
		sm.cancelFunc()
	}
}
