package resolve

import (
	"fmt"
	"sync"
)

// Phase is a step of a resolution pass.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCacheBuilding
	PhaseResolving
	PhaseExternalStubbing
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCacheBuilding:
		return "cache_building"
	case PhaseResolving:
		return "resolving"
	case PhaseExternalStubbing:
		return "external_stubbing"
	case PhaseDone:
		return "done"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// State is the current phase and, while resolving, the kind that last
// started.
type State struct {
	Phase Phase
	Kind  Kind
}

func (s State) String() string {
	if s.Phase == PhaseResolving {
		return fmt.Sprintf("%s(%s)", s.Phase, s.Kind)
	}
	return s.Phase.String()
}

// Tracker enforces the phase order of a pass:
//
//	Idle -> CacheBuilding -> Resolving(kind)... -> ExternalStubbing -> Done
//
// A pass may restart from Done, and any phase may reset to Idle when the
// pass is abandoned. Kinds resolve concurrently, so Resolving may be
// entered repeatedly.
type Tracker struct {
	mu       sync.Mutex
	state    State
	observer func(State)
}

// NewTracker creates a tracker in the Idle phase. observer, if set, is
// called with each new state while the tracker's lock is held.
func NewTracker(observer func(State)) *Tracker {
	return &Tracker{observer: observer}
}

// Current returns the current state.
func (t *Tracker) Current() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Enter moves to next, failing if the move skips a phase.
func (t *Tracker) Enter(next State) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !allowed(t.state.Phase, next.Phase) {
		return fmt.Errorf("illegal resolution phase change %s -> %s", t.state, next)
	}
	t.state = next
	if t.observer != nil {
		t.observer(next)
	}
	return nil
}

// Reset returns to Idle unconditionally.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = State{Phase: PhaseIdle}
	if t.observer != nil {
		t.observer(t.state)
	}
}

func allowed(from, to Phase) bool {
	switch to {
	case PhaseIdle:
		return true
	case PhaseCacheBuilding:
		return from == PhaseIdle || from == PhaseDone
	case PhaseResolving:
		return from == PhaseCacheBuilding || from == PhaseResolving
	case PhaseExternalStubbing:
		return from == PhaseCacheBuilding || from == PhaseResolving
	case PhaseDone:
		return from == PhaseExternalStubbing
	}
	return false
}
