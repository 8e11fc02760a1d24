package statemachine

import (
	"fmt"
	"sync"
)

// State is a named state in the machine.
type State string

// Event is a named trigger for a transition.
type Event string

// Guard evaluates whether a transition may proceed.
type Guard func(from State, event Event) bool

// Action runs after a successful transition.
type Action func(from, to State, event Event)

// Transition moves the machine from one state to another on an event.
type Transition struct {
	From   State
	To     State
	Event  Event
	Guard  Guard  // optional; must return true for the transition to fire
	Action Action // optional; runs after the state change, under the lock
}

// Machine is a small thread-safe finite state machine. Transitions are
// registered up front and fired centrally, so callers never infer state from
// flag combinations.
type Machine struct {
	initial     State
	current     State
	transitions map[State]map[Event]Transition
	mu          sync.RWMutex
}

// New creates a machine in the given initial state.
func New(initial State, transitions ...Transition) (*Machine, error) {
	m := &Machine{
		initial:     initial,
		current:     initial,
		transitions: make(map[State]map[Event]Transition),
	}
	for _, t := range transitions {
		if t.From == "" || t.To == "" || t.Event == "" {
			return nil, ErrInvalidTransition
		}
		if _, ok := m.transitions[t.From]; !ok {
			m.transitions[t.From] = make(map[Event]Transition)
		}
		if _, dup := m.transitions[t.From][t.Event]; dup {
			return nil, fmt.Errorf("%w: duplicate %s on %s", ErrInvalidTransition, t.Event, t.From)
		}
		m.transitions[t.From][t.Event] = t
	}
	return m, nil
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Is reports whether the machine is currently in the given state.
func (m *Machine) Is(s State) bool {
	return m.Current() == s
}

// Fire applies the event to the current state. It returns
// ErrNoTransition when the event is not valid in the current state and
// ErrGuardRejected when a guard vetoes it.
func (m *Machine) Fire(event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transitions[m.current][event]
	if !ok {
		return fmt.Errorf("%w: %s in state %s", ErrNoTransition, event, m.current)
	}
	if t.Guard != nil && !t.Guard(m.current, event) {
		return fmt.Errorf("%w: %s in state %s", ErrGuardRejected, event, m.current)
	}

	from := m.current
	m.current = t.To
	if t.Action != nil {
		t.Action(from, t.To, event)
	}
	return nil
}

// CanFire reports whether the event would be accepted in the current state.
func (m *Machine) CanFire(event Event) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.transitions[m.current][event]
	if !ok {
		return false
	}
	return t.Guard == nil || t.Guard(m.current, event)
}

// Reset returns the machine to its initial state.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.initial
}
