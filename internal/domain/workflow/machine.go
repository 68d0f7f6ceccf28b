// Package workflow tracks the lifecycle of a trace run as a small state
// machine: a run starts RUNNING and ends in exactly one terminal state.
package workflow

import (
	"fmt"
	"sort"
)

// GuardFunc evaluates whether a transition should be taken
type GuardFunc func() bool

type transition struct {
	to    State
	guard GuardFunc
}

// Machine holds the current state and the permitted transitions
type Machine struct {
	state       State
	transitions map[State]map[Trigger][]transition
}

// NewMachine creates a machine in initial with no transitions
func NewMachine(initial State) *Machine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initial))
	}
	return &Machine{
		state:       initial,
		transitions: make(map[State]map[Trigger][]transition),
	}
}

// NewRunMachine creates the lifecycle of a single trace run
func NewRunMachine() *Machine {
	return NewMachine(StateRunning).
		Permit(StateRunning, TriggerTerminate, StateCompleted).
		Permit(StateRunning, TriggerExhaust, StateTruncated).
		Permit(StateRunning, TriggerFail, StateFailed)
}

// Permit allows trigger to move the machine from one state to another
func (m *Machine) Permit(from State, trigger Trigger, to State) *Machine {
	return m.PermitIf(from, trigger, to, nil)
}

// PermitIf is Permit with a guard. Transitions of one trigger are tried in
// the order they were added and the first passing guard wins.
func (m *Machine) PermitIf(from State, trigger Trigger, to State, guard GuardFunc) *Machine {
	if !from.IsValid() || !to.IsValid() {
		panic(fmt.Sprintf("invalid transition: %s -> %s", from, to))
	}
	byTrigger, ok := m.transitions[from]
	if !ok {
		byTrigger = make(map[Trigger][]transition)
		m.transitions[from] = byTrigger
	}
	byTrigger[trigger] = append(byTrigger[trigger], transition{to: to, guard: guard})
	return m
}

// State returns the current state
func (m *Machine) State() State {
	return m.state
}

// CanFire returns true if trigger has a transition from the current state.
// Guards are not evaluated.
func (m *Machine) CanFire(trigger Trigger) bool {
	return len(m.transitions[m.state][trigger]) > 0
}

// Fire moves the machine along the first transition of trigger whose guard
// passes
func (m *Machine) Fire(trigger Trigger) error {
	candidates := m.transitions[m.state][trigger]
	if len(candidates) == 0 {
		return fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, m.state)
	}

	for _, t := range candidates {
		if t.guard == nil || t.guard() {
			m.state = t.to
			return nil
		}
	}

	return fmt.Errorf("%w: trigger %s from state %s", ErrGuardFailed, trigger, m.state)
}

// PermittedTriggers returns the triggers of the current state, sorted
func (m *Machine) PermittedTriggers() []Trigger {
	triggers := make([]Trigger, 0, len(m.transitions[m.state]))
	for trigger := range m.transitions[m.state] {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
