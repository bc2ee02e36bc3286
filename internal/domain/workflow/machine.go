package workflow

import (
	"context"
	"fmt"
)

// GuardFunc evaluates whether a transition should be allowed
type GuardFunc func(ctx context.Context) bool

// StateMachine tracks the current state of one invoice and validates
// transitions so illegal jumps (e.g. Generated back to Processing) are
// structurally impossible.
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is permitted in the current state
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers that can be fired in the current state
	PermittedTriggers() []Trigger
}

// transition is a target state with an optional guard
type transition struct {
	toState State
	guard   GuardFunc
}

// Builder configures the transition table for a state machine
type Builder struct {
	table map[State]map[Trigger]transition
}

// NewBuilder creates an empty state machine builder
func NewBuilder() *Builder {
	return &Builder{table: make(map[State]map[Trigger]transition)}
}

// Permit allows a trigger to move from one state to another
func (b *Builder) Permit(from State, trigger Trigger, to State) *Builder {
	return b.PermitIf(from, trigger, to, nil)
}

// PermitIf allows a trigger to move between states when the guard passes
func (b *Builder) PermitIf(from State, trigger Trigger, to State, guard GuardFunc) *Builder {
	if !from.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", from))
	}
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", to))
	}
	if b.table[from] == nil {
		b.table[from] = make(map[Trigger]transition)
	}
	b.table[from][trigger] = transition{toState: to, guard: guard}
	return b
}

// Build creates a machine positioned at the given initial state. The
// transition table is copied so machines built from the same builder
// do not share mutable state.
func (b *Builder) Build(initial State) StateMachine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initial))
	}
	table := make(map[State]map[Trigger]transition, len(b.table))
	for from, triggers := range b.table {
		cp := make(map[Trigger]transition, len(triggers))
		for tr, t := range triggers {
			cp[tr] = t
		}
		table[from] = cp
	}
	return &stateMachine{currentState: initial, table: table}
}

// NewInvoiceLifecycle builds the standard submission lifecycle machine:
// Pending -> Processing -> {Generated, Failed, TallyUpdFailed}.
func NewInvoiceLifecycle() StateMachine {
	return NewBuilder().
		Permit(StatePending, TriggerProcess, StateProcessing).
		Permit(StateProcessing, TriggerGenerate, StateGenerated).
		Permit(StateProcessing, TriggerFail, StateFailed).
		Permit(StateProcessing, TriggerDeferWriteback, StateTallyUpdFailed).
		Build(StatePending)
}

type stateMachine struct {
	currentState State
	table        map[State]map[Trigger]transition
}

// State returns the current state
func (m *stateMachine) State() State {
	return m.currentState
}

// CanFire returns true if the trigger is permitted in the current state
func (m *stateMachine) CanFire(trigger Trigger) bool {
	_, ok := m.table[m.currentState][trigger]
	return ok
}

// Fire attempts to execute the trigger, transitioning to the new state if allowed
func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	t, ok := m.table[m.currentState][trigger]
	if !ok {
		return fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, m.currentState)
	}
	if t.guard != nil && !t.guard(ctx) {
		return fmt.Errorf("%w: trigger %s from state %s", ErrGuardFailed, trigger, m.currentState)
	}
	m.currentState = t.toState
	return nil
}

// PermittedTriggers returns all triggers that can be fired in the current state
func (m *stateMachine) PermittedTriggers() []Trigger {
	triggers := make([]Trigger, 0, len(m.table[m.currentState]))
	for tr := range m.table[m.currentState] {
		triggers = append(triggers, tr)
	}
	return triggers
}
