// Package statemachine is a generic finite-state-machine engine. Each
// entity kind supplies its own state set, initial state, terminal states
// and transition table; the engine only answers whether an event is legal
// from a given state and what state it leads to.
package statemachine

import (
	"errors"
	"fmt"
)

type State string

type Event string

// Transition is one legal (from, event) -> to edge.
type Transition struct {
	From  State
	Event Event
	To    State
}

var ErrIllegalTransition = errors.New("illegal_transition")

type Machine struct {
	name     string
	initial  State
	terminal map[State]bool
	table    map[State]map[Event]State
}

func New(name string, initial State, terminals []State, transitions []Transition) *Machine {
	m := &Machine{
		name:     name,
		initial:  initial,
		terminal: make(map[State]bool, len(terminals)),
		table:    make(map[State]map[Event]State),
	}
	for _, s := range terminals {
		m.terminal[s] = true
	}
	for _, t := range transitions {
		if m.terminal[t.From] {
			panic(fmt.Sprintf("statemachine %s: transition out of terminal state %s", name, t.From))
		}
		edges, ok := m.table[t.From]
		if !ok {
			edges = make(map[Event]State)
			m.table[t.From] = edges
		}
		edges[t.Event] = t.To
	}
	return m
}

func (m *Machine) Name() string { return m.name }

func (m *Machine) Initial() State { return m.initial }

func (m *Machine) IsTerminal(s State) bool { return m.terminal[s] }

func (m *Machine) CanTransition(current State, event Event) bool {
	edges, ok := m.table[current]
	if !ok {
		return false
	}
	_, ok = edges[event]
	return ok
}

// Apply resolves the event against the transition table. The returned
// error wraps ErrIllegalTransition with the machine, state and event so
// the request boundary can surface a precise message.
func (m *Machine) Apply(current State, event Event) (State, error) {
	edges, ok := m.table[current]
	if ok {
		if next, ok := edges[event]; ok {
			return next, nil
		}
	}
	return "", fmt.Errorf("%w: %s cannot %q from %q", ErrIllegalTransition, m.name, event, current)
}

// Events lists the events legal from the given state, in no particular
// order. Used by handlers to report available actions.
func (m *Machine) Events(current State) []Event {
	edges := m.table[current]
	events := make([]Event, 0, len(edges))
	for ev := range edges {
		events = append(events, ev)
	}
	return events
}
