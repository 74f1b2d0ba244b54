package statemachine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newDocMachine() *Machine {
	return New("doc", "draft",
		[]State{"accepted", "declined"},
		[]Transition{
			{From: "draft", Event: "send", To: "sent"},
			{From: "sent", Event: "accept", To: "accepted"},
			{From: "sent", Event: "decline", To: "declined"},
		},
	)
}

func TestApply(t *testing.T) {
	m := newDocMachine()

	next, err := m.Apply("draft", "send")
	assert.NoError(t, err)
	assert.Equal(t, State("sent"), next)

	next, err = m.Apply("sent", "accept")
	assert.NoError(t, err)
	assert.Equal(t, State("accepted"), next)
}

func TestApplyIllegal(t *testing.T) {
	m := newDocMachine()

	_, err := m.Apply("draft", "accept")
	assert.ErrorIs(t, err, ErrIllegalTransition)

	// No edges out of a terminal state.
	_, err = m.Apply("accepted", "send")
	assert.ErrorIs(t, err, ErrIllegalTransition)

	// Unknown state.
	_, err = m.Apply("bogus", "send")
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestCanTransition(t *testing.T) {
	m := newDocMachine()

	assert.True(t, m.CanTransition("draft", "send"))
	assert.False(t, m.CanTransition("draft", "decline"))
	assert.False(t, m.CanTransition("accepted", "send"))
}

func TestTerminalAndInitial(t *testing.T) {
	m := newDocMachine()

	assert.Equal(t, State("draft"), m.Initial())
	assert.True(t, m.IsTerminal("accepted"))
	assert.True(t, m.IsTerminal("declined"))
	assert.False(t, m.IsTerminal("sent"))
}

func TestEvents(t *testing.T) {
	m := newDocMachine()

	events := m.Events("sent")
	assert.ElementsMatch(t, []Event{"accept", "decline"}, events)
	assert.Empty(t, m.Events("accepted"))
}

func TestNewPanicsOnTransitionOutOfTerminal(t *testing.T) {
	assert.Panics(t, func() {
		New("bad", "a", []State{"b"}, []Transition{{From: "b", Event: "x", To: "a"}})
	})
}
