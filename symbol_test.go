package specsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingEvent struct{ n int }

func TestNewSymbol_DefaultsForwardTrue(t *testing.T) {
	s := NewSymbol(pingEvent{1}, "out", Out)
	assert.True(t, s.Forward)
	assert.False(t, s.Fault)
	assert.Equal(t, Port("out"), s.Port)
	assert.Equal(t, Out, s.Direction)
}

func TestNewFaultSymbol(t *testing.T) {
	cause := assertError("boom")
	s := NewFaultSymbol(cause)
	require.True(t, s.Fault)
	assert.Equal(t, ControlPort, s.Port)
	assert.Equal(t, Out, s.Direction)
	assert.Equal(t, cause, s.Event)
}

func TestDirection_String(t *testing.T) {
	assert.Equal(t, "in", In.String())
	assert.Equal(t, "out", Out.String())
	assert.Contains(t, Direction(99).String(), "Direction")
}

func TestSymbol_String_DistinguishesFault(t *testing.T) {
	ordinary := NewSymbol(pingEvent{1}, "p", In)
	fault := NewFaultSymbol(assertError("boom"))
	assert.NotContains(t, ordinary.String(), "fault")
	assert.Contains(t, fault.String(), "fault")
}

// assertError is a tiny error helper so this file doesn't need to import
// "errors" solely for one-off fixtures.
type assertError string

func (e assertError) Error() string { return string(e) }
