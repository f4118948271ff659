package specsim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestController_BasicExpectAndTriggerRunsToSuccess drives scenario 1
// through the Controller/EventSource boundary rather than the Simulator
// directly: OnEvent processes inline, and the approved Pong forwards to
// downstream.
func TestController_BasicExpectAndTriggerRunsToSuccess(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Body())
	require.NoError(t, b.Trigger(func() (Event, error) { return pingEvent{0}, nil }, "out"))
	require.NoError(t, b.Expect(&EventLabel{Expected: pongEvent{0}, Port: "in", Direction: In}))

	spec, err := b.Construct()
	require.NoError(t, err)

	eff := newFakeEffector()
	downstream := newFakeEventSource()
	ctrl, err := NewController(spec, eff, downstream)
	require.NoError(t, err)

	ctrl.OnEvent(NewSymbol(pongEvent{0}, "in", In))

	ok, err := ctrl.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	forwarded := downstream.forwarded()
	require.Len(t, forwarded, 1)
	assert.Equal(t, pongEvent{0}, forwarded[0].Event)
}

// TestController_RepeatCountMismatchTimesOutToFail validates the
// watchdog-completion fix (scenario 2): a Repeat(3) loop fed only two
// matches never reaches final, and the run has nothing left to process —
// the watchdog's quiescence check must settle Result false once its
// timeout elapses, rather than hang.
func TestController_RepeatCountMismatchTimesOutToFail(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.SetTimeout(15*time.Millisecond))
	require.NoError(t, b.Body())
	require.NoError(t, b.Repeat(3, nil))
	require.NoError(t, b.Body())
	require.NoError(t, b.Expect(&EventLabel{Expected: pingEvent{1}, Port: "p", Direction: In}))
	require.NoError(t, b.End())

	spec, err := b.Construct()
	require.NoError(t, err)

	ctrl, err := NewController(spec, newFakeEffector(), newFakeEventSource())
	require.NoError(t, err)

	ctrl.OnEvent(NewSymbol(pingEvent{1}, "p", In))
	ctrl.OnEvent(NewSymbol(pingEvent{1}, "p", In))

	ok, err := ctrl.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, ctrl.Errored())
}

// TestController_UnorderedBatchForwardsAllQueuedMembers is the
// Controller-level counterpart of the Unordered AlsoForward simulator
// test: every queued member must actually reach downstream, not just the
// member that completed the set.
func TestController_UnorderedBatchForwardsAllQueuedMembers(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Body())
	require.NoError(t, b.Unordered(false))
	require.NoError(t, b.Expect(&EventLabel{Expected: pingEvent{1}, Port: "a", Direction: In}))
	require.NoError(t, b.Expect(&EventLabel{Expected: pingEvent{2}, Port: "b", Direction: In}))
	require.NoError(t, b.End())

	spec, err := b.Construct()
	require.NoError(t, err)

	downstream := newFakeEventSource()
	ctrl, err := NewController(spec, newFakeEffector(), downstream)
	require.NoError(t, err)

	ctrl.OnEvent(NewSymbol(pingEvent{2}, "b", In))
	ctrl.OnEvent(NewSymbol(pingEvent{1}, "a", In))

	ok, err := ctrl.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	forwarded := downstream.forwarded()
	require.Len(t, forwarded, 2)
	assert.Equal(t, pingEvent{2}, forwarded[0].Event)
	assert.Equal(t, pingEvent{1}, forwarded[1].Event)
}

// TestController_RunIsNotReentrant matches the teacher's own run-once
// convention for long-lived loop/controller types.
func TestController_RunIsNotReentrant(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Body())
	require.NoError(t, b.Expect(&EventLabel{Expected: pingEvent{1}, Port: "p", Direction: In}))
	spec, err := b.Construct()
	require.NoError(t, err)

	ctrl, err := NewController(spec, newFakeEffector(), newFakeEventSource())
	require.NoError(t, err)

	ctrl.OnEvent(NewSymbol(pingEvent{1}, "p", In))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _ = ctrl.Run(ctx)

	_, err = ctrl.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRan)
}

// TestController_BlacklistedEventFailsRun validates that a blacklisted
// header-rule match drives the run to failure via Result, not just the
// Simulator's own error state.
func TestController_BlacklistedEventFailsRun(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Blacklist(func(s Symbol) bool { return s.Port == "forbidden" }))
	require.NoError(t, b.Body())
	require.NoError(t, b.Expect(&EventLabel{Expected: pingEvent{1}, Port: "p", Direction: In}))
	spec, err := b.Construct()
	require.NoError(t, err)

	ctrl, err := NewController(spec, newFakeEffector(), newFakeEventSource())
	require.NoError(t, err)

	ctrl.OnEvent(NewSymbol(pingEvent{9}, "forbidden", In))

	ok, err := ctrl.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, ctrl.Errored())
}
