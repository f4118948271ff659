package specsim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLabel_StructuralEquality(t *testing.T) {
	l := &EventLabel{Expected: pingEvent{1}, Port: "p", Direction: Out}
	assert.True(t, l.matches(Symbol{Event: pingEvent{1}, Port: "p", Direction: Out}))
	assert.False(t, l.matches(Symbol{Event: pingEvent{2}, Port: "p", Direction: Out}))
	assert.False(t, l.matches(Symbol{Event: pingEvent{1}, Port: "q", Direction: Out}))
	assert.False(t, l.matches(Symbol{Event: pingEvent{1}, Port: "p", Direction: Out, Fault: true}))
}

func TestEventLabel_CustomComparator(t *testing.T) {
	l := &EventLabel{
		Expected: pingEvent{1},
		Port:     "p",
		Comparator: func(expected, observed Event) bool {
			return observed.(pingEvent).n >= expected.(pingEvent).n
		},
	}
	assert.True(t, l.matches(Symbol{Event: pingEvent{5}, Port: "p"}))
	assert.False(t, l.matches(Symbol{Event: pingEvent{0}, Port: "p"}))
}

func TestPredicateLabel_Matches(t *testing.T) {
	l := &PredicateLabel{Port: "p", Predicate: func(e Event) bool { return e.(pingEvent).n > 0 }}
	assert.True(t, l.matches(Symbol{Event: pingEvent{1}, Port: "p"}))
	assert.False(t, l.matches(Symbol{Event: pingEvent{0}, Port: "p"}))
	assert.False(t, l.matches(Symbol{Event: pingEvent{1}, Port: "p", Fault: true}))
}

func TestFaultLabel_FiltersByClassAndPredicate(t *testing.T) {
	sentinel := errors.New("timeout")
	l := &FaultLabel{
		IsClass:   func(err error) bool { return errors.Is(err, sentinel) },
		Predicate: func(err error) bool { return err.Error() == "timeout" },
	}
	assert.True(t, l.matches(NewFaultSymbol(sentinel)))
	assert.False(t, l.matches(NewFaultSymbol(errors.New("other"))))
	assert.False(t, l.matches(Symbol{Event: sentinel})) // not a Fault symbol
}

func TestUnorderedLabel_CompletesAfterAllInnerMatch(t *testing.T) {
	a := &EventLabel{Expected: pingEvent{1}, Port: "a"}
	b := &EventLabel{Expected: pingEvent{2}, Port: "b"}
	u := &UnorderedLabel{Inner: []singleLabel{a, b}}

	matched, completed, _ := u.tryMatch(Symbol{Event: pingEvent{1}, Port: "a"})
	require.True(t, matched)
	assert.False(t, completed)

	matched, completed, _ = u.tryMatch(Symbol{Event: pingEvent{2}, Port: "b"})
	require.True(t, matched)
	assert.True(t, completed)

	// A third match against an already-satisfied inner label fails.
	matched, _, _ = u.tryMatch(Symbol{Event: pingEvent{1}, Port: "a"})
	assert.False(t, matched)
}

func TestUnorderedLabel_QueuesWhenNotForwardImmediately(t *testing.T) {
	a := &EventLabel{Expected: pingEvent{1}, Port: "a"}
	u := &UnorderedLabel{Inner: []singleLabel{a}, ForwardImmediately: false}

	_, completed, forwardNow := u.tryMatch(Symbol{Event: pingEvent{1}, Port: "a"})
	require.True(t, completed)
	assert.False(t, forwardNow)

	queued := u.drainQueued()
	require.Len(t, queued, 1)
	assert.Equal(t, pingEvent{1}, queued[0].Event)
	assert.Empty(t, u.drainQueued())
}

func TestAnswerRequestLabel_MatchesOutgoingOnly(t *testing.T) {
	l := &AnswerRequestLabel{Port: "req"}
	assert.True(t, l.matches(Symbol{Port: "req", Direction: Out}))
	assert.False(t, l.matches(Symbol{Port: "req", Direction: In}))
	assert.False(t, l.matches(Symbol{Port: "req", Direction: Out, Fault: true}))
}

func TestLabelKind_String(t *testing.T) {
	assert.Equal(t, "event", kindEvent.String())
	assert.Equal(t, "epsilon", kindEpsilon.String())
	assert.Contains(t, labelKind(99).String(), "unknown")
}
