package specsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase_SingleTransition(t *testing.T) {
	a := NewArena()
	final := a.newState(NewMainBlock()).ID
	block := NewMainBlock()
	l := &EventLabel{Expected: pingEvent{1}, Port: "p"}

	frag := Base(a, block, l, final, true)
	start := a.State(frag.Start)
	require.Len(t, start.Out, 1)
	assert.Same(t, l, start.Out[0].Label)
	assert.Equal(t, final, start.Out[0].Target)
	assert.True(t, start.Out[0].ForwardEvent)
	assert.Equal(t, final, frag.Final)
}

func TestEpsilonClosure_IsFixedPoint(t *testing.T) {
	a := NewArena()
	block := NewMainBlock()
	c := a.newState(block)
	b := a.newState(block)
	b.Out = append(b.Out, Transition{Label: Epsilon, Target: c.ID})
	aState := a.newState(block)
	aState.Out = append(aState.Out, Transition{Label: Epsilon, Target: b.ID})

	closure := epsilonClosure(a, aState.ID)
	assert.ElementsMatch(t, []StateID{aState.ID, b.ID, c.ID}, closure)

	// Re-closing an already-closed set must not change it.
	again := closureSet(a, closure)
	assert.ElementsMatch(t, closure, again)
}

func TestRepeat_WiresLoopAndExit(t *testing.T) {
	a := NewArena()
	main := NewMainBlock()
	block := NewChildBlock(main, 3, nil)
	final := a.newState(main).ID

	frag := Repeat(a, block, func(entryState StateID) fragment {
		body := a.newState(block)
		body.Out = append(body.Out, Transition{Label: Epsilon, Target: entryState})
		return fragment{Start: body.ID, Final: entryState}
	}, final)

	startState := a.State(frag.Start)
	assert.True(t, startState.IsRepeatStart())

	endState := a.State(frag.Final)
	assert.True(t, endState.IsRepeatEnd())
	assert.Equal(t, final, endState.ExitTarget)
	assert.Equal(t, frag.Start, endState.LoopTarget)
}

func TestKleene_StartHasEpsilonBypass(t *testing.T) {
	a := NewArena()
	main := NewMainBlock()
	block := NewChildBlock(main, star, nil)
	final := a.newState(main).ID

	frag := Kleene(a, block, func(entryState StateID) fragment {
		body := a.newState(block)
		return fragment{Start: body.ID, Final: entryState}
	}, final)

	startState := a.State(frag.Start)
	require.True(t, startState.IsKleeneStart())

	var sawBypass bool
	for _, out := range startState.Out {
		if out.Label.kind() == kindEpsilon && out.Target == final {
			sawBypass = true
		}
	}
	assert.True(t, sawBypass, "kleene start must carry an epsilon edge directly to final")
}

func TestConditional_RequiresNonEmptyBranches(t *testing.T) {
	a := NewArena()
	_, err := Conditional(a, NewMainBlock(), nil)
	assert.ErrorIs(t, err, ErrEmptyBranch)
}

func TestConditional_BranchesShareFinal(t *testing.T) {
	a := NewArena()
	block := NewMainBlock()
	final := a.newState(block).ID
	br1 := Base(a, block, &EventLabel{Port: "a"}, final, false)
	br2 := Base(a, block, &EventLabel{Port: "b"}, final, false)

	frag, err := Conditional(a, block, []fragment{br1, br2})
	require.NoError(t, err)

	start := a.State(frag.Start)
	require.Len(t, start.Out, 2)
	assert.Equal(t, br1.Start, start.Out[0].Target)
	assert.Equal(t, br2.Start, start.Out[1].Target)
	assert.Equal(t, final, frag.Final)
}
