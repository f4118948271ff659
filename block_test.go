package specsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMainBlock_NeverCloses(t *testing.T) {
	main := NewMainBlock()
	assert.True(t, main.IsMain())
	assert.False(t, main.Exhausted())
	main.Close()
	assert.False(t, main.Exhausted())
}

func TestBlock_RepeatCount_DecrementsAndCloses(t *testing.T) {
	b := NewChildBlock(NewMainBlock(), 2, nil)
	assert.False(t, b.IsKleene())

	assert.True(t, b.IterationComplete()) // 2 -> 1 remaining
	assert.False(t, b.Exhausted())
	assert.False(t, b.IterationComplete()) // 1 -> 0 remaining
	assert.True(t, b.Exhausted())
}

func TestBlock_Kleene_NeverExhausts(t *testing.T) {
	b := NewChildBlock(NewMainBlock(), star, nil)
	assert.True(t, b.IsKleene())
	for i := 0; i < 5; i++ {
		assert.True(t, b.IterationComplete())
		assert.False(t, b.Exhausted())
	}
}

func TestBlock_PendingResetsToExpected(t *testing.T) {
	b := NewChildBlock(NewMainBlock(), 1, nil)
	l1 := &PredicateLabel{Port: "p"}
	l2 := &PredicateLabel{Port: "q"}
	b.Expected = []Label{l1, l2}
	b.Pending = append([]Label(nil), b.Expected...)

	_, ok := b.consume(func(l Label) bool { return l == l1 })
	require.True(t, ok)
	assert.True(t, b.HasPending())

	b.IterationComplete()
	assert.Equal(t, b.Expected, b.Pending)
}

func TestBlock_HeaderRules_LIFO(t *testing.T) {
	b := NewMainBlock()
	b.Headers = []HeaderRule{
		{Kind: HeaderWhitelist, Match: func(Symbol) bool { return true }},
		{Kind: HeaderBlacklist, Match: func(Symbol) bool { return true }},
	}
	rule, ok := b.matchHeader(Symbol{})
	require.True(t, ok)
	assert.Equal(t, HeaderBlacklist, rule.Kind, "last-registered header rule must win first")
}

func TestBlock_Ancestors_OutermostFirst(t *testing.T) {
	root := NewMainBlock()
	mid := NewChildBlock(root, 1, nil)
	leaf := NewChildBlock(mid, 1, nil)

	ancestors := leaf.Ancestors()
	require.Len(t, ancestors, 2)
	assert.Same(t, root, ancestors[0])
	assert.Same(t, mid, ancestors[1])
	assert.True(t, root.IsAncestorOf(leaf))
	assert.False(t, leaf.IsAncestorOf(root))
}

func TestBlock_ResetPending_ClearsUnorderedProgress(t *testing.T) {
	inner := &EventLabel{Expected: pingEvent{1}, Port: "p"}
	u := &UnorderedLabel{Inner: []singleLabel{inner}}
	matched, completed, _ := u.tryMatch(Symbol{Event: pingEvent{1}, Port: "p"})
	require.True(t, matched)
	require.True(t, completed)

	b := NewChildBlock(NewMainBlock(), 1, nil)
	b.Expected = []Label{u}
	b.resetPending()

	matched2, _, _ := u.tryMatch(Symbol{Event: pingEvent{1}, Port: "p"})
	assert.True(t, matched2, "reset should clear prior match progress")
}

func TestBlock_RunEntry_OnlyOncePerIteration(t *testing.T) {
	calls := 0
	b := NewChildBlock(NewMainBlock(), 1, func() { calls++ })
	b.runEntry()
	b.runEntry()
	assert.Equal(t, 1, calls)

	b.resetPending()
	b.runEntry()
	assert.Equal(t, 2, calls)
}

func TestBlock_Close_SetsNotCurrentlyExecuting(t *testing.T) {
	b := NewChildBlock(NewMainBlock(), 1, nil)
	b.runEntry()
	b.Close()
	assert.False(t, b.currentlyExecuting)
}
