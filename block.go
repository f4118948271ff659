package specsim

// HeaderRuleKind distinguishes the three block-scope policies consulted,
// in LIFO order, when an event matches neither an ordered expectation nor
// an in-progress unordered/answer-request label.
type HeaderRuleKind uint8

const (
	// HeaderWhitelist forwards the event (self-and-forward) without
	// consuming an expectation.
	HeaderWhitelist HeaderRuleKind = iota
	// HeaderDrop consumes the event without forwarding (self-and-drop).
	HeaderDrop
	// HeaderBlacklist drives the simulator to the error state.
	HeaderBlacklist
)

// HeaderRule is one block-scope policy entry: a predicate over a symbol
// and the action to take when it matches.
type HeaderRule struct {
	Kind  HeaderRuleKind
	Match func(s Symbol) bool
}

// star is the Block.Count sentinel for Kleene closure (0..∞ iterations).
const star = -1

// EntryFunc runs once per block iteration, outer-to-inner across the
// parent chain, before the block's own body begins.
type EntryFunc func()

// Block is a lexical scope with iteration semantics (a positive Repeat
// count, or Kleene/star) and scope-wide header rules. Blocks form a tree;
// the MainBlock is the root, has Count 1, no parent, and never closes.
//
// Expected and Pending are the block's own (unordered-set-free) ordered
// expectations: Pending starts each iteration equal to Expected and
// strictly shrinks as labels are consumed, resetting to Expected on
// IterationComplete.
type Block struct {
	Parent *Block
	Count  int // positive, or star for Kleene
	Entry  EntryFunc

	Expected []Label
	Pending  []Label

	Headers []HeaderRule // consulted LIFO: last registered wins first

	currentCount       int
	currentlyExecuting bool
	canRunEntryFunction bool
}

// NewMainBlock constructs the root block: count 1, no parent, never
// closes.
func NewMainBlock() *Block {
	return &Block{Count: 1, currentCount: 1, canRunEntryFunction: true}
}

// NewChildBlock constructs a block nested under parent with the given
// iteration count (use star for Kleene).
func NewChildBlock(parent *Block, count int, entry EntryFunc) *Block {
	return &Block{
		Parent:              parent,
		Count:               count,
		Entry:               entry,
		currentCount:        count,
		canRunEntryFunction: true,
	}
}

// IsMain reports whether b is the root MainBlock.
func (b *Block) IsMain() bool {
	return b.Parent == nil
}

// IsKleene reports whether b has unbounded (star) iteration count.
func (b *Block) IsKleene() bool {
	return b.Count == star
}

// Ancestors returns b's parent chain, outermost first, not including b
// itself. Used for the entry-function cascade and for block-reset
// ancestor checks.
func (b *Block) Ancestors() []*Block {
	var chain []*Block
	for p := b.Parent; p != nil; p = p.Parent {
		chain = append([]*Block{p}, chain...)
	}
	return chain
}

// IsAncestorOf reports whether b is an ancestor of other (strict: b != other).
func (b *Block) IsAncestorOf(other *Block) bool {
	for p := other.Parent; p != nil; p = p.Parent {
		if p == b {
			return true
		}
	}
	return false
}

// resetPending reloads Pending from Expected, clears each UnorderedLabel's
// interior progress, and — per the resolved Open Question in SPEC_FULL.md
// — always clears currentlyExecuting, Kleene or not, so a killed iteration
// can be re-entered cleanly.
func (b *Block) resetPending() {
	b.Pending = append([]Label(nil), b.Expected...)
	for _, l := range b.Pending {
		if u, ok := l.(*UnorderedLabel); ok {
			u.reset()
		}
	}
	b.currentlyExecuting = false
	b.canRunEntryFunction = true
}

// consume removes the first Pending label matching predicate match,
// returning it and true, or nil/false if none match.
func (b *Block) consume(match func(Label) bool) (Label, bool) {
	for i, l := range b.Pending {
		if match(l) {
			b.Pending = append(b.Pending[:i], b.Pending[i+1:]...)
			return l, true
		}
	}
	return nil, false
}

// HasPending reports whether any block-scoped expectation remains unmatched
// in the current iteration.
func (b *Block) HasPending() bool {
	return len(b.Pending) > 0
}

// IterationComplete decrements a bounded Repeat's remaining count (no-op
// for Kleene and for the MainBlock) and resets Pending for the next
// iteration. Returns true if the block still has iterations remaining
// (Kleene always does).
func (b *Block) IterationComplete() bool {
	if b.IsMain() {
		b.resetPending()
		return true
	}
	if b.IsKleene() {
		b.resetPending()
		return true
	}
	if b.currentCount > 0 {
		b.currentCount--
	}
	remaining := b.currentCount > 0
	b.resetPending()
	return remaining
}

// Close ends a block's run once IterationComplete has reported no
// iterations remaining: it clears currentlyExecuting and restores the
// iteration count, so an enclosing loop that re-enters the block gets the
// full count again. The MainBlock never closes.
func (b *Block) Close() {
	if b.IsMain() {
		return
	}
	b.currentlyExecuting = false
	b.currentCount = b.Count
}

// Exhausted reports whether a bounded Repeat has no iterations left (until
// Close restores its count). Always false for Kleene and the MainBlock.
func (b *Block) Exhausted() bool {
	if b.IsMain() || b.IsKleene() {
		return false
	}
	return b.currentCount <= 0
}

// runEntry runs b's own entry function once per iteration, guarded by
// canRunEntryFunction so repeated epsilon-closure walks within the same
// iteration don't re-run it.
func (b *Block) runEntry() {
	if !b.canRunEntryFunction {
		return
	}
	b.canRunEntryFunction = false
	b.currentlyExecuting = true
	if b.Entry != nil {
		b.Entry()
	}
}

// matchHeader consults Headers LIFO and returns the first matching rule.
func (b *Block) matchHeader(s Symbol) (HeaderRule, bool) {
	for i := len(b.Headers) - 1; i >= 0; i-- {
		if b.Headers[i].Match(s) {
			return b.Headers[i], true
		}
	}
	return HeaderRule{}, false
}
