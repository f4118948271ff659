package specsim

// StateID identifies a State within the Arena that owns it. Cyclic graphs
// (loop back-edges) are represented by transitions referencing targets by
// this small integer id rather than a pointer, so the current-states set
// can be a plain set of ids.
type StateID int

// stateFlags packs a State's marker flags into one value: final,
// repeat-start, repeat-end, kleene-start, kleene-end.
type stateFlags uint8

const (
	flagFinal stateFlags = 1 << iota
	flagRepeatStart
	flagRepeatEnd
	flagKleeneStart
	flagKleeneEnd
)

func (f stateFlags) has(bit stateFlags) bool { return f&bit != 0 }

// Transition is an edge of the compiled NFA: label plus target state, and
// whether the event this transition matches should be forwarded to its
// real recipient.
type Transition struct {
	Label        Label
	Target       StateID
	ForwardEvent bool
}

// State is one node of the compiled NFA.
type State struct {
	ID    StateID
	Block *Block

	Out      []Transition
	Internal *Transition // non-nil iff this state is "active"

	// Loop/exit slots, populated only for loop terminal states
	// (repeat-end / kleene-end): Loop re-enters the block's own start,
	// Exit proceeds past the block. The self case (stay put while
	// block-scoped expectations remain pending) needs no slot — it's
	// just "don't move s out of the current set".
	LoopTarget StateID
	ExitTarget StateID
	hasLoop    bool
	hasExit    bool

	flags stateFlags

	// ParentBlocks is the ordered (outer to inner) list of blocks whose
	// entry functions must cascade when this state is first entered as a
	// loop start.
	ParentBlocks []*Block

	closure []StateID // memoized epsilon closure, computed once on first use
}

// IsFinal reports whether reaching s ends the run successfully.
func (s *State) IsFinal() bool { return s.flags.has(flagFinal) }

// IsRepeatStart reports whether s begins a bounded-Repeat block's body.
func (s *State) IsRepeatStart() bool { return s.flags.has(flagRepeatStart) }

// IsRepeatEnd reports whether s is a bounded-Repeat block's loop terminal.
func (s *State) IsRepeatEnd() bool { return s.flags.has(flagRepeatEnd) }

// IsKleeneStart reports whether s begins a Kleene block's body (and
// therefore carries an epsilon edge permitting zero traversals).
func (s *State) IsKleeneStart() bool { return s.flags.has(flagKleeneStart) }

// IsKleeneEnd reports whether s is a Kleene block's loop terminal.
func (s *State) IsKleeneEnd() bool { return s.flags.has(flagKleeneEnd) }

// IsLoopEnd reports whether s is either loop flavour's terminal state.
func (s *State) IsLoopEnd() bool { return s.IsRepeatEnd() || s.IsKleeneEnd() }

// IsActive reports whether s fires an internal action without consuming
// input ("Active state").
func (s *State) IsActive() bool { return s.Internal != nil }
