package specsim

// Arena owns every State created while compiling one specification. States
// reference each other by StateID so the graph can be cyclic (loop
// back-edges) without pointer cycles complicating ownership.
type Arena struct {
	states []*State
}

// NewArena returns an empty Arena.
func NewArena() *Arena { return &Arena{} }

// newState allocates a fresh State owned by block.
func (a *Arena) newState(block *Block) *State {
	s := &State{ID: StateID(len(a.states)), Block: block}
	a.states = append(a.states, s)
	return s
}

// State returns the state with the given id.
func (a *Arena) State(id StateID) *State { return a.states[id] }

// fragment is a sub-automaton under construction: an entry state and the
// final state it must eventually reach. Fragments compose by splicing:
// a later fragment's Start becomes folded into an earlier fragment's Final.
type fragment struct {
	Start StateID
	Final StateID
}

// Base builds a single labeled transition from a fresh start to the
// provided final state, within block.
func Base(a *Arena, block *Block, label Label, final StateID, forward bool) fragment {
	start := a.newState(block)
	start.Out = append(start.Out, Transition{Label: label, Target: final, ForwardEvent: forward})
	return fragment{Start: start.ID, Final: final}
}

// internalState builds a single active state firing label (an
// InternalLabel) unconditionally toward final, within block.
func internalState(a *Arena, block *Block, label *InternalLabel, final StateID) fragment {
	start := a.newState(block)
	start.Internal = &Transition{Label: label, Target: final}
	return fragment{Start: start.ID, Final: final}
}

// Repeat builds a bounded-repetition fragment: block's body (built by
// bodyBuilder, called once to get the body fragment terminating in a
// fresh repeat-end state) is chained block.Count times conceptually via a
// single shared body fragment with a loop edge back to its own start and
// an exit edge to final. The returned fragment's Start carries
// isRepeatStart; its terminal loop/exit slots live on the repeat-end
// state itself.
func Repeat(a *Arena, block *Block, body func(entryState StateID) fragment, final StateID) fragment {
	end := a.newState(block)
	end.flags |= flagRepeatEnd
	end.LoopTarget = 0 // patched below once body.Start is known
	end.hasLoop = true
	end.ExitTarget = final
	end.hasExit = true

	b := body(end.ID)
	a.State(b.Start).flags |= flagRepeatStart
	end.LoopTarget = b.Start

	return fragment{Start: b.Start, Final: end.ID}
}

// Kleene builds a zero-or-more fragment: like Repeat, but the start also
// carries an epsilon edge directly to final (permitting zero traversals),
// and the terminal has only a loop edge (no bounded exit — it always
// loops or, via the start's own epsilon edge on the *next* pass through
// closure, is bypassed).
func Kleene(a *Arena, block *Block, body func(entryState StateID) fragment, final StateID) fragment {
	end := a.newState(block)
	end.flags |= flagKleeneEnd
	end.hasLoop = true
	end.ExitTarget = final
	end.hasExit = true // never followed: settle always takes LoopTarget for a Kleene end; leaving the loop goes through the start's epsilon edge

	b := body(end.ID)
	start := a.State(b.Start)
	start.flags |= flagKleeneStart
	start.Out = append(start.Out, Transition{Label: Epsilon, Target: final})
	end.LoopTarget = b.Start

	return fragment{Start: b.Start, Final: end.ID}
}

// Conditional builds a fresh start with epsilon edges to each branch's
// start; every branch must independently terminate at final. Returns
// ErrEmptyBranch if branches (the already-built per-branch fragment list)
// is empty; a branch with zero statements is rejected earlier, by
// linkBlock.
func Conditional(a *Arena, block *Block, branches []fragment) (fragment, error) {
	if len(branches) == 0 {
		return fragment{}, ErrEmptyBranch
	}
	start := a.newState(block)
	for _, br := range branches {
		start.Out = append(start.Out, Transition{Label: Epsilon, Target: br.Start})
	}
	// All branches share the same Final by construction (the caller
	// builds each branch against the same pre-allocated final state id).
	return fragment{Start: start.ID, Final: branches[0].Final}, nil
}

// epsilonClosure computes (and memoizes on the State) the set of states
// reachable from id by zero or more epsilon transitions, satisfying the
// fixed-point property closure(closure(S)) == closure(S):
// a state's own closure always contains itself, and re-closing an
// already-closed set changes nothing because Epsilon-only transitions are
// the sole expansion rule and every member's own closure is itself
// memoized as a fixed point on first computation.
func epsilonClosure(a *Arena, id StateID) []StateID {
	s := a.State(id)
	if s.closure != nil {
		return s.closure
	}
	seen := map[StateID]bool{id: true}
	queue := []StateID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, t := range a.State(cur).Out {
			if t.Label.kind() != kindEpsilon {
				continue
			}
			if !seen[t.Target] {
				seen[t.Target] = true
				queue = append(queue, t.Target)
			}
		}
	}
	out := make([]StateID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	s.closure = out
	return out
}

// closureSet computes the union of epsilonClosure over every id in ids,
// de-duplicated.
func closureSet(a *Arena, ids []StateID) []StateID {
	seen := map[StateID]bool{}
	var out []StateID
	for _, id := range ids {
		for _, c := range epsilonClosure(a, id) {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}
