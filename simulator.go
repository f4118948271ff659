package specsim

import (
	"context"
	"sort"
)

// errorStateID is the sentinel "error state": once reached, the
// simulator's current-states set is cleared and every subsequent
// DoTransition call is a no-op returning the same error.
const errorStateID StateID = -1

// TransitionResult is the outcome of matching one symbol (or firing one
// round of internal transitions) against the compiled automaton.
type TransitionResult struct {
	// Forward indicates the Controller should deliver ForwardSymbol to
	// its real recipient.
	Forward bool
	// ForwardSymbol is the symbol to forward, valid only if Forward.
	ForwardSymbol Symbol
	// AlsoForward holds symbols that must be delivered before ForwardSymbol,
	// in match order. Populated when an UnorderedLabel with
	// ForwardImmediately=false completes: every earlier-matched, queued
	// member forwards now, in the order it matched, followed last by
	// ForwardSymbol itself (the member whose match completed the set).
	AlsoForward []Symbol
	// Final reports whether the automaton is, after this step, sitting
	// only in its final state.
	Final bool
	// Err is non-nil iff this step drove the automaton into the error
	// state.
	Err error
}

// Simulator holds the mutable runtime state of one compiled Spec's NFA:
// the current-states set, and everything needed to act on the environment
// (triggers, inspects, answer-request responses) as labels fire.
//
// Simulator is NOT safe for concurrent use; callers (the Controller) must
// serialize access under their own mutex.
type Simulator struct {
	spec     *Spec
	effector Effector
	current  map[StateID]bool
	err      *TransitionError
	log      []TransitionLogEntry
	logCap   int

	// ctx is the context of the in-progress DoTransition call, stashed so
	// deeply-nested matching helpers (answer-request batch firing) can
	// reach it without threading it through every call.
	ctx context.Context
}

// TransitionLogEntry is one row of the optional transition log.
type TransitionLogEntry struct {
	Symbol  string
	From    []StateID
	To      []StateID
	Forward bool
}

// NewSimulator seeds the current-states set from spec's entry closure and
// settles any loop-end states reachable without input (an empty Kleene
// block's terminal, for instance), running entry-function cascades as
// states are first entered.
func NewSimulator(spec *Spec, effector Effector) *Simulator {
	sim := &Simulator{spec: spec, effector: effector, current: map[StateID]bool{}, logCap: 4096}
	initial := closureSet(spec.Arena, spec.Entry)
	next := sim.settle(initial)
	sim.cascadeEntries(idsOfSet(next))
	sim.current = next
	return sim
}

func (sim *Simulator) ids() []StateID {
	out := make([]StateID, 0, len(sim.current))
	for id := range sim.current {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsFinal reports whether the current-states set consists solely of the
// spec's final state.
func (sim *Simulator) IsFinal() bool {
	return len(sim.current) == 1 && sim.current[sim.spec.Final]
}

// Errored reports whether the simulator has entered the error state.
func (sim *Simulator) Errored() bool { return sim.err != nil }

// Err returns the error that drove the simulator into the error state, if
// any.
func (sim *Simulator) Err() error {
	if sim.err == nil {
		return nil
	}
	return sim.err
}

// TransitionLog returns the transition log accumulated so far (oldest
// first, capped at logCap entries — oldest drop first once full).
func (sim *Simulator) TransitionLog() []TransitionLogEntry { return append([]TransitionLogEntry(nil), sim.log...) }

func (sim *Simulator) appendLog(e TransitionLogEntry) {
	sim.log = append(sim.log, e)
	if len(sim.log) > sim.logCap {
		sim.log = sim.log[len(sim.log)-sim.logCap:]
	}
}

func (sim *Simulator) enterError(te *TransitionError) TransitionResult {
	sim.err = te
	sim.current = map[StateID]bool{errorStateID: true}
	return TransitionResult{Err: te}
}

// DoTransition matches one symbol against the current-states set: required
// internal transitions first (while every state is active), then a symbol
// match, then forced internals as a fallback, then default-action
// policies.
func (sim *Simulator) DoTransition(ctx context.Context, s Symbol) TransitionResult {
	if sim.Errored() {
		return TransitionResult{Err: sim.err}
	}
	sim.ctx = ctx

	for sim.allActive() {
		res, progressed := sim.fireInternalRound(ctx, sim.ids())
		if !progressed {
			break
		}
		if res.Err != nil {
			return res
		}
	}
	if sim.Errored() {
		return TransitionResult{Err: sim.err}
	}

	for attempt := 0; attempt < len(sim.current)+8; attempt++ {
		cands, forward, fwdSymbol, alsoForward, ok := sim.collectCandidates(s)
		if ok {
			sim.commit(cands)
			res := TransitionResult{Forward: forward, ForwardSymbol: fwdSymbol, AlsoForward: alsoForward, Final: sim.IsFinal()}
			sim.appendLog(TransitionLogEntry{Symbol: s.String(), To: sim.ids(), Forward: forward || len(alsoForward) > 0})
			return res
		}
		if sim.Errored() {
			break
		}

		res, progressed := sim.forceInternalTransitions(ctx)
		if progressed {
			if res.Err != nil {
				return res
			}
			continue
		}
		break
	}
	if sim.Errored() {
		return TransitionResult{Err: sim.err}
	}

	return sim.applyDefaultAction(s)
}

// allActive reports whether every state in the current set is active.
func (sim *Simulator) allActive() bool {
	if len(sim.current) == 0 {
		return false
	}
	for id := range sim.current {
		if id == errorStateID || !sim.spec.Arena.State(id).IsActive() {
			return false
		}
	}
	return true
}

// fireInternalRound fires the internal transition of every state in ids
// (all must be active; callers check allActive first). Returns
// (result, true) if it fired, or (zero, false) if ids was empty.
func (sim *Simulator) fireInternalRound(ctx context.Context, ids []StateID) (TransitionResult, bool) {
	if len(ids) == 0 {
		return TransitionResult{}, false
	}
	var next []StateID
	for _, id := range ids {
		st := sim.spec.Arena.State(id)
		target, err := sim.fireInternal(ctx, st)
		if err != nil {
			return sim.enterError(&TransitionError{Symbol: "∅", Block: blockName(st.Block), Cause: err}), true
		}
		next = append(next, target)
	}
	sim.commit(candidateSet(next))
	return TransitionResult{Final: sim.IsFinal()}, true
}

// forceInternalTransitions fires the internal transition on the subset of
// the current states that can (are active); states that cannot are
// dropped (their "thread" dies). Returns (result, true) iff at least one
// state fired.
func (sim *Simulator) forceInternalTransitions(ctx context.Context) (TransitionResult, bool) {
	var next []StateID
	fired := false
	for id := range sim.current {
		st := sim.spec.Arena.State(id)
		if !st.IsActive() {
			continue
		}
		fired = true
		target, err := sim.fireInternal(ctx, st)
		if err != nil {
			return sim.enterError(&TransitionError{Symbol: "∅", Block: blockName(st.Block), Cause: err}), true
		}
		next = append(next, target)
	}
	if !fired {
		return TransitionResult{}, false
	}
	sim.commit(candidateSet(next))
	return TransitionResult{Final: sim.IsFinal()}, true
}

func (sim *Simulator) fireInternal(ctx context.Context, st *State) (StateID, error) {
	il := st.Internal.Label.(*InternalLabel)
	switch il.Action {
	case InternalTrigger:
		event, err := il.TriggerSupplier()
		if err != nil {
			return 0, err
		}
		if err := sim.effector.Trigger(ctx, event, il.TriggerPort); err != nil {
			return 0, err
		}
	case InternalInspect:
		snap, err := sim.effector.ComponentSnapshot(ctx)
		if err != nil {
			return 0, err
		}
		ok, err := il.Inspect(snap)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, errInspectFailed
		}
	}
	return st.Internal.Target, nil
}

var errInspectFailed = &inspectError{}

type inspectError struct{}

func (*inspectError) Error() string { return "inspect predicate returned false" }

// candidateSet wraps a plain []StateID as the "target only" commit shape
// used by internal-transition rounds (no forward decision attached).
func candidateSet(ids []StateID) []StateID { return ids }

// commit installs a new current-states set (closed under epsilon and
// settled past any resolvable loop-ends), running the entry-function
// cascade for every loop-start state now present and resetting any block
// that fell out of scope.
//
// The entry-function cascade is called unconditionally for every commit,
// not gated on "is this state newly present" — a loop's start state is,
// by construction, a continuous member of the current-states set on
// every iteration a Kleene body's bypass epsilon runs in parallel, and a
// bounded Repeat's start reappears with the very same id on every
// loop-back, so no prev/next set comparison can reliably tell "still the
// same iteration" from "back around for a new one" by id membership
// alone. Block.runEntry already carries the real per-iteration guard
// (canRunEntryFunction, reset by resetPending at each iteration
// boundary), so cascading unconditionally and trusting that guard is
// both simpler and correct: a state that already ran its entry function
// this iteration is a no-op, and a loop-back that just reset the guard
// fires exactly once.
func (sim *Simulator) commit(targets []StateID) {
	prev := sim.current
	closed := closureSet(sim.spec.Arena, targets)
	next := sim.settle(closed)
	sim.cascadeEntries(idsOfSet(next))
	sim.resetDiscontinuedBlocks(prev, next)
	sim.current = next
}

// settle repeatedly resolves loop-end states with no pending block-scoped
// expectations (decide loop vs exit) until a fixed point, re-closing under
// epsilon after every resolution.
func (sim *Simulator) settle(ids []StateID) map[StateID]bool {
	set := toSet(ids)
	for {
		changed := false
		for id := range set {
			st := sim.spec.Arena.State(id)
			if !st.IsLoopEnd() || st.Block.HasPending() {
				continue
			}
			delete(set, id)
			var target StateID
			if st.Block.IterationComplete() {
				target = st.LoopTarget
			} else {
				st.Block.Close()
				target = st.ExitTarget
			}
			for _, c := range epsilonClosure(sim.spec.Arena, target) {
				set[c] = true
			}
			changed = true
		}
		if !changed {
			return set
		}
	}
}

func toSet(ids []StateID) map[StateID]bool {
	m := make(map[StateID]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

// idsOfSet renders a current-states set back into a slice, for callers
// (cascadeEntries) that iterate it positionally rather than by membership
// test.
func idsOfSet(set map[StateID]bool) []StateID {
	out := make([]StateID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// cascadeEntries runs the entry function of every loop-body-start state
// present in next, outer-ancestors first then the state's own block.
// Safe to call every commit regardless of whether a given start state was
// already present before this transition: Block.runEntry's own
// canRunEntryFunction guard is what makes this idempotent within an
// iteration and live again after a loop-back.
func (sim *Simulator) cascadeEntries(next []StateID) {
	for _, id := range next {
		st := sim.spec.Arena.State(id)
		if !st.IsRepeatStart() && !st.IsKleeneStart() {
			continue
		}
		for _, ancestor := range st.ParentBlocks {
			ancestor.runEntry()
		}
		st.Block.runEntry()
	}
}

// resetDiscontinuedBlocks implements the block-reset edge case: any
// block that had a state in prev but has none in next, and is not an
// ancestor of any block represented in next, is reset.
func (sim *Simulator) resetDiscontinuedBlocks(prev map[StateID]bool, next map[StateID]bool) {
	prevBlocks := sim.blocksOf(prev)
	nextBlocks := sim.blocksOf(next)
	for b := range prevBlocks {
		if nextBlocks[b] {
			continue
		}
		ancestorOfSurvivor := false
		for nb := range nextBlocks {
			if b.IsAncestorOf(nb) {
				ancestorOfSurvivor = true
				break
			}
		}
		if !ancestorOfSurvivor {
			b.resetPending()
		}
	}
}

func (sim *Simulator) blocksOf(ids map[StateID]bool) map[*Block]bool {
	out := map[*Block]bool{}
	for id := range ids {
		if id == errorStateID {
			continue
		}
		out[sim.spec.Arena.State(id).Block] = true
	}
	return out
}

func blockName(b *Block) string {
	if b == nil {
		return "<nil>"
	}
	if b.IsMain() {
		return "main"
	}
	return "block"
}
