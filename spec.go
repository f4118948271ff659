package specsim

import "time"

// Spec is the compiled output of Builder.Construct: an Arena of states
// plus the entry closure, final state, and the Configuration surface
// (comparators, default actions, timeout) collected while building.
type Spec struct {
	Arena   *Arena
	Main    *Block
	Entry   []StateID // epsilon closure of the root fragment's start
	Final   StateID

	Comparators    *classDispatch[Comparator]
	DefaultActions *classDispatch[DefaultAction]
	Timeout        time.Duration
}

// Construct closes the root block, emits a single terminal final state,
// and recursively links every child FA (rightmost/last-declared-first, so
// each child's terminal becomes the next statement's entry) into one NFA.
// Construction is idempotent: a second call, or any further Builder
// statement, returns ErrAlreadyConstructed.
func (b *Builder) Construct() (*Spec, error) {
	if b.constructed {
		return nil, ErrAlreadyConstructed
	}
	if len(b.modeStack) != 1 {
		return nil, ErrUnbalancedBlock
	}
	b.constructed = true

	final := b.arena.newState(b.mainBlock)
	final.flags |= flagFinal

	entryID, err := b.linkBlock(b.mainBlock, final.ID)
	if err != nil {
		return nil, err
	}

	return &Spec{
		Arena:          b.arena,
		Main:           b.mainBlock,
		Entry:          closureSet(b.arena, []StateID{entryID}),
		Final:          final.ID,
		Comparators:    b.comparators,
		DefaultActions: b.defaultActions,
		Timeout:        b.timeout,
	}, nil
}

// linkBlock assembles block's ordered steps into a fragment terminating at
// final, processing steps last-declared-first so that each step's
// constructed fragment becomes the entry for the previously-linked
// (later-in-program-order) step, per Construct's linking rule.
func (b *Builder) linkBlock(block *Block, final StateID) (StateID, error) {
	body := b.bodies[block]
	cur := final

	for i := len(body.steps) - 1; i >= 0; i-- {
		st := body.steps[i]
		switch st.kind {
		case stepLabel:
			if il, ok := st.label.(*InternalLabel); ok {
				frag := internalState(b.arena, block, il, cur)
				cur = frag.Start
				continue
			}
			frag := Base(b.arena, block, st.label, cur, st.forward)
			cur = frag.Start

		case stepRepeat:
			child := st.block
			var linkErr error
			frag := Repeat(b.arena, child, func(endID StateID) fragment {
				startID, err := b.linkBlock(child, endID)
				if err != nil {
					linkErr = err
				}
				return fragment{Start: startID, Final: endID}
			}, cur)
			if linkErr != nil {
				return 0, linkErr
			}
			if fs := b.arena.State(frag.Start); fs.ParentBlocks == nil {
				fs.ParentBlocks = child.Ancestors()
			}
			cur = frag.Start

		case stepKleene:
			child := st.block
			var linkErr error
			frag := Kleene(b.arena, child, func(endID StateID) fragment {
				startID, err := b.linkBlock(child, endID)
				if err != nil {
					linkErr = err
				}
				return fragment{Start: startID, Final: endID}
			}, cur)
			if linkErr != nil {
				return 0, linkErr
			}
			if fs := b.arena.State(frag.Start); fs.ParentBlocks == nil {
				fs.ParentBlocks = child.Ancestors()
			}
			cur = frag.Start

		case stepConditional:
			var branchFrags []fragment
			for _, br := range st.branches {
				if len(b.bodies[br].steps) == 0 {
					return 0, ErrEmptyBranch
				}
				startID, err := b.linkBlock(br, cur)
				if err != nil {
					return 0, err
				}
				branchFrags = append(branchFrags, fragment{Start: startID, Final: cur})
			}
			frag, err := Conditional(b.arena, block, branchFrags)
			if err != nil {
				return 0, err
			}
			cur = frag.Start

		case stepAnswerBatch:
			for j := len(st.batch) - 1; j >= 0; j-- {
				frag := Base(b.arena, block, st.batch[j], cur, false)
				cur = frag.Start
			}
		}
	}

	return cur, nil
}
