package specsim

import (
	"reflect"
	"time"
)

// Mode is one of the five statement-legality regimes the Builder's mode
// stack tracks.
type Mode uint8

const (
	ModeHeader Mode = iota
	ModeBody
	ModeConditional
	ModeUnordered
	ModeAnswerRequest
)

func (m Mode) String() string {
	switch m {
	case ModeHeader:
		return "HEADER"
	case ModeBody:
		return "BODY"
	case ModeConditional:
		return "CONDITIONAL"
	case ModeUnordered:
		return "UNORDERED"
	case ModeAnswerRequest:
		return "ANSWER_REQUEST"
	default:
		return "UNKNOWN"
	}
}

type stepKind uint8

const (
	stepLabel stepKind = iota
	stepRepeat
	stepKleene
	stepConditional
	stepAnswerBatch
)

// step is one entry in a Block's ordered body — either a single labeled
// transition, or a nested construct (repeat/kleene body block,
// conditional branch set, answer-request batch).
type step struct {
	kind     stepKind
	label    Label
	forward  bool
	block    *Block   // stepRepeat / stepKleene: the loop body
	branches []*Block // stepConditional: one block per branch, built independently
	batch    []*AnswerRequestLabel
}

// blockBody threads the ordered step list alongside the *Block it belongs
// to (Block itself only carries the header-registered state; the ordered
// FA-construction sequence lives here, keyed by block).
type blockBody struct {
	block *Block
	steps []step
}

// conditionalCtx tracks an in-progress either/or statement: the step being
// populated with branches, and the branch currently collecting statements.
type conditionalCtx struct {
	parent       *blockBody
	stepIdx      int
	branchBody   *blockBody
}

// answerBatchCtx tracks an in-progress answerRequests() batch.
type answerBatchCtx struct {
	parent *blockBody
	labels []*AnswerRequestLabel
}

// Builder consumes statements in one of the five Mode regimes, validating
// ordering via a mode stack, and assembles a Spec ready for Construct.
type Builder struct {
	arena *Arena

	mainBlock *Block
	bodies    map[*Block]*blockBody

	modeStack  []Mode
	blockStack []*Block // parallel to modeStack entries that own a block (HEADER/BODY/CONDITIONAL)

	condStack  []*conditionalCtx
	unordStack []*UnorderedLabel
	unordFwd   []bool
	batchStack []*answerBatchCtx

	seenFutures map[*Future[Symbol]]bool

	comparators    *classDispatch[Comparator]
	defaultActions *classDispatch[DefaultAction]
	timeout        time.Duration

	constructed bool
}

// NewBuilder returns a Builder positioned in the root block's HEADER mode,
// with a default timeout and no registered comparators/default actions.
func NewBuilder() *Builder {
	main := NewMainBlock()
	b := &Builder{
		arena:       NewArena(),
		mainBlock:   main,
		bodies:      map[*Block]*blockBody{main: {block: main}},
		modeStack:   []Mode{ModeHeader},
		blockStack:  []*Block{main},
		seenFutures: make(map[*Future[Symbol]]bool),
		timeout:     5 * time.Second,
	}
	isSubtype := func(sub, super reflect.Type) bool { return sub.AssignableTo(super) }
	b.comparators = newClassDispatch[Comparator](isSubtype)
	b.defaultActions = newClassDispatch[DefaultAction](isSubtype)
	return b
}

func (b *Builder) mode() Mode           { return b.modeStack[len(b.modeStack)-1] }
func (b *Builder) currentBlock() *Block { return b.blockStack[len(b.blockStack)-1] }
func (b *Builder) currentBody() *blockBody {
	return b.bodies[b.currentBlock()]
}

func (b *Builder) pushStep(s step) {
	body := b.currentBody()
	body.steps = append(body.steps, s)
}

func (b *Builder) checkNotConstructed() error {
	if b.constructed {
		return ErrAlreadyConstructed
	}
	return nil
}

// --- HEADER-only statements ---

// Whitelist registers a header rule that forwards unmatched events
// satisfying match.
func (b *Builder) Whitelist(match func(Symbol) bool) error {
	return b.addHeaderRule("whitelist", HeaderWhitelist, match)
}

// Drop registers a header rule that silently consumes unmatched events
// satisfying match.
func (b *Builder) Drop(match func(Symbol) bool) error {
	return b.addHeaderRule("drop", HeaderDrop, match)
}

// Blacklist registers a header rule that fails the run when an unmatched
// event satisfies match.
func (b *Builder) Blacklist(match func(Symbol) bool) error {
	return b.addHeaderRule("blacklist", HeaderBlacklist, match)
}

func (b *Builder) addHeaderRule(name string, kind HeaderRuleKind, match func(Symbol) bool) error {
	if err := b.checkNotConstructed(); err != nil {
		return err
	}
	if b.mode() != ModeHeader {
		return modeError(name, b.mode())
	}
	blk := b.currentBlock()
	blk.Headers = append(blk.Headers, HeaderRule{Kind: kind, Match: match})
	return nil
}

// BlockExpect registers a block-scoped expectation: a label that may match
// at any point during the block's current iteration, independent of the
// ordered body sequence.
func (b *Builder) BlockExpect(l Label) error {
	if err := b.checkNotConstructed(); err != nil {
		return err
	}
	if b.mode() != ModeHeader {
		return modeError("blockExpect", b.mode())
	}
	blk := b.currentBlock()
	blk.Expected = append(blk.Expected, l)
	blk.Pending = append(blk.Pending, l)
	return nil
}

// SetComparator overrides structural equality for events of type T,
// identified by a representative zero/sample value. Initial-header-only:
// valid only in the root block's HEADER mode. Expect installs the
// registered comparator on every EventLabel it receives whose own
// Comparator field is nil; labels passed to BlockExpect are left as given.
func (b *Builder) SetComparator(sample Event, cmp Comparator) error {
	if err := b.checkNotConstructed(); err != nil {
		return err
	}
	if b.mode() != ModeHeader || b.currentBlock() != b.mainBlock {
		return modeError("setComparator", b.mode())
	}
	t, ok := classOf(sample)
	if !ok {
		return nil
	}
	b.comparators.register(t, cmp)
	return nil
}

// SetDefaultAction registers the policy applied to unmatched events of
// type T (or its declared subtypes). Initial-header-only.
func (b *Builder) SetDefaultAction(sample Event, action DefaultAction) error {
	if err := b.checkNotConstructed(); err != nil {
		return err
	}
	if b.mode() != ModeHeader || b.currentBlock() != b.mainBlock {
		return modeError("setDefaultAction", b.mode())
	}
	t, ok := classOf(sample)
	if !ok {
		return nil
	}
	b.defaultActions.register(t, action)
	return nil
}

// SetTimeout configures the inactivity watchdog interval. Initial-header-only.
func (b *Builder) SetTimeout(d time.Duration) error {
	if err := b.checkNotConstructed(); err != nil {
		return err
	}
	if b.mode() != ModeHeader || b.currentBlock() != b.mainBlock {
		return modeError("setTimeout", b.mode())
	}
	if d < 0 {
		d = 0
	}
	b.timeout = d
	return nil
}

// Body transitions the current block from HEADER to BODY.
func (b *Builder) Body() error {
	if err := b.checkNotConstructed(); err != nil {
		return err
	}
	if b.mode() != ModeHeader {
		return modeError("body", b.mode())
	}
	b.modeStack[len(b.modeStack)-1] = ModeBody
	return nil
}

// --- BODY / CONDITIONAL statements ---

// Expect appends l to the current FA sequence (BODY/CONDITIONAL), or to
// the pending inner set of an in-progress Unordered block (UNORDERED).
func (b *Builder) Expect(l Label) error {
	if err := b.checkNotConstructed(); err != nil {
		return err
	}
	if el, ok := l.(*EventLabel); ok && el.Comparator == nil {
		if t, ok := classOf(el.Expected); ok {
			if cmp, found := b.comparators.lookup(t); found {
				el.Comparator = cmp
			}
		}
	}
	switch b.mode() {
	case ModeBody, ModeConditional:
		b.pushStep(step{kind: stepLabel, label: l, forward: true})
		return nil
	case ModeUnordered:
		sl, ok := l.(singleLabel)
		if !ok {
			return modeError("expect (non-single label in unordered block)", b.mode())
		}
		u := b.unordStack[len(b.unordStack)-1]
		u.Inner = append(u.Inner, sl)
		return nil
	default:
		return modeError("expect", b.mode())
	}
}

// Trigger appends an InternalLabel that injects event (from port) into the
// environment. Valid only in BODY/CONDITIONAL.
func (b *Builder) Trigger(supplier EventSupplier, port Port) error {
	if err := b.checkNotConstructed(); err != nil {
		return err
	}
	if b.mode() != ModeBody && b.mode() != ModeConditional {
		return modeError("trigger", b.mode())
	}
	b.pushStep(step{kind: stepLabel, label: &InternalLabel{
		Action:          InternalTrigger,
		TriggerPort:     port,
		TriggerSupplier: supplier,
	}})
	return nil
}

// TriggerFuture appends an InternalLabel that triggers the event captured
// by a prior answer-request's future. Returns ErrFutureNotBound if f has
// not yet been set by the time this fires (checked at fire time, not here).
func (b *Builder) TriggerFuture(f *Future[Symbol], port Port) error {
	return b.Trigger(func() (Event, error) {
		sym, ok := f.Get()
		if !ok {
			return nil, ErrFutureNotBound
		}
		return sym.Event, nil
	}, port)
}

// Inspect appends an InternalLabel that evaluates fn against a CUT
// snapshot. Valid only in BODY/CONDITIONAL.
func (b *Builder) Inspect(fn InspectFunc) error {
	if err := b.checkNotConstructed(); err != nil {
		return err
	}
	if b.mode() != ModeBody && b.mode() != ModeConditional {
		return modeError("inspect", b.mode())
	}
	b.pushStep(step{kind: stepLabel, label: &InternalLabel{Action: InternalInspect, Inspect: fn}})
	return nil
}

// ExpectFault appends a FaultLabel to the current FA sequence. Matched
// faults forward by default (the fault is acknowledged, not re-raised).
func (b *Builder) ExpectFault(l *FaultLabel) error {
	if err := b.checkNotConstructed(); err != nil {
		return err
	}
	if b.mode() != ModeBody && b.mode() != ModeConditional {
		return modeError("expectFault", b.mode())
	}
	b.pushStep(step{kind: stepLabel, label: l, forward: true})
	return nil
}

// Repeat opens a bounded-repetition block of n iterations (n > 0; returns
// ErrNonPositiveCount otherwise) with an optional entry function, pushing
// HEADER mode for the new block.
func (b *Builder) Repeat(n int, entry EntryFunc) error {
	if err := b.checkNotConstructed(); err != nil {
		return err
	}
	if b.mode() != ModeBody && b.mode() != ModeConditional {
		return modeError("repeat", b.mode())
	}
	if n <= 0 {
		return ErrNonPositiveCount
	}
	child := NewChildBlock(b.currentBlock(), n, entry)
	b.bodies[child] = &blockBody{block: child}
	b.pushStep(step{kind: stepRepeat, block: child})
	b.blockStack = append(b.blockStack, child)
	b.modeStack = append(b.modeStack, ModeHeader)
	return nil
}

// RepeatKleene opens a Kleene (zero-or-more) block, with an optional entry
// function, pushing HEADER mode for the new block.
func (b *Builder) RepeatKleene(entry EntryFunc) error {
	if err := b.checkNotConstructed(); err != nil {
		return err
	}
	if b.mode() != ModeBody && b.mode() != ModeConditional {
		return modeError("repeat (kleene)", b.mode())
	}
	child := NewChildBlock(b.currentBlock(), star, entry)
	b.bodies[child] = &blockBody{block: child}
	b.pushStep(step{kind: stepKleene, block: child})
	b.blockStack = append(b.blockStack, child)
	b.modeStack = append(b.modeStack, ModeHeader)
	return nil
}

// Either opens a conditional statement's first branch. Valid only in
// BODY/CONDITIONAL.
func (b *Builder) Either() error {
	if err := b.checkNotConstructed(); err != nil {
		return err
	}
	if b.mode() != ModeBody && b.mode() != ModeConditional {
		return modeError("either", b.mode())
	}
	parent := b.currentBody()
	idx := len(parent.steps)
	parent.steps = append(parent.steps, step{kind: stepConditional})

	branchBlock := NewChildBlock(b.currentBlock(), 1, nil)
	branchBody := &blockBody{block: branchBlock}
	b.bodies[branchBlock] = branchBody

	ctx := &conditionalCtx{parent: parent, stepIdx: idx, branchBody: branchBody}
	b.condStack = append(b.condStack, ctx)
	b.blockStack = append(b.blockStack, branchBlock)
	b.modeStack = append(b.modeStack, ModeConditional)
	return nil
}

// Or closes the current branch and opens a new one under the same
// conditional statement. Valid only in CONDITIONAL.
func (b *Builder) Or() error {
	if err := b.checkNotConstructed(); err != nil {
		return err
	}
	if b.mode() != ModeConditional {
		return modeError("or", b.mode())
	}
	ctx := b.condStack[len(b.condStack)-1]
	ctx.parent.steps[ctx.stepIdx].branches = append(ctx.parent.steps[ctx.stepIdx].branches, ctx.branchBody.block)

	branchBlock := NewChildBlock(ctx.parent.block, 1, nil)
	branchBody := &blockBody{block: branchBlock}
	b.bodies[branchBlock] = branchBody
	ctx.branchBody = branchBody

	b.blockStack[len(b.blockStack)-1] = branchBlock
	return nil
}

// AnswerRequests opens a batch of answer-request declarations; responses
// trigger in declaration order once the batch's last request has matched.
func (b *Builder) AnswerRequests() error {
	if err := b.checkNotConstructed(); err != nil {
		return err
	}
	if b.mode() != ModeBody && b.mode() != ModeConditional {
		return modeError("answerRequests", b.mode())
	}
	b.batchStack = append(b.batchStack, &answerBatchCtx{parent: b.currentBody()})
	b.modeStack = append(b.modeStack, ModeAnswerRequest)
	return nil
}

// Answer declares one answer-request inside an AnswerRequests batch.
func (b *Builder) Answer(port Port, match Predicate, mapper ResponseMapper, responsePort Port) error {
	if err := b.checkNotConstructed(); err != nil {
		return err
	}
	if b.mode() != ModeAnswerRequest {
		return modeError("answer", b.mode())
	}
	ctx := b.batchStack[len(b.batchStack)-1]
	l := &AnswerRequestLabel{
		Port:         port,
		Predicate:    match,
		Mapper:       mapper,
		ResponsePort: responsePort,
	}
	ctx.labels = append(ctx.labels, l)
	return nil
}

// AnswerFuture declares one future-based answer-request: on match, f is set
// to the matched request symbol for a later TriggerFuture statement to
// consume. Returns ErrFutureReuse if f was already bound.
func (b *Builder) AnswerFuture(port Port, match Predicate, f *Future[Symbol]) error {
	if err := b.checkNotConstructed(); err != nil {
		return err
	}
	if b.mode() != ModeAnswerRequest {
		return modeError("answer", b.mode())
	}
	if b.seenFutures[f] {
		return ErrFutureReuse
	}
	b.seenFutures[f] = true
	ctx := b.batchStack[len(b.batchStack)-1]
	ctx.labels = append(ctx.labels, &AnswerRequestLabel{Port: port, Predicate: match, Future: f})
	return nil
}

// Unordered opens a block matching its inner expect() statements in any
// order, completing once all have matched. forwardImmediately controls
// whether each inner match forwards as it happens, or all queue until the
// set completes.
func (b *Builder) Unordered(forwardImmediately bool) error {
	if err := b.checkNotConstructed(); err != nil {
		return err
	}
	if b.mode() != ModeBody && b.mode() != ModeConditional {
		return modeError("unordered", b.mode())
	}
	u := &UnorderedLabel{ForwardImmediately: forwardImmediately}
	b.unordStack = append(b.unordStack, u)
	b.modeStack = append(b.modeStack, ModeUnordered)
	return nil
}

// End pops the current mode, balancing against its matching opener.
// Returns ErrUnbalancedBlock if there is nothing to pop.
func (b *Builder) End() error {
	if err := b.checkNotConstructed(); err != nil {
		return err
	}
	if len(b.modeStack) <= 1 {
		return ErrUnbalancedBlock
	}
	switch b.mode() {
	case ModeUnordered:
		u := b.unordStack[len(b.unordStack)-1]
		b.unordStack = b.unordStack[:len(b.unordStack)-1]
		b.modeStack = b.modeStack[:len(b.modeStack)-1]
		b.pushStep(step{kind: stepLabel, label: u, forward: false})
		return nil

	case ModeAnswerRequest:
		ctx := b.batchStack[len(b.batchStack)-1]
		if len(ctx.labels) == 0 {
			return ErrNoAnswerRequests
		}
		for i, l := range ctx.labels {
			l.TriggerImmediate = i == len(ctx.labels)-1
			l.Batch = ctx.labels
		}
		b.batchStack = b.batchStack[:len(b.batchStack)-1]
		b.modeStack = b.modeStack[:len(b.modeStack)-1]
		ctx.parent.steps = append(ctx.parent.steps, step{kind: stepAnswerBatch, batch: ctx.labels})
		return nil

	case ModeConditional:
		ctx := b.condStack[len(b.condStack)-1]
		ctx.parent.steps[ctx.stepIdx].branches = append(ctx.parent.steps[ctx.stepIdx].branches, ctx.branchBody.block)
		b.condStack = b.condStack[:len(b.condStack)-1]
		b.blockStack = b.blockStack[:len(b.blockStack)-1]
		b.modeStack = b.modeStack[:len(b.modeStack)-1]
		return nil

	case ModeBody, ModeHeader:
		// Closes a repeat/kleene child block: header-only child (never
		// called body()) is legal too (an empty-bodied loop).
		if len(b.blockStack) <= 1 {
			return ErrUnbalancedBlock
		}
		b.blockStack = b.blockStack[:len(b.blockStack)-1]
		b.modeStack = b.modeStack[:len(b.modeStack)-1]
		return nil

	default:
		return ErrUnbalancedBlock
	}
}
