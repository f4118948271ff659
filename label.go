package specsim

import "sync"

// Label is a match predicate on an event symbol, or a deferred internal
// action. It is a sealed interface: every concrete implementation lives in
// this file and embeds unimplementedLabel so new optional behaviour can be
// added without breaking other implementations (the same embedding trick
// logiface.Event uses for its own optional methods).
//
// Per-kind match logic is pure except for the two multi-label kinds
// (Unordered, AnswerRequest), whose interior pending state is mutated
// under the Simulator's owning mutex.
type Label interface {
	// kind identifies the label variant for the simulator's switch-based
	// dispatch and for diagnostics.
	kind() labelKind
	// String renders the label for diagnostics and the transition log.
	String() string

	mustEmbedUnimplementedLabel()
}

type unimplementedLabel struct{}

func (unimplementedLabel) mustEmbedUnimplementedLabel() {}

type labelKind uint8

const (
	kindEvent labelKind = iota
	kindPredicate
	kindFault
	kindUnordered
	kindAnswerRequest
	kindInternal
	kindEpsilon
)

func (k labelKind) String() string {
	switch k {
	case kindEvent:
		return "event"
	case kindPredicate:
		return "predicate"
	case kindFault:
		return "fault"
	case kindUnordered:
		return "unordered"
	case kindAnswerRequest:
		return "answerRequest"
	case kindInternal:
		return "internal"
	case kindEpsilon:
		return "epsilon"
	default:
		return "unknown"
	}
}

// Comparator overrides structural equality for a registered event class;
// see Builder.SetComparator.
type Comparator func(expected, observed Event) bool

// Predicate evaluates a boolean condition against an observed event's
// concrete type (or any registered subtype).
type Predicate func(observed Event) bool

// EventLabel matches a symbol on (port, direction, concrete event), using
// either a registered comparator for the event's class or structural
// equality (reflect.DeepEqual).
type EventLabel struct {
	unimplementedLabel
	Expected   Event
	Port       Port
	Direction  Direction
	Comparator Comparator // optional override; nil uses structural equality
}

func (l *EventLabel) kind() labelKind { return kindEvent }
func (l *EventLabel) String() string  { return "expect(" + symbolRepr(l.Expected, l.Port, l.Direction) + ")" }

func (l *EventLabel) matches(s Symbol) bool {
	if s.Fault || s.Port != l.Port || s.Direction != l.Direction {
		return false
	}
	if l.Comparator != nil {
		return l.Comparator(l.Expected, s.Event)
	}
	return structuralEqual(l.Expected, s.Event)
}

// PredicateLabel matches (port, direction) and calls a user-supplied
// boolean predicate on the event's concrete value.
type PredicateLabel struct {
	unimplementedLabel
	Predicate Predicate
	Port      Port
	Direction Direction
	Name      string // optional, for diagnostics
}

func (l *PredicateLabel) kind() labelKind { return kindPredicate }
func (l *PredicateLabel) String() string {
	if l.Name != "" {
		return "expect(" + l.Name + "@" + string(l.Port) + ")"
	}
	return "expect(predicate@" + string(l.Port) + ")"
}

func (l *PredicateLabel) matches(s Symbol) bool {
	if s.Fault || s.Port != l.Port || s.Direction != l.Direction {
		return false
	}
	return l.Predicate != nil && l.Predicate(s.Event)
}

// FaultLabel matches only fault events on the CUT's control port, filtered
// by exception class (via IsClass) or by a predicate on the exception.
type FaultLabel struct {
	unimplementedLabel
	IsClass   func(err error) bool // optional class filter
	Predicate func(err error) bool // optional additional predicate
	Name      string
}

func (l *FaultLabel) kind() labelKind { return kindFault }
func (l *FaultLabel) String() string {
	if l.Name != "" {
		return "expectFault(" + l.Name + ")"
	}
	return "expectFault"
}

func (l *FaultLabel) matches(s Symbol) bool {
	if !s.Fault {
		return false
	}
	err, _ := s.Event.(error)
	if l.IsClass != nil && !l.IsClass(err) {
		return false
	}
	if l.Predicate != nil && !l.Predicate(err) {
		return false
	}
	return true
}

// singleLabel is the subset of Label kinds an UnorderedLabel can hold
// internally: those with a matches method (EventLabel, PredicateLabel,
// FaultLabel and AnswerRequestLabel). Inside an UnorderedLabel only the
// match is used; an AnswerRequestLabel's Mapper and Future are not applied
// there.
type singleLabel interface {
	Label
	matches(s Symbol) bool
}

// UnorderedLabel matches any of its inner single-labels in any order and
// completes once all inner labels have matched. ForwardImmediately
// controls whether each match is forwarded as it happens or all matches
// are queued and forwarded together once the set completes.
type UnorderedLabel struct {
	unimplementedLabel
	Inner             []singleLabel
	ForwardImmediately bool

	mu      sync.Mutex
	matched []bool       // parallel to Inner
	queued  []Symbol     // symbols matched while !ForwardImmediately
	onDone  func([]Symbol) // not set or called; completion is reported by tryMatch and drainQueued
}

func (l *UnorderedLabel) kind() labelKind { return kindUnordered }
func (l *UnorderedLabel) String() string  { return "unordered" }

// reset clears match progress; called when the owning block reloads its
// pending expectations for a new iteration.
func (l *UnorderedLabel) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.matched = make([]bool, len(l.Inner))
	l.queued = nil
}

// tryMatch attempts to match s against any not-yet-matched inner label.
// Returns (matched, completed, forwardNow).
func (l *UnorderedLabel) tryMatch(s Symbol) (matched, completed, forwardNow bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.matched == nil {
		l.matched = make([]bool, len(l.Inner))
	}
	for i, inner := range l.Inner {
		if l.matched[i] {
			continue
		}
		if inner.matches(s) {
			l.matched[i] = true
			matched = true
			if l.ForwardImmediately {
				forwardNow = true
			} else {
				l.queued = append(l.queued, s)
			}
			break
		}
	}
	if !matched {
		return false, false, false
	}
	for _, m := range l.matched {
		if !m {
			return true, false, forwardNow
		}
	}
	return true, true, forwardNow
}

// drainQueued returns and clears the queued symbols (non-forward-immediately
// case) once the set has completed.
func (l *UnorderedLabel) drainQueued() []Symbol {
	l.mu.Lock()
	defer l.mu.Unlock()
	q := l.queued
	l.queued = nil
	return q
}

// ResponseMapper synthesizes a response Event from a matched request Event.
type ResponseMapper func(request Event) Event

// AnswerRequestLabel matches an outgoing request and either synthesizes a
// response via a Mapper (immediately or as part of a declared batch) or
// captures the request into a Future for a later Trigger statement. On
// match the request symbol is always marked not-forwarded: the test
// synthesizes the reply itself.
type AnswerRequestLabel struct {
	unimplementedLabel
	Port      Port
	Predicate Predicate // selects which outgoing request this answers

	Mapper         ResponseMapper // nil if Future-based
	ResponsePort   Port
	TriggerImmediate bool // if false, part of a batch; fires when batch completes

	Future *Future[Symbol] // nil if Mapper-based

	Name string

	// Batch is the full, declaration-ordered set of labels from the same
	// answerRequests() block (including l itself), shared by reference so
	// the last label to match can trigger every sibling's response.
	Batch []*AnswerRequestLabel

	matchedEvent Event
	matchedOK    bool
}

func (l *AnswerRequestLabel) kind() labelKind { return kindAnswerRequest }
func (l *AnswerRequestLabel) String() string {
	if l.Name != "" {
		return "answer(" + l.Name + ")"
	}
	return "answer(" + string(l.Port) + ")"
}

func (l *AnswerRequestLabel) matches(s Symbol) bool {
	if s.Fault || s.Port != l.Port || s.Direction != Out {
		return false
	}
	return l.Predicate == nil || l.Predicate(s.Event)
}

// InternalActionKind distinguishes the two InternalLabel flavours.
type InternalActionKind uint8

const (
	// InternalTrigger injects an event on a port.
	InternalTrigger InternalActionKind = iota
	// InternalInspect evaluates a predicate against a CUT snapshot.
	InternalInspect
)

// EventSupplier lazily produces an Event to trigger, e.g. to read a
// Future's bound value at fire time rather than at statement-declaration
// time.
type EventSupplier func() (Event, error)

// InspectFunc evaluates a condition against a snapshot of the component
// under test, taken after its work queue has drained. A false return (or
// non-nil error) drives the simulator to the error state.
type InspectFunc func(snapshot Snapshot) (bool, error)

// InternalLabel is a side-effect label: it requires no input symbol to
// fire. A state whose only outgoing transition carries an InternalLabel is
// "active".
type InternalLabel struct {
	unimplementedLabel
	Action InternalActionKind

	// Trigger fields.
	TriggerPort     Port
	TriggerSupplier EventSupplier // concrete instance, lazy supplier, or future read

	// Inspect fields.
	Inspect InspectFunc

	Name string
}

func (l *InternalLabel) kind() labelKind { return kindInternal }
func (l *InternalLabel) String() string {
	if l.Name != "" {
		return l.Name
	}
	if l.Action == InternalTrigger {
		return "trigger(" + string(l.TriggerPort) + ")"
	}
	return "inspect"
}

// epsilonLabel is used only during construction for closure computation;
// it is never matched against a real Symbol.
type epsilonLabel struct{ unimplementedLabel }

func (epsilonLabel) kind() labelKind { return kindEpsilon }
func (epsilonLabel) String() string  { return "ε" }

// Epsilon is the shared epsilon label instance.
var Epsilon Label = epsilonLabel{}

func symbolRepr(e Event, p Port, d Direction) string {
	return Symbol{Event: e, Port: p, Direction: d}.String()
}
