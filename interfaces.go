package specsim

import "context"

// EventSource is the inbound boundary between the embedding framework and
// the simulator. The framework calls Deliver whenever an event crosses the
// component-under-test boundary; the simulator calls ForwardEvent to hand
// a matched-and-approved event back to the framework for real delivery.
type EventSource interface {
	// Deliver is called by the framework when a symbol crosses the CUT
	// boundary. The return value indicates whether the framework should
	// continue its own default delivery (true) or suppress it, because
	// the simulator has taken ownership of forwarding (false). The
	// simulator always returns false here; the actual forward decision
	// is made later, out of band, via ForwardEvent.
	Deliver(s Symbol) bool

	// ForwardEvent instructs the framework to deliver s to its real
	// recipient (or s.ForwardTarget if set). Called by the simulator on
	// its way out of a transition that requested forwarding.
	ForwardEvent(s Symbol) error
}

// Snapshot is an opaque handle to the component-under-test's state,
// obtained after its pending work has drained, for InspectFunc predicates
// to evaluate against.
type Snapshot any

// Effector is the outbound boundary: operations a compiled InternalLabel
// uses to act on the environment.
type Effector interface {
	// Trigger injects event on port.
	Trigger(ctx context.Context, event Event, port Port) error

	// ComponentSnapshot blocks until the CUT has drained its pending work
	// and returns a handle for InspectFunc evaluation.
	ComponentSnapshot(ctx context.Context) (Snapshot, error)

	// RebindOrigin creates a pair of inside/outside ports for an incoming
	// direct-request so that its response traverses the simulator rather
	// than going straight back to the original caller.
	RebindOrigin(ctx context.Context, request Symbol) (insidePort, outsidePort Port, err error)
}

// DefaultAction is the policy applied to an event unmatched by any
// expectation or header rule, per the most-specific registered ancestor of
// its event class.
type DefaultAction uint8

const (
	// ActionFail drives the simulator to the error state.
	ActionFail DefaultAction = iota
	// ActionHandle forwards the event (self-and-forward).
	ActionHandle
	// ActionDrop consumes the event without forwarding (self-and-drop).
	ActionDrop
)

func (a DefaultAction) String() string {
	switch a {
	case ActionFail:
		return "FAIL"
	case ActionHandle:
		return "HANDLE"
	case ActionDrop:
		return "DROP"
	default:
		return "UNKNOWN"
	}
}
