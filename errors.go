// Package specsim error taxonomy.
//
// Construction-time errors (mode, balance, emptiness, future misuse)
// propagate synchronously from Builder calls. Runtime errors drive the
// Simulator to the error state and the Controller completes Result as
// fail; TransitionError is the sentinel surfaced for that case.
package specsim

import (
	"errors"
	"fmt"
)

// Sentinel errors returned (wrapped with context) by Builder and Controller
// operations. Match with errors.Is.
var (
	// ErrInvalidMode is returned when a builder statement is issued in a
	// mode that does not permit it.
	ErrInvalidMode = errors.New("specsim: statement not valid in current mode")

	// ErrUnbalancedBlock is returned by End when there is nothing left to
	// close, and by Construct when blocks are still open.
	ErrUnbalancedBlock = errors.New("specsim: unbalanced block nesting")

	// ErrEmptyBranch is returned when a Conditional is built with an
	// empty either- or or-branch.
	ErrEmptyBranch = errors.New("specsim: conditional branch has no statements")

	// ErrFutureReuse is returned when the same Future is supplied to more
	// than one answer-request.
	ErrFutureReuse = errors.New("specsim: future already bound to an answer-request")

	// ErrFutureNotBound is the TransitionError.Cause when a TriggerFuture
	// statement fires before any answer-request has set its future.
	ErrFutureNotBound = errors.New("specsim: trigger references an unbound future")

	// ErrNoAnswerRequests is returned when an AnswerRequests() batch is
	// closed without any answer() statements inside it.
	ErrNoAnswerRequests = errors.New("specsim: answerRequests batch is empty")

	// ErrNonPositiveCount is returned by Repeat(n) when n <= 0.
	ErrNonPositiveCount = errors.New("specsim: repeat count must be positive")

	// ErrAlreadyRan is returned when Controller.Run is called more than
	// once on the same instance.
	ErrAlreadyRan = errors.New("specsim: run already started")

	// ErrAlreadyConstructed is returned when a Builder statement is issued
	// after Construct has already closed the Spec (construction is
	// idempotent).
	ErrAlreadyConstructed = errors.New("specsim: builder already constructed")

	// ErrBlacklistedEvent is the TransitionError.Cause when an unmatched
	// event satisfies a block's blacklist header rule.
	ErrBlacklistedEvent = errors.New("specsim: event matched a blacklist rule")

	// ErrNoMatchingTransition is the TransitionError.Cause when an
	// unmatched event's class has no registered default action (or is
	// explicitly ActionFail).
	ErrNoMatchingTransition = errors.New("specsim: no transition, header rule, or default action matched")
)

// TransitionError reports that the simulator entered the error state while
// matching a symbol against the compiled automaton.
type TransitionError struct {
	// Symbol is a human-readable rendering of the offending input symbol,
	// or "∅" if the error arose from a forced/required internal
	// transition rather than an external symbol.
	Symbol string
	// Block is a coarse diagnostic tag for where the failure arose: "main"
	// for a state of the root block, "block" for a state of any nested
	// block, "default" when the default-action lookup failed the symbol.
	Block string
	// Cause is the underlying error: ErrBlacklistedEvent or
	// ErrNoMatchingTransition for an unmatched symbol, or the error
	// returned by a trigger supplier, an inspect or the Effector.
	Cause error
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("specsim: transition error on %q in block %q: %v", e.Symbol, e.Block, e.Cause)
	}
	return fmt.Sprintf("specsim: transition error on %q in block %q", e.Symbol, e.Block)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *TransitionError) Unwrap() error {
	return e.Cause
}

// modeError wraps ErrInvalidMode with the statement name and the mode it
// was attempted in, for diagnostics.
func modeError(statement string, mode Mode) error {
	return fmt.Errorf("%w: %s in %s", ErrInvalidMode, statement, mode)
}
