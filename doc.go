// Package specsim is the core of a behavioral testing runtime for
// message-driven component systems.
//
// # Architecture
//
// A test specification is built, statement by statement, into a
// nondeterministic finite automaton ([Arena], [Label], [Block]): expect,
// trigger, unordered blocks, conditional branches, repeat/Kleene loops,
// answer-requests and block-scoped header rules all compile down to
// states, transitions and labels via [Builder]. A [Controller] then
// intercepts every event crossing the boundary of a component under
// test, feeds it to the compiled automaton as an input symbol through a
// [Simulator], and resolves a single pass/fail [Result] once the
// automaton reaches its final state or errors out.
//
// This package deliberately knows nothing about how events are
// dispatched, how components are scheduled, or how the embedding
// framework routes requests and responses. Those concerns live on the
// other side of two narrow interfaces: [EventSource] (observed events
// flow in, forward/drop decisions flow out) and [Effector] (triggers and
// inspections flow out to the environment).
//
// # Thread Safety
//
// The simulator is single-threaded cooperative under one mutex: event
// handler goroutines try to acquire it without blocking ([Controller.OnEvent])
// and fall back to enqueueing; only the watchdog timer blocks on it, so
// event delivery never deadlocks with itself or with the watchdog.
//
// # Usage
//
//	b := specsim.NewBuilder()
//	b.Body()
//	b.Trigger(func() (specsim.Event, error) { return ping, nil }, inPort)
//	b.Expect(&specsim.EventLabel{Expected: ping, Port: outPort, Direction: specsim.Out})
//	spec, err := b.Construct()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctrl, err := specsim.NewController(spec, effector, downstream)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ok, err := ctrl.Run(context.Background())
//
// # Error Types
//
// The package surfaces the construction- and runtime-error taxonomy
// described by [ErrInvalidMode], [ErrUnbalancedBlock], [ErrEmptyBranch],
// [ErrFutureReuse], [ErrFutureNotBound], [ErrNoAnswerRequests],
// [ErrNonPositiveCount], [ErrAlreadyRan] and [TransitionError]. All satisfy
// the standard [error] interface and compose with [errors.Is] / [errors.As].
package specsim
