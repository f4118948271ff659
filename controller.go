package specsim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Controller runs one compiled Spec against a live component under test: it
// owns the Simulator, an ingress queue for events that arrive while the
// Simulator's mutex is held elsewhere, a watchdog that forces internal
// progress during quiet periods, and the run's terminal Result.
//
// Event-handler threads (callers of OnEvent) try to acquire the mutex
// without blocking and process the symbol synchronously on that thread; a
// handler that loses the race enqueues instead, trusting whichever thread
// currently holds the mutex to drain the queue before releasing it. The
// watchdog, by contrast, blocks to acquire the mutex: it must force
// progress even when handler threads are saturating it.
type Controller struct {
	spec       *Spec
	effector   Effector
	downstream EventSource
	opts       *controllerOptions

	mu           sync.Mutex
	sim          *Simulator
	lastActivity time.Time // last processed transition; guards stale watchdog wakes

	ingress *Ingress
	seq     atomic.Uint64

	result *Future[bool]
	ran    atomic.Bool

	rearm    chan struct{} // signals Run's goroutine to reset the watchdog timer
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewController compiles no new state beyond wrapping spec: it constructs
// the Simulator, resolves opts over the defaults, and allocates the ingress
// queue and terminal Result. downstream receives ForwardEvent calls for
// every symbol the Simulator approves for real delivery.
func NewController(spec *Spec, effector Effector, downstream EventSource, opts ...Option) (*Controller, error) {
	cfg, err := resolveControllerOptions(opts)
	if err != nil {
		return nil, err
	}
	sim := NewSimulator(spec, effector)
	sim.logCap = cfg.transitionLog
	return &Controller{
		spec:         spec,
		effector:     effector,
		downstream:   downstream,
		opts:         cfg,
		sim:          sim,
		lastActivity: time.Now(),
		ingress:      NewIngress(),
		result:       NewFuture[bool](),
		rearm:        make(chan struct{}, 1),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}, nil
}

// Deliver implements EventSource: it stamps s with the next sequence
// number, tries to process it inline (non-blocking mutex acquire), and
// falls back to enqueueing it for the current lock-holder to drain.
// Deliver always returns false: the Controller has taken ownership of s's
// eventual forwarding decision via ForwardEvent.
func (c *Controller) Deliver(s Symbol) bool {
	c.OnEvent(s)
	return false
}

// ForwardEvent satisfies EventSource for symmetry with the framework-facing
// adapter. It is a passthrough to downstream: the Controller's own
// forwarding (OnEvent's control-port bypass, actOnResult) goes through it,
// and a Controller can itself serve as another Controller's downstream in
// nested test harnesses.
func (c *Controller) ForwardEvent(s Symbol) error {
	return c.downstream.ForwardEvent(s)
}

// OnEvent stamps s with a sequence number and delivers it to the Simulator,
// either inline or via the ingress queue, per the try-acquire policy
// documented on Controller. Before any of that: an event on the ignored
// control port (anything but a fault) bypasses the simulator entirely, a
// symbol arriving after Result has already settled is dropped without
// forwarding, and an incoming direct-request is handed to the Effector to
// rebind its response origin.
func (c *Controller) OnEvent(s Symbol) {
	if s.Port == ControlPort && !s.Fault {
		_ = c.ForwardEvent(s)
		return
	}
	if c.result.Settled() {
		return
	}
	if s.DirectRequest {
		insidePort, outsidePort, err := c.effector.RebindOrigin(context.Background(), s)
		if err != nil {
			c.opts.logger.Warning().Err(err).Log("specsim: rebind origin failed")
		} else {
			s.Port = insidePort
			s.ForwardTarget = outsidePort
		}
	}

	s.Seq = c.seq.Add(1)

	if !c.mu.TryLock() {
		if s.Fault {
			c.ingress.PushFront(s)
		} else {
			c.ingress.PushBack(s)
		}
		return
	}
	c.processLocked(context.Background(), s)
	c.drainLocked(context.Background())
	c.mu.Unlock()
}

// processLocked runs one DoTransition call against s and acts on its
// outcome (forward, log, or complete Result on error). A no-op once the
// Simulator has already errored. Every call counts as a transition for the
// per-event inactivity timer: the watchdog re-arms from this instant.
// Caller holds c.mu.
func (c *Controller) processLocked(ctx context.Context, s Symbol) {
	if c.sim.Errored() {
		return
	}
	res := c.sim.DoTransition(ctx, s)
	c.actOnResult(ctx, res)
	c.markActivityLocked()
}

// markActivityLocked stamps the last-activity timestamp and nudges Run's
// goroutine to reset the watchdog timer from now, per spec's "re-armed on
// every transition" rule. The channel send is non-blocking and deduped by
// the buffer-of-1: a burst of transitions within one tick of Run's select
// loop collapses to a single reset, which is fine since the reset is
// always to the full timeout from the latest call anyway. Caller holds
// c.mu.
func (c *Controller) markActivityLocked() {
	c.lastActivity = time.Now()
	select {
	case c.rearm <- struct{}{}:
	default:
	}
}

// drainLocked processes any symbols that queued up while c.mu was held
// elsewhere, oldest first, stopping early once the Simulator has errored.
// Caller holds c.mu.
func (c *Controller) drainLocked(ctx context.Context) {
	for !c.sim.Errored() {
		s, ok := c.ingress.PopFront()
		if !ok {
			return
		}
		c.processLocked(ctx, s)
	}
}

// actOnResult forwards an approved symbol downstream, completes Result on
// error, and emits the structured log lines the ambient logging stack
// specifies (Debug per transition, Error on entering the error state).
func (c *Controller) actOnResult(ctx context.Context, res TransitionResult) {
	logger := c.opts.logger

	if res.Err != nil {
		var te *TransitionError
		if errors.As(res.Err, &te) && te.Cause != nil {
			if _, allow := c.opts.faultLimiter.Allow(te.Cause); !allow {
				c.result.Set(false)
				return
			}
		}
		logger.Err().Err(res.Err).Log("specsim: transition failed")
		c.result.Set(false)
		return
	}

	logger.Debug().
		Bool("forward", res.Forward).
		Int("alsoForward", len(res.AlsoForward)).
		Bool("final", res.Final).
		Log("specsim: transition committed")

	for _, extra := range res.AlsoForward {
		if err := c.ForwardEvent(extra); err != nil {
			logger.Warning().Err(err).Log("specsim: forward to downstream failed")
		}
	}
	if res.Forward {
		if err := c.ForwardEvent(res.ForwardSymbol); err != nil {
			logger.Warning().Err(err).Log("specsim: forward to downstream failed")
		}
	}

	if res.Final && c.ingress.Len() == 0 {
		c.result.Set(true)
	}
}

// Run drives the watchdog until ctx is cancelled, Stop is called, or the
// run's Result settles. It does not itself process events: OnEvent
// processes inline or via drain, so Run's only job is keeping internal
// transitions moving during quiet periods and releasing resources on exit.
//
// The per-event inactivity timer is a single-shot time.Timer owned
// exclusively by this goroutine — Stop/Reset never run concurrently with
// the receive on timer.C. Other goroutines (OnEvent's inline processing,
// the watchdog's own forced progress) request a reset by sending on
// c.rearm instead of touching the timer directly.
func (c *Controller) Run(ctx context.Context) (bool, error) {
	if !c.ran.CompareAndSwap(false, true) {
		return false, ErrAlreadyRan
	}
	defer close(c.done)

	var timer *time.Timer
	var timerC <-chan time.Time
	if c.spec.Timeout > 0 {
		timer = time.NewTimer(c.spec.Timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			c.result.Set(false)
			v, _ := c.result.Get()
			return v, ctx.Err()

		case <-c.stop:
			v, _ := c.result.Get()
			return v, nil

		case <-c.result.Done():
			v, _ := c.result.Get()
			return v, nil

		case <-c.rearm:
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(c.spec.Timeout)
			}

		case <-timerC:
			c.watchdogPump(ctx)
		}
	}
}

// watchdogPump blocks to acquire c.mu (it must run even if handler threads
// are saturating the non-blocking path) and repeats the make-progress
// sequence — drain queue, try internals, force one internal round — until a
// pass produces no change. If every step of that final pass was a no-op, the
// environment is genuinely quiescent: the run settles here, Result completing
// true iff the Simulator sits in its final state and false otherwise (this is
// the only path by which a silent environment ever fails a run, per the
// Repeat-count-mismatch timeout case).
//
// A timer fire and a fresh transition can race: processLocked may re-arm
// the timeout concurrently with this call's acquisition of c.mu, so the
// first thing done under the lock is to verify the timestamp still looks
// stale. If some transition landed inside the last full timeout window,
// this wake is the stale one — another rearm is already pending (or has
// already reset the timer) and this call no-ops rather than spuriously
// failing a run that is still making progress.
func (c *Controller) watchdogPump(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sim.Errored() {
		return
	}

	if time.Since(c.lastActivity) < c.spec.Timeout {
		return
	}

	anyProgress := false
	for {
		progressed := false

		if c.ingress.Len() > 0 {
			before := c.ingress.Len()
			c.drainLocked(ctx)
			if c.sim.Errored() {
				return
			}
			if c.ingress.Len() < before {
				progressed = true
			}
		}

		for c.sim.allActive() {
			res, ok := c.sim.fireInternalRound(ctx, c.sim.ids())
			if !ok {
				break
			}
			progressed = true
			if res.Err != nil {
				c.actOnResult(ctx, res)
				return
			}
		}

		if !progressed {
			res, fired := c.sim.forceInternalTransitions(ctx)
			if fired {
				progressed = true
				if res.Err != nil {
					c.actOnResult(ctx, res)
					return
				}
			}
		}

		if !progressed {
			break
		}
		anyProgress = true
	}

	if anyProgress {
		c.opts.logger.Warning().Log("specsim: watchdog forced internal progress")
		c.markActivityLocked()
		return
	}

	c.result.Set(c.sim.IsFinal())
}

// Stop ends Run without settling Result true or false, for callers that
// tear a harness down deliberately (e.g. test cleanup after an assertion
// failure elsewhere). Safe to call more than once.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Result returns the run's terminal pass/fail cell.
func (c *Controller) Result() *Result { return c.result }

// TransitionLog delegates to the underlying Simulator.
func (c *Controller) TransitionLog() []TransitionLogEntry { return c.sim.TransitionLog() }

// Errored delegates to the underlying Simulator.
func (c *Controller) Errored() bool { return c.sim.Errored() }
