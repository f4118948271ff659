package specsim

// collectCandidates runs the ordered per-state matching policy against
// every state in the current set, then folds the results into a single
// next-states target list, a single primary forward decision (at most one
// "new" match's symbol is ever claimed as the primary forward per
// DoTransition call), and any secondary forwards an UnorderedLabel batch
// released on completion. ok is false if no state produced a candidate.
func (sim *Simulator) collectCandidates(s Symbol) (targets []StateID, forward bool, fwdSymbol Symbol, alsoForward []Symbol, ok bool) {
	forwardClaimed := false

	for id := range sim.current {
		st := sim.spec.Arena.State(id)

		if label, matched := st.Block.consume(func(l Label) bool { return labelMatches(l, s) }); matched {
			_ = label
			targets = append(targets, id)
			ok = true
			if !forwardClaimed {
				forward, fwdSymbol, forwardClaimed = true, s, true
			}
			continue
		}

		if target, fwd, queued, handled := sim.matchOutgoing(st, s); handled {
			targets = append(targets, target)
			ok = true
			alsoForward = append(alsoForward, queued...)
			if fwd && !forwardClaimed {
				forward, fwdSymbol, forwardClaimed = true, s, true
			}
			continue
		}

		if rule, matched := st.Block.matchHeader(s); matched {
			switch rule.Kind {
			case HeaderBlacklist:
				sim.enterError(&TransitionError{Symbol: s.String(), Block: blockName(st.Block), Cause: ErrBlacklistedEvent})
				return nil, false, Symbol{}, nil, false
			case HeaderWhitelist:
				targets = append(targets, id)
				ok = true
				if !forwardClaimed {
					forward, fwdSymbol, forwardClaimed = true, s, true
				}
			case HeaderDrop:
				targets = append(targets, id)
				ok = true
			}
		}
	}

	return targets, forward, fwdSymbol, alsoForward, ok
}

// matchOutgoing checks st's ordinary outgoing transitions against s,
// handling the UnorderedLabel and AnswerRequestLabel special cases.
// handled reports whether any outgoing transition consumed s (even if the
// resulting target is st itself). queued carries the batch's own earlier,
// queued matches released now that the set has completed (forward-order,
// ahead of s itself).
func (sim *Simulator) matchOutgoing(st *State, s Symbol) (target StateID, forward bool, queued []Symbol, handled bool) {
	for _, t := range st.Out {
		switch l := t.Label.(type) {
		case *UnorderedLabel:
			matched, completed, forwardNow := l.tryMatch(s)
			if !matched {
				continue
			}
			if !completed {
				return st.ID, forwardNow, nil, true
			}
			if l.ForwardImmediately {
				// Every member, including s, already forwarded at its own
				// match time; nothing further to release.
				return t.Target, forwardNow, nil, true
			}
			// tryMatch queued every member, including s (just appended,
			// as the last entry). Release them all now, in match order;
			// s itself is excluded from queued since it becomes the
			// caller's primary ForwardSymbol.
			all := l.drainQueued()
			if n := len(all); n > 0 {
				queued = all[:n-1]
			}
			return t.Target, true, queued, true

		case *AnswerRequestLabel:
			if !l.matches(s) {
				continue
			}
			l.matchedEvent = s.Event
			l.matchedOK = true
			if l.Future != nil {
				l.Future.Set(s)
			}
			if l.TriggerImmediate {
				sim.fireAnswerBatch(l)
			}
			return t.Target, false, nil, true

		default:
			if labelMatches(t.Label, s) {
				return t.Target, t.ForwardEvent, nil, true
			}
		}
	}
	return 0, false, nil, false
}

// fireAnswerBatch triggers every sibling in l's declaration-ordered batch
// that has matched and carries a Mapper, in declaration order, once the
// batch's designated last member matches.
func (sim *Simulator) fireAnswerBatch(l *AnswerRequestLabel) {
	ctx := sim.ctx
	for _, sibling := range l.Batch {
		if sibling.Mapper == nil || !sibling.matchedOK {
			continue
		}
		response := sibling.Mapper(sibling.matchedEvent)
		_ = sim.effector.Trigger(ctx, response, sibling.ResponsePort)
	}
}

// labelMatches dispatches to the concrete label's matches method for the
// kinds that are ever checked directly against a Symbol (Event, Predicate,
// Fault); Unordered and AnswerRequest are handled by matchOutgoing instead.
// Every other kind returns false, including the Epsilon edges of Kleene and
// Conditional starts that matchOutgoing's default case passes in.
func labelMatches(l Label, s Symbol) bool {
	switch v := l.(type) {
	case *EventLabel:
		return v.matches(s)
	case *PredicateLabel:
		return v.matches(s)
	case *FaultLabel:
		return v.matches(s)
	default:
		return false
	}
}

// applyDefaultAction looks up the most-specific registered DefaultAction
// for s's event class and applies it
// uniformly across every state in the current set (ActionFail enters the
// error state; ActionHandle forwards and leaves states unchanged;
// ActionDrop consumes silently). A fault symbol, or an event with no
// registered default action, is always ActionFail.
func (sim *Simulator) applyDefaultAction(s Symbol) TransitionResult {
	action := ActionFail
	if !s.Fault {
		if t, ok := classOf(s.Event); ok {
			if a, found := sim.spec.DefaultActions.lookup(t); found {
				action = a
			}
		}
	}

	switch action {
	case ActionHandle:
		sim.appendLog(TransitionLogEntry{Symbol: s.String(), To: sim.ids(), Forward: true})
		return TransitionResult{Forward: true, ForwardSymbol: s, Final: sim.IsFinal()}
	case ActionDrop:
		sim.appendLog(TransitionLogEntry{Symbol: s.String(), To: sim.ids(), Forward: false})
		return TransitionResult{Final: sim.IsFinal()}
	default:
		return sim.enterError(&TransitionError{Symbol: s.String(), Block: "default", Cause: ErrNoMatchingTransition})
	}
}
