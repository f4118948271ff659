package specsim

import "reflect"

// structuralEqual is the default EventLabel match strategy when no
// Comparator has been registered for the event's class: plain deep
// equality, good enough for the POD-shaped events (Ping{0}, Pong{1}, ...)
// typical test scenarios use.
func structuralEqual(expected, observed Event) bool {
	return reflect.DeepEqual(expected, observed)
}

// classOf returns the reflect.Type key used to index comparator and
// default-action registrations. A nil event has no class and never
// matches a registration.
func classOf(e Event) (reflect.Type, bool) {
	if e == nil {
		return nil, false
	}
	return reflect.TypeOf(e), true
}

// classDispatch implements the "most-specific registered ancestor wins"
// lookup used by comparator and default-action registration, emulating
// class-hierarchy dispatch without a source-language runtime: the embedder registers an IsSubtype
// predicate per pair of event kinds (or relies on Go's own type identity,
// which is all that's needed when events are declared as concrete structs
// rather than an open class hierarchy).
type classDispatch[V any] struct {
	// order is the registration order, most-recently-registered last.
	// lookup walks it when searching for a registered ancestor, so among
	// ancestors neither of which is a subtype of the other the earliest
	// registered wins, rather than an arbitrary map iteration order. With
	// a nil isSubtype only an exact-type registration matches.
	order     []reflect.Type
	byType    map[reflect.Type]V
	isSubtype func(sub, super reflect.Type) bool
}

func newClassDispatch[V any](isSubtype func(sub, super reflect.Type) bool) *classDispatch[V] {
	return &classDispatch[V]{
		byType:    make(map[reflect.Type]V),
		isSubtype: isSubtype,
	}
}

func (d *classDispatch[V]) register(t reflect.Type, v V) {
	if _, exists := d.byType[t]; !exists {
		d.order = append(d.order, t)
	}
	d.byType[t] = v
}

// lookup returns the value registered for the minimal (most specific)
// ancestor of t, and whether any registration matched.
func (d *classDispatch[V]) lookup(t reflect.Type) (V, bool) {
	var zero V
	if t == nil {
		return zero, false
	}
	if v, ok := d.byType[t]; ok {
		return v, true
	}
	if d.isSubtype == nil {
		return zero, false
	}
	// Minimal ancestor: among registered supertypes of t, the one that is
	// not itself a strict supertype of any other registered supertype of
	// t. With no declared partial order beyond IsSubtype, registration
	// order breaks ties deterministically.
	var best reflect.Type
	var bestVal V
	for _, candidate := range d.order {
		if candidate == t || !d.isSubtype(t, candidate) {
			continue
		}
		if best == nil || d.isSubtype(candidate, best) {
			best = candidate
			bestVal = d.byType[candidate]
		}
	}
	if best == nil {
		return zero, false
	}
	return bestVal, true
}
