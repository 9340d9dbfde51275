package dataflow

import "math"

// Timestamp is the scalar logical time used throughout the core. It is
// densely representable and totally ordered; predecessor is saturating
// subtraction by one.
type Timestamp uint64

// MaxTimestamp represents "no constraint" when a dataflow has no
// transitive inputs (see rootInputTime).
const MaxTimestamp Timestamp = math.MaxUint64

// Pred returns the predecessor of t, saturating at zero.
func (t Timestamp) Pred() Timestamp {
	if t == 0 {
		return 0
	}
	return t - 1
}

// Antichain is the frontier of a scalar timestamp domain: either empty
// (no further updates will ever occur) or a single element u meaning
// "all future updates have time >= u".
type Antichain struct {
	elements []Timestamp
}

// EmptyAntichain returns the closed (end-of-stream) frontier.
func EmptyAntichain() Antichain {
	return Antichain{}
}

// SingletonAntichain returns the frontier {u}.
func SingletonAntichain(u Timestamp) Antichain {
	return Antichain{elements: []Timestamp{u}}
}

// Empty reports whether the frontier carries no elements.
func (a Antichain) Empty() bool {
	return len(a.elements) == 0
}

// Elements returns the frontier's elements. The core's scalar-timestamp
// assumption (spec §9) means this is 0 or 1 elements; callers that need
// the single element should assert len == 1 first.
func (a Antichain) Elements() []Timestamp {
	return a.elements
}

// LessEqual reports whether some element of the frontier is <= t, i.e.
// whether t is NOT yet final: further updates at or before t may still
// arrive.
func (a Antichain) LessEqual(t Timestamp) bool {
	for _, u := range a.elements {
		if u <= t {
			return true
		}
	}
	return false
}

// Final reports whether t is final under this frontier: no element of
// the frontier is <= t, so nothing at or before t can change again.
func (a Antichain) Final(t Timestamp) bool {
	return !a.LessEqual(t)
}

// LatestFinal returns the latest timestamp that is final under this
// frontier: u-1 if the frontier is {u}, or 0 if it is empty. Panics if
// the frontier carries more than one element — the core only ever
// constructs single-element frontiers (spec §9).
func (a Antichain) LatestFinal() Timestamp {
	switch len(a.elements) {
	case 0:
		return 0
	case 1:
		return a.elements[0].Pred()
	default:
		panic("dataflow: frontier has more than one element; scalar-timestamp assumption violated")
	}
}
