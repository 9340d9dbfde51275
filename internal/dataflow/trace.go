package dataflow

import (
	"strings"
	"sync"
)

// update is one (key, time, diff) tuple appended to a trace's log. The
// arrangement stores values only as a unit sentinel: rows are keys with
// multiplicities, since peek results here are multisets of rows.
type update struct {
	key  Row
	time Timestamp
	diff int64
}

func encodeRow(r Row) string {
	parts := make([]string, len(r))
	for i, d := range r {
		parts[i] = d.Str
	}
	return strings.Join(parts, "\x00")
}

// Trace is a cloneable reader over a physical arrangement: an
// append-only log of updates plus the current upper frontier. Clone
// shares the underlying storage, matching differential dataflow's
// cheap, thread-safe-for-reading trace handles (spec §3/§5).
type Trace struct {
	shared *traceShared
}

type traceShared struct {
	mu    sync.Mutex
	log   []update
	upper Antichain
}

// NewTrace returns an empty trace with the given initial upper
// frontier.
func NewTrace(upper Antichain) *Trace {
	return &Trace{shared: &traceShared{upper: upper}}
}

// Clone returns a handle sharing the same underlying storage.
func (t *Trace) Clone() *Trace {
	return &Trace{shared: t.shared}
}

// Insert appends a (key, time, diff) update to the trace's log.
func (t *Trace) Insert(key Row, time Timestamp, diff int64) {
	t.shared.mu.Lock()
	defer t.shared.mu.Unlock()
	t.shared.log = append(t.shared.log, update{key: key, time: time, diff: diff})
}

// SetUpper sets the trace's current upper frontier.
func (t *Trace) SetUpper(u Antichain) {
	t.shared.mu.Lock()
	defer t.shared.mu.Unlock()
	t.shared.upper = u
}

// ReadUpper returns the trace's current upper frontier.
func (t *Trace) ReadUpper() Antichain {
	t.shared.mu.Lock()
	defer t.shared.mu.Unlock()
	return t.shared.upper
}

// snapshot returns a defensive copy of the log for cursoring.
func (t *Trace) snapshot() []update {
	t.shared.mu.Lock()
	defer t.shared.mu.Unlock()
	out := make([]update, len(t.shared.log))
	copy(out, t.shared.log)
	return out
}

// Cursor iterates the trace's distinct keys in a stable (insertion)
// order, offering per-key access to its (time, diff) history.
type Cursor struct {
	keys    []string
	byKey   map[string]Row
	times   map[string][]update
	pos     int
}

// Cursor opens a cursor over the trace's current contents.
func (t *Trace) Cursor() *Cursor {
	log := t.snapshot()
	c := &Cursor{
		byKey: make(map[string]Row),
		times: make(map[string][]update),
	}
	for _, u := range log {
		k := encodeRow(u.key)
		if _, ok := c.byKey[k]; !ok {
			c.byKey[k] = u.key
			c.keys = append(c.keys, k)
		}
		c.times[k] = append(c.times[k], u)
	}
	return c
}

// GetKey returns the current key, or false if the cursor is exhausted.
func (c *Cursor) GetKey() (Row, bool) {
	if c.pos >= len(c.keys) {
		return nil, false
	}
	return c.byKey[c.keys[c.pos]], true
}

// MapTimes calls f for every (time, diff) recorded for the current key.
func (c *Cursor) MapTimes(f func(time Timestamp, diff int64)) {
	if c.pos >= len(c.keys) {
		return
	}
	for _, u := range c.times[c.keys[c.pos]] {
		f(u.time, u.diff)
	}
}

// StepKey advances the cursor to the next key.
func (c *Cursor) StepKey() {
	c.pos++
}

// Peek accumulates the trace's contents as of timestamp t: for each
// key, sums diff over every (time, diff) entry with time <= t, and
// emits the key that many times. Asserts the accumulated count is
// never negative (spec §4.6 step 2's invariant) — a violation is a
// trace contract violation and is fatal.
func (t *Trace) Peek(at Timestamp) []Row {
	cur := t.Cursor()
	var results []Row
	for {
		key, ok := cur.GetKey()
		if !ok {
			break
		}
		var copies int64
		cur.MapTimes(func(time Timestamp, diff int64) {
			if time <= at {
				copies += diff
			}
		})
		if copies < 0 {
			panic("dataflow: trace produced a negative multiplicity at a final timestamp")
		}
		for i := int64(0); i < copies; i++ {
			results = append(results, key)
		}
		cur.StepKey()
	}
	return results
}

// TraceRegistry maps a RelationExpr (by its Key) to its trace handle.
// It is written by the external dataflow builder at CreateDataflow
// time and read by the peek sequencer and peek processor (spec §4.4).
type TraceRegistry struct {
	mu     sync.Mutex
	traces map[string]*Trace
}

// NewTraceRegistry returns an empty registry.
func NewTraceRegistry() *TraceRegistry {
	return &TraceRegistry{traces: make(map[string]*Trace)}
}

// Set installs (or replaces) the trace for expr.
func (r *TraceRegistry) Set(expr RelationExpr, t *Trace) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces[expr.Key()] = t
}

// GetTrace returns a clone of the trace registered for expr, or false
// if none is installed.
func (r *TraceRegistry) GetTrace(expr RelationExpr) (*Trace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.traces[expr.Key()]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// DelTrace removes the trace registered for expr, if any.
func (r *TraceRegistry) DelTrace(expr RelationExpr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.traces, expr.Key())
}

// DelAll removes every registered trace.
func (r *TraceRegistry) DelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces = make(map[string]*Trace)
}
