package dataflow

import "sync"

// Capability is a permit to emit records at a specific logical time and
// to downgrade that time monotonically. It is held by a Local input.
type Capability struct {
	mu   sync.Mutex
	time Timestamp
}

// NewCapability returns a capability initialized at t.
func NewCapability(t Timestamp) *Capability {
	return &Capability{time: t}
}

// Time returns the capability's current time.
func (c *Capability) Time() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.time
}

// Downgrade advances the capability to t. The core never downgrades
// backwards; callers are expected to pass a monotonically increasing t
// (input_time only ever increases, spec §5).
func (c *Capability) Downgrade(t Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.time = t
}

// Session is a handle for giving rows to a Local input at the
// capability's current time.
type Session struct {
	trace *Trace
	time  Timestamp
}

// Give emits row with diff d at the session's time.
func (s Session) Give(row Row, d int64) {
	s.trace.Insert(row, s.time, d)
}

// ExternalCapability observes a capability driven elsewhere; it is
// read-only from the core's perspective.
type ExternalCapability struct {
	inner *Capability
}

// Time returns the externally-driven capability's current time.
func (c ExternalCapability) Time() Timestamp {
	return c.inner.Time()
}

// InputCapability is the handle the input registry stores per source
// name: either a Local session-writable capability plus the trace it
// feeds, or a read-only observation of an External capability.
type InputCapability struct {
	Local bool

	// Local
	Capability *Capability
	Trace      *Trace

	// External
	External ExternalCapability
}

// Session opens a session on a Local input's capability at the given
// time. Calling Session on an External input is a contract violation.
func (c InputCapability) Session(t Timestamp) Session {
	if !c.Local {
		panic("dataflow: attempted to open a session on an external input")
	}
	return Session{trace: c.Trace, time: t}
}

// Time returns the input's current capability time, whether Local or
// External.
func (c InputCapability) Time() Timestamp {
	if c.Local {
		return c.Capability.Time()
	}
	return c.External.Time()
}

// Downgrade advances a Local input's capability to t, and with it the
// upper frontier of the trace it feeds (a Source's trace is never
// touched by the engine's Step, so this is the only thing that moves
// it forward as input_time advances). It is a no-op on an External
// input: External capabilities are driven by their upstream owner and
// are never downgraded here (spec §4.2/§9).
func (c InputCapability) Downgrade(t Timestamp) {
	if c.Local {
		c.Capability.Downgrade(t)
		c.Trace.SetUpper(SingletonAntichain(t))
	}
}
