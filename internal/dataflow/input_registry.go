package dataflow

import "sync"

// InputRegistry maps a source name to its input capability. Invariant:
// for any name N present here, a Source dataflow named N is present in
// the dataflow registry (spec §4.3).
type InputRegistry struct {
	mu     sync.Mutex
	inputs map[string]InputCapability
}

// NewInputRegistry returns an empty registry.
func NewInputRegistry() *InputRegistry {
	return &InputRegistry{inputs: make(map[string]InputCapability)}
}

// Set installs (or replaces) the capability for name.
func (r *InputRegistry) Set(name string, cap InputCapability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs[name] = cap
}

// Get returns the capability for name, if present.
func (r *InputRegistry) Get(name string) (InputCapability, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.inputs[name]
	return c, ok
}

// Remove deletes the capability for name, if present.
func (r *InputRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inputs, name)
}

// DowngradeAll downgrades every registered capability to t. External
// capabilities are left untouched by Downgrade itself (spec §4.2/§9).
func (r *InputRegistry) DowngradeAll(t Timestamp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.inputs {
		c.Downgrade(t)
	}
}
