package dataflow

import "sync"

// pendingPeek is the item the sequencer totally orders: a peek that
// has been assigned its timestamp and is ready to become pending on
// every worker (spec §3/§4.5).
type pendingPeek struct {
	expr           RelationExpr
	conn           ConnID
	timestamp      Timestamp
	dropAfterPeek  *Dataflow
}

// Sequencer imposes a single total order on peeks across all workers:
// only worker 0 pushes, every worker (including 0) pulls, and every
// worker observes the same sequence in the same order (spec §4.5,
// §9's "broadcast sequencing of peeks"). It is shared once across the
// worker pool at construction; each worker holds only its own index.
//
// Re-implementers on a real distributed timely cluster would back this
// with the execution engine's own broadcast primitive, driven by the
// same steps that advance operator frontiers, rather than a lock — the
// in-process pool here has no such engine to ride on, so a mutex over
// per-worker queues is the direct equivalent.
type Sequencer struct {
	mu      sync.Mutex
	queues  [][]pendingPeek
}

// NewSequencer returns a Sequencer serving numWorkers workers.
func NewSequencer(numWorkers int) *Sequencer {
	return &Sequencer{queues: make([][]pendingPeek, numWorkers)}
}

// Push broadcasts item to every worker's queue, in the order Push is
// called. Only worker 0 may call this (enforced by the caller, as in
// the original: sequence_peek returns early on any other worker).
func (s *Sequencer) Push(item pendingPeek) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.queues {
		s.queues[i] = append(s.queues[i], item)
	}
}

// Next pops the next item queued for worker index, or false if none is
// pending. Non-blocking: the worker loop never waits on this.
func (s *Sequencer) Next(index int) (pendingPeek, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[index]
	if len(q) == 0 {
		return pendingPeek{}, false
	}
	item := q[0]
	s.queues[index] = q[1:]
	return item, true
}
