package dataflow

import (
	"fmt"
	"sync"
)

// PeekResultsHandler delivers a retired peek's result multiset to its
// connection (spec §6). Implementations live in internal/results:
// Local (an in-process registry keyed by ConnID) and Remote (an HTTP
// POST to a configured endpoint). A Local delivery failure (receiver
// gone) must be swallowed by the implementation and never surface
// here; a Remote delivery failure is reported and is fatal to the
// worker (spec §7/§9).
type PeekResultsHandler interface {
	Deliver(conn ConnID, exprName string, timestamp Timestamp, rows []Row) error
}

// discardHandler silently drops every delivery. Serve wires it onto
// every worker but worker 0: workers 1..N-1 still retire peeks (so
// their pending lists and auto-drop behavior stay correct) but must
// never forward a result, since the real handler is shared pool-wide
// and would otherwise be invoked once per worker for the same peek.
type discardHandler struct{}

func (discardHandler) Deliver(ConnID, string, Timestamp, []Row) error { return nil }

// bootstrapCommands is the fixed list every worker replays under the
// nil connection identity before entering its main loop (spec §6): a
// Local Source named "dual" with one NOT NULL string column, seeded
// with a single row. The SQL layer above the core depends on this
// table existing.
func bootstrapCommands() []Command {
	typ := RelationType{Columns: []ColumnType{{Name: "x", Nullable: false, Scalar: ScalarString}}}
	return []Command{
		CreateDataflow(NilConnID, NewSource("dual", typ, LocalConnector)),
		Insert(NilConnID, "dual", []Row{{{Str: "X"}}}),
	}
}

// Serve distributes receivers to numWorkers symmetric workers and runs
// them to completion (spec §6's "serve(receivers, handler, num_workers)
// ... Distributes receivers to workers by index"). It blocks until
// every worker has exited, then returns the first fatal error
// encountered, if any.
func Serve(receivers []<-chan Command, handler PeekResultsHandler, numWorkers int) error {
	if len(receivers) != numWorkers {
		return fmt.Errorf("dataflow: got %d receivers for %d workers", len(receivers), numWorkers)
	}

	// The startup-time handoff is a one-shot claim per worker index: a
	// fixed-size collection of optional receivers behind a mutex used
	// only during initialization (spec §9).
	claim := &receiverClaim{receivers: receivers}

	seq := NewSequencer(numWorkers)
	stop := make(chan struct{})
	var stopOnce sync.Once

	var wg sync.WaitGroup
	errs := make([]error, numWorkers)
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("dataflow: worker %d: %v", i, r)
					stopOnce.Do(func() { close(stop) })
				}
			}()
			recv := claim.take(i)
			// Every worker retires the same broadcast peeks and computes
			// the same result (spec §8's "each worker's trace holds
			// identical contents"), but only one delivery may reach the
			// configured sink ("exactly one copy of each row is
			// delivered"). Worker 0 is already the fixed source of
			// truth for sequencing and for Insert's row emission (spec
			// §4.2/§4.5); delivery follows the same asymmetry so a
			// Remote sink isn't POSTed to numWorkers times over and a
			// Local sink's channel doesn't receive numWorkers copies.
			h := handler
			if i != 0 {
				h = discardHandler{}
			}
			w := NewWorker(i, recv, h, seq, stop)
			w.Run()
		}(i)
	}
	wg.Wait()

	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// receiverClaim represents the shared command-receiver collection:
// shared once across workers at startup so each can claim its own
// receiver by index (spec §5).
type receiverClaim struct {
	mu        sync.Mutex
	receivers []<-chan Command
	claimed   []bool
}

func (c *receiverClaim) take(index int) <-chan Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.claimed == nil {
		c.claimed = make([]bool, len(c.receivers))
	}
	if c.claimed[index] {
		panic(fmt.Sprintf("dataflow: receiver %d already claimed", index))
	}
	c.claimed[index] = true
	return c.receivers[index]
}
