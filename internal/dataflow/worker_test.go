package dataflow

import (
	"sync"
	"testing"
)

// capturedDelivery is one recorded call to a fakeHandler's Deliver.
type capturedDelivery struct {
	conn      ConnID
	exprName  string
	timestamp Timestamp
	rows      []Row
}

// fakeHandler is a PeekResultsHandler that records every delivery
// instead of sending it anywhere, so tests can assert on what a
// worker decided to retire.
type fakeHandler struct {
	mu   sync.Mutex
	got  []capturedDelivery
	fail error
}

func (h *fakeHandler) Deliver(conn ConnID, exprName string, timestamp Timestamp, rows []Row) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail != nil {
		return h.fail
	}
	cp := append([]Row(nil), rows...)
	h.got = append(h.got, capturedDelivery{conn: conn, exprName: exprName, timestamp: timestamp, rows: cp})
	return nil
}

func (h *fakeHandler) deliveries() []capturedDelivery {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]capturedDelivery(nil), h.got...)
}

func newTestWorker(index int, handler PeekResultsHandler, seq *Sequencer) *Worker {
	return NewWorker(index, make(chan Command), handler, seq, make(chan struct{}))
}

func numsType() RelationType {
	return RelationType{Columns: []ColumnType{{Name: "n", Scalar: ScalarString}}}
}

// Scenario: every worker replays the fixed bootstrap list (a Local
// "dual" source seeded with one row) before anything else runs.
func TestWorker_BootstrapReplaysDualTable(t *testing.T) {
	w := newTestWorker(0, &fakeHandler{}, NewSequencer(1))
	for _, cmd := range bootstrapCommands() {
		w.handleCommand(cmd)
	}
	w.engine.Step()

	trace, ok := w.traces.GetTrace(Get("dual", RelationType{}))
	if !ok {
		t.Fatal("expected a trace registered for \"dual\" after bootstrap")
	}

	at := trace.ReadUpper().LatestFinal()
	rows := trace.Peek(at)
	if len(rows) != 1 || rows[0][0].Str != "X" {
		t.Fatalf("dual table = %v, want a single row {X}", rows)
	}
}

// Scenario: insert a row, then peek Immediately; the peek must be
// retired (delivered) on the same pass since the write already
// happened at a now-closed timestamp.
func TestWorker_InsertThenImmediatePeek(t *testing.T) {
	handler := &fakeHandler{}
	w := newTestWorker(0, handler, NewSequencer(1))

	src := NewSource("nums", numsType(), LocalConnector)
	w.handleCommand(CreateDataflow(NilConnID, src))
	w.handleCommand(Insert(NilConnID, "nums", []Row{{{Str: "1"}}, {{Str: "2"}}}))
	w.engine.Step()

	conn := NilConnID
	w.handleCommand(PeekExisting(conn, src, Immediately()))
	w.processPeeks()

	got := handler.deliveries()
	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}
	if len(got[0].rows) != 2 {
		t.Fatalf("expected 2 rows delivered, got %d", len(got[0].rows))
	}
	if len(w.pending) != 0 {
		t.Fatalf("expected no pending peeks left, got %d", len(w.pending))
	}
}

// Scenario: a peek pinned to a timestamp beyond the input's current
// upper must stay pending (never delivered) until enough inserts
// advance input_time past it.
func TestWorker_AtTimestampInFutureStaysPendingUntilFlushed(t *testing.T) {
	handler := &fakeHandler{}
	w := newTestWorker(0, handler, NewSequencer(1))

	src := NewSource("nums", numsType(), LocalConnector)
	w.handleCommand(CreateDataflow(NilConnID, src))
	w.handleCommand(Insert(NilConnID, "nums", []Row{{{Str: "1"}}}))
	w.engine.Step()

	conn := NilConnID
	w.handleCommand(PeekExisting(conn, src, AtTimestamp(5)))
	w.processPeeks()

	if len(handler.deliveries()) != 0 {
		t.Fatal("expected no delivery while input_time has not reached the requested timestamp")
	}
	if len(w.pending) != 1 {
		t.Fatalf("expected 1 pending peek, got %d", len(w.pending))
	}

	for i := 0; i < 10; i++ {
		w.handleCommand(Insert(NilConnID, "nums", []Row{{{Str: "more"}}}))
		w.engine.Step()
		w.processPeeks()
	}

	got := handler.deliveries()
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 delivery once input_time passed the target, got %d", len(got))
	}
	if got[0].timestamp != 5 {
		t.Fatalf("delivered at timestamp %d, want 5", got[0].timestamp)
	}
	if len(w.pending) != 0 {
		t.Fatalf("expected the peek to no longer be pending, got %d", len(w.pending))
	}
}

// Scenario: PeekTransient installs a throwaway view, peeks it, and
// drops it again once the peek retires — the view must not outlive
// its single peek.
func TestWorker_TransientPeekDropsItselfAfterDelivery(t *testing.T) {
	handler := &fakeHandler{}
	w := newTestWorker(0, handler, NewSequencer(1))

	src := NewSource("nums", numsType(), LocalConnector)
	w.handleCommand(CreateDataflow(NilConnID, src))
	w.handleCommand(Insert(NilConnID, "nums", []Row{{{Str: "1"}}, {{Str: "2"}}, {{Str: "3"}}}))
	w.engine.Step()

	conn := NilConnID
	expr := Get("nums", numsType())
	w.handleCommand(PeekTransient(conn, expr, Immediately()))

	if len(w.dataflows) != 2 { // "nums" plus the transient view
		t.Fatalf("expected 2 installed dataflows after PeekTransient, got %d", len(w.dataflows))
	}

	w.engine.Step()
	w.processPeeks()

	got := handler.deliveries()
	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}
	if len(got[0].rows) != 3 {
		t.Fatalf("expected 3 rows delivered from the transient view, got %d", len(got[0].rows))
	}

	if len(w.dataflows) != 1 {
		t.Fatalf("expected the transient view to be dropped after delivery, %d dataflows remain", len(w.dataflows))
	}
	if _, ok := w.traces.GetTrace(Get(got[0].exprName, RelationType{})); ok {
		t.Fatal("expected the transient view's trace to be gone after drop")
	}
}

// Scenario: with N symmetric workers applying the same commands, a
// peek sequenced by worker 0 is answered identically by every worker.
func TestWorker_MultiWorkerFanOutAgreesOnResult(t *testing.T) {
	const n = 3
	seq := NewSequencer(n)
	handlers := make([]*fakeHandler, n)
	workers := make([]*Worker, n)
	for i := 0; i < n; i++ {
		handlers[i] = &fakeHandler{}
		workers[i] = newTestWorker(i, handlers[i], seq)
	}

	src := NewSource("nums", numsType(), LocalConnector)
	createCmd := CreateDataflow(NilConnID, src)
	insertCmd := Insert(NilConnID, "nums", []Row{{{Str: "1"}}, {{Str: "2"}}})

	for _, w := range workers {
		w.handleCommand(createCmd)
		w.handleCommand(insertCmd)
		w.engine.Step()
	}

	// Only worker 0 sequences the peek; every worker intakes the
	// broadcast identically.
	workers[0].handleCommand(PeekExisting(NilConnID, src, Immediately()))
	for _, w := range workers {
		w.processPeeks()
	}

	for i, h := range handlers {
		got := h.deliveries()
		if len(got) != 1 {
			t.Fatalf("worker %d: expected 1 delivery, got %d", i, len(got))
		}
		if len(got[0].rows) != 2 {
			t.Fatalf("worker %d: expected 2 rows, got %d", i, len(got[0].rows))
		}
	}
}

// Scenario: a peek still pending when the worker is torn down must
// never be delivered, not even a partial/incorrect result.
func TestWorker_PendingPeekNeverDeliveredWithoutRetirement(t *testing.T) {
	handler := &fakeHandler{}
	w := newTestWorker(0, handler, NewSequencer(1))

	src := NewSource("nums", numsType(), LocalConnector)
	w.handleCommand(CreateDataflow(NilConnID, src))
	w.handleCommand(Insert(NilConnID, "nums", []Row{{{Str: "1"}}}))
	w.engine.Step()

	w.handleCommand(PeekExisting(NilConnID, src, AtTimestamp(MaxTimestamp)))
	w.processPeeks()

	if len(handler.deliveries()) != 0 {
		t.Fatal("expected no delivery for a peek that never became final")
	}
	if len(w.pending) != 1 {
		t.Fatalf("expected the peek to remain pending, got %d pending", len(w.pending))
	}

	w.handleCommand(Shutdown(NilConnID))

	if len(handler.deliveries()) != 0 {
		t.Fatal("Shutdown must not retroactively deliver a peek that never retired")
	}
}
