package dataflow

// pendingEntry pairs a sequenced peek with the trace it targets, once
// resolved from the trace registry at intake (spec §4.6).
type pendingEntry struct {
	peek  pendingPeek
	trace *Trace
}

// Worker holds one worker's private state: its registries, its
// command receiver, its view of the sequencer, and the engine that
// backs its installed dataflows. Every field here is exclusively owned
// by this worker's goroutine; only the sequencer and trace handles are
// ever shared (spec §3 Ownership, §5).
type Worker struct {
	index   int
	cmdCh   <-chan Command
	handler PeekResultsHandler
	seq     *Sequencer
	stop    <-chan struct{}

	engine    *Engine
	traces    *TraceRegistry
	inputs    *InputRegistry
	dataflows map[string]Dataflow

	inputTime        Timestamp
	transientCounter uint64

	pending []pendingEntry
}

// NewWorker constructs a worker bound to its own command receiver and
// the pool-wide sequencer and stop signal.
func NewWorker(index int, cmdCh <-chan Command, handler PeekResultsHandler, seq *Sequencer, stop <-chan struct{}) *Worker {
	return &Worker{
		index:     index,
		cmdCh:     cmdCh,
		handler:   handler,
		seq:       seq,
		stop:      stop,
		engine:    NewEngine(),
		traces:    NewTraceRegistry(),
		inputs:    NewInputRegistry(),
		dataflows: make(map[string]Dataflow),
		inputTime: 1,
		transientCounter: 1,
	}
}

// Run replays the bootstrap list, then loops until Shutdown is
// observed. Each iteration performs, in order: one non-blocking engine
// step, a sweep of pending peeks, and a non-blocking drain of newly
// arrived commands (spec §4.1). After the loop, registries are cleared
// so the underlying engine can quiesce.
func (w *Worker) Run() {
	for _, cmd := range bootstrapCommands() {
		w.handleCommand(cmd)
	}

	shutdown := false
	for !shutdown {
		select {
		case <-w.stop:
			return
		default:
		}

		w.engine.Step()
		w.processPeeks()

	drain:
		for {
			select {
			case cmd, ok := <-w.cmdCh:
				if !ok {
					shutdown = true
					break drain
				}
				if cmd.Kind == CmdShutdown {
					shutdown = true
				}
				w.handleCommand(cmd)
			default:
				break drain
			}
		}
	}

	w.inputs = NewInputRegistry()
	w.dataflows = make(map[string]Dataflow)
	w.traces.DelAll()
}

// handleCommand applies cmd to this worker's local state (spec §4.2).
func (w *Worker) handleCommand(cmd Command) {
	switch cmd.Kind {
	case CmdCreateDataflow:
		w.engine.BuildDataflow(cmd.Dataflow, w.traces, w.inputs, w.inputTime)
		w.dataflows[cmd.Dataflow.Name] = cmd.Dataflow

	case CmdDropDataflows:
		for _, d := range cmd.Dataflows {
			w.inputs.Remove(d.Name)
			delete(w.dataflows, d.Name)
			if d.Kind != DataflowSink {
				w.traces.DelTrace(d.Get())
			}
		}

	case CmdPeekExisting:
		w.sequencePeek(cmd.ConnID, cmd.PeekDataflow, cmd.When, nil)

	case CmdPeekTransient:
		typ := cmd.PeekExpr.typ()
		name := transientName(w.transientCounter)
		view := NewView(name, cmd.PeekExpr)
		view.Typ = typ
		w.engine.BuildDataflow(view, w.traces, w.inputs, w.inputTime)
		w.dataflows[view.Name] = view
		w.sequencePeek(cmd.ConnID, view, cmd.When, &view)
		w.transientCounter++

	case CmdInsert:
		if w.index == 0 {
			input, ok := w.inputs.Get(cmd.Name)
			if !ok {
				panic("dataflow: insert into unknown input " + cmd.Name)
			}
			if !input.Local {
				panic("dataflow: attempted to insert into an external source")
			}
			session := input.Session(w.inputTime)
			for _, row := range cmd.Rows {
				session.Give(row, 1)
			}
		}

		// Unconditionally advance input_time on every worker so
		// operator frontiers move together, even though only worker 0
		// injected data (spec §4.2).
		w.inputTime++
		w.inputs.DowngradeAll(w.inputTime)

	case CmdTail:
		panic("dataflow: Tail is reserved and not implemented in the core")

	case CmdShutdown:
		// Handled by Run: registries are cleared once the loop exits,
		// so the underlying engine can quiesce (spec §4.1).
	}
}

func transientName(counter uint64) string {
	return "<temp_" + uitoa(counter) + ">"
}

func uitoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// sequencePeek computes the peek's timestamp from when and pushes it
// to the sequencer. Only worker 0 sequences peeks; every worker
// (including 0) later intakes the broadcast result (spec §4.5).
func (w *Worker) sequencePeek(conn ConnID, d Dataflow, when PeekWhen, dropAfterPeek *Dataflow) {
	if w.index != 0 {
		return
	}

	get := d.Get()
	var timestamp Timestamp
	switch when.Kind {
	case PeekImmediately:
		trace, ok := w.traces.GetTrace(get)
		if !ok {
			panic("dataflow: failed to find arrangement for PEEK " + d.Name)
		}
		timestamp = trace.ReadUpper().LatestFinal()

	case PeekAfterFlush:
		timestamp = w.rootInputTime(d.Name).Pred()

	case PeekAtTimestamp:
		timestamp = when.At
	}

	w.seq.Push(pendingPeek{
		expr:          get,
		conn:          conn,
		timestamp:     timestamp,
		dropAfterPeek: dropAfterPeek,
	})
}

// rootInputTime returns the minimum current capability time over the
// transitive set of Source inputs feeding name; the AfterFlush caller
// takes its predecessor (spec §4.5's AfterFlush). An empty uses()
// graph is treated as "no inputs constrain us" (spec §4.5/SUPPLEMENTED
// FEATURES).
func (w *Worker) rootInputTime(name string) Timestamp {
	d, ok := w.dataflows[name]
	if !ok {
		panic("dataflow: rootInputTime on unknown dataflow " + name)
	}
	switch d.Kind {
	case DataflowSource:
		input, ok := w.inputs.Get(name)
		if !ok {
			panic("dataflow: source dataflow has no registered input")
		}
		return input.Time()
	case DataflowSink:
		panic("dataflow: rootInputTime is unreachable for a Sink")
	default: // DataflowView
		min := MaxTimestamp
		any := false
		for _, use := range d.Uses() {
			t := w.rootInputTime(use)
			if !any || t < min {
				min = t
				any = true
			}
		}
		return min
	}
}

// processPeeks runs every iteration: intake newly sequenced peeks, then
// attempt to retire every pending peek (spec §4.6).
func (w *Worker) processPeeks() {
	for {
		item, ok := w.seq.Next(w.index)
		if !ok {
			break
		}
		trace, ok := w.traces.GetTrace(item.expr)
		if !ok {
			panic("dataflow: sequencer admitted a peek against a missing dataflow " + item.expr.Name)
		}
		w.pending = append(w.pending, pendingEntry{peek: item, trace: trace})
	}

	var toDrop []Dataflow
	kept := w.pending[:0]
	for _, entry := range w.pending {
		upper := entry.trace.ReadUpper()
		if upper.LessEqual(entry.peek.timestamp) {
			// Not yet final: keep.
			kept = append(kept, entry)
			continue
		}

		results := entry.trace.Peek(entry.peek.timestamp)
		if err := w.handler.Deliver(entry.peek.conn, entry.peek.expr.Name, entry.peek.timestamp, results); err != nil {
			panic("dataflow: fatal error delivering peek result: " + err.Error())
		}
		if entry.peek.dropAfterPeek != nil {
			toDrop = append(toDrop, *entry.peek.dropAfterPeek)
		}
	}
	w.pending = kept

	if len(toDrop) > 0 {
		w.handleCommand(DropDataflows(NilConnID, toDrop))
	}
}
