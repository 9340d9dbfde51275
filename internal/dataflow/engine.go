package dataflow

// This file stands in for the "external dataflow builder" spec §6
// treats as a black box: the SQL planner, the graph lowering, and the
// timely/differential execution engine that actually runs operators are
// all surrounding functionality outside the core's scope (spec §1).
// What follows is the minimal reference engine needed to give
// CreateDataflow/View and PeekTransient real, testable behavior: four
// builtin operators, and a Step that incrementally propagates each
// operator's input log into its own trace.

// operatorState is the builder's bookkeeping for one installed View: a
// cursor position into each input's log plus the output trace it
// writes to.
type operatorState struct {
	expr    RelationExpr
	out     *Trace
	inputs  []*Trace
	read    []int // per-input count of updates already applied
}

// Engine holds the builder's per-worker bookkeeping. One Engine is
// constructed per worker by NewWorker.
type Engine struct {
	ops []*operatorState
}

// NewEngine returns an empty builder engine.
func NewEngine() *Engine {
	return &Engine{}
}

// BuildDataflow installs d: it registers any arrangement into traces,
// any input capability into inputs at the current input_time, and
// (for a View) an operator into the engine so Step can propagate it.
// This is the single entry point spec §6 names
// "build_dataflow(d, &mut trace_registry, engine_worker, &mut input_registry, input_time)".
func (e *Engine) BuildDataflow(d Dataflow, traces *TraceRegistry, inputs *InputRegistry, inputTime Timestamp) {
	switch d.Kind {
	case DataflowSource:
		trace := NewTrace(SingletonAntichain(inputTime))
		traces.Set(d.Get(), trace)
		switch d.Connector {
		case LocalConnector:
			inputs.Set(d.Name, InputCapability{
				Local:      true,
				Capability: NewCapability(inputTime),
				Trace:      trace,
			})
		case ExternalConnector:
			inputs.Set(d.Name, InputCapability{
				Local:    false,
				External: ExternalCapability{inner: NewCapability(inputTime)},
			})
		}

	case DataflowView:
		inputTraces := make([]*Trace, len(d.Expr.Inputs))
		for i, in := range d.Expr.Inputs {
			t, ok := traces.GetTrace(in)
			if !ok {
				panic("dataflow: view references an unregistered input expr")
			}
			inputTraces[i] = t
		}
		// A bare Get (no nested View) has exactly one "input": the
		// expr itself.
		if d.Expr.Kind == ExprGet {
			t, ok := traces.GetTrace(d.Expr)
			if !ok {
				panic("dataflow: view Get references an unregistered dataflow")
			}
			inputTraces = []*Trace{t}
		}
		// A freshly built operator inherits its inputs' current upper
		// immediately, the same way timely's progress tracking pushes
		// frontiers through a dataflow as soon as edges are connected,
		// rather than waiting for the first Step to run. Without this an
		// Immediately peek issued right after building a transient view
		// would compute its timestamp from an empty frontier and always
		// see nothing, no matter how much data already exists upstream.
		out := NewTrace(minUpperOfTraces(inputTraces))
		traces.Set(d.Get(), out)
		e.ops = append(e.ops, &operatorState{
			expr:   d.Expr,
			out:    out,
			inputs: inputTraces,
			read:   make([]int, len(inputTraces)),
		})

	case DataflowSink:
		// Sinks have no arrangement and no input capability; they are
		// pure egress, installed here as a name only (spec §4.2).
	}
}

// Step advances each installed operator by one increment: it drains
// whatever new updates have appeared in its input logs since the last
// step, applies the operator's transform, and republishes the
// operator's own upper frontier from its input(s). This is the
// equivalent of one tick of the underlying timely execution engine
// (spec §4.1's "one non-blocking engine step").
func (e *Engine) Step() {
	for _, op := range e.ops {
		applyOperator(op)
	}
}

func applyOperator(op *operatorState) {
	for i, in := range op.inputs {
		snap := in.snapshot()
		for op.read[i] < len(snap) {
			u := snap[op.read[i]]
			op.read[i]++
			emit(op, i, u)
		}
	}
	op.out.SetUpper(minUpperOfTraces(op.inputs))
}

// minUpperOfTraces returns the pointwise minimum of every trace's
// current upper, or EmptyAntichain if traces is empty (no constraint).
func minUpperOfTraces(traces []*Trace) Antichain {
	var minUpper Antichain
	haveMin := false
	for _, t := range traces {
		u := t.ReadUpper()
		if !haveMin {
			minUpper = u
			haveMin = true
			continue
		}
		minUpper = minOf(minUpper, u)
	}
	if !haveMin {
		return EmptyAntichain()
	}
	return minUpper
}

func minOf(a, b Antichain) Antichain {
	switch {
	case a.Empty():
		return b
	case b.Empty():
		return a
	default:
		ae, be := a.Elements()[0], b.Elements()[0]
		if ae < be {
			return a
		}
		return b
	}
}

func emit(op *operatorState, inputIdx int, u update) {
	switch op.expr.Op {
	case OpIdentity:
		op.out.Insert(u.key, u.time, u.diff)
	case OpProject:
		row := make(Row, len(op.expr.Columns))
		for i, c := range op.expr.Columns {
			row[i] = u.key[c]
		}
		op.out.Insert(row, u.time, u.diff)
	case OpFilterNonEmpty:
		if len(u.key) > 0 && u.key[0].Str != "" {
			op.out.Insert(u.key, u.time, u.diff)
		}
	case OpUnion:
		op.out.Insert(u.key, u.time, u.diff)
	default:
		// Any other operator kind passes updates through unchanged. A
		// bare Get View carries the zero Op (OpIdentity) and takes that
		// case above.
		op.out.Insert(u.key, u.time, u.diff)
	}
	_ = inputIdx
}
