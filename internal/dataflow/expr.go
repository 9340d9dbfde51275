package dataflow

import "fmt"

// ScalarType names the type of a single column.
type ScalarType int

const (
	ScalarString ScalarType = iota
	ScalarInt64
	ScalarBool
)

// ColumnType describes one column of a RelationType.
type ColumnType struct {
	Name     string
	Nullable bool
	Scalar   ScalarType
}

// RelationType describes the columns of a relation.
type RelationType struct {
	Columns []ColumnType
}

// Datum is a single scalar value. Only the variants the core's builtin
// operators (internal/dataflow/engine.go) need to inspect are typed;
// everything else round-trips as an opaque string.
type Datum struct {
	Str string
}

// Row is a tuple of Datum, the unit of data the core moves around.
type Row []Datum

// OpKind names a transform a transient View may apply. The core ships
// only the minimal set of operators needed to make CreateDataflow/View
// and PeekTransient exercise real behavior; a full relational algebra
// is explicitly out of the core's scope (spec §1) and lives in the
// external builder this package stands in for.
type OpKind int

const (
	OpIdentity OpKind = iota
	OpProject
	OpFilterNonEmpty
	OpUnion
)

// RelationExpr is a structural description of a relation: either a Get
// naming an already-installed dataflow, or a View describing a
// transient computation over one or more input exprs. Expr equality
// (via Key) is the trace registry's lookup key.
type RelationExpr struct {
	Kind RelationExprKind

	// Get
	Name string
	Typ  RelationType

	// View
	Op      OpKind
	Inputs  []RelationExpr
	Columns []int // for OpProject
}

type RelationExprKind int

const (
	ExprGet RelationExprKind = iota
	ExprView
)

// Get constructs a Get expression naming an installed dataflow.
func Get(name string, typ RelationType) RelationExpr {
	return RelationExpr{Kind: ExprGet, Name: name, Typ: typ}
}

// View constructs a transient View expression over one or more inputs.
func View(op OpKind, columns []int, inputs ...RelationExpr) RelationExpr {
	return RelationExpr{Kind: ExprView, Op: op, Columns: columns, Inputs: inputs}
}

// Key returns a string uniquely identifying this expression, used as
// the trace registry's lookup key. Two structurally equal exprs always
// produce the same key.
func (e RelationExpr) Key() string {
	switch e.Kind {
	case ExprGet:
		return "get:" + e.Name
	case ExprView:
		s := fmt.Sprintf("view:%d:%v:", e.Op, e.Columns)
		for _, in := range e.Inputs {
			s += "(" + in.Key() + ")"
		}
		return s
	default:
		panic("dataflow: unknown RelationExprKind")
	}
}

// typ returns the relation type this expression produces. For a View
// this is computed from its operator and inputs.
func (e RelationExpr) typ() RelationType {
	switch e.Kind {
	case ExprGet:
		return e.Typ
	case ExprView:
		switch e.Op {
		case OpProject:
			in := e.Inputs[0].typ()
			cols := make([]ColumnType, len(e.Columns))
			for i, c := range e.Columns {
				cols[i] = in.Columns[c]
			}
			return RelationType{Columns: cols}
		default:
			return e.Inputs[0].typ()
		}
	default:
		panic("dataflow: unknown RelationExprKind")
	}
}

// uses returns the names of the Get exprs transitively reachable from
// e, used by rootInputTime to find the Sources that feed a dataflow.
func (e RelationExpr) uses() []string {
	switch e.Kind {
	case ExprGet:
		return []string{e.Name}
	case ExprView:
		var names []string
		for _, in := range e.Inputs {
			names = append(names, in.uses()...)
		}
		return names
	default:
		panic("dataflow: unknown RelationExprKind")
	}
}
