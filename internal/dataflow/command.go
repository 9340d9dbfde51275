package dataflow

import "github.com/google/uuid"

// ConnID identifies the client that issued a command. The nil uuid is
// reserved for internally generated commands: bootstrap and the
// post-peek drop that follows a transient peek (spec §6).
type ConnID = uuid.UUID

// NilConnID is the reserved internal-command identity.
var NilConnID = uuid.Nil

// PeekWhenKind discriminates the three ways a peek may choose its
// timestamp (spec §4.5).
type PeekWhenKind int

const (
	PeekImmediately PeekWhenKind = iota
	PeekAfterFlush
	PeekAtTimestamp
)

// PeekWhen selects the timestamp a peek should be answered at.
type PeekWhen struct {
	Kind PeekWhenKind
	At   Timestamp // only meaningful when Kind == PeekAtTimestamp
}

// Immediately answers at the latest timestamp the target trace's
// arrangement is currently final for.
func Immediately() PeekWhen { return PeekWhen{Kind: PeekImmediately} }

// AfterFlush answers at the latest timestamp every transitive Source
// input has acknowledged.
func AfterFlush() PeekWhen { return PeekWhen{Kind: PeekAfterFlush} }

// AtTimestamp answers at exactly t.
func AtTimestamp(t Timestamp) PeekWhen { return PeekWhen{Kind: PeekAtTimestamp, At: t} }

// CommandKind discriminates the Command variants of spec §6.
type CommandKind int

const (
	CmdCreateDataflow CommandKind = iota
	CmdDropDataflows
	CmdPeekExisting
	CmdPeekTransient
	CmdInsert
	CmdTail
	CmdShutdown
)

// Command is one entry on a worker's command channel, consumed from
// the command surface of spec §6.
type Command struct {
	Kind CommandKind

	// CreateDataflow
	Dataflow Dataflow

	// DropDataflows
	Dataflows []Dataflow

	// PeekExisting / PeekTransient
	PeekDataflow Dataflow     // PeekExisting: the dataflow to peek
	PeekExpr     RelationExpr // PeekTransient: the transient expr to peek
	When         PeekWhen

	// Insert
	Name string
	Rows []Row

	// Every command carries a connection identity (spec §6); the nil
	// uuid marks an internally generated command.
	ConnID ConnID
}

// CreateDataflow constructs the CreateDataflow command.
func CreateDataflow(conn ConnID, d Dataflow) Command {
	return Command{Kind: CmdCreateDataflow, Dataflow: d, ConnID: conn}
}

// DropDataflows constructs the DropDataflows command.
func DropDataflows(conn ConnID, ds []Dataflow) Command {
	return Command{Kind: CmdDropDataflows, Dataflows: ds, ConnID: conn}
}

// PeekExisting constructs the PeekExisting command.
func PeekExisting(conn ConnID, d Dataflow, when PeekWhen) Command {
	return Command{Kind: CmdPeekExisting, PeekDataflow: d, When: when, ConnID: conn}
}

// PeekTransient constructs the PeekTransient command.
func PeekTransient(conn ConnID, expr RelationExpr, when PeekWhen) Command {
	return Command{Kind: CmdPeekTransient, PeekExpr: expr, When: when, ConnID: conn}
}

// Insert constructs the Insert command.
func Insert(conn ConnID, name string, rows []Row) Command {
	return Command{Kind: CmdInsert, Name: name, Rows: rows, ConnID: conn}
}

// Shutdown constructs the Shutdown command.
func Shutdown(conn ConnID) Command {
	return Command{Kind: CmdShutdown, ConnID: conn}
}

// Tail constructs the reserved, unimplemented Tail command.
func Tail(conn ConnID) Command {
	return Command{Kind: CmdTail, ConnID: conn}
}
