package api

import (
	"fmt"

	"github.com/google/uuid"

	"dataflowd/internal/dataflow"
)

// parseConnID parses an optional conn_id, minting a fresh one when the
// caller omits it (a new client session).
func parseConnID(s string) (dataflow.ConnID, error) {
	if s == "" {
		return uuid.New(), nil
	}
	return uuid.Parse(s)
}

// toCommand translates the wire request into a dataflow.Command. Only
// Source dataflows can be created through this surface (spec §6's
// dataflow builder for Views/Sinks is external to the core).
func (req commandRequest) toCommand(conn dataflow.ConnID) (dataflow.Command, error) {
	switch req.Kind {
	case "create_dataflow":
		if req.Dataflow == nil {
			return dataflow.Command{}, fmt.Errorf("create_dataflow requires a dataflow")
		}
		typ := dataflow.RelationType{Columns: req.Dataflow.Columns}
		connector := dataflow.LocalConnector
		if req.Dataflow.External {
			connector = dataflow.ExternalConnector
		}
		d := dataflow.NewSource(req.Dataflow.Name, typ, connector)
		return dataflow.CreateDataflow(conn, d), nil

	case "insert":
		rows := make([]dataflow.Row, len(req.Rows))
		for i, r := range req.Rows {
			rows[i] = dataflow.Row(r)
		}
		return dataflow.Insert(conn, req.Name, rows), nil

	case "peek_existing":
		when, err := req.parseWhen()
		if err != nil {
			return dataflow.Command{}, err
		}
		if req.Dataflow == nil {
			return dataflow.Command{}, fmt.Errorf("peek_existing requires a dataflow name")
		}
		typ := dataflow.RelationType{Columns: req.Dataflow.Columns}
		d := dataflow.NewSource(req.Dataflow.Name, typ, dataflow.LocalConnector)
		return dataflow.PeekExisting(conn, d, when), nil

	case "drop_dataflows":
		if req.Dataflow == nil {
			return dataflow.Command{}, fmt.Errorf("drop_dataflows requires a dataflow name")
		}
		typ := dataflow.RelationType{Columns: req.Dataflow.Columns}
		d := dataflow.NewSource(req.Dataflow.Name, typ, dataflow.LocalConnector)
		return dataflow.DropDataflows(conn, []dataflow.Dataflow{d}), nil

	case "shutdown":
		return dataflow.Shutdown(conn), nil

	default:
		return dataflow.Command{}, fmt.Errorf("unknown command kind %q", req.Kind)
	}
}

func (req commandRequest) parseWhen() (dataflow.PeekWhen, error) {
	switch req.When {
	case "", "immediately":
		return dataflow.Immediately(), nil
	case "after_flush":
		return dataflow.AfterFlush(), nil
	case "at_timestamp":
		return dataflow.AtTimestamp(dataflow.Timestamp(req.At)), nil
	default:
		return dataflow.PeekWhen{}, fmt.Errorf("unknown peek \"when\" kind %q", req.When)
	}
}
