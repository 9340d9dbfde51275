package results

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"net/http"
	"time"

	"dataflowd/internal/dataflow"
)

// Remote is the Remote sink: results are serialized and POSTed to a
// configured peek-results endpoint with the connection id carried in
// the X-Materialize-Query-UUID header, as named in spec.md §6. The
// teacher's own outbound calls are all to the Flow access node via
// its SDK (dropped per DESIGN.md); gob is the closest stdlib analogue
// to the original's length-prefixed bincode framing, since no
// retained dependency here supplies one.
type Remote struct {
	URL    string
	Client *http.Client
}

// NewRemote returns a Remote sink posting to url.
func NewRemote(url string) *Remote {
	return &Remote{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

// Deliver POSTs rows to the configured endpoint. A failure here is
// surfaced as an error and is fatal to the calling worker (spec §7:
// "remote POST failure -> surfaced by the current design as fatal").
func (r *Remote) Deliver(conn dataflow.ConnID, exprName string, timestamp dataflow.Timestamp, rows []dataflow.Row) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rows); err != nil {
		return fmt.Errorf("results: encode peek result: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, r.URL, &buf)
	if err != nil {
		return fmt.Errorf("results: build peek-result request: %w", err)
	}
	req.Header.Set("X-Materialize-Query-UUID", conn.String())

	resp, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("results: post peek result: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("results: peek-result endpoint returned %s", resp.Status)
	}
	return nil
}
