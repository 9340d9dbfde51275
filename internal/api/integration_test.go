package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"dataflowd/internal/dataflow"
	"dataflowd/internal/results"
)

// postJSON submits body to path on ts and fails the test if the
// response isn't 202 Accepted.
func postJSON(t *testing.T, ts *httptest.Server, body map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(ts.URL+"/api/commands", "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST /api/commands: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST /api/commands %v: got status %d, want %d", body["kind"], resp.StatusCode, http.StatusAccepted)
	}
}

// TestServer_CommandsReachEveryWorker drives the real HTTP surface
// (api.NewServer) over real channels backing an N=3 dataflow.Serve
// pool, rather than calling Worker.handleCommand directly as
// worker_test.go's fan-out test does. A client-submitted
// create_dataflow/insert/peek_existing sequence must install "orders"
// on every worker's registries, not just worker 0's: before the fix,
// commands were only ever written to worker 0's channel, so workers
// 1..N-1 held no trace for "orders" and the sequencer's broadcast
// peek panicked inside processPeeks on intake, which is fatal and
// brought down the whole pool. A clean pool shutdown afterward (no
// error out of dataflow.Serve) is the signal that every worker
// actually held the dataflow and retired the peek without panicking.
func TestServer_CommandsReachEveryWorker(t *testing.T) {
	const n = 3

	chans := make([]chan dataflow.Command, n)
	receivers := make([]<-chan dataflow.Command, n)
	senders := make([]chan<- dataflow.Command, n)
	for i := range chans {
		chans[i] = make(chan dataflow.Command, 16)
		receivers[i] = chans[i]
		senders[i] = chans[i]
	}

	resultsMux := results.NewMux()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- dataflow.Serve(receivers, resultsMux, n)
	}()

	srv := NewServer("127.0.0.1:0", senders, resultsMux)
	ts := httptest.NewServer(srv.httpServer.Handler)
	defer ts.Close()

	conn := uuid.New()
	received := make(chan []dataflow.Row, 1)
	resultsMux.Register(conn, received)

	postJSON(t, ts, map[string]interface{}{
		"kind":    "create_dataflow",
		"conn_id": conn.String(),
		"dataflow": map[string]interface{}{
			"name":    "orders",
			"columns": []map[string]interface{}{{"name": "id"}},
		},
	})
	postJSON(t, ts, map[string]interface{}{
		"kind":    "insert",
		"conn_id": conn.String(),
		"name":    "orders",
		"rows":    []interface{}{[]map[string]string{{"str": "1"}}, []map[string]string{{"str": "2"}}},
	})
	postJSON(t, ts, map[string]interface{}{
		"kind":    "peek_existing",
		"conn_id": conn.String(),
		"dataflow": map[string]interface{}{
			"name": "orders",
		},
	})

	select {
	case rows := <-received:
		if len(rows) != 2 {
			t.Fatalf("peek delivered %d rows, want 2", len(rows))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the peek result; a worker likely panicked on a missing trace")
	}

	for _, ch := range chans {
		ch <- dataflow.Shutdown(uuid.Nil)
	}

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("dataflow.Serve exited with error (a worker panicked): %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the worker pool to shut down")
	}
}
