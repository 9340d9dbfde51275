// Package api is the HTTP front door: command submission, status,
// health, and websocket peek-result streaming around the dataflow
// core in internal/dataflow.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"dataflowd/internal/dataflow"
	"dataflowd/internal/results"
)

// Server is the HTTP front door for a running worker pool. Every
// command it accepts is broadcast to every worker's channel, the same
// way main.go's Shutdown path and the fixed bootstrap list reach all N
// workers identically: spec.md §2/§5 requires all workers to share an
// identical view of installed dataflows and to apply the same command
// history, and a command delivered only to one worker's receiver would
// leave the rest of the pool's registries unpopulated. Worker 0 is
// still the only one that actually sequences a peek or emits rows for
// an Insert (spec §4.2/§4.5), but it must see the command on its own
// channel like everyone else, which broadcasting guarantees.
type Server struct {
	broadcastMu sync.Mutex
	cmds        []chan<- dataflow.Command
	mux         *results.Mux
	numWorkers  int
	httpServer  *http.Server
	statusCache struct {
		mu        sync.Mutex
		payload   []byte
		expiresAt time.Time
	}
}

// NewServer builds a Server listening on addr. cmds holds every
// worker's command channel, send side (the side Serve's receivers
// drain), indexed the same way Serve assigns worker indices; resultsMux
// is the Local peek-results sink registry websocket clients register
// against.
func NewServer(addr string, cmds []chan<- dataflow.Command, resultsMux *results.Mux) *Server {
	r := mux.NewRouter()

	s := &Server{
		cmds:       cmds,
		mux:        resultsMux,
		numWorkers: len(cmds),
	}

	r.Use(commonMiddleware)
	r.Use(rateLimitMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods("GET", "OPTIONS")
	r.HandleFunc("/status", s.handleStatus).Methods("GET", "OPTIONS")
	r.HandleFunc("/ws", s.handleWebSocket).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/commands", s.handleSubmitCommand).Methods("POST", "OPTIONS")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func commonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleStatus reports pool shape. Cached briefly since it may be
// polled by dashboards, matching the teacher's handleStatus caching.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	s.statusCache.mu.Lock()
	if now.Before(s.statusCache.expiresAt) && len(s.statusCache.payload) > 0 {
		cached := append([]byte(nil), s.statusCache.payload...)
		s.statusCache.mu.Unlock()
		w.Write(cached)
		return
	}
	s.statusCache.mu.Unlock()

	payload, _ := json.Marshal(map[string]interface{}{
		"status":      "ok",
		"num_workers": s.numWorkers,
		"generated_at": time.Now().UTC().Format(time.RFC3339),
	})

	s.statusCache.mu.Lock()
	s.statusCache.payload = payload
	s.statusCache.expiresAt = time.Now().Add(3 * time.Second)
	s.statusCache.mu.Unlock()

	w.Write(payload)
}

// commandRequest is the wire shape accepted by POST /api/commands. It
// covers the create_dataflow, insert, peek_existing, drop_dataflows and
// shutdown kinds without importing the core package; PeekTransient and
// Tail have no wire kind and are rejected as unknown.
type commandRequest struct {
	Kind     string             `json:"kind"`
	ConnID   string             `json:"conn_id,omitempty"`
	Dataflow *dataflowRequest   `json:"dataflow,omitempty"`
	Name     string             `json:"name,omitempty"`
	Rows     [][]dataflow.Datum `json:"rows,omitempty"`
	When     string             `json:"when,omitempty"`
	At       uint64             `json:"at,omitempty"`
}

// dataflowRequest describes a Source dataflow to create; View/Sink
// construction requires the external dataflow-builder seam (spec §6)
// and is out of scope for this JSON surface.
type dataflowRequest struct {
	Name     string `json:"name"`
	Columns  []dataflow.ColumnType `json:"columns"`
	External bool   `json:"external,omitempty"`
}

// handleSubmitCommand decodes a Command and broadcasts it to every
// worker's channel. This is a thin JSON surface over the command
// variants spec.md §6 defines; it does not itself sequence or validate
// dataflow-level invariants, those are enforced by the worker.
func (s *Server) handleSubmitCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid command body", http.StatusBadRequest)
		return
	}

	conn, err := parseConnID(req.ConnID)
	if err != nil {
		http.Error(w, "invalid conn_id", http.StatusBadRequest)
		return
	}

	cmd, err := req.toCommand(conn)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.broadcastCommand(r.Context(), cmd); err != nil {
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"conn_id": conn.String()})
}

// broadcastCommand sends cmd to every worker's channel, in order, the
// same way main.go fans Shutdown out to all N receivers. Every worker
// owns a private copy of the identical command stream (spec §3
// Ownership); this is the only place client-submitted commands enter
// that stream, so it must reach all of them, not just one. The mutex
// serializes concurrent requests so the whole pool observes the same
// relative order of commands — without it, two overlapping POSTs could
// interleave their per-channel sends and leave worker 0 and worker 1
// disagreeing about which of two commands came first.
func (s *Server) broadcastCommand(ctx context.Context, cmd dataflow.Command) error {
	s.broadcastMu.Lock()
	defer s.broadcastMu.Unlock()
	for _, ch := range s.cmds {
		select {
		case ch <- cmd:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
