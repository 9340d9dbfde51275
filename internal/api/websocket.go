package api

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"dataflowd/internal/dataflow"
)

// wsClient is one browser connection subscribed to its own connection
// id's peek results. done signals the write pump to stop; send is
// never closed, since internal/results.Mux may still be selecting on
// it from another goroutine up to the moment Unregister takes effect.
type wsClient struct {
	conn *websocket.Conn
	send chan []dataflow.Row
	done chan struct{}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// peekResultMessage is the wire shape written to a websocket client
// for each retired peek.
type peekResultMessage struct {
	ConnID string          `json:"conn_id"`
	Rows   []dataflow.Row  `json:"rows"`
}

// handleWebSocket upgrades the request and mints a fresh connection id
// for it, registering that id with the Local sink mux so peek results
// submitted under this connection stream straight to the browser. This
// is additive delivery layered on top of the Local sink spec.md §6
// already defines (internal/results.Mux); it does not change how peeks
// are sequenced or retired.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("dataflowd: websocket upgrade error:", err)
		return
	}

	connID := uuid.New()
	client := &wsClient{conn: conn, send: make(chan []dataflow.Row, 64), done: make(chan struct{})}
	s.mux.Register(connID, client.send)

	if err := conn.WriteJSON(map[string]string{"conn_id": connID.String()}); err != nil {
		s.mux.Unregister(connID)
		conn.Close()
		return
	}

	go func() {
		defer conn.Close()
		for {
			select {
			case rows := <-client.send:
				if err := conn.WriteJSON(peekResultMessage{ConnID: connID.String(), Rows: rows}); err != nil {
					return
				}
			case <-client.done:
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.mux.Unregister(connID)
	close(client.done)
}
