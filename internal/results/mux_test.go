package results

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"dataflowd/internal/dataflow"
)

func TestMux_RegisterAndDeliver(t *testing.T) {
	mux := NewMux()
	conn := uuid.New()

	received := make(chan []dataflow.Row, 1)
	mux.Register(conn, received)

	want := []dataflow.Row{{{Str: "a"}}, {{Str: "b"}}}
	if err := mux.Deliver(conn, "s", dataflow.Timestamp(0), want); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	select {
	case got := <-received:
		if len(got) != len(want) {
			t.Fatalf("got %d rows, want %d", len(got), len(want))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestMux_DeliverToUnknownConnIsSilentlyDropped(t *testing.T) {
	mux := NewMux()
	if err := mux.Deliver(uuid.New(), "s", dataflow.Timestamp(0), []dataflow.Row{{{Str: "x"}}}); err != nil {
		t.Fatalf("Deliver to unknown conn returned error: %v", err)
	}
}

func TestMux_SlowReceiverDropsRatherThanBlocks(t *testing.T) {
	mux := NewMux()
	conn := uuid.New()

	// Unbuffered: nothing is reading, so delivery must drop, not block.
	ch := make(chan []dataflow.Row)
	mux.Register(conn, ch)

	done := make(chan struct{})
	go func() {
		mux.Deliver(conn, "s", dataflow.Timestamp(0), []dataflow.Row{{{Str: "x"}}})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Deliver blocked on a slow receiver")
	}
}

func TestMux_Unregister(t *testing.T) {
	mux := NewMux()
	conn := uuid.New()
	ch := make(chan []dataflow.Row, 1)
	mux.Register(conn, ch)
	mux.Unregister(conn)

	if err := mux.Deliver(conn, "s", dataflow.Timestamp(0), []dataflow.Row{{{Str: "x"}}}); err != nil {
		t.Fatalf("Deliver after unregister returned error: %v", err)
	}
	select {
	case <-ch:
		t.Fatal("received delivery after unregister")
	default:
	}
}
