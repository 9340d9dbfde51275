package dataflow

import "testing"

func TestSequencer_PushBroadcastsToEveryWorker(t *testing.T) {
	seq := NewSequencer(3)
	item := pendingPeek{conn: NilConnID, timestamp: 5}

	seq.Push(item)

	for i := 0; i < 3; i++ {
		got, ok := seq.Next(i)
		if !ok {
			t.Fatalf("worker %d: expected a pending item, got none", i)
		}
		if got.timestamp != 5 {
			t.Fatalf("worker %d: timestamp = %d, want 5", i, got.timestamp)
		}
	}
}

func TestSequencer_NextIsNonBlockingWhenEmpty(t *testing.T) {
	seq := NewSequencer(2)

	if _, ok := seq.Next(0); ok {
		t.Fatal("expected no item on an empty queue")
	}
	if _, ok := seq.Next(1); ok {
		t.Fatal("expected no item on an empty queue")
	}
}

func TestSequencer_PreservesPushOrderPerWorker(t *testing.T) {
	seq := NewSequencer(2)

	seq.Push(pendingPeek{timestamp: 1})
	seq.Push(pendingPeek{timestamp: 2})
	seq.Push(pendingPeek{timestamp: 3})

	for i := 0; i < 2; i++ {
		for _, want := range []Timestamp{1, 2, 3} {
			got, ok := seq.Next(i)
			if !ok {
				t.Fatalf("worker %d: expected item with timestamp %d, got none", i, want)
			}
			if got.timestamp != want {
				t.Fatalf("worker %d: timestamp = %d, want %d", i, got.timestamp, want)
			}
		}
		if _, ok := seq.Next(i); ok {
			t.Fatalf("worker %d: expected queue drained after 3 pops", i)
		}
	}
}

func TestSequencer_WorkersDrainIndependently(t *testing.T) {
	seq := NewSequencer(2)

	seq.Push(pendingPeek{timestamp: 10})
	seq.Push(pendingPeek{timestamp: 20})

	got, ok := seq.Next(0)
	if !ok || got.timestamp != 10 {
		t.Fatalf("worker 0 first pop = %+v, %v", got, ok)
	}
	got, ok = seq.Next(0)
	if !ok || got.timestamp != 20 {
		t.Fatalf("worker 0 second pop = %+v, %v", got, ok)
	}

	got, ok = seq.Next(1)
	if !ok || got.timestamp != 10 {
		t.Fatalf("worker 1 should still see its own copy of the first item: got %+v, %v", got, ok)
	}
}
