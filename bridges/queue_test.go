package bridges

import (
	"testing"
	"time"

	"github.com/reusee/botrun/frames"
)

func TestSendQueue(t *testing.T) {
	q := NewSendQueue()
	if _, ok := q.Peek(); ok {
		t.Fatal("should be empty")
	}
	for i := range 3 {
		q.Push(frames.Frame{Seq: uint64(i + 1)})
	}
	select {
	case <-q.Ready():
	default:
		t.Fatal("should be ready")
	}

	// peek does not remove
	for range 2 {
		f, ok := q.Peek()
		if !ok || f.Seq != 1 {
			t.Fatalf("got %v", f)
		}
	}
	for i := range 3 {
		f, ok := q.Pop()
		if !ok || f.Seq != uint64(i+1) {
			t.Fatalf("got %v", f)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("got %v", q.Len())
	}
}

func TestSendQueuePushNeverBlocks(t *testing.T) {
	q := NewSendQueue()
	done := make(chan struct{})
	go func() {
		for range 10000 {
			q.Push(frames.Frame{})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second * 5):
		t.Fatal("blocked")
	}
	if q.Len() != 10000 {
		t.Fatalf("got %v", q.Len())
	}
}

func TestReconnector(t *testing.T) {
	base := time.Second
	cap := time.Second * 10
	r := NewReconnector(base, cap)
	expected := []time.Duration{
		time.Second, time.Second * 2, time.Second * 4, time.Second * 8,
		time.Second * 10, time.Second * 10, time.Second * 10,
	}
	for k, want := range expected {
		if r.Attempt() != k {
			t.Fatalf("got %v", r.Attempt())
		}
		if Delay(base, cap, k) != want {
			t.Fatalf("%d: got %v", k, Delay(base, cap, k))
		}
		if got := r.Next(); got != want {
			t.Fatalf("%d: got %v", k, got)
		}
	}

	r.Reset()
	if r.Attempt() != 0 {
		t.Fatalf("got %v", r.Attempt())
	}
	if got := r.Next(); got != base {
		t.Fatalf("got %v", got)
	}
}

func TestReconnectorOddCap(t *testing.T) {
	base := time.Millisecond * 300
	cap := time.Second
	r := NewReconnector(base, cap)
	for k := range 6 {
		want := Delay(base, cap, k)
		if got := r.Next(); got != want {
			t.Fatalf("%d: got %v, want %v", k, got, want)
		}
	}
}
