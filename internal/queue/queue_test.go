package queue

import (
	"sync"
	"testing"
	"time"
)

func TestEnqueueDequeueFIFO(t *testing.T) {
	q := New(4, nil)
	for _, msg := range []string{"a", "b", "c"} {
		if !q.Enqueue(msg) {
			t.Fatalf("Enqueue(%q) = false, want true", msg)
		}
	}
	for _, want := range []string{"a", "b", "c"} {
		got, err := q.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if got != want {
			t.Fatalf("Dequeue = %q, want %q", got, want)
		}
	}
}

func TestEnqueueBlocksUntilCapacityFrees(t *testing.T) {
	q := New(1, nil)
	if !q.Enqueue("first") {
		t.Fatal("Enqueue(first) = false")
	}

	done := make(chan struct{})
	go func() {
		if !q.Enqueue("second") {
			t.Error("Enqueue(second) = false")
		}
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Enqueue(second) returned before capacity freed")
	case <-time.After(50 * time.Millisecond):
	}

	if _, err := q.Dequeue(); err != nil {
		t.Fatalf("Dequeue: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue(second) never unblocked")
	}
}

func TestDequeueBlocksThenStopReturnsErrStopped(t *testing.T) {
	q := New(4, nil)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = q.Dequeue()
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	q.Stop()
	wg.Wait()

	for i, err := range errs {
		if err != ErrStopped {
			t.Fatalf("Dequeue[%d] error = %v, want ErrStopped", i, err)
		}
	}
}

func TestEnqueueAfterStopReturnsFalse(t *testing.T) {
	q := New(4, nil)
	q.Stop()
	if q.Enqueue("late") {
		t.Fatal("Enqueue after Stop = true, want false")
	}
	if q.IsRunning() {
		t.Fatal("IsRunning() = true after Stop")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	q := New(4, nil)
	q.Stop()
	q.Stop()
	if q.IsRunning() {
		t.Fatal("IsRunning() = true after double Stop")
	}
}

func TestLenAndCap(t *testing.T) {
	q := New(4, nil)
	if q.Cap() != 4 {
		t.Fatalf("Cap() = %d, want 4", q.Cap())
	}
	q.Enqueue("x")
	q.Enqueue("y")
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
}
