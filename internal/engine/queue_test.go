package engine

import "testing"

func TestQueuePriorityThenFIFO(t *testing.T) {
	q := newBoundedPriorityQueue(10)
	low1 := &OrderRequest{Order: &Order{ID: "low1"}, Priority: 0}
	low2 := &OrderRequest{Order: &Order{ID: "low2"}, Priority: 0}
	high := &OrderRequest{Order: &Order{ID: "high"}, Priority: 5}

	for _, r := range []*OrderRequest{low1, low2, high} {
		if err := q.Push(r); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	first, ok := q.Pop(true)
	if !ok || first.Order.ID != "high" {
		t.Fatalf("expected high priority first, got %v", first)
	}
	second, ok := q.Pop(true)
	if !ok || second.Order.ID != "low1" {
		t.Fatalf("expected low1 (earlier enqueue) next, got %v", second)
	}
	third, ok := q.Pop(true)
	if !ok || third.Order.ID != "low2" {
		t.Fatalf("expected low2 last, got %v", third)
	}
}

func TestQueueFull(t *testing.T) {
	q := newBoundedPriorityQueue(1)
	if err := q.Push(&OrderRequest{Order: &Order{ID: "a"}}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	err := q.Push(&OrderRequest{Order: &Order{ID: "b"}})
	if KindOf(err) != ErrQueueFull {
		t.Fatalf("expected QueueFull, got %v", err)
	}
}

func TestQueueCloseWakesPop(t *testing.T) {
	q := newBoundedPriorityQueue(10)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop(true)
		done <- ok
	}()
	q.Close()
	if ok := <-done; ok {
		t.Fatal("expected Pop to return false after Close with an empty queue")
	}
}

func TestQueueClosePushFails(t *testing.T) {
	q := newBoundedPriorityQueue(10)
	q.Close()
	err := q.Push(&OrderRequest{Order: &Order{ID: "a"}})
	if KindOf(err) != ErrNotRunning {
		t.Fatalf("expected NotRunning after close, got %v", err)
	}
}

func TestQueueDrainOnClose(t *testing.T) {
	q := newBoundedPriorityQueue(10)
	if err := q.Push(&OrderRequest{Order: &Order{ID: "a"}}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	q.Close()

	req, ok := q.Pop(true)
	if !ok || req.Order.ID != "a" {
		t.Fatalf("expected drained item a, got %v ok=%v", req, ok)
	}
	if _, ok := q.Pop(true); ok {
		t.Fatal("expected Pop to return false once the drained queue is empty")
	}
}
