package engine

import "testing"

func mkOrder(id string, qty int64, clock *Clock) *Order {
	return &Order{ID: id, UserID: "u", Symbol: "AAPL", Type: Limit, Price: 100,
		OriginalQuantity: qty, RemainingQuantity: qty, Status: Pending, Timestamp: clock.Next()}
}

func TestPriceLevelEnqueueFIFO(t *testing.T) {
	clock := NewClock(0)
	lvl := newPriceLevel(100)
	a, b, c := mkOrder("a", 5, clock), mkOrder("b", 3, clock), mkOrder("c", 2, clock)
	lvl.Enqueue(a)
	lvl.Enqueue(b)
	lvl.Enqueue(c)

	if lvl.AggregateQuantity != 10 || lvl.Count != 3 {
		t.Fatalf("expected aggregate=10 count=3, got aggregate=%d count=%d", lvl.AggregateQuantity, lvl.Count)
	}
	if lvl.Head() != a {
		t.Fatal("expected FIFO head to be the first enqueued order")
	}
}

func TestPriceLevelRemoveAdjustsAggregate(t *testing.T) {
	clock := NewClock(0)
	lvl := newPriceLevel(100)
	a, b := mkOrder("a", 5, clock), mkOrder("b", 3, clock)
	lvl.Enqueue(a)
	lvl.Enqueue(b)

	lvl.Remove(a)
	if lvl.AggregateQuantity != 3 || lvl.Count != 1 {
		t.Fatalf("expected aggregate=3 count=1 after removing a, got aggregate=%d count=%d", lvl.AggregateQuantity, lvl.Count)
	}
	if lvl.Head() != b {
		t.Fatal("expected b to be the new head")
	}
}

func TestPriceLevelRemoveMiddle(t *testing.T) {
	clock := NewClock(0)
	lvl := newPriceLevel(100)
	a, b, c := mkOrder("a", 5, clock), mkOrder("b", 3, clock), mkOrder("c", 2, clock)
	lvl.Enqueue(a)
	lvl.Enqueue(b)
	lvl.Enqueue(c)

	lvl.Remove(b)
	orders := lvl.Orders()
	if len(orders) != 2 || orders[0] != a || orders[1] != c {
		t.Fatalf("expected [a, c] after removing middle order, got %v", orders)
	}
}

func TestPriceLevelPopHeadIfFilled(t *testing.T) {
	clock := NewClock(0)
	lvl := newPriceLevel(100)
	a := mkOrder("a", 5, clock)
	lvl.Enqueue(a)

	if lvl.PopHeadIfFilled() {
		t.Fatal("should not pop a head with remaining quantity")
	}

	a.RemainingQuantity = 0
	lvl.AggregateQuantity = 0
	if !lvl.PopHeadIfFilled() {
		t.Fatal("expected pop of a filled head")
	}
	if !lvl.IsEmpty() {
		t.Fatal("expected level to be empty after popping its only order")
	}
}
