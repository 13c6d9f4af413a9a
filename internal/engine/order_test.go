package engine

import "testing"

func newOrder(t *testing.T, p NewOrderParams, clock *Clock) *Order {
	t.Helper()
	o, err := NewOrder(p, clock)
	if err != nil {
		t.Fatalf("NewOrder(%+v): %v", p, err)
	}
	return o
}

func TestNewOrderValidation(t *testing.T) {
	clock := NewClock(0)

	cases := []struct {
		name string
		p    NewOrderParams
	}{
		{"missing id", NewOrderParams{UserID: "u1", Symbol: "AAPL", Type: Limit, Price: 100, Quantity: 1}},
		{"missing user", NewOrderParams{ID: "o1", Symbol: "AAPL", Type: Limit, Price: 100, Quantity: 1}},
		{"missing symbol", NewOrderParams{ID: "o1", UserID: "u1", Type: Limit, Price: 100, Quantity: 1}},
		{"non-positive quantity", NewOrderParams{ID: "o1", UserID: "u1", Symbol: "AAPL", Type: Limit, Price: 100, Quantity: 0}},
		{"limit without price", NewOrderParams{ID: "o1", UserID: "u1", Symbol: "AAPL", Type: Limit, Price: 0, Quantity: 1}},
		{"stop without trigger", NewOrderParams{ID: "o1", UserID: "u1", Symbol: "AAPL", Type: StopLoss, Quantity: 1}},
		{"negative price", NewOrderParams{ID: "o1", UserID: "u1", Symbol: "AAPL", Type: Market, Price: -1, Quantity: 1}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := NewOrder(c.p, clock); KindOf(err) != ErrInvalidOrder {
				t.Fatalf("expected InvalidOrder, got %v", err)
			}
		})
	}
}

func TestNewOrderTimestampsStrictlyIncreasing(t *testing.T) {
	clock := NewClock(0)
	a := newOrder(t, NewOrderParams{ID: "a", UserID: "u", Symbol: "AAPL", Type: Market, Quantity: 1}, clock)
	b := newOrder(t, NewOrderParams{ID: "b", UserID: "u", Symbol: "AAPL", Type: Market, Quantity: 1}, clock)
	if b.Timestamp <= a.Timestamp {
		t.Fatalf("expected strictly increasing timestamps, got %d then %d", a.Timestamp, b.Timestamp)
	}
}

func TestOrderFill(t *testing.T) {
	clock := NewClock(0)
	o := newOrder(t, NewOrderParams{ID: "o1", UserID: "u1", Symbol: "AAPL", Type: Limit, Side: Buy, Price: 100, Quantity: 10}, clock)

	if err := o.Fill(4); err != nil {
		t.Fatalf("Fill(4): %v", err)
	}
	if o.RemainingQuantity != 6 || o.Status != PartialFill {
		t.Fatalf("expected remaining=6 status=PARTIAL_FILL, got remaining=%d status=%s", o.RemainingQuantity, o.Status)
	}

	if err := o.Fill(6); err != nil {
		t.Fatalf("Fill(6): %v", err)
	}
	if o.RemainingQuantity != 0 || o.Status != Filled {
		t.Fatalf("expected remaining=0 status=FILLED, got remaining=%d status=%s", o.RemainingQuantity, o.Status)
	}

	if err := o.Fill(1); KindOf(err) != ErrInvalidFill {
		t.Fatalf("expected InvalidFill filling a FILLED order, got %v", err)
	}
}

func TestOrderFillRejectsOverfill(t *testing.T) {
	clock := NewClock(0)
	o := newOrder(t, NewOrderParams{ID: "o1", UserID: "u1", Symbol: "AAPL", Type: Limit, Side: Buy, Price: 100, Quantity: 5}, clock)
	if err := o.Fill(6); KindOf(err) != ErrInvalidFill {
		t.Fatalf("expected InvalidFill overfilling, got %v", err)
	}
}

func TestIsCompatibleWith(t *testing.T) {
	clock := NewClock(0)
	buy := newOrder(t, NewOrderParams{ID: "b", UserID: "u1", Symbol: "AAPL", Type: Limit, Side: Buy, Price: 100, Quantity: 5}, clock)
	sell := newOrder(t, NewOrderParams{ID: "s", UserID: "u2", Symbol: "AAPL", Type: Limit, Side: Sell, Price: 100, Quantity: 5}, clock)
	if !buy.IsCompatibleWith(sell) {
		t.Fatal("equal-price buy/sell should be compatible")
	}

	sell.Price = 101
	if buy.IsCompatibleWith(sell) {
		t.Fatal("buy below ask should not be compatible")
	}

	market := newOrder(t, NewOrderParams{ID: "m", UserID: "u3", Symbol: "AAPL", Type: Market, Side: Buy, Quantity: 5}, clock)
	if !market.IsCompatibleWith(sell) {
		t.Fatal("market taker should be compatible regardless of price")
	}

	other := newOrder(t, NewOrderParams{ID: "o", UserID: "u4", Symbol: "MSFT", Type: Limit, Side: Sell, Price: 100, Quantity: 5}, clock)
	if buy.IsCompatibleWith(other) {
		t.Fatal("different symbols should not be compatible")
	}
}
