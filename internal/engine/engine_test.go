package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng := New(DefaultConfig(), NewClock(0), nil, nil)
	eng.AddSymbol("AAPL")
	eng.Start()
	t.Cleanup(eng.Stop)
	return eng
}

func waitForOrder(t *testing.T, eng *Engine, orderID string, want Status) Order {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if o, ok := eng.GetOrder(orderID); ok {
			if o.Status == want {
				return o
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("order %s never reached status %s", orderID, want)
	return Order{}
}

// waitFor polls cond until it holds or a 2s deadline passes. Filled
// orders are no longer resting, so GetOrder cannot observe them; tests
// waiting on a fill poll the trade counters or an observer instead.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestEngineSubmitMatchesAcrossWorker(t *testing.T) {
	eng := newTestEngine(t)

	if _, err := eng.Submit(NewOrderParams{ID: "sell1", UserID: "u1", Symbol: "AAPL", Type: Limit, Side: Sell, Price: 100, Quantity: 10}, 0); err != nil {
		t.Fatalf("submit sell: %v", err)
	}
	if _, err := eng.Submit(NewOrderParams{ID: "buy1", UserID: "u2", Symbol: "AAPL", Type: Limit, Side: Buy, Price: 100, Quantity: 10}, 0); err != nil {
		t.Fatalf("submit buy: %v", err)
	}

	waitFor(t, "a trade to execute", func() bool { return eng.Statistics().TradesExecuted >= 1 })

	stats := eng.Statistics()
	if stats.TradesExecuted < 1 {
		t.Fatalf("expected at least one trade executed, got %+v", stats)
	}
	if _, resting := eng.GetOrder("sell1"); resting {
		t.Fatal("expected sell1 fully filled and no longer resting")
	}
}

func TestEngineSubmitUnknownSymbol(t *testing.T) {
	eng := newTestEngine(t)
	_, err := eng.Submit(NewOrderParams{ID: "o1", UserID: "u1", Symbol: "MSFT", Type: Limit, Side: Buy, Price: 100, Quantity: 1}, 0)
	if KindOf(err) != ErrUnknownSymbol {
		t.Fatalf("expected UnknownSymbol, got %v", err)
	}
}

func TestEngineSubmitInvalidOrder(t *testing.T) {
	eng := newTestEngine(t)
	_, err := eng.Submit(NewOrderParams{ID: "", UserID: "u1", Symbol: "AAPL", Type: Limit, Side: Buy, Price: 100, Quantity: 1}, 0)
	if KindOf(err) != ErrInvalidOrder {
		t.Fatalf("expected InvalidOrder, got %v", err)
	}
}

func TestEngineSubmitAfterStopFails(t *testing.T) {
	eng := New(DefaultConfig(), NewClock(0), nil, nil)
	eng.AddSymbol("AAPL")
	eng.Start()
	eng.Stop()

	_, err := eng.Submit(NewOrderParams{ID: "o1", UserID: "u1", Symbol: "AAPL", Type: Limit, Side: Buy, Price: 100, Quantity: 1}, 0)
	if KindOf(err) != ErrNotRunning {
		t.Fatalf("expected NotRunning after Stop, got %v", err)
	}
}

func TestEngineStopDrainsQueuedWork(t *testing.T) {
	eng := New(Config{MaxWorkerThreads: 1, MaxQueueSize: 10, EnableMarketDataBroadcast: true, EnableStopLossOrders: true, EnableMultiThreading: true}, NewClock(0), nil, nil)
	eng.AddSymbol("AAPL")
	eng.Start()

	if _, err := eng.Submit(NewOrderParams{ID: "o1", UserID: "u1", Symbol: "AAPL", Type: Limit, Side: Buy, Price: 100, Quantity: 1}, 0); err != nil {
		t.Fatalf("submit: %v", err)
	}
	eng.Stop()

	o, ok := eng.GetOrder("o1")
	if !ok {
		t.Fatal("expected the queued order to have been processed before Stop returned")
	}
	if o.Status != Pending {
		t.Fatalf("expected the resting order pending, got %s", o.Status)
	}
}

func TestEngineCancelAndOwnership(t *testing.T) {
	eng := newTestEngine(t)
	if _, err := eng.Submit(NewOrderParams{ID: "o1", UserID: "u1", Symbol: "AAPL", Type: Limit, Side: Buy, Price: 100, Quantity: 5}, 0); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForOrder(t, eng, "o1", Pending)

	if _, err := eng.Cancel("o1", "u2"); KindOf(err) != ErrNotOwner {
		t.Fatalf("expected NotOwner for a different user, got %v", err)
	}

	ok, err := eng.Cancel("o1", "u1")
	if err != nil || !ok {
		t.Fatalf("expected successful cancel, got ok=%v err=%v", ok, err)
	}

	if _, err := eng.Cancel("o1", "u1"); KindOf(err) != ErrNotFound {
		t.Fatalf("expected NotFound once the cancelled order is unindexed, got %v", err)
	}
}

func TestEngineModify(t *testing.T) {
	eng := newTestEngine(t)
	if _, err := eng.Submit(NewOrderParams{ID: "o1", UserID: "u1", Symbol: "AAPL", Type: Limit, Side: Buy, Price: 100, Quantity: 5}, 0); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForOrder(t, eng, "o1", Pending)

	ok, err := eng.Modify("o1", "u1", 101, 0)
	if err != nil || !ok {
		t.Fatalf("modify: ok=%v err=%v", ok, err)
	}

	o, found := eng.GetOrder("o1")
	if !found || o.Price != 101 {
		t.Fatalf("expected replacement order at price 101, got %+v found=%v", o, found)
	}
}

func TestEngineAddRemoveSymbol(t *testing.T) {
	eng := New(DefaultConfig(), NewClock(0), nil, nil)
	eng.AddSymbol("AAPL")
	eng.AddSymbol("AAPL") // idempotent
	eng.Start()
	defer eng.Stop()

	if _, err := eng.Submit(NewOrderParams{ID: "o1", UserID: "u1", Symbol: "AAPL", Type: Limit, Side: Buy, Price: 100, Quantity: 5}, 0); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForOrder(t, eng, "o1", Pending)

	if err := eng.RemoveSymbol("AAPL"); KindOf(err) != ErrSymbolNotEmpty {
		t.Fatalf("expected SymbolNotEmpty while an order still rests, got %v", err)
	}

	if _, err := eng.Cancel("o1", "u1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := eng.RemoveSymbol("AAPL"); err != nil {
		t.Fatalf("expected successful removal of an empty book, got %v", err)
	}
	if err := eng.RemoveSymbol("AAPL"); KindOf(err) != ErrUnknownSymbol {
		t.Fatalf("expected UnknownSymbol for a second removal, got %v", err)
	}
}

func TestEngineGetDepthAndMarketData(t *testing.T) {
	eng := newTestEngine(t)
	if _, err := eng.Submit(NewOrderParams{ID: "o1", UserID: "u1", Symbol: "AAPL", Type: Limit, Side: Sell, Price: 100, Quantity: 5}, 0); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForOrder(t, eng, "o1", Pending)

	depth := eng.GetDepth([]string{"AAPL", "MSFT"}, Sell, 10)
	if len(depth["AAPL"]) != 1 || depth["AAPL"][0].Price != 100 {
		t.Fatalf("expected one ask level at 100, got %+v", depth["AAPL"])
	}
	if _, ok := depth["MSFT"]; ok {
		t.Fatal("expected an unregistered symbol to be omitted")
	}

	md, err := eng.GetMarketData("AAPL")
	if err != nil || md.BestAsk != 100 {
		t.Fatalf("expected best ask 100, got %+v err=%v", md, err)
	}
}

func TestEngineObserversReceiveTrades(t *testing.T) {
	eng := newTestEngine(t)

	var mu sync.Mutex
	var trades []Trade
	eng.SubscribeTrades(TradeObserverFunc(func(tr Trade) {
		mu.Lock()
		trades = append(trades, tr)
		mu.Unlock()
	}))

	if _, err := eng.Submit(NewOrderParams{ID: "sell1", UserID: "u1", Symbol: "AAPL", Type: Limit, Side: Sell, Price: 100, Quantity: 5}, 0); err != nil {
		t.Fatalf("submit sell: %v", err)
	}
	if _, err := eng.Submit(NewOrderParams{ID: "buy1", UserID: "u2", Symbol: "AAPL", Type: Limit, Side: Buy, Price: 100, Quantity: 5}, 0); err != nil {
		t.Fatalf("submit buy: %v", err)
	}
	waitFor(t, "the trade to reach the observer", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(trades) >= 1
	})

	mu.Lock()
	n := len(trades)
	mu.Unlock()
	if n != 1 {
		t.Fatalf("expected exactly one delivered trade, got %d", n)
	}
}

// Property: under concurrent submission from many goroutines across
// multiple symbols, the resulting books are never crossed.
func TestEngineConcurrentSubmitNoCrossedBook(t *testing.T) {
	eng := New(DefaultConfig(), NewClock(0), nil, nil)
	symbols := []string{"AAPL", "MSFT", "GOOG"}
	for _, s := range symbols {
		eng.AddSymbol(s)
	}
	eng.Start()
	defer eng.Stop()

	const perSymbol = 200
	var wg sync.WaitGroup
	for _, sym := range symbols {
		for i := 0; i < perSymbol; i++ {
			wg.Add(1)
			go func(sym string, i int) {
				defer wg.Done()
				side := Buy
				if i%2 == 0 {
					side = Sell
				}
				id := fmt.Sprintf("%s-%d", sym, i)
				price := int64(100 + i%5)
				_, _ = eng.Submit(NewOrderParams{ID: id, UserID: "u", Symbol: sym, Type: Limit, Side: side, Price: price, Quantity: 1}, 0)
			}(sym, i)
		}
	}
	wg.Wait()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && eng.QueueLen() > 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)

	for _, sym := range symbols {
		depthBid := eng.GetDepth([]string{sym}, Buy, 1)[sym]
		depthAsk := eng.GetDepth([]string{sym}, Sell, 1)[sym]
		if len(depthBid) == 1 && len(depthAsk) == 1 && depthBid[0].Price >= depthAsk[0].Price {
			t.Fatalf("crossed book on %s: bid=%d ask=%d", sym, depthBid[0].Price, depthAsk[0].Price)
		}
	}
}
