package engine

// TradeObserver is notified once per emitted trade, in emission order,
// synchronously on the goroutine that produced it: a worker for
// submitted orders, the caller for trades produced by Engine.Modify.
// Implementations must not block or call back into the Engine.
type TradeObserver interface {
	OnTrade(t Trade)
}

// MarketData is a point-in-time summary of one symbol's book, published
// after every add_order call that touched it.
type MarketData struct {
	Symbol        string
	BestBid       int64
	BestAsk       int64
	LastPrice     int64
	LastTradeTime int64
	TotalVolume   int64
	TotalTrades   int64
	Spread        int64
}

// MarketDataObserver is notified once per symbol per update batch, after
// all trades from the triggering call have been delivered to trade
// observers.
type MarketDataObserver interface {
	OnMarketData(m MarketData)
}

// TradeObserverFunc adapts a plain function to a TradeObserver.
type TradeObserverFunc func(Trade)

func (f TradeObserverFunc) OnTrade(t Trade) { f(t) }

// MarketDataObserverFunc adapts a plain function to a MarketDataObserver.
type MarketDataObserverFunc func(MarketData)

func (f MarketDataObserverFunc) OnMarketData(m MarketData) { f(m) }

// RiskChecker is the optional pre-submission validator the Engine
// consults before admitting an order to a book. Implementations live
// outside the core (internal/risk provides the default).
type RiskChecker interface {
	CheckOrder(o *Order) error
}
