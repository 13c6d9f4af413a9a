package engine

import (
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Config holds the engine-facing subset of the enumerated configuration
// options. internal/config loads these from the environment and hands
// the result to New; tests construct a Config literal directly.
type Config struct {
	MaxWorkerThreads         int
	MaxQueueSize             int
	EnableRiskManagement     bool
	EnableMarketDataBroadcast bool
	EnableStopLossOrders     bool
	EnableMultiThreading     bool
}

// DefaultConfig returns reasonable defaults for running the engine.
func DefaultConfig() Config {
	return Config{
		MaxWorkerThreads:          4,
		MaxQueueSize:              10000,
		EnableRiskManagement:      true,
		EnableMarketDataBroadcast: true,
		EnableStopLossOrders:      true,
		EnableMultiThreading:      true,
	}
}

func (c Config) workerCount() int {
	if !c.EnableMultiThreading {
		return 1
	}
	if c.MaxWorkerThreads < 1 {
		return 1
	}
	return c.MaxWorkerThreads
}

// Statistics is a snapshot of the atomic counters exposed by the engine.
// Individual fields are each internally consistent; the set as a whole
// is not a point-in-time snapshot across fields.
type Statistics struct {
	OrdersProcessed int64
	TradesExecuted  int64
	VolumeTraded    int64
}

// Engine owns the symbol registry and the bounded priority queue that
// feeds a fixed worker pool. It is the only component that locks
// individual OrderBooks; callers never see an OrderBook directly.
type Engine struct {
	cfg    Config
	clock  *Clock
	logger *zap.Logger
	risk   RiskChecker

	symbolsMu sync.RWMutex
	symbols   map[string]*bookEntry

	queue *boundedPriorityQueue

	obsMu          sync.Mutex
	tradeObservers []TradeObserver
	mdObservers    []MarketDataObserver

	running      atomic.Bool
	wg           sync.WaitGroup
	workerGIDs   sync.Map // goroutine id (string) -> struct{}, populated while a worker is inside process()

	ordersProcessed atomic.Int64
	tradesExecuted  atomic.Int64
	volumeTraded    atomic.Int64
}

// bookEntry pairs an OrderBook with the mutex that serializes access to
// it. The symbol registry lock (Engine.symbolsMu) protects the map of
// entries; each entry's own mutex protects that book's state, so
// different symbols can match concurrently.
type bookEntry struct {
	mu   sync.Mutex
	book *OrderBook
}

// New constructs an Engine in the stopped state. Call Start to spin up
// the worker pool. risk may be nil, in which case risk checks are
// skipped regardless of cfg.EnableRiskManagement.
func New(cfg Config, clock *Clock, logger *zap.Logger, risk RiskChecker) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:     cfg,
		clock:   clock,
		logger:  logger.Named("engine"),
		risk:    risk,
		symbols: make(map[string]*bookEntry),
		queue:   newBoundedPriorityQueue(cfg.MaxQueueSize),
	}
}

// Start launches the configured number of worker goroutines. Start is
// idempotent-unsafe; callers must not call it twice concurrently.
func (e *Engine) Start() {
	e.running.Store(true)
	n := e.cfg.workerCount()
	e.logger.Info("engine starting", zap.Int("workers", n))
	for i := 0; i < n; i++ {
		e.wg.Add(1)
		go e.workerLoop()
	}
}

// Stop clears the running flag, wakes every worker, drains the queue
// (finishing already-enqueued work) and blocks until all workers have
// exited. Submit called concurrently with or after Stop fails with
// NotRunning once the queue is closed.
func (e *Engine) Stop() {
	e.logger.Info("engine stopping")
	e.running.Store(false)
	e.queue.Close()
	e.wg.Wait()
	e.logger.Info("engine stopped")
}

func (e *Engine) workerLoop() {
	defer e.wg.Done()
	gid := goroutineID()
	for {
		req, ok := e.queue.Pop(true)
		if !ok {
			return
		}
		e.workerGIDs.Store(gid, struct{}{})
		e.process(req)
		e.workerGIDs.Delete(gid)
	}
}

// goroutineID extracts the numeric id Go prints at the head of a stack
// dump. It is used only for the reentrancy guard in Submit/Cancel/
// Modify and has no bearing on scheduling or correctness of matching.
func goroutineID() string {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := string(buf[:n])
	const prefix = "goroutine "
	if len(fields) <= len(prefix) {
		return ""
	}
	fields = fields[len(prefix):]
	for i := 0; i < len(fields); i++ {
		if fields[i] == ' ' {
			return fields[:i]
		}
	}
	return fields
}

func (e *Engine) checkReentrant() error {
	if _, busy := e.workerGIDs.Load(goroutineID()); busy {
		return newErr(ErrReentrantCall, "observer callback invoked engine API re-entrantly")
	}
	return nil
}

// AddSymbol registers an empty book for symbol. Re-registering an
// already-known symbol is a no-op.
func (e *Engine) AddSymbol(symbol string) {
	e.symbolsMu.Lock()
	defer e.symbolsMu.Unlock()
	if _, ok := e.symbols[symbol]; ok {
		return
	}
	e.symbols[symbol] = &bookEntry{book: NewOrderBook(symbol, e.clock)}
	e.logger.Info("symbol added", zap.String("symbol", symbol))
}

// RemoveSymbol unregisters symbol. It fails with SymbolNotEmpty if the
// book still holds resting orders of any kind.
func (e *Engine) RemoveSymbol(symbol string) error {
	e.symbolsMu.Lock()
	defer e.symbolsMu.Unlock()
	entry, ok := e.symbols[symbol]
	if !ok {
		return newErr(ErrUnknownSymbol, "symbol %s is not registered", symbol)
	}
	entry.mu.Lock()
	empty := entry.book.IsEmpty()
	entry.mu.Unlock()
	if !empty {
		return newErr(ErrSymbolNotEmpty, "symbol %s still has resting orders", symbol)
	}
	delete(e.symbols, symbol)
	e.logger.Info("symbol removed", zap.String("symbol", symbol))
	return nil
}

func (e *Engine) lookupSymbol(symbol string) (*bookEntry, bool) {
	e.symbolsMu.RLock()
	defer e.symbolsMu.RUnlock()
	entry, ok := e.symbols[symbol]
	return entry, ok
}

// Submit validates order and admits it to the queue. Admission is
// queue-admission, not execution: Submit returns as soon as the request
// is enqueued, not once it has been matched. The order id is returned
// on success even though matching happens asynchronously.
func (e *Engine) Submit(p NewOrderParams, priority int) (string, error) {
	if err := e.checkReentrant(); err != nil {
		return "", err
	}
	if !e.running.Load() {
		return "", newErr(ErrNotRunning, "engine is not running")
	}
	if p.Type == StopLoss && !e.cfg.EnableStopLossOrders {
		return "", newErr(ErrInvalidOrder, "stop-loss orders are disabled")
	}
	if _, ok := e.lookupSymbol(p.Symbol); !ok {
		return "", newErr(ErrUnknownSymbol, "symbol %s is not registered", p.Symbol)
	}

	order, err := NewOrder(p, e.clock)
	if err != nil {
		return "", err
	}

	if err := e.queue.Push(&OrderRequest{Order: order, Priority: priority}); err != nil {
		return "", err
	}
	return order.ID, nil
}

func (e *Engine) process(req *OrderRequest) {
	order := req.Order

	if e.cfg.EnableRiskManagement && e.risk != nil {
		if err := e.risk.CheckOrder(order); err != nil {
			order.Status = Rejected
			e.logger.Warn("order rejected by risk check",
				zap.String("order_id", order.ID), zap.Error(err))
			return
		}
	}

	entry, ok := e.lookupSymbol(order.Symbol)
	if !ok {
		order.Status = Rejected
		e.logger.Warn("order rejected, unknown symbol",
			zap.String("order_id", order.ID), zap.String("symbol", order.Symbol))
		return
	}

	entry.mu.Lock()
	trades, err := entry.book.AddOrder(order)
	bid, ask, last := entry.book.BestBid(), entry.book.BestAsk(), entry.book.LastTradePrice()
	totalTrades, totalVolume := entry.book.totalTrades, entry.book.totalVolume
	entry.mu.Unlock()

	e.ordersProcessed.Add(1)
	if err != nil {
		e.logger.Warn("order processing error",
			zap.String("order_id", order.ID), zap.Error(err))
	}

	for _, t := range trades {
		e.tradesExecuted.Add(1)
		e.volumeTraded.Add(t.Quantity)
		e.publishTrade(t)
	}

	if e.cfg.EnableMarketDataBroadcast {
		md := MarketData{
			Symbol:        order.Symbol,
			BestBid:       bid,
			BestAsk:       ask,
			LastPrice:     last,
			LastTradeTime: e.clock.Current(),
			TotalVolume:   totalVolume,
			TotalTrades:   totalTrades,
		}
		if bid > 0 && ask > 0 {
			md.Spread = ask - bid
		}
		e.publishMarketData(md)
	}
}

func (e *Engine) publishTrade(t Trade) {
	e.obsMu.Lock()
	observers := append([]TradeObserver(nil), e.tradeObservers...)
	e.obsMu.Unlock()
	for _, o := range observers {
		o.OnTrade(t)
	}
}

func (e *Engine) publishMarketData(m MarketData) {
	e.obsMu.Lock()
	observers := append([]MarketDataObserver(nil), e.mdObservers...)
	e.obsMu.Unlock()
	for _, o := range observers {
		o.OnMarketData(m)
	}
}

// SubscribeTrades registers o to receive every future trade. Registration
// is not revocable by the core.
func (e *Engine) SubscribeTrades(o TradeObserver) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.tradeObservers = append(e.tradeObservers, o)
}

// SubscribeMarketData registers o to receive every future market-data
// update. Registration is not revocable by the core.
func (e *Engine) SubscribeMarketData(o MarketDataObserver) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.mdObservers = append(e.mdObservers, o)
}

// Cancel cancels orderID on behalf of userID, synchronously, under the
// owning book's lock. It returns (false, err) when the cancel cannot be
// applied and (true, nil) on success.
func (e *Engine) Cancel(orderID, userID string) (bool, error) {
	if err := e.checkReentrant(); err != nil {
		return false, err
	}
	entry, err := e.findOwner(orderID, userID)
	if err != nil {
		return false, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if err := entry.book.Cancel(orderID); err != nil {
		return false, err
	}
	return true, nil
}

// Modify applies a cancel-and-replace modification to orderID on behalf
// of userID. newPrice/newQuantity of 0 mean "leave unchanged"; any
// trades produced by the replacement order are published exactly as if
// they had come from the worker loop.
func (e *Engine) Modify(orderID, userID string, newPrice, newQuantity int64) (bool, error) {
	if err := e.checkReentrant(); err != nil {
		return false, err
	}
	entry, err := e.findOwner(orderID, userID)
	if err != nil {
		return false, err
	}

	entry.mu.Lock()
	trades, err := entry.book.Modify(orderID, newPrice, newQuantity)
	bid, ask, last := entry.book.BestBid(), entry.book.BestAsk(), entry.book.LastTradePrice()
	totalTrades, totalVolume := entry.book.totalTrades, entry.book.totalVolume
	symbol := entry.book.Symbol
	entry.mu.Unlock()
	if err != nil && len(trades) == 0 {
		return false, err
	}

	e.ordersProcessed.Add(1)
	for _, t := range trades {
		e.tradesExecuted.Add(1)
		e.volumeTraded.Add(t.Quantity)
		e.publishTrade(t)
	}
	if e.cfg.EnableMarketDataBroadcast {
		md := MarketData{Symbol: symbol, BestBid: bid, BestAsk: ask, LastPrice: last,
			LastTradeTime: e.clock.Current(), TotalVolume: totalVolume, TotalTrades: totalTrades}
		if bid > 0 && ask > 0 {
			md.Spread = ask - bid
		}
		e.publishMarketData(md)
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// findOwner resolves orderID to its owning book and verifies userID owns
// it, without mutating any state.
func (e *Engine) findOwner(orderID, userID string) (*bookEntry, error) {
	e.symbolsMu.RLock()
	defer e.symbolsMu.RUnlock()
	for _, entry := range e.symbols {
		entry.mu.Lock()
		_, exists := entry.book.byID[orderID]
		if !exists {
			entry.mu.Unlock()
			continue
		}
		owns := entry.book.Owns(orderID, userID)
		entry.mu.Unlock()
		if !owns {
			return nil, newErr(ErrNotOwner, "user %s does not own order %s", userID, orderID)
		}
		return entry, nil
	}
	return nil, newErr(ErrNotFound, "order %s not found", orderID)
}

// GetOrder returns a snapshot of orderID, or (Order{}, false) if it is
// not currently resting in any book.
func (e *Engine) GetOrder(orderID string) (Order, bool) {
	e.symbolsMu.RLock()
	defer e.symbolsMu.RUnlock()
	for _, entry := range e.symbols {
		entry.mu.Lock()
		o, ok := entry.book.Order(orderID)
		entry.mu.Unlock()
		if ok {
			return o, true
		}
	}
	return Order{}, false
}

// GetUserOrders returns snapshots of every resting order belonging to
// userID, across every registered symbol.
func (e *Engine) GetUserOrders(userID string) []Order {
	e.symbolsMu.RLock()
	defer e.symbolsMu.RUnlock()
	var out []Order
	for _, entry := range e.symbols {
		entry.mu.Lock()
		out = append(out, entry.book.UserOrders(userID)...)
		entry.mu.Unlock()
	}
	return out
}

// GetMarketData returns the current top-of-book summary for symbol.
func (e *Engine) GetMarketData(symbol string) (MarketData, error) {
	entry, ok := e.lookupSymbol(symbol)
	if !ok {
		return MarketData{}, newErr(ErrUnknownSymbol, "symbol %s is not registered", symbol)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	md := MarketData{
		Symbol:      symbol,
		BestBid:     entry.book.BestBid(),
		BestAsk:     entry.book.BestAsk(),
		LastPrice:   entry.book.LastTradePrice(),
		TotalVolume: entry.book.totalVolume,
		TotalTrades: entry.book.totalTrades,
	}
	if md.BestBid > 0 && md.BestAsk > 0 {
		md.Spread = md.BestAsk - md.BestBid
	}
	return md, nil
}

// GetDepth returns up to levels (price, aggregate quantity) pairs,
// best-first, for side of each requested symbol. Unknown symbols are
// silently omitted from the result.
func (e *Engine) GetDepth(symbols []string, side Side, levels int) map[string][]DepthLevel {
	out := make(map[string][]DepthLevel, len(symbols))
	for _, sym := range symbols {
		entry, ok := e.lookupSymbol(sym)
		if !ok {
			continue
		}
		func() {
			entry.mu.Lock()
			defer entry.mu.Unlock()
			out[sym] = entry.book.Depth(side, levels)
		}()
	}
	return out
}

// Statistics returns the current values of the engine-wide atomic
// counters. Each field is individually consistent; the struct as a
// whole is not a cross-field snapshot.
func (e *Engine) Statistics() Statistics {
	return Statistics{
		OrdersProcessed: e.ordersProcessed.Load(),
		TradesExecuted:  e.tradesExecuted.Load(),
		VolumeTraded:    e.volumeTraded.Load(),
	}
}

// QueueLen reports the number of requests currently waiting in the
// admission queue. Exposed for tests and operational metrics.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}
