package engine

// SnapshotEntry is one resting order as exported by Export, carrying
// the fields needed for the logical snapshot format. The concrete
// on-disk encoding is left to callers (internal/snapshot); this type is
// the core's contract for what must round-trip.
type SnapshotEntry struct {
	OrderID           string
	UserID            string
	Type              Type
	Side              Side
	Price             int64
	RemainingQuantity int64
	Timestamp         int64
	TriggerPrice      int64
}

// BookSnapshot is the exported state of one OrderBook.
type BookSnapshot struct {
	Symbol         string
	Bids           []SnapshotEntry
	Asks           []SnapshotEntry
	BuyStops       []SnapshotEntry
	SellStops      []SnapshotEntry
	LastTradePrice int64
	TotalTrades    int64
	TotalVolume    int64
	TradeSeq       uint64
}

// Export returns the book's current resting state, bids and asks
// best-first, stops in trigger priority order.
func (b *OrderBook) Export() BookSnapshot {
	snap := BookSnapshot{
		Symbol:         b.Symbol,
		LastTradePrice: b.lastTradePrice,
		TotalTrades:    b.totalTrades,
		TotalVolume:    b.totalVolume,
		TradeSeq:       b.tradeSeq,
	}
	b.bids.Ascend(func(lvl *PriceLevel) bool {
		snap.Bids = append(snap.Bids, exportLevel(lvl)...)
		return true
	})
	b.asks.Ascend(func(lvl *PriceLevel) bool {
		snap.Asks = append(snap.Asks, exportLevel(lvl)...)
		return true
	})
	b.buyStops.Ascend(func(lvl *PriceLevel) bool {
		snap.BuyStops = append(snap.BuyStops, exportLevel(lvl)...)
		return true
	})
	b.sellStops.Ascend(func(lvl *PriceLevel) bool {
		snap.SellStops = append(snap.SellStops, exportLevel(lvl)...)
		return true
	})
	return snap
}

func exportLevel(lvl *PriceLevel) []SnapshotEntry {
	orders := lvl.Orders()
	out := make([]SnapshotEntry, 0, len(orders))
	for _, o := range orders {
		out = append(out, SnapshotEntry{
			OrderID:           o.ID,
			UserID:            o.UserID,
			Type:              o.Type,
			Side:              o.Side,
			Price:             o.Price,
			RemainingQuantity: o.RemainingQuantity,
			Timestamp:         o.Timestamp,
			TriggerPrice:      o.TriggerPrice,
		})
	}
	return out
}

// Import restores a previously-exported BookSnapshot into an empty
// book. It does not run the matching loop (entries come from a book
// that was already crossed-free and internally consistent), but it
// re-validates every structural invariant and rejects anything
// malformed with SnapshotInvalid rather than silently accepting it.
// Import fails if the book is not currently empty.
func (b *OrderBook) Import(snap BookSnapshot) error {
	if snap.Symbol != b.Symbol {
		return newErr(ErrSnapshotInvalid, "snapshot symbol %s does not match book symbol %s", snap.Symbol, b.Symbol)
	}
	if !b.IsEmpty() {
		return newErr(ErrSnapshotInvalid, "cannot import into a non-empty book")
	}

	for _, e := range snap.Bids {
		if err := b.restore(e, Buy, false); err != nil {
			return err
		}
	}
	for _, e := range snap.Asks {
		if err := b.restore(e, Sell, false); err != nil {
			return err
		}
	}
	for _, e := range snap.BuyStops {
		if err := b.restore(e, Buy, true); err != nil {
			return err
		}
	}
	for _, e := range snap.SellStops {
		if err := b.restore(e, Sell, true); err != nil {
			return err
		}
	}

	if b.BestBid() > 0 && b.BestAsk() > 0 && b.BestBid() >= b.BestAsk() {
		return newErr(ErrSnapshotInvalid, "snapshot for %s would restore a crossed book", snap.Symbol)
	}

	b.lastTradePrice = snap.LastTradePrice
	b.totalTrades = snap.TotalTrades
	b.totalVolume = snap.TotalVolume
	b.tradeSeq = snap.TradeSeq
	return nil
}

func (b *OrderBook) restore(e SnapshotEntry, side Side, stop bool) error {
	if e.OrderID == "" || e.UserID == "" {
		return newErr(ErrSnapshotInvalid, "snapshot entry missing order id or user id")
	}
	if e.RemainingQuantity <= 0 {
		return newErr(ErrSnapshotInvalid, "snapshot entry %s has non-positive remaining quantity", e.OrderID)
	}
	if _, exists := b.byID[e.OrderID]; exists {
		return newErr(ErrSnapshotInvalid, "snapshot contains duplicate order id %s", e.OrderID)
	}

	o := &Order{
		ID:                e.OrderID,
		UserID:            e.UserID,
		Symbol:            b.Symbol,
		Type:              e.Type,
		Side:              side,
		Price:             e.Price,
		TriggerPrice:      e.TriggerPrice,
		OriginalQuantity:  e.RemainingQuantity,
		RemainingQuantity: e.RemainingQuantity,
		Status:            Pending,
		Timestamp:         e.Timestamp,
	}

	var lvl *PriceLevel
	if stop {
		if o.TriggerPrice <= 0 {
			return newErr(ErrSnapshotInvalid, "stop entry %s has non-positive trigger price", e.OrderID)
		}
		o.Type = StopLoss
		lvl = b.stopBook(side).GetOrCreate(o.TriggerPrice)
	} else {
		if o.Type != Limit {
			return newErr(ErrSnapshotInvalid, "resting entry %s is not a limit order", e.OrderID)
		}
		if o.Price <= 0 {
			return newErr(ErrSnapshotInvalid, "resting entry %s has non-positive price", e.OrderID)
		}
		lvl = b.sideBook(side).GetOrCreate(o.Price)
	}
	lvl.Enqueue(o)
	b.index(o)
	return nil
}

// EngineSnapshot is the exported state of every registered symbol plus
// the engine-wide counters.
type EngineSnapshot struct {
	Books           []BookSnapshot
	OrdersProcessed int64
	TradesExecuted  int64
	VolumeTraded    int64
}

// ExportSnapshot exports every registered symbol's book. Symbols are
// not locked against each other during the walk, so the result is a
// consistent-per-book, not a cross-symbol, point in time.
func (e *Engine) ExportSnapshot() EngineSnapshot {
	e.symbolsMu.RLock()
	defer e.symbolsMu.RUnlock()

	snap := EngineSnapshot{
		OrdersProcessed: e.ordersProcessed.Load(),
		TradesExecuted:  e.tradesExecuted.Load(),
		VolumeTraded:    e.volumeTraded.Load(),
	}
	for _, entry := range e.symbols {
		entry.mu.Lock()
		snap.Books = append(snap.Books, entry.book.Export())
		entry.mu.Unlock()
	}
	return snap
}

// ImportSnapshot restores every book in snap. Symbols absent from the
// registry are added empty first; a symbol whose book is not already
// empty causes the whole import to fail with SnapshotInvalid, leaving
// already-imported books in place (import is not transactional across
// symbols).
func (e *Engine) ImportSnapshot(snap EngineSnapshot) error {
	for _, bs := range snap.Books {
		e.AddSymbol(bs.Symbol)
		entry, _ := e.lookupSymbol(bs.Symbol)
		entry.mu.Lock()
		err := entry.book.Import(bs)
		entry.mu.Unlock()
		if err != nil {
			return err
		}
	}
	e.ordersProcessed.Store(snap.OrdersProcessed)
	e.tradesExecuted.Store(snap.TradesExecuted)
	e.volumeTraded.Store(snap.VolumeTraded)
	return nil
}
