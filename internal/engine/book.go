package engine

// OrderBook holds the full resting state for one symbol: two SideBooks
// (bids/asks), two StopBooks (buy/sell stops), and the id/user indices
// needed to locate a resting order in O(1). add_order is the sole entry
// point for the matching algorithm; cancel and modify are the only other
// mutators. Callers are responsible for serializing access (see Engine),
// OrderBook itself holds no lock.
type OrderBook struct {
	Symbol string

	bids     *SideBook
	asks     *SideBook
	buyStops *StopBook
	sellStops *StopBook

	byID   map[string]*Order
	byUser map[string]map[string]struct{}

	lastTradePrice int64
	totalTrades    int64
	totalVolume    int64
	tradeSeq       uint64

	clock *Clock
}

// NewOrderBook constructs an empty book for symbol. clock is used to
// stamp replacement orders created by Modify and the synthesized market
// orders created by stop triggering; it should be the same Clock used to
// stamp every order admitted into this book.
func NewOrderBook(symbol string, clock *Clock) *OrderBook {
	return &OrderBook{
		Symbol:    symbol,
		bids:      newSideBook(Buy),
		asks:      newSideBook(Sell),
		buyStops:  newStopBook(Buy),
		sellStops: newStopBook(Sell),
		byID:      make(map[string]*Order),
		byUser:    make(map[string]map[string]struct{}),
		clock:     clock,
	}
}

func (b *OrderBook) index(o *Order) {
	b.byID[o.ID] = o
	set := b.byUser[o.UserID]
	if set == nil {
		set = make(map[string]struct{})
		b.byUser[o.UserID] = set
	}
	set[o.ID] = struct{}{}
}

func (b *OrderBook) unindex(o *Order) {
	delete(b.byID, o.ID)
	if set := b.byUser[o.UserID]; set != nil {
		delete(set, o.ID)
		if len(set) == 0 {
			delete(b.byUser, o.UserID)
		}
	}
}

func (b *OrderBook) sideBook(side Side) *SideBook {
	if side == Buy {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) oppositeSideBook(side Side) *SideBook {
	if side == Buy {
		return b.asks
	}
	return b.bids
}

func (b *OrderBook) stopBook(side Side) *StopBook {
	if side == Buy {
		return b.buyStops
	}
	return b.sellStops
}

// AddOrder runs the matching algorithm for order and returns the trades
// it produced, earliest first. order must not already be resting
// anywhere; it becomes PENDING, PARTIAL_FILL, FILLED, or REJECTED by the
// time this returns.
func (b *OrderBook) AddOrder(order *Order) ([]Trade, error) {
	if order.Symbol != b.Symbol {
		return nil, newErr(ErrRejectedSymbolMismatch, "order symbol %s does not match book symbol %s", order.Symbol, b.Symbol)
	}

	if order.Type == StopLoss {
		lvl := b.stopBook(order.Side).GetOrCreate(order.TriggerPrice)
		lvl.Enqueue(order)
		b.index(order)
		return nil, nil
	}

	trades, err := b.matchAndRest(order)
	if err != nil {
		return trades, err
	}

	if len(trades) > 0 {
		cascaded, cascadeErr := b.runStopCascade()
		trades = append(trades, cascaded...)
		if cascadeErr != nil {
			return trades, cascadeErr
		}
	}
	return trades, nil
}

// matchAndRest runs the matching loop for a LIMIT or MARKET taker and
// then disposes of any unmatched remainder per its type.
func (b *OrderBook) matchAndRest(order *Order) ([]Trade, error) {
	var trades []Trade

	opp := b.oppositeSideBook(order.Side)
	for order.RemainingQuantity > 0 {
		lvl := opp.Best()
		if lvl == nil {
			break
		}
		maker := lvl.Head()
		if maker == nil || !order.IsCompatibleWith(maker) {
			break
		}

		price, err := b.tradePrice(order, maker)
		if err != nil {
			return trades, err
		}

		qty := maker.RemainingQuantity
		if order.RemainingQuantity < qty {
			qty = order.RemainingQuantity
		}

		if err := maker.Fill(qty); err != nil {
			return trades, err
		}
		if err := order.Fill(qty); err != nil {
			return trades, err
		}
		lvl.AggregateQuantity -= qty

		b.tradeSeq++
		trade := Trade{
			ID:        b.tradeSeq,
			Symbol:    b.Symbol,
			Price:     price,
			Quantity:  qty,
			Timestamp: b.clock.Next(),
		}
		if order.Side == Buy {
			trade.BuyOrderID, trade.SellOrderID = order.ID, maker.ID
		} else {
			trade.BuyOrderID, trade.SellOrderID = maker.ID, order.ID
		}
		trades = append(trades, trade)

		b.lastTradePrice = price
		b.totalTrades++
		b.totalVolume += qty

		if maker.RemainingQuantity == 0 {
			lvl.Remove(maker)
			b.unindex(maker)
			opp.RemoveIfEmpty(lvl.Price)
		}
	}

	switch order.Type {
	case Limit:
		if order.RemainingQuantity > 0 {
			lvl := b.sideBook(order.Side).GetOrCreate(order.Price)
			lvl.Enqueue(order)
			b.index(order)
		}
	case Market:
		if order.RemainingQuantity > 0 {
			if len(trades) == 0 {
				order.Status = Rejected
				return trades, newErr(ErrUnfilledMarket, "market order %s had no compatible liquidity", order.ID)
			}
			// Partial fill on a market order: unmatched remainder is
			// discarded, order is done either way.
			order.RemainingQuantity = 0
			order.Status = Filled
		}
	}

	return trades, nil
}

// tradePrice implements the maker-price-unless-market policy from the
// matching algorithm.
func (b *OrderBook) tradePrice(taker, maker *Order) (int64, error) {
	if maker.Type != Market {
		return maker.Price, nil
	}
	if taker.Type != Market {
		return taker.Price, nil
	}
	if b.lastTradePrice == 0 {
		return 0, newErr(ErrNoReferencePrice, "both sides market with no prior trade on %s", b.Symbol)
	}
	return b.lastTradePrice, nil
}

// runStopCascade repeatedly triggers the nearest-to-last-trade-price stop
// on whichever side currently qualifies, converting it to a MARKET order
// and resubmitting through the matching loop, until neither side fires.
func (b *OrderBook) runStopCascade() ([]Trade, error) {
	var trades []Trade
	for {
		buyLvl := b.buyStops.Best()
		sellLvl := b.sellStops.Best()

		var fireBuy, fireSell bool
		if buyLvl != nil && buyLvl.Price <= b.lastTradePrice {
			fireBuy = true
		}
		if sellLvl != nil && sellLvl.Price >= b.lastTradePrice {
			fireSell = true
		}
		if !fireBuy && !fireSell {
			return trades, nil
		}

		var lvl *PriceLevel
		var book *StopBook
		switch {
		case fireBuy && fireSell:
			buyDist := b.lastTradePrice - buyLvl.Price
			sellDist := sellLvl.Price - b.lastTradePrice
			if sellDist < buyDist {
				lvl, book = sellLvl, b.sellStops
			} else {
				lvl, book = buyLvl, b.buyStops
			}
		case fireBuy:
			lvl, book = buyLvl, b.buyStops
		default:
			lvl, book = sellLvl, b.sellStops
		}

		stop := lvl.Head()
		lvl.Remove(stop)
		book.RemoveIfEmpty(lvl.Price)
		b.unindex(stop)

		stop.Status = Triggered
		stop.Type = Market
		stop.Price = 0

		more, err := b.matchAndRest(stop)
		trades = append(trades, more...)
		if err != nil {
			return trades, err
		}
	}
}

// Cancel removes a resting order from whichever sub-book holds it.
func (b *OrderBook) Cancel(orderID string) error {
	o, ok := b.byID[orderID]
	if !ok {
		return newErr(ErrNotFound, "order %s not found", orderID)
	}
	if o.Status.Terminal() || o.Status == Triggered {
		return newErr(ErrAlreadyTerminal, "order %s is already %s", orderID, o.Status)
	}

	lvl := b.levelFor(o)
	if lvl != nil {
		lvl.Remove(o)
		b.removeLevelIfEmpty(o, lvl)
	}
	b.unindex(o)
	o.Status = Cancelled
	return nil
}

// levelFor returns the PriceLevel currently holding o, based on its type
// and side.
func (b *OrderBook) levelFor(o *Order) *PriceLevel {
	if o.Type == StopLoss {
		return b.stopBook(o.Side).Find(o.TriggerPrice)
	}
	return b.sideBook(o.Side).Find(o.Price)
}

func (b *OrderBook) removeLevelIfEmpty(o *Order, lvl *PriceLevel) {
	if o.Type == StopLoss {
		b.stopBook(o.Side).RemoveIfEmpty(lvl.Price)
		return
	}
	b.sideBook(o.Side).RemoveIfEmpty(lvl.Price)
}

// Modify applies the cancel-and-replace semantics from the matching
// algorithm: a real change in price or quantity removes the resting
// order and re-submits a fresh one under the same id, losing time
// priority. newPrice/newQuantity of 0 mean "unchanged".
func (b *OrderBook) Modify(orderID string, newPrice, newQuantity int64) ([]Trade, error) {
	o, ok := b.byID[orderID]
	if !ok {
		return nil, newErr(ErrNotFound, "order %s not found", orderID)
	}
	if o.Status.Terminal() {
		return nil, newErr(ErrAlreadyTerminal, "order %s is already %s", orderID, o.Status)
	}

	priceChanged := newPrice > 0 && newPrice != o.Price
	qtyChanged := newQuantity > 0 && newQuantity != o.RemainingQuantity
	if !priceChanged && !qtyChanged {
		return nil, newErr(ErrNotModified, "no change to order %s", orderID)
	}
	if qtyChanged && newQuantity < (o.OriginalQuantity-o.RemainingQuantity) {
		return nil, newErr(ErrInvalidModification, "new quantity %d is below already-filled quantity", newQuantity)
	}

	price := o.Price
	if priceChanged {
		price = newPrice
	}
	qty := o.RemainingQuantity
	if qtyChanged {
		qty = newQuantity
	}

	if err := b.Cancel(orderID); err != nil {
		return nil, err
	}

	replacement, err := NewOrder(NewOrderParams{
		ID:           o.ID,
		UserID:       o.UserID,
		Symbol:       o.Symbol,
		Type:         o.Type,
		Side:         o.Side,
		Price:        price,
		TriggerPrice: o.TriggerPrice,
		Quantity:     qty,
	}, b.clock)
	if err != nil {
		return nil, err
	}

	return b.AddOrder(replacement)
}

// BestBid returns the current best bid price, or 0 if the bid side is
// empty.
func (b *OrderBook) BestBid() int64 {
	if lvl := b.bids.Best(); lvl != nil {
		return lvl.Price
	}
	return 0
}

// BestAsk returns the current best ask price, or 0 if the ask side is
// empty.
func (b *OrderBook) BestAsk() int64 {
	if lvl := b.asks.Best(); lvl != nil {
		return lvl.Price
	}
	return 0
}

// LastTradePrice returns the price of the most recent trade on this
// book, or 0 if none has occurred yet.
func (b *OrderBook) LastTradePrice() int64 {
	return b.lastTradePrice
}

// IsEmpty reports whether the book has no resting orders of any kind.
func (b *OrderBook) IsEmpty() bool {
	return len(b.byID) == 0
}

// Depth returns up to levels price/aggregate-quantity pairs for one side,
// best-first. A negative levels is treated as zero.
func (b *OrderBook) Depth(side Side, levels int) []DepthLevel {
	if levels < 0 {
		levels = 0
	}
	out := make([]DepthLevel, 0, levels)
	if levels == 0 {
		return out
	}
	b.sideBook(side).Ascend(func(lvl *PriceLevel) bool {
		out = append(out, DepthLevel{Price: lvl.Price, Quantity: lvl.AggregateQuantity})
		return len(out) < levels
	})
	return out
}

// DepthLevel is one (price, aggregate quantity) pair returned by Depth.
type DepthLevel struct {
	Price    int64
	Quantity int64
}

// Order looks up a resting order snapshot by id.
func (b *OrderBook) Order(orderID string) (Order, bool) {
	o, ok := b.byID[orderID]
	if !ok {
		return Order{}, false
	}
	return o.Snapshot(), true
}

// UserOrders returns snapshots of every resting order belonging to
// userID.
func (b *OrderBook) UserOrders(userID string) []Order {
	set := b.byUser[userID]
	out := make([]Order, 0, len(set))
	for id := range set {
		out = append(out, b.byID[id].Snapshot())
	}
	return out
}

// Owns reports whether userID owns orderID. Used by the Engine to
// enforce ownership before cancel/modify.
func (b *OrderBook) Owns(orderID, userID string) bool {
	set := b.byUser[userID]
	if set == nil {
		return false
	}
	_, ok := set[orderID]
	return ok
}
