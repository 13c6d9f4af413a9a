package engine

// Side is the direction of an order.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Type is the execution style of an order.
type Type int

const (
	Limit Type = iota
	Market
	StopLoss
)

func (t Type) String() string {
	switch t {
	case Limit:
		return "LIMIT"
	case Market:
		return "MARKET"
	case StopLoss:
		return "STOP_LOSS"
	default:
		return "UNKNOWN"
	}
}

// Status is the lifecycle state of an order.
type Status int

const (
	Pending Status = iota
	PartialFill
	Filled
	Cancelled
	Rejected
	Triggered
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case PartialFill:
		return "PARTIAL_FILL"
	case Filled:
		return "FILLED"
	case Cancelled:
		return "CANCELLED"
	case Rejected:
		return "REJECTED"
	case Triggered:
		return "TRIGGERED"
	default:
		return "UNKNOWN"
	}
}

func (s Status) Terminal() bool {
	return s == Filled || s == Cancelled || s == Rejected
}

// Order is the mutable resting unit the book matches against. Identity
// fields (ID, UserID, Symbol, Type, Side, Price, TriggerPrice,
// OriginalQuantity) never change after construction, except that
// triggering a stop-loss order rewrites its Type to MARKET and its Price
// to 0; RemainingQuantity and Status are updated in place by Fill and by
// the book as the order moves through its lifecycle.
//
// next/prev are intrusive FIFO linkage used by PriceLevel (in a SideBook
// or a StopBook) while the order rests in exactly one sub-book. They are bookkeeping, not
// identity, and are zero when the order is not currently linked.
type Order struct {
	ID           string
	UserID       string
	Symbol       string
	Type         Type
	Side         Side
	Price        int64
	TriggerPrice int64

	OriginalQuantity  int64
	RemainingQuantity int64
	Status            Status
	Timestamp         int64

	next, prev *Order
}

// NewOrderParams is the constructor input for NewOrder.
type NewOrderParams struct {
	ID           string
	UserID       string
	Symbol       string
	Type         Type
	Side         Side
	Price        int64
	TriggerPrice int64
	Quantity     int64
}

// NewOrder validates p against the invariants an Order must hold for its
// entire life and returns a PENDING order with a freshly issued
// timestamp, or an *Error with kind InvalidOrder.
func NewOrder(p NewOrderParams, clock *Clock) (*Order, error) {
	if p.ID == "" {
		return nil, newErr(ErrInvalidOrder, "order id is required")
	}
	if p.UserID == "" {
		return nil, newErr(ErrInvalidOrder, "user id is required")
	}
	if p.Symbol == "" {
		return nil, newErr(ErrInvalidOrder, "symbol is required")
	}
	if p.Quantity <= 0 {
		return nil, newErr(ErrInvalidOrder, "quantity must be positive, got %d", p.Quantity)
	}
	if p.Price < 0 {
		return nil, newErr(ErrInvalidOrder, "price must not be negative, got %d", p.Price)
	}
	switch p.Type {
	case Limit:
		if p.Price <= 0 {
			return nil, newErr(ErrInvalidOrder, "limit order requires a positive price")
		}
	case Market:
		// price is ignored for market orders; spec requires it be 0.
	case StopLoss:
		if p.TriggerPrice <= 0 {
			return nil, newErr(ErrInvalidOrder, "stop-loss order requires a positive trigger price")
		}
	default:
		return nil, newErr(ErrInvalidOrder, "unknown order type %v", p.Type)
	}

	return &Order{
		ID:                p.ID,
		UserID:            p.UserID,
		Symbol:            p.Symbol,
		Type:              p.Type,
		Side:              p.Side,
		Price:             p.Price,
		TriggerPrice:      p.TriggerPrice,
		OriginalQuantity:  p.Quantity,
		RemainingQuantity: p.Quantity,
		Status:            Pending,
		Timestamp:         clock.Next(),
	}, nil
}

// Fill reduces RemainingQuantity by n and advances Status to FILLED or
// PARTIAL_FILL. n must be in (0, RemainingQuantity].
func (o *Order) Fill(n int64) error {
	if n <= 0 || n > o.RemainingQuantity {
		return newErr(ErrInvalidFill, "cannot fill %d of %d remaining on order %s", n, o.RemainingQuantity, o.ID)
	}
	o.RemainingQuantity -= n
	if o.RemainingQuantity == 0 {
		o.Status = Filled
	} else {
		o.Status = PartialFill
	}
	return nil
}

// IsCompatibleWith reports whether taker could trade against maker right
// now: same symbol, opposite sides, both have quantity left, neither is
// terminal, and either side is a market order or the limit prices cross.
func (taker *Order) IsCompatibleWith(maker *Order) bool {
	if taker.Symbol != maker.Symbol {
		return false
	}
	if taker.Side == maker.Side {
		return false
	}
	if taker.RemainingQuantity <= 0 || maker.RemainingQuantity <= 0 {
		return false
	}
	if taker.Status.Terminal() || maker.Status.Terminal() {
		return false
	}
	if taker.Type == Market || maker.Type == Market {
		return true
	}
	buy, sell := taker, maker
	if taker.Side == Sell {
		buy, sell = maker, taker
	}
	return buy.Price >= sell.Price
}

// Snapshot returns a value copy of the order safe for callers to read
// without racing the book that owns the original.
func (o *Order) Snapshot() Order {
	cp := *o
	cp.next, cp.prev = nil, nil
	return cp
}

// Trade is an immutable record of one match. BuyOrderID/SellOrderID are
// assigned by side regardless of which order was the taker.
type Trade struct {
	ID          uint64
	Symbol      string
	BuyOrderID  string
	SellOrderID string
	Price       int64
	Quantity    int64
	Timestamp   int64
}
