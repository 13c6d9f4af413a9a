// Package risk provides the default pre-submission risk checker the
// Engine may run before an order reaches its book. It is an external
// collaborator the core only ever talks to through the
// engine.RiskChecker interface.
package risk

import (
	"fmt"
	"sync"

	"precedence/internal/engine"
)

// Checker enforces two numeric ceilings: max_order_size per individual
// order, and max_position_size on the net signed quantity of the orders
// it has accepted for a user per symbol. Position accounting here only
// tracks signed submitted quantity, not fills, price or margin; a
// cancelled or unfilled order is never subtracted again.
type Checker struct {
	maxOrderSize    int64
	maxPositionSize int64

	mu        sync.Mutex
	positions map[string]map[string]int64 // userID -> symbol -> net signed accepted quantity
}

// NewChecker constructs a Checker enforcing the given ceilings. A
// ceiling of 0 disables that check.
func NewChecker(maxOrderSize, maxPositionSize int64) *Checker {
	return &Checker{
		maxOrderSize:    maxOrderSize,
		maxPositionSize: maxPositionSize,
		positions:       make(map[string]map[string]int64),
	}
}

// CheckOrder implements engine.RiskChecker. It is called once per order
// by the worker before the order reaches its book; on a non-nil error
// the Engine marks the order REJECTED, logs the error, and the order
// never reaches its book.
func (c *Checker) CheckOrder(o *engine.Order) error {
	if c.maxOrderSize > 0 && o.OriginalQuantity > c.maxOrderSize {
		return fmt.Errorf("order quantity %d exceeds max order size %d", o.OriginalQuantity, c.maxOrderSize)
	}

	if c.maxPositionSize == 0 {
		return nil
	}

	signed := o.OriginalQuantity
	if o.Side == engine.Sell {
		signed = -signed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	bySymbol := c.positions[o.UserID]
	if bySymbol == nil {
		bySymbol = make(map[string]int64)
		c.positions[o.UserID] = bySymbol
	}
	projected := bySymbol[o.Symbol] + signed
	if abs(projected) > c.maxPositionSize {
		return fmt.Errorf("projected position %d on %s for user %s exceeds max position size %d",
			projected, o.Symbol, o.UserID, c.maxPositionSize)
	}

	bySymbol[o.Symbol] = projected
	return nil
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
