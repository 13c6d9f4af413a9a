package engine

// PriceLevel is a FIFO queue of resting orders sharing one price (or, for
// a StopBook, one trigger price). AggregateQuantity always equals the sum
// of the remaining quantity of every order still linked into the level;
// callers must not leave a filled or cancelled order linked.
type PriceLevel struct {
	Price             int64
	head, tail        *Order
	AggregateQuantity int64
	Count             int
}

func newPriceLevel(price int64) *PriceLevel {
	return &PriceLevel{Price: price}
}

// Enqueue appends o to the tail of the level in O(1).
func (p *PriceLevel) Enqueue(o *Order) {
	o.prev = p.tail
	o.next = nil
	if p.tail != nil {
		p.tail.next = o
	} else {
		p.head = o
	}
	p.tail = o
	p.AggregateQuantity += o.RemainingQuantity
	p.Count++
}

// Head returns the front of the queue without removing it.
func (p *PriceLevel) Head() *Order {
	return p.head
}

// Remove unlinks o from the level in O(1) using its intrusive next/prev
// pointers, adjusting the aggregate and count. o must currently be linked
// into this level.
func (p *PriceLevel) Remove(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		p.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		p.tail = o.prev
	}
	o.next, o.prev = nil, nil
	p.AggregateQuantity -= o.RemainingQuantity
	if p.AggregateQuantity < 0 {
		p.AggregateQuantity = 0
	}
	p.Count--
}

// PopHeadIfFilled removes the head order if it has no quantity left,
// reporting whether it did so.
func (p *PriceLevel) PopHeadIfFilled() bool {
	if p.head == nil || p.head.RemainingQuantity > 0 {
		return false
	}
	p.Remove(p.head)
	return true
}

// IsEmpty reports whether the level holds no orders.
func (p *PriceLevel) IsEmpty() bool {
	return p.Count == 0
}

// Orders returns a snapshot slice of the orders currently queued, head
// first. It is used for depth/export queries, not the matching hot path.
func (p *PriceLevel) Orders() []*Order {
	out := make([]*Order, 0, p.Count)
	for o := p.head; o != nil; o = o.next {
		out = append(out, o)
	}
	return out
}
