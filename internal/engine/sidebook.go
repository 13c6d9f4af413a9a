package engine

// SideBook is the ordered index of price levels for one side of one
// symbol: bids are kept best-first by descending price, asks best-first
// by ascending price.
type SideBook struct {
	levels *orderedLevels
}

func newSideBook(side Side) *SideBook {
	return &SideBook{levels: newOrderedLevels(side == Buy)}
}

func (s *SideBook) Best() *PriceLevel           { return s.levels.Best() }
func (s *SideBook) Find(price int64) *PriceLevel { return s.levels.Find(price) }
func (s *SideBook) GetOrCreate(price int64) *PriceLevel {
	return s.levels.GetOrCreate(price)
}
func (s *SideBook) RemoveIfEmpty(price int64)          { s.levels.RemoveIfEmpty(price) }
func (s *SideBook) Len() int                           { return s.levels.Len() }
func (s *SideBook) Ascend(fn func(*PriceLevel) bool)   { s.levels.Ascend(fn) }

// StopBook is the ordered index of resting stop-loss orders keyed by
// trigger price: buy stops fire in ascending trigger order (closest to
// the last trade from below first), sell stops in descending order.
type StopBook struct {
	levels *orderedLevels
}

func newStopBook(side Side) *StopBook {
	// Buy stops: ascending (lowest trigger first). Sell stops: descending.
	return &StopBook{levels: newOrderedLevels(side == Sell)}
}

func (s *StopBook) Best() *PriceLevel                { return s.levels.Best() }
func (s *StopBook) Find(trigger int64) *PriceLevel   { return s.levels.Find(trigger) }
func (s *StopBook) GetOrCreate(trigger int64) *PriceLevel {
	return s.levels.GetOrCreate(trigger)
}
func (s *StopBook) RemoveIfEmpty(trigger int64)        { s.levels.RemoveIfEmpty(trigger) }
func (s *StopBook) Len() int                           { return s.levels.Len() }
func (s *StopBook) Ascend(fn func(*PriceLevel) bool)   { s.levels.Ascend(fn) }
