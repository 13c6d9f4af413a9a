package engine

import "github.com/google/btree"

// levelItem is the btree.Item stored for each occupied price. key is the
// comparison key actually used for ordering: for a descending index it is
// the negated price, so that btree's natural ascending Min() always
// yields the "best" level regardless of which side it backs.
type levelItem struct {
	key   int64
	level *PriceLevel
}

func (a levelItem) Less(than btree.Item) bool {
	return a.key < than.(levelItem).key
}

// orderedLevels is a balanced ordered map from price to *PriceLevel,
// used for both SideBook (bids/asks) and StopBook (buy/sell stops). It
// creates a level lazily on first insert and the caller is responsible
// for removing a level the moment it becomes empty.
type orderedLevels struct {
	tree       *btree.BTree
	descending bool
}

const btreeDegree = 32

func newOrderedLevels(descending bool) *orderedLevels {
	return &orderedLevels{tree: btree.New(btreeDegree), descending: descending}
}

func (o *orderedLevels) keyFor(price int64) int64 {
	if o.descending {
		return -price
	}
	return price
}

// GetOrCreate returns the level at price, creating an empty one if none
// exists yet.
func (o *orderedLevels) GetOrCreate(price int64) *PriceLevel {
	k := o.keyFor(price)
	if it := o.tree.Get(levelItem{key: k}); it != nil {
		return it.(levelItem).level
	}
	lvl := newPriceLevel(price)
	o.tree.ReplaceOrInsert(levelItem{key: k, level: lvl})
	return lvl
}

// Find returns the level at price, or nil.
func (o *orderedLevels) Find(price int64) *PriceLevel {
	it := o.tree.Get(levelItem{key: o.keyFor(price)})
	if it == nil {
		return nil
	}
	return it.(levelItem).level
}

// RemoveIfEmpty drops the level at price from the index if it is empty.
func (o *orderedLevels) RemoveIfEmpty(price int64) {
	lvl := o.Find(price)
	if lvl != nil && lvl.IsEmpty() {
		o.tree.Delete(levelItem{key: o.keyFor(price)})
	}
}

// Best returns the extremal level: max for a descending index, min for an
// ascending one.
func (o *orderedLevels) Best() *PriceLevel {
	it := o.tree.Min()
	if it == nil {
		return nil
	}
	return it.(levelItem).level
}

// Len returns the number of occupied price levels.
func (o *orderedLevels) Len() int {
	return o.tree.Len()
}

// Ascend visits levels in best-first order, stopping early if fn returns
// false.
func (o *orderedLevels) Ascend(fn func(*PriceLevel) bool) {
	o.tree.Ascend(func(i btree.Item) bool {
		return fn(i.(levelItem).level)
	})
}
