package book

import (
	"sort"

	marketdata "main/internal/domain/entity/marketdata"
)

// Book is the aggregated bid/ask ladder for one symbol. Bids are kept sorted
// descending by price, asks ascending. Not safe for concurrent use: a single
// feed-reader goroutine owns every mutation, and downstream consumers only
// ever see immutable Record copies.
type Book struct {
	bids []marketdata.PriceLevel // descending
	asks []marketdata.PriceLevel // ascending
}

func New() *Book {
	return &Book{}
}

// Apply upserts the level at price, or removes it when quantity is zero.
// No zero-quantity entry ever remains in either side.
func (b *Book) Apply(side marketdata.Side, price, quantity float64) {
	if side == marketdata.Bid {
		b.bids = applyLevel(b.bids, price, quantity, func(a, p float64) bool { return a > p })
		return
	}
	b.asks = applyLevel(b.asks, price, quantity, func(a, p float64) bool { return a < p })
}

// applyLevel keeps levels ordered by the before predicate.
func applyLevel(levels []marketdata.PriceLevel, price, quantity float64, before func(a, p float64) bool) []marketdata.PriceLevel {
	i := sort.Search(len(levels), func(i int) bool {
		return !before(levels[i].Price, price)
	})
	found := i < len(levels) && levels[i].Price == price

	if quantity == 0 {
		if !found {
			return levels
		}
		return append(levels[:i], levels[i+1:]...)
	}
	if found {
		levels[i].Quantity = quantity
		return levels
	}
	levels = append(levels, marketdata.PriceLevel{})
	copy(levels[i+1:], levels[i:])
	levels[i] = marketdata.PriceLevel{Price: price, Quantity: quantity}
	return levels
}

// Clear empties both sides. Used when a snapshot update resets the book.
func (b *Book) Clear() {
	b.bids = b.bids[:0]
	b.asks = b.asks[:0]
}

// Snapshot returns the full book state as parallel price/size slices, bids
// strictly descending and asks strictly ascending. The slices are copies and
// safe to retain.
func (b *Book) Snapshot() (bidPrices, bidSizes, askPrices, askSizes []float64) {
	bidPrices = make([]float64, len(b.bids))
	bidSizes = make([]float64, len(b.bids))
	for i, lvl := range b.bids {
		bidPrices[i] = lvl.Price
		bidSizes[i] = lvl.Quantity
	}
	askPrices = make([]float64, len(b.asks))
	askSizes = make([]float64, len(b.asks))
	for i, lvl := range b.asks {
		askPrices[i] = lvl.Price
		askSizes[i] = lvl.Quantity
	}
	return bidPrices, bidSizes, askPrices, askSizes
}

// Depth reports the number of levels on each side.
func (b *Book) Depth() (bids, asks int) {
	return len(b.bids), len(b.asks)
}
