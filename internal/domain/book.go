// Package domain defines the core types shared by every component: price
// levels, order books, the event/outcome hierarchy, and the opportunity
// records produced by the arbitrage evaluator. Types here carry no I/O.
package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultMaxLevels is the number of levels retained per book side.
const DefaultMaxLevels = 2

// RawLevel is a single (price, size) pair as carried on the wire. Prices and
// sizes stay decimal text until parsed; the venue's feed never sends binary
// floats.
type RawLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// PriceLevel is one parsed level of an order book side.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// BookSide holds the top levels for one side of an order book. Bids are
// ordered price-descending, asks price-ascending; the first level is always
// the best price for the side.
type BookSide struct {
	levels    []PriceLevel
	maxLevels int
	bids      bool
}

// NewBookSide creates a side with the given direction. maxLevels <= 0 falls
// back to DefaultMaxLevels.
func NewBookSide(bids bool, maxLevels int) BookSide {
	if maxLevels <= 0 {
		maxLevels = DefaultMaxLevels
	}
	return BookSide{maxLevels: maxLevels, bids: bids}
}

// Update replaces the side with the given full snapshot. An empty input
// empties the side. Levels whose price or size does not parse as a decimal
// are dropped from this update only; the count of dropped levels is returned
// so the caller can log it. The sort is stable: the venue does not document a
// tie-break for equal prices, so equal-price levels keep their arrival order.
func (s *BookSide) Update(raw []RawLevel) int {
	if len(raw) == 0 {
		s.levels = nil
		return 0
	}

	parsed := make([]PriceLevel, 0, len(raw))
	dropped := 0
	for _, lvl := range raw {
		price, err := decimal.NewFromString(lvl.Price)
		if err != nil {
			dropped++
			continue
		}
		size, err := decimal.NewFromString(lvl.Size)
		if err != nil {
			dropped++
			continue
		}
		parsed = append(parsed, PriceLevel{Price: price, Size: size})
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		if s.bids {
			return parsed[i].Price.GreaterThan(parsed[j].Price)
		}
		return parsed[i].Price.LessThan(parsed[j].Price)
	})

	if len(parsed) > s.maxLevels {
		parsed = parsed[:s.maxLevels]
	}
	s.levels = parsed
	return dropped
}

// Best returns the best level for this side, if any.
func (s *BookSide) Best() (PriceLevel, bool) {
	if len(s.levels) == 0 {
		return PriceLevel{}, false
	}
	return s.levels[0], true
}

// Level returns the i-th level (0 = best), if present.
func (s *BookSide) Level(i int) (PriceLevel, bool) {
	if i < 0 || i >= len(s.levels) {
		return PriceLevel{}, false
	}
	return s.levels[i], true
}

// Len returns the number of levels currently held.
func (s *BookSide) Len() int { return len(s.levels) }

// OrderBook is the bounded top-of-book view for one token.
type OrderBook struct {
	Bids BookSide
	Asks BookSide

	// LastUpdated is zero until the first update is applied.
	LastUpdated time.Time
}

// NewOrderBook creates an order book retaining maxLevels per side.
func NewOrderBook(maxLevels int) *OrderBook {
	return &OrderBook{
		Bids: NewBookSide(true, maxLevels),
		Asks: NewBookSide(false, maxLevels),
	}
}

// Update replaces both sides with the given snapshots and stamps the book
// with the update's receipt time. It returns the number of levels dropped as
// unparseable.
func (b *OrderBook) Update(bids, asks []RawLevel, at time.Time) int {
	dropped := b.Bids.Update(bids)
	dropped += b.Asks.Update(asks)
	b.LastUpdated = at
	return dropped
}

// Updated reports whether at least one update has been applied since the
// book was created.
func (b *OrderBook) Updated() bool { return !b.LastUpdated.IsZero() }
