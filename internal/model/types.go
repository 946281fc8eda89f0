// Package model defines the shared data types passed between the ingestion,
// detection, episode, and sink layers of PumpSentinel.
//
// Conventions:
//   - Prices and ratios: decimal.Decimal (github.com/shopspring/decimal), never float64 —
//     avoids the drift that bites ratio comparisons like R >= spread_ratio_min.
//   - Timestamps: time.Time. Interval math (durations, cooldowns) should use a
//     monotonic clock; wall-clock is only for the values that get logged.
//   - IDs: string for symbols/strategy ids, uuid.UUID for episode records.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Symbol is an opaque venue instrument identifier, e.g. "BTC_USDT".
type Symbol = string

// StrategyID identifies one of the four detection strategies.
type StrategyID string

const (
	Strategy1 StrategyID = "strategy1"
	Strategy2 StrategyID = "strategy2"
	Strategy3 StrategyID = "strategy3"
	Strategy4 StrategyID = "strategy4"
)

// HistorySample is a single (timestamp, last, mark) point in a symbol's
// rolling history window.
type HistorySample struct {
	Time time.Time
	Last decimal.Decimal
	Mark decimal.Decimal
}

// PriceLevel is a single price/size point on one side of an order book.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// OrderbookSnapshot is the latest L2 depth for a symbol, truncated to
// orderbook.max_levels and ordered bids descending / asks ascending.
type OrderbookSnapshot struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// BestBid returns the highest bid level, or false if the book has no bids.
func (s OrderbookSnapshot) BestBid() (PriceLevel, bool) {
	if len(s.Bids) == 0 {
		return PriceLevel{}, false
	}
	return s.Bids[0], true
}

// BestAsk returns the lowest ask level, or false if the book has no asks.
func (s OrderbookSnapshot) BestAsk() (PriceLevel, bool) {
	if len(s.Asks) == 0 {
		return PriceLevel{}, false
	}
	return s.Asks[0], true
}

// Mid returns (best_bid + best_ask) / 2, or false if either side is empty.
func (s OrderbookSnapshot) Mid() (decimal.Decimal, bool) {
	bid, ok := s.BestBid()
	if !ok {
		return decimal.Zero, false
	}
	ask, ok := s.BestAsk()
	if !ok {
		return decimal.Zero, false
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), true
}

// SpreadPct returns (best_ask - best_bid) / mid, or false if undefined.
func (s OrderbookSnapshot) SpreadPct() (decimal.Decimal, bool) {
	mid, ok := s.Mid()
	if !ok || mid.IsZero() {
		return decimal.Zero, false
	}
	bid, _ := s.BestBid()
	ask, _ := s.BestAsk()
	return ask.Price.Sub(bid.Price).Div(mid), true
}

// ThickDepth sums size*price across levels on both sides within
// |price - mid| / mid <= bandPct.
func (s OrderbookSnapshot) ThickDepth(bandPct decimal.Decimal) (decimal.Decimal, bool) {
	mid, ok := s.Mid()
	if !ok || mid.IsZero() {
		return decimal.Zero, false
	}

	total := decimal.Zero
	for _, lvl := range s.Bids {
		if withinBand(lvl.Price, mid, bandPct) {
			total = total.Add(lvl.Size.Mul(lvl.Price))
		}
	}
	for _, lvl := range s.Asks {
		if withinBand(lvl.Price, mid, bandPct) {
			total = total.Add(lvl.Size.Mul(lvl.Price))
		}
	}
	return total, true
}

func withinBand(price, mid, bandPct decimal.Decimal) bool {
	dev := price.Sub(mid).Abs().Div(mid)
	return dev.LessThanOrEqual(bandPct)
}

// EpisodeRecord is the finalized, sink-bound record of one detection episode.
type EpisodeRecord struct {
	ID        uuid.UUID
	Symbol    Symbol
	Strategy  StrategyID
	StartAt   time.Time
	EndAt     time.Time
	PeakRatio decimal.Decimal
	PeakLast  decimal.Decimal
	PeakMark  decimal.Decimal
	EmittedAt time.Time
}

// Duration returns EndAt - StartAt.
func (r EpisodeRecord) Duration() time.Duration {
	return r.EndAt.Sub(r.StartAt)
}

// StrategyResult is the output of evaluating one strategy predicate
// against a SymbolState at a point in time. Strategies are total
// functions of (state, now, config); Met=false carries no information
// beyond "not met" (spec §4.3).
type StrategyResult struct {
	Met   bool
	Ratio decimal.Decimal
}
