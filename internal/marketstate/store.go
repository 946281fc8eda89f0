// Package marketstate implements PumpSentinel's Market-State Store: a
// concurrent symbol -> SymbolState mapping that absorbs the ticker,
// fair-price, and depth feeds and maintains the derived rolling history
// each detection strategy reads.
//
// Registration is fixed at startup (spec §3: "set of active symbols is
// fixed at startup"). Writers hold per-symbol exclusive access; readers
// take a per-symbol shared view via Snapshot. No lock is ever held across
// symbols, matching §5's "no global lock across symbols".
package marketstate

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mvoss-labs/pumpsentinel/internal/model"
)

// SymbolState is a consistent, read-only view of one symbol's state at
// the moment Snapshot was called. It is a copy: mutating it never
// affects the store.
type SymbolState struct {
	Symbol    model.Symbol
	LastPrice decimal.Decimal
	HasLast   bool
	MarkPrice decimal.Decimal
	HasMark   bool
	FairPrice decimal.Decimal
	HasFair   bool
	UpdatedAt time.Time
	History   []model.HistorySample
	Depth     *model.OrderbookSnapshot
}

// entry is the store's mutable, per-symbol record. Every field access
// outside of Store's map operations goes through mu.
type entry struct {
	mu sync.RWMutex

	symbol model.Symbol

	lastPrice decimal.Decimal
	hasLast   bool
	markPrice decimal.Decimal
	hasMark   bool
	fairPrice decimal.Decimal
	hasFair   bool
	updatedAt time.Time

	history []model.HistorySample // strictly ascending by Time
	depth   *model.OrderbookSnapshot
}

// Store is the concurrent symbol -> SymbolState mapping described in
// spec §4.1.
type Store struct {
	mu        sync.RWMutex
	entries   map[model.Symbol]*entry
	maxWindow time.Duration // H_max across all enabled strategies
	logger    *slog.Logger
}

// New creates a Store that retains history for maxWindow (spec's H_max,
// §4.1: "the maximum of all enabled strategies' windows (else a default
// of 60s)" — callers compute that value via config.Config.WindowSeconds).
func New(maxWindow time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		entries:   make(map[model.Symbol]*entry),
		maxWindow: maxWindow,
		logger:    logger,
	}
}

// Ensure idempotently registers a symbol. Calling it twice for the same
// symbol is a no-op; it never resets existing state.
func (s *Store) Ensure(symbol model.Symbol) {
	s.mu.RLock()
	_, ok := s.entries[symbol]
	s.mu.RUnlock()
	if ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[symbol]; ok {
		return
	}
	s.entries[symbol] = &entry{symbol: symbol}
	s.logger.Debug("symbol registered", "symbol", symbol)
}

// Registered reports whether symbol was registered at startup. Unknown
// symbols in feeds are silently dropped per spec §3.
func (s *Store) Registered(symbol model.Symbol) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[symbol]
	return ok
}

// Symbols returns every registered symbol. Order is unspecified.
func (s *Store) Symbols() []model.Symbol {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Symbol, 0, len(s.entries))
	for sym := range s.entries {
		out = append(out, sym)
	}
	return out
}

func (s *Store) lookup(symbol model.Symbol) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[symbol]
	return e, ok
}

// ApplyTicker records a new last-traded price. Returns false if symbol
// is not registered.
func (s *Store) ApplyTicker(symbol model.Symbol, last decimal.Decimal, ts time.Time) bool {
	e, ok := s.lookup(symbol)
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.hasLast || !ts.Before(e.updatedAt) {
		e.lastPrice = last
		e.hasLast = true
		if !ts.Before(e.updatedAt) {
			e.updatedAt = ts
		}
	}

	s.appendHistoryLocked(e, ts)
	return true
}

// ApplyMark records a new mark price. Returns false if symbol is not
// registered.
func (s *Store) ApplyMark(symbol model.Symbol, mark decimal.Decimal, ts time.Time) bool {
	e, ok := s.lookup(symbol)
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.hasMark || !ts.Before(e.updatedAt) {
		e.markPrice = mark
		e.hasMark = true
		if !ts.Before(e.updatedAt) {
			e.updatedAt = ts
		}
	}

	s.appendHistoryLocked(e, ts)
	return true
}

// ApplyFair records a new fair price. Fair price may alias mark on
// venues that do not distinguish the two (spec §3). Returns false if
// symbol is not registered.
func (s *Store) ApplyFair(symbol model.Symbol, fair decimal.Decimal, ts time.Time) bool {
	e, ok := s.lookup(symbol)
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.hasFair || !ts.Before(e.updatedAt) {
		e.fairPrice = fair
		e.hasFair = true
		if !ts.Before(e.updatedAt) {
			e.updatedAt = ts
		}
	}
	return true
}

// ApplyDepth replaces the depth snapshot wholesale after truncating each
// side to maxLevels, as required by spec §4.1. Returns false if symbol
// is not registered.
func (s *Store) ApplyDepth(symbol model.Symbol, bids, asks []model.PriceLevel, maxLevels int) bool {
	e, ok := s.lookup(symbol)
	if !ok {
		return false
	}

	if maxLevels > 0 {
		if len(bids) > maxLevels {
			bids = bids[:maxLevels]
		}
		if len(asks) > maxLevels {
			asks = asks[:maxLevels]
		}
	}

	snap := &model.OrderbookSnapshot{
		Bids: append([]model.PriceLevel(nil), bids...),
		Asks: append([]model.PriceLevel(nil), asks...),
	}

	e.mu.Lock()
	e.depth = snap
	e.mu.Unlock()
	return true
}

// appendHistoryLocked appends (ts, last, mark) to history if both scalars
// are known, then evicts entries older than ts-maxWindow. Must be called
// with e.mu held.
//
// Tie-breaking on equal timestamps: the later write wins and the sample
// at that timestamp is overwritten, keeping history strictly ascending
// (spec §3 invariant 1, §4.1 "tie-breaking").
func (s *Store) appendHistoryLocked(e *entry, ts time.Time) {
	if !e.hasLast || !e.hasMark {
		return
	}

	sample := model.HistorySample{Time: ts, Last: e.lastPrice, Mark: e.markPrice}

	n := len(e.history)
	switch {
	case n == 0 || ts.After(e.history[n-1].Time):
		e.history = append(e.history, sample)
	case ts.Equal(e.history[n-1].Time):
		e.history[n-1] = sample
	default:
		// Out-of-order arrival relative to the tail: insert in place,
		// overwriting an exact timestamp match if one exists.
		idx := 0
		for idx < n && e.history[idx].Time.Before(ts) {
			idx++
		}
		if idx < n && e.history[idx].Time.Equal(ts) {
			e.history[idx] = sample
		} else {
			e.history = append(e.history, model.HistorySample{})
			copy(e.history[idx+1:], e.history[idx:])
			e.history[idx] = sample
		}
	}

	if s.maxWindow <= 0 {
		return
	}
	cutoff := ts.Add(-s.maxWindow)
	head := 0
	for head < len(e.history) && e.history[head].Time.Before(cutoff) {
		head++
	}
	if head > 0 {
		e.history = append(e.history[:0], e.history[head:]...)
	}
}

// Snapshot returns a consistent, copied view of a symbol's state. It
// never observes a partially-updated entity: the entry's lock is held
// for the full duration of the copy (spec §4.1 consistency contract).
func (s *Store) Snapshot(symbol model.Symbol) (SymbolState, bool) {
	e, ok := s.lookup(symbol)
	if !ok {
		return SymbolState{}, false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	view := SymbolState{
		Symbol:    e.symbol,
		LastPrice: e.lastPrice,
		HasLast:   e.hasLast,
		MarkPrice: e.markPrice,
		HasMark:   e.hasMark,
		FairPrice: e.fairPrice,
		HasFair:   e.hasFair,
		UpdatedAt: e.updatedAt,
		History:   append([]model.HistorySample(nil), e.history...),
	}
	if e.depth != nil {
		d := *e.depth
		d.Bids = append([]model.PriceLevel(nil), e.depth.Bids...)
		d.Asks = append([]model.PriceLevel(nil), e.depth.Asks...)
		view.Depth = &d
	}
	return view, true
}
