// Package episode implements the Episode Tracker: one Idle -> Active ->
// Cooldown -> Idle state machine per (symbol, strategy), with a cooldown
// shared across every strategy for a given symbol (spec §4.4).
package episode

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mvoss-labs/pumpsentinel/internal/model"
)

type phase int

const (
	phaseIdle phase = iota
	phaseActive
	phaseCooldown
)

type episodeState struct {
	phase     phase
	startAt   time.Time
	peakRatio decimal.Decimal
	peakLast  decimal.Decimal
	peakMark  decimal.Decimal
}

// symbolTracker holds every strategy's state machine for one symbol plus
// the cooldown deadline they all share.
type symbolTracker struct {
	mu            sync.Mutex
	cooldownUntil time.Time
	states        map[model.StrategyID]*episodeState
}

// Listener observes episode-open and in-episode tick events — the
// supplemental CSV recorder (internal/sink.CSVRecorder) is driven by
// this, since its pre-seeded-candle behavior needs more than the
// finalized EpisodeRecord that Process returns.
type Listener interface {
	EpisodeStarted(symbol model.Symbol, strategy model.StrategyID, at time.Time)
	EpisodeTick(symbol model.Symbol, strategy model.StrategyID, last, mark decimal.Decimal, at time.Time)
}

// Tracker is the Episode Tracker component. It is safe for concurrent
// use across distinct symbols; callers must serialize calls to Process
// for the same symbol in transport-receive order (spec §5's ordering
// guarantee — this mirrors the Market-State Store's per-symbol exclusion
// rather than re-implementing it).
type Tracker struct {
	cooldown time.Duration
	nowFunc  func() time.Time
	listener Listener

	mu      sync.RWMutex
	symbols map[model.Symbol]*symbolTracker
}

// New creates a Tracker whose cooldown is shared per symbol across all
// strategies (spec §4.4, §9).
func New(cooldown time.Duration) *Tracker {
	return &Tracker{
		cooldown: cooldown,
		nowFunc:  time.Now,
		symbols:  make(map[model.Symbol]*symbolTracker),
	}
}

// SetListener registers a Listener for episode-open and in-episode tick
// notifications. Not safe to call concurrently with Process.
func (t *Tracker) SetListener(l Listener) {
	t.listener = l
}

func (t *Tracker) getOrCreate(symbol model.Symbol) *symbolTracker {
	t.mu.RLock()
	st, ok := t.symbols[symbol]
	t.mu.RUnlock()
	if ok {
		return st
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.symbols[symbol]; ok {
		return st
	}
	st = &symbolTracker{states: make(map[model.StrategyID]*episodeState)}
	t.symbols[symbol] = st
	return st
}

// Process evaluates one tick's strategy results against symbol's episode
// state machines and returns every EpisodeRecord finalized as a side
// effect of this tick (zero, one, or more — one per strategy that
// transitioned out of Active). last and mark are the SymbolState's
// scalar fields at now, used to seed/update peak_last and peak_mark.
func (t *Tracker) Process(symbol model.Symbol, now time.Time, last, mark decimal.Decimal, results map[model.StrategyID]model.StrategyResult) []model.EpisodeRecord {
	st := t.getOrCreate(symbol)

	st.mu.Lock()
	defer st.mu.Unlock()

	var emitted []model.EpisodeRecord
	anyFinalized := false

	for id, res := range results {
		es, ok := st.states[id]
		if !ok {
			es = &episodeState{phase: phaseIdle}
			st.states[id] = es
		}

		switch es.phase {
		case phaseCooldown:
			if now.Before(st.cooldownUntil) {
				continue
			}
			es.phase = phaseIdle
			if res.Met {
				t.start(es, now, res, last, mark)
				t.notifyStarted(symbol, id, now)
			}

		case phaseIdle:
			if res.Met {
				t.start(es, now, res, last, mark)
				t.notifyStarted(symbol, id, now)
			}

		case phaseActive:
			if res.Met {
				t.updatePeak(es, res, last, mark)
			} else {
				emitted = append(emitted, t.finalize(symbol, id, es, now))
				es.phase = phaseCooldown
				anyFinalized = true
			}
		}

		if es.phase == phaseActive && t.listener != nil {
			t.listener.EpisodeTick(symbol, id, last, mark, now)
		}
	}

	if anyFinalized {
		st.cooldownUntil = now.Add(t.cooldown)
		for id, es := range st.states {
			if es.phase == phaseActive {
				emitted = append(emitted, t.finalize(symbol, id, es, now))
			}
			es.phase = phaseCooldown
		}
	}

	return emitted
}

func (t *Tracker) start(es *episodeState, now time.Time, res model.StrategyResult, last, mark decimal.Decimal) {
	es.phase = phaseActive
	es.startAt = now
	es.peakRatio = res.Ratio
	es.peakLast = last
	es.peakMark = mark
}

func (t *Tracker) notifyStarted(symbol model.Symbol, id model.StrategyID, now time.Time) {
	if t.listener != nil {
		t.listener.EpisodeStarted(symbol, id, now)
	}
}

// updatePeak keeps the running maxima for an Active episode. On equal
// ratio, the later sample wins (spec §4.4 "peak sample tie-break").
func (t *Tracker) updatePeak(es *episodeState, res model.StrategyResult, last, mark decimal.Decimal) {
	if res.Ratio.GreaterThanOrEqual(es.peakRatio) {
		es.peakRatio = res.Ratio
		es.peakLast = last
		es.peakMark = mark
	}
}

func (t *Tracker) finalize(symbol model.Symbol, id model.StrategyID, es *episodeState, endAt time.Time) model.EpisodeRecord {
	return model.EpisodeRecord{
		ID:        uuid.New(),
		Symbol:    symbol,
		Strategy:  id,
		StartAt:   es.startAt,
		EndAt:     endAt,
		PeakRatio: es.peakRatio,
		PeakLast:  es.peakLast,
		PeakMark:  es.peakMark,
		EmittedAt: t.nowFunc(),
	}
}

// Shutdown finalizes every Active episode across every symbol with
// end_at=at, matching spec §5: "Detection does not emit partial episodes
// on shutdown — any Active episodes are finalized ... and flushed to
// sinks."
func (t *Tracker) Shutdown(at time.Time) []model.EpisodeRecord {
	t.mu.RLock()
	all := make([]*symbolTracker, 0, len(t.symbols))
	symbols := make([]model.Symbol, 0, len(t.symbols))
	for sym, st := range t.symbols {
		all = append(all, st)
		symbols = append(symbols, sym)
	}
	t.mu.RUnlock()

	var emitted []model.EpisodeRecord
	for i, st := range all {
		st.mu.Lock()
		for id, es := range st.states {
			if es.phase == phaseActive {
				emitted = append(emitted, t.finalize(symbols[i], id, es, at))
				es.phase = phaseCooldown
			}
		}
		st.mu.Unlock()
	}
	return emitted
}
