package detection

import (
	"time"

	"github.com/mvoss-labs/pumpsentinel/internal/config"
	"github.com/mvoss-labs/pumpsentinel/internal/marketstate"
	"github.com/mvoss-labs/pumpsentinel/internal/model"
)

// Engine evaluates every enabled strategy against a symbol's current
// state on each tick (spec §4.3). It holds no per-symbol state of its
// own — that lives in the Episode Tracker — so Evaluate is safe to call
// concurrently across symbols.
type Engine struct {
	cfg     *config.Config
	enabled []model.StrategyID
}

// New builds an Engine from the validated configuration, fixing the set
// of enabled strategies for the process lifetime.
func New(cfg *config.Config) *Engine {
	e := &Engine{cfg: cfg}
	if cfg.Strategy1.Enabled {
		e.enabled = append(e.enabled, model.Strategy1)
	}
	if cfg.Strategy2.Enabled {
		e.enabled = append(e.enabled, model.Strategy2)
	}
	if cfg.Strategy3.Enabled {
		e.enabled = append(e.enabled, model.Strategy3)
	}
	if cfg.Strategy4.Enabled {
		e.enabled = append(e.enabled, model.Strategy4)
	}
	return e
}

// Enabled returns the strategy ids this engine evaluates.
func (e *Engine) Enabled() []model.StrategyID {
	return e.enabled
}

// Evaluate runs every enabled strategy against state at time now,
// matching each id to its variant in the tagged-union sense described in
// DESIGN.md's notes: detection is a plain switch over StrategyID rather
// than dynamic dispatch, so adding a fifth strategy is a compile-time
// change here and in config, not a new interface implementation.
func (e *Engine) Evaluate(state marketstate.SymbolState, now time.Time) map[model.StrategyID]model.StrategyResult {
	results := make(map[model.StrategyID]model.StrategyResult, len(e.enabled))
	for _, id := range e.enabled {
		results[id] = e.evaluateOne(id, state, now)
	}
	return results
}

func (e *Engine) evaluateOne(id model.StrategyID, state marketstate.SymbolState, now time.Time) model.StrategyResult {
	switch id {
	case model.Strategy1:
		return Strategy1(state, e.cfg.Strategy1)
	case model.Strategy2:
		return Strategy2(state, e.cfg.Strategy2, now)
	case model.Strategy3:
		return Strategy3(state, e.cfg.Strategy3, now)
	case model.Strategy4:
		return Strategy4(state, e.cfg.Strategy4, e.cfg.Orderbook)
	default:
		return notMet
	}
}
