// Package detection implements the four pump-anomaly predicates (spec
// §4.3) as pure functions of (SymbolState, now, config). None of them
// raise: a missing field always resolves to "not met" (spec §7).
package detection

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mvoss-labs/pumpsentinel/internal/config"
	"github.com/mvoss-labs/pumpsentinel/internal/marketstate"
	"github.com/mvoss-labs/pumpsentinel/internal/model"
)

var notMet = model.StrategyResult{}

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// spreadRatio evaluates the common prerequisite shared by every strategy:
// last_price >= min_price and mark_price defined and positive. ok=false
// means the caller must report "not met" without looking at anything
// else.
func spreadRatio(s marketstate.SymbolState, minPrice float64) (r decimal.Decimal, ok bool) {
	if !s.HasLast || !s.HasMark {
		return decimal.Zero, false
	}
	if s.LastPrice.LessThan(dec(minPrice)) {
		return decimal.Zero, false
	}
	if !s.MarkPrice.IsPositive() {
		return decimal.Zero, false
	}
	return s.LastPrice.Div(s.MarkPrice), true
}

// Strategy1 is the Simple Spread predicate: R >= spread_ratio_min AND
// last_price - mark_price >= min_abs_diff.
func Strategy1(s marketstate.SymbolState, cfg config.StrategyConfig) model.StrategyResult {
	r, ok := spreadRatio(s, cfg.MinPrice)
	if !ok {
		return notMet
	}
	if r.LessThan(dec(cfg.SpreadRatioMin)) {
		return notMet
	}
	diff := s.LastPrice.Sub(s.MarkPrice)
	if diff.LessThan(dec(cfg.MinAbsDiff)) {
		return notMet
	}
	return model.StrategyResult{Met: true, Ratio: r}
}

// spikeLookbackEpsilon bounds how far from the exact lookback instant a
// history sample may sit and still count as "the sample at t-lookback"
// (spec §4.3's "[now − spike_lookback_secs − ε, now − spike_lookback_secs
// + ε]"). The spec does not pin a numeric ε; this implementation uses a
// tolerance wide enough to survive realistic tick jitter while still
// rejecting a history that is simply too short (see DESIGN.md).
const spikeLookbackEpsilon = 2 * time.Second

// Strategy2 is the Spread + Recent Spike predicate.
func Strategy2(s marketstate.SymbolState, cfg config.Strategy2Config, now time.Time) model.StrategyResult {
	r, ok := spreadRatio(s, cfg.MinPrice)
	if !ok {
		return notMet
	}
	if r.LessThan(dec(cfg.SpreadRatioMin)) {
		return notMet
	}

	target := now.Add(-time.Duration(cfg.SpikeLookbackSecs) * time.Second)

	var (
		found   bool
		best    model.HistorySample
		bestGap time.Duration
	)
	for _, sample := range s.History {
		gap := sample.Time.Sub(target)
		if gap < 0 {
			gap = -gap
		}
		if !found || gap < bestGap {
			found, best, bestGap = true, sample, gap
		}
	}
	if !found || bestGap > spikeLookbackEpsilon {
		return notMet
	}
	if best.Last.IsZero() {
		return notMet
	}

	spike := s.LastPrice.Div(best.Last)
	if spike.LessThan(dec(cfg.SpikeRatioMin)) {
		return notMet
	}
	return model.StrategyResult{Met: true, Ratio: r}
}

// Strategy3 is the Spread + Baseline Stability predicate.
func Strategy3(s marketstate.SymbolState, cfg config.Strategy3Config, now time.Time) model.StrategyResult {
	r, ok := spreadRatio(s, cfg.MinPrice)
	if !ok {
		return notMet
	}
	if r.LessThan(dec(cfg.SpreadRatioMin)) {
		return notMet
	}

	windowStart := now.Add(-time.Duration(cfg.BaselineWindowSecs) * time.Second)
	var (
		sumLast, sumMark decimal.Decimal
		maxMark, minMark decimal.Decimal
		count            int
	)
	for _, sample := range s.History {
		if sample.Time.Before(windowStart) || sample.Time.After(now) {
			continue
		}
		sumLast = sumLast.Add(sample.Last)
		sumMark = sumMark.Add(sample.Mark)
		if count == 0 || sample.Mark.GreaterThan(maxMark) {
			maxMark = sample.Mark
		}
		if count == 0 || sample.Mark.LessThan(minMark) {
			minMark = sample.Mark
		}
		count++
	}
	if count < 2 {
		return notMet
	}

	n := decimal.NewFromInt(int64(count))
	baseLast := sumLast.Div(n)
	meanMark := sumMark.Div(n)
	if baseLast.IsZero() || meanMark.IsZero() {
		return notMet
	}
	markVar := maxMark.Sub(minMark).Div(meanMark)

	if s.LastPrice.Div(baseLast).LessThan(dec(cfg.PumpVsBaselineMin)) {
		return notMet
	}
	if markVar.GreaterThan(dec(cfg.MarkStabilityMax)) {
		return notMet
	}
	return model.StrategyResult{Met: true, Ratio: r}
}

// Strategy4 is the Spread + Thick Orderbook predicate.
func Strategy4(s marketstate.SymbolState, strat config.StrategyConfig, ob config.OrderbookConfig) model.StrategyResult {
	r, ok := spreadRatio(s, strat.MinPrice)
	if !ok {
		return notMet
	}
	if r.LessThan(dec(strat.SpreadRatioMin)) {
		return notMet
	}
	if s.Depth == nil {
		return notMet
	}

	spreadPct, ok := s.Depth.SpreadPct()
	if !ok {
		return notMet // B3: empty bid or ask side.
	}
	if spreadPct.GreaterThan(dec(ob.MaxSpreadPct)) {
		return notMet
	}

	thick, ok := s.Depth.ThickDepth(dec(ob.DepthBandPct))
	if !ok {
		return notMet
	}
	if thick.LessThan(dec(ob.MinThickDepthUSDT)) {
		return notMet
	}

	return model.StrategyResult{Met: true, Ratio: r}
}
