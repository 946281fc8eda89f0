package sink

import (
	"testing"

	"github.com/mvoss-labs/pumpsentinel/internal/model"
)

// Emit/Stats don't touch the database, so they're testable without a
// live Postgres instance; Start/Stop/flush require one and are exercised
// in integration testing instead.

func TestPostgresSinkEmitRoutesByStrategy(t *testing.T) {
	s := NewPostgresSink(nil, []model.StrategyID{model.Strategy1, model.Strategy2}, nil)

	s.Emit(model.EpisodeRecord{Strategy: model.Strategy1})
	s.Emit(model.EpisodeRecord{Strategy: model.Strategy2})
	s.Emit(model.EpisodeRecord{Strategy: model.Strategy3}) // unconfigured, dropped silently

	stats := s.Stats()
	if stats[model.Strategy1].Emitted != 1 {
		t.Errorf("strategy1 Emitted = %d, want 1", stats[model.Strategy1].Emitted)
	}
	if stats[model.Strategy2].Emitted != 1 {
		t.Errorf("strategy2 Emitted = %d, want 1", stats[model.Strategy2].Emitted)
	}
	if _, ok := stats[model.Strategy3]; ok {
		t.Error("Stats should not contain an unconfigured strategy")
	}
}

func TestPostgresSinkDropsOldestOnOverflow(t *testing.T) {
	s := NewPostgresSink(nil, []model.StrategyID{model.Strategy1}, nil)
	q := s.queues[model.Strategy1]
	s.queues[model.Strategy1] = newRecordQueue(1)
	_ = q

	s.Emit(model.EpisodeRecord{Strategy: model.Strategy1, Symbol: "A"})
	s.Emit(model.EpisodeRecord{Strategy: model.Strategy1, Symbol: "B"})

	stats := s.Stats()
	if stats[model.Strategy1].Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats[model.Strategy1].Dropped)
	}
}
