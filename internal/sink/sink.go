// Package sink implements the Sink Interface (spec §4.5): consumers of
// finalized EpisodeRecords that must never block detection. The file and
// Postgres backends own one bounded queue per strategy (the CSV recorder
// has no queue); on overflow such a queue drops the oldest
// queued record and counts the drop, matching the teacher's writer
// metrics convention (internal/writer's Inserts/Conflicts/Errors
// counters) adapted to a push/drop-oldest queue instead of a batch
// buffer.
package sink

import (
	"context"

	"github.com/mvoss-labs/pumpsentinel/internal/model"
)

// DefaultQueueCapacity is the minimum per-strategy buffer size the sink
// interface guarantees (spec §4.5: "suggested >= 1024 records per
// strategy").
const DefaultQueueCapacity = 1024

// Stats is one backend's emitted/dropped counters, broken out per
// strategy so a persistently failing strategy's backpressure is visible
// without masking the others.
type Stats struct {
	Emitted uint64
	Dropped uint64
}

// Sink receives finalized episodes and is responsible for its own
// backpressure: Emit must never block the caller beyond enqueueing.
type Sink interface {
	Emit(rec model.EpisodeRecord)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Stats() map[model.StrategyID]Stats
}

// Tee fans every Emit out to all of sinks and aggregates their
// lifecycles, so cmd/sentinel can wire an arbitrary set of backends
// (file log, CSV recorder, Postgres archive) behind one Sink value.
func Tee(sinks ...Sink) Sink {
	return &tee{sinks: sinks}
}

type tee struct {
	sinks []Sink
}

func (t *tee) Emit(rec model.EpisodeRecord) {
	for _, s := range t.sinks {
		s.Emit(rec)
	}
}

func (t *tee) Start(ctx context.Context) error {
	for _, s := range t.sinks {
		if err := s.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (t *tee) Stop(ctx context.Context) error {
	var firstErr error
	for _, s := range t.sinks {
		if err := s.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *tee) Stats() map[model.StrategyID]Stats {
	merged := make(map[model.StrategyID]Stats)
	for _, s := range t.sinks {
		for id, st := range s.Stats() {
			acc := merged[id]
			acc.Emitted += st.Emitted
			acc.Dropped += st.Dropped
			merged[id] = acc
		}
	}
	return merged
}
