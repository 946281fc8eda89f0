package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mvoss-labs/pumpsentinel/internal/marketstate"
	"github.com/mvoss-labs/pumpsentinel/internal/model"
)

// CSVRecorder is the supplemental candle recorder ported from the Rust
// reference's csv_exporter.rs (see DESIGN.md): one CSV file per
// (symbol, strategy) episode, pre-seeded with a history buffer so the
// file shows the runup into the pump, appended to on every Active tick,
// and closed postAnomalyDelay after the episode finalizes so the
// cooldown is visible too.
//
// It implements both episode.Listener (EpisodeStarted/EpisodeTick drive
// the open file) and Sink (Emit on finalize schedules the delayed
// close), so cmd/sentinel wires it to the Tracker both ways.
type CSVRecorder struct {
	dir              string
	preBufferCandles int
	postAnomalyDelay time.Duration
	store            *marketstate.Store
	logger           *slog.Logger

	mu     sync.Mutex
	open   map[recorderKey]*csvRecording
	timers map[recorderKey]*time.Timer
}

type recorderKey struct {
	symbol   model.Symbol
	strategy model.StrategyID
}

type csvRecording struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVRecorder creates a recorder that writes under dir, seeding each
// new episode's file with up to preBufferCandles history samples from
// store, and keeping the file open for postAnomalyDelay after the
// episode ends.
func NewCSVRecorder(dir string, preBufferCandles int, postAnomalyDelay time.Duration, store *marketstate.Store, logger *slog.Logger) *CSVRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVRecorder{
		dir:              dir,
		preBufferCandles: preBufferCandles,
		postAnomalyDelay: postAnomalyDelay,
		store:            store,
		logger:           logger,
		open:             make(map[recorderKey]*csvRecording),
		timers:           make(map[recorderKey]*time.Timer),
	}
}

// Start creates the recording directory.
func (r *CSVRecorder) Start(ctx context.Context) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("sink: create csv dir %s: %w", r.dir, err)
	}
	r.logger.Info("csv recorder started", "dir", r.dir)
	return nil
}

// Stop closes every still-open file without waiting out its remaining
// post-anomaly delay, since the process is shutting down.
func (r *CSVRecorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, timer := range r.timers {
		timer.Stop()
	}
	for key, rec := range r.open {
		r.closeLocked(key, rec)
	}
	return nil
}

// Stats is always empty: the recorder has no per-strategy queue (it is
// driven synchronously by the Episode Tracker, not by Emit
// backpressure), but it must satisfy Sink for Tee.
func (r *CSVRecorder) Stats() map[model.StrategyID]Stats {
	return map[model.StrategyID]Stats{}
}

// EpisodeStarted opens a new CSV file for (symbol, strategy), pre-seeded
// with up to preBufferCandles samples from the symbol's current history.
func (r *CSVRecorder) EpisodeStarted(symbol model.Symbol, strategy model.StrategyID, at time.Time) {
	key := recorderKey{symbol, strategy}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.open[key]; ok {
		r.closeLocked(key, existing)
		if timer, ok := r.timers[key]; ok {
			timer.Stop()
			delete(r.timers, key)
		}
	}

	path := filepath.Join(r.dir, fmt.Sprintf("%s_%s_%d.csv", symbol, strategy, at.Unix()))
	f, err := os.Create(path)
	if err != nil {
		r.logger.Error("csv recorder create failed", "symbol", symbol, "strategy", strategy, "error", err)
		return
	}
	w := csv.NewWriter(f)
	w.Write([]string{"timestamp", "last_price", "mark_price"})

	if r.store != nil && r.preBufferCandles > 0 {
		snap, ok := r.store.Snapshot(symbol)
		if ok {
			history := snap.History
			if len(history) > r.preBufferCandles {
				history = history[len(history)-r.preBufferCandles:]
			}
			for _, sample := range history {
				writeCandleRow(w, sample.Time, sample.Last, sample.Mark)
			}
		}
	}
	w.Flush()

	r.open[key] = &csvRecording{file: f, writer: w}
}

// EpisodeTick appends one candle row while the episode is Active.
func (r *CSVRecorder) EpisodeTick(symbol model.Symbol, strategy model.StrategyID, last, mark decimal.Decimal, at time.Time) {
	key := recorderKey{symbol, strategy}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.open[key]
	if !ok {
		return
	}
	writeCandleRow(rec.writer, at, last, mark)
	rec.writer.Flush()
}

// Emit is called with the finalized EpisodeRecord when the Episode
// Tracker closes the episode; it schedules the file's close
// postAnomalyDelay from now rather than closing it immediately, so the
// cooldown window is visible in the recording.
func (r *CSVRecorder) Emit(episode model.EpisodeRecord) {
	key := recorderKey{episode.Symbol, episode.Strategy}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.open[key]; !ok {
		return
	}
	if timer, ok := r.timers[key]; ok {
		timer.Stop()
	}
	r.timers[key] = time.AfterFunc(r.postAnomalyDelay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if rec, ok := r.open[key]; ok {
			r.closeLocked(key, rec)
		}
		delete(r.timers, key)
	})
}

func (r *CSVRecorder) closeLocked(key recorderKey, rec *csvRecording) {
	rec.writer.Flush()
	if err := rec.file.Close(); err != nil {
		r.logger.Error("csv recorder close failed", "symbol", key.symbol, "strategy", key.strategy, "error", err)
	}
	delete(r.open, key)
}

func writeCandleRow(w *csv.Writer, at time.Time, last, mark decimal.Decimal) {
	w.Write([]string{
		at.UTC().Format(time.RFC3339Nano),
		formatPrice(last),
		formatPrice(mark),
	})
}
