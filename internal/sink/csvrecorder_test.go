package sink

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mvoss-labs/pumpsentinel/internal/marketstate"
	"github.com/mvoss-labs/pumpsentinel/internal/model"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func countLines(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no csv files were created")
	}
	f, err := os.Open(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("open %s: %v", entries[0].Name(), err)
	}
	defer f.Close()
	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		n++
	}
	return n
}

func TestCSVRecorderSeedsFromHistory(t *testing.T) {
	dir := t.TempDir()
	store := marketstate.New(120*time.Second, nil)
	store.Ensure("BTC_USDT")

	base := time.Unix(1000, 0)
	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		store.ApplyTicker("BTC_USDT", d("100"), ts)
		store.ApplyMark("BTC_USDT", d("99"), ts)
	}

	rec := NewCSVRecorder(dir, 3, 10*time.Millisecond, store, nil)
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	rec.EpisodeStarted("BTC_USDT", model.Strategy1, base.Add(5*time.Second))

	// header + up to 3 pre-buffer rows.
	lines := countLines(t, dir)
	if lines < 2 {
		t.Errorf("got %d lines, want at least a header plus seed rows", lines)
	}

	rec.Stop(context.Background())
}

func TestCSVRecorderAppendsActiveTicksAndClosesAfterDelay(t *testing.T) {
	dir := t.TempDir()
	rec := NewCSVRecorder(dir, 0, 20*time.Millisecond, nil, nil)
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	now := time.Unix(0, 0)
	rec.EpisodeStarted("BTC_USDT", model.Strategy1, now)
	rec.EpisodeTick("BTC_USDT", model.Strategy1, d("105"), d("100"), now.Add(time.Second))
	rec.EpisodeTick("BTC_USDT", model.Strategy1, d("110"), d("100"), now.Add(2*time.Second))

	before := countLines(t, dir)
	if before != 3 { // header + 2 ticks
		t.Fatalf("got %d lines before finalize, want 3", before)
	}

	rec.Emit(model.EpisodeRecord{Symbol: "BTC_USDT", Strategy: model.Strategy1})

	rec.mu.Lock()
	_, stillOpen := rec.open[recorderKey{"BTC_USDT", model.Strategy1}]
	rec.mu.Unlock()
	if !stillOpen {
		t.Error("file closed immediately on Emit, want it to stay open through the post-anomaly delay")
	}

	time.Sleep(60 * time.Millisecond)

	rec.mu.Lock()
	_, stillOpen = rec.open[recorderKey{"BTC_USDT", model.Strategy1}]
	rec.mu.Unlock()
	if stillOpen {
		t.Error("file still open after post-anomaly delay elapsed")
	}

	rec.Stop(context.Background())
}

func TestCSVRecorderStopClosesWithoutWaiting(t *testing.T) {
	dir := t.TempDir()
	rec := NewCSVRecorder(dir, 0, time.Hour, nil, nil)
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	rec.EpisodeStarted("ETH_USDT", model.Strategy2, time.Unix(0, 0))
	rec.Emit(model.EpisodeRecord{Symbol: "ETH_USDT", Strategy: model.Strategy2})

	if err := rec.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.open) != 0 {
		t.Errorf("open files after Stop = %d, want 0", len(rec.open))
	}
}

func TestCSVRecorderStatsIsAlwaysEmpty(t *testing.T) {
	rec := NewCSVRecorder(t.TempDir(), 0, time.Second, nil, nil)
	if stats := rec.Stats(); len(stats) != 0 {
		t.Errorf("Stats() = %v, want empty map", stats)
	}
}
