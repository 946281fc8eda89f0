package sink

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mvoss-labs/pumpsentinel/internal/model"
)

// FileSink appends one line per finalized episode to
// <log_dir>/<strategy>_episodes.log, matching spec §6's episode log
// format. It is grounded on the teacher's per-table Writer shape
// (consume loop + graceful drain on Stop) with the batch/flush-ticker
// machinery replaced by a plain append-only line writer, since episode
// volume is low and there is no conflict semantics to batch around.
type FileSink struct {
	logDir string
	logger *slog.Logger

	mu    sync.Mutex
	files map[model.StrategyID]*strategyFile

	wg sync.WaitGroup
}

type strategyFile struct {
	queue  *recordQueue
	file   *os.File
	writer *bufio.Writer
}

// NewFileSink creates a FileSink that will open (creating if absent)
// <logDir>/<id>_episodes.log for each id in strategies once Start is
// called.
func NewFileSink(logDir string, strategies []model.StrategyID, logger *slog.Logger) *FileSink {
	if logger == nil {
		logger = slog.Default()
	}
	files := make(map[model.StrategyID]*strategyFile, len(strategies))
	for _, id := range strategies {
		files[id] = &strategyFile{queue: newRecordQueue(DefaultQueueCapacity)}
	}
	return &FileSink{logDir: logDir, logger: logger, files: files}
}

// Start creates the log directory and opens one append-only file per
// strategy, then launches one consumer goroutine per strategy.
func (s *FileSink) Start(ctx context.Context) error {
	if err := os.MkdirAll(s.logDir, 0o755); err != nil {
		return fmt.Errorf("sink: create log dir %s: %w", s.logDir, err)
	}

	for id, sf := range s.files {
		path := filepath.Join(s.logDir, string(id)+"_episodes.log")
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("sink: open %s: %w", path, err)
		}
		sf.file = f
		sf.writer = bufio.NewWriter(f)

		s.wg.Add(1)
		go s.consumeLoop(id, sf)
	}

	s.logger.Info("file sink started", "log_dir", s.logDir, "strategies", len(s.files))
	return nil
}

func (s *FileSink) consumeLoop(id model.StrategyID, sf *strategyFile) {
	defer s.wg.Done()
	for {
		rec, ok := sf.queue.Receive()
		if !ok {
			sf.writer.Flush()
			return
		}
		line := formatEpisodeLine(rec)
		if _, err := sf.writer.WriteString(line + "\n"); err != nil {
			s.logger.Error("episode log write failed", "strategy", id, "error", err)
			continue
		}
		sf.writer.Flush()
	}
}

// Emit enqueues rec for its strategy's log file, dropping the oldest
// queued record with a warning on overflow (spec §4.5, §7 Sink error).
func (s *FileSink) Emit(rec model.EpisodeRecord) {
	sf, ok := s.files[rec.Strategy]
	if !ok {
		return
	}
	if sf.queue.Push(rec) {
		s.logger.Warn("file sink dropped oldest episode record", "strategy", rec.Strategy)
	}
}

// Stop closes every strategy's queue, waits for in-flight lines to
// drain, and closes the files.
func (s *FileSink) Stop(ctx context.Context) error {
	for _, sf := range s.files {
		sf.queue.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("file sink stop timed out before queues drained")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sf := range s.files {
		if sf.file == nil {
			continue
		}
		if err := sf.file.Close(); err != nil {
			s.logger.Error("episode log close failed", "strategy", id, "error", err)
		}
	}
	return nil
}

// Stats reports enqueued/dropped counts per strategy.
func (s *FileSink) Stats() map[model.StrategyID]Stats {
	out := make(map[model.StrategyID]Stats, len(s.files))
	for id, sf := range s.files {
		out[id] = sf.queue.stats()
	}
	return out
}

func formatEpisodeLine(rec model.EpisodeRecord) string {
	return fmt.Sprintf("%s | %s | START=%s | END=%s | DURATION=%ds | PEAK_RATIO=%s | PEAK_LAST=%s | PEAK_MARK=%s",
		rec.EmittedAt.UTC().Format(time.RFC3339),
		rec.Symbol,
		rec.StartAt.UTC().Format("15:04:05"),
		rec.EndAt.UTC().Format("15:04:05"),
		int64(rec.Duration().Seconds()),
		formatRatio(rec.PeakRatio),
		formatPrice(rec.PeakLast),
		formatPrice(rec.PeakMark),
	)
}

// formatRatio renders a ratio at two decimal places (spec §6).
func formatRatio(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// formatPrice renders a price at up to eight decimals with trailing
// zeros trimmed (spec §6).
func formatPrice(d decimal.Decimal) string {
	s := d.StringFixed(8)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}
