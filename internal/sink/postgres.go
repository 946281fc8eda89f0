package sink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mvoss-labs/pumpsentinel/internal/model"
)

// PostgresBatchSize and PostgresFlushInterval mirror the teacher's
// writer defaults (internal/writer.DefaultWriterConfig), scaled down:
// episode volume is orders of magnitude lower than tick volume.
const (
	PostgresBatchSize     = 50
	PostgresFlushInterval = 2 * time.Second
)

// PostgresSink is the optional durable episode archive (spec §1's
// Non-goal excludes persisting market-state, not episodes). It batches
// inserts with ON CONFLICT DO NOTHING keyed on the episode's uuid,
// grounded on internal/writer's batchInsert-with-pgx.Batch pattern.
type PostgresSink struct {
	db     *pgxpool.Pool
	logger *slog.Logger

	mu          sync.Mutex
	batch       []model.EpisodeRecord
	queues      map[model.StrategyID]*recordQueue
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPostgresSink creates a sink that archives finalized episodes to db.
// strategies fixes the set of Stats keys tracked.
func NewPostgresSink(db *pgxpool.Pool, strategies []model.StrategyID, logger *slog.Logger) *PostgresSink {
	if logger == nil {
		logger = slog.Default()
	}
	queues := make(map[model.StrategyID]*recordQueue, len(strategies))
	for _, id := range strategies {
		queues[id] = newRecordQueue(DefaultQueueCapacity)
	}
	return &PostgresSink{db: db, logger: logger, queues: queues}
}

// Start ensures the archive table exists, then launches the consume and
// flush-ticker goroutines.
func (s *PostgresSink) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.ensureSchema(s.ctx); err != nil {
		return fmt.Errorf("sink: ensure episodes table: %w", err)
	}

	s.flushTicker = time.NewTicker(PostgresFlushInterval)

	s.wg.Add(1)
	go s.consumeLoop()
	s.wg.Add(1)
	go s.flushLoop()

	s.logger.Info("postgres episode sink started")
	return nil
}

// Stop drains every strategy queue, flushes the final batch, and closes
// the flush ticker. It does not close the pool — callers own that.
func (s *PostgresSink) Stop(ctx context.Context) error {
	s.logger.Info("stopping postgres episode sink")

	for _, q := range s.queues {
		q.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.flushTicker != nil {
		s.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("postgres episode sink stop timed out")
	}

	s.flush()
	return nil
}

// Emit enqueues rec on its strategy's queue, dropping the oldest on
// overflow.
func (s *PostgresSink) Emit(rec model.EpisodeRecord) {
	q, ok := s.queues[rec.Strategy]
	if !ok {
		return
	}
	if q.Push(rec) {
		s.logger.Warn("postgres sink dropped oldest episode record", "strategy", rec.Strategy)
	}
}

// Stats reports enqueued/dropped counts per strategy.
func (s *PostgresSink) Stats() map[model.StrategyID]Stats {
	out := make(map[model.StrategyID]Stats, len(s.queues))
	for id, q := range s.queues {
		out[id] = q.stats()
	}
	return out
}

func (s *PostgresSink) ensureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS episodes (
			id uuid PRIMARY KEY,
			symbol text NOT NULL,
			strategy text NOT NULL,
			start_at timestamptz NOT NULL,
			end_at timestamptz NOT NULL,
			peak_ratio numeric NOT NULL,
			peak_last numeric NOT NULL,
			peak_mark numeric NOT NULL,
			emitted_at timestamptz NOT NULL
		)
	`)
	return err
}

func (s *PostgresSink) consumeLoop() {
	defer s.wg.Done()

	var wg sync.WaitGroup
	for _, q := range s.queues {
		wg.Add(1)
		go func(q *recordQueue) {
			defer wg.Done()
			for {
				rec, ok := q.Receive()
				if !ok {
					return
				}
				s.addToBatch(rec)
			}
		}(q)
	}
	wg.Wait()
}

func (s *PostgresSink) addToBatch(rec model.EpisodeRecord) {
	s.mu.Lock()
	s.batch = append(s.batch, rec)
	shouldFlush := len(s.batch) >= PostgresBatchSize
	s.mu.Unlock()

	if shouldFlush {
		s.flush()
	}
}

func (s *PostgresSink) flushLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.flushTicker.C:
			s.flush()
		}
	}
}

func (s *PostgresSink) flush() {
	s.mu.Lock()
	if len(s.batch) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.batch
	s.batch = nil
	s.mu.Unlock()

	if err := s.batchInsert(batch); err != nil {
		s.logger.Error("episode archive batch insert failed", "error", err, "count", len(batch))
		return
	}
	s.logger.Debug("flushed episode archive", "count", len(batch))
}

func (s *PostgresSink) batchInsert(rows []model.EpisodeRecord) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO episodes (id, symbol, strategy, start_at, end_at, peak_ratio, peak_last, peak_mark, emitted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.Symbol, r.Strategy, r.StartAt, r.EndAt, r.PeakRatio, r.PeakLast, r.PeakMark, r.EmittedAt)
	}

	results := s.db.SendBatch(s.ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
