// Package ingestion implements PumpSentinel's Ingestion Dispatcher: it
// classifies decoded transport messages by channel, applies them to the
// Market-State Store, and emits a coalesced "tick" per symbol for the
// Detection Engine to consume (spec §4.2).
package ingestion

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/mvoss-labs/pumpsentinel/internal/marketstate"
)

// Dispatcher consumes a stream of decoded Messages and drives the
// Market-State Store.
type Dispatcher struct {
	store     *marketstate.Store
	maxLevels int
	logger    *slog.Logger

	input  <-chan Message
	shards []*TickQueue

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	stats Stats
}

// New creates a Dispatcher reading from input and writing into store.
// maxLevels truncates depth snapshots per spec §4.1. numShards partitions
// the outbound tick queue by symbol hash (spec §5: "detection task (may
// be sharded by symbol-hash for parallelism)") so a symbol's ticks always
// land on the same shard and are drained by the same detection worker in
// receive order; a value below 1 is treated as 1.
func New(store *marketstate.Store, maxLevels int, input <-chan Message, logger *slog.Logger, numShards int) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if numShards < 1 {
		numShards = 1
	}
	shards := make([]*TickQueue, numShards)
	for i := range shards {
		shards[i] = NewTickQueue()
	}
	return &Dispatcher{
		store:     store,
		maxLevels: maxLevels,
		logger:    logger,
		input:     input,
		shards:    shards,
	}
}

// Shards returns the outbound tick queues the Detection Engine reads
// from, one per detection worker. A caller must assign exactly one
// worker per shard and never share a shard across workers, or the
// per-symbol ordering guarantee below is lost.
func (d *Dispatcher) Shards() []*TickQueue {
	return d.shards
}

// Ticks returns the sole shard of a single-shard Dispatcher. It panics
// if the Dispatcher was constructed with more than one shard; callers
// that run multiple detection workers must use Shards instead.
func (d *Dispatcher) Ticks() *TickQueue {
	if len(d.shards) != 1 {
		panic("ingestion: Ticks called on a multi-shard Dispatcher, use Shards")
	}
	return d.shards[0]
}

// shardFor deterministically maps symbol to one of d.shards using an
// FNV-1a hash, so every tick for a given symbol is always routed to the
// same shard regardless of which goroutine calls emitTick.
func (d *Dispatcher) shardFor(symbol string) *TickQueue {
	if len(d.shards) == 1 {
		return d.shards[0]
	}
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return d.shards[h.Sum32()%uint32(len(d.shards))]
}

// Start begins consuming messages from input.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.ctx, d.cancel = context.WithCancel(ctx)

	d.wg.Add(1)
	go d.dispatchLoop()

	d.logger.Info("ingestion dispatcher started")
	return nil
}

// Stop cancels the consumer goroutine, waits for it to exit (or for ctx
// to expire), then closes every tick queue shard. Messages still buffered
// in input when the goroutine exits are not processed.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.logger.Info("stopping ingestion dispatcher")

	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("ingestion dispatcher stopped")
	case <-ctx.Done():
		d.logger.Warn("ingestion dispatcher stop timed out")
	}

	for _, q := range d.shards {
		q.Close()
	}
	return nil
}

// Stats returns current dispatcher-level counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	for _, q := range d.shards {
		s.TicksCoalesced += q.Stats().Coalesced
	}
	return s
}

func (d *Dispatcher) dispatchLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case msg, ok := <-d.input:
			if !ok {
				return
			}
			d.dispatch(msg)
		}
	}
}

// dispatch routes a single message per spec §4.2: unknown symbols are
// dropped silently; scalar updates emit a tick; depth-only updates do
// not (Strategy 4 reads depth opportunistically when a later scalar tick
// fires).
func (d *Dispatcher) dispatch(msg Message) {
	d.mu.Lock()
	d.stats.MessagesReceived++
	d.mu.Unlock()

	if !d.store.Registered(msg.Symbol) {
		d.mu.Lock()
		d.stats.DroppedUnknown++
		d.mu.Unlock()
		return
	}

	ts := msg.Ts
	if ts.IsZero() {
		ts = time.Now()
	}

	switch msg.Channel {
	case ChannelTicker:
		if msg.Ticker == nil {
			d.recordDecodeError()
			return
		}
		d.store.ApplyTicker(msg.Symbol, msg.Ticker.Last, ts)
		d.emitTick(msg.Symbol, ts)

	case ChannelMark:
		if msg.Mark == nil {
			d.recordDecodeError()
			return
		}
		d.store.ApplyMark(msg.Symbol, msg.Mark.Mark, ts)
		d.store.ApplyFair(msg.Symbol, msg.Mark.Fair, ts)
		d.emitTick(msg.Symbol, ts)

	case ChannelDepth:
		if msg.Depth == nil {
			d.recordDecodeError()
			return
		}
		d.store.ApplyDepth(msg.Symbol, msg.Depth.Bids, msg.Depth.Asks, d.maxLevels)
		// No tick: depth is read opportunistically on the next scalar tick.

	default:
		d.recordDecodeError()
	}
}

func (d *Dispatcher) emitTick(symbol string, ts time.Time) {
	d.shardFor(symbol).Send(symbol, ts)
	d.mu.Lock()
	d.stats.TicksEmitted++
	d.mu.Unlock()
}

func (d *Dispatcher) recordDecodeError() {
	d.mu.Lock()
	d.stats.DecodeErrors++
	d.mu.Unlock()
	d.logger.Warn("decode error: message missing expected payload")
}
