package ingestion

import (
	"sync"
	"time"

	"github.com/mvoss-labs/pumpsentinel/internal/model"
)

// TickQueue is the bounded, coalescing outbound tick queue described in
// spec §4.2: "on overflow the newest tick per symbol supersedes older
// pending ticks for the same symbol ... never dropping a symbol
// entirely." A symbol already pending is never duplicated — a second
// Send for it just advances its timestamp in place — so the queue never
// needs to drop an entry to stay bounded; its size is capped by the
// number of distinct symbols with an outstanding tick, which can never
// exceed the registered symbol count.
//
// Coalescing only guarantees at most one *pending* tick per symbol; it
// says nothing about two already-popped ticks for the same symbol being
// processed concurrently by different receivers. A Dispatcher gets
// per-symbol in-order processing by hash-sharding symbols across
// multiple TickQueues and assigning exactly one receiving worker per
// shard (see Dispatcher.Shards), not by relying on a single shared
// queue.
type TickQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	order  []model.Symbol
	pos    map[model.Symbol]int // symbol -> index into order, for O(1) coalesce lookup
	at     map[model.Symbol]time.Time
	closed bool

	totalReceived int64
	totalSent     int64
	coalesced     int64
}

// NewTickQueue creates an empty tick queue.
func NewTickQueue() *TickQueue {
	q := &TickQueue{
		pos: make(map[model.Symbol]int),
		at:  make(map[model.Symbol]time.Time),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Send enqueues a tick for symbol at ts. If a tick for symbol is already
// pending, ts supersedes it in place (coalescing) rather than growing the
// queue. Returns false if the queue is closed.
func (q *TickQueue) Send(symbol model.Symbol, ts time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.totalReceived++

	if _, pending := q.pos[symbol]; pending {
		q.at[symbol] = ts
		q.coalesced++
		return true
	}

	q.pos[symbol] = len(q.order)
	q.order = append(q.order, symbol)
	q.at[symbol] = ts
	q.cond.Signal()
	return true
}

// Receive blocks until a tick is available or the queue is closed.
func (q *TickQueue) Receive() (Tick, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.order) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.order) == 0 {
		return Tick{}, false
	}

	return q.popFrontLocked(), true
}

// TryReceive returns immediately: a tick and true if one is pending, or
// zero value and false otherwise.
func (q *TickQueue) TryReceive() (Tick, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.order) == 0 {
		return Tick{}, false
	}
	return q.popFrontLocked(), true
}

func (q *TickQueue) popFrontLocked() Tick {
	symbol := q.order[0]
	q.order = q.order[1:]
	for sym, idx := range q.pos {
		q.pos[sym] = idx - 1
	}
	delete(q.pos, symbol)
	ts := q.at[symbol]
	delete(q.at, symbol)
	q.totalSent++
	return Tick{Symbol: symbol, At: ts}
}

// Close closes the queue. Pending Send calls return false; blocked
// Receive calls wake and return false once drained.
func (q *TickQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of distinct symbols with a pending tick.
func (q *TickQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// QueueStats reports queue-level counters for diagnostics.
type QueueStats struct {
	TotalReceived int64
	TotalSent     int64
	Coalesced     int64
}

// Stats returns current queue statistics.
func (q *TickQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		TotalReceived: q.totalReceived,
		TotalSent:     q.totalSent,
		Coalesced:     q.coalesced,
	}
}
