package sink

import (
	"sync"

	"github.com/mvoss-labs/pumpsentinel/internal/model"
)

// recordQueue is a bounded, drop-oldest FIFO of EpisodeRecords with a
// blocking Receive, grounded on the coalescing-queue shape used by
// internal/ingestion's TickQueue but without key-coalescing: every
// record here is distinct and must be delivered, so overflow drops the
// oldest entry rather than merging (spec §4.5's stated backpressure
// policy).
type recordQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []model.EpisodeRecord
	cap     int
	closed  bool
	emitted uint64
	dropped uint64
}

func newRecordQueue(capacity int) *recordQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	q := &recordQueue{cap: capacity}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues rec, dropping the oldest queued record if the queue is
// already at capacity. Returns true if a record was dropped.
func (q *recordQueue) Push(rec model.EpisodeRecord) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	dropped := false
	if len(q.items) >= q.cap {
		q.items = q.items[1:]
		q.dropped++
		dropped = true
	}
	q.items = append(q.items, rec)
	q.emitted++
	q.cond.Signal()
	return dropped
}

// Receive blocks until a record is available or the queue is closed and
// drained, matching ok=false to "nothing left, stop consuming".
func (q *recordQueue) Receive() (model.EpisodeRecord, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return model.EpisodeRecord{}, false
	}
	rec := q.items[0]
	q.items = q.items[1:]
	return rec, true
}

// Close marks the queue closed; queued records already present still
// drain via Receive, but Push becomes a no-op.
func (q *recordQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *recordQueue) stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{Emitted: q.emitted, Dropped: q.dropped}
}
