package ingestion

import (
	"testing"
	"time"
)

func TestTickQueueCoalescesSameSymbol(t *testing.T) {
	q := NewTickQueue()

	t0 := time.Unix(0, 0)
	q.Send("BTC_USDT", t0)
	q.Send("BTC_USDT", t0.Add(time.Second))

	if got := q.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1 (coalesced)", got)
	}

	tick, ok := q.TryReceive()
	if !ok {
		t.Fatal("TryReceive: ok = false, want true")
	}
	if !tick.At.Equal(t0.Add(time.Second)) {
		t.Errorf("tick.At = %v, want the superseding timestamp", tick.At)
	}

	stats := q.Stats()
	if stats.Coalesced != 1 {
		t.Errorf("Stats().Coalesced = %d, want 1", stats.Coalesced)
	}
}

func TestTickQueueNeverDropsADistinctSymbol(t *testing.T) {
	q := NewTickQueue()
	now := time.Now()

	for _, sym := range []string{"A", "B", "C"} {
		q.Send(sym, now)
	}
	if got := q.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		tick, ok := q.TryReceive()
		if !ok {
			t.Fatalf("TryReceive() #%d: ok = false, want true", i)
		}
		seen[tick.Symbol] = true
	}
	for _, sym := range []string{"A", "B", "C"} {
		if !seen[sym] {
			t.Errorf("symbol %s dropped", sym)
		}
	}
}

func TestTickQueueFIFOOrder(t *testing.T) {
	q := NewTickQueue()
	now := time.Now()
	q.Send("A", now)
	q.Send("B", now)

	first, _ := q.TryReceive()
	second, _ := q.TryReceive()
	if first.Symbol != "A" || second.Symbol != "B" {
		t.Errorf("order = %s, %s; want A, B", first.Symbol, second.Symbol)
	}
}

func TestTickQueueReceiveBlocksThenWakes(t *testing.T) {
	q := NewTickQueue()
	done := make(chan Tick, 1)

	go func() {
		tick, ok := q.Receive()
		if ok {
			done <- tick
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Send("A", time.Now())

	select {
	case tick := <-done:
		if tick.Symbol != "A" {
			t.Errorf("tick.Symbol = %s, want A", tick.Symbol)
		}
	case <-time.After(time.Second):
		t.Fatal("Receive did not wake within 1s")
	}
}

func TestTickQueueCloseWakesReceivers(t *testing.T) {
	q := NewTickQueue()
	done := make(chan bool, 1)

	go func() {
		_, ok := q.Receive()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("Receive after Close: ok = true, want false")
		}
	case <-time.After(time.Second):
		t.Fatal("Receive did not wake on Close")
	}
}

func TestTickQueueSendAfterCloseFails(t *testing.T) {
	q := NewTickQueue()
	q.Close()
	if ok := q.Send("A", time.Now()); ok {
		t.Error("Send after Close: ok = true, want false")
	}
}
