package marketstate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mvoss-labs/pumpsentinel/internal/model"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestEnsureIsIdempotent(t *testing.T) {
	s := New(60*time.Second, nil)
	s.Ensure("BTC_USDT")
	s.ApplyTicker("BTC_USDT", d("100"), time.Unix(0, 0))
	s.Ensure("BTC_USDT")

	snap, ok := s.Snapshot("BTC_USDT")
	if !ok {
		t.Fatal("Snapshot: ok = false, want true")
	}
	if !snap.LastPrice.Equal(d("100")) {
		t.Errorf("re-Ensure reset state: LastPrice = %v, want 100", snap.LastPrice)
	}
}

func TestUnregisteredSymbolDropped(t *testing.T) {
	s := New(60*time.Second, nil)
	if ok := s.ApplyTicker("UNKNOWN", d("1"), time.Now()); ok {
		t.Error("ApplyTicker on unregistered symbol: ok = true, want false")
	}
	if _, ok := s.Snapshot("UNKNOWN"); ok {
		t.Error("Snapshot on unregistered symbol: ok = true, want false")
	}
}

func TestApplyTickerAndMarkBuildsHistory(t *testing.T) {
	s := New(60*time.Second, nil)
	s.Ensure("BTC_USDT")

	base := time.Unix(1000, 0)
	s.ApplyMark("BTC_USDT", d("100"), base)
	s.ApplyTicker("BTC_USDT", d("100"), base)

	snap, _ := s.Snapshot("BTC_USDT")
	if len(snap.History) != 1 {
		t.Fatalf("History length = %d, want 1", len(snap.History))
	}
	if !snap.History[0].Last.Equal(d("100")) || !snap.History[0].Mark.Equal(d("100")) {
		t.Errorf("History[0] = %+v, want last=mark=100", snap.History[0])
	}

	s.ApplyTicker("BTC_USDT", d("160"), base.Add(time.Second))
	snap, _ = s.Snapshot("BTC_USDT")
	if len(snap.History) != 2 {
		t.Fatalf("History length = %d, want 2", len(snap.History))
	}
	if !snap.LastPrice.Equal(d("160")) {
		t.Errorf("LastPrice = %v, want 160", snap.LastPrice)
	}
}

func TestHistoryOnlyAppendsWhenBothScalarsKnown(t *testing.T) {
	s := New(60*time.Second, nil)
	s.Ensure("BTC_USDT")

	s.ApplyTicker("BTC_USDT", d("100"), time.Unix(0, 0))
	snap, _ := s.Snapshot("BTC_USDT")
	if len(snap.History) != 0 {
		t.Errorf("History length = %d, want 0 (mark still undefined)", len(snap.History))
	}
	if !snap.HasLast || snap.HasMark {
		t.Errorf("HasLast=%v HasMark=%v, want true/false", snap.HasLast, snap.HasMark)
	}
}

func TestHistoryEvictsBeyondWindow(t *testing.T) {
	s := New(5*time.Second, nil)
	s.Ensure("BTC_USDT")

	base := time.Unix(1000, 0)
	for i := 0; i < 10; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		s.ApplyMark("BTC_USDT", d("100"), ts)
		s.ApplyTicker("BTC_USDT", d("100"), ts)
	}

	snap, _ := s.Snapshot("BTC_USDT")
	if len(snap.History) == 0 {
		t.Fatal("History unexpectedly empty")
	}
	oldest := snap.History[0].Time
	newest := snap.History[len(snap.History)-1].Time
	if newest.Sub(oldest) > 5*time.Second {
		t.Errorf("retained window %v exceeds max window 5s", newest.Sub(oldest))
	}
	for i := 1; i < len(snap.History); i++ {
		if !snap.History[i].Time.After(snap.History[i-1].Time) {
			t.Errorf("history not strictly ascending at index %d", i)
		}
	}
}

func TestDuplicateTimestampLastWriteWins(t *testing.T) {
	s := New(60*time.Second, nil)
	s.Ensure("BTC_USDT")

	ts := time.Unix(500, 0)
	s.ApplyMark("BTC_USDT", d("100"), ts)
	s.ApplyTicker("BTC_USDT", d("100"), ts)
	s.ApplyMark("BTC_USDT", d("105"), ts)
	s.ApplyTicker("BTC_USDT", d("150"), ts)

	snap, _ := s.Snapshot("BTC_USDT")
	if len(snap.History) != 1 {
		t.Fatalf("History length = %d, want 1 (same ts overwrites)", len(snap.History))
	}
	if !snap.History[0].Last.Equal(d("150")) || !snap.History[0].Mark.Equal(d("105")) {
		t.Errorf("History[0] = %+v, want last=150 mark=105", snap.History[0])
	}
}

func TestApplyDepthTruncatesToMaxLevels(t *testing.T) {
	s := New(60*time.Second, nil)
	s.Ensure("BTC_USDT")

	bids := []model.PriceLevel{{Price: d("99"), Size: d("1")}, {Price: d("98"), Size: d("1")}, {Price: d("97"), Size: d("1")}}
	asks := []model.PriceLevel{{Price: d("101"), Size: d("1")}, {Price: d("102"), Size: d("1")}}

	s.ApplyDepth("BTC_USDT", bids, asks, 2)

	snap, _ := s.Snapshot("BTC_USDT")
	if len(snap.Depth.Bids) != 2 {
		t.Errorf("Depth.Bids length = %d, want 2", len(snap.Depth.Bids))
	}
	mid, ok := snap.Depth.Mid()
	if !ok || !mid.Equal(d("100")) {
		t.Errorf("Mid() = %v, %v, want 100, true", mid, ok)
	}
}

func TestApplyDepthUnknownSymbol(t *testing.T) {
	s := New(60*time.Second, nil)
	if ok := s.ApplyDepth("UNKNOWN", nil, nil, 10); ok {
		t.Error("ApplyDepth on unregistered symbol: ok = true, want false")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New(60*time.Second, nil)
	s.Ensure("BTC_USDT")
	s.ApplyDepth("BTC_USDT", []model.PriceLevel{{Price: d("1"), Size: d("1")}}, nil, 10)

	snap, _ := s.Snapshot("BTC_USDT")
	snap.Depth.Bids[0].Price = d("999")

	snap2, _ := s.Snapshot("BTC_USDT")
	if snap2.Depth.Bids[0].Price.Equal(d("999")) {
		t.Error("mutating a returned snapshot affected the store")
	}
}
