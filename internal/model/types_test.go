package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestOrderbookSnapshotBestLevels(t *testing.T) {
	t.Run("empty book", func(t *testing.T) {
		var s OrderbookSnapshot
		if _, ok := s.BestBid(); ok {
			t.Error("BestBid on empty book: ok = true, want false")
		}
		if _, ok := s.BestAsk(); ok {
			t.Error("BestAsk on empty book: ok = true, want false")
		}
		if _, ok := s.Mid(); ok {
			t.Error("Mid on empty book: ok = true, want false")
		}
	})

	t.Run("populated book", func(t *testing.T) {
		s := OrderbookSnapshot{
			Bids: []PriceLevel{{Price: d("100"), Size: d("1")}},
			Asks: []PriceLevel{{Price: d("102"), Size: d("1")}},
		}

		bid, ok := s.BestBid()
		if !ok || !bid.Price.Equal(d("100")) {
			t.Errorf("BestBid = %v, ok=%v, want 100, true", bid, ok)
		}

		ask, ok := s.BestAsk()
		if !ok || !ask.Price.Equal(d("102")) {
			t.Errorf("BestAsk = %v, ok=%v, want 102, true", ask, ok)
		}

		mid, ok := s.Mid()
		if !ok || !mid.Equal(d("101")) {
			t.Errorf("Mid = %v, ok=%v, want 101, true", mid, ok)
		}
	})
}

func TestOrderbookSnapshotSpreadPct(t *testing.T) {
	tests := []struct {
		name string
		book OrderbookSnapshot
		want decimal.Decimal
		ok   bool
	}{
		{
			name: "one-sided book undefined",
			book: OrderbookSnapshot{Bids: []PriceLevel{{Price: d("100"), Size: d("1")}}},
			ok:   false,
		},
		{
			name: "two percent spread",
			book: OrderbookSnapshot{
				Bids: []PriceLevel{{Price: d("99"), Size: d("1")}},
				Asks: []PriceLevel{{Price: d("101"), Size: d("1")}},
			},
			want: d("0.02"),
			ok:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.book.SpreadPct()
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("SpreadPct = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOrderbookSnapshotThickDepth(t *testing.T) {
	book := OrderbookSnapshot{
		Bids: []PriceLevel{
			{Price: d("99"), Size: d("10")},  // within 2% band of mid 100
			{Price: d("50"), Size: d("100")}, // far outside band
		},
		Asks: []PriceLevel{
			{Price: d("101"), Size: d("5")}, // within band
		},
	}

	total, ok := book.ThickDepth(d("0.02"))
	if !ok {
		t.Fatal("ThickDepth: ok = false, want true")
	}

	want := d("99").Mul(d("10")).Add(d("101").Mul(d("5")))
	if !total.Equal(want) {
		t.Errorf("ThickDepth = %s, want %s", total, want)
	}
}

func TestEpisodeRecordDuration(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)

	r := EpisodeRecord{
		StartAt: start,
		EndAt:   end,
	}

	if got := r.Duration(); got != 90*time.Second {
		t.Errorf("Duration = %v, want %v", got, 90*time.Second)
	}
}
