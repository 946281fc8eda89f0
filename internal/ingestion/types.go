package ingestion

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mvoss-labs/pumpsentinel/internal/model"
)

// Channel identifies which of the three feeds a Message came from.
type Channel string

const (
	ChannelTicker Channel = "ticker"
	ChannelMark   Channel = "fair_price"
	ChannelDepth  Channel = "depth"
)

// TickerPayload carries the most recent trade print.
type TickerPayload struct {
	Last decimal.Decimal
}

// MarkPayload carries the venue's mark and fair/index prices. On venues
// that do not distinguish the two, Fair aliases Mark (spec §3).
type MarkPayload struct {
	Mark decimal.Decimal
	Fair decimal.Decimal
}

// DepthPayload carries a full L2 snapshot, pre-truncation.
type DepthPayload struct {
	Bids []model.PriceLevel
	Asks []model.PriceLevel
}

// Message is a decoded transport message handed to the Dispatcher. Exactly
// one of Ticker, Mark, or Depth is populated, matching Channel.
type Message struct {
	Channel Channel
	Symbol  model.Symbol
	Ts      time.Time

	Ticker *TickerPayload
	Mark   *MarkPayload
	Depth  *DepthPayload
}

// Tick is the logical "symbol updated" signal the Dispatcher emits to the
// Detection Engine after every scalar update (spec §4.2).
type Tick struct {
	Symbol model.Symbol
	At     time.Time
}

// Stats holds Dispatcher-level counters for diagnostics.
type Stats struct {
	MessagesReceived int64
	TicksEmitted     int64
	TicksCoalesced   int64
	DroppedUnknown   int64
	DecodeErrors     int64
}
