package transport

import (
	"errors"
	"time"
)

var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrTimeout         = errors.New("operation timeout")
	ErrAlreadyClosed   = errors.New("already closed")
)

// TimestampedMessage wraps a raw WebSocket frame with the local receive
// timestamp, captured the instant ReadMessage returns so transport-layer
// latency never leaks into the timestamp detection reasons about.
type TimestampedMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// ClientConfig configures a single WebSocket connection.
type ClientConfig struct {
	URL          string
	AuthToken    string // optional bearer token; spec §1 does not require authenticated endpoints
	PingTimeout  time.Duration
	WriteTimeout time.Duration
	BufferSize   int
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   4096,
	}
}

// ManagerConfig configures the Manager's subscription set and
// reconnection behavior (spec §6: "retry with exponential backoff
// (base 1s, cap 60s, jitter) is the transport's responsibility").
type ManagerConfig struct {
	WSURL             string
	AuthToken         string
	Symbols           []string // empty => subscribe the wildcard channel
	ReconnectBaseWait time.Duration
	ReconnectMaxWait  time.Duration
	MessageBufferSize int
}

// DefaultManagerConfig returns sensible defaults matching spec §6's
// stated backoff bounds.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ReconnectBaseWait: time.Second,
		ReconnectMaxWait:  60 * time.Second,
		MessageBufferSize: 10000,
	}
}

// subscribeCommand is the outbound command sent once per channel after
// (re)connecting.
type subscribeCommand struct {
	ID     int64           `json:"id"`
	Cmd    string          `json:"cmd"`
	Params subscribeParams `json:"params"`
}

type subscribeParams struct {
	Channel string   `json:"channel"`
	Symbols []string `json:"symbols,omitempty"` // omitted => wildcard, all symbols
}

// wireMessage is the default adapter's decoded-message envelope (spec §6:
// "the core requires the transport to deliver decoded messages tagged
// with channel and symbol"). A real venue integration would replace this
// decoder, not the Manager/Client plumbing around it.
type wireMessage struct {
	Type    string          `json:"type"` // "subscribed" | "data"
	Channel string          `json:"channel"`
	Symbol  string          `json:"symbol"`
	TsMilli int64           `json:"ts"`
	Last    string          `json:"last,omitempty"`
	Mark    string          `json:"mark,omitempty"`
	Fair    string          `json:"fair,omitempty"`
	Bids    [][2]string     `json:"bids,omitempty"`
	Asks    [][2]string     `json:"asks,omitempty"`
}
