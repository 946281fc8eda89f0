package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mvoss-labs/pumpsentinel/internal/ingestion"
	"github.com/mvoss-labs/pumpsentinel/internal/model"
)

// Manager is the default WebSocket transport adapter (spec §6): it
// subscribes one connection to the ticker, fair-price, and depth
// channels for the registered symbol set, decodes frames into
// ingestion.Message, and reconnects with jittered exponential backoff
// on disconnect. It is grounded on the teacher's Connection Manager
// (internal/connection/manager.go's reconnect loop) collapsed from a
// 150-connection pool down to the single connection this domain needs.
type Manager struct {
	cfg     ManagerConfig
	logger  *slog.Logger
	clients func(ClientConfig, *slog.Logger) Client // swappable for tests

	out chan ingestion.Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	client    Client
	connected bool

	statsMu        sync.Mutex
	reconnects     int64
	decodeErrors   int64
	droppedOutFull int64
}

// ManagerStats reports connection and decode health.
type ManagerStats struct {
	Connected      bool
	Reconnects     int64
	DecodeErrors   int64
	DroppedOutFull int64
}

// NewManager creates a Manager that will subscribe cfg.Symbols (or the
// wildcard channel if empty) once connected.
func NewManager(cfg ManagerConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MessageBufferSize <= 0 {
		cfg.MessageBufferSize = DefaultManagerConfig().MessageBufferSize
	}
	return &Manager{
		cfg:     cfg,
		logger:  logger,
		clients: func(c ClientConfig, l *slog.Logger) Client { return NewClient(c, l) },
		out:     make(chan ingestion.Message, cfg.MessageBufferSize),
	}
}

// Messages returns the channel the Ingestion Dispatcher reads from.
func (m *Manager) Messages() <-chan ingestion.Message { return m.out }

// Start connects and begins the read/reconnect loop.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.runLoop()

	m.logger.Info("transport manager started", "ws_url", m.cfg.WSURL, "symbols", len(m.cfg.Symbols))
	return nil
}

// Stop disconnects and stops the manager's goroutines.
func (m *Manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping transport manager")

	if m.cancel != nil {
		m.cancel()
	}

	m.mu.Lock()
	if m.client != nil {
		m.client.Close()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("transport manager stopped")
	case <-ctx.Done():
		m.logger.Warn("transport manager stop timed out")
	}
	return nil
}

// Stats returns a point-in-time view of connection health.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	connected := m.connected
	m.mu.Unlock()

	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return ManagerStats{
		Connected:      connected,
		Reconnects:     m.reconnects,
		DecodeErrors:   m.decodeErrors,
		DroppedOutFull: m.droppedOutFull,
	}
}

// runLoop connects once, then on every disconnect waits out a jittered
// backoff and reconnects, until the context is canceled.
func (m *Manager) runLoop() {
	defer m.wg.Done()

	wait := m.cfg.ReconnectBaseWait
	if wait <= 0 {
		wait = DefaultManagerConfig().ReconnectBaseWait
	}
	maxWait := m.cfg.ReconnectMaxWait
	if maxWait <= 0 {
		maxWait = DefaultManagerConfig().ReconnectMaxWait
	}

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		c := m.clients(ClientConfig{
			URL:          m.cfg.WSURL,
			AuthToken:    m.cfg.AuthToken,
			PingTimeout:  60 * time.Second,
			WriteTimeout: 5 * time.Second,
			BufferSize:   4096,
		}, m.logger)

		if err := c.Connect(m.ctx); err != nil {
			m.logger.Warn("transport connect failed", "error", err)
			if !m.sleepBackoff(&wait, maxWait) {
				return
			}
			continue
		}

		m.mu.Lock()
		m.client = c
		m.connected = true
		m.mu.Unlock()

		if err := m.subscribeAll(c); err != nil {
			m.logger.Error("subscribe failed", "error", err)
		}

		wait = m.cfg.ReconnectBaseWait
		if wait <= 0 {
			wait = DefaultManagerConfig().ReconnectBaseWait
		}

		m.readUntilDisconnect(c)

		m.mu.Lock()
		m.connected = false
		m.mu.Unlock()

		m.statsMu.Lock()
		m.reconnects++
		m.statsMu.Unlock()

		select {
		case <-m.ctx.Done():
			return
		default:
		}
		if !m.sleepBackoff(&wait, maxWait) {
			return
		}
	}
}

// sleepBackoff waits a jittered duration derived from *wait, then
// doubles *wait toward maxWait (spec §6: "base 1s, cap 60s, jitter").
// Returns false if the context was canceled while waiting.
func (m *Manager) sleepBackoff(wait *time.Duration, maxWait time.Duration) bool {
	sleep := jitter(*wait)
	select {
	case <-time.After(sleep):
	case <-m.ctx.Done():
		return false
	}

	*wait *= 2
	if *wait > maxWait {
		*wait = maxWait
	}
	return true
}

// jitter applies equal jitter: a uniformly random duration in [d/2, d].
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	half := int64(d) / 2
	return time.Duration(half + rand.Int63n(half+1))
}

func (m *Manager) subscribeAll(c Client) error {
	for _, channel := range []string{"ticker", "fair_price", "depth"} {
		cmd := subscribeCommand{
			ID:     time.Now().UnixNano(),
			Cmd:    "subscribe",
			Params: subscribeParams{Channel: channel, Symbols: m.cfg.Symbols},
		}
		data, err := json.Marshal(cmd)
		if err != nil {
			return fmt.Errorf("transport: marshal subscribe for %s: %w", channel, err)
		}
		if err := c.Send(data); err != nil {
			return fmt.Errorf("transport: send subscribe for %s: %w", channel, err)
		}
	}
	return nil
}

func (m *Manager) readUntilDisconnect(c Client) {
	for {
		select {
		case <-m.ctx.Done():
			return
		case err, ok := <-c.Errors():
			if ok {
				m.logger.Warn("transport error, reconnecting", "error", err)
			}
			return
		case raw, ok := <-c.Messages():
			if !ok {
				return
			}
			m.decodeAndForward(raw)
		}
	}
}

func (m *Manager) decodeAndForward(raw TimestampedMessage) {
	var wm wireMessage
	if err := json.Unmarshal(raw.Data, &wm); err != nil {
		m.countDecodeError()
		return
	}
	if wm.Type == "subscribed" {
		m.logger.Debug("subscription confirmed", "channel", wm.Channel)
		return
	}

	msg, err := decodeMessage(wm, raw.ReceivedAt)
	if err != nil {
		m.countDecodeError()
		return
	}

	select {
	case m.out <- msg:
	default:
		m.statsMu.Lock()
		m.droppedOutFull++
		m.statsMu.Unlock()
		m.logger.Warn("transport output buffer full, dropping message")
	}
}

func (m *Manager) countDecodeError() {
	m.statsMu.Lock()
	m.decodeErrors++
	m.statsMu.Unlock()
}

// decodeMessage converts a wireMessage into the ingestion.Message the
// Dispatcher expects, tagging it with channel and symbol per spec §6.
func decodeMessage(wm wireMessage, receivedAt time.Time) (ingestion.Message, error) {
	ts := receivedAt
	if wm.TsMilli > 0 {
		ts = time.UnixMilli(wm.TsMilli)
	}

	msg := ingestion.Message{Symbol: wm.Symbol, Ts: ts}

	switch ingestion.Channel(wm.Channel) {
	case ingestion.ChannelTicker:
		last, err := decimal.NewFromString(wm.Last)
		if err != nil {
			return ingestion.Message{}, fmt.Errorf("transport: decode ticker.last: %w", err)
		}
		msg.Channel = ingestion.ChannelTicker
		msg.Ticker = &ingestion.TickerPayload{Last: last}

	case ingestion.ChannelMark:
		mark, err := decimal.NewFromString(wm.Mark)
		if err != nil {
			return ingestion.Message{}, fmt.Errorf("transport: decode mark: %w", err)
		}
		fair := mark
		if wm.Fair != "" {
			fair, err = decimal.NewFromString(wm.Fair)
			if err != nil {
				return ingestion.Message{}, fmt.Errorf("transport: decode fair: %w", err)
			}
		}
		msg.Channel = ingestion.ChannelMark
		msg.Mark = &ingestion.MarkPayload{Mark: mark, Fair: fair}

	case ingestion.ChannelDepth:
		bids, err := decodeLevels(wm.Bids)
		if err != nil {
			return ingestion.Message{}, fmt.Errorf("transport: decode bids: %w", err)
		}
		asks, err := decodeLevels(wm.Asks)
		if err != nil {
			return ingestion.Message{}, fmt.Errorf("transport: decode asks: %w", err)
		}
		msg.Channel = ingestion.ChannelDepth
		msg.Depth = &ingestion.DepthPayload{Bids: bids, Asks: asks}

	default:
		return ingestion.Message{}, fmt.Errorf("transport: unknown channel %q", wm.Channel)
	}

	return msg, nil
}

func decodeLevels(raw [][2]string) ([]model.PriceLevel, error) {
	levels := make([]model.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		price, err := decimal.NewFromString(lvl[0])
		if err != nil {
			return nil, err
		}
		size, err := decimal.NewFromString(lvl[1])
		if err != nil {
			return nil, err
		}
		levels = append(levels, model.PriceLevel{Price: price, Size: size})
	}
	return levels, nil
}
