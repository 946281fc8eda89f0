// Package transport implements the WebSocket feed (spec §6): a Client
// that moves raw frames over one connection, and a Manager that
// subscribes it to the ticker, fair-price, and depth channels, decodes
// frames into ingestion.Message, and reconnects with jittered
// exponential backoff on disconnect.
package transport
