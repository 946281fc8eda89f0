// Package database provides connection pool management for the optional
// Postgres episode archive.
//
// PumpSentinel's core detection state (symbol state, episode state
// machines) is never persisted — spec §1 excludes that explicitly. This
// package only backs internal/sink.PostgresSink, which durably archives
// finalized EpisodeRecords when config.DatabaseConfig.Enabled() is true.
package database
