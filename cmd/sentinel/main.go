package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/mvoss-labs/pumpsentinel/internal/config"
	"github.com/mvoss-labs/pumpsentinel/internal/database"
	"github.com/mvoss-labs/pumpsentinel/internal/detection"
	"github.com/mvoss-labs/pumpsentinel/internal/discovery"
	"github.com/mvoss-labs/pumpsentinel/internal/episode"
	"github.com/mvoss-labs/pumpsentinel/internal/ingestion"
	"github.com/mvoss-labs/pumpsentinel/internal/marketstate"
	"github.com/mvoss-labs/pumpsentinel/internal/sink"
	"github.com/mvoss-labs/pumpsentinel/internal/transport"
	"github.com/mvoss-labs/pumpsentinel/internal/version"
)

// detectionWorkers is the upper bound on the number of symbol-hash shards
// the tick queue is partitioned into, and on the number of detection
// goroutines running concurrently — one per shard; main lowers it to
// runtime.NumCPU() when fewer CPUs are available (spec §5: "detection task (may be
// sharded by symbol-hash for parallelism)"). Every tick for a given
// symbol always lands on the same shard, so the one worker assigned to
// that shard observes the symbol's ticks strictly in receive order;
// ticks for different symbols are processed in parallel across workers.
const detectionWorkers = 4

func main() {
	configPath := flag.String("config", "configs/sentinel.toml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting pumpsentinel",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	discoveryClient := discovery.NewClient(cfg.API.RestURL, "",
		discovery.WithLogger(logger),
		discovery.WithTimeout(cfg.API.Timeout.Duration),
		discovery.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	logger.Info("discovering active contracts", "rest_url", cfg.API.RestURL)
	symbols, err := discoveryClient.ActiveSymbols(ctx, cfg.General.Symbols)
	if err != nil {
		logger.Error("symbol discovery failed", "error", err)
		os.Exit(1)
	}
	logger.Info("symbols registered", "count", len(symbols))

	store := marketstate.New(time.Duration(cfg.WindowSeconds())*time.Second, logger)
	for _, sym := range symbols {
		store.Ensure(sym)
	}

	manager := transport.NewManager(transport.ManagerConfig{
		WSURL:             cfg.API.WSURL,
		Symbols:           symbols,
		ReconnectBaseWait: time.Second,
		ReconnectMaxWait:  60 * time.Second,
		MessageBufferSize: 10000,
	}, logger)

	workers := detectionWorkers
	if n := runtime.NumCPU(); n < workers {
		workers = n
	}

	dispatcher := ingestion.New(store, cfg.Orderbook.MaxLevels, manager.Messages(), logger, workers)

	engine := detection.New(cfg)
	enabled := engine.Enabled()
	logger.Info("detection engine configured", "enabled_strategies", enabled)

	tracker := episode.New(time.Duration(cfg.Cooldowns.PerSymbolSeconds) * time.Second)

	sinks := []sink.Sink{
		sink.NewFileSink(cfg.General.LogDir, enabled, logger),
	}
	csvRecorder := sink.NewCSVRecorder(
		cfg.General.CSVRecordingDir,
		cfg.General.RecordPreBufferCandles,
		time.Duration(cfg.General.PostAnomalyRecordingS)*time.Second,
		store, logger,
	)
	tracker.SetListener(csvRecorder)
	sinks = append(sinks, csvRecorder)

	if cfg.Database.Enabled() {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect episode archive database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		sinks = append(sinks, sink.NewPostgresSink(pool, enabled, logger))
	}
	episodeSink := sink.Tee(sinks...)

	if err := episodeSink.Start(ctx); err != nil {
		logger.Error("failed to start episode sinks", "error", err)
		os.Exit(1)
	}
	if err := manager.Start(ctx); err != nil {
		logger.Error("failed to start transport manager", "error", err)
		os.Exit(1)
	}
	if err := dispatcher.Start(ctx); err != nil {
		logger.Error("failed to start ingestion dispatcher", "error", err)
		os.Exit(1)
	}

	detectionDone := make(chan struct{})
	for _, shard := range dispatcher.Shards() {
		go runDetectionWorker(shard, store, engine, tracker, episodeSink, detectionDone)
	}

	logger.Info("pumpsentinel running", "symbols", len(symbols), "detection_workers", workers)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := dispatcher.Stop(shutdownCtx); err != nil {
		logger.Warn("dispatcher stop error", "error", err)
	}
	if err := manager.Stop(shutdownCtx); err != nil {
		logger.Warn("transport manager stop error", "error", err)
	}

	for i := 0; i < workers; i++ {
		<-detectionDone
	}

	for _, rec := range tracker.Shutdown(time.Now()) {
		episodeSink.Emit(rec)
	}

	if err := episodeSink.Stop(shutdownCtx); err != nil {
		logger.Warn("episode sink stop error", "error", err)
	}

	logger.Info("pumpsentinel stopped")
}

// runDetectionWorker pulls coalesced ticks from its exclusively-owned
// shard until the shard closes, evaluating every enabled strategy
// against the symbol's current snapshot and forwarding any finalized
// episodes to sinks (spec §4.2-§4.5 end to end). Because the caller
// assigns one worker per shard and the dispatcher hashes each symbol to
// a single shard, a given symbol's ticks are always handled here in the
// order they were received, never interleaved with another goroutine's
// in-flight call for the same symbol.
func runDetectionWorker(ticks *ingestion.TickQueue, store *marketstate.Store, engine *detection.Engine, tracker *episode.Tracker, sinks sink.Sink, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()

	for {
		tick, ok := ticks.Receive()
		if !ok {
			return
		}

		state, ok := store.Snapshot(tick.Symbol)
		if !ok {
			continue
		}

		results := engine.Evaluate(state, tick.At)

		records := tracker.Process(tick.Symbol, tick.At, state.LastPrice, state.MarkPrice, results)
		for _, rec := range records {
			sinks.Emit(rec)
		}
	}
}
