package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/uhyunpark/matchbook/params"
	"github.com/uhyunpark/matchbook/pkg/api"
	"github.com/uhyunpark/matchbook/pkg/app/engine"
	"github.com/uhyunpark/matchbook/pkg/storage"
	"github.com/uhyunpark/matchbook/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	// Logs go to stderr (and optionally a file) so the console owns stdout
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Log.File != "" {
		logger, err = util.NewLoggerWithFile(cfg.Log.File, cfg.Log.Level)
	} else {
		logger, err = util.NewLogger(cfg.Log.Level)
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "level", cfg.Log.Level, "log_file", cfg.Log.File)

	// ---- Trade tape ----
	tape, err := storage.NewTradeStore(cfg.TradeTapeLimit)
	if err != nil {
		sugar.Fatalw("trade_tape_init_failed", "err", err)
	}
	defer tape.Close()

	opts := []engine.Option{
		engine.WithTradeStore(tape),
		engine.WithLogger(sugar.Named("engine")),
	}

	// ---- Command audit log (optional) ----
	if cfg.Log.CommandLog != "" {
		cmdLog, err := storage.NewFileCommandLog(cfg.Log.CommandLog)
		if err != nil {
			sugar.Fatalw("command_log_init_failed", "err", err)
		}
		defer cmdLog.Close()
		opts = append(opts, engine.WithCommandLog(cmdLog))
		sugar.Infow("command_log_enabled", "path", cfg.Log.CommandLog)
	}

	// ---- Engine ----
	eng, err := engine.New(cfg.Instruments, opts...)
	if err != nil {
		sugar.Fatalw("engine_init_failed", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- API Server (optional) ----
	// Enable with: ENABLE_API=true API_ADDR=:8080
	if cfg.API.Enabled {
		apiServer := api.NewServer(eng, sugar.Named("api"), cfg.API.AllowedOrigins)

		// Hook engine to API server: broadcast trades when they execute
		eng.OnTrade = apiServer.BroadcastTrade

		go func() {
			if err := apiServer.Start(ctx, cfg.API.Addr); err != nil {
				sugar.Fatalw("api_server_failed", "err", err)
			}
		}()
		go apiServer.RunBookFeed(ctx, cfg.Feeder.Interval)
	}

	// ---- Order Feeder (optional) ----
	// Enable with: ENABLE_TXGEN=true TXGEN_INTERVAL_MS=100 TXGEN_BATCH=10
	if cfg.Feeder.Enabled {
		feedCfg := engine.DefaultFeederConfig()
		feedCfg.Interval = cfg.Feeder.Interval
		feedCfg.BatchSize = cfg.Feeder.BatchSize

		cancelFeeder := engine.StartFeeder(ctx, eng, feedCfg, sugar.Named("feeder"))
		defer cancelFeeder()
	} else {
		sugar.Debug("feeder_disabled")
	}

	sugar.Infow("node_starting",
		"instruments", eng.Instruments(),
		"api", cfg.API.Enabled,
		"feeder", cfg.Feeder.Enabled)

	if err := runConsole(ctx, eng, os.Stdin, os.Stdout); err != nil {
		sugar.Errorw("console_failed", "err", err)
	}
	sugar.Info("node_stopped")
}
