package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ariafx/session-validator/internal/api"
	"github.com/ariafx/session-validator/internal/app"
	"github.com/ariafx/session-validator/internal/config"
	"github.com/ariafx/session-validator/internal/gate"
	"github.com/ariafx/session-validator/internal/history"
	"github.com/ariafx/session-validator/internal/logger"
	"github.com/ariafx/session-validator/internal/notify"
	"github.com/ariafx/session-validator/internal/scoring"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	paramsPath := flag.String("params", "", "override parameter file path")
	profile := flag.String("profile", "", "policy profile preset: strict|standard|lenient")
	flag.Parse()

	cfg, err := config.LoadFile(*cfgPath)
	if err != nil {
		log.Printf("warning: config file: %v, using defaults", err)
		cfg = config.Default()
	}
	cfg.ApplyEnv()
	if *paramsPath != "" {
		cfg.ParamsFile = *paramsPath
	}
	if err := config.ApplyPolicyProfile(&cfg, *profile); err != nil {
		log.Fatalf("invalid -profile: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	calc, err := scoring.NewCalculator(cfg.Scoring.Policy())
	if err != nil {
		log.Fatalf("scoring policy: %v", err)
	}
	gateMgr := gate.New(gate.Config{MaxConsecutiveRejections: cfg.Gate.MaxConsecutiveRejections})

	var recorder app.Recorder
	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.History.Path)
		if err != nil {
			log.Fatalf("history store: %v", err)
		}
		recorder = store
	}

	var notifier app.Notifier
	if cfg.Telegram.Enabled {
		notifier = notify.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	}

	zlog.Info("session-validator starting",
		zap.String("params_file", cfg.ParamsFile),
		zap.Duration("eval_interval", cfg.EvalInterval),
		zap.String("profile", *profile),
		zap.Float64("warn_threshold", cfg.Scoring.WarnThreshold),
		zap.Float64("critical_threshold", cfg.Scoring.CriticalThreshold),
		zap.Bool("history", cfg.History.Enabled),
		zap.Bool("telegram", cfg.Telegram.Enabled),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	a := app.New(cfg, calc, gateMgr, recorder, notifier, zlog)

	var apiServer *api.Server
	if cfg.API.Enabled {
		var hist api.HistoryProvider
		if store != nil {
			hist = store
		}
		apiServer = api.NewServer(cfg.API.Addr, a, hist, gateMgr)
		if err := apiServer.Start(ctx); err != nil {
			zlog.Warn("api server failed to start", zap.Error(err))
		}
	}

	go func() {
		<-sigCh
		zlog.Info("shutdown signal received")
		cancel()
	}()

	if err := a.Run(ctx); err != nil && err != context.Canceled {
		zlog.Error("run error", zap.Error(err))
	}

	if apiServer != nil {
		_ = apiServer.Shutdown(context.Background())
	}
	if store != nil {
		_ = store.Close()
	}
}
