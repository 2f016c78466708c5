package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"jarqyn_support_bot/internal/broadcast"
	"jarqyn_support_bot/internal/catalog"
	"jarqyn_support_bot/internal/config"
	"jarqyn_support_bot/internal/health"
	"jarqyn_support_bot/internal/logging"
	"jarqyn_support_bot/internal/menu"
	"jarqyn_support_bot/internal/session"
	"jarqyn_support_bot/internal/store"
	"jarqyn_support_bot/internal/telegram"
	"jarqyn_support_bot/internal/texts"
	"jarqyn_support_bot/internal/watch"
)

const (
	storeProbeTimeout       = 10 * time.Second
	healthShutdownTimeout   = 5 * time.Second
	telegramShutdownTimeout = 10 * time.Second
)

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logger.WithFields(logging.Fields{
		"event":     "startup",
		"cache_ttl": cfg.CacheTTL.String(),
	}).Info("configuration loaded")

	docStore := store.New(cfg, logger)

	probeCtx, cancelProbe := context.WithTimeout(context.Background(), storeProbeTimeout)
	if err := docStore.Ping(probeCtx); err != nil {
		// The bot still starts: the store may come up later and every read
		// path reports its own failure to the chat.
		logger.WithError(err).Warn("document store not reachable at startup")
	} else {
		logger.WithField("event", "store_connect").Info("document store reachable")
	}
	cancelProbe()

	repo := catalog.NewRepository(docStore, logger)
	table := texts.Default()

	var sessions session.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		sessions = session.NewRedisStore(rdb)
		logger.WithFields(logging.Fields{
			"event": "session_store",
			"kind":  "redis",
		}).Info("using redis session store")
	} else {
		sessions = session.NewMemoryStore()
		logger.WithFields(logging.Fields{
			"event": "session_store",
			"kind":  "memory",
		}).Info("using in-memory session store")
	}

	tgClient, err := telegram.NewClient(cfg, logger,
		telegram.WithAudience(repo),
		telegram.WithSessionStore(sessions),
		telegram.WithTexts(table),
		telegram.WithEngine(func(admins menu.AdminNotifier) *menu.Engine {
			return menu.NewEngine(repo, table, admins, logger)
		}),
		telegram.WithDispatcher(func(sender broadcast.Sender) *broadcast.Dispatcher {
			return broadcast.NewDispatcher(repo, sender, logger)
		}),
	)
	if err != nil {
		logger.WithError(err).Error("telegram client setup error")
		fmt.Fprintf(os.Stderr, "telegram client setup error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	watchJob := watch.NewJob(repo, tgClient.Sender(), table, cfg.WatchInterval, logger)
	go watchJob.Start(watchCtx)

	healthServer := health.NewServer(cfg.HTTPPort, docStore, logger)
	go func() {
		if err := healthServer.ListenAndServe(); err != nil {
			logger.WithError(err).Error("health server error")
		}
	}()

	telegramCtx, cancelTelegram := context.WithCancel(context.Background())
	tgDone := make(chan struct{})

	go func() {
		tgClient.Start(telegramCtx)
		close(tgDone)
	}()

	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping telegram polling")
	case <-tgDone:
		logger.WithField("event", "telegram_stopped_early").Warn("telegram client stopped before shutdown signal")
	}

	cancelWatch()
	cancelTelegram()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), telegramShutdownTimeout)
	select {
	case <-tgDone:
	case <-waitCtx.Done():
		logger.WithField("event", "telegram_shutdown_timeout").Warn("timed out waiting for telegram client to stop")
	}
	cancelWait()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), healthShutdownTimeout)
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("health server shutdown error")
	}
	cancelShutdown()

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}
