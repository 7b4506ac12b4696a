package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hray3182/Upkeep/internal/ai"
	"github.com/hray3182/Upkeep/internal/bot"
	"github.com/hray3182/Upkeep/internal/bot/handlers"
	"github.com/hray3182/Upkeep/internal/config"
	"github.com/hray3182/Upkeep/internal/database"
	"github.com/hray3182/Upkeep/internal/logger"
	"github.com/hray3182/Upkeep/internal/metrics"
	"github.com/hray3182/Upkeep/internal/notify"
	"github.com/hray3182/Upkeep/internal/reminder"
	"github.com/hray3182/Upkeep/internal/repository"
	"github.com/hray3182/Upkeep/internal/scheduler"
	"github.com/hray3182/Upkeep/internal/service"
	"github.com/hray3182/Upkeep/internal/syncbus"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	if err := cfg.Validate(); err != nil {
		zapLogger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, cfg.DatabaseURI, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		zapLogger.Fatal("Failed to run migrations", zap.Error(err))
	}
	zapLogger.Info("Database migrations completed")

	m := metrics.New()
	store := repository.NewStore(db)

	// Push notifications are optional.
	var senders []notify.Sender
	var fcm *notify.FCMSender
	if cfg.FCMCredentialsFile != "" {
		fcm, err = notify.NewFCMSender(ctx, cfg.FCMCredentialsFile, cfg.FCMTopic)
		if err != nil {
			zapLogger.Fatal("Failed to initialize FCM", zap.Error(err))
		}
		zapLogger.Info("FCM push enabled", zap.String("topic", cfg.FCMTopic))
	}

	outbox := notify.NewOutbox(store.Reminders, store.Settings, clockz.RealClock, fcm != nil)
	engine := reminder.New(store, outbox, store.Settings, zapLogger, reminder.Options{
		FallbackRule:  cfg.FallbackRule,
		DistanceDelay: cfg.DistanceReminderDelay,
		Metrics:       m,
	})
	reevaluator := scheduler.New(engine, zapLogger, scheduler.Options{
		Debounce: cfg.ReevaluateDebounce,
		Interval: cfg.ReevaluateInterval,
		Metrics:  m,
	})

	// Sync bus is optional; without it only this device's writes and the
	// database change feed trigger reevaluation.
	var bus *syncbus.Bus
	if cfg.NATSURL != "" {
		bus, err = syncbus.Connect(cfg.NATSURL, cfg.NATSSubject, cfg.DeviceName, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to connect sync bus", zap.Error(err))
		}
		defer bus.Close()

		if err := bus.Subscribe(func(e *syncbus.Event) {
			reevaluator.Notify("sync")
		}); err != nil {
			zapLogger.Fatal("Failed to subscribe to sync bus", zap.Error(err))
		}
	}

	svc := service.New(store.Vehicles, store.Maintenance, store.Settings, engine, bus, clockz.RealClock, zapLogger)

	// Telegram is optional when push delivery is configured.
	var b *bot.Bot
	if cfg.TelegramToken != "" {
		var parser handlers.Parser
		if cfg.AIAPIKey != "" {
			parser = ai.New(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel)
			zapLogger.Info("AI client initialized", zap.String("model", cfg.AIModel))
		} else {
			zapLogger.Info("AI client not configured, free-text logging disabled")
		}

		b, err = bot.New(cfg.TelegramToken, svc, parser, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to create bot", zap.Error(err))
		}
		senders = append(senders, notify.NewTelegramSender(b.API(), store.Settings))
	}
	if fcm != nil {
		senders = append(senders, fcm)
	}
	if len(senders) == 0 {
		zapLogger.Warn("No delivery channel configured, reminders will stay queued")
	}

	dispatcher := notify.NewDispatcher(store.Reminders, senders, zapLogger, m, clockz.RealClock, cfg.DispatchInterval)

	go reevaluator.Start(ctx)
	go dispatcher.Start(ctx)
	go func() {
		if err := db.Listen(ctx, func(table string) {
			reevaluator.Notify("db:" + table)
		}); err != nil {
			zapLogger.Error("Change feed stopped", zap.Error(err))
		}
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			zapLogger.Info("Metrics server listening", zap.String("addr", cfg.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zapLogger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		zapLogger.Info("Shutting down...")
		cancel()
	}()

	if b != nil {
		zapLogger.Info("Starting bot...")
		if err := b.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("Bot error", zap.Error(err))
		}
	} else {
		<-ctx.Done()
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			zapLogger.Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}
}
