package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/wochagonnadu/taskbot/internal/auth"
	"github.com/wochagonnadu/taskbot/internal/bot"
	"github.com/wochagonnadu/taskbot/internal/config"
	"github.com/wochagonnadu/taskbot/internal/events"
	"github.com/wochagonnadu/taskbot/internal/httpapi"
	"github.com/wochagonnadu/taskbot/internal/lifecycle"
	"github.com/wochagonnadu/taskbot/internal/notify"
	"github.com/wochagonnadu/taskbot/internal/observability"
	"github.com/wochagonnadu/taskbot/internal/report"
	"github.com/wochagonnadu/taskbot/internal/store"
	"github.com/wochagonnadu/taskbot/internal/transport"
	"github.com/wochagonnadu/taskbot/internal/wizard"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer st.Close()
	if cfg.DatabaseURL == "" {
		log.Printf("store: in-memory (DATABASE_URL not set)")
	} else {
		log.Printf("store: postgres")
	}

	bus := events.NewBus()
	gate := auth.NewGate(st, cfg.MasterKey, cfg.InviteCodeTTL)
	taskFlow := lifecycle.NewService(st, bus)
	taskFlow.SetMetrics(metrics)
	reports := report.NewGenerator(st)

	adminSender := transport.NewClient(cfg.ChatAPIBaseURL, cfg.AdminBotToken)
	userSender := transport.NewClient(cfg.ChatAPIBaseURL, cfg.UserBotToken)

	notifier := notify.NewNotifier(st, userSender, bus, metrics)
	wizardMgr := wizard.NewManager(st, notifier, bus, cfg.Timezone)

	adminBot := bot.NewAdmin(st, gate, wizardMgr, reports, adminSender, metrics)
	userBot := bot.NewUser(st, gate, taskFlow, userSender, metrics)

	scheduler, err := notify.NewScheduler(notifier, cfg.WorkStart, cfg.WorkEnd, cfg.Timezone)
	if err != nil {
		log.Fatalf("scheduler init failed: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()
	log.Printf("digests scheduled at %s and %s (%s)", cfg.WorkStart, cfg.WorkEnd, cfg.Timezone)

	api := httpapi.New(cfg, adminBot, userBot, reports, bus, st, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
