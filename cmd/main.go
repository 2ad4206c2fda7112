package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/exp/slog"

	"github.com/imhogram/start-ai-telegram/internal/admin"
	"github.com/imhogram/start-ai-telegram/internal/ai"
	"github.com/imhogram/start-ai-telegram/internal/config"
	"github.com/imhogram/start-ai-telegram/internal/dialog"
	"github.com/imhogram/start-ai-telegram/internal/knowledge"
	"github.com/imhogram/start-ai-telegram/internal/lead"
	"github.com/imhogram/start-ai-telegram/internal/lib/logger/handlers/slogpretty"
	"github.com/imhogram/start-ai-telegram/internal/lib/logger/sl"
	"github.com/imhogram/start-ai-telegram/internal/store"
	"github.com/imhogram/start-ai-telegram/internal/telegram"
	"github.com/imhogram/start-ai-telegram/internal/whatsapp"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

// run blocks until shutdown. Errors are logged before they are returned.
func run() error {
	cfg := config.MustLoad()
	log := setupLogger(cfg.ENV)
	log.Info("starting assistant", slog.String("env", cfg.ENV), slog.String("port", cfg.PORT))

	// --- Redis ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	rdb, err := store.Connect(ctx, cfg.RedisURL)
	cancel()
	if err != nil {
		log.Error("redis connect failed", sl.Err(err))
		return err
	}
	defer rdb.Close()

	// --- lead archive (optional) ---
	var archive lead.Repo
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		db, err := lead.OpenPostgres(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			log.Error("postgres connect failed", sl.Err(err))
			return err
		}
		defer db.Close()
		archive = lead.NewRepo(db)
	}

	// --- AI ---
	kb, err := knowledge.Load(cfg.KnowledgePath)
	if err != nil {
		log.Error("knowledge load failed", sl.Err(err))
		return err
	}
	aiClient := ai.NewOpenAIClient(log, cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Temperature, "")
	answerer := ai.NewAnswerer(log, aiClient, kb, cfg.Dialog.ReplyMaxRunes)

	// --- operator notifications go through the Telegram bot ---
	var tgOut *telegram.TelegramOutbound
	var operator lead.Sender
	if cfg.TelegramEnabled() {
		tgOut = telegram.NewTelegramOutbound(cfg.Telegram.APIBaseURL, cfg.Telegram.BotToken, cfg.Telegram.SendRate)
		operator = tgOut
	}
	notifier := lead.NewNotifier(log, operator, cfg.Telegram.AdminChatID)

	timings := dialog.Timings{
		LastOfferFreshness: cfg.Dialog.LastOfferFreshness,
		OfferGap:           cfg.Dialog.OfferGap,
		FollowupDelay:      cfg.Dialog.FollowupDelay,
		ReplyMaxRunes:      cfg.Dialog.ReplyMaxRunes,
	}
	ttl := store.TTLs{
		History:    cfg.Dialog.HistoryTTL,
		Booking:    cfg.Dialog.BookingTTL,
		Contact:    cfg.Dialog.ContactTTL,
		Language:   cfg.Dialog.LanguageTTL,
		LastOffer:  cfg.Dialog.LastOfferTTL,
		Duplicate:  cfg.Dialog.DuplicateWindow,
		OfferTopic: cfg.Dialog.OfferTopicCooldown,
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Admin-Secret"},
	}))

	sweepers := map[string]admin.Sweeper{}

	// --- Telegram module wiring ---
	if cfg.TelegramEnabled() {
		tgStore := store.New(rdb, "tg", cfg.Dialog.HistoryLen, ttl)
		tgEngine := dialog.NewEngine(dialog.TelegramProfile, timings, dialog.Deps{
			Store:    tgStore,
			Answerer: answerer,
			Notifier: notifier,
			Sender:   tgOut,
			Archive:  archive,
			Log:      log,
		})
		telegram.RegisterRoutes(r, telegram.NewHandler(log, tgEngine, cfg.Telegram.SecretToken))
		sweepers[string(lead.ChannelTelegram)] = tgEngine

		if cfg.Telegram.SecretToken == "" {
			log.Warn("TELEGRAM_SECRET_TOKEN is empty, webhook accepts unauthenticated updates")
		}
		if cfg.Telegram.WebhookURL != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := tgOut.SetWebhook(ctx, cfg.Telegram.WebhookURL, cfg.Telegram.SecretToken); err != nil {
				log.Error("telegram setWebhook failed", sl.Err(err))
			}
			cancel()
		}
		log.Info("telegram channel enabled")
	}

	// --- WhatsApp module wiring ---
	if cfg.WhatsAppEnabled() {
		waOut := whatsapp.NewWhatsAppOutbound(log, cfg.WhatsApp.APIBaseURL, cfg.WhatsApp.Token, cfg.WhatsApp.PhoneNumberID)
		waStore := store.New(rdb, "wa", cfg.Dialog.HistoryLen, ttl)
		waEngine := dialog.NewEngine(dialog.WhatsAppProfile, timings, dialog.Deps{
			Store:    waStore,
			Answerer: answerer,
			Notifier: notifier,
			Sender:   waOut,
			Archive:  archive,
			Log:      log,
		})
		whatsapp.RegisterRoutes(r, whatsapp.NewHandler(log, waEngine, cfg.WhatsApp.VerifyToken, cfg.WhatsApp.AppSecret))
		sweepers[string(lead.ChannelWhatsApp)] = waEngine

		if cfg.WhatsApp.AppSecret == "" {
			log.Warn("META_APP_SECRET is empty, webhook signatures are not checked")
		}
		log.Info("whatsapp channel enabled")
	}

	if len(sweepers) == 0 {
		log.Warn("no channel configured, only health and metrics are served")
	}

	admin.RegisterRoutes(r, admin.NewHandler(log, cfg.AdminSecret, sweepers, archive))

	// --- health ---
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              ":" + cfg.PORT,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	return serve(log, srv, stop, cfg.ShutdownWait)
}

// serve runs srv until a signal arrives or it fails to listen, then shuts it
// down within wait.
func serve(log *slog.Logger, srv *http.Server, stop <-chan os.Signal, wait time.Duration) error {
	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case sign := <-stop:
		log.Info("stopping application", slog.String("signal", sign.String()))
	case runErr = <-serveErr:
		log.Error("server error", sl.Err(runErr))
	}

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", sl.Err(err))
	}

	log.Info("application stopped")
	return runErr
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
