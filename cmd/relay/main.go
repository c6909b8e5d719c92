package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relay/internal/config"
	"relay/internal/jwtsigner"
	"relay/internal/notify"
	"relay/internal/observability/logging"
	"relay/internal/observability/metrics"
	"relay/internal/presence"
	"relay/internal/reaper"
	"relay/internal/service"
	"relay/internal/store"
	"relay/internal/transport/httpapi"
	"relay/internal/transport/ws"
	"relay/pkg/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.Config{
		ServiceName: "relay",
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	slog.SetDefault(logger)
	metrics.MustRegister("relay")

	logger.Info("starting service")

	gdb, err := db.OpenGorm(db.Config{Driver: cfg.DatabaseDriver, DSN: cfg.DatabaseURL, LogSQL: cfg.LogSQL})
	if err != nil {
		logger.Error("gorm open", "error", err)
		os.Exit(1)
	}
	st := store.New(gdb)
	if err := st.AutoMigrate(context.Background()); err != nil {
		logger.Error("auto migrate", "error", err)
		os.Exit(1)
	}

	signer, err := jwtsigner.NewFromBase64(cfg.SigningKey, cfg.SigningKeyID, cfg.Issuer)
	if err != nil {
		logger.Error("signing key", "error", err)
		os.Exit(1)
	}
	if cfg.SigningKey == "" {
		logger.Warn("RELAY_SIGNING_KEY not set, session tokens will not survive a restart")
	}

	var notifier notify.Notifier = notify.LogNotifier{Logger: logger}
	if cfg.NotifyURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.NotifyURL, cfg.NotifyToken, cfg.NotifyTimeout)
	} else {
		logger.Warn("RELAY_NOTIFY_URL not set, one-time codes are written to the log")
	}

	reg := presence.NewRegistry()
	otp := service.NewOTPIssuer(st.Codes(), st.Identities(), notifier, service.OTPConfig{
		TTL:            cfg.CodeTTL,
		MaxAttempts:    cfg.CodeAttempts,
		HashCost:       cfg.CodeHashCost,
		AccessAttempts: cfg.AccessAttempts,
		NotifyTimeout:  cfg.NotifyTimeout,
	})
	rels := service.NewRelationships(st.Identities(), st.Invites(), st.Relationships(), reg, cfg.RequireInvite)
	router := service.NewMessageRouter(rels, st.Messages(), reg, cfg.MaxContentSize)
	sessions := service.NewSessions(st.Identities(), reg, signer, cfg.RequireToken)

	wsHandler := ws.NewHandler(ws.Deps{
		OTP:           otp,
		Relationships: rels,
		Router:        router,
		Sessions:      sessions,
		Tokens:        signer,
		Logger:        logger,
	}, ws.Config{
		StoreTimeout:   cfg.StoreTimeout,
		OutboxSize:     cfg.OutboxSize,
		MaxFrameBytes:  cfg.MaxFrameBytes,
		WriteTimeout:   cfg.WriteTimeout,
		TokenTTL:       cfg.TokenTTL,
		AllowedOrigins: cfg.CORSOrigins,
	})

	handler := httpapi.NewRouter(httpapi.Options{
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.RateLimit,
		RateWindow:  cfg.RateWindow,
		DB:          st,
		Keys:        signer,
		WS:          wsHandler,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go reaper.New(st, cfg.ReaperInterval).Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("relay listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	otp.Wait()
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
