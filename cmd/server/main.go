package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"donorcrm/internal/config"
	"donorcrm/internal/db"
	"donorcrm/internal/handlers"
	"donorcrm/internal/services"
	"donorcrm/internal/store"
	"donorcrm/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	log := services.NewLogger(cfg.LogLevel, os.Stderr)
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}
	defer database.Close()

	hub := websocket.NewHub()
	deps := services.NewIntegrityDeps(cfg, database, log)
	deps.Progress = hub
	service := services.NewIntegrityService(deps)

	handler := handlers.New(database, cfg, store.NewOperatorStore(database), store.NewAuditStore(database), service, hub, log)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler.Routes(),
		ReadTimeout: 10 * time.Second,
		// Checks run synchronously inside the request.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("integrity admin API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
	}
}
