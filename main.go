package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"cyberherd-messaging/internal/templates"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	InitLogger(cfg.LogLevel)
	storeBackendType = cfg.StoreBackend

	store, err := NewStore(cfg)
	if err != nil {
		slog.Error("store init failed", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Install the shared template defaults so the engine works out of
	// the box. Existing defaults are refreshed, owner templates stay.
	seedCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := templates.SeedDefaults(seedCtx, store); err != nil {
		cancel()
		slog.Error("seeding default templates failed", "error", err)
		os.Exit(1)
	}
	cancel()

	hub := NewHub()
	publisher := NewPublisher(cfg.PublishTimeout)
	messenger := NewMessenger(cfg, store, publisher, hub)
	server := NewServer(cfg, messenger, store, hub)

	mux := http.NewServeMux()
	server.Routes(mux)

	if cfg.AdminKey == "" {
		slog.Warn("ADMIN_KEY not set, write endpoints are disabled")
	}

	slog.Info("starting server",
		"port", cfg.Port,
		"store_backend", cfg.StoreBackend,
		"relays", len(cfg.Relays),
	)
	if err := http.ListenAndServe(":"+cfg.Port, RequestLoggingMiddleware(mux)); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}
