package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/verder-helpen/auth-test/internal/config"
	"github.com/verder-helpen/auth-test/internal/httpapi"
	"github.com/verder-helpen/auth-test/internal/logging"
	"github.com/verder-helpen/auth-test/internal/server"
	"github.com/verder-helpen/auth-test/internal/session"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := config.Get("CONFIG", "config.toml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(fmt.Errorf("config error: %w", err))
	}

	logger := logging.NewLogger("auth-test")

	store := config.NewStore(cfg)
	go config.Watch(ctx, cfgPath, store, logger)

	sessions := session.NewService(session.NewMemoryRepository(), session.NewSystemClock())

	router := server.NewRouter("auth-test", func(r chi.Router) {
		httpapi.RegisterRoutes(r, store, sessions, logger)
	})

	srv := &http.Server{
		Addr:              ":" + config.Get("PORT", "8000"),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if err := server.Run(ctx, srv, logger); err != nil {
		panic(err)
	}
}
