// Package main is the entry point for the tag gateway HTTP server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tag-gateway/internal/cache"
	"tag-gateway/internal/completion"
	"tag-gateway/internal/config"
	"tag-gateway/internal/handler"
	"tag-gateway/internal/logger"
	"tag-gateway/internal/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.New().Error("failed to load configuration", "error", err.Error())
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.LogLevel)
	log.Info("starting tag gateway")
	log.Info("configuration loaded",
		"port", cfg.Port,
		"upstream_url", cfg.UpstreamURL,
		"model", cfg.Model,
		"cache_enabled", cfg.CacheEnabled(),
	)
	if cfg.APIKey == "" {
		log.Warn("OPENAI_API_KEY is not set; tag requests will fail with 500")
	}

	// Initialize the optional tag cache
	var tagCache cache.TagCache
	if cfg.CacheEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		service, err := cache.Open(ctx, cfg.RedisURL, cfg.CacheTTL, log)
		cancel()
		if err != nil {
			log.Error("failed to initialize tag cache", "error", err.Error())
			os.Exit(1)
		}
		defer service.Close()
		tagCache = service
		log.Info("tag cache initialized", "ttl", cfg.CacheTTL.String())
	}

	// Initialize completion client
	client, err := completion.New(completion.ClientConfig{
		UpstreamURL: cfg.UpstreamURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Timeout:     cfg.UpstreamTimeout,
	})
	if err != nil {
		log.Error("failed to create completion client", "error", err.Error())
		os.Exit(1)
	}
	log.Info("completion client initialized", "endpoint", client.Endpoint())

	tagHandler := handler.New(client, tagCache, log, &handler.Config{APIKey: cfg.APIKey})

	// Set up HTTP router
	mux := http.NewServeMux()

	generate := middleware.RequestIDMiddleware(middleware.BodyBufferMiddleware(tagHandler))
	mux.Handle("/generate-tags", generate)
	mux.Handle("/.netlify/functions/generate-tags", generate)

	mux.HandleFunc("/health", handler.HealthHandler(tagCache))
	mux.HandleFunc("/stats", handler.StatsDashboard)
	mux.HandleFunc("/stats/json", handler.StatsJSON)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err.Error())
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err.Error())
	}

	log.Info("server stopped")
}
