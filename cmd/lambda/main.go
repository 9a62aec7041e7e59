// Package main runs the tag handler as an API Gateway proxy Lambda.
package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"tag-gateway/internal/cache"
	"tag-gateway/internal/completion"
	"tag-gateway/internal/config"
	"tag-gateway/internal/handler"
	"tag-gateway/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Error("failed to load configuration", "error", err.Error())
		os.Exit(1)
	}
	log := logger.NewWithLevel(cfg.LogLevel).With("runtime", "lambda")

	var tagCache cache.TagCache
	if cfg.CacheEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		service, err := cache.Open(ctx, cfg.RedisURL, cfg.CacheTTL, log)
		cancel()
		if err != nil {
			// Cold starts keep serving without the cache.
			log.Warn("tag cache unavailable", "error", err.Error())
		} else {
			tagCache = service
		}
	}

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

	tagHandler := handler.New(client, tagCache, log, &handler.Config{APIKey: cfg.APIKey})
	lambda.Start(tagHandler.HandleAPIGateway)
}
