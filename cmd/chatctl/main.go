package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go-chat-vault/internal/client/cli"
	"go-chat-vault/internal/logger"
)

func main() {
	slog.SetDefault(logger.New(os.Stderr, os.Getenv("LOG_FORMAT"), envOr("LOG_LEVEL", "error")))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func envOr(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
