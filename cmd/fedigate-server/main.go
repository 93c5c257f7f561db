package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"fedigate/internal/engine"
	"fedigate/internal/platform/config"
	"fedigate/internal/platform/logger"
	"fedigate/internal/server"
)

func main() {
	root := config.New()
	l := logger.Get()

	cfg := config.Load(root)
	eng := engine.New(cfg)
	srv := server.New(eng, server.Options{
		Addr: root.MayString("HTTP_ADDR", ":4000"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.Error().Err(err).Msg("http shutdown failed")
		}
		if err := eng.Shutdown(shutdownCtx); err != nil {
			l.Error().Err(err).Msg("engine shutdown failed")
		}
	}()

	if err := srv.Run(ctx); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
