package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/poi-ai/SPAFT-sub000/internal/app"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// Pprof server, localhost only.
	go func() {
		slog.Info("Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(ctx); err != nil {
		slog.Error("Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	if err := bootstrap.Run(ctx); err != nil && err != context.Canceled {
		slog.Error("Trading loop exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}
