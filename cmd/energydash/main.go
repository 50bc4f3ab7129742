package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
	"golang.org/x/sync/errgroup"

	"github.com/raterudder/energydash/pkg/backend"
	"github.com/raterudder/energydash/pkg/controller"
	"github.com/raterudder/energydash/pkg/display"
	"github.com/raterudder/energydash/pkg/log"
	"github.com/raterudder/energydash/pkg/publisher"
	"github.com/raterudder/energydash/pkg/server"
	"github.com/raterudder/energydash/pkg/trend"
	"github.com/raterudder/energydash/pkg/types"
)

func main() {
	// init packages
	source := backend.Configured()
	pub := publisher.Configured()
	state := display.NewState(types.DefaultGauge(), trend.DefaultRetention)
	sink := display.Multi(state, pub, display.NewLog(context.Background()))
	ctrl := controller.Configured(source, sink)

	// init server
	srv := server.Configured(ctrl, state)

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	log.SetDefaultLogLevel(level)
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	state.SetTrendRetention(ctrl.Config().TrendRetention)

	if pub.Enabled() {
		if err := pub.Connect(ctx); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to connect publisher", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
	} else {
		log.Ctx(ctx).InfoContext(ctx, "MQTT publishing disabled, no broker configured")
	}

	// Run blocks until the context is canceled or an error happens
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ctrl.Run(gctx)
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if err := g.Wait(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", "error", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}
