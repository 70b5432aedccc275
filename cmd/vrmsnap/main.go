package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vrmsnap/vrmsnap/pkg/log"
	"github.com/vrmsnap/vrmsnap/pkg/server"
	"github.com/vrmsnap/vrmsnap/pkg/snapshot"
	"github.com/vrmsnap/vrmsnap/pkg/vrm"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
)

// exit codes; 0 is success and 130 is interrupt per convention
const (
	exitFatal           = 1
	exitNoUser          = 2
	exitNoInstallations = 3
	exitUnauthorized    = 4
	exitInterrupted     = 130
)

func main() {
	// init packages
	c := vrm.Configured()
	a := snapshot.Configured(c)
	srv := server.Configured(a)

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

	// stderr only: stdout carries the snapshot document
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	log.SetDefaultLogLevel(level)
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if srv.Enabled() {
		if err := srv.Run(ctx); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "server failed", "error", err)
			os.Exit(exitFatal)
		}
		log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
		return
	}

	snap, err := a.Build(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		switch {
		case errors.Is(err, context.Canceled):
			os.Exit(exitInterrupted)
		case errors.Is(err, vrm.ErrUnauthorized):
			os.Exit(exitUnauthorized)
		case errors.Is(err, snapshot.ErrNoUser):
			os.Exit(exitNoUser)
		case errors.Is(err, snapshot.ErrNoInstallations):
			os.Exit(exitNoInstallations)
		default:
			os.Exit(exitFatal)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(snap); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to write snapshot", "error", err)
		os.Exit(exitFatal)
	}
}
