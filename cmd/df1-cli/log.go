package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// debugAdapter forwards library frame traces to slog at debug level.
type debugAdapter struct {
	*slog.Logger
}

func (log *debugAdapter) Printf(msg string, args ...any) {
	if !log.Logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	log.Logger.Debug(fmt.Sprintf(msg, args...))
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// infoAdapter logs notifications at info level.
type infoAdapter struct {
	*slog.Logger
}

func (log *infoAdapter) Printf(msg string, args ...any) {
	log.Logger.Info(fmt.Sprintf(msg, args...))
}
