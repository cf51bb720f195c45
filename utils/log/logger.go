package log

import (
	"context"
	"os"

	"go.uber.org/zap"
)

var logger *zap.Logger

func init() {
	Configure(os.Getenv("DEBUG") == "true")
}

// Configure swaps the package logger. Debug selects the development encoder.
func Configure(debug bool) {
	var err error
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		logger = zap.NewNop()
	}
}

// Quiet keeps only errors, for commands that share the terminal with a user.
func Quiet() {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	if l, err := cfg.Build(); err == nil {
		logger = l
	}
}

type ctxKey int

const (
	sessionIDKey ctxKey = iota
	surfaceKey
)

// WithSession tags ctx so every WithCtx logger carries the session id.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// WithSurface tags ctx with the surface (web, ws, terminal) serving the session.
func WithSurface(ctx context.Context, surface string) context.Context {
	return context.WithValue(ctx, surfaceKey, surface)
}

// SessionID returns the id stored by WithSession, or "".
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

func WithCtx(ctx context.Context) *zap.Logger {
	fields := []zap.Field{}

	if v, ok := ctx.Value(sessionIDKey).(string); ok && v != "" {
		fields = append(fields, zap.String("session_id", v))
	}
	if v, ok := ctx.Value(surfaceKey).(string); ok && v != "" {
		fields = append(fields, zap.String("surface", v))
	}

	return logger.With(fields...)
}

func With(fields ...zap.Field) *zap.Logger {
	return logger.With(fields...)
}
