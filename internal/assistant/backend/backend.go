// Package backend implements the remote assistant capability every tool call goes through.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/lyric-assistant-core/server/internal/assistant/model"
	"github.com/lyric-assistant-core/server/internal/assistant/tools"
)

// Backend performs one remote call per envelope and returns the raw reply body.
// Failures are returned as *errx.AppError classified by status.
type Backend interface {
	Call(ctx context.Context, env *model.Envelope) ([]byte, error)
}

// New builds the backend selected by cfg.Kind.
func New(ctx context.Context, cfg model.BackendConfig, catalog *tools.Catalog) (Backend, error) {
	switch cfg.Kind {
	case "http":
		return NewHTTPBackend(cfg.HTTP.URL, cfg.HTTP.AuthToken, time.Duration(cfg.HTTP.TimeoutS)*time.Second), nil
	case "gemini", "":
		return NewGeminiBackend(ctx, cfg.Gemini, catalog)
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Kind)
	}
}
