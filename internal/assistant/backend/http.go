package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lyric-assistant-core/server/internal/assistant/model"
	errx "github.com/lyric-assistant-core/server/internal/core/error"
	logx "github.com/lyric-assistant-core/server/pkg/logger"
)

const maxReplyBytes = 4 << 20

// HTTPBackend posts each envelope as JSON to a hosted assistant function.
type HTTPBackend struct {
	url    string
	token  string
	client *http.Client
}

func NewHTTPBackend(url, token string, timeout time.Duration) *HTTPBackend {
	return &HTTPBackend{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

// WithClient swaps the underlying HTTP client.
func (b *HTTPBackend) WithClient(c *http.Client) *HTTPBackend {
	b.client = c
	return b
}

func (b *HTTPBackend) Call(ctx context.Context, env *model.Envelope) ([]byte, error) {
	if b.url == "" {
		return nil, errx.FromStatus(0, errors.New("assistant function url is not configured"))
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		logx.Error().Err(err).Str("action", env.Action).Msg("assistant function request failed")
		return nil, errx.FromStatus(0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, errx.FromStatus(0, fmt.Errorf("read reply: %w", err))
	}

	logx.Debug().
		Str("action", env.Action).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("assistant function replied")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errx.FromStatus(resp.StatusCode, fmt.Errorf("assistant function returned %d: %s", resp.StatusCode, snippet(raw)))
	}
	return raw, nil
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
