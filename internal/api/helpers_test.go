package api

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/hitoshi/dailyq/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// --- テスト用モック ---

// memTokens はメモリ上のトークンストア。
type memTokens struct {
	mu      sync.Mutex
	token   model.AuthToken
	sets    int
	failSet bool
}

func (m *memTokens) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token.AccessToken
}

func (m *memTokens) Get() (model.AuthToken, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.token.AccessToken != ""
}

func (m *memTokens) Set(_ context.Context, token model.AuthToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	m.token = token
	if m.failSet {
		return errors.New("persist failed")
	}
	return nil
}

func (m *memTokens) snapshot() (model.AuthToken, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.sets
}

func newClientForTest(t *testing.T, serverURL string, tokens *memTokens, logBuf *bytes.Buffer) *Client {
	t.Helper()
	if logBuf == nil {
		logBuf = &bytes.Buffer{}
	}
	return NewClient(serverURL, tokens, TransportConfig{LogEndpointSuffix: "answers"}, newTestLogger(logBuf))
}
