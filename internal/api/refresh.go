package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/hitoshi/dailyq/internal/metrics"
	"github.com/hitoshi/dailyq/internal/model"
)

// TokenStore はトークン更新処理が読み書きするトークンの保管先。
type TokenStore interface {
	Get() (model.AuthToken, bool)
	Set(ctx context.Context, token model.AuthToken) error
}

// TokenRefresher はリフレッシュトークンから新しいトークンペアを取得する。
// 呼び出しはAuthNoneで行うこと。
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (model.AuthToken, error)
}

// refreshCoordinator はBearerトークン付きリクエストが401を受けた場合に
// トークンを更新して元のリクエストを1回だけ再送するRoundTripper。
// プロセス全体で同時に走るトークン更新は高々1つ。
type refreshCoordinator struct {
	next      http.RoundTripper
	store     TokenStore
	refresher TokenRefresher
	logger    *slog.Logger
	metrics   metrics.MetricsCollector

	mu sync.Mutex
}

func (c *refreshCoordinator) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := c.next.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	// トークンを付けずに送ったリクエストはサーバーが認証を必要としていないため再送しない
	sent := bearerToken(req)
	if sent == "" {
		return resp, nil
	}

	accessToken, ok := c.authenticate(req.Context(), sent)
	if !ok {
		return resp, nil
	}

	retry, ok := cloneForRetry(req, accessToken)
	if !ok {
		c.logger.Warn("リクエスト本文を再生できないため再送しません",
			slog.String("method", req.Method),
			slog.String("endpoint", req.URL.Path),
		)
		return resp, nil
	}

	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	// 再送は1回だけ。2回目の401はそのまま返す
	return c.next.RoundTrip(retry)
}

// authenticate は再送に使うアクセストークンを返す。再送すべきでない場合はfalse。
func (c *refreshCoordinator) authenticate(ctx context.Context, sent string) (string, bool) {
	if token, ok := c.store.Get(); !ok || token.RefreshToken == "" {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.store.Get()
	if !ok || current.RefreshToken == "" {
		return "", false
	}

	// 他のリクエストがすでに更新済み
	if current.AccessToken != sent {
		return current.AccessToken, true
	}

	renewed, err := c.refresher.RefreshToken(WithAuthRequirement(ctx, model.AuthNone), current.RefreshToken)
	if err != nil {
		c.metrics.RecordTokenRefresh(false)
		c.logger.Warn("トークンの更新に失敗しました",
			slog.String("error", err.Error()),
		)
		return "", false
	}
	if renewed.AccessToken == "" || renewed.RefreshToken == "" {
		c.metrics.RecordTokenRefresh(false)
		c.logger.Warn("トークン更新APIが不完全なトークンを返しました")
		return "", false
	}
	c.metrics.RecordTokenRefresh(true)

	if err := c.store.Set(ctx, renewed); err != nil {
		c.logger.Error("更新したトークンの保存に失敗しました",
			slog.String("error", err.Error()),
		)
	}
	c.logger.Info("アクセストークンを更新しました")
	return renewed.AccessToken, true
}

// cloneForRetry は新しいアクセストークンを付けた再送用のリクエストを作る。
// 本文を再生できない場合はfalse。
func cloneForRetry(req *http.Request, accessToken string) (*http.Request, bool) {
	retry := req.Clone(req.Context())
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, false
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, false
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", bearerPrefix+accessToken)
	return retry, true
}
