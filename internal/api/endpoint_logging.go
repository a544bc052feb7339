package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// endpointLogger はパスが指定の接尾辞で終わるGETリクエストの送受信をログ出力するRoundTripper。
// nameはチェーン内の位置を区別するために使う（例: "app", "network"）。
type endpointLogger struct {
	next   http.RoundTripper
	name   string
	suffix string
	logger *slog.Logger
}

func (l *endpointLogger) RoundTrip(req *http.Request) (*http.Response, error) {
	if l.suffix == "" || req.Method != http.MethodGet || !strings.HasSuffix(req.URL.EscapedPath(), l.suffix) {
		return l.next.RoundTrip(req)
	}

	l.logger.Info("エンドポイントへ送信します",
		slog.String("interceptor", l.name),
		slog.String("endpoint", req.URL.String()),
		slog.String("if_none_match", req.Header.Get("If-None-Match")),
		slog.Bool("authorized", req.Header.Get("Authorization") != ""),
	)

	start := time.Now()
	resp, err := l.next.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		l.logger.Warn("エンドポイントの呼び出しに失敗しました",
			slog.String("interceptor", l.name),
			slog.String("endpoint", req.URL.String()),
			slog.String("error", err.Error()),
			slog.Int64("duration_ms", duration.Milliseconds()),
		)
		return resp, err
	}

	l.logger.Info("エンドポイントから受信しました",
		slog.String("interceptor", l.name),
		slog.String("endpoint", req.URL.String()),
		slog.Int("http_status", resp.StatusCode),
		slog.String("etag", resp.Header.Get("ETag")),
		slog.Bool("from_cache", fromCache(resp)),
		slog.Int64("duration_ms", duration.Milliseconds()),
	)
	return resp, nil
}
