package api

import (
	"net/http"
	"regexp"

	"github.com/gregjones/httpcache"
)

var questionDetailPath = regexp.MustCompile(`^/v2/questions/\d{4}-\d{2}-\d{2}$`)

// isQuestionDetail は質問詳細取得のGETリクエストかどうかを返す。
func isQuestionDetail(req *http.Request) bool {
	return req.Method == http.MethodGet && questionDetailPath.MatchString(req.URL.Path)
}

// fromCache はレスポンスがHTTPキャッシュから返されたかどうかを返す。
func fromCache(resp *http.Response) bool {
	return resp.Header.Get(httpcache.XFromCache) != ""
}

// conditionalCache は対象リクエストだけをHTTPキャッシュ経由で送るRoundTripper。
// キャッシュはETagでIf-None-Matchを付けて再検証し、304を受けた場合はキャッシュした本文で200を返す。
type conditionalCache struct {
	next   http.RoundTripper
	cached http.RoundTripper
	match  func(*http.Request) bool
}

func newConditionalCache(next http.RoundTripper, match func(*http.Request) bool) *conditionalCache {
	t := httpcache.NewTransport(httpcache.NewMemoryCache())
	t.Transport = next
	t.MarkCachedResponses = true
	return &conditionalCache{next: next, cached: t, match: match}
}

func (c *conditionalCache) RoundTrip(req *http.Request) (*http.Response, error) {
	if !c.match(req) {
		return c.next.RoundTrip(req)
	}
	return c.cached.RoundTrip(req)
}
