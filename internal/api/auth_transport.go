package api

import (
	"net/http"
	"strings"

	"github.com/hitoshi/dailyq/internal/model"
)

const bearerPrefix = "Bearer "

// AccessTokenSource は現在のアクセストークンを返す。未ログインなら空文字。
type AccessTokenSource interface {
	AccessToken() string
}

// Decorate はAuthRequirementがBEARERでトークンがある場合に
// Authorizationヘッダを付けたリクエストの複製を返す。それ以外は元のリクエストをそのまま返す。
func Decorate(req *http.Request, requirement model.AuthRequirement, accessToken string) *http.Request {
	if requirement != model.AuthBearer || accessToken == "" {
		return req
	}
	decorated := req.Clone(req.Context())
	decorated.Header.Set("Authorization", bearerPrefix+accessToken)
	return decorated
}

// bearerToken はリクエストに実際に付与されたBearerトークンを返す。
func bearerToken(req *http.Request) string {
	h := req.Header.Get("Authorization")
	if !strings.HasPrefix(h, bearerPrefix) {
		return ""
	}
	return strings.TrimPrefix(h, bearerPrefix)
}

// authDecorator はリクエストのタグに従ってBearerトークンを付与するRoundTripper。
// リトライやエラー処理は行わない。
type authDecorator struct {
	next   http.RoundTripper
	tokens AccessTokenSource
}

func (d *authDecorator) RoundTrip(req *http.Request) (*http.Response, error) {
	requirement := AuthRequirementFrom(req.Context())
	return d.next.RoundTrip(Decorate(req, requirement, d.tokens.AccessToken()))
}
