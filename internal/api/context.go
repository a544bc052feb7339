// Package api はDailyQ APIのHTTPクライアントを提供する。
// 認証トークンの付与と更新、エンドポイントログ、条件付きGETはRoundTripperチェーンで行う。
package api

import (
	"context"

	"github.com/hitoshi/dailyq/internal/model"
)

type authRequirementKey struct{}

// WithAuthRequirement はリクエストに認証要否のタグを付けたコンテキストを返す。
func WithAuthRequirement(ctx context.Context, req model.AuthRequirement) context.Context {
	return context.WithValue(ctx, authRequirementKey{}, req)
}

// AuthRequirementFrom はコンテキストに付けられた認証要否を返す。未指定の場合はAuthBearer。
func AuthRequirementFrom(ctx context.Context) model.AuthRequirement {
	if req, ok := ctx.Value(authRequirementKey{}).(model.AuthRequirement); ok {
		return req
	}
	return model.AuthBearer
}
