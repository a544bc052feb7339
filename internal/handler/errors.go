// Package handler はプレゼンテーション層向けのローカルHTTPブリッジを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/dailyq/internal/api"
	"github.com/hitoshi/dailyq/internal/middleware"
	"github.com/hitoshi/dailyq/internal/model"
	"github.com/hitoshi/dailyq/internal/paging"
)

// handleServiceError はサービス層から返されたエラーを統一フォーマットのレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if apiErr := toAPIError(err); apiErr != nil {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// 分類できないエラーは内部サーバーエラーとして扱う
	logger.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// toAPIError はエラーをUI向けのAPIErrorに変換する。分類できない場合はnil。
func toAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var le *paging.LoadError
	if errors.As(err, &le) {
		switch le.Kind {
		case paging.KindHTTP:
			if le.Status == http.StatusUnauthorized {
				return model.NewAuthRequiredError()
			}
			return model.NewHTTPError(le.Status)
		case paging.KindDecode:
			return model.NewDecodeFailedError()
		case paging.KindCache:
			return model.NewCacheWriteFailedError()
		default:
			return model.NewNetworkError(le.Err.Error())
		}
	}

	var se *api.StatusError
	if errors.As(err, &se) {
		if se.Unauthorized() {
			return model.NewAuthRequiredError()
		}
		return model.NewHTTPError(se.StatusCode)
	}
	var de *api.DecodeError
	if errors.As(err, &de) {
		return model.NewDecodeFailedError()
	}
	var ue *url.Error
	if errors.As(err, &ue) || errors.Is(err, context.DeadlineExceeded) {
		return model.NewNetworkError(err.Error())
	}
	return nil
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeAuthRequired, model.ErrCodeLoginFailed:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidCredentials, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeQuestionNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeNetwork, model.ErrCodeHTTP, model.ErrCodeDecodeFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorBody はスナップショットなどに埋め込むエラー表現。
type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Category  string `json:"category"`
	Action    string `json:"action"`
	Retryable bool   `json:"retryable"`
}

func newErrorBody(err error) *errorBody {
	if err == nil {
		return nil
	}
	apiErr := toAPIError(err)
	if apiErr == nil {
		apiErr = &model.APIError{
			Code:     "INTERNAL_ERROR",
			Message:  "内部エラーが発生しました。",
			Category: "system",
			Action:   "しばらく待ってから再度お試しください。",
		}
	}
	retryable := true
	var le *paging.LoadError
	if errors.As(err, &le) {
		retryable = le.Retryable()
	}
	return &errorBody{
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		Category:  apiErr.Category,
		Action:    apiErr.Action,
		Retryable: retryable,
	}
}
