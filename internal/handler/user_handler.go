package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/dailyq/internal/middleware"
	"github.com/hitoshi/dailyq/internal/model"
	"github.com/hitoshi/dailyq/internal/paging"
)

// meAlias はログイン中のユーザーを指すパスパラメータ。
const meAlias = "me"

// ProfileServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	CachedUser(ctx context.Context, uid string) (*model.User, error)
	FetchUser(ctx context.Context, uid string) (*model.User, error)
	Follow(ctx context.Context, uid string) (*model.User, error)
	Unfollow(ctx context.Context, uid string) (*model.User, error)
	AnswersPage(ctx context.Context, uid string, cursor *model.Date) (paging.Page[model.QuestionAndAnswer], error)
}

// UserHandler はユーザープロフィールのHTTPハンドラー。
type UserHandler struct {
	service ProfileServiceInterface
	me      func() string
	logger  *slog.Logger
}

// NewUserHandler はUserHandlerを生成する。meはログイン中のuidを返す。
func NewUserHandler(service ProfileServiceInterface, me func() string, logger *slog.Logger) *UserHandler {
	return &UserHandler{service: service, me: me, logger: logger}
}

type userResponse struct {
	User  *model.User `json:"user"`
	Stale bool        `json:"stale"`
	Error *errorBody  `json:"error,omitempty"`
}

type userAnswersResponse struct {
	Data    []model.QuestionAndAnswer `json:"data"`
	NextKey *model.Date               `json:"next_key"`
}

// GetUser はプロフィールを返す。サーバーから取得できない場合はキャッシュをstaleとして返す。
// GET /users/{uid}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	uid := h.uidParam(r)

	cached, err := h.service.CachedUser(r.Context(), uid)
	if err != nil {
		h.logger.Warn("ユーザーキャッシュの読み込みに失敗しました", slog.String("error", err.Error()))
	}

	fresh, err := h.service.FetchUser(r.Context(), uid)
	if err != nil {
		var apiErr *model.APIError
		notFound := errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeUserNotFound
		if cached == nil || notFound {
			handleServiceError(w, h.logger, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, userResponse{User: cached, Stale: true, Error: newErrorBody(err)})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, userResponse{User: fresh})
}

// Follow はユーザーをフォローする。
// POST /users/{uid}/follow
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	h.writeUser(w, r, h.service.Follow)
}

// Unfollow はユーザーのフォローを解除する。
// DELETE /users/{uid}/follow
func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	h.writeUser(w, r, h.service.Unfollow)
}

// ListAnswers はユーザーの回答一覧を1ページ返す。cursorが無ければ今日から。
// GET /users/{uid}/answers?cursor=YYYY-MM-DD
func (h *UserHandler) ListAnswers(w http.ResponseWriter, r *http.Request) {
	uid := h.uidParam(r)

	var cursor *model.Date
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		d, err := model.ParseDate(raw)
		if err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("cursor must be YYYY-MM-DD"))
			return
		}
		cursor = &d
	}

	page, err := h.service.AnswersPage(r.Context(), uid, cursor)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	data := page.Data
	if data == nil {
		data = []model.QuestionAndAnswer{}
	}
	middleware.WriteJSON(w, http.StatusOK, userAnswersResponse{Data: data, NextKey: page.NextKey})
}

func (h *UserHandler) writeUser(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, uid string) (*model.User, error)) {
	user, err := op(r.Context(), h.uidParam(r))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, userResponse{User: user})
}

// uidParam はパスパラメータuidを返す。"me"はログイン中のuidに解決する。
func (h *UserHandler) uidParam(r *http.Request) string {
	uid := chi.URLParam(r, "uid")
	if uid == meAlias {
		return h.me()
	}
	return uid
}
