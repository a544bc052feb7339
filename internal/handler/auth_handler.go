package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/dailyq/internal/middleware"
	"github.com/hitoshi/dailyq/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, uid, password string) error
	Logout(ctx context.Context) error
	LoggedIn() bool
	CurrentUID() string
	RegisterPushToken(ctx context.Context, pushToken string) error
}

// AuthHandler はログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	timeline TimelinePager // nilの場合はログイン後に再読み込みしない
	logger   *slog.Logger
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, timeline TimelinePager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: service, timeline: timeline, logger: logger}
}

type loginRequest struct {
	UID      string `json:"uid"`
	Password string `json:"password"`
}

type sessionResponse struct {
	LoggedIn bool   `json:"logged_in"`
	UID      string `json:"uid,omitempty"`
}

// Login はuidとパスワードでログインする。JSONとフォームの両方を受け付ける。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("malformed JSON body"))
			return
		}
	} else {
		req.UID = r.PostFormValue("uid")
		req.Password = r.PostFormValue("password")
	}

	if err := h.service.Login(r.Context(), req.UID, req.Password); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	h.refreshTimeline(r.Context())
	middleware.WriteJSON(w, http.StatusOK, sessionResponse{LoggedIn: true, UID: h.service.CurrentUID()})
}

// refreshTimeline はログイン前の読み込みで残ったエラー状態をREFRESHで置き換える。
// 失敗はスナップショットの端の状態に残るため、ここではログだけ出す。
func (h *AuthHandler) refreshTimeline(ctx context.Context) {
	if h.timeline == nil {
		return
	}
	if err := h.timeline.Load(ctx, model.LoadRefresh); err != nil {
		h.logger.Warn("ログイン後のタイムライン更新に失敗しました", slog.String("error", err.Error()))
	}
}

// Logout はログアウトする。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context()); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pushTokenRequest struct {
	Token string `json:"token"`
}

// RegisterPushToken は端末のプッシュ通知用トークンを登録する。
// POST /push-token
func (h *AuthHandler) RegisterPushToken(w http.ResponseWriter, r *http.Request) {
	var req pushTokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<12)).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("malformed JSON body"))
		return
	}
	if err := h.service.RegisterPushToken(r.Context(), req.Token); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session は現在のログイン状態を返す。
// GET /session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, sessionResponse{LoggedIn: h.service.LoggedIn(), UID: h.service.CurrentUID()})
}

// requireLogin は未ログインのリクエストにAUTH_REQUIREDを返すミドルウェア。
func requireLogin(service AuthServiceInterface) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !service.LoggedIn() {
				middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
