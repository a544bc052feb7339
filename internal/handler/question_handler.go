package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/dailyq/internal/middleware"
	"github.com/hitoshi/dailyq/internal/model"
)

// maxImageSize は画像アップロードの上限サイズ。
const maxImageSize = 10 << 20

// QuestionServiceInterface は質問ハンドラーが必要とするサービスインターフェース。
type QuestionServiceInterface interface {
	CachedQuestion(ctx context.Context, qid model.Date) (*model.Question, error)
	FetchQuestion(ctx context.Context, qid model.Date) (*model.Question, error)
	Answers(ctx context.Context, qid model.Date) ([]model.Answer, error)
	Answer(ctx context.Context, qid model.Date, uid string) (*model.Answer, error)
	SaveAnswer(ctx context.Context, qid model.Date, uid, text, photo string) (*model.Answer, error)
	DeleteAnswer(ctx context.Context, qid model.Date, uid string) error
	UploadImage(ctx context.Context, filename, contentType string, image io.Reader) (string, error)
}

// QuestionHandler は質問詳細と回答のHTTPハンドラー。
type QuestionHandler struct {
	service QuestionServiceInterface
	me      func() string
	logger  *slog.Logger
}

// NewQuestionHandler はQuestionHandlerを生成する。meはログイン中のuidを返す。
func NewQuestionHandler(service QuestionServiceInterface, me func() string, logger *slog.Logger) *QuestionHandler {
	return &QuestionHandler{service: service, me: me, logger: logger}
}

type questionResponse struct {
	Question *model.Question `json:"question"`
	Stale    bool            `json:"stale"`
	Error    *errorBody      `json:"error,omitempty"`
}

type answerRequest struct {
	Text  string `json:"text"`
	Photo string `json:"photo"`
}

type imageResponse struct {
	URL string `json:"url"`
}

// GetQuestion は質問を返す。サーバーから取得できない場合はキャッシュをstaleとして返す。
// GET /questions/{qid}
func (h *QuestionHandler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	qid, ok := parseQID(w, r)
	if !ok {
		return
	}

	cached, err := h.service.CachedQuestion(r.Context(), qid)
	if err != nil {
		h.logger.Warn("質問キャッシュの読み込みに失敗しました", slog.String("error", err.Error()))
	}

	fresh, err := h.service.FetchQuestion(r.Context(), qid)
	if err != nil {
		var apiErr *model.APIError
		notFound := errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeQuestionNotFound
		if cached == nil || notFound {
			handleServiceError(w, h.logger, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, questionResponse{Question: cached, Stale: true, Error: newErrorBody(err)})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, questionResponse{Question: fresh})
}

// ListAnswers は質問に対する回答一覧を返す。
// GET /questions/{qid}/answers
func (h *QuestionHandler) ListAnswers(w http.ResponseWriter, r *http.Request) {
	qid, ok := parseQID(w, r)
	if !ok {
		return
	}
	answers, err := h.service.Answers(r.Context(), qid)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if answers == nil {
		answers = []model.Answer{}
	}
	middleware.WriteJSON(w, http.StatusOK, answers)
}

// GetMyAnswer はログイン中のユーザーの回答を返す。未回答なら404。
// GET /questions/{qid}/answer
func (h *QuestionHandler) GetMyAnswer(w http.ResponseWriter, r *http.Request) {
	qid, ok := parseQID(w, r)
	if !ok {
		return
	}
	answer, err := h.service.Answer(r.Context(), qid, h.me())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if answer == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, answer)
}

// PutMyAnswer はログイン中のユーザーの回答を作成または更新する。
// PUT /questions/{qid}/answer
func (h *QuestionHandler) PutMyAnswer(w http.ResponseWriter, r *http.Request) {
	qid, ok := parseQID(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("malformed JSON body"))
		return
	}

	answer, err := h.service.SaveAnswer(r.Context(), qid, h.me(), req.Text, req.Photo)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, answer)
}

// DeleteMyAnswer はログイン中のユーザーの回答を削除する。
// DELETE /questions/{qid}/answer
func (h *QuestionHandler) DeleteMyAnswer(w http.ResponseWriter, r *http.Request) {
	qid, ok := parseQID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteAnswer(r.Context(), qid, h.me()); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage は回答に添付する画像をアップロードする。
// POST /images (multipart/form-data, field "image")
func (h *QuestionHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize)
	file, header, err := r.FormFile("image")
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("image file is required"))
		return
	}
	defer file.Close()

	u, err := h.service.UploadImage(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, imageResponse{URL: u})
}

// parseQID はパスパラメータqidを日付として解釈する。失敗時は400を書き込みfalseを返す。
func parseQID(w http.ResponseWriter, r *http.Request) (model.Date, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "qid"))
	qid, err := model.ParseDate(raw)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("qid must be YYYY-MM-DD"))
		return model.Date{}, false
	}
	return qid, true
}
