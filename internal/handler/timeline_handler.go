package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/dailyq/internal/middleware"
	"github.com/hitoshi/dailyq/internal/model"
	"github.com/hitoshi/dailyq/internal/paging"
)

// TimelinePager はタイムラインハンドラーが必要とするPagerの操作。
type TimelinePager interface {
	Load(ctx context.Context, loadType model.LoadType) error
	Retry(ctx context.Context) error
	Snapshot() paging.Snapshot[model.Question]
}

// TimelineHandler はタイムラインのHTTPハンドラー。
type TimelineHandler struct {
	pager  TimelinePager
	logger *slog.Logger
}

// NewTimelineHandler はTimelineHandlerを生成する。
func NewTimelineHandler(pager TimelinePager, logger *slog.Logger) *TimelineHandler {
	return &TimelineHandler{pager: pager, logger: logger}
}

type loadStateResponse struct {
	Status                 string     `json:"status"`
	EndOfPaginationReached bool       `json:"end_of_pagination_reached"`
	Error                  *errorBody `json:"error,omitempty"`
}

type loadStatesResponse struct {
	Refresh loadStateResponse `json:"refresh"`
	Prepend loadStateResponse `json:"prepend"`
	Append  loadStateResponse `json:"append"`
}

type timelineResponse struct {
	Items   []model.Question   `json:"items"`
	States  loadStatesResponse `json:"states"`
	Version uint64             `json:"version"`
}

// Get は現在のスナップショットを返す。loadパラメータがあれば先にその端を読み込む。
// ロードに失敗してもスナップショットは返し、エラーは端の状態に含める。
// GET /timeline?load=refresh|prepend|append|retry
func (h *TimelineHandler) Get(w http.ResponseWriter, r *http.Request) {
	if load := r.URL.Query().Get("load"); load != "" {
		var err error
		if load == "retry" {
			err = h.pager.Retry(r.Context())
		} else {
			loadType, ok := model.ParseLoadType(load)
			if !ok {
				middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("load must be one of refresh, prepend, append, retry"))
				return
			}
			err = h.pager.Load(r.Context(), loadType)
		}
		if errors.Is(err, paging.ErrPagerClosed) || errors.Is(err, paging.ErrPagerNotStarted) {
			h.logger.Error("タイムラインが利用できません", slog.String("error", err.Error()))
			middleware.WriteInternalServerError(w)
			return
		}
	}

	middleware.WriteJSON(w, http.StatusOK, newTimelineResponse(h.pager.Snapshot()))
}

func newTimelineResponse(snap paging.Snapshot[model.Question]) timelineResponse {
	items := snap.Items
	if items == nil {
		items = []model.Question{}
	}
	return timelineResponse{
		Items: items,
		States: loadStatesResponse{
			Refresh: newLoadStateResponse(snap.States.Refresh),
			Prepend: newLoadStateResponse(snap.States.Prepend),
			Append:  newLoadStateResponse(snap.States.Append),
		},
		Version: snap.Version,
	}
}

func newLoadStateResponse(s paging.LoadState) loadStateResponse {
	return loadStateResponse{
		Status:                 s.Status.String(),
		EndOfPaginationReached: s.EndOfPaginationReached,
		Error:                  newErrorBody(s.Err),
	}
}
