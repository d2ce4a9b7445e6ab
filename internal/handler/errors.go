package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/arcadekiosk/internal/middleware"
	"github.com/hitoshi/arcadekiosk/internal/model"
	"github.com/hitoshi/arcadekiosk/internal/session"
)

// writeAPIErrorResponse は統一フォーマットのエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// actionResponse は操作系エンドポイントのレスポンス。
// Acceptedがfalseの場合は終了処理中のため要求が無視されたことを示す。
type actionResponse struct {
	Accepted bool             `json:"accepted"`
	State    session.Snapshot `json:"state"`
}

// handleControllerError はコントローラーから返されたエラーをHTTPレスポンスに変換する。
// 終了処理中に届いた重複トリガーはエラーではなく202として返す。
func handleControllerError(w http.ResponseWriter, logger *slog.Logger, snapshot session.Snapshot, err error) {
	var stateErr *model.StateError
	switch {
	case errors.Is(err, session.ErrTerminationLatched):
		writeJSON(w, http.StatusAccepted, actionResponse{Accepted: false, State: snapshot})
	case errors.As(err, &stateErr):
		writeAPIErrorResponse(w, http.StatusConflict, model.NewInvalidTransitionError(stateErr))
	case errors.Is(err, model.ErrInvalidRating):
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRatingError(0))
	case errors.Is(err, session.ErrControllerStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, model.NewKioskUnavailableError())
	default:
		logger.Error("internal server error", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
	}
}
