package notification

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/handler/http/respond"
	"notify-dispatch/internal/usecase/dispatch"
)

type SubmitHandler struct{ Svc dispatch.Service }

// ServeHTTP 通知送信依頼
// @Summary      通知送信依頼
// @Description  通知を送信キューに登録します。同じ冪等キーでの再送信は重複として受理され、追加の送信は行われません。
// @Tags         notifications
// @Accept       json
// @Produce      json
// @Param        notification body SubmitRequest true "通知内容"
// @Success      202 {object} SubmitResponse "受理（配送は非同期）"
// @Failure      400 {string} string "Bad request - invalid input"
// @Failure      429 {object} SubmitResponse "Rate limited - submission deferred"
// @Header       429 {integer} Retry-After "Seconds until the client should retry"
// @Failure      500 {string} string "サーバーエラー"
// @Failure      503 {string} string "Service unavailable - dispatcher is shutting down"
// @Router       /notifications [post]
func (h SubmitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Channel == "" || req.Recipient == "" || req.IdempotencyKey == "" {
		respond.SafeError(w, http.StatusBadRequest,
			errors.New("channel, recipient, idempotency_key are required"))
		return
	}
	if req.TimeoutMS < 0 {
		respond.SafeError(w, http.StatusBadRequest,
			errors.New("timeout_ms must not be negative"))
		return
	}

	outcome, err := h.Svc.Submit(r.Context(), &entity.NotificationRequest{
		Channel:        entity.Channel(strings.ToLower(strings.TrimSpace(req.Channel))),
		Recipient:      req.Recipient,
		Body:           req.Body,
		TemplateID:     req.TemplateID,
		IdempotencyKey: req.IdempotencyKey,
		Timeout:        time.Duration(req.TimeoutMS) * time.Millisecond,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, dispatch.ErrShuttingDown) {
			respond.Error(w, http.StatusServiceUnavailable, err)
			return
		}
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	switch outcome.Kind {
	case dispatch.OutcomeAccepted:
		respond.JSON(w, http.StatusAccepted, SubmitResponse{
			IdempotencyKey: req.IdempotencyKey,
			Status:         string(outcome.Kind),
			State:          outcome.State.String(),
			Duplicate:      outcome.Duplicate,
		})
	case dispatch.OutcomeRateLimited:
		// Retry-Afterは秒単位の整数なので切り上げる
		retryAfter := int(math.Ceil(outcome.RetryAfter.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		respond.JSON(w, http.StatusTooManyRequests, SubmitResponse{
			IdempotencyKey: req.IdempotencyKey,
			Status:         string(outcome.Kind),
		})
	default:
		// 拒否理由はそのまま呼び出し元へ返す
		respond.Error(w, http.StatusBadRequest, errors.New(outcome.Reason))
	}
}
