package notification

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"notify-dispatch/internal/common/pagination"
	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/handler/http/requestid"
	"notify-dispatch/internal/handler/http/respond"
	"notify-dispatch/internal/observability/logging"
	"notify-dispatch/internal/repository"
	"notify-dispatch/internal/usecase/dispatch"
)

type ListHandler struct {
	Svc           dispatch.Service
	PaginationCfg pagination.Config
	Logger        *slog.Logger
}

// ServeHTTP 配送一覧取得
// @Summary      配送一覧取得（ページネーション対応）
// @Description  配送レコードを新しい順に取得します。state と channel のクエリパラメータで絞り込みできます。
// @Tags         deliveries
// @Produce      json
// @Param        page     query    int     false  "ページ番号 (1-based)" default(1) minimum(1)
// @Param        limit    query    int     false  "1ページあたりの件数" default(20) minimum(1) maximum(100)
// @Param        state    query    string  false  "配送状態で絞り込み" Enums(pending, sending, succeeded, pending_retry, failed)
// @Param        channel  query    string  false  "チャネルで絞り込み" Enums(sms, email, whatsapp)
// @Success      200 {object} pagination.Response[DTO] "ページネーション付き配送一覧"
// @Failure      400 {string} string "Invalid query parameters"
// @Failure      500 {string} string "サーバーエラー"
// @Router       /deliveries [get]
func (h ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	// Get request ID for logging
	reqID := requestid.FromContext(ctx)
	logger := logging.WithRequestID(ctx, h.Logger)

	// Parse pagination parameters
	params, err := pagination.ParseQueryParams(r, h.PaginationCfg)
	if err != nil {
		logger.Warn("Invalid pagination parameters",
			"error", err.Error(),
			"request_id", reqID)
		pagination.RecordError("validation")
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	// Parse state and channel filters
	filters, err := parseFilters(r)
	if err != nil {
		logger.Warn("Invalid delivery filters",
			"error", err.Error(),
			"request_id", reqID)
		pagination.RecordError("validation")
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	// Log request
	logger.Info("Paginated delivery list request",
		"page", params.Page,
		"limit", params.Limit,
		"request_id", reqID)

	// Get paginated data from service
	result, err := h.Svc.ListDeliveries(ctx, filters, params)
	if err != nil {
		logger.Error("Failed to list deliveries",
			"error", err.Error(),
			"page", params.Page,
			"limit", params.Limit,
			"request_id", reqID)
		pagination.RecordError("database")
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	// Convert to DTOs
	dtos := make([]DTO, 0, len(result.Data))
	for _, rec := range result.Data {
		dtos = append(dtos, toDTO(rec))
	}

	// Build paginated response
	response := pagination.NewResponse(dtos, result.Pagination)

	// Record metrics
	duration := time.Since(startTime)
	pagination.RecordRequest(http.StatusOK, params.Page)
	pagination.RecordDuration("handler", duration.Seconds())
	pagination.UpdateTotalCount(result.Pagination.Total)

	// Log response
	logger.Info("Paginated response",
		"page", params.Page,
		"limit", params.Limit,
		"returned_count", len(dtos),
		"duration_ms", duration.Milliseconds(),
		"status", http.StatusOK,
		"request_id", reqID)

	respond.JSON(w, http.StatusOK, response)
}

// parseFilters validates the optional state and channel query parameters.
func parseFilters(r *http.Request) (repository.DeliveryFilters, error) {
	var filters repository.DeliveryFilters

	if v := r.URL.Query().Get("state"); v != "" {
		state := entity.DeliveryState(strings.ToLower(strings.TrimSpace(v)))
		if !state.Valid() {
			return filters, fmt.Errorf(
				"unknown state %q (must be pending, sending, succeeded, pending_retry, or failed)", v)
		}
		filters.State = &state
	}

	if v := r.URL.Query().Get("channel"); v != "" {
		channel, err := entity.ParseChannel(v)
		if err != nil {
			return filters, err
		}
		filters.Channel = &channel
	}

	return filters, nil
}
