package notification

import (
	"errors"
	"net/http"

	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/handler/http/pathutil"
	"notify-dispatch/internal/handler/http/respond"
	"notify-dispatch/internal/usecase/dispatch"
)

type GetHandler struct{ Svc dispatch.Service }

// ServeHTTP 配送状態取得
// @Summary      配送状態取得
// @Description  指定された冪等キーの配送レコードを取得します
// @Tags         deliveries
// @Produce      json
// @Param        key path string true "冪等キー"
// @Success      200 {object} DTO "配送レコード"
// @Failure      400 {string} string "Bad request - invalid idempotency key"
// @Failure      404 {string} string "Not found - delivery record not found"
// @Failure      500 {string} string "サーバーエラー"
// @Router       /deliveries/{key} [get]
func (h GetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key, err := pathutil.ExtractKey(r.URL.Path, "/deliveries/")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	rec, err := h.Svc.Delivery(r.Context(), key)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, entity.ErrNotFound) {
			code = http.StatusNotFound
		}
		respond.SafeError(w, code, err)
		return
	}

	respond.JSON(w, http.StatusOK, toDTO(rec))
}
