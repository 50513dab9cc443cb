package notification

import (
	"log/slog"
	"net/http"

	"notify-dispatch/internal/common/pagination"
	"notify-dispatch/internal/usecase/dispatch"
)

// Register registers all notification-related HTTP handlers with the given mux.
// It sets up routes for submitting notifications and inspecting delivery state.
func Register(mux *http.ServeMux, svc dispatch.Service, paginationCfg pagination.Config, logger *slog.Logger) {
	mux.Handle("POST   /notifications", SubmitHandler{svc})

	mux.Handle("GET    /deliveries", ListHandler{
		Svc:           svc,
		PaginationCfg: paginationCfg,
		Logger:        logger,
	})
	mux.Handle("GET    /deliveries/", GetHandler{svc})
}
