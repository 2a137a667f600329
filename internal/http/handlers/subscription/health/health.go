// Package health реализует HTTP-обработчик проверки готовности сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/zoomarket/shop-subscriptions/internal/http/response"
	"github.com/zoomarket/shop-subscriptions/internal/lib/sl"
)

// Checker описывает проверку готовности хранилища.
type Checker interface {
	CheckDatabaseReady(ctx context.Context) error
}

// Handler обрабатывает запросы проверки готовности.
type Handler struct {
	log     *slog.Logger
	checker Checker
}

// New создает новый Handler с переданным логгером и проверкой хранилища.
func New(log *slog.Logger, checker Checker) *Handler {
	return &Handler{
		log:     log,
		checker: checker,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.health"
	log := h.log.With(slog.String("op", op))

	if err := h.checker.CheckDatabaseReady(r.Context()); err != nil {
		log.Error("database is not ready", sl.Err(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("database is not ready"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"status": "ok",
	}))
}
