// Package read реализует HTTP-обработчик получения текущей подписки магазина.
//
// Handler извлекает ID магазина из URL-параметров, вызывает бизнес-логику
// чтения и возвращает данные подписки в JSON-формате. Отсутствие подписки
// отличимо от сбоя хранилища: первое даёт 404, второе — 500.
package read

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/zoomarket/shop-subscriptions/internal/http/middlewarectx"
	"github.com/zoomarket/shop-subscriptions/internal/http/response"
	"github.com/zoomarket/shop-subscriptions/internal/lib/sl"
	"github.com/zoomarket/shop-subscriptions/internal/models"
)

// Handler обрабатывает запросы на получение текущей подписки магазина.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики чтения подписки
}

// Service описывает интерфейс бизнес-логики чтения подписки.
type Service interface {
	Read(ctx context.Context, ownerUID, shopID string) (*models.Subscription, error)
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Получить текущую подписку магазина
// @Description Возвращает текущую подписку магазина текущего владельца.
// @Tags Subscriptions
// @Produce  json
// @Param id path string true "UUID магазина"
// @Success 200 {object} map[string]any "Данные подписки"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Магазин или подписка не найдены"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при чтении подписки"
// @Router /subscriptions/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.read"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	shopID := chi.URLParam(r, "id")

	ownerUID, ok := r.Context().Value(middlewarectx.OwnerUID).(string)
	if !ok || ownerUID == "" {
		log.Error("owner uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	sub, err := h.service.Read(r.Context(), ownerUID, shopID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		log.Info("subscription not found", slog.String("shop_id", shopID))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("subscription not found"))
		return
	case err != nil:
		log.Error("failed to read subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read subscription"))
		return
	}

	log.Info("success to read subscription", slog.String("subscription_id", sub.ID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscription": sub,
	}))
}
