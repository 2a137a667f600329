// Package cancel реализует HTTP-обработчик отмены подписки магазина.
//
// Handler извлекает ID магазина из URL-параметров и вызывает бизнес-логику
// отмены. Отмена вступает в силу с даты окончания: магазин остаётся видимым
// до неё, возврата платежа не происходит.
package cancel

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

// Handler обрабатывает запросы на отмену подписки.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики отмены подписки
}

// Service описывает интерфейс бизнес-логики отмены подписки.
type Service interface {
	Cancel(ctx context.Context, ownerUID, shopID string) (*models.Subscription, error)
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Отменить подписку магазина
// @Description Отменяет активную подписку. Магазин остаётся видимым до даты окончания.
// @Tags Subscriptions
// @Produce  json
// @Param id path string true "UUID магазина"
// @Success 200 {object} map[string]any "Отменённая подписка"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Магазин или подписка не найдены"
// @Failure 409 {object} response.ErrorResponse "Активной подписки нет"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при отмене подписки"
// @Router /subscriptions/{id} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.cancel"
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

	sub, err := h.service.Cancel(r.Context(), ownerUID, shopID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		log.Info("subscription not found", slog.String("shop_id", shopID))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("subscription not found"))
		return
	case errors.Is(err, models.ErrInvalidState):
		log.Error("no active subscription to cancel", sl.Err(err))
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("shop has no active subscription"))
		return
	case err != nil:
		log.Error("failed to cancel subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not cancel subscription"))
		return
	}

	log.Info("success to cancel subscription", slog.String("subscription_id", sub.ID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscription": sub,
	}))
}
