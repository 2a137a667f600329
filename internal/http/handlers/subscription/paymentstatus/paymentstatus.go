// Package paymentstatus реализует HTTP-обработчик проверки статуса оплаты.
//
// Handler сверяет подписку с итогом платежа у шлюза и возвращает текущий
// статус с человекочитаемым сообщением. Сбой шлюза не является ошибкой
// запроса: подписка остаётся pending, клиенту предлагается повторить позже.
package paymentstatus

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

// Handler обрабатывает запросы на проверку статуса оплаты подписки.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики сверки платежа
}

// Service описывает интерфейс бизнес-логики сверки платежа.
type Service interface {
	CheckPayment(ctx context.Context, ownerUID, subscriptionID string) (*models.Subscription, error)
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// statusMessage возвращает текст для клиента по статусу подписки.
func statusMessage(status models.SubscriptionStatus) string {
	switch status {
	case models.SubscriptionPending:
		return "payment is pending, try again later"
	case models.SubscriptionActive:
		return "payment confirmed, subscription is active"
	case models.SubscriptionFailed:
		return "payment was declined, you can retry"
	case models.SubscriptionExpired:
		return "subscription has expired"
	case models.SubscriptionCancelled:
		return "subscription is cancelled"
	default:
		return "unknown subscription status"
	}
}

// ServeHTTP godoc
// @Summary Проверить статус оплаты подписки
// @Description Сверяет подписку с итогом платежа у шлюза. Возвращает статус и сообщение для клиента.
// @Tags Subscriptions
// @Produce  json
// @Param id path string true "UUID подписки"
// @Success 200 {object} map[string]any "Статус оплаты"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при проверке оплаты"
// @Router /subscriptions/{id}/payment-status [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.paymentstatus"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	subscriptionID := chi.URLParam(r, "id")

	ownerUID, ok := r.Context().Value(middlewarectx.OwnerUID).(string)
	if !ok || ownerUID == "" {
		log.Error("owner uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	sub, err := h.service.CheckPayment(r.Context(), ownerUID, subscriptionID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		log.Info("subscription not found", slog.String("subscription_id", subscriptionID))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("subscription not found"))
		return
	case err != nil:
		log.Error("failed to check payment", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not check payment status"))
		return
	}

	log.Info("success to check payment",
		slog.String("subscription_id", sub.ID), slog.String("status", string(sub.Status)))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"status":  sub.Status,
		"message": statusMessage(sub.Status),
	}))
}
