// Package paymentwebhook реализует HTTP-обработчик webhook-уведомлений
// платёжного шлюза Mercado Pago.
//
// Handler принимает уведомление {type, action, data: {id}}, для событий
// type=payment запускает идемпотентную сверку подписки по ID платежа.
// Уведомления без подходящей подписки подтверждаются кодом 200: иначе шлюз
// будет бесконечно повторять доставку.
package paymentwebhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zoomarket/shop-subscriptions/internal/lib/sl"
	"github.com/zoomarket/shop-subscriptions/internal/models"
	"github.com/zoomarket/shop-subscriptions/internal/paymentprovider"
)

// Service описывает интерфейс сверки подписки по ID платежа.
type Service interface {
	ReconcileByPaymentID(ctx context.Context, paymentID string) error
}

// Handler обрабатывает webhook-уведомления платёжного шлюза.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Webhook платёжного шлюза
// @Description Принимает уведомления Mercado Pago и запускает сверку подписки по ID платежа.
// @Tags Payments
// @Accept  json
// @Success 200 "Уведомление принято"
// @Failure 400 "Некорректное тело уведомления"
// @Failure 500 "Сбой сверки, шлюз повторит доставку"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(slog.String("op", op))

	var notification paymentprovider.WebhookNotification
	if err := json.NewDecoder(r.Body).Decode(&notification); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if notification.Type != "payment" || notification.Data.ID == "" {
		log.Info("ignored webhook notification", slog.String("type", notification.Type))
		w.WriteHeader(http.StatusOK)
		return
	}

	err := h.service.ReconcileByPaymentID(r.Context(), notification.Data.ID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		// Платёж не относится ни к одной подписке. Подтверждаем доставку,
		// иначе шлюз будет повторять уведомление.
		log.Info("webhook payment does not match any subscription",
			slog.String("payment_id", notification.Data.ID))
		w.WriteHeader(http.StatusOK)
		return
	case err != nil:
		log.Error("failed to process webhook notification", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	log.Info("webhook processed successfully", slog.String("payment_id", notification.Data.ID))
	w.WriteHeader(http.StatusOK)
}
