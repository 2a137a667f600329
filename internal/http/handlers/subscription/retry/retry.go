// Package retry реализует HTTP-обработчик повторной оплаты подписки.
//
// Handler извлекает ID подписки из URL-параметров, вызывает бизнес-логику
// повтора и возвращает подписку и новую ссылку на оплату. Если платёж уже
// подтверждён, ссылка в ответе отсутствует.
package retry

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

// Handler обрабатывает запросы на повторную оплату подписки.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики повторной оплаты
}

// Service описывает интерфейс бизнес-логики повторной оплаты.
type Service interface {
	Retry(ctx context.Context, ownerUID, subscriptionID string) (*models.Subscription, string, error)
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Повторить оплату подписки
// @Description Расходует одну попытку из бюджета, создаёт новую платёжную сессию и возвращает ссылку на оплату. Если платёж уже подтверждён, ссылка отсутствует.
// @Tags Subscriptions
// @Produce  json
// @Param id path string true "UUID подписки"
// @Success 200 {object} map[string]any "Подписка и ссылка на оплату"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 409 {object} response.ErrorResponse "Повтор недопустим в текущем статусе или бюджет исчерпан"
// @Failure 502 {object} response.ErrorResponse "Платёжный шлюз недоступен"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при повторе оплаты"
// @Router /subscriptions/{id}/retry [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.retry"
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

	sub, initPoint, err := h.service.Retry(r.Context(), ownerUID, subscriptionID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		log.Info("subscription not found", slog.String("subscription_id", subscriptionID))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("subscription not found"))
		return
	case errors.Is(err, models.ErrRetryExhausted):
		log.Error("retry budget exhausted", sl.Err(err))
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("payment retry budget exhausted"))
		return
	case errors.Is(err, models.ErrInvalidState):
		log.Error("retry not allowed in current state", sl.Err(err))
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("retry is not allowed in current subscription state"))
		return
	case errors.Is(err, models.ErrGatewayUnavailable):
		log.Error("payment gateway unavailable", sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("payment gateway unavailable, try again later"))
		return
	case err != nil:
		log.Error("failed to retry payment", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not retry payment"))
		return
	}

	data := map[string]any{"subscription": sub}
	if initPoint != "" {
		data["init_point"] = initPoint
	}

	log.Info("success to retry payment",
		slog.String("subscription_id", sub.ID),
		slog.Int("attempts_remaining", sub.AttemptsRemaining))
	render.JSON(w, r, response.StatusOKWithData(data))
}
