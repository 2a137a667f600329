// Package create реализует HTTP-обработчик создания подписки магазина.
//
// Handler принимает JSON-запрос с тарифом и ID магазина, валидирует его,
// извлекает UID владельца из контекста, вызывает бизнес-логику создания
// подписки и возвращает подписку вместе с URL страницы оплаты.
//
// В случае ошибок формируются соответствующие HTTP-ответы с описанием проблемы.
package create

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/zoomarket/shop-subscriptions/internal/http/middlewarectx"
	"github.com/zoomarket/shop-subscriptions/internal/http/response"
	"github.com/zoomarket/shop-subscriptions/internal/lib/sl"
	"github.com/zoomarket/shop-subscriptions/internal/models"
)

// Handler управляет HTTP-запросами на создание подписок.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики создания подписок
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики создания подписки.
type Service interface {
	Create(ctx context.Context, ownerUID string, req models.DummySubscription) (*models.Subscription, string, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создать подписку магазина
// @Description Создает подписку для магазина текущего владельца и платёжную сессию. Возвращает подписку и ссылку на страницу оплаты.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param request body models.DummySubscription true "Данные новой подписки"
// @Success 200 {object} map[string]any "Успешное создание подписки"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Магазин не найден"
// @Failure 409 {object} response.ErrorResponse "У магазина уже есть текущая подписка"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 502 {object} response.ErrorResponse "Платёжный шлюз недоступен"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при создании подписки"
// @Router /subscriptions [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummySubscription
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	log.Info("request body decoded", slog.Any("request", req))

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	ownerUID, ok := r.Context().Value(middlewarectx.OwnerUID).(string)
	if !ok || ownerUID == "" {
		log.Error("owner uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	sub, initPoint, err := h.service.Create(r.Context(), ownerUID, req)
	switch {
	case errors.Is(err, models.ErrConflict):
		log.Error("subscription already exists", sl.Err(err))
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("shop already has a pending or active subscription"))
		return
	case errors.Is(err, models.ErrNotFound):
		log.Error("shop not found", sl.Err(err))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("shop not found"))
		return
	case errors.Is(err, models.ErrGatewayUnavailable):
		log.Error("payment gateway unavailable", sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("payment gateway unavailable, try again later"))
		return
	case err != nil:
		log.Error("failed to create subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create subscription"))
		return
	}

	log.Info("success to create subscription", slog.String("subscription_id", sub.ID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscription": sub,
		"init_point":   initPoint,
	}))
}
