// Package register реализует HTTP-обработчик регистрации магазина.
//
// Handler принимает JSON-запрос с данными магазина, валидирует их,
// извлекает UID владельца из контекста и создаёт магазин со статусом
// pending_payment: до подтверждения оплаты подписки магазин скрыт.
package register

import (
	"context"
	"encoding/json"
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

// Handler обрабатывает запросы на регистрацию магазина.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики регистрации магазина
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики регистрации магазина.
type Service interface {
	RegisterShop(ctx context.Context, ownerUID string, req models.DummyShop) (*models.Shop, error)
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
// @Summary Зарегистрировать магазин
// @Description Создает магазин текущего владельца со статусом pending_payment.
// @Tags Shops
// @Accept  json
// @Produce  json
// @Param request body models.DummyShop true "Данные магазина"
// @Success 200 {object} map[string]any "Успешная регистрация магазина"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при регистрации"
// @Router /shops [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.shop.register"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyShop
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

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

	shop, err := h.service.RegisterShop(r.Context(), ownerUID, req)
	if err != nil {
		log.Error("failed to register shop", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not register shop"))
		return
	}

	log.Info("success to register shop", slog.String("shop_id", shop.ID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"shop": shop,
	}))
}
