package create

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/zoomarket/shop-subscriptions/internal/http/middlewarectx"
	"github.com/zoomarket/shop-subscriptions/internal/models"
)

// MockService реализует интерфейс create.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Create(ctx context.Context, ownerUID string, req models.DummySubscription) (*models.Subscription, string, error) {
	args := m.Called(ctx, ownerUID, req)
	if res := args.Get(0); res != nil {
		return res.(*models.Subscription), args.String(1), args.Error(2)
	}
	return nil, args.String(1), args.Error(2)
}

func TestCreateHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	const shopID = "b1f1aa00-0000-4000-8000-000000000001"
	validBody := `{"shop_id":"` + shopID + `","plan":"retailer","auto_renew":true}`

	tests := []struct {
		name           string
		body           string
		ownerUID       string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:     "успешное создание подписки",
			body:     validBody,
			ownerUID: "owner-1001",
			setupMock: func(m *MockService) {
				sub := &models.Subscription{
					ID:     "sub-1",
					ShopID: shopID,
					Plan:   models.PlanRetailer,
					Status: models.SubscriptionPending,
				}
				m.On("Create", mock.Anything, "owner-1001", mock.AnythingOfType("models.DummySubscription")).
					Return(sub, "https://mp.test/init/abc", nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"init_point":"https://mp.test/init/abc"`,
		},
		{
			name:           "некорректный JSON",
			body:           `not a json`,
			ownerUID:       "owner-1001",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"invalid request body"`,
		},
		{
			name:           "ошибка валидации: неизвестный тариф",
			body:           `{"shop_id":"` + shopID + `","plan":"golden"}`,
			ownerUID:       "owner-1001",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field Plan must be one of`,
		},
		{
			name:           "нет владельца в контексте",
			body:           validBody,
			ownerUID:       "",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"error":"unauthorized"`,
		},
		{
			name:     "конфликт: уже есть текущая подписка",
			body:     validBody,
			ownerUID: "owner-1001",
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, "owner-1001", mock.AnythingOfType("models.DummySubscription")).
					Return(nil, "", models.ErrConflict)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"error":"shop already has a pending or active subscription"`,
		},
		{
			name:     "магазин не найден",
			body:     validBody,
			ownerUID: "owner-1001",
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, "owner-1001", mock.AnythingOfType("models.DummySubscription")).
					Return(nil, "", models.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"error":"shop not found"`,
		},
		{
			name:     "платёжный шлюз недоступен",
			body:     validBody,
			ownerUID: "owner-1001",
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, "owner-1001", mock.AnythingOfType("models.DummySubscription")).
					Return(nil, "", models.ErrGatewayUnavailable)
			},
			expectedStatus: http.StatusBadGateway,
			expectedBody:   `"error":"payment gateway unavailable`,
		},
		{
			name:     "ошибка хранилища",
			body:     validBody,
			ownerUID: "owner-1001",
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, "owner-1001", mock.AnythingOfType("models.DummySubscription")).
					Return(nil, "", errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"could not create subscription"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/subscriptions", strings.NewReader(tt.body))
			if tt.ownerUID != "" {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.OwnerUID, tt.ownerUID))
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
