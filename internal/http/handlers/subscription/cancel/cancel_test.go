package cancel

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/zoomarket/shop-subscriptions/internal/http/middlewarectx"
	"github.com/zoomarket/shop-subscriptions/internal/models"
)

// MockService реализует интерфейс cancel.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Cancel(ctx context.Context, ownerUID, shopID string) (*models.Subscription, error) {
	args := m.Called(ctx, ownerUID, shopID)
	if res := args.Get(0); res != nil {
		return res.(*models.Subscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestCancelHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	const shopID = "b1f1aa00-0000-4000-8000-000000000001"

	tests := []struct {
		name           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "успешная отмена подписки",
			setupMock: func(m *MockService) {
				sub := &models.Subscription{
					ID:        "sub-1",
					ShopID:    shopID,
					Status:    models.SubscriptionCancelled,
					AutoRenew: false,
				}
				m.On("Cancel", mock.Anything, "owner-1001", shopID).Return(sub, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"Status":"cancelled"`,
		},
		{
			name: "активной подписки нет",
			setupMock: func(m *MockService) {
				m.On("Cancel", mock.Anything, "owner-1001", shopID).
					Return(nil, models.ErrInvalidState)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"error":"shop has no active subscription"`,
		},
		{
			name: "магазин не найден",
			setupMock: func(m *MockService) {
				m.On("Cancel", mock.Anything, "owner-1001", shopID).
					Return(nil, models.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"error":"subscription not found"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodDelete, "/subscriptions/"+shopID, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", shopID)
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			ctx = context.WithValue(ctx, middlewarectx.OwnerUID, "owner-1001")
			req = req.WithContext(ctx)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
