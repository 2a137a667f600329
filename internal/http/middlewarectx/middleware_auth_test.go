package middlewarectx_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoomarket/shop-subscriptions/internal/http/middlewarectx"
	"github.com/zoomarket/shop-subscriptions/internal/lib/jwt"
)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestJWTMiddleware(t *testing.T) {
	maker := jwt.NewJWTMaker("test-secret", time.Hour)
	validToken, err := maker.GenerateToken("owner-1001", "merchant")
	require.NoError(t, err)

	expiredMaker := jwt.NewJWTMaker("test-secret", -time.Hour)
	expiredToken, err := expiredMaker.GenerateToken("owner-1001", "merchant")
	require.NoError(t, err)

	foreignMaker := jwt.NewJWTMaker("other-secret", time.Hour)
	foreignToken, err := foreignMaker.GenerateToken("owner-1001", "merchant")
	require.NoError(t, err)

	handlerCalled := false
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		ownerUID := r.Context().Value(middlewarectx.OwnerUID)
		role := r.Context().Value(middlewarectx.Role)
		assert.Equal(t, "owner-1001", ownerUID)
		assert.Equal(t, "merchant", role)
		w.WriteHeader(http.StatusOK)
	})

	mw := middlewarectx.JWTMiddleware(maker, newNoopLogger())(nextHandler)

	tests := []struct {
		name           string
		authHeader     string
		wantStatusCode int
		wantCalled     bool
	}{
		{
			name:           "отсутствует заголовок Authorization",
			authHeader:     "",
			wantStatusCode: http.StatusUnauthorized,
			wantCalled:     false,
		},
		{
			name:           "неверный префикс заголовка",
			authHeader:     "Basic sometoken",
			wantStatusCode: http.StatusUnauthorized,
			wantCalled:     false,
		},
		{
			name:           "просроченный токен",
			authHeader:     "Bearer " + expiredToken,
			wantStatusCode: http.StatusUnauthorized,
			wantCalled:     false,
		},
		{
			name:           "токен с чужой подписью",
			authHeader:     "Bearer " + foreignToken,
			wantStatusCode: http.StatusUnauthorized,
			wantCalled:     false,
		},
		{
			name:           "валидный токен",
			authHeader:     "Bearer " + validToken,
			wantStatusCode: http.StatusOK,
			wantCalled:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled = false

			req := httptest.NewRequest(http.MethodGet, "/somepath", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			rec := httptest.NewRecorder()
			mw.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Equal(t, tt.wantCalled, handlerCalled)
		})
	}
}
