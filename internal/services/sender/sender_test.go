package services

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/zoomarket/shop-subscriptions/internal/lib/smtp"
	"github.com/zoomarket/shop-subscriptions/internal/models"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect() (smtp.Client, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(smtp.Client), args.Error(1)
}

func (m *MockTransport) GetSMTPUser() string {
	args := m.Called()
	return args.String(0)
}

type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) Mail(from string) error {
	args := m.Called(from)
	return args.Error(0)
}

func (m *MockSMTPClient) Rcpt(to string) error {
	args := m.Called(to)
	return args.Error(0)
}

func (m *MockSMTPClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

func (m *MockSMTPClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockSMTPClient) Quit() error {
	args := m.Called()
	return args.Error(0)
}

type MockSMTPWriter struct {
	mock.Mock
}

func (m *MockSMTPWriter) Write(p []byte) (n int, err error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockSMTPWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func expiredEventBody(t *testing.T) []byte {
	t.Helper()
	end := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	body, err := json.Marshal(models.LifecycleEvent{
		ShopID:     "shop123",
		ShopName:   "Лапки и хвосты",
		OwnerEmail: "owner@example.com",
		Plan:       models.PlanRetailer,
		EndDate:    &end,
	})
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func setupHappySMTP(transport *MockTransport) {
	mockClient := new(MockSMTPClient)
	mockWriter := new(MockSMTPWriter)

	transport.On("GetSMTPUser").Return("noreply@zoomarket.example")
	transport.On("Connect").Return(mockClient, nil).Once()
	mockClient.On("Mail", "noreply@zoomarket.example").Return(nil).Once()
	mockClient.On("Rcpt", "owner@example.com").Return(nil).Once()
	mockClient.On("Data").Return(mockWriter, nil).Once()
	mockWriter.On("Write", mock.AnythingOfType("[]uint8")).Return(100, nil).Once()
	mockWriter.On("Close").Return(nil).Once()
	mockClient.On("Quit").Return(nil).Once()
	mockClient.On("Close").Return(nil).Once()
}

func TestSenderService_SendShopHiddenNotice(t *testing.T) {
	tests := []struct {
		name          string
		body          []byte
		setupMocks    func(*MockTransport)
		expectedError bool
		errorMessage  string
	}{
		{
			name:          "успех - письмо об истечении отправлено",
			body:          expiredEventBody(t),
			setupMocks:    setupHappySMTP,
			expectedError: false,
		},
		{
			name: "некорректный JSON",
			body: []byte(`invalid json`),
			setupMocks: func(_ *MockTransport) {
			},
			expectedError: true,
			errorMessage:  "error unmarshalling message",
		},
		{
			name: "ошибка подключения к SMTP",
			body: expiredEventBody(t),
			setupMocks: func(transport *MockTransport) {
				transport.On("GetSMTPUser").Return("noreply@zoomarket.example")
				transport.On("Connect").Return(nil, errors.New("connection error")).Once()
			},
			expectedError: true,
			errorMessage:  "connection error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := new(MockTransport)
			service := NewSenderService(transport, newNoopLogger())

			tt.setupMocks(transport)

			err := service.SendShopHiddenNotice(tt.body)

			if tt.expectedError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMessage)
			} else {
				assert.NoError(t, err)
			}

			transport.AssertExpectations(t)
		})
	}
}

func TestSenderService_SendRenewalNotice(t *testing.T) {
	end := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	body, err := json.Marshal(models.LifecycleEvent{
		ShopID:     "shop123",
		ShopName:   "Лапки и хвосты",
		OwnerEmail: "owner@example.com",
		Plan:       models.PlanWholesaler,
		EndDate:    &end,
		InitPoint:  "https://mp.test/init/abc",
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name          string
		body          []byte
		setupMocks    func(*MockTransport)
		expectedError bool
		errorMessage  string
	}{
		{
			name:          "успех - письмо о продлении со ссылкой на оплату",
			body:          body,
			setupMocks:    setupHappySMTP,
			expectedError: false,
		},
		{
			name: "некорректный JSON",
			body: []byte(`invalid json`),
			setupMocks: func(_ *MockTransport) {
			},
			expectedError: true,
			errorMessage:  "error unmarshalling message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := new(MockTransport)
			service := NewSenderService(transport, newNoopLogger())

			tt.setupMocks(transport)

			err := service.SendRenewalNotice(tt.body)

			if tt.expectedError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMessage)
			} else {
				assert.NoError(t, err)
			}

			transport.AssertExpectations(t)
		})
	}
}

func TestSenderService_SMTPErrorHandling(t *testing.T) {
	body := expiredEventBody(t)

	tests := []struct {
		name         string
		setupMocks   func(*MockTransport)
		errorMessage string
	}{
		{
			name: "ошибка MAIL FROM",
			setupMocks: func(transport *MockTransport) {
				mockClient := new(MockSMTPClient)

				transport.On("GetSMTPUser").Return("noreply@zoomarket.example")
				transport.On("Connect").Return(mockClient, nil).Once()
				mockClient.On("Mail", "noreply@zoomarket.example").Return(errors.New("mail error")).Once()
				mockClient.On("Close").Return(nil).Once()
			},
			errorMessage: "mail error",
		},
		{
			name: "ошибка RCPT TO",
			setupMocks: func(transport *MockTransport) {
				mockClient := new(MockSMTPClient)

				transport.On("GetSMTPUser").Return("noreply@zoomarket.example")
				transport.On("Connect").Return(mockClient, nil).Once()
				mockClient.On("Mail", "noreply@zoomarket.example").Return(nil).Once()
				mockClient.On("Rcpt", "owner@example.com").Return(errors.New("rcpt error")).Once()
				mockClient.On("Close").Return(nil).Once()
			},
			errorMessage: "rcpt error",
		},
		{
			name: "ошибка DATA",
			setupMocks: func(transport *MockTransport) {
				mockClient := new(MockSMTPClient)

				transport.On("GetSMTPUser").Return("noreply@zoomarket.example")
				transport.On("Connect").Return(mockClient, nil).Once()
				mockClient.On("Mail", "noreply@zoomarket.example").Return(nil).Once()
				mockClient.On("Rcpt", "owner@example.com").Return(nil).Once()
				mockClient.On("Data").Return(nil, errors.New("data error")).Once()
				mockClient.On("Close").Return(nil).Once()
			},
			errorMessage: "data error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := new(MockTransport)
			service := NewSenderService(transport, newNoopLogger())

			tt.setupMocks(transport)

			err := service.SendShopHiddenNotice(body)

			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMessage)

			transport.AssertExpectations(t)
		})
	}
}
