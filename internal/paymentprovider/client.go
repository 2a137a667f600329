// Package paymentprovider реализует клиент платёжного шлюза Mercado Pago.
// Сервис держит у себя только ссылку на сессию оплаты; состояние платежа
// всегда перечитывается у шлюза и никогда не кешируется как истина.
package paymentprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/zoomarket/shop-subscriptions/internal/models"
)

// Client клиент Mercado Pago.
type Client struct {
	accessToken string
	apiURL      string
	currency    string
	httpClient  *http.Client
}

// NewClient создаёт новый клиент Mercado Pago. Таймаут ограничивает
// каждый запрос к шлюзу; его истечение трактуется как неизвестный итог.
func NewClient(accessToken, apiURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		accessToken: accessToken,
		apiURL:      apiURL,
		currency:    "ARS",
		httpClient:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	reqURL := c.apiURL + path
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// CreateSession создаёт checkout preference для оплаты подписки магазина
// и возвращает ссылку сессии и URL страницы оплаты.
// Сумма передаётся в сентаво и конвертируется в денежные единицы шлюза.
func (c *Client) CreateSession(ctx context.Context, shopName string, plan models.Plan, amount int64) (*Session, error) {
	const op = "paymentprovider.CreateSession"

	externalRef := uuid.NewString()
	reqParams := createPreferenceRequest{
		Items: []preferenceItem{{
			Title:      fmt.Sprintf("Подписка %s — %s", plan, shopName),
			Quantity:   1,
			UnitPrice:  float64(amount) / 100,
			CurrencyID: c.currency,
		}},
		ExternalReference: externalRef,
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/checkout/preferences", reqParams)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, models.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%s: %w: unexpected status %s", op, models.ErrGatewayUnavailable, resp.Status)
	}

	var prefResp createPreferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&prefResp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if prefResp.InitPoint == "" {
		return nil, fmt.Errorf("%s: %w: empty init_point in response", op, models.ErrGatewayUnavailable)
	}
	return &Session{Ref: externalRef, InitPoint: prefResp.InitPoint}, nil
}

// GetOutcome запрашивает у шлюза итог платежа по ссылке сессии.
// Таймауты и ошибки транспорта возвращаются как OutcomeUnknown вместе
// с models.ErrGatewayUnavailable: вызывающий логирует и повторяет позже.
// Повторный вызов не имеет побочных эффектов.
func (c *Client) GetOutcome(ctx context.Context, sessionRef string) (Outcome, error) {
	const op = "paymentprovider.GetOutcome"

	if sessionRef == "" {
		return OutcomeUnknown, nil
	}

	path := "/v1/payments/search?sort=date_created&criteria=desc&external_reference=" +
		url.QueryEscape(sessionRef)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return OutcomeUnknown, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return OutcomeUnknown, fmt.Errorf("%s: %w: %w", op, models.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return OutcomeUnknown, fmt.Errorf("%s: %w: unexpected status %s", op, models.ErrGatewayUnavailable, resp.Status)
	}

	var searchResp searchPaymentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return OutcomeUnknown, fmt.Errorf("%s: %w", op, err)
	}
	if len(searchResp.Results) == 0 {
		return OutcomeUnknown, nil
	}

	switch searchResp.Results[0].Status {
	case "approved":
		return OutcomeApproved, nil
	case "rejected", "cancelled":
		return OutcomeDeclined, nil
	default:
		return OutcomeUnknown, nil
	}
}

// ResolveSessionRef возвращает ссылку сессии (external_reference) по ID
// платежа из webhook-уведомления шлюза.
func (c *Client) ResolveSessionRef(ctx context.Context, paymentID string) (string, error) {
	const op = "paymentprovider.ResolveSessionRef"

	req, err := c.newRequest(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, models.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: %w: unexpected status %s", op, models.ErrGatewayUnavailable, resp.Status)
	}

	var detail paymentDetailResponse
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return detail.ExternalReference, nil
}

// IsGatewayUnavailable сообщает, является ли ошибка восстановимым
// сбоем шлюза.
func IsGatewayUnavailable(err error) bool {
	return errors.Is(err, models.ErrGatewayUnavailable)
}
