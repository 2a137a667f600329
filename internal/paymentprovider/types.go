package paymentprovider

// Outcome итог платежа по сессии, каким его сообщил шлюз.
type Outcome string

const (
	// OutcomeUnknown шлюз ещё не подтвердил и не отклонил платёж.
	// Сюда же сворачиваются таймауты и ошибки транспорта.
	OutcomeUnknown Outcome = "unknown"
	// OutcomeApproved платёж подтверждён.
	OutcomeApproved Outcome = "approved"
	// OutcomeDeclined платёж отклонён.
	OutcomeDeclined Outcome = "declined"
)

// Session созданная сессия оплаты: ссылка для проверки итога
// и URL страницы оплаты, который открывает клиент.
type Session struct {
	Ref       string // Внешняя ссылка, по которой ищется платёж
	InitPoint string // URL страницы оплаты
}

// Запрос на создание checkout preference
type createPreferenceRequest struct {
	Items             []preferenceItem `json:"items"`
	ExternalReference string           `json:"external_reference"`
}

type preferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

// Ответ Mercado Pago при создании checkout preference
type createPreferenceResponse struct {
	ID        string `json:"id"`         // ID preference у шлюза
	InitPoint string `json:"init_point"` // URL для перехода к оплате
}

// Ответ поиска платежей по external_reference
type searchPaymentsResponse struct {
	Results []paymentResult `json:"results"`
}

type paymentResult struct {
	ID     int64  `json:"id"`
	Status string `json:"status"` // approved, rejected, cancelled, pending, in_process
}

// Ответ по конкретному платежу
type paymentDetailResponse struct {
	ID                int64  `json:"id"`
	Status            string `json:"status"`
	ExternalReference string `json:"external_reference"`
}

// WebhookNotification входящее уведомление от Mercado Pago.
type WebhookNotification struct {
	Type   string `json:"type"`   // payment, merchant_order и т.п.
	Action string `json:"action"` // payment.created, payment.updated
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}
