// Package mercadopago предоставляет клиент платёжного шлюза MercadoPago:
// создание платёжной ссылки (preference) и получение сведений о платеже.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// DefaultBaseURL — адрес API MercadoPago.
const DefaultBaseURL = "https://api.mercadopago.com"

// ErrNotConfigured возвращается, если приватный токен доступа не задан
// в конфигурации.
var ErrNotConfigured = errors.New("mercadopago access token not configured")

// Client инкапсулирует HTTP-взаимодействие с MercadoPago.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	retryClient *retryablehttp.Client
}

// NewClient создаёт клиент MercadoPago. Пустой baseURL заменяется адресом
// боевого API; тесты подставляют адрес httptest-сервера.
func NewClient(accessToken, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.HTTPClient.Timeout = 5 * time.Second
	retryClient.Logger = nil

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		retryClient: retryClient,
	}
}

// PreferenceItem описывает одну позицию платёжной ссылки.
type PreferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

// Phone — телефон плательщика в формате MercadoPago.
type Phone struct {
	Number string `json:"number"`
}

// Identification — документ плательщика.
type Identification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

// PayerAddress — адрес плательщика.
type PayerAddress struct {
	StreetName string `json:"street_name"`
	ZipCode    string `json:"zip_code"`
}

// Payer описывает плательщика платёжной ссылки.
type Payer struct {
	Name           string         `json:"name"`
	Surname        string         `json:"surname"`
	Email          string         `json:"email"`
	Phone          Phone          `json:"phone"`
	Identification Identification `json:"identification"`
	Address        PayerAddress   `json:"address"`
}

// BackURLs — адреса возврата покупателя после оплаты.
type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

// PreferenceRequest — тело запроса на создание платёжной ссылки.
// ExternalReference хранит идентификатор заказа, NotificationURL — адрес
// webhook для асинхронных уведомлений об оплате.
type PreferenceRequest struct {
	Items               []PreferenceItem `json:"items"`
	Payer               Payer            `json:"payer"`
	BackURLs            BackURLs         `json:"back_urls"`
	AutoReturn          string           `json:"auto_return"`
	ExternalReference   string           `json:"external_reference"`
	NotificationURL     string           `json:"notification_url"`
	StatementDescriptor string           `json:"statement_descriptor"`
}

// Preference — ответ на создание платёжной ссылки. InitPoint — URL
// платёжной страницы, на которую перенаправляется покупатель.
type Preference struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

// Payment — сведения о платеже. Status приходит в терминах шлюза:
// approved, pending, in_process, rejected и так далее.
type Payment struct {
	ID                int64  `json:"id"`
	Status            string `json:"status"`
	ExternalReference string `json:"external_reference"`
}

// CreatePreference создаёт платёжную ссылку. Выполняется одна попытка:
// повтор при сбое остаётся за покупателем.
func (c *Client) CreatePreference(ctx context.Context, pref PreferenceRequest) (*Preference, error) {
	if c == nil || c.accessToken == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(pref)
	if err != nil {
		return nil, fmt.Errorf("encode preference: %w", err)
	}

	url := c.baseURL + "/checkout/preferences"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("create preference: unexpected status %d", resp.StatusCode)
	}

	var result Preference
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &result, nil
}

// GetPayment запрашивает платёж по идентификатору из уведомления.
// Статусу из тела webhook доверять нельзя, источником истины считается
// только этот запрос. GET идемпотентен, поэтому выполняется с ретраями.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if c == nil || c.accessToken == "" {
		return nil, ErrNotConfigured
	}

	url := fmt.Sprintf("%s/v1/payments/%s", c.baseURL, paymentID)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.retryClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get payment: unexpected status %d", resp.StatusCode)
	}

	var result Payment
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &result, nil
}
