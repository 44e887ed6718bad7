package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/exp/slog"

	"healthsync/internal/domain/health"
)

const (
	webhookPath = "/webhook/apple"
	healthPath  = "/api/v1/health"
	apiKeyHdr   = "x-api-key"
)

// Channel канал доставки тел вебхука
type Channel interface {
	Post(ctx context.Context, body []byte) error
}

type httpClient struct {
	client    *http.Client
	log       *slog.Logger
	baseURL   string
	apiKey    string
	userAgent string
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, log *slog.Logger) *httpClient {
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 10,
		},
	}

	return &httpClient{
		client:    client,
		log:       log.With(slog.String("component", "http_client")),
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		userAgent: "HealthSync-Client/1.0",
	}
}

// Post отправляет тело на вебхук. Ответ не из диапазона 2xx и ошибка транспорта
// возвращаются как ошибка класса KindDelivery.
func (h *httpClient) Post(ctx context.Context, body []byte) error {
	resp, err := h.doRequest(ctx, http.MethodPost, webhookPath, body)
	if err != nil {
		return health.NewError(health.KindDelivery, "post webhook", "", err)
	}

	if err := h.parseResponse(resp); err != nil {
		return health.NewError(health.KindDelivery, "post webhook", "", err).
			With("status", resp.StatusCode)
	}

	return nil
}

// HealthCheck проверяет доступность сервера
func (h *httpClient) HealthCheck(ctx context.Context) error {
	resp, err := h.doRequest(ctx, http.MethodGet, healthPath, nil)
	if err != nil {
		return fmt.Errorf("сервер недоступен: %w", err)
	}

	return h.parseResponse(resp)
}

func (h *httpClient) doRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	// Добавляем заголовки
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", h.userAgent)
	if h.apiKey != "" {
		req.Header.Set(apiKeyHdr, h.apiKey)
	}

	h.log.Debug("Отправка запроса",
		"method", method,
		"url", req.URL.String(),
		"size", len(body),
	)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}

	return resp, nil
}

func (h *httpClient) parseResponse(resp *http.Response) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	h.log.Debug("Получен ответ",
		"status", resp.StatusCode,
		"body", string(body),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp struct {
			Detail string `json:"detail"`
			Error  string `json:"error"`
		}
		if err := json.Unmarshal(body, &errResp); err == nil {
			if errResp.Error != "" {
				return fmt.Errorf("ошибка сервера: %s", errResp.Error)
			}
			if errResp.Detail != "" {
				return fmt.Errorf("ошибка сервера: %s", errResp.Detail)
			}
		}
		return fmt.Errorf("ошибка сервера: статус %d", resp.StatusCode)
	}

	return nil
}
