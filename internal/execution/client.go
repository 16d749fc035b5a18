// Пакет execution — вызов внешнего сервиса выполнения кода
// и координация единственного выполнения в полёте.
package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/kishan6793/codecatalyst/internal/domain/model"
)

// maxResponseBytes ограничивает размер ответа сервиса выполнения.
const maxResponseBytes = 4 << 20

// Client — HTTP-клиент сервиса выполнения кода (POST JSON).
// Таймаут задаётся контекстом вызова, а не http.Client.
type Client struct {
	httpClient *http.Client
	url        string
	logger     *slog.Logger
}

// NewClient создаёт клиент сервиса выполнения. httpClient может быть nil.
func NewClient(url string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{MaxIdleConnsPerHost: 4},
		}
	}
	return &Client{
		httpClient: httpClient,
		url:        url,
		logger:     logger.With(slog.String("component", "execution_client")),
	}
}

// URL возвращает адрес endpoint выполнения.
func (c *Client) URL() string {
	return c.url
}

// Execute отправляет код на выполнение.
// Сетевая ошибка, отмена контекста и любой не-2xx статус — model.ErrTransport.
func (c *Client) Execute(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return model.ExecutionResponse{}, fmt.Errorf("сериализация запроса выполнения: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return model.ExecutionResponse{}, fmt.Errorf("создание запроса выполнения: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return model.ExecutionResponse{}, fmt.Errorf("%w: запрос к сервису выполнения: %w", model.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return model.ExecutionResponse{}, fmt.Errorf("%w: сервис выполнения вернул статус %d: %s",
			model.ErrTransport, resp.StatusCode, string(msg))
	}

	var out model.ExecutionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return model.ExecutionResponse{}, fmt.Errorf("%w: декодирование ответа выполнения: %w", model.ErrTransport, err)
	}

	c.logger.Debug("Ответ сервиса выполнения получен",
		slog.String("language", req.Language),
		slog.Int("stdout_len", len(out.Stdout)),
		slog.Int("stderr_len", len(out.Stderr)),
	)
	return out, nil
}
