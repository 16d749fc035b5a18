// Пакет apiclient — HTTP-клиент API файлов CodeCatalyst.
// Реализует session.Store: дубликат имени (409) — штатный исход,
// сетевые сбои и 5xx — model.ErrTransport.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kishan6793/codecatalyst/internal/domain/language"
	"github.com/kishan6793/codecatalyst/internal/domain/model"
)

// maxErrorBody — сколько байт тела ошибки читать для сообщения.
const maxErrorBody = 4 << 10

// ErrUnauthorized — токен отклонён сервером (401/403).
var ErrUnauthorized = errors.New("доступ запрещён")

// Client — HTTP-клиент API файлов.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string //nolint:gosec // G101: поле структуры, не содержит секрет напрямую
	logger     *slog.Logger
}

// New создаёт клиент API.
// baseURL — адрес сервера (например, http://localhost:8040), token — JWT пользователя.
func New(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		logger:     logger.With(slog.String("component", "api_client")),
	}
}

// fileList — ответ списка и поиска.
type fileList struct {
	Files []*model.FileRecord `json:"files"`
}

// errorEnvelope — тело ошибки сервера.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Create создаёт файл. POST /api/v1/users/{user_id}/files
func (c *Client) Create(ctx context.Context, userID, name, lang, code string) (model.CreateResult, error) {
	body := map[string]string{"name": name, "language": lang, "code": code}
	var created struct {
		ID string `json:"id"`
	}

	status, err := c.do(ctx, http.MethodPost, c.filesPath(userID), body, &created, http.StatusCreated)
	if err != nil {
		if status == http.StatusConflict {
			return model.CreateResult{Outcome: model.OutcomeDuplicateName}, nil
		}
		return model.CreateResult{}, err
	}
	if created.ID == "" {
		return model.CreateResult{}, fmt.Errorf("%w: сервер не вернул id файла", model.ErrTransport)
	}
	return model.CreateResult{Outcome: model.OutcomeOK, ID: created.ID}, nil
}

// Rename меняет имя файла. PATCH /api/v1/users/{user_id}/files/{file_id}
func (c *Client) Rename(ctx context.Context, userID, id, name string) (model.Outcome, error) {
	status, err := c.do(ctx, http.MethodPatch, c.filePath(userID, id), map[string]string{"name": name}, nil, http.StatusOK)
	if err != nil {
		if status == http.StatusConflict {
			return model.OutcomeDuplicateName, nil
		}
		return model.OutcomeOK, err
	}
	return model.OutcomeOK, nil
}

// UpdateCode сохраняет код файла. PUT /api/v1/users/{user_id}/files/{file_id}/code
func (c *Client) UpdateCode(ctx context.Context, userID, id, code string) error {
	_, err := c.do(ctx, http.MethodPut, c.filePath(userID, id)+"/code", map[string]string{"code": code}, nil, http.StatusNoContent)
	return err
}

// Delete удаляет файл. DELETE /api/v1/users/{user_id}/files/{file_id}
func (c *Client) Delete(ctx context.Context, userID, id string) error {
	_, err := c.do(ctx, http.MethodDelete, c.filePath(userID, id), nil, nil, http.StatusNoContent)
	return err
}

// ListAll возвращает все файлы пользователя. GET /api/v1/users/{user_id}/files
func (c *Client) ListAll(ctx context.Context, userID string) ([]*model.FileRecord, error) {
	var list fileList
	if _, err := c.do(ctx, http.MethodGet, c.filesPath(userID), nil, &list, http.StatusOK); err != nil {
		return nil, err
	}
	return nonNil(list.Files), nil
}

// SearchByPrefix ищет файлы по префиксу имени. GET /api/v1/users/{user_id}/files/search?prefix=
// Пустой префикс не уходит на сервер.
func (c *Client) SearchByPrefix(ctx context.Context, userID, prefix string) ([]*model.FileRecord, error) {
	if prefix == "" {
		return []*model.FileRecord{}, nil
	}
	path := c.filesPath(userID) + "/search?prefix=" + url.QueryEscape(prefix)

	var list fileList
	if _, err := c.do(ctx, http.MethodGet, path, nil, &list, http.StatusOK); err != nil {
		return nil, err
	}
	return nonNil(list.Files), nil
}

// Languages возвращает каталог языков сервера. GET /api/v1/languages
func (c *Client) Languages(ctx context.Context) ([]language.Language, error) {
	var resp struct {
		Languages []language.Language `json:"languages"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/languages", nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Languages, nil
}

func (c *Client) filesPath(userID string) string {
	return "/api/v1/users/" + url.PathEscape(userID) + "/files"
}

func (c *Client) filePath(userID, id string) string {
	return c.filesPath(userID) + "/" + url.PathEscape(id)
}

// do выполняет запрос и декодирует ответ в out (если out != nil).
// Возвращает HTTP-статус (0 при сетевой ошибке) и ошибку, классифицированную по статусу.
func (c *Client) do(ctx context.Context, method, path string, in, out any, want int) (int, error) {
	var body io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("сериализация запроса %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("создание запроса %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		c.logger.Warn("Сервер API недоступен",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("%w: %s %s: %w", model.ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Запрос к API выполнен",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode != want {
		return resp.StatusCode, classify(resp)
	}
	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: декодирование ответа %s %s: %w", model.ErrTransport, method, path, err)
	}
	return resp.StatusCode, nil
}

// classify превращает ответ с неожиданным статусом в доменную ошибку.
func classify(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(data))
	var env errorEnvelope
	if json.Unmarshal(data, &env) == nil && env.Error.Message != "" {
		msg = env.Error.Message
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", model.ErrNotFound, msg)
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", model.ErrValidation, msg)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("конфликт: %s", msg)
	default:
		return fmt.Errorf("%w: сервер вернул статус %d: %s", model.ErrTransport, resp.StatusCode, msg)
	}
}

func nonNil(files []*model.FileRecord) []*model.FileRecord {
	if files == nil {
		return []*model.FileRecord{}
	}
	return files
}
