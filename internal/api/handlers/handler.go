// handler.go — основной обработчик API CodeCatalyst.
// Объединяет health, файлы пользователя, каталог языков и выполнение кода
// и регистрирует маршруты на chi.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kishan6793/codecatalyst/internal/domain/model"
)

// FileService — операции с файлами пользователя (реализуется service.FileService).
type FileService interface {
	Create(ctx context.Context, userID, name, lang, code string) (model.CreateResult, error)
	Rename(ctx context.Context, userID, id, name string) (model.Outcome, error)
	UpdateCode(ctx context.Context, userID, id, code string) error
	Delete(ctx context.Context, userID, id string) error
	ListAll(ctx context.Context, userID string) ([]*model.FileRecord, error)
	SearchByPrefix(ctx context.Context, userID, prefix string) ([]*model.FileRecord, error)
	Get(ctx context.Context, userID, id string) (*model.FileRecord, error)
}

// Executor — вызов сервиса выполнения кода (реализуется execution.Client).
type Executor interface {
	Execute(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResponse, error)
}

// APIHandler — основной обработчик API.
type APIHandler struct {
	health   *HealthHandler
	files    FileService
	executor Executor
	logger   *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	files FileService,
	executor Executor,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:   health,
		files:    files,
		executor: executor,
		logger:   logger.With(slog.String("component", "api_handler")),
	}
}

// Routes описывает маршруты API. userMiddlewares применяются к /api/v1/users/{user_id}
// (JWT и проверка владельца), validate проверяет тело запроса и может быть nil.
func (h *APIHandler) Routes(
	r chi.Router,
	validate func(http.Handler) http.Handler,
	userMiddlewares ...func(http.Handler) http.Handler,
) {
	if validate == nil {
		validate = func(next http.Handler) http.Handler { return next }
	}

	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/languages", h.ListLanguages)
		r.With(validate).Post("/execute", h.ExecuteCode)

		// Проверка тела по контракту идёт после аутентификации.
		r.Route("/users/{user_id}", func(r chi.Router) {
			r.Use(userMiddlewares...)
			r.Use(validate)

			r.Get("/files", h.ListFiles)
			r.Post("/files", h.CreateFile)
			r.Get("/files/search", h.SearchFiles)
			r.Get("/files/{file_id}", h.GetFile)
			r.Patch("/files/{file_id}", h.RenameFile)
			r.Delete("/files/{file_id}", h.DeleteFile)
			r.Put("/files/{file_id}/code", h.UpdateFileCode)
		})
	})
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает JSON-тело запроса (не больше maxBodyBytes).
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

// maxBodyBytes — предельный размер тела запроса (исходник файла).
const maxBodyBytes = 2 << 20
