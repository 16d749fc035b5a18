// execute.go — каталог языков и прокси к сервису выполнения кода.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/kishan6793/codecatalyst/internal/api/errors"
	"github.com/kishan6793/codecatalyst/internal/domain/language"
	"github.com/kishan6793/codecatalyst/internal/domain/model"
)

type languageListResponse struct {
	Languages []language.Language `json:"languages"`
}

type executeResultResponse struct {
	Output           string             `json:"output"`
	Source           model.OutputSource `json:"source"`
	IsTransportError bool               `json:"is_transport_error"`
}

// ListLanguages — GET /languages.
func (h *APIHandler) ListLanguages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, languageListResponse{Languages: language.All()})
}

// ExecuteCode — POST /execute. Язык должен быть в каталоге; версия по умолчанию — из каталога.
// Ответ нормализован: stdout, затем stderr, затем "No output received.".
func (h *APIHandler) ExecuteCode(w http.ResponseWriter, r *http.Request) {
	var req model.ExecutionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	lang, ok := language.Lookup(req.Language)
	if !ok {
		apierrors.ValidationError(w, "Неизвестный язык: "+req.Language)
		return
	}
	if req.Version == "" {
		req.Version = lang.Version
	}

	resp, err := h.executor.Execute(r.Context(), req)
	if err != nil {
		if errors.Is(err, model.ErrTransport) {
			h.logger.Warn("Сервис выполнения недоступен",
				slog.String("language", req.Language),
				slog.String("error", err.Error()),
			)
			apierrors.ExecutionUnavailable(w, model.TransportErrorMessage)
			return
		}
		h.logger.Error("Ошибка выполнения кода", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка при выполнении кода")
		return
	}

	res := model.NormalizeResponse(resp)
	writeJSON(w, http.StatusOK, executeResultResponse{
		Output:           res.Output,
		Source:           res.Source,
		IsTransportError: res.IsTransportError,
	})
}
