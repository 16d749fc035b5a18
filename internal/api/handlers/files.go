// files.go — обработчики /api/v1/users/{user_id}/files.
// Дубликат имени — 409 DUPLICATE_NAME, сбой хранилища — 500.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/kishan6793/codecatalyst/internal/api/errors"
	"github.com/kishan6793/codecatalyst/internal/domain/model"
)

// fileListResponse — ответ списка и поиска.
type fileListResponse struct {
	Files []*model.FileRecord `json:"files"`
}

type createFileRequest struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	Code     string `json:"code"`
}

type renameFileRequest struct {
	Name string `json:"name"`
}

type updateCodeRequest struct {
	Code string `json:"code"`
}

// ListFiles — GET /users/{user_id}/files.
func (h *APIHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	files, err := h.files.ListAll(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, "список файлов", err)
		return
	}
	writeJSON(w, http.StatusOK, fileListResponse{Files: files})
}

// SearchFiles — GET /users/{user_id}/files/search?prefix=.
func (h *APIHandler) SearchFiles(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	files, err := h.files.SearchByPrefix(r.Context(), userID, r.URL.Query().Get("prefix"))
	if err != nil {
		h.writeServiceError(w, r, "поиск файлов", err)
		return
	}
	writeJSON(w, http.StatusOK, fileListResponse{Files: files})
}

// GetFile — GET /users/{user_id}/files/{file_id}.
func (h *APIHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	f, err := h.files.Get(r.Context(), chi.URLParam(r, "user_id"), chi.URLParam(r, "file_id"))
	if err != nil {
		h.writeServiceError(w, r, "получение файла", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// CreateFile — POST /users/{user_id}/files. 201 {id} или 409.
func (h *APIHandler) CreateFile(w http.ResponseWriter, r *http.Request) {
	var req createFileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	res, err := h.files.Create(r.Context(), chi.URLParam(r, "user_id"), req.Name, req.Language, req.Code)
	if err != nil {
		h.writeServiceError(w, r, "создание файла", err)
		return
	}
	if res.Outcome == model.OutcomeDuplicateName {
		apierrors.DuplicateName(w, "Файл с таким именем уже существует")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": res.ID})
}

// RenameFile — PATCH /users/{user_id}/files/{file_id}. 200 или 409.
func (h *APIHandler) RenameFile(w http.ResponseWriter, r *http.Request) {
	var req renameFileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	fileID := chi.URLParam(r, "file_id")
	outcome, err := h.files.Rename(r.Context(), chi.URLParam(r, "user_id"), fileID, req.Name)
	if err != nil {
		h.writeServiceError(w, r, "переименование файла", err)
		return
	}
	if outcome == model.OutcomeDuplicateName {
		apierrors.DuplicateName(w, "Файл с таким именем уже существует")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": fileID, "name": req.Name})
}

// UpdateFileCode — PUT /users/{user_id}/files/{file_id}/code. 204 или 404.
func (h *APIHandler) UpdateFileCode(w http.ResponseWriter, r *http.Request) {
	var req updateCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	err := h.files.UpdateCode(r.Context(), chi.URLParam(r, "user_id"), chi.URLParam(r, "file_id"), req.Code)
	if err != nil {
		h.writeServiceError(w, r, "сохранение кода", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteFile — DELETE /users/{user_id}/files/{file_id}. Всегда 204, если хранилище доступно.
func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := h.files.Delete(r.Context(), chi.URLParam(r, "user_id"), chi.URLParam(r, "file_id")); err != nil {
		h.writeServiceError(w, r, "удаление файла", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError переводит доменную ошибку в HTTP-ответ.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, model.ErrNotFound):
		apierrors.NotFound(w, "Файл не найден")
	default:
		h.logger.Error("Ошибка операции с файлами",
			slog.String("op", op),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка: "+op)
	}
}
