package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kishan6793/codecatalyst/internal/api/middleware"
	"github.com/kishan6793/codecatalyst/internal/api/openapi"
	"github.com/kishan6793/codecatalyst/internal/domain/model"
)

// mockFileService — мок FileService с функциональными полями.
type mockFileService struct {
	createFn     func(ctx context.Context, userID, name, lang, code string) (model.CreateResult, error)
	renameFn     func(ctx context.Context, userID, id, name string) (model.Outcome, error)
	updateCodeFn func(ctx context.Context, userID, id, code string) error
	deleteFn     func(ctx context.Context, userID, id string) error
	listAllFn    func(ctx context.Context, userID string) ([]*model.FileRecord, error)
	searchFn     func(ctx context.Context, userID, prefix string) ([]*model.FileRecord, error)
	getFn        func(ctx context.Context, userID, id string) (*model.FileRecord, error)
}

func (m *mockFileService) Create(ctx context.Context, userID, name, lang, code string) (model.CreateResult, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, name, lang, code)
	}
	return model.CreateResult{Outcome: model.OutcomeOK, ID: "f1"}, nil
}

func (m *mockFileService) Rename(ctx context.Context, userID, id, name string) (model.Outcome, error) {
	if m.renameFn != nil {
		return m.renameFn(ctx, userID, id, name)
	}
	return model.OutcomeOK, nil
}

func (m *mockFileService) UpdateCode(ctx context.Context, userID, id, code string) error {
	if m.updateCodeFn != nil {
		return m.updateCodeFn(ctx, userID, id, code)
	}
	return nil
}

func (m *mockFileService) Delete(ctx context.Context, userID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, id)
	}
	return nil
}

func (m *mockFileService) ListAll(ctx context.Context, userID string) ([]*model.FileRecord, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx, userID)
	}
	return []*model.FileRecord{}, nil
}

func (m *mockFileService) SearchByPrefix(ctx context.Context, userID, prefix string) ([]*model.FileRecord, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, userID, prefix)
	}
	return []*model.FileRecord{}, nil
}

func (m *mockFileService) Get(ctx context.Context, userID, id string) (*model.FileRecord, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, id)
	}
	return nil, model.ErrNotFound
}

// executorFunc адаптирует функцию к Executor.
type executorFunc func(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResponse, error)

func (f executorFunc) Execute(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResponse, error) {
	return f(ctx, req)
}

// staticChecker — ReadinessChecker с фиксированным ответом.
type staticChecker struct {
	status, message string
}

func (c staticChecker) CheckReady() (string, string) { return c.status, c.message }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestRouter(files FileService, exec Executor) http.Handler {
	if exec == nil {
		exec = executorFunc(func(context.Context, model.ExecutionRequest) (model.ExecutionResponse, error) {
			return model.ExecutionResponse{Stdout: "ok"}, nil
		})
	}
	h := NewAPIHandler(NewHealthHandler(staticChecker{status: "ok"}, nil), files, exec, testLogger())
	r := chi.NewRouter()
	h.Routes(r, nil)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("тело ошибки не JSON: %v (%s)", err, rec.Body.String())
	}
	return body.Error.Code
}

// TestCreateFile проверяет 201, 409 и 500.
func TestCreateFile(t *testing.T) {
	tests := []struct {
		name       string
		createFn   func(context.Context, string, string, string, string) (model.CreateResult, error)
		wantStatus int
		wantCode   string
	}{
		{
			name: "создан",
			createFn: func(_ context.Context, userID, name, _, _ string) (model.CreateResult, error) {
				if userID != "user-1" || name != "main" {
					t.Errorf("Create(%q, %q)", userID, name)
				}
				return model.CreateResult{Outcome: model.OutcomeOK, ID: "f1"}, nil
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "дубликат",
			createFn: func(context.Context, string, string, string, string) (model.CreateResult, error) {
				return model.CreateResult{Outcome: model.OutcomeDuplicateName}, nil
			},
			wantStatus: http.StatusConflict,
			wantCode:   "DUPLICATE_NAME",
		},
		{
			name: "неизвестный язык",
			createFn: func(context.Context, string, string, string, string) (model.CreateResult, error) {
				return model.CreateResult{}, model.ErrValidation
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name: "сбой хранилища",
			createFn: func(context.Context, string, string, string, string) (model.CreateResult, error) {
				return model.CreateResult{}, model.ErrTransport
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockFileService{createFn: tt.createFn}, nil)
			rec := do(t, router, http.MethodPost, "/api/v1/users/user-1/files",
				`{"name":"main","language":"python","code":"print(1)"}`)

			if rec.Code != tt.wantStatus {
				t.Fatalf("статус = %d, ожидался %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode != "" {
				if got := errorCode(t, rec); got != tt.wantCode {
					t.Errorf("код ошибки = %q, ожидался %q", got, tt.wantCode)
				}
				return
			}
			var created map[string]string
			_ = json.Unmarshal(rec.Body.Bytes(), &created)
			if created["id"] != "f1" {
				t.Errorf("ответ = %v", created)
			}
		})
	}
}

// TestRenameFile проверяет 200 и 409.
func TestRenameFile(t *testing.T) {
	svc := &mockFileService{
		renameFn: func(_ context.Context, _, id, name string) (model.Outcome, error) {
			if name == "taken" {
				return model.OutcomeDuplicateName, nil
			}
			if id != "f1" {
				t.Errorf("id = %q", id)
			}
			return model.OutcomeOK, nil
		},
	}
	router := newTestRouter(svc, nil)

	if rec := do(t, router, http.MethodPatch, "/api/v1/users/u/files/f1", `{"name":"fresh"}`); rec.Code != http.StatusOK {
		t.Errorf("статус = %d: %s", rec.Code, rec.Body.String())
	}
	rec := do(t, router, http.MethodPatch, "/api/v1/users/u/files/f1", `{"name":"taken"}`)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "DUPLICATE_NAME" {
		t.Errorf("статус = %d: %s", rec.Code, rec.Body.String())
	}
}

// TestUpdateFileCode проверяет 204 и 404.
func TestUpdateFileCode(t *testing.T) {
	svc := &mockFileService{
		updateCodeFn: func(_ context.Context, _, id, code string) error {
			if id == "gone" {
				return model.ErrNotFound
			}
			if code != "x = 1" {
				t.Errorf("code = %q", code)
			}
			return nil
		},
	}
	router := newTestRouter(svc, nil)

	if rec := do(t, router, http.MethodPut, "/api/v1/users/u/files/f1/code", `{"code":"x = 1"}`); rec.Code != http.StatusNoContent {
		t.Errorf("статус = %d", rec.Code)
	}
	if rec := do(t, router, http.MethodPut, "/api/v1/users/u/files/gone/code", `{"code":"x = 1"}`); rec.Code != http.StatusNotFound {
		t.Errorf("статус = %d", rec.Code)
	}
	if rec := do(t, router, http.MethodPut, "/api/v1/users/u/files/f1/code", `{bad`); rec.Code != http.StatusBadRequest {
		t.Errorf("битое тело: статус = %d", rec.Code)
	}
}

// TestDeleteFile проверяет 204.
func TestDeleteFile(t *testing.T) {
	var deleted string
	svc := &mockFileService{
		deleteFn: func(_ context.Context, _, id string) error {
			deleted = id
			return nil
		},
	}
	rec := do(t, newTestRouter(svc, nil), http.MethodDelete, "/api/v1/users/u/files/f9", "")
	if rec.Code != http.StatusNoContent || deleted != "f9" {
		t.Errorf("статус = %d, удалён %q", rec.Code, deleted)
	}
}

// TestListAndSearch проверяет список, поиск и маршрут search раньше {file_id}.
func TestListAndSearch(t *testing.T) {
	svc := &mockFileService{
		listAllFn: func(context.Context, string) ([]*model.FileRecord, error) {
			return []*model.FileRecord{{ID: "f1", Name: "main"}, {ID: "f2", Name: "util"}}, nil
		},
		searchFn: func(_ context.Context, _, prefix string) ([]*model.FileRecord, error) {
			if prefix != "ma" {
				t.Errorf("prefix = %q", prefix)
			}
			return []*model.FileRecord{{ID: "f1", Name: "main"}}, nil
		},
	}
	router := newTestRouter(svc, nil)

	var list fileListResponse
	rec := do(t, router, http.MethodGet, "/api/v1/users/u/files", "")
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if rec.Code != http.StatusOK || len(list.Files) != 2 {
		t.Errorf("список: статус %d, %d файлов", rec.Code, len(list.Files))
	}

	rec = do(t, router, http.MethodGet, "/api/v1/users/u/files/search?prefix=ma", "")
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if rec.Code != http.StatusOK || len(list.Files) != 1 {
		t.Errorf("поиск: статус %d, %d файлов", rec.Code, len(list.Files))
	}
}

// TestGetFile проверяет 200 и 404.
func TestGetFile(t *testing.T) {
	svc := &mockFileService{
		getFn: func(_ context.Context, _, id string) (*model.FileRecord, error) {
			if id == "f1" {
				return &model.FileRecord{ID: "f1", Name: "main", Language: "go", Code: "package main"}, nil
			}
			return nil, model.ErrNotFound
		},
	}
	router := newTestRouter(svc, nil)

	if rec := do(t, router, http.MethodGet, "/api/v1/users/u/files/f1", ""); rec.Code != http.StatusOK {
		t.Errorf("статус = %d", rec.Code)
	}
	rec := do(t, router, http.MethodGet, "/api/v1/users/u/files/zz", "")
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "NOT_FOUND" {
		t.Errorf("статус = %d: %s", rec.Code, rec.Body.String())
	}
}

// TestExecuteCode проверяет нормализацию, версию по умолчанию и недоступность сервиса.
func TestExecuteCode(t *testing.T) {
	var got model.ExecutionRequest
	exec := executorFunc(func(_ context.Context, req model.ExecutionRequest) (model.ExecutionResponse, error) {
		got = req
		if req.SourceCode == "fail" {
			return model.ExecutionResponse{}, model.ErrTransport
		}
		return model.ExecutionResponse{Stderr: "boom"}, nil
	})
	router := newTestRouter(&mockFileService{}, exec)

	rec := do(t, router, http.MethodPost, "/api/v1/execute", `{"language":"python","sourceCode":"raise"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d: %s", rec.Code, rec.Body.String())
	}
	var res executeResultResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &res)
	if res.Output != "boom" || res.Source != model.OutputStderr || res.IsTransportError {
		t.Errorf("результат = %+v", res)
	}
	if got.Version == "" {
		t.Error("версия должна подставляться из каталога")
	}

	rec = do(t, router, http.MethodPost, "/api/v1/execute", `{"language":"python","sourceCode":"fail"}`)
	if rec.Code != http.StatusBadGateway || errorCode(t, rec) != "EXECUTION_UNAVAILABLE" {
		t.Errorf("статус = %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodPost, "/api/v1/execute", `{"language":"cobol","sourceCode":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("неизвестный язык: статус = %d", rec.Code)
	}
}

// TestListLanguages проверяет каталог языков.
func TestListLanguages(t *testing.T) {
	rec := do(t, newTestRouter(&mockFileService{}, nil), http.MethodGet, "/api/v1/languages", "")
	var resp languageListResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if rec.Code != http.StatusOK || len(resp.Languages) == 0 {
		t.Errorf("статус = %d, языков %d", rec.Code, len(resp.Languages))
	}
}

// TestHealthReady проверяет итоговый статус по зависимостям.
func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		pg         ReadinessChecker
		jwks       ReadinessChecker
		wantStatus int
	}{
		{name: "всё ok", pg: staticChecker{status: "ok"}, wantStatus: http.StatusOK},
		{name: "jwks degraded", pg: staticChecker{status: "ok"}, jwks: staticChecker{status: "degraded"}, wantStatus: http.StatusOK},
		{name: "postgres fail", pg: staticChecker{status: "fail"}, wantStatus: http.StatusServiceUnavailable},
		{name: "без postgres", wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.pg, tt.jwks)
			rec := httptest.NewRecorder()
			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("статус = %d, ожидался %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

// TestOverallStatus проверяет агрегацию статусов.
func TestOverallStatus(t *testing.T) {
	if got := overallStatus("ok", "degraded"); got != "degraded" {
		t.Errorf("ok+degraded = %q", got)
	}
	if got := overallStatus("degraded", "fail"); got != "fail" {
		t.Errorf("degraded+fail = %q", got)
	}
	if got := overallStatus(); got != "ok" {
		t.Errorf("пустой набор = %q", got)
	}
}

// TestRoutes_AuthBeforeValidation проверяет, что неаутентифицированный запрос
// получает 401, а не детали валидации тела.
func TestRoutes_AuthBeforeValidation(t *testing.T) {
	validator, err := middleware.NewRequestValidator(openapi.Spec, testLogger())
	if err != nil {
		t.Fatalf("NewRequestValidator: %v", err)
	}

	tests := []struct {
		name       string
		allow      bool
		path       string
		body       string
		wantStatus int
	}{
		{"без токена, битое тело", false, "/api/v1/users/u/files", `{"name":""}`, http.StatusUnauthorized},
		{"с токеном, битое тело", true, "/api/v1/users/u/files", `{"name":""}`, http.StatusBadRequest},
		{"execute без аутентификации валидируется", false, "/api/v1/execute", `{"language":42}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					if !tt.allow {
						w.WriteHeader(http.StatusUnauthorized)
						return
					}
					next.ServeHTTP(w, r)
				})
			}
			h := NewAPIHandler(NewHealthHandler(staticChecker{status: "ok"}, nil), &mockFileService{}, nil, testLogger())
			r := chi.NewRouter()
			h.Routes(r, validator.Middleware(), auth)

			rec := do(t, r, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("статус = %d, ожидался %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}
