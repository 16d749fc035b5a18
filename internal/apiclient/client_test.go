package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/kishan6793/codecatalyst/internal/domain/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "token-123", 5*time.Second, testLogger())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"code": code, "message": msg}})
}

// TestCreate_OK проверяет запрос создания и возвращённый id.
func TestCreate_OK(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/users/user-1/files" {
			t.Errorf("запрос %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-123" {
			t.Errorf("Authorization = %q", got)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["name"] != "main" || body["language"] != "python" || body["code"] != "print(1)" {
			t.Errorf("тело запроса = %v", body)
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": "f1"})
	})

	res, err := c.Create(context.Background(), "user-1", "main", "python", "print(1)")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.Outcome != model.OutcomeOK || res.ID != "f1" {
		t.Errorf("результат = %+v", res)
	}
}

// TestCreate_Duplicate проверяет, что 409 — дубликат, а не ошибка.
func TestCreate_Duplicate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeAPIError(w, http.StatusConflict, "DUPLICATE_NAME", "занято")
	})

	res, err := c.Create(context.Background(), "user-1", "main", "python", "x")
	if err != nil {
		t.Fatalf("дубликат не должен быть ошибкой: %v", err)
	}
	if res.Outcome != model.OutcomeDuplicateName || res.Created() {
		t.Errorf("результат = %+v", res)
	}
}

// TestRename проверяет исходы переименования.
func TestRename(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		wantOutcome model.Outcome
		wantErr     error
	}{
		{name: "успех", status: http.StatusOK, wantOutcome: model.OutcomeOK},
		{name: "дубликат", status: http.StatusConflict, wantOutcome: model.OutcomeDuplicateName},
		{name: "не найден", status: http.StatusNotFound, wantErr: model.ErrNotFound},
		{name: "сбой сервера", status: http.StatusInternalServerError, wantErr: model.ErrTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPatch || r.URL.Path != "/api/v1/users/u/files/f1" {
					t.Errorf("запрос %s %s", r.Method, r.URL.Path)
				}
				if tt.status == http.StatusOK {
					writeJSON(w, http.StatusOK, map[string]string{"id": "f1", "name": "new"})
					return
				}
				writeAPIError(w, tt.status, "X", "ошибка")
			})

			out, err := c.Rename(context.Background(), "u", "f1", "new")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ожидалась %v, получено %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || out != tt.wantOutcome {
				t.Errorf("Rename() = %v, %v", out, err)
			}
		})
	}
}

// TestUpdateCode_NotFound проверяет 404 при сохранении кода.
func TestUpdateCode_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/v1/users/u/files/gone/code" {
			t.Errorf("запрос %s %s", r.Method, r.URL.Path)
		}
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "файл не найден")
	})

	err := c.UpdateCode(context.Background(), "u", "gone", "x")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("ожидалась ErrNotFound, получено %v", err)
	}
}

// TestDelete проверяет успешное удаление.
func TestDelete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("метод = %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.Delete(context.Background(), "u", "f1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

// TestListAll проверяет разбор списка и пустой ответ.
func TestListAll(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"files": []map[string]string{
			{"id": "f1", "name": "main", "language": "python", "code": "x"},
		}})
	})

	files, err := c.ListAll(context.Background(), "u")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].ID != "f1" || files[0].Language != "python" {
		t.Errorf("файлы = %+v", files)
	}

	empty := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	files, err = empty.ListAll(context.Background(), "u")
	if err != nil || files == nil || len(files) != 0 {
		t.Errorf("пустой список = %v, %v", files, err)
	}
}

// TestSearchByPrefix проверяет экранирование префикса и пустой префикс без запроса.
func TestSearchByPrefix(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if got := r.URL.Query().Get("prefix"); got != "a b&c" {
			t.Errorf("prefix = %q", got)
		}
		writeJSON(w, http.StatusOK, map[string]any{"files": []any{}})
	})

	if files, err := c.SearchByPrefix(context.Background(), "u", ""); err != nil || len(files) != 0 {
		t.Errorf("пустой префикс = %v, %v", files, err)
	}
	if calls != 0 {
		t.Fatal("пустой префикс не должен уходить на сервер")
	}
	if _, err := c.SearchByPrefix(context.Background(), "u", "a b&c"); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("ожидался 1 запрос, было %d", calls)
	}
}

// TestTransportErrors проверяет классификацию сетевых сбоев и отказа в доступе.
func TestTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(url, "", time.Second, testLogger())
	if _, err := c.ListAll(context.Background(), "u"); !errors.Is(err, model.ErrTransport) {
		t.Errorf("недоступный сервер: ожидалась ErrTransport, получено %v", err)
	}

	denied := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeAPIError(w, http.StatusForbidden, "FORBIDDEN", "чужие файлы")
	})
	if _, err := denied.ListAll(context.Background(), "u"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("403: ожидалась ErrUnauthorized, получено %v", err)
	}

	garbage := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("not json"))
	})
	if _, err := garbage.ListAll(context.Background(), "u"); !errors.Is(err, model.ErrTransport) {
		t.Errorf("битый ответ: ожидалась ErrTransport, получено %v", err)
	}
}
