package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kishan6793/codecatalyst/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:             8040,
		HTTPReadTimeout:  time.Second,
		HTTPWriteTimeout: time.Second,
		HTTPIdleTimeout:  time.Second,
		ShutdownTimeout:  time.Second,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pingRoutes(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})
}

// TestNew_MiddlewareOrder проверяет порядок корневых middleware.
func TestNew_MiddlewareOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	s := New(testConfig(), testLogger(), pingRoutes, mw("first"), mw("second"))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Fatalf("ответ = %d %q", rec.Code, rec.Body.String())
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("порядок middleware = %v", order)
	}
	if s.httpServer.Addr != ":8040" {
		t.Errorf("Addr = %q", s.httpServer.Addr)
	}
}

// TestServe_Shutdown проверяет обслуживание запросов и остановку по отмене контекста.
func TestServe_Shutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	s := New(testConfig(), testLogger(), pingRoutes)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/ping")
	if err != nil {
		t.Fatalf("запрос к серверу: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "pong" {
		t.Errorf("тело = %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve вернул ошибку: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("сервер не остановился после отмены контекста")
	}
}
