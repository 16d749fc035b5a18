package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

// testKeyID — идентификатор ключа для тестов.
const testKeyID = "test-key"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// generateTestKey генерирует RSA ключ для тестов.
func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

// generateTestToken подписывает JWT для тестов.
func generateTestToken(t *testing.T, key *rsa.PrivateKey, subject string, exp time.Time) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		PreferredUsername: "dev",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// buildJWKSetJSON строит JWKS JSON из RSA публичного ключа.
func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}
	data, _ := json.Marshal(jwks)
	return data
}

// newTestJWTAuth создаёт JWTAuth с RSA ключом для тестов.
func newTestJWTAuth(t *testing.T, key *rsa.PrivateKey) *JWTAuth {
	t.Helper()
	kf, err := keyfunc.NewJWKSetJSON(buildJWKSetJSON(&key.PublicKey, testKeyID))
	if err != nil {
		t.Fatalf("keyfunc из JWKS JSON: %v", err)
	}
	return NewJWTAuthWithKeyfunc(kf, testLogger())
}

// ownerRouter — маршрут /users/{user_id}/files под JWT и проверкой владельца.
func ownerRouter(auth *JWTAuth) http.Handler {
	r := chi.NewRouter()
	r.Route("/users/{user_id}", func(r chi.Router) {
		r.Use(auth.Middleware(), RequireOwner("user_id"))
		r.Get("/files", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(SubjectFromContext(r.Context())))
		})
	})
	return r
}

// TestJWTAuth проверяет аутентификацию и проверку владельца.
func TestJWTAuth(t *testing.T) {
	key := generateTestKey(t)
	otherKey := generateTestKey(t)
	router := ownerRouter(newTestJWTAuth(t, key))

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
	}{
		{
			name:       "владелец",
			path:       "/users/user-1/files",
			header:     "Bearer " + generateTestToken(t, key, "user-1", time.Now().Add(time.Hour)),
			wantStatus: http.StatusOK,
		},
		{
			name:       "чужие файлы",
			path:       "/users/user-2/files",
			header:     "Bearer " + generateTestToken(t, key, "user-1", time.Now().Add(time.Hour)),
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "без заголовка",
			path:       "/users/user-1/files",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "не Bearer",
			path:       "/users/user-1/files",
			header:     "Basic dXNlcjpwYXNz",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "просроченный токен",
			path:       "/users/user-1/files",
			header:     "Bearer " + generateTestToken(t, key, "user-1", time.Now().Add(-time.Hour)),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "чужая подпись",
			path:       "/users/user-1/files",
			header:     "Bearer " + generateTestToken(t, otherKey, "user-1", time.Now().Add(time.Hour)),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "без sub",
			path:       "/users/user-1/files",
			header:     "Bearer " + generateTestToken(t, key, "", time.Now().Add(time.Hour)),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("статус = %d, ожидался %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK && rec.Body.String() != "user-1" {
				t.Errorf("sub в контексте = %q", rec.Body.String())
			}
		})
	}
}

// TestRequireOwner_NoClaims проверяет 401 без JWT middleware.
func TestRequireOwner_NoClaims(t *testing.T) {
	r := chi.NewRouter()
	r.With(RequireOwner("user_id")).Get("/users/{user_id}", func(http.ResponseWriter, *http.Request) {
		t.Error("handler не должен быть вызван")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/u", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("статус = %d", rec.Code)
	}
}

// TestJWKSReadinessChecker проверяет статусы проверки JWKS.
func TestJWKSReadinessChecker(t *testing.T) {
	key := generateTestKey(t)
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "ключи есть", status: http.StatusOK, body: string(buildJWKSetJSON(&key.PublicKey, testKeyID)), want: "ok"},
		{name: "нет ключей", status: http.StatusOK, body: `{"keys":[]}`, want: "degraded"},
		{name: "битый JSON", status: http.StatusOK, body: `{`, want: "degraded"},
		{name: "ошибка IdP", status: http.StatusInternalServerError, body: ``, want: "fail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			status, msg := NewJWKSReadinessChecker(srv.URL, time.Second).CheckReady()
			if status != tt.want {
				t.Errorf("статус = %q (%s), ожидался %q", status, msg, tt.want)
			}
		})
	}
}

func timeNowPlusHour() time.Time {
	return time.Now().Add(time.Hour)
}
