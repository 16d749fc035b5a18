// Пакет config — загрузка и валидация конфигурации CodeCatalyst
// из переменных окружения (префикс CC_).
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации сервера и CLI-клиента.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// Таймаут graceful shutdown
	ShutdownTimeout time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// --- JWT ---

	// URL JWKS endpoint IdP (пустой — аутентификация отключена, только для разработки)
	JWKSURL string
	// Ожидаемый issuer (пустой — не проверяется)
	JWTIssuer string
	// Допустимое отклонение часов при проверке exp/nbf
	JWTLeeway time.Duration
	// Интервал фонового обновления JWKS
	JWKSRefreshInterval time.Duration
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration

	// --- Кэш списков файлов ---

	CacheMaxSize int
	CacheTTL     time.Duration

	// --- Мониторинг зависимостей ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- События ---

	// URL NATS (пустой — публикация событий отключена)
	NATSURL string
	// Префикс subject для событий файлов
	NATSSubjectPrefix string

	// --- Сервис выполнения кода ---

	// URL endpoint выполнения (POST JSON)
	ExecutionURL string
	// Явный таймаут одного выполнения
	ExecutionTimeout time.Duration

	// --- CLI-клиент ---

	// Базовый URL API CodeCatalyst
	APIURL string
	// Bearer-токен для API
	APIToken string
	// Идентификатор пользователя (sub из токена)
	UserID string
	// Таймаут HTTP-запросов к API
	APITimeout time.Duration
	// Окно тишины перед сохранением правок
	SaveDebounce time.Duration
	// Путь к файлу локального кэша сессии
	SessionFile string
}

// Load загружает конфигурацию из переменных окружения.
// Все параметры имеют значения по умолчанию; обязательные параметры сервера
// проверяет LoadServer.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = getEnvInt("CC_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("CC_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("CC_PORT: порт %d вне диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("CC_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("CC_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("CC_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("CC_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	if cfg.HTTPReadTimeout, err = getEnvDuration("CC_HTTP_READ_TIMEOUT", 30*time.Second); err != nil {
		return nil, fmt.Errorf("CC_HTTP_READ_TIMEOUT: %w", err)
	}
	if cfg.HTTPWriteTimeout, err = getEnvDuration("CC_HTTP_WRITE_TIMEOUT", 60*time.Second); err != nil {
		return nil, fmt.Errorf("CC_HTTP_WRITE_TIMEOUT: %w", err)
	}
	if cfg.HTTPIdleTimeout, err = getEnvDuration("CC_HTTP_IDLE_TIMEOUT", 120*time.Second); err != nil {
		return nil, fmt.Errorf("CC_HTTP_IDLE_TIMEOUT: %w", err)
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("CC_SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("CC_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	cfg.DBHost = getEnvDefault("CC_DB_HOST", "")
	if cfg.DBPort, err = getEnvInt("CC_DB_PORT", 5432); err != nil {
		return nil, fmt.Errorf("CC_DB_PORT: %w", err)
	}
	cfg.DBName = getEnvDefault("CC_DB_NAME", "")
	cfg.DBUser = getEnvDefault("CC_DB_USER", "")
	cfg.DBPassword = getEnvDefault("CC_DB_PASSWORD", "")
	cfg.DBSSLMode = getEnvDefault("CC_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("CC_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- JWT ---

	cfg.JWKSURL = getEnvDefault("CC_JWKS_URL", "")
	cfg.JWTIssuer = getEnvDefault("CC_JWT_ISSUER", "")
	if cfg.JWTLeeway, err = getEnvDuration("CC_JWT_LEEWAY", 30*time.Second); err != nil {
		return nil, fmt.Errorf("CC_JWT_LEEWAY: %w", err)
	}
	if cfg.JWKSRefreshInterval, err = getEnvDuration("CC_JWKS_REFRESH_INTERVAL", 15*time.Minute); err != nil {
		return nil, fmt.Errorf("CC_JWKS_REFRESH_INTERVAL: %w", err)
	}
	if cfg.JWKSClientTimeout, err = getEnvDuration("CC_JWKS_CLIENT_TIMEOUT", 10*time.Second); err != nil {
		return nil, fmt.Errorf("CC_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	// --- Кэш ---

	if cfg.CacheMaxSize, err = getEnvInt("CC_CACHE_MAX_SIZE", 1000); err != nil {
		return nil, fmt.Errorf("CC_CACHE_MAX_SIZE: %w", err)
	}
	if cfg.CacheMaxSize < 1 {
		return nil, fmt.Errorf("CC_CACHE_MAX_SIZE: значение должно быть > 0")
	}
	if cfg.CacheTTL, err = getEnvDurationPositive("CC_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, fmt.Errorf("CC_CACHE_TTL: %w", err)
	}

	// --- Мониторинг зависимостей ---

	cfg.DephealthGroup = getEnvDefault("CC_DEPHEALTH_GROUP", "codecatalyst")
	if cfg.DephealthCheckInterval, err = getEnvDuration("CC_DEPHEALTH_CHECK_INTERVAL", 15*time.Second); err != nil {
		return nil, fmt.Errorf("CC_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- События ---

	cfg.NATSURL = getEnvDefault("CC_NATS_URL", "")
	cfg.NATSSubjectPrefix = getEnvDefault("CC_NATS_SUBJECT_PREFIX", "codecatalyst.files")

	// --- Сервис выполнения ---

	cfg.ExecutionURL = getEnvDefault("CC_EXECUTION_URL", "https://winter-of-code-react-js.vercel.app/code/execute-code")
	if cfg.ExecutionTimeout, err = getEnvDurationPositive("CC_EXECUTION_TIMEOUT", 30*time.Second); err != nil {
		return nil, fmt.Errorf("CC_EXECUTION_TIMEOUT: %w", err)
	}

	// --- CLI-клиент ---

	cfg.APIURL = strings.TrimRight(getEnvDefault("CC_API_URL", "http://localhost:8040"), "/")
	cfg.APIToken = getEnvDefault("CC_API_TOKEN", "")
	cfg.UserID = getEnvDefault("CC_USER_ID", "")
	if cfg.APITimeout, err = getEnvDurationPositive("CC_API_TIMEOUT", 15*time.Second); err != nil {
		return nil, fmt.Errorf("CC_API_TIMEOUT: %w", err)
	}
	if cfg.SaveDebounce, err = getEnvDurationPositive("CC_SAVE_DEBOUNCE", 3*time.Second); err != nil {
		return nil, fmt.Errorf("CC_SAVE_DEBOUNCE: %w", err)
	}
	cfg.SessionFile = getEnvDefault("CC_SESSION_FILE", defaultSessionFile())

	return cfg, nil
}

// LoadServer загружает конфигурацию и проверяет параметры, обязательные для API-сервера.
func LoadServer() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	required := map[string]string{
		"CC_DB_HOST":     cfg.DBHost,
		"CC_DB_NAME":     cfg.DBName,
		"CC_DB_USER":     cfg.DBUser,
		"CC_DB_PASSWORD": cfg.DBPassword,
	}
	for _, key := range []string{"CC_DB_HOST", "CC_DB_NAME", "CC_DB_USER", "CC_DB_PASSWORD"} {
		if required[key] == "" {
			return nil, fmt.Errorf("%s: обязательная переменная окружения не задана", key)
		}
	}
	return cfg, nil
}

// SignedIn сообщает, настроен ли клиент на аутентифицированный режим.
func (c *Config) SignedIn() bool {
	return c.UserID != "" && c.APIToken != ""
}

// DatabaseDSN формирует строку подключения к PostgreSQL для pgxpool.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL формирует URL PostgreSQL (для golang-migrate и меток dephealth).
func (c *Config) DatabaseURL(scheme string) string {
	return fmt.Sprintf(
		"%s://%s:%s@%s:%d/%s?sslmode=%s",
		scheme, c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	logger := NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)
	return logger
}

// NewLogger создаёт логгер с уровнем и форматом из конфигурации, пишущий в w.
// CLI пишет логи в stderr, чтобы не смешивать их с выводом команд.
func NewLogger(cfg *Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// --- Вспомогательные функции ---

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "codecatalyst-session.yaml"
	}
	return filepath.Join(dir, "codecatalyst", "session.yaml")
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvDurationPositive — как getEnvDuration, но значение должно быть > 0.
func getEnvDurationPositive(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
