// serve.go — команды serve, migrate и version.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kishan6793/codecatalyst/internal/api/handlers"
	"github.com/kishan6793/codecatalyst/internal/api/middleware"
	"github.com/kishan6793/codecatalyst/internal/api/openapi"
	"github.com/kishan6793/codecatalyst/internal/config"
	"github.com/kishan6793/codecatalyst/internal/database"
	"github.com/kishan6793/codecatalyst/internal/events"
	"github.com/kishan6793/codecatalyst/internal/execution"
	"github.com/kishan6793/codecatalyst/internal/repository"
	"github.com/kishan6793/codecatalyst/internal/server"
	"github.com/kishan6793/codecatalyst/internal/service"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить API-сервер файлов (миграции, HTTP, мониторинг зависимостей)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции PostgreSQL",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.LoadServer()
			if err != nil {
				return err
			}
			return database.Migrate(cfg, config.SetupLogger(cfg))
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.Version)
		},
	}
}

// runServe поднимает API-сервер и работает до отмены ctx.
func runServe(ctx context.Context) error {
	// 1. Конфигурация и логирование
	cfg, err := config.LoadServer()
	if err != nil {
		return err
	}
	logger := config.SetupLogger(cfg)
	logger.Info("CodeCatalyst запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("CC_DEPHEALTH_GROUP") == "" {
		logger.Warn("CC_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 2. Миграции и пул PostgreSQL
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		return err
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Проверка здоровья PostgreSQL идёт через тот же пул соединений.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 3. События изменений файлов (опционально)
	var publisher events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		natsPub, natsErr := events.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, logger)
		if natsErr != nil {
			logger.Warn("NATS недоступен, события файлов не публикуются",
				slog.String("error", natsErr.Error()),
			)
		} else {
			publisher = natsPub
			defer natsPub.Close()
		}
	}

	// 4. Сервисный слой
	files := service.NewFileService(
		repository.NewFileRepository(pool),
		service.NewListCache(cfg.CacheMaxSize, cfg.CacheTTL),
		publisher,
		logger,
	)
	executor := execution.NewClient(cfg.ExecutionURL, &http.Client{Timeout: cfg.ExecutionTimeout}, logger)

	// 5. Аутентификация (без CC_JWKS_URL отключена)
	var (
		jwksChecker     handlers.ReadinessChecker
		userMiddlewares []func(http.Handler) http.Handler
	)
	if cfg.JWKSURL != "" {
		jwtAuth, authErr := middleware.NewJWTAuth(
			cfg.JWKSURL,
			cfg.JWTIssuer,
			cfg.JWKSClientTimeout,
			cfg.JWKSRefreshInterval,
			cfg.JWTLeeway,
			logger,
		)
		if authErr != nil {
			return authErr
		}
		userMiddlewares = append(userMiddlewares, jwtAuth.Middleware(), middleware.RequireOwner("user_id"))
		jwksChecker = middleware.NewJWKSReadinessChecker(cfg.JWKSURL, cfg.JWKSClientTimeout)
		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
	} else {
		logger.Warn("CC_JWKS_URL не задан: аутентификация отключена, режим разработки")
	}

	// 6. Обработчики и HTTP-сервер
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool), jwksChecker)
	apiHandler := handlers.NewAPIHandler(healthHandler, files, executor, logger)

	validator, err := middleware.NewRequestValidator(openapi.Spec, logger)
	if err != nil {
		return err
	}

	srv := server.New(cfg, logger,
		func(r chi.Router) { apiHandler.Routes(r, validator.Middleware(), userMiddlewares...) },
		middleware.RequestLogger(logger),
		middleware.MetricsMiddleware(),
	)

	// 7. topologymetrics — мониторинг зависимостей (PostgreSQL + сервис выполнения)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"codecatalyst",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL("postgres"),
		cfg.ExecutionURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	}

	// 8. Сервер и фоновые задачи живут до сигнала или до первой ошибки.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if dephealthSvc != nil {
		g.Go(func() error {
			if err := dephealthSvc.Start(gctx); err != nil {
				logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
				return nil
			}
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
			<-gctx.Done()
			dephealthSvc.Stop()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		return err
	}
	logger.Info("CodeCatalyst остановлен")
	return nil
}
