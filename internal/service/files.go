// files.go — сервис файлов пользователя (серверная реализация хранилища).
// Координирует repository, кэш списков, NATS-события и Prometheus-метрики.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kishan6793/codecatalyst/internal/domain/language"
	"github.com/kishan6793/codecatalyst/internal/domain/model"
	"github.com/kishan6793/codecatalyst/internal/events"
	"github.com/kishan6793/codecatalyst/internal/repository"
)

// Prometheus-метрики операций с файлами.
var (
	fileOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cc_file_operations_total",
		Help: "Количество операций с файлами по типу и исходу.",
	}, []string{"op", "outcome"})
	fileOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cc_file_operation_duration_seconds",
		Help:    "Длительность операций с файлами.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
)

// Исходы для метрик, дополняющие model.Outcome.
const (
	outcomeError    = "error"
	outcomeNotFound = "not_found"
)

// FileService — операции с файлами пользователя поверх PostgreSQL.
// Дубликат имени возвращается как model.OutcomeDuplicateName с nil-ошибкой.
// Сбои БД возвращаются как model.ErrTransport.
type FileService struct {
	repo   repository.FileRepository
	cache  *ListCache
	events events.Publisher
	logger *slog.Logger
}

// NewFileService создаёт сервис файлов. publisher может быть nil (события отключены).
func NewFileService(
	repo repository.FileRepository,
	cache *ListCache,
	publisher events.Publisher,
	logger *slog.Logger,
) *FileService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &FileService{
		repo:   repo,
		cache:  cache,
		events: publisher,
		logger: logger.With(slog.String("component", "file_service")),
	}
}

// Create создаёт файл и возвращает назначенный id либо OutcomeDuplicateName.
func (s *FileService) Create(ctx context.Context, userID, name, lang, code string) (model.CreateResult, error) {
	defer observe(events.OpCreate, time.Now())

	name = strings.TrimSpace(name)
	if err := validateCreate(userID, name, lang); err != nil {
		return model.CreateResult{}, err
	}

	taken, err := s.repo.NameTaken(ctx, userID, name, "")
	if err != nil {
		return model.CreateResult{}, s.fail(ctx, events.OpCreate, userID, "", err)
	}
	if taken {
		s.done(ctx, events.OpCreate, userID, "", name, model.OutcomeDuplicateName.String())
		return model.CreateResult{Outcome: model.OutcomeDuplicateName}, nil
	}

	f := &model.FileRecord{
		ID:       uuid.NewString(),
		UserID:   userID,
		Name:     name,
		Language: lang,
		Code:     code,
	}
	if err := s.repo.Create(ctx, f); err != nil {
		// Гонка двух create с одним именем: проигравший получает дубликат.
		if errors.Is(err, repository.ErrConflict) {
			s.done(ctx, events.OpCreate, userID, "", name, model.OutcomeDuplicateName.String())
			return model.CreateResult{Outcome: model.OutcomeDuplicateName}, nil
		}
		return model.CreateResult{}, s.fail(ctx, events.OpCreate, userID, "", err)
	}

	s.cache.Invalidate(userID)
	s.done(ctx, events.OpCreate, userID, f.ID, name, model.OutcomeOK.String())
	s.logger.Info("Файл создан",
		slog.String("user_id", userID),
		slog.String("file_id", f.ID),
		slog.String("language", lang),
	)
	return model.CreateResult{Outcome: model.OutcomeOK, ID: f.ID}, nil
}

// Rename меняет имя файла. Собственное текущее имя не считается занятым.
func (s *FileService) Rename(ctx context.Context, userID, id, name string) (model.Outcome, error) {
	defer observe(events.OpRename, time.Now())

	name = strings.TrimSpace(name)
	if userID == "" || id == "" || name == "" {
		return model.OutcomeOK, fmt.Errorf("%w: user_id, id и name обязательны", model.ErrValidation)
	}
	if err := validateName(name); err != nil {
		return model.OutcomeOK, err
	}
	if !validID(id) {
		s.done(ctx, events.OpRename, userID, id, name, outcomeNotFound)
		return model.OutcomeOK, model.ErrNotFound
	}

	taken, err := s.repo.NameTaken(ctx, userID, name, id)
	if err != nil {
		return model.OutcomeOK, s.fail(ctx, events.OpRename, userID, id, err)
	}
	if taken {
		s.done(ctx, events.OpRename, userID, id, name, model.OutcomeDuplicateName.String())
		return model.OutcomeDuplicateName, nil
	}

	if err := s.repo.Rename(ctx, userID, id, name); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			s.done(ctx, events.OpRename, userID, id, name, model.OutcomeDuplicateName.String())
			return model.OutcomeDuplicateName, nil
		case errors.Is(err, repository.ErrNotFound):
			s.done(ctx, events.OpRename, userID, id, name, outcomeNotFound)
			return model.OutcomeOK, model.ErrNotFound
		default:
			return model.OutcomeOK, s.fail(ctx, events.OpRename, userID, id, err)
		}
	}

	s.cache.Invalidate(userID)
	s.done(ctx, events.OpRename, userID, id, name, model.OutcomeOK.String())
	return model.OutcomeOK, nil
}

// UpdateCode сохраняет содержимое файла. Уникальность не затрагивается.
func (s *FileService) UpdateCode(ctx context.Context, userID, id, code string) error {
	defer observe(events.OpUpdateCode, time.Now())

	if userID == "" || id == "" {
		return fmt.Errorf("%w: user_id и id обязательны", model.ErrValidation)
	}
	if !validID(id) {
		s.done(ctx, events.OpUpdateCode, userID, id, "", outcomeNotFound)
		return model.ErrNotFound
	}

	if err := s.repo.UpdateCode(ctx, userID, id, code); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.done(ctx, events.OpUpdateCode, userID, id, "", outcomeNotFound)
			return model.ErrNotFound
		}
		return s.fail(ctx, events.OpUpdateCode, userID, id, err)
	}

	s.cache.Invalidate(userID)
	s.done(ctx, events.OpUpdateCode, userID, id, "", model.OutcomeOK.String())
	return nil
}

// Delete удаляет файл. Удаление несуществующего id не является ошибкой.
func (s *FileService) Delete(ctx context.Context, userID, id string) error {
	defer observe(events.OpDelete, time.Now())

	if userID == "" || id == "" {
		return fmt.Errorf("%w: user_id и id обязательны", model.ErrValidation)
	}
	if validID(id) {
		if err := s.repo.Delete(ctx, userID, id); err != nil {
			return s.fail(ctx, events.OpDelete, userID, id, err)
		}
	}

	s.cache.Invalidate(userID)
	s.done(ctx, events.OpDelete, userID, id, "", model.OutcomeOK.String())
	return nil
}

// ListAll возвращает полный список файлов пользователя (через кэш).
func (s *FileService) ListAll(ctx context.Context, userID string) ([]*model.FileRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id обязателен", model.ErrValidation)
	}
	if files, ok := s.cache.Get(userID); ok {
		return files, nil
	}

	files, err := s.repo.ListAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: список файлов: %w", model.ErrTransport, err)
	}
	s.cache.Set(userID, files)
	return files, nil
}

// SearchByPrefix возвращает файлы, имя которых начинается с prefix.
// Пустой префикс даёт пустой результат, а не полный список.
func (s *FileService) SearchByPrefix(ctx context.Context, userID, prefix string) ([]*model.FileRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id обязателен", model.ErrValidation)
	}
	if prefix == "" {
		return []*model.FileRecord{}, nil
	}
	files, err := s.repo.SearchByPrefix(ctx, userID, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: поиск файлов: %w", model.ErrTransport, err)
	}
	return files, nil
}

// Get возвращает файл по id.
func (s *FileService) Get(ctx context.Context, userID, id string) (*model.FileRecord, error) {
	if !validID(id) {
		return nil, model.ErrNotFound
	}
	f, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("%w: получение файла: %w", model.ErrTransport, err)
	}
	return f, nil
}

// done фиксирует исход операции в метриках и публикует событие.
func (s *FileService) done(ctx context.Context, op, userID, fileID, name, outcome string) {
	fileOpsTotal.WithLabelValues(op, outcome).Inc()
	s.events.Publish(ctx, events.FileEvent{
		UserID:  userID,
		FileID:  fileID,
		Op:      op,
		Outcome: outcome,
		Name:    name,
	})
}

// fail логирует сбой хранилища и оборачивает его в ErrTransport.
func (s *FileService) fail(ctx context.Context, op, userID, fileID string, err error) error {
	fileOpsTotal.WithLabelValues(op, outcomeError).Inc()
	s.logger.Error("Ошибка хранилища файлов",
		slog.String("op", op),
		slog.String("user_id", userID),
		slog.String("file_id", fileID),
		slog.String("error", err.Error()),
	)
	s.events.Publish(ctx, events.FileEvent{UserID: userID, FileID: fileID, Op: op, Outcome: outcomeError})
	return fmt.Errorf("%w: %s: %w", model.ErrTransport, op, err)
}

func observe(op string, start time.Time) {
	fileOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func validateCreate(userID, name, lang string) error {
	var missing []string
	if userID == "" {
		missing = append(missing, "user_id")
	}
	if name == "" {
		missing = append(missing, "name")
	}
	if lang == "" {
		missing = append(missing, "language")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: не заданы поля %s", model.ErrValidation, strings.Join(missing, ", "))
	}
	if err := validateName(name); err != nil {
		return err
	}
	if _, ok := language.Lookup(lang); !ok {
		return fmt.Errorf("%w: неизвестный язык %q", model.ErrValidation, lang)
	}
	return nil
}

func validateName(name string) error {
	if n := utf8.RuneCountInString(name); n > model.MaxNameLength {
		return fmt.Errorf("%w: имя длиннее %d символов (%d)", model.ErrValidation, model.MaxNameLength, n)
	}
	return nil
}

// validID — id файла всегда UUID; иное значение заведомо не найдено.
func validID(id string) bool {
	return uuid.Validate(id) == nil
}
