// backend.go — бэкенды сохранения буфера: локальный кэш (анонимно) и
// удалённое хранилище с отложенным UpdateCode (после входа).
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kishan6793/codecatalyst/internal/domain/model"
	"github.com/kishan6793/codecatalyst/internal/notify"
)

// Prometheus-метрики отложенного сохранения.
var saveCommitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cc_debounced_saves_total",
	Help: "Количество отложенных сохранений кода по статусу (ok, error).",
}, []string{"status"})

// Store — удалённое хранилище файлов пользователя.
// Дубликат имени — штатный исход (model.OutcomeDuplicateName), сбой сети — model.ErrTransport.
// Реализуется apiclient.Client (HTTP) и service.FileService (сервер).
type Store interface {
	Create(ctx context.Context, userID, name, language, code string) (model.CreateResult, error)
	Rename(ctx context.Context, userID, id, name string) (model.Outcome, error)
	UpdateCode(ctx context.Context, userID, id, code string) error
	Delete(ctx context.Context, userID, id string) error
	ListAll(ctx context.Context, userID string) ([]*model.FileRecord, error)
	SearchByPrefix(ctx context.Context, userID, prefix string) ([]*model.FileRecord, error)
}

// Mode — режим рабочей области.
type Mode int

const (
	// ModeLocal — анонимный режим: один буфер в локальном кэше.
	ModeLocal Mode = iota
	// ModeRemote — вход выполнен: файлы в удалённом хранилище.
	ModeRemote
)

// String возвращает имя режима.
func (m Mode) String() string {
	if m == ModeRemote {
		return "remote"
	}
	return "local"
}

// Buffer — содержимое редактора.
// В анонимном режиме FileID и Name пусты.
type Buffer struct {
	FileID   string
	Name     string
	Language string
	Code     string
}

// Backend сохраняет правки буфера. Выбирается один раз при создании рабочей области.
type Backend interface {
	Mode() Mode
	// Persist сохраняет правку: сразу (локально) или после паузы (удалённо).
	Persist(ctx context.Context, buf Buffer) error
	// Flush немедленно сохраняет ожидающую правку файла.
	Flush(ctx context.Context, fileID string)
	// Discard отменяет ожидающую правку файла (файл удалён).
	Discard(fileID string)
	// PendingCode возвращает ещё не сохранённый код файла.
	PendingCode(fileID string) (string, bool)
	// Close сохраняет всё ожидающее.
	Close(ctx context.Context)
}

// LocalBackend пишет (language, code) в локальный кэш при каждой правке.
type LocalBackend struct {
	cache Cache
}

// NewLocalBackend создаёт локальный бэкенд.
func NewLocalBackend(cache Cache) *LocalBackend {
	return &LocalBackend{cache: cache}
}

func (b *LocalBackend) Mode() Mode { return ModeLocal }

func (b *LocalBackend) Persist(_ context.Context, buf Buffer) error {
	if err := saveBuffer(b.cache, buf.Language, buf.Code); err != nil {
		return fmt.Errorf("сохранение буфера в кэш сессии: %w", err)
	}
	return nil
}

func (b *LocalBackend) Flush(context.Context, string) {}

func (b *LocalBackend) Discard(string) {}

func (b *LocalBackend) PendingCode(string) (string, bool) { return "", false }

func (b *LocalBackend) Close(context.Context) {}

// RemoteBackend откладывает UpdateCode до паузы в правках, отдельно по каждому файлу.
// Сбой сохранения логируется и сообщается пользователю; локальный буфер не откатывается.
type RemoteBackend struct {
	store     Store
	userID    string
	debouncer *Debouncer
	notifier  notify.Notifier
	logger    *slog.Logger
}

// NewRemoteBackend создаёт удалённый бэкенд с окном тишины window.
func NewRemoteBackend(
	store Store,
	userID string,
	window time.Duration,
	notifier notify.Notifier,
	logger *slog.Logger,
) *RemoteBackend {
	b := &RemoteBackend{
		store:    store,
		userID:   userID,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "remote_backend")),
	}
	b.debouncer = NewDebouncer(window, b.commit)
	return b
}

func (b *RemoteBackend) Mode() Mode { return ModeRemote }

func (b *RemoteBackend) Persist(_ context.Context, buf Buffer) error {
	if buf.FileID == "" {
		return fmt.Errorf("%w: не выбран файл для сохранения", model.ErrValidation)
	}
	if !b.debouncer.Schedule(buf.FileID, buf.Code) {
		return errors.New("рабочая область закрыта")
	}
	return nil
}

func (b *RemoteBackend) Flush(ctx context.Context, fileID string) {
	b.debouncer.Flush(ctx, fileID)
}

func (b *RemoteBackend) Discard(fileID string) {
	b.debouncer.Cancel(fileID)
}

func (b *RemoteBackend) PendingCode(fileID string) (string, bool) {
	return b.debouncer.Pending(fileID)
}

func (b *RemoteBackend) Close(ctx context.Context) {
	b.debouncer.Close(ctx)
}

// commit выполняет одно сохранение. Уведомление только при сбое.
func (b *RemoteBackend) commit(ctx context.Context, fileID, code string) {
	if err := b.store.UpdateCode(ctx, b.userID, fileID, code); err != nil {
		saveCommitsTotal.WithLabelValues("error").Inc()
		b.logger.Error("Ошибка сохранения кода",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		b.notifier.Notify(ctx, notify.Notification{
			Level:   notify.LevelError,
			Op:      "save",
			Message: "Не удалось сохранить файл: " + err.Error(),
		})
		return
	}
	saveCommitsTotal.WithLabelValues("ok").Inc()
	b.logger.Debug("Код сохранён", slog.String("file_id", fileID), slog.Int("bytes", len(code)))
}
