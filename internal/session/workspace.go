// workspace.go — рабочая область: буфер редактора, файлы, выполнение и настройки.
// Каждая мутирующая операция выдаёт ровно одно уведомление.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kishan6793/codecatalyst/internal/domain/language"
	"github.com/kishan6793/codecatalyst/internal/domain/model"
	"github.com/kishan6793/codecatalyst/internal/notify"
)

// Операции для уведомлений.
const (
	OpCreate   = "create"
	OpUpload   = "upload"
	OpRename   = "rename"
	OpDelete   = "delete"
	OpRefresh  = "refresh"
	OpSearch   = "search"
	OpDownload = "download"
	OpPrefs    = "preferences"
)

// Runner выполняет код. Реализуется *execution.Coordinator.
type Runner interface {
	Execute(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error)
}

// Options — общие зависимости рабочей области.
type Options struct {
	// SaveDebounce — окно тишины перед удалённым сохранением (по умолчанию 3s)
	SaveDebounce time.Duration
	Runner       Runner
	Notifier     notify.Notifier
	Logger       *slog.Logger
}

func (o *Options) setDefaults() {
	if o.SaveDebounce <= 0 {
		o.SaveDebounce = 3 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Notifier == nil {
		o.Notifier = notify.NewLogNotifier(o.Logger)
	}
}

// Workspace — состояние редактора: текущий буфер, файлы пользователя, выбор файла,
// сохранение правок и запуск кода. Режим (анонимный или с входом) фиксируется при создании.
type Workspace struct {
	mode     Mode
	userID   string
	store    Store
	cache    Cache
	backend  Backend
	registry *Registry
	runner   Runner
	notifier notify.Notifier
	logger   *slog.Logger

	mu  sync.Mutex
	buf Buffer
}

// NewAnonymous создаёт рабочую область без входа: один буфер в локальном кэше.
func NewAnonymous(cache Cache, opts Options) *Workspace {
	opts.setDefaults()
	return &Workspace{
		mode:     ModeLocal,
		cache:    cache,
		backend:  NewLocalBackend(cache),
		registry: NewRegistry(),
		runner:   opts.Runner,
		notifier: opts.Notifier,
		logger:   opts.Logger.With(slog.String("component", "workspace"), slog.String("mode", ModeLocal.String())),
		buf:      Buffer{Language: language.Default},
	}
}

// NewAuthenticated создаёт рабочую область пользователя с удалённым хранилищем.
func NewAuthenticated(userID string, store Store, cache Cache, opts Options) (*Workspace, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: не задан пользователь", model.ErrValidation)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: не задано хранилище файлов", model.ErrValidation)
	}
	opts.setDefaults()
	logger := opts.Logger.With(
		slog.String("component", "workspace"),
		slog.String("mode", ModeRemote.String()),
		slog.String("user_id", userID),
	)
	return &Workspace{
		mode:     ModeRemote,
		userID:   userID,
		store:    store,
		cache:    cache,
		backend:  NewRemoteBackend(store, userID, opts.SaveDebounce, opts.Notifier, opts.Logger),
		registry: NewRegistry(),
		runner:   opts.Runner,
		notifier: opts.Notifier,
		logger:   logger,
		buf:      Buffer{Language: language.Default},
	}, nil
}

// Mode возвращает режим рабочей области.
func (w *Workspace) Mode() Mode {
	return w.mode
}

// Open восстанавливает состояние.
// Анонимно — буфер из кэша (по умолчанию javascript с пустым кодом).
// С входом — полный список файлов и последний выбранный файл (устаревший id допустим).
func (w *Workspace) Open(ctx context.Context) error {
	if w.mode == ModeLocal {
		w.mu.Lock()
		defer w.mu.Unlock()
		if lang, code, ok := loadBuffer(w.cache); ok {
			w.buf = Buffer{Language: lang, Code: code}
		} else {
			w.buf = Buffer{Language: language.Default}
		}
		return nil
	}

	w.registry.SetLoading(true)
	files, err := w.store.ListAll(ctx, w.userID)
	if err != nil {
		w.registry.SetLoading(false)
		w.fail(ctx, OpRefresh, "Не удалось загрузить файлы", err)
		return err
	}
	w.registry.SetAll(files)
	w.registry.Select(loadSelected(w.cache))

	w.mu.Lock()
	defer w.mu.Unlock()
	w.syncBufferLocked()
	w.logger.Info("Рабочая область открыта", slog.Int("files", len(files)))
	return nil
}

// Buffer возвращает текущее содержимое редактора.
func (w *Workspace) Buffer() Buffer {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf
}

// Files возвращает копию списка файлов.
func (w *Workspace) Files() []*model.FileRecord {
	return w.registry.Snapshot()
}

// SelectedFile возвращает выбранный файл, если он есть в списке.
func (w *Workspace) SelectedFile() (*model.FileRecord, bool) {
	return w.registry.SelectedFile()
}

// Loading сообщает, идёт ли загрузка списка файлов.
func (w *Workspace) Loading() bool {
	return w.registry.Loading()
}

// Edit меняет код в буфере немедленно и планирует сохранение.
// Анонимно — запись в кэш сразу. С входом — отложенное сохранение выбранного файла.
// Без выбранного файла правка остаётся только в буфере.
func (w *Workspace) Edit(ctx context.Context, code string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Code = code
	if w.mode == ModeRemote {
		if w.buf.FileID == "" {
			return nil
		}
		w.registry.PatchCode(w.buf.FileID, code)
	}
	if err := w.backend.Persist(ctx, w.buf); err != nil {
		w.logger.Error("Ошибка сохранения правки", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// ChangeLanguage меняет язык буфера и подставляет стартовый сниппет.
// Анонимно язык и код сохраняются в кэш; с входом меняется только буфер.
func (w *Workspace) ChangeLanguage(ctx context.Context, lang string) error {
	l, ok := language.Lookup(lang)
	if !ok {
		return fmt.Errorf("%w: неизвестный язык %q", model.ErrValidation, lang)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Language = l.ID
	w.buf.Code = l.Snippet
	if w.mode == ModeLocal {
		return w.backend.Persist(ctx, w.buf)
	}
	return nil
}

// Select выбирает файл. Ожидающая правка предыдущего файла сохраняется немедленно.
// Id, отсутствующий в списке, допустим: выбранного файла просто нет.
func (w *Workspace) Select(ctx context.Context, id string) error {
	if w.mode == ModeLocal {
		return model.ErrNotSignedIn
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if prev := w.registry.SelectedID(); prev != "" && prev != id {
		w.backend.Flush(ctx, prev)
	}
	w.registry.Select(id)
	w.rememberSelection(id)
	w.syncBufferLocked()
	return nil
}

// CreateFile создаёт файл со стартовым сниппетом языка.
func (w *Workspace) CreateFile(ctx context.Context, name, lang string) (model.CreateResult, error) {
	return w.CreateFileWithCode(ctx, name, lang, language.Snippet(lang))
}

// CreateFileWithCode создаёт файл. Обязательные поля проверяются до удалённого вызова.
// Дубликат имени — штатный исход: реестр не меняется, ошибка nil.
func (w *Workspace) CreateFileWithCode(ctx context.Context, name, lang, code string) (model.CreateResult, error) {
	return w.create(ctx, OpCreate, name, lang, code)
}

// Upload создаёт файл из локального файла: язык определяется по расширению,
// имя файла — имя без расширения.
func (w *Workspace) Upload(ctx context.Context, filename, content string) (model.CreateResult, error) {
	if w.mode == ModeLocal {
		w.fail(ctx, OpUpload, "Загрузка файлов доступна после входа", model.ErrNotSignedIn)
		return model.CreateResult{}, model.ErrNotSignedIn
	}
	name, l, err := language.SplitUpload(filename)
	if err != nil {
		w.fail(ctx, OpUpload, "Неподдерживаемое расширение файла", err)
		return model.CreateResult{}, err
	}
	return w.create(ctx, OpUpload, name, l.ID, content)
}

func (w *Workspace) create(ctx context.Context, op, name, lang, code string) (model.CreateResult, error) {
	if w.mode == ModeLocal {
		w.fail(ctx, op, "Создание файлов доступно после входа", model.ErrNotSignedIn)
		return model.CreateResult{}, model.ErrNotSignedIn
	}

	name = strings.TrimSpace(name)
	if err := validateNewFile(name, lang, code); err != nil {
		w.fail(ctx, op, "Некорректные данные файла", err)
		return model.CreateResult{}, err
	}

	res, err := w.store.Create(ctx, w.userID, name, lang, code)
	if err != nil {
		w.fail(ctx, op, "Не удалось создать файл", err)
		return model.CreateResult{}, err
	}
	if res.Outcome == model.OutcomeDuplicateName {
		w.duplicate(ctx, op, name)
		return res, nil
	}
	if !res.Created() {
		err := fmt.Errorf("%w: хранилище не вернуло id файла", model.ErrTransport)
		w.fail(ctx, op, "Не удалось создать файл", err)
		return model.CreateResult{}, err
	}

	rec := &model.FileRecord{ID: res.ID, UserID: w.userID, Name: name, Language: lang, Code: code}
	if err := w.registry.Insert(rec); err != nil {
		w.logger.Warn("Созданный файл не добавлен в реестр",
			slog.String("file_id", res.ID),
			slog.String("error", err.Error()),
		)
	}
	w.succeed(ctx, op, fmt.Sprintf("Файл %q создан", name))
	return res, nil
}

// Rename переименовывает файл. Занятое имя — штатный исход без изменений.
func (w *Workspace) Rename(ctx context.Context, id, name string) (model.Outcome, error) {
	if w.mode == ModeLocal {
		w.fail(ctx, OpRename, "Переименование доступно после входа", model.ErrNotSignedIn)
		return model.OutcomeOK, model.ErrNotSignedIn
	}

	name = strings.TrimSpace(name)
	if id == "" || name == "" {
		err := fmt.Errorf("%w: не заданы id или имя файла", model.ErrValidation)
		w.fail(ctx, OpRename, "Некорректные данные файла", err)
		return model.OutcomeOK, err
	}

	outcome, err := w.store.Rename(ctx, w.userID, id, name)
	if err != nil {
		w.fail(ctx, OpRename, "Не удалось переименовать файл", err)
		return model.OutcomeOK, err
	}
	if outcome == model.OutcomeDuplicateName {
		w.duplicate(ctx, OpRename, name)
		return outcome, nil
	}

	w.registry.PatchName(id, name)
	w.mu.Lock()
	if w.buf.FileID == id {
		w.buf.Name = name
	}
	w.mu.Unlock()

	w.succeed(ctx, OpRename, fmt.Sprintf("Файл переименован в %q", name))
	return model.OutcomeOK, nil
}

// Delete удаляет файл. Ожидающая правка файла отменяется;
// при сбое удаления она восстанавливается, а реестр не меняется.
func (w *Workspace) Delete(ctx context.Context, id string) error {
	if w.mode == ModeLocal {
		w.fail(ctx, OpDelete, "Удаление доступно после входа", model.ErrNotSignedIn)
		return model.ErrNotSignedIn
	}
	if id == "" {
		err := fmt.Errorf("%w: не задан id файла", model.ErrValidation)
		w.fail(ctx, OpDelete, "Некорректные данные файла", err)
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	pending, hadPending := w.backend.PendingCode(id)
	w.backend.Discard(id)

	if err := w.store.Delete(ctx, w.userID, id); err != nil {
		if hadPending {
			if perr := w.backend.Persist(ctx, Buffer{FileID: id, Code: pending}); perr != nil {
				w.logger.Error("Не удалось восстановить отложенное сохранение", slog.String("error", perr.Error()))
			}
		}
		w.fail(ctx, OpDelete, "Не удалось удалить файл", err)
		return err
	}

	wasSelected := w.registry.SelectedID() == id
	w.registry.Remove(id)
	if wasSelected {
		w.rememberSelection(w.registry.SelectedID())
	}
	w.syncBufferLocked()

	w.succeed(ctx, OpDelete, "Файл удалён")
	return nil
}

// Search ищет файлы по префиксу имени. Пустой префикс — пустой результат.
func (w *Workspace) Search(ctx context.Context, prefix string) ([]*model.FileRecord, error) {
	if w.mode == ModeLocal {
		return nil, model.ErrNotSignedIn
	}
	if prefix == "" {
		return []*model.FileRecord{}, nil
	}
	files, err := w.store.SearchByPrefix(ctx, w.userID, prefix)
	if err != nil {
		w.fail(ctx, OpSearch, "Не удалось выполнить поиск", err)
		return nil, err
	}
	return files, nil
}

// Refresh перечитывает список файлов. Несохранённые правки поверх серверных данных сохраняются.
func (w *Workspace) Refresh(ctx context.Context) error {
	if w.mode == ModeLocal {
		return model.ErrNotSignedIn
	}

	w.registry.SetLoading(true)
	files, err := w.store.ListAll(ctx, w.userID)
	if err != nil {
		w.registry.SetLoading(false)
		w.fail(ctx, OpRefresh, "Не удалось загрузить файлы", err)
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.registry.SetAll(files)
	for _, f := range files {
		if code, ok := w.backend.PendingCode(f.ID); ok {
			w.registry.PatchCode(f.ID, code)
		}
	}
	w.syncBufferLocked()
	return nil
}

// Download возвращает имя и содержимое файла для скачивания:
// <имя файла или "code">.<расширение языка>. Пустой код не скачивается.
func (w *Workspace) Download(ctx context.Context) (filename, content string, err error) {
	buf := w.Buffer()
	if buf.Code == "" {
		err := fmt.Errorf("%w: нечего скачивать, код пуст", model.ErrValidation)
		w.fail(ctx, OpDownload, "Введите код перед скачиванием", err)
		return "", "", err
	}
	filename = language.DownloadName(buf.Name, buf.Language)
	w.succeed(ctx, OpDownload, fmt.Sprintf("Файл %s готов", filename))
	return filename, buf.Code, nil
}

// Run выполняет код буфера на языке буфера.
func (w *Workspace) Run(ctx context.Context, stdin string) (model.ExecutionResult, error) {
	if w.runner == nil {
		return model.ExecutionResult{}, errors.New("выполнение кода не настроено")
	}
	buf := w.Buffer()
	l, ok := language.Lookup(buf.Language)
	if !ok {
		return model.ExecutionResult{}, fmt.Errorf("%w: неизвестный язык %q", model.ErrValidation, buf.Language)
	}
	return w.runner.Execute(ctx, model.ExecutionRequest{
		Language:   l.ID,
		Version:    l.Version,
		SourceCode: buf.Code,
		StdinInput: stdin,
	})
}

// Preferences возвращает настройки редактора.
func (w *Workspace) Preferences() Preferences {
	return LoadPreferences(w.cache)
}

// SetPreferences сохраняет настройки редактора.
func (w *Workspace) SetPreferences(ctx context.Context, p Preferences) error {
	if err := SavePreferences(w.cache, p); err != nil {
		w.fail(ctx, OpPrefs, "Не удалось сохранить настройки", err)
		return err
	}
	w.succeed(ctx, OpPrefs, "Настройки сохранены")
	return nil
}

// Close сохраняет все ожидающие правки.
func (w *Workspace) Close(ctx context.Context) {
	w.backend.Close(ctx)
}

// syncBufferLocked выставляет буфер по выбранному файлу. Вызывается под w.mu.
func (w *Workspace) syncBufferLocked() {
	if f, ok := w.registry.SelectedFile(); ok {
		w.buf = Buffer{FileID: f.ID, Name: f.Name, Language: f.Language, Code: f.Code}
		return
	}
	if w.buf.FileID != "" {
		w.buf = Buffer{Language: language.Default}
	}
}

func (w *Workspace) rememberSelection(id string) {
	if err := saveSelected(w.cache, id); err != nil {
		w.logger.Warn("Не удалось сохранить выбранный файл", slog.String("error", err.Error()))
	}
}

func (w *Workspace) succeed(ctx context.Context, op, msg string) {
	w.notifier.Notify(ctx, notify.Notification{Level: notify.LevelSuccess, Op: op, Message: msg})
}

func (w *Workspace) duplicate(ctx context.Context, op, name string) {
	w.notifier.Notify(ctx, notify.Notification{
		Level:   notify.LevelError,
		Op:      op,
		Message: fmt.Sprintf("Файл с именем %q уже существует", name),
	})
}

func (w *Workspace) fail(ctx context.Context, op, msg string, err error) {
	w.logger.Warn(msg, slog.String("op", op), slog.String("error", err.Error()))
	w.notifier.Notify(ctx, notify.Notification{Level: notify.LevelError, Op: op, Message: msg})
}

func validateNewFile(name, lang, code string) error {
	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if lang == "" {
		missing = append(missing, "language")
	}
	if code == "" {
		missing = append(missing, "code")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: не заданы поля %s", model.ErrValidation, strings.Join(missing, ", "))
	}
	if _, ok := language.Lookup(lang); !ok {
		return fmt.Errorf("%w: неизвестный язык %q", model.ErrValidation, lang)
	}
	return nil
}
