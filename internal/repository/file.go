package repository

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"github.com/kishan6793/codecatalyst/internal/domain/model"
)

// fileColumns — список столбцов таблицы files для SELECT-запросов.
const fileColumns = `id, user_id, name, language, code, created_at, updated_at`

// FileRepository — доступ к файлам пользователя в таблице files.
// Все операции ограничены userID: чужие записи не видны и не изменяются.
type FileRepository interface {
	// Create вставляет запись. ID должен быть назначен вызывающим (сервером).
	// Занятое имя — ErrConflict.
	Create(ctx context.Context, f *model.FileRecord) error
	// GetByID возвращает файл по id или ErrNotFound.
	GetByID(ctx context.Context, userID, id string) (*model.FileRecord, error)
	// NameTaken проверяет, занято ли имя другим файлом пользователя (excludeID не учитывается).
	NameTaken(ctx context.Context, userID, name, excludeID string) (bool, error)
	// Rename меняет только имя. ErrConflict при занятом имени, ErrNotFound без записи.
	Rename(ctx context.Context, userID, id, name string) error
	// UpdateCode меняет только содержимое. ErrNotFound без записи.
	UpdateCode(ctx context.Context, userID, id, code string) error
	// Delete удаляет запись. Удаление несуществующей записи не является ошибкой.
	Delete(ctx context.Context, userID, id string) error
	// ListAll возвращает все файлы пользователя в порядке создания.
	ListAll(ctx context.Context, userID string) ([]*model.FileRecord, error)
	// SearchByPrefix возвращает файлы, имя которых начинается с prefix (регистрозависимо).
	SearchByPrefix(ctx context.Context, userID, prefix string) ([]*model.FileRecord, error)
}

// fileRepo — реализация FileRepository через pgx.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий файлов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

func (r *fileRepo) Create(ctx context.Context, f *model.FileRecord) error {
	query := `
		INSERT INTO files (id, user_id, name, language, code)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query, f.ID, f.UserID, f.Name, f.Language, f.Code).
		Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл с именем %q уже существует", ErrConflict, f.Name)
		}
		return fmt.Errorf("ошибка создания файла: %w", err)
	}
	return nil
}

func (r *fileRepo) GetByID(ctx context.Context, userID, id string) (*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE user_id = $1 AND id = $2`, fileColumns)

	f, err := scanFile(r.db.QueryRow(ctx, query, userID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

func (r *fileRepo) NameTaken(ctx context.Context, userID, name, excludeID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM files
			WHERE user_id = $1 AND name = $2 AND ($3 = '' OR id::text <> $3)
		)`

	var taken bool
	if err := r.db.QueryRow(ctx, query, userID, name, excludeID).Scan(&taken); err != nil {
		return false, fmt.Errorf("ошибка проверки имени файла: %w", err)
	}
	return taken, nil
}

func (r *fileRepo) Rename(ctx context.Context, userID, id, name string) error {
	query := `
		UPDATE files SET name = $3, updated_at = NOW()
		WHERE user_id = $1 AND id = $2`

	tag, err := r.db.Exec(ctx, query, userID, id, name)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл с именем %q уже существует", ErrConflict, name)
		}
		return fmt.Errorf("ошибка переименования файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) UpdateCode(ctx context.Context, userID, id, code string) error {
	query := `
		UPDATE files SET code = $3, updated_at = NOW()
		WHERE user_id = $1 AND id = $2`

	tag, err := r.db.Exec(ctx, query, userID, id, code)
	if err != nil {
		return fmt.Errorf("ошибка сохранения кода: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) Delete(ctx context.Context, userID, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM files WHERE user_id = $1 AND id = $2`, userID, id); err != nil {
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}
	return nil
}

func (r *fileRepo) ListAll(ctx context.Context, userID string) ([]*model.FileRecord, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM files WHERE user_id = $1 ORDER BY created_at, id`, fileColumns,
	)
	return r.queryFiles(ctx, query, userID)
}

// SearchByPrefix выполняет диапазонный запрос [prefix, upper) по бинарному порядку имён.
// Пустой префикс — пустой результат без обращения к БД.
func (r *fileRepo) SearchByPrefix(ctx context.Context, userID, prefix string) ([]*model.FileRecord, error) {
	if prefix == "" {
		return []*model.FileRecord{}, nil
	}

	lower, upper, bounded := prefixRange(prefix)
	if !bounded {
		query := fmt.Sprintf(
			`SELECT %s FROM files
			WHERE user_id = $1 AND name COLLATE "C" >= $2
			ORDER BY name COLLATE "C"`, fileColumns,
		)
		return r.queryFiles(ctx, query, userID, lower)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM files
		WHERE user_id = $1 AND name COLLATE "C" >= $2 AND name COLLATE "C" < $3
		ORDER BY name COLLATE "C"`, fileColumns,
	)
	return r.queryFiles(ctx, query, userID, lower, upper)
}

func (r *fileRepo) queryFiles(ctx context.Context, query string, args ...any) ([]*model.FileRecord, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	result := []*model.FileRecord{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}
	return result, nil
}

// scanFile сканирует строку в FileRecord (порядок fileColumns).
func scanFile(row pgx.Row) (*model.FileRecord, error) {
	f := &model.FileRecord{}
	if err := row.Scan(&f.ID, &f.UserID, &f.Name, &f.Language, &f.Code, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return f, nil
}

// prefixRange вычисляет полуинтервал [lower, upper), содержащий ровно строки с префиксом prefix
// в порядке кодовых точек (совпадает с побайтовым порядком UTF-8 и COLLATE "C").
// upper получается инкрементом последней руны; руны на максимуме отбрасываются.
// bounded = false, если верхней границы нет (префикс из одних максимальных рун).
func prefixRange(prefix string) (lower, upper string, bounded bool) {
	runes := []rune(prefix)
	for i := len(runes) - 1; i >= 0; i-- {
		next, ok := nextRune(runes[i])
		if ok {
			runes[i] = next
			return prefix, string(runes[:i+1]), true
		}
	}
	return prefix, "", false
}

// nextRune возвращает следующую допустимую руну, пропуская суррогатный диапазон.
func nextRune(r rune) (rune, bool) {
	switch {
	case r >= utf8.MaxRune:
		return 0, false
	case r == 0xD7FF:
		return 0xE000, true
	default:
		return r + 1, true
	}
}
