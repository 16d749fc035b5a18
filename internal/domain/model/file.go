// Пакет model — доменные модели CodeCatalyst.
// FileRecord — маппинг таблицы files (per-user хранилище исходников).
package model

import "time"

// FileRecord — именованный исходный файл пользователя, хранящийся на сервере.
// Имя уникально в пределах одного пользователя (регистрозависимое сравнение).
type FileRecord struct {
	// ID — идентификатор, назначается сервером при создании (никогда не клиентом)
	ID string `json:"id"`
	// UserID — владелец файла (sub из JWT)
	UserID string `json:"user_id,omitempty"`
	// Name — имя файла без расширения
	Name string `json:"name"`
	// Language — идентификатор языка из каталога (python, javascript, ...)
	Language string `json:"language"`
	// Code — содержимое файла
	Code string `json:"code"`
	// CreatedAt — время создания записи
	CreatedAt time.Time `json:"created_at,omitzero"`
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Clone возвращает независимую копию записи.
func (f *FileRecord) Clone() *FileRecord {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}

// MaxNameLength — предельная длина имени файла в символах (столбец files.name).
const MaxNameLength = 255

// Session — буфер редактора в анонимном режиме.
// Не имеет ни id, ни имени; хранится только в локальном кэше сессии.
type Session struct {
	Language string
	Code     string
}

// Outcome — результат операции, которая может упереться в уникальность имени.
// Дубликат — штатный исход, а не ошибка: транспортные сбои возвращаются через error.
type Outcome int

const (
	// OutcomeOK — операция выполнена.
	OutcomeOK Outcome = iota
	// OutcomeDuplicateName — файл с таким именем уже существует, ничего не изменено.
	OutcomeDuplicateName
)

// String возвращает имя исхода для логов и метрик.
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeDuplicateName:
		return "duplicate_name"
	default:
		return "unknown"
	}
}

// CreateResult — результат создания файла: Ok(id) или DuplicateName.
type CreateResult struct {
	Outcome Outcome
	// ID заполнен только при OutcomeOK
	ID string
}

// Created сообщает, был ли файл действительно создан.
func (r CreateResult) Created() bool {
	return r.Outcome == OutcomeOK && r.ID != ""
}
