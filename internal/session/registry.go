// registry.go — реестр файлов пользователя и текущий выбор.
package session

import (
	"fmt"
	"sync"

	"github.com/kishan6793/codecatalyst/internal/domain/model"
)

// Registry — упорядоченный список файлов пользователя и выбранный файл.
// Не выполняет ввода-вывода: сюда сводятся результаты удалённых операций.
// Все операции применяются по id файла и идемпотентны относительно порядка завершения.
type Registry struct {
	mu       sync.RWMutex
	files    []*model.FileRecord
	selected string
	loading  bool
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{}
}

// SetAll заменяет список целиком и снимает индикатор загрузки.
func (r *Registry) SetAll(records []*model.FileRecord) {
	files := make([]*model.FileRecord, 0, len(records))
	for _, rec := range records {
		if rec == nil || rec.ID == "" {
			continue
		}
		files = append(files, rec.Clone())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = files
	r.loading = false
}

// Insert добавляет сохранённую запись в конец списка.
// Запись без id отклоняется. Запись с уже известным id заменяет прежнюю на месте.
// Имя, занятое другой записью, отклоняется.
func (r *Registry) Insert(rec *model.FileRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: в реестр добавляются только сохранённые файлы", model.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range r.files {
		if f.ID != rec.ID && f.Name == rec.Name {
			return fmt.Errorf("%w: имя %q уже есть в реестре", model.ErrValidation, rec.Name)
		}
	}
	if i := r.indexOf(rec.ID); i >= 0 {
		r.files[i] = rec.Clone()
		return nil
	}
	r.files = append(r.files, rec.Clone())
	return nil
}

// Remove удаляет запись. Если она была выбрана, выбор переходит
// к первой оставшейся записи или сбрасывается. Возвращает false, если записи не было.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return false
	}
	r.files = append(r.files[:i:i], r.files[i+1:]...)

	if r.selected == id {
		r.selected = ""
		if len(r.files) > 0 {
			r.selected = r.files[0].ID
		}
	}
	return true
}

// Select выбирает файл. Id может отсутствовать в списке.
func (r *Registry) Select(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = id
}

// SelectedID возвращает id выбранного файла (может указывать на отсутствующую запись).
func (r *Registry) SelectedID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selected
}

// SelectedFile возвращает копию выбранной записи, если она есть в списке.
func (r *Registry) SelectedFile() (*model.FileRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(r.selected); i >= 0 {
		return r.files[i].Clone(), true
	}
	return nil, false
}

// PatchCode меняет код записи на месте. Без совпадения — no-op.
func (r *Registry) PatchCode(id, code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexOf(id); i >= 0 {
		r.files[i].Code = code
		return true
	}
	return false
}

// PatchName меняет имя записи на месте. Без совпадения — no-op.
func (r *Registry) PatchName(id, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexOf(id); i >= 0 {
		r.files[i].Name = name
		return true
	}
	return false
}

// Get возвращает копию записи по id.
func (r *Registry) Get(id string) (*model.FileRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return r.files[i].Clone(), true
	}
	return nil, false
}

// HasName сообщает, занято ли имя записью с другим id.
func (r *Registry) HasName(name, excludeID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.files {
		if f.Name == name && f.ID != excludeID {
			return true
		}
	}
	return false
}

// Snapshot возвращает копию списка в текущем порядке.
func (r *Registry) Snapshot() []*model.FileRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.FileRecord, len(r.files))
	for i, f := range r.files {
		out[i] = f.Clone()
	}
	return out
}

// Len возвращает число записей.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.files)
}

// SetLoading выставляет индикатор загрузки.
func (r *Registry) SetLoading(loading bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading = loading
}

// Loading сообщает, идёт ли загрузка списка.
func (r *Registry) Loading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loading
}

// indexOf ищет запись по id. Вызывается под r.mu.
func (r *Registry) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, f := range r.files {
		if f.ID == id {
			return i
		}
	}
	return -1
}
