// Пакет session — клиентское состояние рабочей области: локальный кэш сессии,
// реестр файлов, отложенное сохранение правок и бэкенды хранения.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// Ключи локального кэша сессии.
const (
	KeyTheme          = "theme"
	KeySelectedFileID = "selectedFileId"
	KeyEditorTheme    = "editor-theme"
	KeyEditorFontSize = "editorFontSize"
	KeyLanguage       = "language"
	KeyCode           = "code"
)

// Значения настроек по умолчанию.
const (
	DefaultTheme          = "dark"
	DefaultEditorTheme    = "vscodeDark"
	DefaultEditorFontSize = 14
)

// Cache — плоское хранилище строковых значений по ключу.
// Запись сквозная: каждое изменение сразу сохраняется.
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryCache — Cache в памяти процесса.
type MemoryCache struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryCache создаёт пустой кэш в памяти.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{values: map[string]string{}}
}

func (m *MemoryCache) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryCache) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryCache) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// FileCache — Cache в YAML-файле. Файл читается один раз при открытии,
// каждая запись переписывает его атомарно (temp → fsync → rename).
type FileCache struct {
	path   string
	mu     sync.RWMutex
	values map[string]string
}

// OpenFileCache открывает кэш. Отсутствующий файл — пустой кэш.
func OpenFileCache(path string) (*FileCache, error) {
	c := &FileCache{path: path, values: map[string]string{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("ошибка чтения кэша сессии: %w", err)
	}
	if err := yaml.Unmarshal(data, &c.values); err != nil {
		return nil, fmt.Errorf("ошибка разбора кэша сессии %s: %w", path, err)
	}
	if c.values == nil {
		c.values = map[string]string{}
	}
	return c, nil
}

// Path возвращает путь к файлу кэша.
func (c *FileCache) Path() string {
	return c.path
}

func (c *FileCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

func (c *FileCache) Set(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.values[key]; ok && old == value {
		return nil
	}
	c.values[key] = value
	return c.save()
}

func (c *FileCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.values[key]; !ok {
		return nil
	}
	delete(c.values, key)
	return c.save()
}

// save записывает содержимое кэша. Вызывается под c.mu.
func (c *FileCache) save() error {
	data, err := yaml.Marshal(c.values)
	if err != nil {
		return fmt.Errorf("ошибка сериализации кэша сессии: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("ошибка создания каталога кэша сессии: %w", err)
	}

	tmpPath := c.path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("ошибка создания temp кэша сессии: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи temp кэша сессии: %w", err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync temp кэша сессии: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия temp кэша сессии: %w", err)
	}

	if err := os.Rename(tmpPath, c.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("ошибка rename кэша сессии: %w", err)
	}
	return nil
}

// Preferences — настройки редактора.
type Preferences struct {
	Theme          string `json:"theme" yaml:"theme"`
	EditorTheme    string `json:"editor_theme" yaml:"editor_theme"`
	EditorFontSize int    `json:"editor_font_size" yaml:"editor_font_size"`
}

// DefaultPreferences возвращает настройки по умолчанию.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:          DefaultTheme,
		EditorTheme:    DefaultEditorTheme,
		EditorFontSize: DefaultEditorFontSize,
	}
}

// LoadPreferences читает настройки; отсутствующие или битые значения заменяются умолчаниями.
func LoadPreferences(c Cache) Preferences {
	p := DefaultPreferences()
	if v, ok := c.Get(KeyTheme); ok && v != "" {
		p.Theme = v
	}
	if v, ok := c.Get(KeyEditorTheme); ok && v != "" {
		p.EditorTheme = v
	}
	if v, ok := c.Get(KeyEditorFontSize); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.EditorFontSize = n
		}
	}
	return p
}

// SavePreferences записывает настройки.
func SavePreferences(c Cache, p Preferences) error {
	if p.EditorFontSize <= 0 {
		return fmt.Errorf("размер шрифта должен быть > 0, получено %d", p.EditorFontSize)
	}
	if err := c.Set(KeyTheme, p.Theme); err != nil {
		return err
	}
	if err := c.Set(KeyEditorTheme, p.EditorTheme); err != nil {
		return err
	}
	return c.Set(KeyEditorFontSize, strconv.Itoa(p.EditorFontSize))
}

// loadBuffer читает анонимный буфер (language, code).
func loadBuffer(c Cache) (lang, code string, ok bool) {
	lang, hasLang := c.Get(KeyLanguage)
	code, _ = c.Get(KeyCode)
	return lang, code, hasLang && lang != ""
}

// saveBuffer записывает анонимный буфер.
func saveBuffer(c Cache, lang, code string) error {
	if err := c.Set(KeyLanguage, lang); err != nil {
		return err
	}
	return c.Set(KeyCode, code)
}

// loadSelected читает последний выбранный файл.
func loadSelected(c Cache) string {
	id, _ := c.Get(KeySelectedFileID)
	return id
}

// saveSelected записывает выбранный файл; пустой id удаляет ключ.
func saveSelected(c Cache, id string) error {
	if id == "" {
		return c.Delete(KeySelectedFileID)
	}
	return c.Set(KeySelectedFileID, id)
}
