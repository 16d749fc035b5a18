package session

import (
	"os"
	"path/filepath"
	"testing"
)

// TestFileCache_Persistence проверяет, что значения переживают повторное открытие.
func TestFileCache_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.yaml")

	c, err := OpenFileCache(path)
	if err != nil {
		t.Fatalf("OpenFileCache: %v", err)
	}
	if _, ok := c.Get(KeyTheme); ok {
		t.Fatal("новый кэш должен быть пустым")
	}
	if err := c.Set(KeyTheme, "light"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Set(KeyCode, "print(1)\n"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reopened, err := OpenFileCache(path)
	if err != nil {
		t.Fatalf("повторный OpenFileCache: %v", err)
	}
	if v, _ := reopened.Get(KeyTheme); v != "light" {
		t.Errorf("theme = %q, ожидалось light", v)
	}
	if v, _ := reopened.Get(KeyCode); v != "print(1)\n" {
		t.Errorf("code = %q", v)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("временный файл не должен оставаться после записи")
	}
}

// TestFileCache_Delete проверяет удаление ключа.
func TestFileCache_Delete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	c, err := OpenFileCache(path)
	if err != nil {
		t.Fatalf("OpenFileCache: %v", err)
	}

	if err := c.Delete(KeySelectedFileID); err != nil {
		t.Fatalf("Delete отсутствующего ключа: %v", err)
	}
	_ = c.Set(KeySelectedFileID, "f1")
	if err := c.Delete(KeySelectedFileID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	reopened, _ := OpenFileCache(path)
	if _, ok := reopened.Get(KeySelectedFileID); ok {
		t.Error("ключ должен быть удалён из файла")
	}
}

// TestFileCache_Corrupted проверяет ошибку на битом файле.
func TestFileCache_Corrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	if err := os.WriteFile(path, []byte("key: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFileCache(path); err == nil {
		t.Fatal("ожидалась ошибка разбора")
	}
}

// TestPreferences проверяет умолчания и сохранение настроек.
func TestPreferences(t *testing.T) {
	c := NewMemoryCache()

	if got := LoadPreferences(c); got != DefaultPreferences() {
		t.Errorf("LoadPreferences() = %+v, ожидались умолчания", got)
	}

	want := Preferences{Theme: "light", EditorTheme: "githubLight", EditorFontSize: 18}
	if err := SavePreferences(c, want); err != nil {
		t.Fatalf("SavePreferences: %v", err)
	}
	if got := LoadPreferences(c); got != want {
		t.Errorf("LoadPreferences() = %+v, ожидалось %+v", got, want)
	}

	if err := SavePreferences(c, Preferences{Theme: "dark", EditorFontSize: 0}); err == nil {
		t.Error("ожидалась ошибка для нулевого размера шрифта")
	}

	_ = c.Set(KeyEditorFontSize, "huge")
	if got := LoadPreferences(c); got.EditorFontSize != DefaultEditorFontSize {
		t.Errorf("битый размер шрифта должен заменяться умолчанием, получено %d", got.EditorFontSize)
	}
}

// TestBufferAndSelectionKeys проверяет хелперы анонимного буфера и выбора.
func TestBufferAndSelectionKeys(t *testing.T) {
	c := NewMemoryCache()

	if _, _, ok := loadBuffer(c); ok {
		t.Fatal("пустой кэш не должен содержать буфер")
	}
	if err := saveBuffer(c, "python", "print(1)"); err != nil {
		t.Fatal(err)
	}
	lang, code, ok := loadBuffer(c)
	if !ok || lang != "python" || code != "print(1)" {
		t.Errorf("loadBuffer() = %q, %q, %v", lang, code, ok)
	}

	_ = saveSelected(c, "f1")
	if got := loadSelected(c); got != "f1" {
		t.Errorf("loadSelected() = %q", got)
	}
	_ = saveSelected(c, "")
	if _, ok := c.Get(KeySelectedFileID); ok {
		t.Error("пустой id должен удалять ключ")
	}
}
