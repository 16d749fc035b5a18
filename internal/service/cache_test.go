package service

import (
	"testing"
	"time"

	"github.com/kishan6793/codecatalyst/internal/domain/model"
)

// TestListCache_GetSet проверяет базовые операции Get/Set.
func TestListCache_GetSet(t *testing.T) {
	cache := NewListCache(100, 5*time.Minute)

	if _, ok := cache.Get("user-1"); ok {
		t.Fatal("ожидался cache miss для нового ключа")
	}

	cache.Set("user-1", []*model.FileRecord{{ID: "f1", Name: "main"}})
	got, ok := cache.Get("user-1")
	if !ok {
		t.Fatal("ожидался cache hit после Set")
	}
	if len(got) != 1 || got[0].Name != "main" {
		t.Errorf("Get вернул %+v", got)
	}
}

// TestListCache_ReturnsCopies проверяет, что изменения результата не портят кэш.
func TestListCache_ReturnsCopies(t *testing.T) {
	cache := NewListCache(100, 5*time.Minute)

	files := []*model.FileRecord{{ID: "f1", Name: "main"}}
	cache.Set("user-1", files)
	files[0].Name = "changed"

	got, _ := cache.Get("user-1")
	got[0].Code = "mutated"

	again, _ := cache.Get("user-1")
	if again[0].Name != "main" || again[0].Code != "" {
		t.Errorf("кэш изменён через внешнюю ссылку: %+v", again[0])
	}
}

// TestListCache_Invalidate проверяет инвалидацию.
func TestListCache_Invalidate(t *testing.T) {
	cache := NewListCache(100, 5*time.Minute)

	cache.Set("user-1", []*model.FileRecord{{ID: "f1"}})
	cache.Invalidate("user-1")

	if _, ok := cache.Get("user-1"); ok {
		t.Fatal("ожидался cache miss после Invalidate")
	}
}

// TestListCache_TTLExpiration проверяет автоматическое истечение TTL.
func TestListCache_TTLExpiration(t *testing.T) {
	cache := NewListCache(100, 50*time.Millisecond)

	cache.Set("user-1", []*model.FileRecord{})
	if _, ok := cache.Get("user-1"); !ok {
		t.Fatal("ожидался cache hit сразу после Set")
	}

	time.Sleep(100 * time.Millisecond)

	if _, ok := cache.Get("user-1"); ok {
		t.Fatal("ожидался cache miss после истечения TTL")
	}
}

// TestListCache_Eviction проверяет вытеснение при превышении maxSize.
func TestListCache_Eviction(t *testing.T) {
	cache := NewListCache(2, 5*time.Minute)

	cache.Set("u1", nil)
	cache.Set("u2", nil)
	cache.Set("u3", nil)

	if _, ok := cache.Get("u1"); ok {
		t.Error("ожидалось вытеснение u1")
	}
	if _, ok := cache.Get("u3"); !ok {
		t.Fatal("ожидался cache hit для u3")
	}
}
