// Пакет service — бизнес-логика сервера CodeCatalyst.
// ListCache — LRU-кэш списков файлов пользователя с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kishan6793/codecatalyst/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cc_list_cache_hits_total",
		Help: "Общее количество попаданий в кэш списков файлов.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cc_list_cache_misses_total",
		Help: "Общее количество промахов кэша списков файлов.",
	})
)

// ListCache — кэш результата ListAll по userID.
// Любая мутация файлов пользователя инвалидирует его запись.
// Записи хранятся и отдаются копиями: вызывающий может свободно менять результат.
type ListCache struct {
	cache *expirable.LRU[string, []*model.FileRecord]
}

// NewListCache создаёт LRU-кэш с указанным максимальным числом пользователей и TTL.
func NewListCache(maxSize int, ttl time.Duration) *ListCache {
	cache := expirable.NewLRU[string, []*model.FileRecord](maxSize, nil, ttl)
	return &ListCache{cache: cache}
}

// Get возвращает список файлов пользователя. Обновляет метрики hit/miss.
func (c *ListCache) Get(userID string) ([]*model.FileRecord, bool) {
	val, ok := c.cache.Get(userID)
	if ok {
		cacheHitsTotal.Inc()
		return cloneList(val), true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set сохраняет список файлов пользователя.
func (c *ListCache) Set(userID string, files []*model.FileRecord) {
	c.cache.Add(userID, cloneList(files))
}

// Invalidate удаляет список пользователя из кэша.
func (c *ListCache) Invalidate(userID string) {
	c.cache.Remove(userID)
}

func cloneList(files []*model.FileRecord) []*model.FileRecord {
	out := make([]*model.FileRecord, len(files))
	for i, f := range files {
		out[i] = f.Clone()
	}
	return out
}
