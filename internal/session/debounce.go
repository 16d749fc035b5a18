// debounce.go — отложенное сохранение правок по ключу (id файла).
// Сохранения одного ключа выполняются строго последовательно.
package session

import (
	"context"
	"slices"
	"sync"
	"time"
)

// CommitFunc сохраняет последнее значение ключа.
type CommitFunc func(ctx context.Context, key, value string)

// Debouncer откладывает сохранение до паузы в правках.
// На каждый ключ не больше одного ожидающего таймера; новая правка перезапускает его.
// Промежуточные значения не сохраняются, сохраняется только последнее.
// Сохранения одного ключа не пересекаются, а значение старше уже сохранённого отбрасывается.
type Debouncer struct {
	window time.Duration
	commit CommitFunc

	mu       sync.Mutex
	pending  map[string]*pendingCommit
	keys     map[string]*keyState
	seq      uint64
	closed   bool
	inflight sync.WaitGroup
}

type pendingCommit struct {
	timer *time.Timer
	value string
	seq   uint64
}

// keyState сериализует сохранения ключа. Живёт, пока есть извлечённые,
// но ещё не сохранённые значения (refs > 0).
type keyState struct {
	mu    sync.Mutex
	saved uint64
	refs  int
}

// NewDebouncer создаёт Debouncer с окном тишины window.
func NewDebouncer(window time.Duration, commit CommitFunc) *Debouncer {
	return &Debouncer{
		window:  window,
		commit:  commit,
		pending: map[string]*pendingCommit{},
		keys:    map[string]*keyState{},
	}
}

// Schedule запоминает значение и перезапускает таймер ключа.
// После Close возвращает false и ничего не планирует.
func (d *Debouncer) Schedule(key, value string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}
	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
	}

	d.seq++
	seq := d.seq
	d.pending[key] = &pendingCommit{
		value: value,
		seq:   seq,
		timer: time.AfterFunc(d.window, func() { d.fire(key, seq) }),
	}
	return true
}

// fire срабатывает по таймеру. Устаревший таймер (перезапущенный или снятый) игнорируется.
func (d *Debouncer) fire(key string, seq uint64) {
	d.mu.Lock()
	p, ok := d.pending[key]
	if !ok || p.seq != seq || d.closed {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	ks := d.acquireLocked(key)
	d.inflight.Add(1)
	d.mu.Unlock()

	defer d.inflight.Done()
	d.run(context.Background(), key, p, ks)
}

// Flush немедленно сохраняет ожидающее значение ключа. Возвращает false, если ждать было нечего.
// Если по ключу уже идёт сохранение, Flush дожидается его.
func (d *Debouncer) Flush(ctx context.Context, key string) bool {
	p, ks, ok := d.take(key)
	if !ok {
		return false
	}
	d.run(ctx, key, p, ks)
	return true
}

// Cancel снимает ожидающее сохранение без записи.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pending[key]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(d.pending, key)
	return true
}

// Pending возвращает ожидающее значение ключа.
func (d *Debouncer) Pending(key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pending[key]; ok {
		return p.value, true
	}
	return "", false
}

// FlushAll сохраняет все ожидающие значения в порядке ключей.
func (d *Debouncer) FlushAll(ctx context.Context) int {
	d.mu.Lock()
	keys := make([]string, 0, len(d.pending))
	for k := range d.pending {
		keys = append(keys, k)
	}
	d.mu.Unlock()
	slices.Sort(keys)

	n := 0
	for _, k := range keys {
		if d.Flush(ctx, k) {
			n++
		}
	}
	return n
}

// Close сохраняет всё ожидающее, запрещает новые планирования
// и дожидается сохранений, уже запущенных таймерами.
func (d *Debouncer) Close(ctx context.Context) {
	type item struct {
		p  *pendingCommit
		ks *keyState
	}

	d.mu.Lock()
	d.closed = true
	items := make(map[string]item, len(d.pending))
	for k, p := range d.pending {
		p.timer.Stop()
		items[k] = item{p: p, ks: d.acquireLocked(k)}
	}
	d.pending = map[string]*pendingCommit{}
	d.mu.Unlock()

	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		d.run(ctx, k, items[k].p, items[k].ks)
	}

	d.inflight.Wait()
}

// take извлекает ожидающее значение, останавливает его таймер и захватывает состояние ключа.
func (d *Debouncer) take(key string) (*pendingCommit, *keyState, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pending[key]
	if !ok {
		return nil, nil, false
	}
	p.timer.Stop()
	delete(d.pending, key)
	return p, d.acquireLocked(key), true
}

// acquireLocked возвращает состояние ключа и увеличивает счётчик ссылок. Вызывается под d.mu.
func (d *Debouncer) acquireLocked(key string) *keyState {
	ks, ok := d.keys[key]
	if !ok {
		ks = &keyState{}
		d.keys[key] = ks
	}
	ks.refs++
	return ks
}

// run сохраняет значение под замком ключа и освобождает состояние ключа.
func (d *Debouncer) run(ctx context.Context, key string, p *pendingCommit, ks *keyState) {
	ks.mu.Lock()
	if p.seq > ks.saved {
		ks.saved = p.seq
		d.commit(ctx, key, p.value)
	}
	ks.mu.Unlock()

	d.mu.Lock()
	ks.refs--
	if ks.refs == 0 {
		delete(d.keys, key)
	}
	d.mu.Unlock()
}
