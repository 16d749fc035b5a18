// Пакет notify — пользовательские уведомления об исходе операций.
// Каждая мутирующая операция рабочей области выдаёт ровно одно уведомление.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Level — тип уведомления.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notification — уведомление для пользователя.
type Notification struct {
	Level Level
	// Op — операция (create, rename, delete, save, upload, download, ...)
	Op      string
	Message string
}

// Notifier доставляет уведомления пользователю.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Func адаптирует функцию к Notifier.
type Func func(ctx context.Context, n Notification)

// Notify вызывает f.
func (f Func) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// LogNotifier пишет уведомления в slog.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier создаёт Notifier поверх slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With(slog.String("component", "notify"))}
}

// Notify пишет уведомление: ошибки на уровне WARN, остальное INFO.
func (l *LogNotifier) Notify(ctx context.Context, n Notification) {
	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, n.Message,
		slog.String("level", string(n.Level)),
		slog.String("op", n.Op),
	)
}

// WriterNotifier печатает уведомления в терминал (CLI).
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterNotifier создаёт Notifier, печатающий в w.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

// Notify печатает строку вида "✓ сообщение" или "✗ сообщение".
func (wn *WriterNotifier) Notify(_ context.Context, n Notification) {
	mark := "•"
	switch n.Level {
	case LevelSuccess:
		mark = "✓"
	case LevelError:
		mark = "✗"
	}
	wn.mu.Lock()
	defer wn.mu.Unlock()
	fmt.Fprintf(wn.w, "%s %s\n", mark, n.Message)
}

// Multi рассылает уведомление всем получателям по порядку.
type Multi []Notifier

// Notify вызывает каждого получателя.
func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, nt := range m {
		nt.Notify(ctx, n)
	}
}

// Recorder запоминает уведомления (для тестов и отложенного вывода).
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

// Notify сохраняет уведомление.
func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All возвращает копию накопленных уведомлений.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Reset очищает накопленные уведомления.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}
