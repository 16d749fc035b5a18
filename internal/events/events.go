// Пакет events — публикация событий об изменении файлов пользователей в NATS.
// Subject: <prefix>.<user_id>.<op>, payload — JSON FileEvent.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Операции над файлами.
const (
	OpCreate     = "create"
	OpRename     = "rename"
	OpUpdateCode = "update_code"
	OpDelete     = "delete"
)

// FileEvent — событие об изменении файла.
type FileEvent struct {
	UserID  string    `json:"user_id"`
	FileID  string    `json:"file_id,omitempty"`
	Op      string    `json:"op"`
	Outcome string    `json:"outcome"`
	Name    string    `json:"name,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher публикует события файлов. Ошибки публикации не влияют на результат операции.
type Publisher interface {
	Publish(ctx context.Context, ev FileEvent)
	Close()
}

// Nop — Publisher без публикации (NATS не настроен).
type Nop struct{}

// Publish ничего не делает.
func (Nop) Publish(context.Context, FileEvent) {}

// Close ничего не делает.
func (Nop) Close() {}

// conn — минимальный контракт соединения NATS; реализуется *nats.Conn.
type conn interface {
	Publish(subj string, data []byte) error
}

// NATSPublisher — публикация событий в core NATS (fire-and-forget).
type NATSPublisher struct {
	nc     conn
	closer func()
	prefix string
	logger *slog.Logger
}

// NewNATSPublisher подключается к NATS и возвращает Publisher.
func NewNATSPublisher(url, prefix string, logger *slog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("codecatalyst"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("подключение к NATS %s: %w", url, err)
	}
	logger.Info("Подключение к NATS установлено", slog.String("url", nc.ConnectedUrl()))

	p := newPublisher(nc, prefix, logger)
	p.closer = func() {
		if err := nc.Drain(); err != nil {
			nc.Close()
		}
	}
	return p, nil
}

func newPublisher(nc conn, prefix string, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{
		nc:     nc,
		prefix: strings.TrimSuffix(prefix, "."),
		logger: logger.With(slog.String("component", "events")),
	}
}

// Subject формирует subject события.
func (p *NATSPublisher) Subject(userID, op string) string {
	return p.prefix + "." + sanitizeToken(userID) + "." + op
}

// Publish сериализует событие и публикует его. Сбой логируется на уровне WARN.
func (p *NATSPublisher) Publish(_ context.Context, ev FileEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("Ошибка сериализации события", slog.String("error", err.Error()))
		return
	}
	subject := p.Subject(ev.UserID, ev.Op)
	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Warn("Ошибка публикации события",
			slog.String("subject", subject),
			slog.String("error", err.Error()),
		)
		return
	}
	p.logger.Debug("Событие опубликовано", slog.String("subject", subject))
}

// Close дренирует соединение.
func (p *NATSPublisher) Close() {
	if p.closer != nil {
		p.closer()
	}
}

// sanitizeToken заменяет символы, недопустимые в токене subject NATS.
func sanitizeToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
