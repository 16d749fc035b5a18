// coordinator.go — единственное выполнение в полёте, таймаут и нормализация вывода.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"

	"github.com/kishan6793/codecatalyst/internal/domain/model"
)

// ErrBusy — выполнение уже идёт; повторный вызов ничего не меняет.
var ErrBusy = errors.New("выполнение уже запущено")

// Prometheus-метрики выполнения.
var (
	executionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cc_executions_total",
		Help: "Количество запусков кода по источнику результата (stdout, stderr, none, transport, busy).",
	}, []string{"result"})
	executionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cc_execution_duration_seconds",
		Help:    "Длительность вызова сервиса выполнения.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})
)

// State — состояние координатора.
type State int

const (
	// Idle — выполнения нет.
	Idle State = iota
	// Running — запрос к сервису выполнения в полёте.
	Running
)

// String возвращает имя состояния.
func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Executor — вызов сервиса выполнения. Реализуется *Client.
type Executor interface {
	Execute(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResponse, error)
}

// Observer получает каждый переход состояния.
// При переходе в Idle передаётся результат, при переходе в Running — nil.
type Observer func(state State, result *model.ExecutionResult)

// Coordinator допускает не более одного выполнения одновременно и
// нормализует ответ в model.ExecutionResult.
type Coordinator struct {
	exec    Executor
	timeout time.Duration
	gate    *semaphore.Weighted
	logger  *slog.Logger

	mu        sync.Mutex
	state     State
	last      *model.ExecutionResult
	observers []Observer
}

// NewCoordinator создаёт координатор. timeout > 0 ограничивает каждый вызов.
func NewCoordinator(exec Executor, timeout time.Duration, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		exec:    exec,
		timeout: timeout,
		gate:    semaphore.NewWeighted(1),
		logger:  logger.With(slog.String("component", "execution")),
	}
}

// Subscribe регистрирует наблюдателя переходов состояния.
func (c *Coordinator) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// State возвращает текущее состояние.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastResult возвращает результат последнего завершённого выполнения.
func (c *Coordinator) LastResult() (model.ExecutionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return model.ExecutionResult{}, false
	}
	return *c.last, true
}

// Execute выполняет код. Если выполнение уже идёт — ErrBusy без изменения состояния.
// Сбой вызова не возвращается ошибкой: он превращается в результат с IsTransportError.
func (c *Coordinator) Execute(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error) {
	if req.Language == "" {
		return model.ExecutionResult{}, fmt.Errorf("%w: не задан язык", model.ErrValidation)
	}
	if !c.gate.TryAcquire(1) {
		executionsTotal.WithLabelValues("busy").Inc()
		return model.ExecutionResult{}, ErrBusy
	}

	c.transition(Running, nil)

	var result model.ExecutionResult
	defer func() {
		c.transition(Idle, &result)
		c.gate.Release(1)
	}()

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.exec.Execute(callCtx, req)
	executionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		c.logger.Warn("Ошибка вызова сервиса выполнения",
			slog.String("language", req.Language),
			slog.String("error", err.Error()),
		)
		result = model.TransportFailure()
	} else {
		result = model.NormalizeResponse(resp)
	}
	executionsTotal.WithLabelValues(string(result.Source)).Inc()
	return result, nil
}

// transition меняет состояние и уведомляет наблюдателей вне мьютекса.
// При входе в Running предыдущий результат сбрасывается.
func (c *Coordinator) transition(state State, result *model.ExecutionResult) {
	c.mu.Lock()
	c.state = state
	if state == Running {
		c.last = nil
	} else if result != nil {
		r := *result
		c.last = &r
	}
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, o := range observers {
		o(state, result)
	}
}
