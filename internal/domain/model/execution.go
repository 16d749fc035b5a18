// execution.go — запрос и ответ сервиса выполнения, нормализованный результат.
package model

// ExecutionRequest — запрос на выполнение кода во внешнем сервисе.
// JSON-имена полей совпадают с контрактом сервиса выполнения.
type ExecutionRequest struct {
	Language   string `json:"language"`
	Version    string `json:"version"`
	SourceCode string `json:"sourceCode"`
	StdinInput string `json:"codeInput"`
}

// ExecutionResponse — сырой ответ сервиса выполнения.
type ExecutionResponse struct {
	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`
}

// OutputSource — откуда взят текст результата.
type OutputSource string

const (
	OutputStdout    OutputSource = "stdout"
	OutputStderr    OutputSource = "stderr"
	OutputNone      OutputSource = "none"
	OutputTransport OutputSource = "transport"
)

// NoOutputMessage — результат, когда программа ничего не вывела.
const NoOutputMessage = "No output received."

// TransportErrorMessage — результат при недоступности сервиса выполнения.
const TransportErrorMessage = "An error occurred while executing the code."

// ExecutionResult — нормализованный результат выполнения.
// IsTransportError отличает сбой вызова от stderr, который вернула сама программа.
type ExecutionResult struct {
	Output           string
	Source           OutputSource
	IsTransportError bool
}

// NormalizeResponse выбирает результат по приоритету: stdout, затем stderr, затем "нет вывода".
func NormalizeResponse(resp ExecutionResponse) ExecutionResult {
	switch {
	case resp.Stdout != "":
		return ExecutionResult{Output: resp.Stdout, Source: OutputStdout}
	case resp.Stderr != "":
		return ExecutionResult{Output: resp.Stderr, Source: OutputStderr}
	default:
		return ExecutionResult{Output: NoOutputMessage, Source: OutputNone}
	}
}

// TransportFailure — результат для сбоя вызова сервиса выполнения.
func TransportFailure() ExecutionResult {
	return ExecutionResult{
		Output:           TransportErrorMessage,
		Source:           OutputTransport,
		IsTransportError: true,
	}
}
