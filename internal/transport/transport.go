// Package transport определяет интерфейс доставки исходящих сообщений чата
// и минимальную справочную реализацию для WhatsApp Business Cloud API.
package transport

import "context"

// MessageType — тип исходящего сообщения транспорта.
type MessageType string

const (
	TypeText        MessageType = "text"
	TypeInteractive MessageType = "interactive"
)

// Button — одна из до трёх reply-кнопок интерактивного сообщения.
type Button struct {
	ID    string // стабильный id вида btn_1..btn_3
	Title string
}

// OutboundMessage — сообщение, готовое к отправке транспортом. Формируется
// исходящей очередью (internal/outbound) из типизированных запросов.
type OutboundMessage struct {
	Recipient string
	Type      MessageType
	Body      string
	Buttons   []Button // используется только при Type == TypeInteractive, максимум 3
}

// ChatTransport абстрагирует доставку сообщения во внешний чат-провайдер.
// Единственная ответственность реализации — HTTP-запрос к провайдеру;
// ретраи, backoff и circuit breaker — забота вызывающей исходящей очереди.
type ChatTransport interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

// TransportError классифицирует ошибку транспорта на transient/permanent,
// чтобы исходящая очередь знала, стоит ли повторять попытку.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string { return e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// IsTransient сообщает, стоит ли повторить отправку: сетевые ошибки (код 0),
// 429 (rate limit со стороны провайдера) и 5xx — временные; прочие 4xx —
// постоянные (неверный номер, заблокированный шаблон и т.п.).
func (e *TransportError) IsTransient() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}
