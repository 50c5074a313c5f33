package engine

import "github.com/yourusername/qrush/internal/outbound"

// Notifier абстрагирует очередь исходящих сообщений (internal/outbound.Queue),
// которой движок пользуется не заботясь о ретраях, rate-limit и circuit
// breaker — сама очередь реализует этот интерфейс без адаптера.
type Notifier interface {
	Enqueue(req outbound.Request)
}
