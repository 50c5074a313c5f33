package errors

import "errors"

// Общие ошибки приложения, классифицированные по тому, как вызывающий код
// должен на них реагировать (повторить, прервать игру, вернуть 4xx и т.д.).
var (
	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized используется для ошибок авторизации.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden используется, когда у вызывающего недостаточно прав для действия.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrConflict используется для конфликтов состояния (например, попытка
	// запланировать уже запущенную игру).
	ErrConflict = errors.New("resource state conflict")

	// ErrDuplicate означает, что операция уже была выполнена с этими же
	// параметрами (дублирующий ответ игрока, повторная доставка вебхука).
	ErrDuplicate = errors.New("duplicate operation")

	// ErrTimeout означает, что операция не завершилась в отведённое время.
	ErrTimeout = errors.New("operation timed out")

	// ErrCancelled означает, что операция была отменена вызывающим контекстом.
	ErrCancelled = errors.New("operation cancelled")

	// ErrCircuitOpen означает, что вызов был отклонён предохранителем без
	// попытки достучаться до нижестоящего сервиса.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrStoreUnavailable означает, что Redis-хранилище ответов недоступно.
	ErrStoreUnavailable = errors.New("answer store unavailable")

	// ErrDatabaseUnavailable означает, что Postgres недоступна.
	ErrDatabaseUnavailable = errors.New("database unavailable")

	// ErrTransportTransient означает временную ошибку транспорта чата
	// (таймаут, 5xx, rate limit) — операцию стоит повторить.
	ErrTransportTransient = errors.New("chat transport transient error")

	// ErrTransportPermanent означает неустранимую ошибку транспорта чата
	// (невалидный получатель, отклонённое сообщение) — повтор бессмыслен.
	ErrTransportPermanent = errors.New("chat transport permanent error")
)
