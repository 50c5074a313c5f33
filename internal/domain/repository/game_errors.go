package repository

import "errors"

var (
	// ErrAnotherGameInProgress означает, что в этом чате уже идёт другая игра.
	ErrAnotherGameInProgress = errors.New("another game is already in progress for this chat")
	// ErrGameNotScheduled означает, что запрошенная игра не находится в статусе scheduled.
	ErrGameNotScheduled = errors.New("game is not scheduled")
	// ErrStatusConflict означает, что CompareAndSwapStatus не нашёл ожидаемый
	// текущий статус — другой инстанс уже перевёл игру в иное состояние.
	ErrStatusConflict = errors.New("game status changed concurrently")
)
