package repository

import (
	"github.com/google/uuid"
)

// StoredAnswer — одна запись в эфемерном хранилище ответов на текущий вопрос.
type StoredAnswer struct {
	UserID         uuid.UUID
	SubmittedText  string
	ResponseTimeMs int64
	Evaluated      bool
	IsCorrect      bool
}

// AnswerStore — Redis-хранилище ответов игроков на вопрос, живущее только
// пока открыто окно приёма ответов для (gameID, questionIndex). Ключи несут
// TTL, соответствующий времени на ответ плюс запас на разбор эвалюатором.
type AnswerStore interface {
	// Put записывает ответ игрока, только если тот ещё не отвечал на этот
	// вопрос (условная запись — SETNX). Возвращает false без ошибки, если
	// запись уже существовала (дублирующий ответ игнорируется).
	Put(gameID uuid.UUID, questionIndex int, answer StoredAnswer) (bool, error)
	// Get возвращает сохранённый ответ конкретного игрока, если он есть.
	Get(gameID uuid.UUID, questionIndex int, userID uuid.UUID) (*StoredAnswer, bool, error)
	// GetAll постранично перечисляет все ответы на вопрос через курсорный
	// SCAN — не блокирует Redis на больших аудиториях, в отличие от KEYS.
	GetAll(gameID uuid.UUID, questionIndex int) ([]StoredAnswer, error)
	// Count возвращает количество уже поступивших ответов — используется
	// для оптимизации "все ответили досрочно, не ждать таймера".
	Count(gameID uuid.UUID, questionIndex int) (int64, error)
	// ExistsBatch проверяет пачкой (через Redis pipeline), какие из
	// перечисленных игроков уже имеют запись в хранилище для этого вопроса.
	ExistsBatch(gameID uuid.UUID, questionIndex int, userIDs []uuid.UUID) (map[uuid.UUID]bool, error)
	// UpdateEvaluated помечает ответ как оценённый evaluate-стадией QSM.
	UpdateEvaluated(gameID uuid.UUID, questionIndex int, userID uuid.UUID, isCorrect bool) error
	// Clear удаляет все записи для вопроса после его оценки и попытки
	// персистировать их в PlayerAnswerRepository.
	Clear(gameID uuid.UUID, questionIndex int) error
}
