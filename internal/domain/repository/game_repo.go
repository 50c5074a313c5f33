package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/qrush/internal/domain/entity"
)

// GameRepository определяет методы для работы с играми
type GameRepository interface {
	Create(game *entity.Game) error
	GetByID(id uuid.UUID) (*entity.Game, error)
	GetActive() (*entity.Game, error)
	GetScheduled() ([]entity.Game, error)
	GetWithQuestions(id uuid.UUID) (*entity.Game, error)
	UpdateStatus(gameID uuid.UUID, status string) error
	// CompareAndSwapStatus атомарно переводит игру из from в to и возвращает
	// false без ошибки, если текущий статус уже не равен from — используется
	// планировщиком как барьер от двойного запуска при нескольких инстансах.
	CompareAndSwapStatus(gameID uuid.UUID, from, to string) (bool, error)
	// FinalizeResult переводит игру в finished и одной записью фиксирует
	// число победителей и момент завершения — вызывается QSM ровно один раз
	// по окончании партии.
	FinalizeResult(gameID uuid.UUID, winnerCount int, endedAt time.Time) error
	Update(game *entity.Game) error
	List(limit, offset int) ([]entity.Game, error)
	Delete(id uuid.UUID) error
}
