package repository

import (
	"github.com/google/uuid"
	"github.com/yourusername/qrush/internal/domain/entity"
)

// UserRepository определяет методы для работы с игроками
type UserRepository interface {
	Create(user *entity.User) error
	GetByID(id uuid.UUID) (*entity.User, error)
	GetByHandle(handle string) (*entity.User, error)
	// GetOrCreateByHandle возвращает существующего игрока по его WhatsApp-номеру
	// либо регистрирует нового — первое сообщение в чат и есть регистрация.
	GetOrCreateByHandle(handle string) (*entity.User, error)
	Update(user *entity.User) error
	IncrementGamesPlayed(userID uuid.UUID) error
	RecordWin(userID uuid.UUID, prizeAmount string) error
	List(limit, offset int) ([]entity.User, error)
	GetLeaderboard(limit, offset int) ([]entity.User, int64, error)
}
