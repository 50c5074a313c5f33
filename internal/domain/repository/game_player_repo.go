package repository

import (
	"github.com/google/uuid"
	"github.com/yourusername/qrush/internal/domain/entity"
	"gorm.io/gorm"
)

// GamePlayerRepository определяет методы для работы с участниками игры.
type GamePlayerRepository interface {
	Create(player *entity.GamePlayer) error
	GetByGameAndUser(gameID, userID uuid.UUID) (*entity.GamePlayer, error)
	GetAliveByGame(gameID uuid.UUID) ([]entity.GamePlayer, error)
	GetAllByGame(gameID uuid.UUID) ([]entity.GamePlayer, error)
	CountAlive(gameID uuid.UUID) (int64, error)
	UpdateStatus(playerID uuid.UUID, status string) error
	Eliminate(tx *gorm.DB, playerID uuid.UUID, atQuestion int) error
	IncrementAnswerCounts(tx *gorm.DB, playerID uuid.UUID, correct bool) error
	GetUserHistory(userID uuid.UUID, limit, offset int) ([]entity.GamePlayer, error)
	// SplitPrize распределяет призовой фонд между победителями банковским
	// округлением до центов и записывает долю каждому.
	SplitPrize(tx *gorm.DB, gameID uuid.UUID, winnerIDs []uuid.UUID, totalPrize string) error
}
