package postgres

import (
	"errors"
	"log"

	"gorm.io/gorm"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yourusername/qrush/internal/domain/entity"
	apperrors "github.com/yourusername/qrush/internal/pkg/errors"
)

// GamePlayerRepo реализует repository.GamePlayerRepository
type GamePlayerRepo struct {
	db *gorm.DB
}

// NewGamePlayerRepo создает новый репозиторий участников игры
func NewGamePlayerRepo(db *gorm.DB) *GamePlayerRepo {
	return &GamePlayerRepo{db: db}
}

// Create регистрирует игрока в игре
func (r *GamePlayerRepo) Create(player *entity.GamePlayer) error {
	return r.db.Create(player).Error
}

// GetByGameAndUser возвращает запись участия конкретного игрока в игре
func (r *GamePlayerRepo) GetByGameAndUser(gameID, userID uuid.UUID) (*entity.GamePlayer, error) {
	var player entity.GamePlayer
	err := r.db.Where("game_id = ? AND user_id = ?", gameID, userID).First(&player).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &player, nil
}

// GetAliveByGame возвращает всех ещё не выбывших участников игры
func (r *GamePlayerRepo) GetAliveByGame(gameID uuid.UUID) ([]entity.GamePlayer, error) {
	var players []entity.GamePlayer
	err := r.db.Where("game_id = ? AND status IN ?", gameID,
		[]string{entity.PlayerStatusRegistered, entity.PlayerStatusAlive}).
		Find(&players).Error
	return players, err
}

// GetAllByGame возвращает всех участников игры независимо от статуса
func (r *GamePlayerRepo) GetAllByGame(gameID uuid.UUID) ([]entity.GamePlayer, error) {
	var players []entity.GamePlayer
	err := r.db.Where("game_id = ?", gameID).Find(&players).Error
	return players, err
}

// CountAlive возвращает число ещё не выбывших участников игры
func (r *GamePlayerRepo) CountAlive(gameID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.Model(&entity.GamePlayer{}).
		Where("game_id = ? AND status IN ?", gameID,
			[]string{entity.PlayerStatusRegistered, entity.PlayerStatusAlive}).
		Count(&count).Error
	return count, err
}

// UpdateStatus обновляет статус участника
func (r *GamePlayerRepo) UpdateStatus(playerID uuid.UUID, status string) error {
	return r.db.Model(&entity.GamePlayer{}).
		Where("id = ?", playerID).
		Update("status", status).
		Error
}

// Eliminate выбивает игрока из раунда в переданной транзакции
func (r *GamePlayerRepo) Eliminate(tx *gorm.DB, playerID uuid.UUID, atQuestion int) error {
	return tx.Model(&entity.GamePlayer{}).
		Where("id = ?", playerID).
		Updates(map[string]interface{}{
			"status":                 entity.PlayerStatusEliminated,
			"eliminated_at_question": atQuestion,
			"eliminated_at":          gorm.Expr("now()"),
		}).Error
}

// IncrementAnswerCounts обновляет счётчики ответов игрока в переданной транзакции
func (r *GamePlayerRepo) IncrementAnswerCounts(tx *gorm.DB, playerID uuid.UUID, correct bool) error {
	updates := map[string]interface{}{
		"total_count": gorm.Expr("total_count + 1"),
	}
	if correct {
		updates["correct_count"] = gorm.Expr("correct_count + 1")
	}
	return tx.Model(&entity.GamePlayer{}).Where("id = ?", playerID).Updates(updates).Error
}

// GetUserHistory возвращает историю участия пользователя в играх
func (r *GamePlayerRepo) GetUserHistory(userID uuid.UUID, limit, offset int) ([]entity.GamePlayer, error) {
	var players []entity.GamePlayer
	err := r.db.Where("user_id = ?", userID).
		Order("joined_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&players).Error
	return players, err
}

// SplitPrize распределяет призовой фонд поровну между победителями с
// банковским округлением до центов (decimal.RoundBank). Доля округляется
// один раз для всех, поэтому при неделимом остатке сумма долей может
// отличаться от фонда до цента на победителя в любую сторону (20.00 на
// троих — по 6.67, в сумме 20.01).
func (r *GamePlayerRepo) SplitPrize(tx *gorm.DB, gameID uuid.UUID, winnerIDs []uuid.UUID, totalPrize string) error {
	if len(winnerIDs) == 0 {
		return nil
	}

	total, err := decimal.NewFromString(totalPrize)
	if err != nil {
		return err
	}

	share := total.Div(decimal.NewFromInt(int64(len(winnerIDs)))).RoundBank(2)
	shareStr := share.StringFixed(2)

	log.Printf("[GamePlayerRepo] splitting prize %s among %d winners of game %s: %s each",
		total.StringFixed(2), len(winnerIDs), gameID, shareStr)

	return tx.Model(&entity.GamePlayer{}).
		Where("game_id = ? AND user_id IN ?", gameID, winnerIDs).
		Updates(map[string]interface{}{
			"status":      entity.PlayerStatusWinner,
			"prize_share": shareStr,
		}).Error
}
