package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/yourusername/qrush/internal/domain/entity"
	"github.com/yourusername/qrush/internal/domain/repository"
	apperrors "github.com/yourusername/qrush/internal/pkg/errors"
)

// GameRepo реализует repository.GameRepository
type GameRepo struct {
	db *gorm.DB
}

// NewGameRepo создает новый репозиторий игр
func NewGameRepo(db *gorm.DB) *GameRepo {
	return &GameRepo{db: db}
}

// Create создает новую игру
func (r *GameRepo) Create(game *entity.Game) error {
	return r.db.Create(game).Error
}

// GetByID возвращает игру по ID
func (r *GameRepo) GetByID(id uuid.UUID) (*entity.Game, error) {
	var game entity.Game
	err := r.db.First(&game, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &game, nil
}

// GetActive возвращает активную игру
func (r *GameRepo) GetActive() (*entity.Game, error) {
	var game entity.Game
	err := r.db.Where("status = ?", entity.GameStatusInProgress).First(&game).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &game, nil
}

// GetScheduled возвращает все игры, которые ещё не идут и не завершены —
// как в статусе scheduled, так и уже переведённые в pre_game планировщиком.
func (r *GameRepo) GetScheduled() ([]entity.Game, error) {
	var games []entity.Game
	err := r.db.Where("status IN ?", []string{entity.GameStatusScheduled, entity.GameStatusPreGame}).
		Order("scheduled_time").
		Find(&games).Error
	if err != nil {
		return nil, err
	}
	return games, nil
}

// GetWithQuestions возвращает игру вместе с вопросами
func (r *GameRepo) GetWithQuestions(id uuid.UUID) (*entity.Game, error) {
	var game entity.Game
	err := r.db.Preload("Questions", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("sequence")
	}).First(&game, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &game, nil
}

// UpdateStatus обновляет статус игры
func (r *GameRepo) UpdateStatus(gameID uuid.UUID, status string) error {
	return r.db.Model(&entity.Game{}).
		Where("id = ?", gameID).
		Update("status", status).
		Error
}

// FinalizeResult переводит игру в finished, одновременно записывая
// winner_count и ended_at — без этого обновления одним только status I5
// (winnerCount = |winners|) осталось бы недоступно для чтения после partии.
func (r *GameRepo) FinalizeResult(gameID uuid.UUID, winnerCount int, endedAt time.Time) error {
	return r.db.Model(&entity.Game{}).
		Where("id = ?", gameID).
		Updates(map[string]interface{}{
			"status":       entity.GameStatusFinished,
			"winner_count": winnerCount,
			"ended_at":     endedAt,
		}).Error
}

// CompareAndSwapStatus атомарно переводит игру из from в to. Используется
// планировщиком как барьер против двойного старта партии несколькими
// инстансами движка.
func (r *GameRepo) CompareAndSwapStatus(gameID uuid.UUID, from, to string) (bool, error) {
	result := r.db.Model(&entity.Game{}).
		Where("id = ? AND status = ?", gameID, from).
		Update("status", to)

	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return false, fmt.Errorf("%w: game #%s", repository.ErrAnotherGameInProgress, gameID)
		}
		return false, fmt.Errorf("transition game #%s failed: %w", gameID, result.Error)
	}

	return result.RowsAffected > 0, nil
}

// isUniqueViolation проверяет Postgres unique violation (23505) для pgconn и lib/pq драйверов
func isUniqueViolation(err error) bool {
	// pgx/v5 driver (pgconn.PgError)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	// lib/pq driver
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return false
}

// Update обновляет информацию об игре
func (r *GameRepo) Update(game *entity.Game) error {
	return r.db.Save(game).Error
}

// List возвращает список игр с пагинацией
func (r *GameRepo) List(limit, offset int) ([]entity.Game, error) {
	var games []entity.Game
	err := r.db.Limit(limit).Offset(offset).Order("created_at DESC").Find(&games).Error
	return games, err
}

// Delete удаляет игру
func (r *GameRepo) Delete(id uuid.UUID) error {
	return r.db.Delete(&entity.Game{}, "id = ?", id).Error
}
