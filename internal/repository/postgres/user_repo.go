package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yourusername/qrush/internal/domain/entity"
	apperrors "github.com/yourusername/qrush/internal/pkg/errors"
)

// UserRepo реализует repository.UserRepository
type UserRepo struct {
	db *gorm.DB
}

// NewUserRepo создает новый репозиторий пользователей
func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create создает нового пользователя
func (r *UserRepo) Create(user *entity.User) error {
	return r.db.Create(user).Error
}

// GetByID возвращает пользователя по ID
func (r *UserRepo) GetByID(id uuid.UUID) (*entity.User, error) {
	var user entity.User
	err := r.db.First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByHandle возвращает пользователя по его WhatsApp-номеру
func (r *UserRepo) GetByHandle(handle string) (*entity.User, error) {
	var user entity.User
	err := r.db.Where("handle = ?", handle).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetOrCreateByHandle возвращает игрока по номеру, либо регистрирует нового.
// Гонка между двумя одновременными первыми сообщениями разрешается уникальным
// индексом на handle: проигравший Create просто перечитывает запись.
func (r *UserRepo) GetOrCreateByHandle(handle string) (*entity.User, error) {
	user, err := r.GetByHandle(handle)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	newUser := &entity.User{
		ID:             uuid.New(),
		Handle:         handle,
		Active:         true,
		LastActivityAt: now,
	}
	if createErr := r.db.Create(newUser).Error; createErr != nil {
		if isUniqueViolation(createErr) {
			return r.GetByHandle(handle)
		}
		return nil, createErr
	}
	return newUser, nil
}

// Update обновляет информацию о пользователе
func (r *UserRepo) Update(user *entity.User) error {
	return r.db.Save(user).Error
}

// IncrementGamesPlayed увеличивает счетчик сыгранных игр
func (r *UserRepo) IncrementGamesPlayed(userID uuid.UUID) error {
	return r.db.Model(&entity.User{}).
		Where("id = ?", userID).
		UpdateColumn("games_played", gorm.Expr("games_played + ?", 1)).
		Error
}

// RecordWin атомарно увеличивает счётчик побед и добавляет долю приза
func (r *UserRepo) RecordWin(userID uuid.UUID, prizeAmount string) error {
	amount, err := decimal.NewFromString(prizeAmount)
	if err != nil {
		return err
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		var user entity.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			return err
		}
		current, err := decimal.NewFromString(user.TotalPrizeWon)
		if err != nil {
			current = decimal.Zero
		}
		return tx.Model(&user).Updates(map[string]interface{}{
			"wins_count":      gorm.Expr("wins_count + ?", 1),
			"total_prize_won": current.Add(amount).StringFixed(2),
		}).Error
	})
}

// List возвращает список пользователей с пагинацией
func (r *UserRepo) List(limit, offset int) ([]entity.User, error) {
	var users []entity.User
	err := r.db.Limit(limit).Offset(offset).Order("created_at").Find(&users).Error
	return users, err
}

// GetLeaderboard возвращает игроков для лидерборда с пагинацией и общим количеством,
// отсортированных по количеству побед и общему призу.
func (r *UserRepo) GetLeaderboard(limit, offset int) ([]entity.User, int64, error) {
	var users []entity.User
	var total int64

	tx := r.db.Begin()
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
		}
	}()
	if tx.Error != nil {
		return nil, 0, tx.Error
	}

	if err := tx.Model(&entity.User{}).Count(&total).Error; err != nil {
		tx.Rollback()
		return nil, 0, err
	}

	err := tx.Order("wins_count DESC, total_prize_won DESC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		tx.Rollback()
		return nil, 0, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}
