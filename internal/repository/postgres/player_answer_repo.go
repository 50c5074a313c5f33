package postgres

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/google/uuid"
	"github.com/yourusername/qrush/internal/domain/entity"
)

// PlayerAnswerRepo реализует repository.PlayerAnswerRepository
type PlayerAnswerRepo struct {
	db *gorm.DB
}

// NewPlayerAnswerRepo создает новый репозиторий ответов игроков
func NewPlayerAnswerRepo(db *gorm.DB) *PlayerAnswerRepo {
	return &PlayerAnswerRepo{db: db}
}

// SaveBatch персистирует закрытое окно ответов на вопрос одной транзакцией.
// Использует ON CONFLICT DO NOTHING на уникальном (game_id, user_id,
// question_id): эта запись — лучший-по-усилиям побочный эффект эвалюации,
// решение уже принято в памяти, так что повторная вставка той же пачки после
// рестарта актора должна молча не делать ничего, а не валить игру ошибкой.
func (r *PlayerAnswerRepo) SaveBatch(answers []entity.PlayerAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&answers).Error
	if isUniqueViolation(err) {
		return nil
	}
	return err
}

// GetByUserAndGame возвращает все ответы игрока в рамках игры
func (r *PlayerAnswerRepo) GetByUserAndGame(userID, gameID uuid.UUID) ([]entity.PlayerAnswer, error) {
	var answers []entity.PlayerAnswer
	err := r.db.Where("user_id = ? AND game_id = ?", userID, gameID).
		Order("created_at").
		Find(&answers).Error
	return answers, err
}

// GetByGame возвращает все ответы, поданные в игре
func (r *PlayerAnswerRepo) GetByGame(gameID uuid.UUID) ([]entity.PlayerAnswer, error) {
	var answers []entity.PlayerAnswer
	err := r.db.Where("game_id = ?", gameID).Find(&answers).Error
	return answers, err
}

// GetByQuestion возвращает все ответы на конкретный вопрос
func (r *PlayerAnswerRepo) GetByQuestion(questionID uuid.UUID) ([]entity.PlayerAnswer, error) {
	var answers []entity.PlayerAnswer
	err := r.db.Where("question_id = ?", questionID).Find(&answers).Error
	return answers, err
}
