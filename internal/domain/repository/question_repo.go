package repository

import (
	"github.com/google/uuid"
	"github.com/yourusername/qrush/internal/domain/entity"
)

// QuestionRepository определяет методы для работы с вопросами
type QuestionRepository interface {
	Create(question *entity.Question) error
	CreateBatch(questions []entity.Question) error
	GetByID(id uuid.UUID) (*entity.Question, error)
	GetByGameID(gameID uuid.UUID) ([]entity.Question, error)
	Update(question *entity.Question) error
	Delete(id uuid.UUID) error
}
