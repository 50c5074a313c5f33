package repository

import (
	"github.com/google/uuid"
	"github.com/yourusername/qrush/internal/domain/entity"
)

// PlayerAnswerRepository персистирует закрытые окна ответов — долговременную
// историю, отдельную от эфемерного Redis-хранилища (см. AnswerStore), на
// которую опираются статистика и разбор споров после окончания игры.
type PlayerAnswerRepository interface {
	SaveBatch(answers []entity.PlayerAnswer) error
	GetByUserAndGame(userID, gameID uuid.UUID) ([]entity.PlayerAnswer, error)
	GetByGame(gameID uuid.UUID) ([]entity.PlayerAnswer, error)
	GetByQuestion(questionID uuid.UUID) ([]entity.PlayerAnswer, error)
}
