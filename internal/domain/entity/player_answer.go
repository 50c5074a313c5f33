package entity

import (
	"time"

	"github.com/google/uuid"
)

// PlayerAnswer — durable-запись об ответе игрока на конкретный вопрос,
// персистированная после того как Answer Store закрыл окно приёма ответов
// для данного вопроса. В отличие от эфемерной записи в Redis (см.
// repository.AnswerStore), это долгосрочная история для статистики и споров.
type PlayerAnswer struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	GameID            uuid.UUID `gorm:"type:uuid;not null;index" json:"game_id"`
	QuestionID        uuid.UUID `gorm:"type:uuid;not null;index" json:"question_id"`
	SubmittedText     string    `gorm:"size:500;not null;default:''" json:"submitted_text"`
	IsCorrect         bool      `gorm:"not null" json:"is_correct"`
	ResponseTimeMs    int64     `gorm:"not null" json:"response_time_ms"`
	IsEliminated      bool      `gorm:"not null;default:false" json:"is_eliminated"`
	EliminationReason string    `gorm:"size:255" json:"elimination_reason,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (PlayerAnswer) TableName() string {
	return "player_answers"
}
