package entity

import (
	"time"

	"github.com/google/uuid"
)

// Константы статусов участника игры
const (
	PlayerStatusRegistered = "registered"
	PlayerStatusAlive      = "alive"
	PlayerStatusEliminated = "eliminated"
	PlayerStatusWinner     = "winner"
)

// GamePlayer представляет участие одного пользователя в одной игре —
// его текущее состояние sudden-death (жив/выбыл/победитель) и накопленную
// статистику. Генерализация teacher-репозитория ActiveQuizState, но
// персистентная и по одной записи на игрока, а не единое in-memory состояние
// партии.
type GamePlayer struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	GameID               uuid.UUID  `gorm:"type:uuid;not null;index:idx_game_players_game" json:"game_id"`
	UserID               uuid.UUID  `gorm:"type:uuid;not null;index:idx_game_players_user" json:"user_id"`
	Status               string     `gorm:"size:20;not null;default:'registered';index" json:"status"`
	EliminatedAtQuestion *int       `json:"eliminated_at_question,omitempty"`
	CorrectCount         int        `gorm:"not null;default:0" json:"correct_count"`
	TotalCount           int        `gorm:"not null;default:0" json:"total_count"`
	PrizeShare           *string    `gorm:"type:numeric(12,2)" json:"prize_share,omitempty"`
	JoinedAt             time.Time  `json:"joined_at"`
	EliminatedAt         *time.Time `json:"eliminated_at,omitempty"`
}

// TableName определяет имя таблицы для GORM
func (GamePlayer) TableName() string {
	return "game_players"
}

// IsAlive сообщает, остаётся ли игрок в раунде (ещё не выбыл).
func (p *GamePlayer) IsAlive() bool {
	return p.Status == PlayerStatusAlive || p.Status == PlayerStatusRegistered
}

// Eliminate переводит игрока в выбывшие на заданном вопросе.
func (p *GamePlayer) Eliminate(atQuestion int, when time.Time) {
	p.Status = PlayerStatusEliminated
	p.EliminatedAtQuestion = &atQuestion
	p.EliminatedAt = &when
}
