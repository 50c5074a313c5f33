package entity

import (
	"time"

	"github.com/google/uuid"
)

// User представляет игрока, опознаваемого по его WhatsApp-номеру (handle).
// Полноценная учётная система (пароли, email, OAuth) осталась за рамками
// игрового движка — регистрация происходит неявно, первым сообщением в чат.
type User struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Handle         string    `gorm:"size:32;not null;uniqueIndex" json:"handle"` // номер WhatsApp в формате E.164
	DisplayName    string    `gorm:"size:100;not null;default:''" json:"display_name"`
	Active         bool      `gorm:"not null;default:true" json:"active"`
	GamesPlayed    int64     `gorm:"not null;default:0" json:"games_played"`
	WinsCount      int64     `gorm:"not null;default:0;index:idx_users_leaderboard" json:"wins_count"`
	TotalPrizeWon  string    `gorm:"type:numeric(12,2);not null;default:0" json:"total_prize_won"`
	LastActivityAt time.Time `json:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (User) TableName() string {
	return "users"
}
