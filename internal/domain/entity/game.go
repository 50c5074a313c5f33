package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Константы статусов игры
const (
	GameStatusScheduled  = "scheduled"
	GameStatusPreGame    = "pre_game"
	GameStatusInProgress = "in_progress"
	GameStatusFinished   = "finished"
	GameStatusExpired    = "expired"
	GameStatusCancelled  = "cancelled"
)

// Game представляет партию sudden-death викторины, проводимую в чате WhatsApp
type Game struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Title         string          `gorm:"size:100;not null" json:"title"`
	Description   string          `gorm:"size:500;not null;default:''" json:"description"`
	ChatID        string          `gorm:"size:100;not null;index" json:"chat_id"`
	ScheduledTime time.Time       `gorm:"not null;index" json:"scheduled_time"`
	Status        string          `gorm:"size:20;not null;default:'scheduled';index" json:"status"`
	QuestionCount int             `gorm:"not null;default:0" json:"question_count"`
	PrizePool     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"prize_pool"`
	WinnerCount   int             `gorm:"not null;default:0" json:"winner_count"`
	Questions     []Question      `gorm:"foreignKey:GameID" json:"questions,omitempty"`
	EndedAt       *time.Time      `gorm:"type:timestamp" json:"ended_at,omitempty"`

	// Переопределения таймингов движка для конкретной партии — nil означает
	// "использовать значение из process-level engine.Config". Позволяют
	// оператору расширить окно приёма ответов для отдельной игры без
	// передеплоя всего процесса.
	GraceMsOverride             *int64 `gorm:"column:grace_ms_override" json:"grace_ms_override,omitempty"`
	PreRollMsOverride           *int64 `gorm:"column:pre_roll_ms_override" json:"pre_roll_ms_override,omitempty"`
	InterQuestionMsOverride     *int64 `gorm:"column:inter_question_ms_override" json:"inter_question_ms_override,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Game) TableName() string {
	return "games"
}

// IsActive проверяет, идёт ли игра прямо сейчас
func (g *Game) IsActive() bool {
	return g.Status == GameStatusInProgress
}

// IsScheduled проверяет, запланирована ли игра
func (g *Game) IsScheduled() bool {
	return g.Status == GameStatusScheduled
}

// IsTerminal проверяет, находится ли игра в одном из конечных состояний
func (g *Game) IsTerminal() bool {
	switch g.Status {
	case GameStatusFinished, GameStatusExpired, GameStatusCancelled:
		return true
	default:
		return false
	}
}

// GraceMsOrDefault возвращает переопределённый допуск по времени приёма
// ответов для этой партии, либо def, если переопределение не задано.
func (g *Game) GraceMsOrDefault(def int64) int64 {
	if g.GraceMsOverride != nil {
		return *g.GraceMsOverride
	}
	return def
}

// PreRollMsOrDefault возвращает переопределённую задержку перед отправкой
// вопроса в чат для этой партии, либо def.
func (g *Game) PreRollMsOrDefault(def int64) int64 {
	if g.PreRollMsOverride != nil {
		return *g.PreRollMsOverride
	}
	return def
}

// InterQuestionMsOrDefault возвращает переопределённую паузу между вопросами
// для этой партии, либо def.
func (g *Game) InterQuestionMsOrDefault(def int64) int64 {
	if g.InterQuestionMsOverride != nil {
		return *g.InterQuestionMsOverride
	}
	return def
}
