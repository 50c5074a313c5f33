package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// StringArray - пользовательский тип для работы с JSONB
type StringArray []string

// Scan реализует интерфейс sql.Scanner для StringArray
// Используется GORM для чтения JSONB данных из базы
func (o *StringArray) Scan(value interface{}) error {
	// Обработка NULL значений из базы данных
	if value == nil {
		*o = StringArray{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	// Обработка пустого массива байтов
	if len(bytes) == 0 {
		*o = StringArray{}
		return nil
	}

	return json.Unmarshal(bytes, o)
}

// Value реализует интерфейс driver.Valuer для StringArray
// Используется GORM для записи StringArray в JSONB в базе
func (o StringArray) Value() (driver.Value, error) {
	if o == nil || len(o) == 0 {
		return []byte("[]"), nil // Возвращаем пустой JSON массив вместо null
	}
	return json.Marshal(o)
}

// Question представляет вопрос в игре. Ответ оценивается текстовым сравнением,
// а не индексом варианта — формат сообщений WhatsApp не гарантирует, что игрок
// пришлёт букву варианта, а не сам текст ответа.
type Question struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	GameID        uuid.UUID   `gorm:"type:uuid;not null;index" json:"game_id"`
	Sequence      int         `gorm:"not null" json:"sequence"`
	Text          string      `gorm:"size:500;not null" json:"text"`
	Options       StringArray `gorm:"type:jsonb;not null" json:"options"`
	CorrectAnswer string      `gorm:"size:255;not null" json:"-"` // Скрыто от клиента
	TimeLimitSec  int         `gorm:"not null;default:10" json:"time_limit_sec"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "questions"
}

// normalizeAnswer приводит ответ к канонической форме для сравнения:
// схлопывает регистр, обрезает пробелы по краям и вычищает всё, что не
// буква/цифра/пробел — WhatsApp-клавиатуры по-разному расставляют знаки
// препинания и эмодзи вокруг текста кнопки, а это не должно влиять на матч.
func normalizeAnswer(s string) string {
	lowered := strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// IsCorrect сравнивает присланный игроком текст с правильным ответом
// после нормализации (регистр, пробелы по краям).
func (q *Question) IsCorrect(submitted string) bool {
	return normalizeAnswer(submitted) == normalizeAnswer(q.CorrectAnswer)
}

// OptionsCount возвращает количество вариантов ответа
func (q *Question) OptionsCount() int {
	return len(q.Options)
}

// IsValidOption проверяет, присутствует ли присланный текст среди
// предложенных вариантов (после нормализации). Вопросы без ограниченного
// набора вариантов (open-ended) всегда допускают произвольный ответ.
func (q *Question) IsValidOption(submitted string) bool {
	if len(q.Options) == 0 {
		return true
	}
	norm := normalizeAnswer(submitted)
	for _, opt := range q.Options {
		if normalizeAnswer(opt) == norm {
			return true
		}
	}
	return false
}
