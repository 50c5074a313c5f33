// Package engine реализует конечный автомат вопроса (QSM), планировщик партий
// и привязанных к партии акторов — генерализацию пакета quizmanager учителя на
// sudden-death правила с текстовыми ответами через чат-транспорт.
package engine

import "time"

// Константы по умолчанию
const (
	DefaultMaxQuestions   = 20
	DefaultTotalPrizeFund = "1000000.00"
)

// Config содержит настройки таймингов и лимитов движка партии.
type Config struct {
	// AnnouncementMinutes — за сколько минут до старта отправлять анонс в чат
	AnnouncementMinutes int
	// WaitingRoomMinutes — за сколько минут открывать зал ожидания (pre_game)
	WaitingRoomMinutes int
	// CountdownSeconds — длительность финального обратного отсчёта перед стартом
	CountdownSeconds int

	// QuestionDelay — задержка перед отправкой вопроса в чат
	QuestionDelay time.Duration
	// AnswerRevealDelay — задержка перед отправкой правильного ответа
	AnswerRevealDelay time.Duration
	// InterQuestionDelay — пауза между вопросами
	InterQuestionDelay time.Duration

	// DefaultTimeLimitSec используется, если у вопроса TimeLimitSec не задан
	DefaultTimeLimitSec int
	// GraceMs — допуск сверх TimeLimitSec на доставку сообщения по сети,
	// прежде чем окно приёма ответов считается закрытым
	GraceMs int64

	// SweepInterval — период опроса планировщиком таблицы игр
	SweepInterval time.Duration
	// MailboxSize — ёмкость буферизированного почтового ящика актора партии
	MailboxSize int

	// ExpiryGrace — сколько времени после ScheduledTime партия остаётся
	// scheduled, прежде чем планировщик спишет её в expired как пропущенную
	ExpiryGrace time.Duration

	// RetryInterval / MaxRetries — попытки чтения Answer Store при оценке
	// вопроса (MaxRetries — общее число попыток, RetryInterval — пауза между ними)
	RetryInterval time.Duration
	MaxRetries    int

	// MaxQuestionsPerGame ограничивает число вопросов в одной партии
	MaxQuestionsPerGame int
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		AnnouncementMinutes: 10,
		WaitingRoomMinutes:  5,
		CountdownSeconds:    60,

		QuestionDelay:      2 * time.Second,
		AnswerRevealDelay:  2 * time.Second,
		InterQuestionDelay: 3 * time.Second,

		DefaultTimeLimitSec: 10,
		GraceMs:             1000,

		SweepInterval: 2 * time.Second,
		MailboxSize:   256,
		ExpiryGrace:   60 * time.Second,

		RetryInterval: 500 * time.Millisecond,
		MaxRetries:    3,

		MaxQuestionsPerGame: DefaultMaxQuestions,
	}
}
