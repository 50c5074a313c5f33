package engine

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yourusername/qrush/internal/domain/entity"
	"github.com/yourusername/qrush/internal/domain/repository"
	"github.com/yourusername/qrush/internal/outbound"
	"github.com/yourusername/qrush/internal/transport"
)

// Dependencies собирает всё, чем пользуется QSM одной партии.
type Dependencies struct {
	DB        *gorm.DB
	Games     repository.GameRepository
	Questions repository.QuestionRepository
	Players   repository.GamePlayerRepository
	Users     repository.UserRepository
	Answers   repository.PlayerAnswerRepository
	Store     repository.AnswerStore
	Notifier  Notifier
	Bus       *Bus
	Config    *Config
}

// EliminationReason — причины выбывания игрока из раунда
const (
	ReasonWrongAnswer  = "incorrect_answer"
	ReasonTimedOut     = "time_exceeded"
	ReasonInvalidInput = "invalid_option"
)

// QSM — конечный автомат одного вопроса: announce → accept → evaluate →
// notify → advance. Один экземпляр обслуживает ровно одну партию от начала
// до конца; жизненным циклом владеет Actor.
type QSM struct {
	deps      *Dependencies
	game      *entity.Game
	questions []entity.Question

	currentIndex  int
	questionStart time.Time

	// Состояние текущего вопроса — пересоздаётся в начале каждого runQuestion.
	alivePlayers     []entity.GamePlayer
	aliveSet         map[uuid.UUID]entity.GamePlayer
	handles          map[uuid.UUID]string
	answeredThisTurn map[uuid.UUID]struct{}
	rejectedNotAlive map[uuid.UUID]struct{}
}

// NewQSM создаёт автомат для переданной партии с уже загруженными вопросами
// (отсортированными по Sequence).
func NewQSM(deps *Dependencies, game *entity.Game, questions []entity.Question) *QSM {
	return &QSM{
		deps:      deps,
		game:      game,
		questions: questions,
	}
}

// Run проводит партию от первого вопроса до завершения. Отменяется через ctx —
// при отмене процесса партия останется in_progress и будет подхвачена заново
// при рестарте (см. Engine.recoverStuckGame). Перед каждым вопросом статус
// партии перечитывается: если оператор перевёл её в cancelled (enginectl
// game emergency-end), живым игрокам рассылается извинение и партия
// прекращается без подведения итогов.
func (m *QSM) Run(ctx context.Context, inbound <-chan inboundAnswer) error {
	m.deps.Bus.Publish(Event{Type: EventGameStarted, GameID: m.game.ID})
	log.Printf("[QSM] игра %s начата, вопросов: %d", m.game.ID, len(m.questions))

	for idx, q := range m.questions {
		m.currentIndex = idx

		alive, err := m.deps.Players.GetAliveByGame(m.game.ID)
		if err != nil {
			return fmt.Errorf("get alive players: %w", err)
		}
		if current, err := m.deps.Games.GetByID(m.game.ID); err == nil && current.Status == entity.GameStatusCancelled {
			m.alivePlayers = alive
			m.cancelWithApology()
			return nil
		}
		if len(alive) <= 1 {
			break
		}

		if err := m.runQuestion(ctx, idx, q, alive, inbound); err != nil {
			return fmt.Errorf("question %d: %w", idx, err)
		}
	}

	return m.finish()
}

func (m *QSM) runQuestion(ctx context.Context, idx int, q entity.Question, alive []entity.GamePlayer, inbound <-chan inboundAnswer) error {
	cfg := m.deps.Config

	m.alivePlayers = alive
	m.aliveSet = make(map[uuid.UUID]entity.GamePlayer, len(alive))
	m.handles = make(map[uuid.UUID]string, len(alive))
	m.answeredThisTurn = make(map[uuid.UUID]struct{})
	m.rejectedNotAlive = make(map[uuid.UUID]struct{})

	for _, p := range alive {
		m.aliveSet[p.UserID] = p
		if user, err := m.deps.Users.GetByID(p.UserID); err == nil {
			m.handles[p.UserID] = user.Handle
		} else {
			log.Printf("[QSM] не удалось разрешить handle игрока %s в игре %s: %v", p.UserID, m.game.ID, err)
		}
	}

	preRollMs := m.game.PreRollMsOrDefault(cfg.QuestionDelay.Milliseconds())
	time.Sleep(time.Duration(preRollMs) * time.Millisecond)

	limitSec := q.TimeLimitSec
	if limitSec <= 0 {
		limitSec = cfg.DefaultTimeLimitSec
	}

	m.announce(idx, q)

	m.questionStart = time.Now()

	graceMs := m.game.GraceMsOrDefault(cfg.GraceMs)
	deadline := time.Duration(limitSec)*time.Second + time.Duration(graceMs)*time.Millisecond
	timer := time.NewTimer(deadline)
	defer timer.Stop()

accept:
	for {
		select {
		case ans, ok := <-inbound:
			if !ok {
				break accept
			}
			m.acceptAnswer(idx, ans)
			if m.allAnswered() {
				break accept
			}
		case <-timer.C:
			break accept
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.deps.Bus.Publish(Event{Type: EventQuestionClosed, GameID: m.game.ID, Payload: idx})
	return m.evaluate(idx, q)
}

// announce рассылает вопрос каждому живому игроку лично, с тремя кнопками:
// правильный ответ и два случайно выбранных отвлекающих варианта, перемешанные.
func (m *QSM) announce(idx int, q entity.Question) {
	m.deps.Bus.Publish(Event{Type: EventQuestionOpened, GameID: m.game.ID, Payload: idx})

	buttons := pickButtons(q)
	body := fmt.Sprintf("Q%d: %s", idx+1, q.Text)

	for _, p := range m.alivePlayers {
		handle, ok := m.handles[p.UserID]
		if !ok {
			continue
		}
		m.deps.Notifier.Enqueue(outbound.Request{
			Recipient: handle,
			Priority:  outbound.PriorityHigh,
			Kind:      outbound.KindQuestion,
			Message: transport.OutboundMessage{
				Recipient: handle,
				Type:      transport.TypeInteractive,
				Body:      body,
				Buttons:   buttons,
			},
		})
	}
}

// pickButtons реализует правило выбора кнопок: правильный ответ всегда
// присутствует, две оставшиеся кнопки — случайные варианты без повторений
// из прочих опций, финальная тройка перемешивается.
func pickButtons(q entity.Question) []transport.Button {
	var distractors []string
	for _, opt := range q.Options {
		if opt == q.CorrectAnswer {
			continue
		}
		distractors = append(distractors, opt)
	}
	rand.Shuffle(len(distractors), func(i, j int) { distractors[i], distractors[j] = distractors[j], distractors[i] })

	picks := []string{q.CorrectAnswer}
	for i := 0; i < len(distractors) && len(picks) < 3; i++ {
		picks = append(picks, distractors[i])
	}
	rand.Shuffle(len(picks), func(i, j int) { picks[i], picks[j] = picks[j], picks[i] })

	buttons := make([]transport.Button, len(picks))
	for i, title := range picks {
		buttons[i] = transport.Button{ID: fmt.Sprintf("btn_%d", i+1), Title: title}
	}
	return buttons
}

// acceptAnswer валидирует и записывает один присланный ответ, отвечая
// игроку одним из трёх вариантов: отказ выбывшему (только на первый такой
// отказ за вопрос), подтверждение дубликата или нейтральное подтверждение
// приёма.
func (m *QSM) acceptAnswer(idx int, ans inboundAnswer) {
	if _, alive := m.aliveSet[ans.UserID]; !alive {
		if _, already := m.rejectedNotAlive[ans.UserID]; !already {
			m.rejectedNotAlive[ans.UserID] = struct{}{}
			m.sendText(ans.UserID, outbound.PriorityLow, "You're already eliminated from this game.")
		}
		return
	}

	if _, dup := m.answeredThisTurn[ans.UserID]; dup {
		m.sendText(ans.UserID, outbound.PriorityLow, "Your first answer was locked in.")
		return
	}

	responseMs := ans.ReceivedAt.Sub(m.questionStart).Milliseconds()
	stored := repository.StoredAnswer{
		UserID:         ans.UserID,
		SubmittedText:  ans.Text,
		ResponseTimeMs: responseMs,
	}

	put, err := m.deps.Store.Put(m.game.ID, idx, stored)
	if err != nil {
		log.Printf("[QSM] не удалось сохранить ответ игрока %s в игре %s: %v", ans.UserID, m.game.ID, err)
		m.sendText(ans.UserID, outbound.PriorityLow, "We couldn't record that — please try again.")
		return
	}
	if !put {
		m.sendText(ans.UserID, outbound.PriorityLow, "Your first answer was locked in.")
		return
	}

	m.answeredThisTurn[ans.UserID] = struct{}{}
	m.sendText(ans.UserID, outbound.PriorityLow, "Answer received. Await the next round.")
}

func (m *QSM) allAnswered() bool {
	count, err := m.deps.Store.Count(m.game.ID, m.currentIndex)
	if err != nil {
		return false
	}
	return count >= int64(len(m.alivePlayers))
}

// evaluate читает все поданные ответы, определяет выбывших и персистирует
// выбывания и счётчики ответов одной транзакцией — по аналогии с
// teacher'овским CalculateRanks/FindAndUpdateWinners. Строки PlayerAnswer
// пишутся уже после транзакции: ошибка этой записи только логируется и не
// останавливает партию.
//
// Если Answer Store недоступен на момент оценки вопроса, чтение повторяется
// MaxRetries раз с паузой RetryInterval — подать ответ повторно в это окно
// игроки уже не могут, так что откатываться некуда; если Store так и не
// ответил, партия не может быть честно оценена и завершается как cancelled
// с извинением в чат вместо зависания или тихого пропуска раунда.
func (m *QSM) evaluate(idx int, q entity.Question) error {
	submissions, err := m.getSubmissionsWithRetry(idx)
	if err != nil {
		log.Printf("[QSM] answer store недоступен при оценке вопроса %d игры %s после %d попыток: %v",
			idx, m.game.ID, m.deps.Config.MaxRetries, err)
		m.cancelWithApology()
		return fmt.Errorf("answer store unavailable at evaluation: %w", err)
	}

	outcome := computeRoundOutcome(m.game.ID, idx, q, m.alivePlayers, submissions, time.Now())

	err = m.deps.DB.Transaction(func(tx *gorm.DB) error {
		for _, p := range outcome.eliminated {
			if err := m.deps.Players.Eliminate(tx, p.ID, idx); err != nil {
				return err
			}
		}
		for userID, correct := range outcome.correctByUser {
			player, ok := m.aliveSet[userID]
			if !ok {
				continue
			}
			if err := m.deps.Players.IncrementAnswerCounts(tx, player.ID, correct); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist evaluation: %w", err)
	}

	if len(outcome.toPersist) > 0 {
		if err := m.deps.Answers.SaveBatch(outcome.toPersist); err != nil {
			log.Printf("[QSM] не удалось сохранить ответы на вопрос %d игры %s: %v", idx, m.game.ID, err)
		}
	}

	if err := m.deps.Store.Clear(m.game.ID, idx); err != nil {
		log.Printf("[QSM] не удалось очистить answer store для вопроса %d игры %s: %v", idx, m.game.ID, err)
	}

	for _, p := range outcome.eliminated {
		m.deps.Bus.Publish(Event{Type: EventPlayerEliminated, GameID: m.game.ID, Payload: p.UserID})
	}

	return m.notify(idx, q, outcome)
}

// getSubmissionsWithRetry читает поданные на вопрос ответы, повторяя
// попытку при ошибке Answer Store до Config.MaxRetries раз с паузой
// Config.RetryInterval между ними.
func (m *QSM) getSubmissionsWithRetry(idx int) ([]repository.StoredAnswer, error) {
	var submissions []repository.StoredAnswer
	var err error

	attempts := m.deps.Config.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		submissions, err = m.deps.Store.GetAll(m.game.ID, idx)
		if err == nil {
			return submissions, nil
		}
		if attempt < attempts-1 {
			time.Sleep(m.deps.Config.RetryInterval)
		}
	}
	return nil, err
}

// cancelWithApology переводит партию в cancelled и рассылает извинение всем
// живым игрокам — используется, когда дальнейшая честная игра невозможна
// (Answer Store не отвечает, либо актор партии восстановился после паники).
func (m *QSM) cancelWithApology() {
	if err := m.deps.Games.UpdateStatus(m.game.ID, entity.GameStatusCancelled); err != nil {
		log.Printf("[QSM] не удалось перевести игру %s в cancelled: %v", m.game.ID, err)
	}
	for _, p := range m.alivePlayers {
		m.sendText(p.UserID, outbound.PriorityHigh, "We hit a technical error and had to cancel this game. Sorry about that.")
	}
	m.deps.Bus.Publish(Event{Type: EventGameEnded, GameID: m.game.ID, Payload: nil})
}

// notify шлёт каждому игроку вопроса индивидуальное сообщение о результате:
// выжившим — подтверждение, выбывшим — прощание, оба варианта содержат
// правильный ответ на вопрос.
func (m *QSM) notify(idx int, q entity.Question, outcome roundOutcome) error {
	time.Sleep(m.deps.Config.AnswerRevealDelay)

	eliminatedSet := make(map[uuid.UUID]struct{}, len(outcome.eliminated))
	for _, p := range outcome.eliminated {
		eliminatedSet[p.UserID] = struct{}{}
	}

	for _, p := range m.alivePlayers {
		var text string
		if _, out := eliminatedSet[p.UserID]; out {
			text = fmt.Sprintf("❌ Correct Answer: %s\n\n💀 You're out this game…", q.CorrectAnswer)
		} else {
			text = fmt.Sprintf("✅ Correct Answer: %s\n\n🎉 You're still in!", q.CorrectAnswer)
		}
		m.sendText(p.UserID, outbound.PriorityHigh, text)
	}

	interQuestionMs := m.game.InterQuestionMsOrDefault(m.deps.Config.InterQuestionDelay.Milliseconds())
	time.Sleep(time.Duration(interQuestionMs) * time.Millisecond)
	return nil
}

// finish завершает партию: определяет победителей, делит призовой фонд и
// переводит статус игры в finished. Финальное сообщение рассылается всем
// участникам партии, включая выбывших ранее игроков.
func (m *QSM) finish() error {
	allPlayers, err := m.deps.Players.GetAllByGame(m.game.ID)
	if err != nil {
		return fmt.Errorf("get all players at finish: %w", err)
	}

	alive, err := m.deps.Players.GetAliveByGame(m.game.ID)
	if err != nil {
		return fmt.Errorf("get alive players at finish: %w", err)
	}

	winnerIDs := make([]uuid.UUID, 0, len(alive))
	for _, p := range alive {
		winnerIDs = append(winnerIDs, p.UserID)
	}

	err = m.deps.DB.Transaction(func(tx *gorm.DB) error {
		if len(winnerIDs) > 0 {
			if err := m.deps.Players.SplitPrize(tx, m.game.ID, winnerIDs, m.game.PrizePool.StringFixed(2)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("split prize: %w", err)
	}

	endedAt := time.Now()
	if err := m.deps.Games.FinalizeResult(m.game.ID, len(winnerIDs), endedAt); err != nil {
		return fmt.Errorf("finalize game status: %w", err)
	}
	m.game.WinnerCount = len(winnerIDs)
	m.game.EndedAt = &endedAt

	text := finishMessage(m.game.PrizePool, len(winnerIDs))
	for _, p := range allPlayers {
		m.sendText(p.UserID, outbound.PriorityHigh, text)
	}

	m.deps.Bus.Publish(Event{Type: EventGameEnded, GameID: m.game.ID, Payload: winnerIDs})
	log.Printf("[QSM] игра %s завершена, победителей: %d", m.game.ID, len(winnerIDs))
	return nil
}

// finishMessage строит текст итогового сообщения по одному из трёх шаблонов:
// без победителей, один победитель или несколько (поровну делящих пул).
func finishMessage(prizePool decimal.Decimal, winnerCount int) string {
	pool := prizePool.StringFixed(2)

	switch {
	case winnerCount == 0:
		return "Game over — no winners this round. Better luck next time!"
	case winnerCount == 1:
		return fmt.Sprintf("🏆 Game over — we have a winner!\n\n💰 Prize: $%s\n\nCongratulations!", pool)
	default:
		individual := prizePool.Div(decimal.NewFromInt(int64(winnerCount))).RoundBank(2).StringFixed(2)
		return fmt.Sprintf("🏆 Game over — we have winners!\n\nWinners: %d\nPrize pool: $%s\nEach winner receives: $%s",
			winnerCount, pool, individual)
	}
}

// sendText ставит в очередь одно текстовое сообщение конкретному игроку,
// резолвя handle из уже загруженного на этот вопрос кэша либо напрямую из
// UserRepository (финальные сообщения отправляются и выбывшим раньше
// игрокам, чьи handle'ы в m.handles для текущего вопроса не попадали).
func (m *QSM) sendText(userID uuid.UUID, priority outbound.Priority, text string) {
	handle, ok := m.handles[userID]
	if !ok {
		user, err := m.deps.Users.GetByID(userID)
		if err != nil {
			log.Printf("[QSM] не удалось разрешить handle игрока %s в игре %s: %v", userID, m.game.ID, err)
			return
		}
		handle = user.Handle
	}

	m.deps.Notifier.Enqueue(outbound.Request{
		Recipient: handle,
		Priority:  priority,
		Kind:      outbound.KindText,
		Message: transport.OutboundMessage{
			Recipient: handle,
			Type:      transport.TypeText,
			Body:      text,
		},
	})
}

// roundOutcome — результат чистой оценки одного закрытого окна приёма
// ответов, без побочных эффектов на БД. Вынесена из evaluate, чтобы логику
// sudden-death правил можно было проверить без поднятия транзакции.
type roundOutcome struct {
	eliminated    []entity.GamePlayer
	survivors     []uuid.UUID
	toPersist     []entity.PlayerAnswer
	correctByUser map[uuid.UUID]bool
}

// computeRoundOutcome определяет, кто из alive-игроков отвечает правильно,
// кто выбывает и почему. Правило sudden death (без исключений): любой
// неверный, поздний или отсутствующий ответ выбывает игрока — даже если это
// означает, что в живых не остаётся никого.
func computeRoundOutcome(gameID uuid.UUID, questionIndex int, q entity.Question, alive []entity.GamePlayer, submissions []repository.StoredAnswer, now time.Time) roundOutcome {
	bySubmitter := make(map[uuid.UUID]repository.StoredAnswer, len(submissions))
	for _, s := range submissions {
		bySubmitter[s.UserID] = s
	}

	out := roundOutcome{correctByUser: make(map[uuid.UUID]bool, len(alive))}

	for _, player := range alive {
		sub, answered := bySubmitter[player.UserID]
		var correct bool
		var reason string

		switch {
		case !answered:
			reason = ReasonTimedOut
		case !q.IsValidOption(sub.SubmittedText):
			reason = ReasonInvalidInput
		case q.IsCorrect(sub.SubmittedText):
			correct = true
		default:
			reason = ReasonWrongAnswer
		}

		if answered {
			out.correctByUser[player.UserID] = correct
			out.toPersist = append(out.toPersist, entity.PlayerAnswer{
				ID:                uuid.New(),
				UserID:            player.UserID,
				GameID:            gameID,
				QuestionID:        q.ID,
				SubmittedText:     sub.SubmittedText,
				IsCorrect:         correct,
				ResponseTimeMs:    sub.ResponseTimeMs,
				IsEliminated:      !correct,
				EliminationReason: reason,
				CreatedAt:         now,
			})
		}

		if correct {
			out.survivors = append(out.survivors, player.UserID)
		} else {
			p := player
			p.Eliminate(questionIndex, now)
			out.eliminated = append(out.eliminated, p)
		}
	}

	return out
}
