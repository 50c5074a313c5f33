package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// inboundAnswer — ответ игрока, дошедший от транспорта до актора партии.
type inboundAnswer struct {
	UserID     uuid.UUID
	Text       string
	ReceivedAt time.Time
}

// Actor обслуживает ровно одну партию: читает почтовый ящик ответов и
// прогоняет их через QSM. Генерализация select-цикла websocket.Shard.Run() —
// там мультиплексировались register/unregister/broadcast по каналам одного
// шарда соединений, здесь — входящие ответы одной партии.
type Actor struct {
	gameID  uuid.UUID
	mailbox chan inboundAnswer
	qsm     *QSM
	done    chan struct{}
}

// NewActor создаёt актора партии с буферизированным почтовым ящиком.
func NewActor(gameID uuid.UUID, qsm *QSM, mailboxSize int) *Actor {
	return &Actor{
		gameID:  gameID,
		mailbox: make(chan inboundAnswer, mailboxSize),
		qsm:     qsm,
		done:    make(chan struct{}),
	}
}

// Run запускает партию до конца и закрывает done по выходу. Блокирующий
// вызов — предназначен для запуска в отдельной горутине менеджером.
//
// Паника внутри QSM.Run перехватывается по аналогии с defer/recover вокруг
// транзакции в ResultService.CalculateQuizResult учителя: партия переводится
// в cancelled с извинением в чат вместо падения всего процесса движка.
func (a *Actor) Run(ctx context.Context) (err error) {
	defer close(a.done)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Actor] PANIC recovered в партии %s: %v", a.gameID, r)
			a.qsm.cancelWithApology()
			err = fmt.Errorf("recovered panic: %v", r)
		}
	}()

	err = a.qsm.Run(ctx, a.mailbox)
	if err != nil {
		log.Printf("[Actor] партия %s завершилась с ошибкой: %v", a.gameID, err)
	}
	return err
}

// SubmitAnswer доставляет ответ игрока в почтовый ящик актора, не блокируясь —
// переполненный ящик означает, что партия не успевает обрабатывать нагрузку;
// в этом случае ответ отбрасывается и вызывающий получает false.
func (a *Actor) SubmitAnswer(userID uuid.UUID, text string) bool {
	select {
	case a.mailbox <- inboundAnswer{UserID: userID, Text: text, ReceivedAt: time.Now()}:
		return true
	default:
		log.Printf("[Actor] почтовый ящик партии %s переполнен, ответ игрока %s отброшен", a.gameID, userID)
		return false
	}
}

// Done возвращает канал, закрываемый по завершении партии.
func (a *Actor) Done() <-chan struct{} {
	return a.done
}
