// Package outbound реализует очередь исходящих сообщений чата (OMQ):
// приоритетные буферы, троттлинг токен-бакетом, circuit breaker вокруг
// транспорта и экспоненциальный backoff с ограниченным числом попыток.
// Генерализация teacher-паттерна приоритетных буферов на шард соединений
// (websocket.WebSocketConfig.Priority), перенесённого с WS-рассылки на
// доставку сообщений во внешний чат-транспорт.
package outbound

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yourusername/qrush/internal/circuitbreaker"
	"github.com/yourusername/qrush/internal/transport"
)

// Priority — приоритет доставки сообщения.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// Kind — тип исходящего запроса, соответствующий шаблонам сообщений.
type Kind string

const (
	KindText        Kind = "text"
	KindInteractive Kind = "interactive"
	KindQuestion    Kind = "question"
	KindElimination Kind = "elimination"
	KindWinner      Kind = "winner"
)

// Request — одна единица работы очереди.
type Request struct {
	Recipient    string
	Priority     Priority
	Kind         Kind
	Message      transport.OutboundMessage
	AttemptsLeft int
}

// Config настраивает очередь.
type Config struct {
	Workers       int
	RatePerSecond float64 // глобальный потолок запросов к транспорту в секунду
	RateBurst     int
	MaxAttempts   int
	BaseBackoff   time.Duration
	SendTimeout   time.Duration
	QueueSize     int
}

// DefaultConfig — настройки по умолчанию
func DefaultConfig() Config {
	return Config{
		Workers:       4,
		RatePerSecond: 20,
		RateBurst:     20,
		MaxAttempts:   3,
		BaseBackoff:   500 * time.Millisecond,
		SendTimeout:   10 * time.Second,
		QueueSize:     1024,
	}
}

// Queue — очередь исходящих сообщений. Несколько dispatch-горутин читают
// high/normal/low в этом порядке приоритета и раскладывают запросы по
// отдельному FIFO-подканалу на каждого получателя (generalizing teacher's
// per-user WebSocket send ordering), так что два сообщения одному получателю
// всегда доставляются в порядке постановки в очередь, а между получателями
// порядок не гарантируется.
type Queue struct {
	config    Config
	transport transport.ChatTransport
	breaker   *circuitbreaker.Breaker
	limiter   *rate.Limiter

	high, normal, low chan Request

	mu           sync.Mutex
	perRecipient map[string]chan Request
	wg           sync.WaitGroup
}

// New создаёт очередь исходящих сообщений.
func New(config Config, ct transport.ChatTransport, breaker *circuitbreaker.Breaker) *Queue {
	return &Queue{
		config:       config,
		transport:    ct,
		breaker:      breaker,
		limiter:      rate.NewLimiter(rate.Limit(config.RatePerSecond), config.RateBurst),
		high:         make(chan Request, config.QueueSize),
		normal:       make(chan Request, config.QueueSize),
		low:          make(chan Request, config.QueueSize),
		perRecipient: make(map[string]chan Request),
	}
}

// Start запускает dispatch-воркеры, читающие приоритетные каналы до отмены ctx.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.dispatch(ctx)
	}
	log.Printf("[OutboundQueue] запущено %d dispatch-воркеров, лимит %.1f сообщений/сек", q.config.Workers, q.config.RatePerSecond)
}

// Stop дожидается завершения всех воркеров после отмены ctx вызывающим.
func (q *Queue) Stop() {
	q.wg.Wait()
}

// Enqueue ставит сообщение в очередь соответствующего приоритета.
func (q *Queue) Enqueue(req Request) {
	if req.AttemptsLeft <= 0 {
		req.AttemptsLeft = q.config.MaxAttempts
	}

	var target chan Request
	switch req.Priority {
	case PriorityHigh:
		target = q.high
	case PriorityNormal:
		target = q.normal
	default:
		target = q.low
	}

	select {
	case target <- req:
	default:
		log.Printf("[OutboundQueue] очередь приоритета %v переполнена, сообщение для %s отброшено", req.Priority, req.Recipient)
	}
}

// dispatch читает приоритетные каналы в порядке high → normal → low и
// передаёт запрос в FIFO-подканал получателя.
func (q *Queue) dispatch(ctx context.Context) {
	defer q.wg.Done()
	for {
		req, ok := q.nextRequest(ctx)
		if !ok {
			return
		}
		q.recipientChannel(ctx, req.Recipient) <- req
	}
}

func (q *Queue) nextRequest(ctx context.Context) (Request, bool) {
	select {
	case req := <-q.high:
		return req, true
	default:
	}
	select {
	case req := <-q.high:
		return req, true
	case req := <-q.normal:
		return req, true
	default:
	}
	select {
	case req := <-q.high:
		return req, true
	case req := <-q.normal:
		return req, true
	case req := <-q.low:
		return req, true
	case <-ctx.Done():
		return Request{}, false
	}
}

// recipientChannel возвращает (создавая при необходимости) FIFO-канал
// получателя и его обслуживающую горутину, которая доставляет сообщения этому
// получателю строго по одному за раз, в порядке поступления.
func (q *Queue) recipientChannel(ctx context.Context, recipient string) chan Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch, ok := q.perRecipient[recipient]
	if ok {
		return ch
	}

	ch = make(chan Request, q.config.QueueSize)
	q.perRecipient[recipient] = ch
	q.wg.Add(1)
	go q.serveRecipient(ctx, recipient, ch)
	return ch
}

func (q *Queue) serveRecipient(ctx context.Context, recipient string, ch chan Request) {
	defer q.wg.Done()
	for {
		select {
		case req := <-ch:
			q.deliver(ctx, req)
		case <-ctx.Done():
			return
		}
	}
}

// deliver отправляет сообщение через circuit breaker и транспорт с глобальным
// rate-limit, синхронно повторяя временные сбои с экспоненциальным backoff —
// синхронно, чтобы следующее сообщение этого же получателя не обошло текущее.
func (q *Queue) deliver(ctx context.Context, req Request) {
	for {
		if err := q.limiter.Wait(ctx); err != nil {
			return
		}

		sendCtx, cancel := context.WithTimeout(ctx, q.config.SendTimeout)
		err := q.breaker.Execute(sendCtx, func(c context.Context) error {
			return q.transport.Send(c, req.Message)
		}, nil)
		cancel()

		if err == nil {
			return
		}

		if !q.isTransient(err) {
			log.Printf("[OutboundQueue] постоянная ошибка доставки получателю %s, сообщение отброшено: %v", req.Recipient, err)
			return
		}

		req.AttemptsLeft--
		if req.AttemptsLeft <= 0 {
			log.Printf("[OutboundQueue] исчерпаны попытки доставки получателю %s: %v", req.Recipient, err)
			return
		}

		attempt := q.config.MaxAttempts - req.AttemptsLeft
		backoff := q.config.BaseBackoff * time.Duration(1<<uint(attempt))
		log.Printf("[OutboundQueue] временная ошибка доставки получателю %s, повтор через %v (осталось попыток: %d): %v",
			req.Recipient, backoff, req.AttemptsLeft, err)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
	}
}

func (q *Queue) isTransient(err error) bool {
	if err == circuitbreaker.ErrOpen {
		return true
	}
	if te, ok := err.(*transport.TransportError); ok {
		return te.IsTransient()
	}
	return false
}
