// Package circuitbreaker реализует breaker с полной машиной состояний
// Closed/Open/Half-Open на сервис, генерализуя teacher-реализацию в
// content.ContentManager — там булев флаг isOpen переключался по счётчику
// подряд идущих ошибок (circuitBreaker.recordFailure/recordSuccess). Здесь
// добавлено полу-открытое состояние с пробными запросами, как того требует
// защита исходящих сообщений чат-транспорта от каскадных сбоев.
package circuitbreaker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// State — состояние breaker'а.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen возвращается Execute, когда breaker разомкнут и fallback не задан.
var ErrOpen = errors.New("circuit breaker: service unavailable")

// Config задаёт пороги breaker'а.
type Config struct {
	// FailureThreshold — сколько подряд идущих ошибок размыкает breaker
	FailureThreshold int
	// RecoveryTimeout — сколько ждать в Open перед пробным переходом в Half-Open
	RecoveryTimeout time.Duration
	// SuccessThreshold — сколько подряд идущих успехов в Half-Open замыкает breaker обратно
	SuccessThreshold int
}

// DefaultConfig — пороги по умолчанию
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 10,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 5,
	}
}

// Breaker — один breaker, привязанный к имени сервиса (serviceName).
type Breaker struct {
	name   string
	config Config

	mu              sync.Mutex
	state           State
	consecutiveFail int
	consecutiveOK   int
	openedAt        time.Time
}

// New создаёт breaker для сервиса с именем name.
func New(name string, config Config) *Breaker {
	return &Breaker{name: name, config: config, state: Closed}
}

// State возвращает текущее состояние breaker'а.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// currentState пересчитывает переход Open → Half-Open по истечении таймаута.
// Вызывающий должен удерживать мьютекс.
func (b *Breaker) currentState() State {
	if b.state == Open && time.Since(b.openedAt) >= b.config.RecoveryTimeout {
		b.state = HalfOpen
		b.consecutiveOK = 0
		log.Printf("[CircuitBreaker] %s: таймаут восстановления истёк, переход в half-open", b.name)
	}
	return b.state
}

// Execute выполняет op, если breaker не разомкнут. Если breaker открыт и
// fallback передан, вызывается fallback вместо op; иначе возвращается
// ErrOpen. Успех/неудача op учитываются в состоянии breaker'а.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error, fallback func(context.Context) error) error {
	b.mu.Lock()
	state := b.currentState()
	if state == Open {
		b.mu.Unlock()
		if fallback != nil {
			return fallback(ctx)
		}
		return ErrOpen
	}
	b.mu.Unlock()

	err := op(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure()
	} else {
		b.onSuccess()
	}
	return err
}

// onFailure должен вызываться под мьютексом.
func (b *Breaker) onFailure() {
	b.consecutiveOK = 0
	b.consecutiveFail++

	switch b.state {
	case HalfOpen:
		b.trip()
	case Closed:
		if b.consecutiveFail >= b.config.FailureThreshold {
			b.trip()
		}
	}
}

// onSuccess должен вызываться под мьютексом.
func (b *Breaker) onSuccess() {
	b.consecutiveFail = 0

	switch b.state {
	case HalfOpen:
		b.consecutiveOK++
		if b.consecutiveOK >= b.config.SuccessThreshold {
			b.state = Closed
			b.consecutiveOK = 0
			log.Printf("[CircuitBreaker] %s: %d подряд успешных попыток, breaker закрыт", b.name, b.config.SuccessThreshold)
		}
	case Closed:
		// уже закрыт, ничего не меняем
	}
}

func (b *Breaker) trip() {
	b.state = Open
	b.openedAt = time.Now()
	log.Printf("[CircuitBreaker] %s: breaker разомкнут после %d ошибок подряд", b.name, b.consecutiveFail)
}
