package engine

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// EventType перечисляет события жизненного цикла партии, публикуемые движком
// для внешних подписчиков (например HTTP-хендлеров статуса или метрик).
type EventType string

const (
	EventAnnounced        EventType = "announced"
	EventGameStarted      EventType = "game_started"
	EventQuestionOpened   EventType = "question_opened"
	EventQuestionClosed   EventType = "question_closed"
	EventPlayerEliminated EventType = "player_eliminated"
	EventGameEnded        EventType = "game_ended"
	EventGameExpired      EventType = "game_expired"
)

// Event — единица уведомления шины событий партии.
type Event struct {
	Type    EventType
	GameID  uuid.UUID
	Payload interface{}
}

// Bus — простая широковещательная шина поверх каналов-подписчиков.
// Генерализация teacher-паттерна register/unregister/broadcast из
// websocket.Shard, но без привязки к сетевому соединению — подписчики здесь
// внутрипроцессные (актор, планировщик, наблюдатели).
type Bus struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBus создаёт пустую шину событий
func NewBus() *Bus {
	return &Bus{subscribers: make(map[chan Event]struct{})}
}

// Subscribe регистрирует нового подписчика и возвращает канал для чтения.
// Вызывающий должен в конце вызвать Unsubscribe.
func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, 32)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe отписывает канал и закрывает его.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish рассылает событие всем подписчикам неблокирующе — переполненный
// подписчик событие теряет, но не тормозит остальных.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			log.Printf("[EventBus] подписчик переполнен, событие %s для игры %s потеряно", ev.Type, ev.GameID)
		}
	}
}
