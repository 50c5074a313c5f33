// Package webhook разбирает входящие события транспорта чата и передаёт
// ответы игроков движку партий. Синхронная часть (разбор, идемпотентность,
// ACK) следует форме teacher'овских gin-хендлеров (handler.WSHandler,
// handler.AuthHandler: один handler-тип держит зависимости, один метод на
// запрос); доменная обработка асинхронна — разобранный ответ уходит в
// почтовый ящик владеющего игрой актора, и дальше дисптчер в неё не лезет.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/yourusername/qrush/internal/domain/entity"
	"github.com/yourusername/qrush/internal/domain/repository"
	"github.com/yourusername/qrush/internal/outbound"
	"github.com/yourusername/qrush/internal/transport"
)

// intent классифицирует намерение входящего текстового сообщения.
type intent int

const (
	intentAnswer intent = iota
	intentJoin
	intentHelp
)

// classifyIntent распознаёт служебные команды (регистрация, помощь) среди
// произвольного текста ответа — остальное трактуется как попытка ответить
// на текущий открытый вопрос.
func classifyIntent(text string) intent {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "join", "register", "play", "in":
		return intentJoin
	case "help", "?":
		return intentHelp
	default:
		return intentAnswer
	}
}

const helpText = "Reply \"join\" to register for the next game. Once a round starts, just send the answer text to the question."

// Notifier абстрагирует доставку служебных ответов диспетчера (подтверждение
// регистрации, help) — тот же контракт, что у internal/engine.Notifier,
// продублированный здесь, чтобы пакет webhook не зависел от internal/engine.
type Notifier interface {
	Enqueue(req outbound.Request)
}

// idempotencyCacheSize — сколько последних webhook id хранить, чтобы
// отбрасывать повторную доставку от транспорта без повторной обработки.
const idempotencyCacheSize = 10000

// GameRouter доставляет разобранный текст ответа в актор активной партии.
// Реализуется *engine.Engine; интерфейс здесь только чтобы пакет webhook не
// зависел от внутренностей движка.
type GameRouter interface {
	SubmitAnswer(gameID, userID uuid.UUID, text string) error
}

// inboundMessage — одно сообщение, извлечённое из конверта транспорта.
type inboundMessage struct {
	From string // handle игрока (номер WhatsApp в формате E.164)
	ID   string // id сообщения — используется для идемпотентности
	Text string
}

// inboundEnvelope — JSON-конверт WhatsApp Business webhook.
type inboundEnvelope struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					ID   string `json:"id"`
					Type string `json:"type"`
					Text *struct {
						Body string `json:"body"`
					} `json:"text,omitempty"`
					Interactive *struct {
						ButtonReply struct {
							ID    string `json:"id"`
							Title string `json:"title"`
						} `json:"button_reply"`
					} `json:"interactive,omitempty"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// extractMessages разворачивает конверт транспорта в плоский список
// сообщений, беря текст либо из text.body, либо из interactive.button_reply.title.
func extractMessages(env inboundEnvelope) []inboundMessage {
	var out []inboundMessage
	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				text := ""
				switch {
				case msg.Text != nil:
					text = msg.Text.Body
				case msg.Interactive != nil:
					text = msg.Interactive.ButtonReply.Title
				default:
					continue // системные типы сообщений (image, sticker, ...) игнорируются
				}
				out = append(out, inboundMessage{From: msg.From, ID: msg.ID, Text: text})
			}
		}
	}
	return out
}

// Dispatcher — gin-хендлер входящего webhook'а чат-транспорта.
type Dispatcher struct {
	secret   []byte
	seen     *lru.Cache[string, struct{}]
	users    repository.UserRepository
	games    repository.GameRepository
	players  repository.GamePlayerRepository
	router   GameRouter
	notifier Notifier
}

// NewDispatcher создаёт диспетчер входящих сообщений чата.
func NewDispatcher(secret []byte, users repository.UserRepository, games repository.GameRepository, players repository.GamePlayerRepository, notifier Notifier, router GameRouter) *Dispatcher {
	cache, err := lru.New[string, struct{}](idempotencyCacheSize)
	if err != nil {
		// Происходит только при size <= 0, чего быть не может с константой
		log.Fatalf("[WebhookDispatcher] не удалось создать кэш идемпотентности: %v", err)
	}
	return &Dispatcher{secret: secret, seen: cache, users: users, games: games, players: players, notifier: notifier, router: router}
}

// Handle — gin-обработчик POST /webhook. ACK'ает транспорт немедленно после
// разбора и постановки сообщений в обработку (провайдер ожидает ответ в
// пределах нескольких секунд) — сама доставка в актор партии идёт в фоне и
// не блокирует ответ HTTP.
func (d *Dispatcher) Handle(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	if !d.verifySignature(c.GetHeader("X-Hub-Signature-256"), body) {
		log.Printf("[WebhookDispatcher] неверная подпись входящего webhook'а")
		c.Status(http.StatusForbidden)
		return
	}

	var env inboundEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	for _, msg := range extractMessages(env) {
		if msg.ID != "" {
			if _, dup := d.seen.Get(msg.ID); dup {
				continue
			}
			d.seen.Add(msg.ID, struct{}{})
		}
		go d.route(msg)
	}

	c.Status(http.StatusOK)
}

// route резолвит игрока и разбирает намерение сообщения: join регистрирует
// его на ближайшую партию в зале ожидания, help отвечает статической
// подсказкой, всё остальное трактуется как ответ и доставляется в актор
// активной партии. Webhook-конверт не несёт id партии напрямую — в один
// момент времени в продакшене активна ровно одна партия (как у teacher'а —
// одна активная викторина), поэтому маршрутизация идёт через
// GameRepository.GetActive/GetScheduled.
func (d *Dispatcher) route(msg inboundMessage) {
	user, err := d.users.GetOrCreateByHandle(msg.From)
	if err != nil {
		log.Printf("[WebhookDispatcher] не удалось разрешить игрока %s: %v", msg.From, err)
		return
	}

	switch classifyIntent(msg.Text) {
	case intentJoin:
		d.handleJoin(user.ID, msg.From)
	case intentHelp:
		d.reply(msg.From, helpText)
	default:
		d.handleAnswer(user.ID, msg.From, msg.Text)
	}
}

// handleJoin регистрирует игрока на ближайшую партию в зале ожидания
// (pre_game) — партии в статусе scheduled ещё не объявлены в чат, поэтому
// регистрация на них не предлагается.
func (d *Dispatcher) handleJoin(userID uuid.UUID, handle string) {
	games, err := d.games.GetScheduled()
	if err != nil {
		log.Printf("[WebhookDispatcher] не удалось получить список партий для регистрации %s: %v", handle, err)
		return
	}

	var target *entity.Game
	for i := range games {
		if games[i].Status == entity.GameStatusPreGame {
			target = &games[i]
			break
		}
	}
	if target == nil {
		d.reply(handle, "There's no open registration right now. We'll announce the next game here.")
		return
	}

	if existing, err := d.players.GetByGameAndUser(target.ID, userID); err == nil && existing != nil {
		d.reply(handle, "You're already registered for this game.")
		return
	}

	err = d.players.Create(&entity.GamePlayer{
		ID:       uuid.New(),
		GameID:   target.ID,
		UserID:   userID,
		Status:   entity.PlayerStatusRegistered,
		JoinedAt: time.Now(),
	})
	if err != nil {
		log.Printf("[WebhookDispatcher] не удалось зарегистрировать игрока %s в партии %s: %v", handle, target.ID, err)
		d.reply(handle, "We couldn't register you — please try again.")
		return
	}

	d.reply(handle, fmt.Sprintf("You're in! %q starts soon — we'll ping you here.", target.Title))
}

// handleAnswer доставляет текст сообщения как ответ на текущий вопрос актору
// активной партии.
func (d *Dispatcher) handleAnswer(userID uuid.UUID, handle, text string) {
	game, err := d.games.GetActive()
	if err != nil {
		d.reply(handle, helpText)
		return
	}

	if err := d.router.SubmitAnswer(game.ID, userID, text); err != nil {
		log.Printf("[WebhookDispatcher] не удалось доставить ответ игрока %s в партию %s: %v", handle, game.ID, err)
	}
}

// reply ставит в очередь одно служебное текстовое сообщение диспетчера.
func (d *Dispatcher) reply(handle, text string) {
	if d.notifier == nil {
		return
	}
	d.notifier.Enqueue(outbound.Request{
		Recipient: handle,
		Priority:  outbound.PriorityLow,
		Kind:      outbound.KindText,
		Message: transport.OutboundMessage{
			Recipient: handle,
			Type:      transport.TypeText,
			Body:      text,
		},
	})
}

// verifySignature сравнивает HMAC-SHA256 подпись тела запроса с заголовком
// X-Hub-Signature-256 (формат "sha256=<hex>") за постоянное время.
func (d *Dispatcher) verifySignature(header string, body []byte) bool {
	if len(d.secret) == 0 {
		return true // подпись не настроена (например, в dev-окружении)
	}

	const prefix = "sha256="
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return false
	}

	mac := hmac.New(sha256.New, d.secret)
	mac.Write(body)
	expected := mac.Sum(nil)

	given, err := hex.DecodeString(header[len(prefix):])
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(expected, given) == 1
}
