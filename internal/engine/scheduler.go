package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/qrush/internal/domain/entity"
	"github.com/yourusername/qrush/internal/domain/repository"
	"github.com/yourusername/qrush/internal/outbound"
	"github.com/yourusername/qrush/internal/transport"
)

// Scheduler опрашивает таблицу игр с постоянным периодом и переводит их по
// статусам scheduled → pre_game → in_progress через CompareAndSwapStatus, и
// списывает в expired партии, чей старт был безнадёжно пропущен.
//
// Это сознательный отход от teacher'овского Scheduler — там на каждую
// викторину заводилась отдельная горутина со стадированными таймерами и
// sync.Map отмен (runQuizSequence). Эта партия может стартовать на любом из
// нескольких инстансов движка одновременно — единственный безопасный барьер
// против двойного запуска при нескольких читателях одной таблицы это CAS на
// уровне БД, а не in-memory таймер на одном процессе.
type Scheduler struct {
	config   *Config
	games    repository.GameRepository
	notifier Notifier
	bus      *Bus
	onStart  func(gameID uuid.UUID)

	announced map[uuid.UUID]bool
}

// NewScheduler создаёт планировщик партий.
func NewScheduler(config *Config, games repository.GameRepository, notifier Notifier, bus *Bus, onStart func(gameID uuid.UUID)) *Scheduler {
	return &Scheduler{
		config:    config,
		games:     games,
		notifier:  notifier,
		bus:       bus,
		onStart:   onStart,
		announced: make(map[uuid.UUID]bool),
	}
}

// Run запускает цикл опроса до отмены ctx.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	log.Printf("[Scheduler] запущен, интервал опроса %v", s.config.SweepInterval)
	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			log.Printf("[Scheduler] остановлен")
			return
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	games, err := s.games.GetScheduled()
	if err != nil {
		log.Printf("[Scheduler] не удалось получить список игр: %v", err)
		return
	}

	for _, game := range games {
		untilStart := time.Until(game.ScheduledTime)

		switch game.Status {
		case entity.GameStatusScheduled:
			if s.maybeExpire(game, untilStart) {
				continue
			}
			s.maybeAnnounce(ctx, game, untilStart)
		case entity.GameStatusPreGame:
			s.maybeStart(ctx, game, untilStart)
		}
	}
}

// maybeExpire списывает партию в expired, если её старт пропущен более чем
// на Config.ExpiryGrace, а она так и не вышла из scheduled (никто не
// присоединился, либо инстанс, который должен был её анонсировать, не успел).
func (s *Scheduler) maybeExpire(game entity.Game, untilStart time.Duration) bool {
	if untilStart > -s.config.ExpiryGrace {
		return false
	}

	ok, err := s.games.CompareAndSwapStatus(game.ID, entity.GameStatusScheduled, entity.GameStatusExpired)
	if err != nil {
		log.Printf("[Scheduler] ошибка перехода в expired игры %s: %v", game.ID, err)
		return false
	}
	if !ok {
		return false
	}

	log.Printf("[Scheduler] игра %s пропущена и списана в expired (старт был %v назад)", game.ID, -untilStart.Round(time.Second))
	delete(s.announced, game.ID)
	s.bus.Publish(Event{Type: EventGameExpired, GameID: game.ID})
	return true
}

func (s *Scheduler) maybeAnnounce(ctx context.Context, game entity.Game, untilStart time.Duration) {
	threshold := time.Duration(s.config.AnnouncementMinutes) * time.Minute
	if untilStart > threshold {
		return
	}

	ok, err := s.games.CompareAndSwapStatus(game.ID, entity.GameStatusScheduled, entity.GameStatusPreGame)
	if err != nil {
		log.Printf("[Scheduler] ошибка перехода в pre_game игры %s: %v", game.ID, err)
		return
	}
	if !ok {
		// другой инстанс уже выполнил переход
		return
	}

	log.Printf("[Scheduler] игра %s: анонс, старт через %v", game.ID, untilStart.Round(time.Second))
	s.bus.Publish(Event{Type: EventAnnounced, GameID: game.ID})

	text := fmt.Sprintf("Анонс: игра %q начнётся через %d мин. Зарегистрируйтесь, отправив любое сообщение в чат.",
		game.Title, int(untilStart.Minutes()))
	s.sendChat(game.ChatID, text)
}

func (s *Scheduler) maybeStart(ctx context.Context, game entity.Game, untilStart time.Duration) {
	countdown := time.Duration(s.config.CountdownSeconds) * time.Second

	if untilStart <= 0 {
		ok, err := s.games.CompareAndSwapStatus(game.ID, entity.GameStatusPreGame, entity.GameStatusInProgress)
		if err != nil {
			log.Printf("[Scheduler] ошибка старта игры %s: %v", game.ID, err)
			return
		}
		if !ok {
			// другой инстанс уже стартовал эту игру
			return
		}

		log.Printf("[Scheduler] игра %s стартует", game.ID)
		delete(s.announced, game.ID)
		s.onStart(game.ID)
		return
	}

	if untilStart <= countdown && !s.announced[game.ID] {
		s.announced[game.ID] = true
		text := fmt.Sprintf("Игра начинается через %d сек!", int(untilStart.Seconds()))
		s.sendChat(game.ChatID, text)
	}
}

// sendChat ставит в очередь сообщение в групповой чат (анонс/обратный
// отсчёт), не адресованное конкретному игроку.
func (s *Scheduler) sendChat(chatID, text string) {
	s.notifier.Enqueue(outbound.Request{
		Recipient: chatID,
		Priority:  outbound.PriorityNormal,
		Kind:      outbound.KindText,
		Message: transport.OutboundMessage{
			Recipient: chatID,
			Type:      transport.TypeText,
			Body:      text,
		},
	})
}
