package engine

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Engine — композиционный корень игрового движка: владеет планировщиком и
// реестром акторов активных партий, генерализация оркестрации верхнего
// уровня из QuizManager.handleEvents — там один select слушал канал запуска
// от Scheduler и канал завершения вопросов от QuestionManager; здесь вместо
// единственной активной викторины одновременно может идти несколько партий
// (разные чаты), поэтому оркестрация ведётся через реестр акторов по gameID,
// а не единое activeQuizState.
type Engine struct {
	deps      *Dependencies
	scheduler *Scheduler
	bus       *Bus

	mu     sync.Mutex
	actors map[uuid.UUID]*Actor

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine собирает движок партий из готовых зависимостей.
func NewEngine(deps *Dependencies) *Engine {
	bus := deps.Bus
	if bus == nil {
		bus = NewBus()
		deps.Bus = bus
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		deps:   deps,
		bus:    bus,
		actors: make(map[uuid.UUID]*Actor),
		ctx:    ctx,
		cancel: cancel,
	}
	e.scheduler = NewScheduler(deps.Config, deps.Games, deps.Notifier, bus, e.startGame)
	return e
}

// Start восстанавливает партии, оставшиеся in_progress после рестарта
// процесса, и запускает планировщик в фоне. Вызывать один раз при старте.
func (e *Engine) Start() {
	e.recoverStuckGame()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.scheduler.Run(e.ctx)
	}()
	log.Println("[Engine] движок партий запущен")
}

// recoverStuckGame подхватывает партию, которая была in_progress на момент
// падения процесса — без этого она осталась бы вечно висеть в этом статусе,
// а CAS планировщика никогда бы в неё не попал (CompareAndSwapStatus требует
// исходный статус scheduled/pre_game).
func (e *Engine) recoverStuckGame() {
	game, err := e.deps.Games.GetActive()
	if err != nil {
		return
	}
	log.Printf("[Engine] обнаружена незавершённая партия %s после рестарта, возобновляю", game.ID)
	e.startGame(game.ID)
}

// Shutdown останавливает планировщик и ждёт завершения фоновых горутин.
// Уже идущие партии при этом не прерываются принудительно — они доиграют
// до следующей естественной точки остановки и завершатся по ctx.Done() их
// собственного Run.
func (e *Engine) Shutdown() {
	log.Println("[Engine] остановка движка партий")
	e.cancel()
	e.wg.Wait()
}

// startGame поднимает QSM и актора для только что переведённой в in_progress
// партии — колбэк, который Scheduler вызывает после успешного CAS.
func (e *Engine) startGame(gameID uuid.UUID) {
	game, err := e.deps.Games.GetWithQuestions(gameID)
	if err != nil {
		log.Printf("[Engine] не удалось загрузить игру %s для старта: %v", gameID, err)
		return
	}
	if len(game.Questions) == 0 {
		log.Printf("[Engine] игра %s не имеет вопросов, старт отменён", gameID)
		return
	}

	qsm := NewQSM(e.deps, game, game.Questions)
	actor := NewActor(gameID, qsm, e.deps.Config.MailboxSize)

	e.mu.Lock()
	e.actors[gameID] = actor
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			delete(e.actors, gameID)
			e.mu.Unlock()
		}()
		if err := actor.Run(e.ctx); err != nil {
			log.Printf("[Engine] партия %s завершилась с ошибкой: %v", gameID, err)
		}
	}()
}

// SubmitAnswer маршрутизирует ответ игрока в почтовый ящик актора активной
// партии. Возвращает ошибку, если партия сейчас не идёт.
func (e *Engine) SubmitAnswer(gameID, userID uuid.UUID, text string) error {
	e.mu.Lock()
	actor, ok := e.actors[gameID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("игра %s сейчас не активна", gameID)
	}
	if !actor.SubmitAnswer(userID, text) {
		return fmt.Errorf("не удалось доставить ответ игрока %s в игру %s", userID, gameID)
	}
	return nil
}

// IsRunning сообщает, идёт ли партия прямо сейчас под управлением движка.
func (e *Engine) IsRunning(gameID uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.actors[gameID]
	return ok
}

// Bus возвращает шину событий движка для внешних подписчиков.
func (e *Engine) Bus() *Bus {
	return e.bus
}
