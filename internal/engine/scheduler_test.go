package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/qrush/internal/domain/entity"
	"github.com/yourusername/qrush/internal/outbound"
)

// mockGameRepo реализует repository.GameRepository для тестов планировщика
type mockGameRepo struct {
	mock.Mock
}

func (m *mockGameRepo) Create(game *entity.Game) error {
	args := m.Called(game)
	return args.Error(0)
}
func (m *mockGameRepo) GetByID(id uuid.UUID) (*entity.Game, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Game), args.Error(1)
}
func (m *mockGameRepo) GetActive() (*entity.Game, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Game), args.Error(1)
}
func (m *mockGameRepo) GetScheduled() ([]entity.Game, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Game), args.Error(1)
}
func (m *mockGameRepo) GetWithQuestions(id uuid.UUID) (*entity.Game, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Game), args.Error(1)
}
func (m *mockGameRepo) UpdateStatus(gameID uuid.UUID, status string) error {
	args := m.Called(gameID, status)
	return args.Error(0)
}
func (m *mockGameRepo) CompareAndSwapStatus(gameID uuid.UUID, from, to string) (bool, error) {
	args := m.Called(gameID, from, to)
	return args.Bool(0), args.Error(1)
}
func (m *mockGameRepo) FinalizeResult(gameID uuid.UUID, winnerCount int, endedAt time.Time) error {
	args := m.Called(gameID, winnerCount, endedAt)
	return args.Error(0)
}
func (m *mockGameRepo) Update(game *entity.Game) error {
	args := m.Called(game)
	return args.Error(0)
}
func (m *mockGameRepo) List(limit, offset int) ([]entity.Game, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Game), args.Error(1)
}
func (m *mockGameRepo) Delete(id uuid.UUID) error {
	args := m.Called(id)
	return args.Error(0)
}

// mockNotifier реализует Notifier для тестов
type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Enqueue(req outbound.Request) {
	m.Called(req)
}

func TestScheduler_MaybeAnnounce_TransitionsToPreGame(t *testing.T) {
	repo := new(mockGameRepo)
	notifier := new(mockNotifier)
	bus := NewBus()

	game := entity.Game{ID: uuid.New(), Title: "Вечерний блиц", ChatID: "120@g.us", ScheduledTime: time.Now().Add(10 * time.Minute)}

	repo.On("CompareAndSwapStatus", game.ID, entity.GameStatusScheduled, entity.GameStatusPreGame).Return(true, nil)
	notifier.On("Enqueue", mock.MatchedBy(func(req outbound.Request) bool { return req.Recipient == game.ChatID })).Return()

	s := NewScheduler(&Config{AnnouncementMinutes: 30}, repo, notifier, bus, func(uuid.UUID) {})
	s.maybeAnnounce(context.Background(), game, time.Until(game.ScheduledTime))

	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestScheduler_MaybeAnnounce_NoopBeforeThreshold(t *testing.T) {
	repo := new(mockGameRepo)
	notifier := new(mockNotifier)
	bus := NewBus()

	game := entity.Game{ID: uuid.New(), ScheduledTime: time.Now().Add(2 * time.Hour)}

	s := NewScheduler(&Config{AnnouncementMinutes: 30}, repo, notifier, bus, func(uuid.UUID) {})
	s.maybeAnnounce(context.Background(), game, time.Until(game.ScheduledTime))

	repo.AssertNotCalled(t, "CompareAndSwapStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestScheduler_MaybeStart_FiresOnStartCallback(t *testing.T) {
	repo := new(mockGameRepo)
	notifier := new(mockNotifier)
	bus := NewBus()

	game := entity.Game{ID: uuid.New(), ScheduledTime: time.Now().Add(-1 * time.Second)}
	repo.On("CompareAndSwapStatus", game.ID, entity.GameStatusPreGame, entity.GameStatusInProgress).Return(true, nil)

	started := make(chan uuid.UUID, 1)
	s := NewScheduler(&Config{CountdownSeconds: 60}, repo, notifier, bus, func(id uuid.UUID) { started <- id })
	s.maybeStart(context.Background(), game, time.Until(game.ScheduledTime))

	select {
	case id := <-started:
		assert.Equal(t, game.ID, id)
	default:
		t.Fatal("onStart callback was not invoked")
	}
	repo.AssertExpectations(t)
}

func TestScheduler_MaybeStart_SkipsWhenCASLostToAnotherInstance(t *testing.T) {
	repo := new(mockGameRepo)
	notifier := new(mockNotifier)
	bus := NewBus()

	game := entity.Game{ID: uuid.New(), ScheduledTime: time.Now().Add(-1 * time.Second)}
	repo.On("CompareAndSwapStatus", game.ID, entity.GameStatusPreGame, entity.GameStatusInProgress).Return(false, nil)

	var started bool
	s := NewScheduler(&Config{CountdownSeconds: 60}, repo, notifier, bus, func(uuid.UUID) { started = true })
	s.maybeStart(context.Background(), game, time.Until(game.ScheduledTime))

	require.False(t, started, "onStart must not fire when CAS did not win")
}

func TestScheduler_MaybeExpire_TransitionsScheduledPastGraceToExpired(t *testing.T) {
	repo := new(mockGameRepo)
	bus := NewBus()

	game := entity.Game{ID: uuid.New(), ScheduledTime: time.Now().Add(-2 * time.Minute)}
	repo.On("CompareAndSwapStatus", game.ID, entity.GameStatusScheduled, entity.GameStatusExpired).Return(true, nil)

	s := NewScheduler(&Config{ExpiryGrace: 60 * time.Second}, repo, nil, bus, func(uuid.UUID) {})
	expired := s.maybeExpire(game, time.Until(game.ScheduledTime))

	assert.True(t, expired)
	repo.AssertExpectations(t)
}

func TestScheduler_MaybeExpire_NoopWithinGrace(t *testing.T) {
	repo := new(mockGameRepo)
	bus := NewBus()

	game := entity.Game{ID: uuid.New(), ScheduledTime: time.Now().Add(-5 * time.Second)}

	s := NewScheduler(&Config{ExpiryGrace: 60 * time.Second}, repo, nil, bus, func(uuid.UUID) {})
	expired := s.maybeExpire(game, time.Until(game.ScheduledTime))

	assert.False(t, expired)
	repo.AssertNotCalled(t, "CompareAndSwapStatus", mock.Anything, mock.Anything, mock.Anything)
}
