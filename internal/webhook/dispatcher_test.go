package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yourusername/qrush/internal/domain/entity"
	"github.com/yourusername/qrush/internal/outbound"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) Create(u *entity.User) error { return m.Called(u).Error(0) }
func (m *mockUserRepo) GetByID(id uuid.UUID) (*entity.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}
func (m *mockUserRepo) GetByHandle(handle string) (*entity.User, error) {
	args := m.Called(handle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}
func (m *mockUserRepo) GetOrCreateByHandle(handle string) (*entity.User, error) {
	args := m.Called(handle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}
func (m *mockUserRepo) Update(u *entity.User) error { return m.Called(u).Error(0) }
func (m *mockUserRepo) IncrementGamesPlayed(userID uuid.UUID) error {
	return m.Called(userID).Error(0)
}
func (m *mockUserRepo) RecordWin(userID uuid.UUID, prizeAmount string) error {
	return m.Called(userID, prizeAmount).Error(0)
}
func (m *mockUserRepo) List(limit, offset int) ([]entity.User, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.User), args.Error(1)
}
func (m *mockUserRepo) GetLeaderboard(limit, offset int) ([]entity.User, int64, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]entity.User), args.Get(1).(int64), args.Error(2)
}

type mockGameRepoWH struct{ mock.Mock }

func (m *mockGameRepoWH) Create(game *entity.Game) error { return m.Called(game).Error(0) }
func (m *mockGameRepoWH) GetByID(id uuid.UUID) (*entity.Game, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Game), args.Error(1)
}
func (m *mockGameRepoWH) GetActive() (*entity.Game, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Game), args.Error(1)
}
func (m *mockGameRepoWH) GetScheduled() ([]entity.Game, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Game), args.Error(1)
}
func (m *mockGameRepoWH) GetWithQuestions(id uuid.UUID) (*entity.Game, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Game), args.Error(1)
}
func (m *mockGameRepoWH) UpdateStatus(gameID uuid.UUID, status string) error {
	return m.Called(gameID, status).Error(0)
}
func (m *mockGameRepoWH) CompareAndSwapStatus(gameID uuid.UUID, from, to string) (bool, error) {
	args := m.Called(gameID, from, to)
	return args.Bool(0), args.Error(1)
}
func (m *mockGameRepoWH) FinalizeResult(gameID uuid.UUID, winnerCount int, endedAt time.Time) error {
	return m.Called(gameID, winnerCount, endedAt).Error(0)
}
func (m *mockGameRepoWH) Update(game *entity.Game) error { return m.Called(game).Error(0) }
func (m *mockGameRepoWH) List(limit, offset int) ([]entity.Game, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Game), args.Error(1)
}
func (m *mockGameRepoWH) Delete(id uuid.UUID) error { return m.Called(id).Error(0) }

type mockPlayerRepoWH struct{ mock.Mock }

func (m *mockPlayerRepoWH) Create(player *entity.GamePlayer) error { return m.Called(player).Error(0) }
func (m *mockPlayerRepoWH) GetByGameAndUser(gameID, userID uuid.UUID) (*entity.GamePlayer, error) {
	args := m.Called(gameID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.GamePlayer), args.Error(1)
}
func (m *mockPlayerRepoWH) GetAliveByGame(gameID uuid.UUID) ([]entity.GamePlayer, error) {
	args := m.Called(gameID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.GamePlayer), args.Error(1)
}
func (m *mockPlayerRepoWH) GetAllByGame(gameID uuid.UUID) ([]entity.GamePlayer, error) {
	args := m.Called(gameID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.GamePlayer), args.Error(1)
}
func (m *mockPlayerRepoWH) CountAlive(gameID uuid.UUID) (int64, error) {
	args := m.Called(gameID)
	return args.Get(0).(int64), args.Error(1)
}
func (m *mockPlayerRepoWH) UpdateStatus(playerID uuid.UUID, status string) error {
	return m.Called(playerID, status).Error(0)
}
func (m *mockPlayerRepoWH) Eliminate(tx *gorm.DB, playerID uuid.UUID, atQuestion int) error {
	return m.Called(tx, playerID, atQuestion).Error(0)
}
func (m *mockPlayerRepoWH) IncrementAnswerCounts(tx *gorm.DB, playerID uuid.UUID, correct bool) error {
	return m.Called(tx, playerID, correct).Error(0)
}
func (m *mockPlayerRepoWH) GetUserHistory(userID uuid.UUID, limit, offset int) ([]entity.GamePlayer, error) {
	args := m.Called(userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.GamePlayer), args.Error(1)
}
func (m *mockPlayerRepoWH) SplitPrize(tx *gorm.DB, gameID uuid.UUID, winnerIDs []uuid.UUID, totalPrize string) error {
	return m.Called(tx, gameID, winnerIDs, totalPrize).Error(0)
}

type mockNotifierWH struct{ mock.Mock }

func (m *mockNotifierWH) Enqueue(req outbound.Request) { m.Called(req) }

type mockRouter struct{ mock.Mock }

func (m *mockRouter) SubmitAnswer(gameID, userID uuid.UUID, text string) error {
	return m.Called(gameID, userID, text).Error(0)
}

func newTestContext(body []byte, signature string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c, w
}

func sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

const samplePayload = `{
	"entry": [{
		"changes": [{
			"value": {
				"messages": [{"from": "15551234567", "id": "wamid.ABC123", "type": "text", "text": {"body": "B"}}]
			}
		}]
	}]
}`

func TestDispatcher_RejectsInvalidSignature(t *testing.T) {
	secret := []byte("topsecret")
	users := &mockUserRepo{}
	games := &mockGameRepoWH{}
	players := &mockPlayerRepoWH{}
	notifier := &mockNotifierWH{}
	router := &mockRouter{}
	d := NewDispatcher(secret, users, games, players, notifier, router)

	c, w := newTestContext([]byte(samplePayload), "sha256=deadbeef")
	d.Handle(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	users.AssertNotCalled(t, "GetOrCreateByHandle", mock.Anything)
}

func TestDispatcher_AcceptsValidSignatureAndRoutesAnswer(t *testing.T) {
	secret := []byte("topsecret")
	users := &mockUserRepo{}
	games := &mockGameRepoWH{}
	players := &mockPlayerRepoWH{}
	notifier := &mockNotifierWH{}
	router := &mockRouter{}
	d := NewDispatcher(secret, users, games, players, notifier, router)

	userID := uuid.New()
	gameID := uuid.New()
	users.On("GetOrCreateByHandle", "15551234567").Return(&entity.User{ID: userID, Handle: "15551234567"}, nil)
	games.On("GetActive").Return(&entity.Game{ID: gameID}, nil)
	router.On("SubmitAnswer", gameID, userID, "B").Return(nil)

	body := []byte(samplePayload)
	c, w := newTestContext(body, sign(secret, body))
	d.Handle(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Eventually(t, func() bool {
		return len(router.Calls) == 1
	}, time.Second, 5*time.Millisecond, "routing happens in background goroutine")
	router.AssertCalled(t, "SubmitAnswer", gameID, userID, "B")
}

func TestDispatcher_DropsDuplicateMessageID(t *testing.T) {
	secret := []byte("topsecret")
	users := &mockUserRepo{}
	games := &mockGameRepoWH{}
	players := &mockPlayerRepoWH{}
	notifier := &mockNotifierWH{}
	router := &mockRouter{}
	d := NewDispatcher(secret, users, games, players, notifier, router)

	userID := uuid.New()
	gameID := uuid.New()
	users.On("GetOrCreateByHandle", "15551234567").Return(&entity.User{ID: userID, Handle: "15551234567"}, nil).Once()
	games.On("GetActive").Return(&entity.Game{ID: gameID}, nil).Once()
	router.On("SubmitAnswer", gameID, userID, "B").Return(nil).Once()

	body := []byte(samplePayload)
	sig := sign(secret, body)

	c1, w1 := newTestContext(body, sig)
	d.Handle(c1)
	require.Equal(t, http.StatusOK, w1.Code)

	c2, w2 := newTestContext(body, sig)
	d.Handle(c2)
	require.Equal(t, http.StatusOK, w2.Code)

	time.Sleep(50 * time.Millisecond)
	users.AssertNumberOfCalls(t, "GetOrCreateByHandle", 1)
}

func TestDispatcher_NoSecretConfiguredSkipsVerification(t *testing.T) {
	users := &mockUserRepo{}
	games := &mockGameRepoWH{}
	players := &mockPlayerRepoWH{}
	notifier := &mockNotifierWH{}
	router := &mockRouter{}
	d := NewDispatcher(nil, users, games, players, notifier, router)

	userID := uuid.New()
	gameID := uuid.New()
	users.On("GetOrCreateByHandle", "15551234567").Return(&entity.User{ID: userID, Handle: "15551234567"}, nil)
	games.On("GetActive").Return(&entity.Game{ID: gameID}, nil)
	router.On("SubmitAnswer", gameID, userID, "B").Return(nil)

	c, w := newTestContext([]byte(samplePayload), "")
	d.Handle(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDispatcher_JoinRegistersPlayerInPreGameGame(t *testing.T) {
	secret := []byte("topsecret")
	users := &mockUserRepo{}
	games := &mockGameRepoWH{}
	players := &mockPlayerRepoWH{}
	notifier := &mockNotifierWH{}
	router := &mockRouter{}
	d := NewDispatcher(secret, users, games, players, notifier, router)

	userID := uuid.New()
	gameID := uuid.New()
	payload := `{"entry":[{"changes":[{"value":{"messages":[{"from":"15551234567","id":"wamid.JOIN1","type":"text","text":{"body":"join"}}]}}]}]}`

	users.On("GetOrCreateByHandle", "15551234567").Return(&entity.User{ID: userID, Handle: "15551234567"}, nil)
	games.On("GetScheduled").Return([]entity.Game{{ID: gameID, Title: "Friday Blitz", Status: entity.GameStatusPreGame}}, nil)
	players.On("GetByGameAndUser", gameID, userID).Return(nil, assert.AnError)
	players.On("Create", mock.MatchedBy(func(p *entity.GamePlayer) bool {
		return p.GameID == gameID && p.UserID == userID && p.Status == entity.PlayerStatusRegistered
	})).Return(nil)
	notifier.On("Enqueue", mock.Anything).Return()

	body := []byte(payload)
	c, w := newTestContext(body, sign(secret, body))
	d.Handle(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Eventually(t, func() bool {
		return len(players.Calls) == 2
	}, time.Second, 5*time.Millisecond, "registration happens in background goroutine")
	players.AssertExpectations(t)
	router.AssertNotCalled(t, "SubmitAnswer", mock.Anything, mock.Anything, mock.Anything)
}
