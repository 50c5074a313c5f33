package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/qrush/internal/domain/entity"
	"github.com/yourusername/qrush/internal/domain/repository"
)

func TestComputeRoundOutcome_CorrectAnswerSurvives(t *testing.T) {
	q := entity.Question{ID: uuid.New(), CorrectAnswer: "Paris"}
	alice := uuid.New()
	alive := []entity.GamePlayer{{ID: uuid.New(), UserID: alice}}
	submissions := []repository.StoredAnswer{{UserID: alice, SubmittedText: "  paris "}}

	out := computeRoundOutcome(uuid.New(), 0, q, alive, submissions, time.Now())

	assert.Empty(t, out.eliminated)
	assert.Equal(t, []uuid.UUID{alice}, out.survivors)
	assert.True(t, out.correctByUser[alice])
	require.Len(t, out.toPersist, 1)
	assert.True(t, out.toPersist[0].IsCorrect)
}

func TestComputeRoundOutcome_WrongAnswerEliminates(t *testing.T) {
	q := entity.Question{ID: uuid.New(), CorrectAnswer: "Paris"}
	alice, bob := uuid.New(), uuid.New()
	alive := []entity.GamePlayer{{ID: uuid.New(), UserID: alice}, {ID: uuid.New(), UserID: bob}}
	submissions := []repository.StoredAnswer{
		{UserID: alice, SubmittedText: "Paris"},
		{UserID: bob, SubmittedText: "Berlin"},
	}

	out := computeRoundOutcome(uuid.New(), 2, q, alive, submissions, time.Now())

	require.Len(t, out.eliminated, 1)
	assert.Equal(t, bob, out.eliminated[0].UserID)
	assert.Equal(t, entity.PlayerStatusEliminated, out.eliminated[0].Status)
	assert.Equal(t, []uuid.UUID{alice}, out.survivors)
}

func TestComputeRoundOutcome_NonRespondentTimesOut(t *testing.T) {
	q := entity.Question{ID: uuid.New(), CorrectAnswer: "Paris"}
	alice, bob := uuid.New(), uuid.New()
	alive := []entity.GamePlayer{{ID: uuid.New(), UserID: alice}, {ID: uuid.New(), UserID: bob}}
	submissions := []repository.StoredAnswer{{UserID: alice, SubmittedText: "Paris"}}

	out := computeRoundOutcome(uuid.New(), 0, q, alive, submissions, time.Now())

	require.Len(t, out.eliminated, 1)
	assert.Equal(t, bob, out.eliminated[0].UserID)
	// bob never submitted, so no PlayerAnswer row is persisted for him
	require.Len(t, out.toPersist, 1)
	assert.Equal(t, alice, out.toPersist[0].UserID)
}

// Sudden death has no exception for a round where every alive player answers
// wrong — all of them are eliminated, even if that empties the game.
func TestComputeRoundOutcome_AllWrongEliminatesEveryone(t *testing.T) {
	q := entity.Question{ID: uuid.New(), CorrectAnswer: "Paris"}
	alice, bob := uuid.New(), uuid.New()
	alive := []entity.GamePlayer{{ID: uuid.New(), UserID: alice}, {ID: uuid.New(), UserID: bob}}
	submissions := []repository.StoredAnswer{
		{UserID: alice, SubmittedText: "Rome"},
		{UserID: bob, SubmittedText: "Berlin"},
	}

	out := computeRoundOutcome(uuid.New(), 0, q, alive, submissions, time.Now())

	require.Len(t, out.eliminated, 2)
	assert.ElementsMatch(t, []uuid.UUID{alice, bob}, []uuid.UUID{out.eliminated[0].UserID, out.eliminated[1].UserID})
	assert.Empty(t, out.survivors)
}

func TestComputeRoundOutcome_OptionOutsideClosedSetIsInvalid(t *testing.T) {
	q := entity.Question{ID: uuid.New(), CorrectAnswer: "B", Options: entity.StringArray{"A", "B", "C"}}
	alice := uuid.New()
	alive := []entity.GamePlayer{{ID: uuid.New(), UserID: alice}}
	submissions := []repository.StoredAnswer{{UserID: alice, SubmittedText: "D"}}

	out := computeRoundOutcome(uuid.New(), 0, q, alive, submissions, time.Now())

	require.Len(t, out.toPersist, 1)
	assert.Equal(t, ReasonInvalidInput, out.toPersist[0].EliminationReason)
}

func TestQSM_AcceptAnswerIgnoresDuplicateFromSameUser(t *testing.T) {
	store := newFakeAnswerStore()
	notifier := new(mockNotifier)
	notifier.On("Enqueue", mock.Anything).Return()
	userID := uuid.New()
	m := &QSM{
		deps:             &Dependencies{Store: store, Notifier: notifier},
		game:             &entity.Game{ID: uuid.New()},
		aliveSet:         map[uuid.UUID]entity.GamePlayer{userID: {ID: uuid.New(), UserID: userID}},
		handles:          map[uuid.UUID]string{userID: "+15550000001"},
		answeredThisTurn: make(map[uuid.UUID]struct{}),
		rejectedNotAlive: make(map[uuid.UUID]struct{}),
		questionStart:    time.Now(),
	}

	m.acceptAnswer(0, inboundAnswer{UserID: userID, Text: "first", ReceivedAt: time.Now()})
	m.acceptAnswer(0, inboundAnswer{UserID: userID, Text: "second", ReceivedAt: time.Now()})

	count, err := store.Count(m.game.ID, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestQSM_AcceptAnswerRejectsNonAlivePlayer(t *testing.T) {
	store := newFakeAnswerStore()
	notifier := new(mockNotifier)
	notifier.On("Enqueue", mock.Anything).Return()
	userID := uuid.New()
	m := &QSM{
		deps:             &Dependencies{Store: store, Notifier: notifier},
		game:             &entity.Game{ID: uuid.New()},
		aliveSet:         map[uuid.UUID]entity.GamePlayer{},
		handles:          map[uuid.UUID]string{userID: "+15550000002"},
		answeredThisTurn: make(map[uuid.UUID]struct{}),
		rejectedNotAlive: make(map[uuid.UUID]struct{}),
		questionStart:    time.Now(),
	}

	m.acceptAnswer(0, inboundAnswer{UserID: userID, Text: "anything", ReceivedAt: time.Now()})

	count, err := store.Count(m.game.ID, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
	assert.Contains(t, m.rejectedNotAlive, userID)
}

// fakeAnswerStore — минимальная in-memory реализация repository.AnswerStore для тестов.
type fakeAnswerStore struct {
	data map[string]repository.StoredAnswer
}

func newFakeAnswerStore() *fakeAnswerStore {
	return &fakeAnswerStore{data: make(map[string]repository.StoredAnswer)}
}

func fakeKey(gameID uuid.UUID, idx int, userID uuid.UUID) string {
	return gameID.String() + "|" + uuid.NewMD5(uuid.Nil, []byte{byte(idx)}).String() + "|" + userID.String()
}

func (f *fakeAnswerStore) Put(gameID uuid.UUID, idx int, answer repository.StoredAnswer) (bool, error) {
	key := fakeKey(gameID, idx, answer.UserID)
	if _, exists := f.data[key]; exists {
		return false, nil
	}
	f.data[key] = answer
	return true, nil
}

func (f *fakeAnswerStore) Get(gameID uuid.UUID, idx int, userID uuid.UUID) (*repository.StoredAnswer, bool, error) {
	a, ok := f.data[fakeKey(gameID, idx, userID)]
	if !ok {
		return nil, false, nil
	}
	return &a, true, nil
}

func (f *fakeAnswerStore) GetAll(gameID uuid.UUID, idx int) ([]repository.StoredAnswer, error) {
	var out []repository.StoredAnswer
	for _, a := range f.data {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAnswerStore) Count(gameID uuid.UUID, idx int) (int64, error) {
	var n int64
	for range f.data {
		n++
	}
	return n, nil
}

func (f *fakeAnswerStore) ExistsBatch(gameID uuid.UUID, idx int, userIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	result := make(map[uuid.UUID]bool, len(userIDs))
	for _, id := range userIDs {
		_, ok := f.data[fakeKey(gameID, idx, id)]
		result[id] = ok
	}
	return result, nil
}

func (f *fakeAnswerStore) UpdateEvaluated(gameID uuid.UUID, idx int, userID uuid.UUID, isCorrect bool) error {
	key := fakeKey(gameID, idx, userID)
	a, ok := f.data[key]
	if !ok {
		return nil
	}
	a.Evaluated = true
	a.IsCorrect = isCorrect
	f.data[key] = a
	return nil
}

func (f *fakeAnswerStore) Clear(gameID uuid.UUID, idx int) error {
	f.data = make(map[string]repository.StoredAnswer)
	return nil
}
