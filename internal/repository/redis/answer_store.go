package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/yourusername/qrush/internal/domain/repository"
)

// defaultAnswerTTL задаётся с запасом на максимальную продолжительность
// партии плюс время эвалюатора на повторные попытки чтения — не ниже 300 с
// (ANSWER_TTL_S), иначе ключ вопроса может протухнуть раньше, чем QSM успеет
// его оценить.
const defaultAnswerTTL = 300 * time.Second

// AnswerStore реализует repository.AnswerStore поверх Redis. Ключи имеют вид
// qrush:answers:<gameID>:<questionIndex>:<userID> и хранят JSON-представление
// StoredAnswer; набор qrush:answers:<gameID>:<questionIndex>:idx отслеживает
// участников, чтобы GetAll мог читать курсором без SCAN по всему keyspace.
type AnswerStore struct {
	client redis.UniversalClient
	ctx    context.Context
	ttl    time.Duration
}

// NewAnswerStore создает новое Redis-хранилище ответов с TTL ключа ответа,
// настроенным через ANSWER_TTL_S (RedisConfig.AnswerTTLSeconds). ttlSeconds
// <= 0 означает "конфигурация не задана" — используется defaultAnswerTTL.
func NewAnswerStore(client redis.UniversalClient, ttlSeconds int) *AnswerStore {
	ttl := defaultAnswerTTL
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return &AnswerStore{client: client, ctx: context.Background(), ttl: ttl}
}

func answerKey(gameID uuid.UUID, questionIndex int, userID uuid.UUID) string {
	return fmt.Sprintf("qrush:answers:%s:%d:%s", gameID, questionIndex, userID)
}

func indexKey(gameID uuid.UUID, questionIndex int) string {
	return fmt.Sprintf("qrush:answers:%s:%d:idx", gameID, questionIndex)
}

// Put записывает ответ игрока только если он ещё не отвечал на этот вопрос.
func (s *AnswerStore) Put(gameID uuid.UUID, questionIndex int, answer repository.StoredAnswer) (bool, error) {
	data, err := json.Marshal(answer)
	if err != nil {
		return false, err
	}

	key := answerKey(gameID, questionIndex, answer.UserID)
	set, err := s.client.SetNX(s.ctx, key, data, s.ttl).Result()
	if err != nil {
		return false, err
	}
	if !set {
		return false, nil
	}

	pipe := s.client.Pipeline()
	pipe.SAdd(s.ctx, indexKey(gameID, questionIndex), answer.UserID.String())
	pipe.Expire(s.ctx, indexKey(gameID, questionIndex), s.ttl)
	if _, err := pipe.Exec(s.ctx); err != nil {
		return true, err
	}
	return true, nil
}

// Get возвращает сохранённый ответ конкретного игрока.
func (s *AnswerStore) Get(gameID uuid.UUID, questionIndex int, userID uuid.UUID) (*repository.StoredAnswer, bool, error) {
	data, err := s.client.Get(s.ctx, answerKey(gameID, questionIndex, userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}
	var answer repository.StoredAnswer
	if err := json.Unmarshal(data, &answer); err != nil {
		return nil, false, err
	}
	return &answer, true, nil
}

// GetAll перечисляет все ответы на вопрос, пагинируя по набору участников
// через SSCAN вместо блокирующего KEYS.
func (s *AnswerStore) GetAll(gameID uuid.UUID, questionIndex int) ([]repository.StoredAnswer, error) {
	var answers []repository.StoredAnswer
	var cursor uint64

	for {
		userIDs, nextCursor, err := s.client.SScan(s.ctx, indexKey(gameID, questionIndex), cursor, "", 100).Result()
		if err != nil {
			return nil, err
		}

		for _, idStr := range userIDs {
			userID, err := uuid.Parse(idStr)
			if err != nil {
				continue
			}
			answer, ok, err := s.Get(gameID, questionIndex, userID)
			if err != nil {
				return nil, err
			}
			if ok {
				answers = append(answers, *answer)
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return answers, nil
}

// Count возвращает количество уже поступивших ответов.
func (s *AnswerStore) Count(gameID uuid.UUID, questionIndex int) (int64, error) {
	return s.client.SCard(s.ctx, indexKey(gameID, questionIndex)).Result()
}

// ExistsBatch проверяет пачкой через Redis pipeline, какие из перечисленных
// игроков уже имеют ответ на данный вопрос — один сетевой round-trip вместо
// одного EXISTS на игрока.
func (s *AnswerStore) ExistsBatch(gameID uuid.UUID, questionIndex int, userIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	result := make(map[uuid.UUID]bool, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	pipe := s.client.Pipeline()
	cmds := make(map[uuid.UUID]*redis.IntCmd, len(userIDs))
	for _, userID := range userIDs {
		cmds[userID] = pipe.Exists(s.ctx, answerKey(gameID, questionIndex, userID))
	}
	if _, err := pipe.Exec(s.ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	for userID, cmd := range cmds {
		n, err := cmd.Result()
		if err != nil {
			return nil, err
		}
		result[userID] = n > 0
	}
	return result, nil
}

// UpdateEvaluated помечает ответ как оценённый evaluate-стадией QSM.
func (s *AnswerStore) UpdateEvaluated(gameID uuid.UUID, questionIndex int, userID uuid.UUID, isCorrect bool) error {
	answer, ok, err := s.Get(gameID, questionIndex, userID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	answer.Evaluated = true
	answer.IsCorrect = isCorrect

	data, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	return s.client.Set(s.ctx, answerKey(gameID, questionIndex, userID), data, s.ttl).Err()
}

// Clear удаляет все записи для вопроса после того как они персистированы.
func (s *AnswerStore) Clear(gameID uuid.UUID, questionIndex int) error {
	idxKey := indexKey(gameID, questionIndex)
	userIDs, err := s.client.SMembers(s.ctx, idxKey).Result()
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	for _, idStr := range userIDs {
		userID, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		pipe.Del(s.ctx, answerKey(gameID, questionIndex, userID))
	}
	pipe.Del(s.ctx, idxKey)
	_, err = pipe.Exec(s.ctx)
	return err
}
