package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/qrush/internal/circuitbreaker"
	"github.com/yourusername/qrush/internal/config"
	"github.com/yourusername/qrush/internal/domain/entity"
	"github.com/yourusername/qrush/internal/domain/repository"
	"github.com/yourusername/qrush/internal/engine"
	"github.com/yourusername/qrush/internal/outbound"
	"github.com/yourusername/qrush/internal/transport"
)

// leaderboardCacheTTL — сколько кешировать ответ лидерборда перед повторным
// запросом к Postgres; обновляется чаще, чем между играми выходят победители.
const leaderboardCacheTTL = 30 * time.Second

const leaderboardCacheKey = "qrush:leaderboard"

// newOutboundQueue переносит настройки OutboundConfig из файла/окружения в
// internal/outbound.Config.
func newOutboundQueue(cfg *config.Config, ct transport.ChatTransport, breaker *circuitbreaker.Breaker) *outbound.Queue {
	return outbound.New(outbound.Config{
		Workers:       cfg.Outbound.Workers,
		RatePerSecond: cfg.Outbound.RatePerSecond,
		RateBurst:     cfg.Outbound.RateBurst,
		MaxAttempts:   cfg.Outbound.MaxAttempts,
		BaseBackoff:   time.Duration(cfg.Outbound.BaseBackoffMs) * time.Millisecond,
		SendTimeout:   time.Duration(cfg.Outbound.SendTimeoutMs) * time.Millisecond,
		QueueSize:     cfg.Outbound.QueueSize,
	}, ct, breaker)
}

// newEngineConfig переносит настройки EngineConfig из файла/окружения в
// internal/engine.Config.
func newEngineConfig(cfg *config.Config) *engine.Config {
	return &engine.Config{
		AnnouncementMinutes: cfg.Engine.AnnouncementMinutes,
		WaitingRoomMinutes:  cfg.Engine.AnnouncementMinutes,
		CountdownSeconds:    cfg.Engine.CountdownSeconds,

		QuestionDelay:      time.Duration(cfg.Engine.PreRollMs) * time.Millisecond,
		AnswerRevealDelay:  time.Duration(cfg.Engine.AnswerRevealMs) * time.Millisecond,
		InterQuestionDelay: time.Duration(cfg.Engine.InterQuestionMs) * time.Millisecond,

		DefaultTimeLimitSec: cfg.Engine.QuestionTimeLimitMs / 1000,
		GraceMs:             int64(cfg.Engine.GraceMs),

		SweepInterval: time.Duration(cfg.Engine.SchedulerPeriodMs) * time.Millisecond,
		MailboxSize:   cfg.Engine.MailboxSize,
		ExpiryGrace:   time.Duration(cfg.Engine.ExpiryGraceMs) * time.Millisecond,

		RetryInterval: 500 * time.Millisecond,
		MaxRetries:    3,

		MaxQuestionsPerGame: cfg.Engine.MaxQuestionsPerGame,
	}
}

// verifyHandshakeHandler реализует подтверждение подписки webhook'а чат-
// транспорта (Meta webhook verification handshake): провайдер шлёт
// hub.challenge, который нужно отразить назад, только если hub.verify_token
// совпадает с настроенным значением.
func verifyHandshakeHandler(verifyToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		mode := c.Query("hub.mode")
		token := c.Query("hub.verify_token")
		challenge := c.Query("hub.challenge")

		if mode != "subscribe" || verifyToken == "" || token != verifyToken {
			c.Status(http.StatusForbidden)
			return
		}
		c.String(http.StatusOK, challenge)
	}
}

// activeGameHandler — минимальная read-only административная поверхность,
// заменяющая дашборд учителя: отдаёт партию, которая сейчас идёт, или 404.
func activeGameHandler(games repository.GameRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		game, err := games.GetActive()
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active game"})
			return
		}
		c.JSON(http.StatusOK, game)
	}
}

// leaderboardHandler отдаёт таблицу лидеров, кешируя ответ в Redis на
// leaderboardCacheTTL — лидерборд меняется редко (раз за партию), а читается
// часто, в отличие от состояния текущего вопроса.
func leaderboardHandler(users repository.UserRepository, cache repository.CacheRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if limit <= 0 {
			limit = 20
		}

		cacheKey := leaderboardCacheKey + ":" + strconv.Itoa(limit) + ":" + strconv.Itoa(offset)

		var cached leaderboardResponse
		if err := cache.GetJSON(cacheKey, &cached); err == nil {
			c.JSON(http.StatusOK, cached)
			return
		}

		entries, total, err := users.GetLeaderboard(limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load leaderboard"})
			return
		}

		resp := leaderboardResponse{Entries: entries, Total: total}
		_ = cache.SetJSON(cacheKey, resp, leaderboardCacheTTL)
		c.JSON(http.StatusOK, resp)
	}
}

type leaderboardResponse struct {
	Entries []entity.User `json:"entries"`
	Total   int64         `json:"total"`
}
