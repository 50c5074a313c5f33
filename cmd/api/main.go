package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/qrush/internal/circuitbreaker"
	"github.com/yourusername/qrush/internal/config"
	"github.com/yourusername/qrush/internal/engine"
	"github.com/yourusername/qrush/internal/middleware"
	pgRepo "github.com/yourusername/qrush/internal/repository/postgres"
	redisRepo "github.com/yourusername/qrush/internal/repository/redis"
	"github.com/yourusername/qrush/internal/transport"
	"github.com/yourusername/qrush/internal/webhook"
	"github.com/yourusername/qrush/pkg/database"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Репозитории Postgres
	userRepo := pgRepo.NewUserRepo(db)
	gameRepo := pgRepo.NewGameRepo(db)
	questionRepo := pgRepo.NewQuestionRepo(db)
	gamePlayerRepo := pgRepo.NewGamePlayerRepo(db)
	playerAnswerRepo := pgRepo.NewPlayerAnswerRepo(db)

	// Репозитории Redis
	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}
	answerStore := redisRepo.NewAnswerStore(redisClient, cfg.Redis.AnswerTTLSeconds)

	// Контекст верхнего уровня для фоновых горутин (движок, очередь исходящих)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Транспорт чата, circuit breaker и очередь исходящих сообщений
	chatTransport := transport.NewWhatsAppTransport(cfg.WhatsApp.BaseURL, cfg.WhatsApp.PhoneNumberID, cfg.WhatsApp.AccessToken)

	breaker := circuitbreaker.New("whatsapp-transport", circuitbreaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		RecoveryTimeout:  time.Duration(cfg.Breaker.RecoveryMs) * time.Millisecond,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
	})

	outboundQueue := newOutboundQueue(cfg, chatTransport, breaker)
	outboundQueue.Start(ctx)
	defer outboundQueue.Stop()

	// Движок партий
	deps := &engine.Dependencies{
		DB:        db,
		Games:     gameRepo,
		Questions: questionRepo,
		Players:   gamePlayerRepo,
		Users:     userRepo,
		Answers:   playerAnswerRepo,
		Store:     answerStore,
		Notifier:  outboundQueue,
		Config:    newEngineConfig(cfg),
	}

	gameEngine := engine.NewEngine(deps)
	gameEngine.Start()
	defer gameEngine.Shutdown()

	// Диспетчер входящего webhook'а
	dispatcher := webhook.NewDispatcher([]byte(cfg.Webhook.Secret), userRepo, gameRepo, gamePlayerRepo, outboundQueue, gameEngine)

	isProduction := gin.Mode() == gin.ReleaseMode
	router := gin.Default()

	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	if len(cfg.CORS.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Hub-Signature-256"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Webhook чат-транспорта: подтверждение подписки (GET) и приём событий (POST).
	// POST ограничен по IP отдельно от пользовательских auth-лимитов учителя —
	// здесь нет сессии пользователя, только подписанное тело от одного провайдера.
	router.GET("/webhook", verifyHandshakeHandler(cfg.Webhook.VerifyToken))
	router.POST("/webhook", rateLimiter.LimitByIP(middleware.DefaultWebhookRateLimitConfig()), dispatcher.Handle)

	// Тонкая административная поверхность поверх движка — полноценный
	// CRUD/CSV-импорт/дашборд учителя остаются вне движка партий, см.
	// cmd/enginectl для создания/планирования/отмены партий офлайн.
	admin := router.Group("/admin")
	{
		admin.GET("/games/active", activeGameHandler(gameRepo))
	}

	router.GET("/leaderboard", leaderboardHandler(userRepo, cacheRepo))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
