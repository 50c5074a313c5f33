package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	WhatsApp  WhatsAppConfig
	Webhook   WebhookConfig
	Engine    EngineConfig
	Outbound  OutboundConfig
	Breaker   BreakerConfig
	CORS      CORSConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: Режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: Список адресов Redis (хост:порт). Используется для всех режимов.
	// Для 'single', если не пуст, используется первый адрес из списка.
	Addrs []string `mapstructure:"addrs"`

	// Addr: Альтернативный адрес для режима 'single' (для обратной совместимости).
	// Используется, если Mode="single" и Addrs пустой.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Имя мастер-сервера Redis (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`

	// MaxRetries: Максимальное количество повторов команды. 0 оставляет значение go-redis по умолчанию (3 повтора), -1 отключает повторы.
	MaxRetries int `mapstructure:"max_retries"`

	// MinRetryBackoff: Минимальный интервал между попытками (в миллисекундах). По умолчанию 8ms.
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`

	// MaxRetryBackoff: Максимальный интервал между попытками (в миллисекундах). По умолчанию 512ms.
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`

	// AnswerTTLSeconds — TTL ключа ответа игрока в Answer Store (ANSWER_TTL_S).
	AnswerTTLSeconds int `mapstructure:"answer_ttl_s"`
}

// WhatsAppConfig содержит учётные данные WhatsApp Business Cloud API.
type WhatsAppConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	PhoneNumberID string `mapstructure:"phone_number_id"`
	AccessToken   string `mapstructure:"access_token"`
}

// WebhookConfig содержит настройки входящего webhook'а чат-транспорта.
type WebhookConfig struct {
	Secret      string `mapstructure:"secret"`       // используется для проверки X-Hub-Signature-256
	VerifyToken string `mapstructure:"verify_token"` // используется при подтверждении подписки (hub.verify_token)
}

// EngineConfig содержит тайминги движка партий (см. internal/engine.Config).
type EngineConfig struct {
	GraceMs              int `mapstructure:"grace_ms"`
	QuestionTimeLimitMs  int `mapstructure:"question_time_limit_ms"`
	PreRollMs            int `mapstructure:"pre_roll_ms"`
	InterQuestionMs      int `mapstructure:"inter_question_ms"`
	AnswerRevealMs       int `mapstructure:"answer_reveal_ms"`
	SchedulerPeriodMs    int `mapstructure:"scheduler_period_ms"`
	ExpiryGraceMs        int `mapstructure:"expiry_grace_ms"`
	AnnouncementMinutes  int `mapstructure:"announcement_minutes"`
	CountdownSeconds     int `mapstructure:"countdown_seconds"`
	MailboxSize          int `mapstructure:"mailbox_size"`
	MaxQuestionsPerGame  int `mapstructure:"max_questions_per_game"`
}

// OutboundConfig содержит настройки очереди исходящих сообщений (OMQ).
type OutboundConfig struct {
	Workers       int     `mapstructure:"workers"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	RateBurst     int     `mapstructure:"rate_burst"`
	MaxAttempts   int     `mapstructure:"max_attempts"` // OUTBOUND_RETRY_MAX
	BaseBackoffMs int     `mapstructure:"base_backoff_ms"`
	SendTimeoutMs int     `mapstructure:"send_timeout_ms"`
	QueueSize     int     `mapstructure:"queue_size"`
}

// BreakerConfig содержит настройки circuit breaker вокруг чат-транспорта.
type BreakerConfig struct {
	FailureThreshold int `mapstructure:"failure_threshold"` // CB_FAILURE_THRESHOLD
	RecoveryMs       int `mapstructure:"recovery_ms"`        // CB_RECOVERY_MS
	SuccessThreshold int `mapstructure:"success_threshold"`
}

// CORSConfig содержит настройки CORS (Cross-Origin Resource Sharing)
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load загружает конфигурацию из файла и переменных окружения.
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Используем новый экземпляр Viper, чтобы избежать глобального состояния

	// Привязка для секции Database
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	// Привязка для секции Redis
	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")
	vip.BindEnv("redis.answer_ttl_s", "ANSWER_TTL_S")

	// Привязка для секции WhatsApp
	vip.BindEnv("whatsapp.base_url", "WHATSAPP_BASE_URL")
	vip.BindEnv("whatsapp.phone_number_id", "WHATSAPP_PHONE_NUMBER_ID")
	vip.BindEnv("whatsapp.access_token", "WHATSAPP_ACCESS_TOKEN")

	// Привязка для секции Webhook
	vip.BindEnv("webhook.secret", "WEBHOOK_SECRET")
	vip.BindEnv("webhook.verify_token", "WEBHOOK_VERIFY_TOKEN")

	// Привязка для секции Engine
	vip.BindEnv("engine.grace_ms", "GRACE_MS")
	vip.BindEnv("engine.question_time_limit_ms", "QUESTION_TIME_LIMIT_MS")
	vip.BindEnv("engine.pre_roll_ms", "PRE_ROLL_MS")
	vip.BindEnv("engine.inter_question_ms", "INTER_QUESTION_MS")
	vip.BindEnv("engine.answer_reveal_ms", "ANSWER_REVEAL_MS")
	vip.BindEnv("engine.scheduler_period_ms", "SCHEDULER_PERIOD_MS")
	vip.BindEnv("engine.expiry_grace_ms", "EXPIRY_GRACE_MS")
	vip.BindEnv("engine.announcement_minutes", "ANNOUNCEMENT_MINUTES")
	vip.BindEnv("engine.countdown_seconds", "COUNTDOWN_SECONDS")
	vip.BindEnv("engine.mailbox_size", "MAILBOX_SIZE")
	vip.BindEnv("engine.max_questions_per_game", "MAX_QUESTIONS_PER_GAME")

	// Привязка для секции Outbound
	vip.BindEnv("outbound.workers", "OUTBOUND_WORKERS")
	vip.BindEnv("outbound.rate_per_second", "OUTBOUND_RATE_PER_SECOND")
	vip.BindEnv("outbound.rate_burst", "OUTBOUND_RATE_BURST")
	vip.BindEnv("outbound.max_attempts", "OUTBOUND_RETRY_MAX")
	vip.BindEnv("outbound.base_backoff_ms", "OUTBOUND_BASE_BACKOFF_MS")
	vip.BindEnv("outbound.send_timeout_ms", "OUTBOUND_SEND_TIMEOUT_MS")
	vip.BindEnv("outbound.queue_size", "OUTBOUND_QUEUE_SIZE")

	// Привязка для секции Breaker
	vip.BindEnv("breaker.failure_threshold", "CB_FAILURE_THRESHOLD")
	vip.BindEnv("breaker.recovery_ms", "CB_RECOVERY_MS")
	vip.BindEnv("breaker.success_threshold", "CB_SUCCESS_THRESHOLD")

	// Привязка для Server
	vip.BindEnv("server.port", "SERVER_PORT")

	// значения по умолчанию для таймингов движка (см. internal/engine.DefaultConfig)
	vip.SetDefault("engine.grace_ms", 1000)
	vip.SetDefault("engine.question_time_limit_ms", 10000)
	vip.SetDefault("engine.pre_roll_ms", 2000)
	vip.SetDefault("engine.inter_question_ms", 3000)
	vip.SetDefault("engine.answer_reveal_ms", 2000)
	vip.SetDefault("engine.scheduler_period_ms", 2000)
	vip.SetDefault("engine.expiry_grace_ms", 60000)
	vip.SetDefault("engine.announcement_minutes", 10)
	vip.SetDefault("engine.countdown_seconds", 60)
	vip.SetDefault("engine.mailbox_size", 64)
	vip.SetDefault("engine.max_questions_per_game", 50)
	vip.SetDefault("outbound.workers", 4)
	vip.SetDefault("outbound.rate_per_second", 20)
	vip.SetDefault("outbound.rate_burst", 20)
	vip.SetDefault("outbound.max_attempts", 3)
	vip.SetDefault("outbound.base_backoff_ms", 500)
	vip.SetDefault("outbound.send_timeout_ms", 10000)
	vip.SetDefault("outbound.queue_size", 1024)
	vip.SetDefault("breaker.failure_threshold", 10)
	vip.SetDefault("breaker.recovery_ms", 30000)
	vip.SetDefault("breaker.success_threshold", 5)
	vip.SetDefault("redis.answer_ttl_s", 300)

	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Addr: %s", cfg.Redis.Addr)
		log.Printf("WhatsApp Phone Number ID: %s", cfg.WhatsApp.PhoneNumberID)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("Engine GraceMs: %d, QuestionTimeLimitMs: %d", cfg.Engine.GraceMs, cfg.Engine.QuestionTimeLimitMs)
		log.Printf("-----------------------------------------")
	}

	if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
		return nil, fmt.Errorf("database configuration (host, dbname, user) is incomplete (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}

	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "" {
		ginMode = "debug"
	}
	if ginMode != "debug" {
		if cfg.Database.Password == "" {
			return nil, fmt.Errorf("database password is required in production mode (check DATABASE_PASSWORD env var)")
		}
		if cfg.WhatsApp.AccessToken == "" {
			return nil, fmt.Errorf("whatsapp access token is required in production mode (check WHATSAPP_ACCESS_TOKEN env var)")
		}
		if cfg.Webhook.Secret == "" {
			return nil, fmt.Errorf("webhook secret is required in production mode (check WEBHOOK_SECRET env var)")
		}
	}

	return &cfg, nil
}
