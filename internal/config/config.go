package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Cache    CacheConfig    `mapstructure:"cache" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error fatal"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL                    string `mapstructure:"url" validate:"required,url"`
	MaxOpenConns           int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" validate:"gte=0"`
}

// AuthConfig contains the settings used to verify bearer tokens.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// Cache drivers
const (
	CacheDriverRedis  = "redis"
	CacheDriverMemory = "memory"
)

// CacheConfig selects and configures the read-through cache backend.
type CacheConfig struct {
	Driver            string `mapstructure:"driver" validate:"required,oneof=redis memory"`
	RedisAddr         string `mapstructure:"redis_addr" validate:"required_if=Driver redis"`
	RedisPassword     string `mapstructure:"redis_password"`
	RedisDB           int    `mapstructure:"redis_db" validate:"gte=0"`
	DefaultTTLSeconds int    `mapstructure:"default_ttl_seconds" validate:"gt=0"`
	TaskTTLSeconds    int    `mapstructure:"task_ttl_seconds" validate:"gt=0"`
}

// QueueConfig configures the durable work queue and its workers.
type QueueConfig struct {
	WorkerCount        int  `mapstructure:"worker_count" validate:"gte=1"`
	PollIntervalMs     int  `mapstructure:"poll_interval_ms" validate:"gte=10"`
	BatchSize          int  `mapstructure:"batch_size" validate:"gte=1"`
	StuckJobAgeMinutes int  `mapstructure:"stuck_job_age_minutes" validate:"gte=1"`
	Outbox             bool `mapstructure:"outbox"`
}
