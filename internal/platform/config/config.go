package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server captures process-level configuration.
type Server struct {
	Addr            string
	BaseURL         string
	Environment     string
	LogLevel        string
	RequestTimeout  time.Duration
	DispatchTimeout time.Duration
	MaxBodyBytes    int64
	SeedFile        string
	AdminToken      string
	CleanupInterval time.Duration
	ShutdownTimeout time.Duration

	Auth      Auth
	Tasks     Tasks
	RateLimit RateLimit
	Providers Providers
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
}

// Auth configures token issuance and session cookies.
type Auth struct {
	JWTSigningKey   string
	Audience        string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	AuthRequestTTL  time.Duration
	ResolverCache   time.Duration
	SecureCookies   bool
}

// Tasks configures the task executor pool.
type Tasks struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
	// PickupDelay is the minimum time a new task stays pending.
	PickupDelay time.Duration
}

// RateLimit is the per-principal request budget on the JSON-RPC endpoints.
type RateLimit struct {
	RequestsPerMinute int
}

// Providers configures outbound calls to third-party fitness providers.
type Providers struct {
	HTTPTimeout      time.Duration
	FailureThreshold int
	Cooldown         time.Duration
}

// DatabaseConfig enables the Postgres stores when URL is set.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig enables the Redis revocation list when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables task lifecycle events when Brokers is set.
type KafkaConfig struct {
	Brokers         string
	TaskEventsTopic string
	Acks            string
	DeliveryTimeout time.Duration
}

const devSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds the configuration from environment variables, after loading
// a .env file from the working directory if one exists.
func FromEnv() Server {
	_ = godotenv.Load()

	env := getString("ENVIRONMENT", "development")
	addr := getString("FITGATE_ADDR", ":8080")

	return Server{
		Addr:            addr,
		BaseURL:         strings.TrimRight(getString("FITGATE_BASE_URL", "http://localhost"+addr), "/"),
		Environment:     env,
		LogLevel:        getString("LOG_LEVEL", "info"),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 30*time.Second),
		DispatchTimeout: getDuration("DISPATCH_TIMEOUT", 15*time.Second),
		MaxBodyBytes:    int64(getInt("MAX_BODY_BYTES", 1<<20)),
		SeedFile:        getString("SEED_FILE", ""),
		AdminToken:      getString("ADMIN_API_TOKEN", ""),
		CleanupInterval: getDuration("CLEANUP_INTERVAL", 5*time.Minute),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		Auth: Auth{
			JWTSigningKey:   getString("JWT_SIGNING_KEY", devSigningKey),
			Audience:        getString("JWT_AUDIENCE", "fitgate"),
			AccessTokenTTL:  getDuration("TOKEN_TTL", time.Hour),
			RefreshTokenTTL: getDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
			AuthRequestTTL:  getDuration("AUTH_REQUEST_TTL", 10*time.Minute),
			ResolverCache:   getDuration("RESOLVER_CACHE_TTL", 5*time.Second),
			SecureCookies:   env == "production",
		},
		Tasks: Tasks{
			Workers:     getInt("TASK_WORKERS", 4),
			QueueSize:   getInt("TASK_QUEUE_SIZE", 256),
			Timeout:     getDuration("TASK_TIMEOUT", 5*time.Minute),
			PickupDelay: getDuration("TASK_PICKUP_DELAY", 250*time.Millisecond),
		},
		RateLimit: RateLimit{
			RequestsPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 120),
		},
		Providers: Providers{
			HTTPTimeout:      getDuration("PROVIDER_HTTP_TIMEOUT", 10*time.Second),
			FailureThreshold: getInt("PROVIDER_FAILURE_THRESHOLD", 5),
			Cooldown:         getDuration("PROVIDER_COOLDOWN", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getString("DATABASE_URL", ""),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          getString("REDIS_URL", ""),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:         getString("KAFKA_BROKERS", ""),
			TaskEventsTopic: getString("TASK_EVENTS_TOPIC", "fitgate.task-events"),
			Acks:            getString("KAFKA_ACKS", "all"),
			DeliveryTimeout: getDuration("KAFKA_DELIVERY_TIMEOUT", 30*time.Second),
		},
	}
}

// IsDevSigningKey reports whether the built-in development key is in use.
func (s Server) IsDevSigningKey() bool {
	return s.Auth.JWTSigningKey == devSigningKey
}

func getString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
