package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// CORS stays off while CORSAllowOrigins is empty.
	CORSAllowOrigins     []string
	CORSAllowMethods     []string
	CORSAllowHeaders     []string
	CORSAllowCredentials bool

	LogLevel  string
	LogFormat string

	OtelEnabled       bool
	OTLPEndpoint      string
	OTLPProtocol      string
	OtelSamplingRatio float64

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBAutoMigrate     bool

	Redis RedisConfig
	AMQP  AMQPConfig
	Jobs  JobsConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a redis endpoint is configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type AMQPConfig struct {
	URL      string
	Exchange string
	Queue    string
}

func (c AMQPConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
}

// JobsConfig controls background billing runs.
type JobsConfig struct {
	BatchSize   int
	LockTTL     time.Duration
	StatusTTL   time.Duration
	ExecTimeout time.Duration

	// NodeID seeds the API process's snowflake node, WorkerNodeID the
	// worker's. Both write payments, so they must differ when AMQP is on.
	NodeID       int64
	WorkerNodeID int64
}

const (
	defaultJobLockTTL     = 30 * time.Minute
	defaultJobExecTimeout = 30 * time.Minute
)

// RunTimeout bounds one billing job.
func (c JobsConfig) RunTimeout() time.Duration {
	if c.ExecTimeout <= 0 {
		return defaultJobExecTimeout
	}
	return c.ExecTimeout
}

// RunLockTTL is the month lock lifetime. It never ends before RunTimeout,
// so a lock cannot expire under a run that is still inside its deadline.
func (c JobsConfig) RunLockTTL() time.Duration {
	ttl := c.LockTTL
	if ttl <= 0 {
		ttl = defaultJobLockTTL
	}
	return max(ttl, c.RunTimeout())
}

var (
	ErrAMQPRequiresRedis = errors.New("amqp dispatch requires REDIS_ADDR for shared job status")
	ErrNodeIDRange       = errors.New("snowflake node ids must be between 0 and 1023")
	ErrNodeIDShared      = errors.New("SNOWFLAKE_NODE and WORKER_SNOWFLAKE_NODE must differ when AMQP is enabled")
)

const maxSnowflakeNode = 1023

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "housebill"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", "127.0.0.1:8140"),

		CORSAllowOrigins:     getenvList("CORS_ALLOW_ORIGINS", nil),
		CORSAllowMethods:     getenvList("CORS_ALLOW_METHODS", []string{"GET", "POST", "OPTIONS"}),
		CORSAllowHeaders:     getenvList("CORS_ALLOW_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}),
		CORSAllowCredentials: getenvBool("CORS_ALLOW_CREDENTIALS", false),

		LogLevel:          strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(getenv("LOG_FORMAT", "json")),
		OtelEnabled:       getenvBool("OTEL_ENABLED", false),
		OTLPEndpoint:      getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTLPProtocol:      strings.ToLower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
		OtelSamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "housebill"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 1)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 1800)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 300)),
		DBAutoMigrate:     getenvBool("DATABASE_AUTO_MIGRATE", true),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
		AMQP: AMQPConfig{
			URL:      strings.TrimSpace(getenv("AMQP_URL", "")),
			Exchange: getenv("AMQP_EXCHANGE", "housebill"),
			Queue:    getenv("AMQP_QUEUE", "billing.calculate_payments"),
		},
		Jobs: JobsConfig{
			BatchSize:   int(getenvInt64("BILLING_BATCH_SIZE", 100)),
			LockTTL:     getenvDuration("BILLING_LOCK_TTL", defaultJobLockTTL),
			StatusTTL:   getenvDuration("BILLING_STATUS_TTL", 24*time.Hour),
			ExecTimeout: getenvDuration("BILLING_EXEC_TIMEOUT", defaultJobExecTimeout),

			NodeID:       getenvInt64("SNOWFLAKE_NODE", 1),
			WorkerNodeID: getenvInt64("WORKER_SNOWFLAKE_NODE", 2),
		},
	}

	return cfg
}

// Validate checks combinations that cannot work at runtime.
func (c Config) Validate() error {
	for _, id := range []int64{c.Jobs.NodeID, c.Jobs.WorkerNodeID} {
		if id < 0 || id > maxSnowflakeNode {
			return ErrNodeIDRange
		}
	}
	if !c.AMQP.Enabled() {
		return nil
	}
	if !c.Redis.Enabled() {
		return ErrAMQPRequiresRedis
	}
	if c.Jobs.NodeID == c.Jobs.WorkerNodeID {
		return ErrNodeIDShared
	}
	return nil
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

// getenvList splits a comma separated value, dropping blank items.
func getenvList(key string, def []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
