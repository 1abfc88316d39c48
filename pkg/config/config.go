package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the envconfig prefix shared by every binary.
const EnvPrefix = "crmdelivery"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Env var names referenced from tests and error messages.
const (
	EnvAppEnv     = "CRMDELIVERY_APP_ENV"
	EnvDBDSN      = "CRMDELIVERY_DB_DSN"
	EnvDBHost     = "CRMDELIVERY_DB_HOST"
	EnvDBUser     = "CRMDELIVERY_DB_USER"
	EnvDBName     = "CRMDELIVERY_DB_NAME"
	EnvRedisURL   = "CRMDELIVERY_REDIS_URL"
	EnvGCPProject = "CRMDELIVERY_GCP_PROJECT_ID"
	EnvTaskTopic  = "CRMDELIVERY_PUBSUB_SCHEDULED_TASK_TOPIC"
	EnvTaskSub    = "CRMDELIVERY_PUBSUB_SCHEDULED_TASK_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	GCP       GCPConfig
	PubSub    PubSubConfig
	Scheduler SchedulerConfig
	Mail      MailConfig
	Outbox    OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CRMDELIVERY_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"CRMDELIVERY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CRMDELIVERY_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"CRMDELIVERY_APP_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CRMDELIVERY_DB_DSN"`
	Driver string `envconfig:"CRMDELIVERY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CRMDELIVERY_DB_HOST"`
	LegacyPort     int    `envconfig:"CRMDELIVERY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CRMDELIVERY_DB_USER"`
	LegacyPassword string `envconfig:"CRMDELIVERY_DB_PASSWORD"`
	LegacyName     string `envconfig:"CRMDELIVERY_DB_NAME"`
	LegacySSLMode  string `envconfig:"CRMDELIVERY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CRMDELIVERY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CRMDELIVERY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CRMDELIVERY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CRMDELIVERY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CRMDELIVERY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CRMDELIVERY_REDIS_ADDR"`
	Password     string        `envconfig:"CRMDELIVERY_REDIS_PASSWORD"`
	DB           int           `envconfig:"CRMDELIVERY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CRMDELIVERY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CRMDELIVERY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CRMDELIVERY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CRMDELIVERY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CRMDELIVERY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CRMDELIVERY_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"CRMDELIVERY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CRMDELIVERY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	ScheduledTaskTopic        string `envconfig:"CRMDELIVERY_PUBSUB_SCHEDULED_TASK_TOPIC" required:"true"`
	ScheduledTaskSubscription string `envconfig:"CRMDELIVERY_PUBSUB_SCHEDULED_TASK_SUBSCRIPTION" required:"true"`
}

// SchedulerConfig tunes the Redis-backed schedule store and its monitor loop.
type SchedulerConfig struct {
	KeyPrefix      string        `envconfig:"CRMDELIVERY_SCHEDULER_KEY_PREFIX" default:"sched"`
	SweepInterval  time.Duration `envconfig:"CRMDELIVERY_SCHEDULER_SWEEP_INTERVAL" default:"1s"`
	SweepBatchSize int           `envconfig:"CRMDELIVERY_SCHEDULER_SWEEP_BATCH" default:"100"`
	LockKey        string        `envconfig:"CRMDELIVERY_SCHEDULER_LOCK_KEY" default:"sched:monitor:lock"`
	LockTTL        time.Duration `envconfig:"CRMDELIVERY_SCHEDULER_LOCK_TTL" default:"30s"`
}

type MailConfig struct {
	Sender string `envconfig:"CRMDELIVERY_MAIL_SENDER" default:"no-reply@crm-delivery.dev"`
}

// OutboxConfig bounds the in-process event bus worker pool.
type OutboxConfig struct {
	Workers      int           `envconfig:"CRMDELIVERY_OUTBOX_WORKERS" default:"4"`
	QueueSize    int           `envconfig:"CRMDELIVERY_OUTBOX_QUEUE_SIZE" default:"256"`
	DrainTimeout time.Duration `envconfig:"CRMDELIVERY_OUTBOX_DRAIN_TIMEOUT" default:"10s"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
