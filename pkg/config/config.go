package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "vendorpay"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "VENDORPAY_DB_DSN"
	EnvDBHost = "VENDORPAY_DB_HOST"
	EnvDBUser = "VENDORPAY_DB_USER"
	EnvDBName = "VENDORPAY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Inventory  InventoryConfig
	Risk       RiskConfig
	GCP        GCPConfig
	GCS        GCSConfig
	PubSub     PubSubConfig
	Migrations MigrationsConfig
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
	Env          string `envconfig:"VENDORPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"VENDORPAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VENDORPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VENDORPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"VENDORPAY_DB_DSN"`
	Driver string `envconfig:"VENDORPAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VENDORPAY_DB_HOST"`
	LegacyPort     int    `envconfig:"VENDORPAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VENDORPAY_DB_USER"`
	LegacyPassword string `envconfig:"VENDORPAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"VENDORPAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"VENDORPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VENDORPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VENDORPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VENDORPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VENDORPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VENDORPAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VENDORPAY_REDIS_ADDR"`
	Password     string        `envconfig:"VENDORPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"VENDORPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VENDORPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VENDORPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VENDORPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VENDORPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VENDORPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"VENDORPAY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"VENDORPAY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"VENDORPAY_JWT_EXPIRATION_MINUTES" default:"60"`
}

// InventoryConfig drives the external device registry client.
type InventoryConfig struct {
	BaseURL        string        `envconfig:"VENDORPAY_INVENTORY_BASE_URL" required:"true"`
	BearerToken    string        `envconfig:"VENDORPAY_INVENTORY_BEARER_TOKEN" required:"true"`
	AttemptTimeout time.Duration `envconfig:"VENDORPAY_INVENTORY_ATTEMPT_TIMEOUT" default:"30s"`
	MaxAttempts    int           `envconfig:"VENDORPAY_INVENTORY_MAX_ATTEMPTS" default:"3"`
	InitialBackoff time.Duration `envconfig:"VENDORPAY_INVENTORY_INITIAL_BACKOFF" default:"1s"`
}

// RiskConfig holds the scoring thresholds. Defaults mirror the business
// rules: medium at >30% rejections or >2 duplicate submissions, high at
// >50% or >5.
type RiskConfig struct {
	MediumRejectionRate float64       `envconfig:"VENDORPAY_RISK_MEDIUM_REJECTION_RATE" default:"0.30"`
	HighRejectionRate   float64       `envconfig:"VENDORPAY_RISK_HIGH_REJECTION_RATE" default:"0.50"`
	MediumDuplicates    int64         `envconfig:"VENDORPAY_RISK_MEDIUM_DUPLICATES" default:"2"`
	HighDuplicates      int64         `envconfig:"VENDORPAY_RISK_HIGH_DUPLICATES" default:"5"`
	HistoryWindow       time.Duration `envconfig:"VENDORPAY_RISK_HISTORY_WINDOW" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VENDORPAY_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"VENDORPAY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VENDORPAY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"VENDORPAY_GCS_BUCKET_NAME"`
	UploadURLExpiry   time.Duration `envconfig:"VENDORPAY_GCS_UPLOAD_URL_EXPIRY" default:"15m"`
	DownloadURLExpiry time.Duration `envconfig:"VENDORPAY_GCS_DOWNLOAD_URL_EXPIRY" default:"24h"`
	MaxUploadMB       int           `envconfig:"VENDORPAY_GCS_MAX_UPLOAD_MB" default:"25"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"VENDORPAY_PUBSUB_NOTIFICATION_TOPIC" default:"vendorpay-notification-events"`
}

type MigrationsConfig struct {
	AutoMigrate bool   `envconfig:"VENDORPAY_AUTO_MIGRATE" default:"false"`
	Dir         string `envconfig:"VENDORPAY_MIGRATIONS_DIR" default:"pkg/migrate/migrations"`
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
