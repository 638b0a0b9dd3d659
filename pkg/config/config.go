package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	GCS          GCSConfig
	Expo         ExpoConfig
	Sendgrid     SendgridConfig
	Dispatch     DispatchConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if cfg.DB.Driver != DBDriverSQLite {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CONDOPLEX_APP_ENV" required:"true"`
	Port         string `envconfig:"CONDOPLEX_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CONDOPLEX_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CONDOPLEX_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CONDOPLEX_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CONDOPLEX_DB_DSN"`
	Driver string `envconfig:"CONDOPLEX_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CONDOPLEX_DB_HOST"`
	LegacyPort     int    `envconfig:"CONDOPLEX_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CONDOPLEX_DB_USER"`
	LegacyPassword string `envconfig:"CONDOPLEX_DB_PASSWORD"`
	LegacyName     string `envconfig:"CONDOPLEX_DB_NAME"`
	LegacySSLMode  string `envconfig:"CONDOPLEX_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CONDOPLEX_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CONDOPLEX_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CONDOPLEX_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CONDOPLEX_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CONDOPLEX_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CONDOPLEX_REDIS_ADDR"`
	Password     string        `envconfig:"CONDOPLEX_REDIS_PASSWORD"`
	DB           int           `envconfig:"CONDOPLEX_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CONDOPLEX_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CONDOPLEX_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CONDOPLEX_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CONDOPLEX_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CONDOPLEX_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CONDOPLEX_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CONDOPLEX_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CONDOPLEX_JWT_EXPIRATION_MINUTES" required:"true"`
	QRCodeTTLMinutes  int    `envconfig:"CONDOPLEX_QR_CODE_TTL_MINUTES" default:"15"`
}

// QRCodeTTL returns the pickup QR token lifetime.
func (j JWTConfig) QRCodeTTL() time.Duration {
	if j.QRCodeTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.QRCodeTTLMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CONDOPLEX_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CONDOPLEX_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CONDOPLEX_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CONDOPLEX_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CONDOPLEX_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"CONDOPLEX_GCS_BUCKET_NAME" required:"true"`
	PathPrefix string `envconfig:"CONDOPLEX_GCS_PATH_PREFIX" default:"deliveries"`
}

type ExpoConfig struct {
	BaseURL     string `envconfig:"CONDOPLEX_EXPO_BASE_URL" default:"https://exp.host"`
	AccessToken string `envconfig:"CONDOPLEX_EXPO_ACCESS_TOKEN"`
	BatchSize   int    `envconfig:"CONDOPLEX_EXPO_BATCH_SIZE" default:"100"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"CONDOPLEX_SENDGRID_API_KEY"`
	BaseURL     string `envconfig:"CONDOPLEX_SENDGRID_BASE_URL" default:"https://api.sendgrid.com"`
	DefaultFrom string `envconfig:"CONDOPLEX_SENDGRID_FROM_EMAIL"`
}

type DispatchConfig struct {
	BatchLimit   int           `envconfig:"CONDOPLEX_DISPATCH_BATCH_LIMIT" default:"50"`
	LockTTL      time.Duration `envconfig:"CONDOPLEX_DISPATCH_LOCK_TTL" default:"30s"`
	TriggerToken string        `envconfig:"CONDOPLEX_DISPATCH_TRIGGER_TOKEN"`
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
