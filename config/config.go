package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds settings loaded from the environment or an optional config file.
type Config struct {
	AppEnv     string `mapstructure:"APP_ENV" validate:"required,oneof=development staging production test"`
	ServerPort string `mapstructure:"SERVER_PORT" validate:"required,numeric"`
	GinMode    string `mapstructure:"GIN_MODE" validate:"omitempty,oneof=debug release test"`
	AppBaseURL string `mapstructure:"APP_BASE_URL"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`
	LogFile   string `mapstructure:"LOG_FILE"`

	DBDriver    string `mapstructure:"DB_DRIVER" validate:"required,oneof=mysql postgres sqlite"`
	DBHost      string `mapstructure:"DB_HOST"`
	DBPort      string `mapstructure:"DB_PORT"`
	DBDatabase  string `mapstructure:"DB_DATABASE"`
	DBUsername  string `mapstructure:"DB_USERNAME"`
	DBPassword  string `mapstructure:"DB_PASSWORD"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBPath      string `mapstructure:"DB_PATH"`
	DebugSQL    bool   `mapstructure:"DEBUG_SQL"`

	JWTSecret      string `mapstructure:"JWT_SECRET" validate:"required,min=16"`
	JWTExpireHours int    `mapstructure:"JWT_EXPIRE_HOURS" validate:"gte=1,lte=720"`

	SMTPHost          string `mapstructure:"SMTP_HOST"`
	SMTPPort          int    `mapstructure:"SMTP_PORT" validate:"gte=1,lte=65535"`
	SMTPUser          string `mapstructure:"SMTP_USER"`
	SMTPPass          string `mapstructure:"SMTP_PASS"`
	SMTPFrom          string `mapstructure:"SMTP_FROM"`
	SMTPSkipTLSVerify bool   `mapstructure:"SMTP_SKIP_TLS_VERIFY"`

	UploadPath      string `mapstructure:"UPLOAD_PATH" validate:"required"`
	BlobDriver      string `mapstructure:"BLOB_DRIVER" validate:"required,oneof=fs s3"`
	BlobS3Bucket    string `mapstructure:"BLOB_S3_BUCKET" validate:"required_if=BlobDriver s3"`
	BlobS3Region    string `mapstructure:"BLOB_S3_REGION"`
	BlobS3Endpoint  string `mapstructure:"BLOB_S3_ENDPOINT"`
	BlobS3PathStyle bool   `mapstructure:"BLOB_S3_PATH_STYLE"`
	BlobPublicURL   string `mapstructure:"BLOB_PUBLIC_URL"`

	BlobS3AccessKeyID     string `mapstructure:"BLOB_S3_ACCESS_KEY_ID"`
	BlobS3SecretAccessKey string `mapstructure:"BLOB_S3_SECRET_ACCESS_KEY" validate:"required_with=BlobS3AccessKeyID"`

	RedisAddr         string        `mapstructure:"REDIS_ADDR" validate:"required_if=EmailRetryEnabled true"`
	RedisPassword     string        `mapstructure:"REDIS_PASSWORD"`
	EmailRetryEnabled bool          `mapstructure:"EMAIL_RETRY_ENABLED"`
	WorkerConcurrency int           `mapstructure:"WORKER_CONCURRENCY" validate:"gte=1,lte=1000"`
	NotifyTimeout     time.Duration `mapstructure:"NOTIFY_TIMEOUT" validate:"required"`
	ShutdownTimeout   time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`

	MonitorToken       string   `mapstructure:"MONITOR_TOKEN"`
	RateLimitRPS       float64  `mapstructure:"RATE_LIMIT_RPS" validate:"gte=0"`
	RateLimitBurst     int      `mapstructure:"RATE_LIMIT_BURST" validate:"gte=0"`
	CORSAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

var (
	cfg      *Config
	validate = validator.New(validator.WithRequiredStructEnabled())
)

var envKeys = []string{
	"APP_ENV", "SERVER_PORT", "GIN_MODE", "APP_BASE_URL",
	"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE",
	"DB_DRIVER", "DB_HOST", "DB_PORT", "DB_DATABASE", "DB_USERNAME", "DB_PASSWORD",
	"DATABASE_URL", "DB_PATH", "DEBUG_SQL",
	"JWT_SECRET", "JWT_EXPIRE_HOURS",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS", "SMTP_FROM", "SMTP_SKIP_TLS_VERIFY",
	"UPLOAD_PATH", "BLOB_DRIVER", "BLOB_S3_BUCKET", "BLOB_S3_REGION", "BLOB_S3_ENDPOINT",
	"BLOB_S3_PATH_STYLE", "BLOB_PUBLIC_URL", "BLOB_S3_ACCESS_KEY_ID", "BLOB_S3_SECRET_ACCESS_KEY",
	"REDIS_ADDR", "REDIS_PASSWORD", "EMAIL_RETRY_ENABLED", "WORKER_CONCURRENCY",
	"NOTIFY_TIMEOUT", "SHUTDOWN_TIMEOUT",
	"MONITOR_TOKEN", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "CORS_ALLOWED_ORIGINS",
}

// Load reads .env if present, applies defaults, binds env vars and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("APP_BASE_URL", "http://localhost:3000/")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_FILE", LogFilePath())
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_PATH", "research-showcase.db")
	v.SetDefault("JWT_EXPIRE_HOURS", 24)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("UPLOAD_PATH", "./uploads")
	v.SetDefault("BLOB_DRIVER", "fs")
	v.SetDefault("BLOB_S3_REGION", "us-east-1")
	v.SetDefault("WORKER_CONCURRENCY", 5)
	v.SetDefault("NOTIFY_TIMEOUT", "10s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")

	_ = v.ReadInConfig()

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	for key, dst := range map[string]*time.Duration{
		"NOTIFY_TIMEOUT":   &c.NotifyTimeout,
		"SHUTDOWN_TIMEOUT": &c.ShutdownTimeout,
	} {
		if s := v.GetString(key); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = d
		}
	}
	c.CORSAllowedOrigins = splitList(v.GetString("CORS_ALLOWED_ORIGINS"))

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.validateDatabase(); err != nil {
		return nil, err
	}

	cfg = &c
	return cfg, nil
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// Get returns the loaded configuration. Panics if not loaded.
func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call config.Load or config.MustLoad first")
	}
	return cfg
}

// Set installs c as the process configuration. Used by tests and tools.
func Set(c *Config) { cfg = c }

func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

func (c *Config) validateDatabase() error {
	switch c.DBDriver {
	case "mysql":
		if c.DatabaseURL == "" && (c.DBHost == "" || c.DBDatabase == "") {
			return fmt.Errorf("invalid configuration: DB_HOST and DB_DATABASE are required for mysql")
		}
	case "postgres":
		if c.DatabaseURL == "" && (c.DBHost == "" || c.DBDatabase == "") {
			return fmt.Errorf("invalid configuration: DATABASE_URL or DB_HOST/DB_DATABASE required for postgres")
		}
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("invalid configuration: DB_PATH required for sqlite")
		}
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
