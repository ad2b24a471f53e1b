package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Workflow      WorkflowConfig
	Scheduler     SchedulerConfig
	Notifications NotificationConfig
	SMTP          SMTPConfig
	Cache         CacheConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig only carries validation settings; tokens are issued by the identity service.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// WorkflowConfig holds organisational policy for the approval workflow.
type WorkflowConfig struct {
	Timezone            string
	ApprovalChain       []string
	EscalationThreshold time.Duration
	ActivityCatchUp     bool
	PortalBaseURL       string
}

// SchedulerConfig controls the recurring sweeps.
type SchedulerConfig struct {
	Enabled        bool
	ActivityCron   string
	EscalationCron string
	LockTTL        time.Duration
}

// NotificationConfig tunes the asynchronous dispatch queue.
type NotificationConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// SMTPConfig configures outbound reminder email.
type SMTPConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// CacheConfig governs read-through caching of per-user views.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// Location resolves the organisational timezone, falling back to UTC.
func (w WorkflowConfig) Location() *time.Location {
	if w.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Workflow = WorkflowConfig{
		Timezone:            v.GetString("ORG_TIMEZONE"),
		ApprovalChain:       splitAndTrim(v.GetString("APPROVAL_CHAIN")),
		EscalationThreshold: parseDuration(v.GetString("ESCALATION_THRESHOLD"), 72*time.Hour),
		ActivityCatchUp:     v.GetBool("ACTIVITY_SWEEP_CATCH_UP"),
		PortalBaseURL:       strings.TrimRight(v.GetString("PORTAL_BASE_URL"), "/"),
	}

	cfg.Scheduler = SchedulerConfig{
		Enabled:        v.GetBool("ENABLE_SCHEDULER"),
		ActivityCron:   v.GetString("SCHEDULER_ACTIVITY_CRON"),
		EscalationCron: v.GetString("SCHEDULER_ESCALATION_CRON"),
		LockTTL:        parseDuration(v.GetString("SCHEDULER_LOCK_TTL"), 30*time.Minute),
	}

	cfg.Notifications = NotificationConfig{
		Workers:    v.GetInt("NOTIFICATION_WORKERS"),
		BufferSize: v.GetInt("NOTIFICATION_BUFFER_SIZE"),
		MaxRetries: v.GetInt("NOTIFICATION_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("NOTIFICATION_RETRY_DELAY"), 2*time.Second),
	}

	cfg.SMTP = SMTPConfig{
		Enabled:  v.GetBool("ENABLE_SMTP"),
		Host:     v.GetString("SMTP_HOST"),
		Port:     v.GetInt("SMTP_PORT"),
		Username: v.GetString("SMTP_USERNAME"),
		Password: v.GetString("SMTP_PASSWORD"),
		From:     v.GetString("SMTP_FROM"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 2*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "cec_system")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ORG_TIMEZONE", "Asia/Manila")
	v.SetDefault("APPROVAL_CHAIN", "CEC_HEAD,VP_DIRECTOR,CHIEF_OPERATION_OFFICER")
	v.SetDefault("ESCALATION_THRESHOLD", "72h")
	v.SetDefault("ACTIVITY_SWEEP_CATCH_UP", true)
	v.SetDefault("PORTAL_BASE_URL", "")

	v.SetDefault("ENABLE_SCHEDULER", true)
	v.SetDefault("SCHEDULER_ACTIVITY_CRON", "0 0 * * *")
	v.SetDefault("SCHEDULER_ESCALATION_CRON", "0 8 * * *")
	v.SetDefault("SCHEDULER_LOCK_TTL", "30m")

	v.SetDefault("NOTIFICATION_WORKERS", 2)
	v.SetDefault("NOTIFICATION_BUFFER_SIZE", 64)
	v.SetDefault("NOTIFICATION_MAX_RETRIES", 3)
	v.SetDefault("NOTIFICATION_RETRY_DELAY", "2s")

	v.SetDefault("ENABLE_SMTP", false)
	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "cec-noreply@localhost")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_TTL", "2m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// viper reports a missing explicit config file as an fs error rather than ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}
