package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"armada/internal/models"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig           `yaml:"app"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Backup        BackupConfig        `yaml:"backup"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Logging       LoggingConfig       `yaml:"logging"`
	API           APIConfig           `yaml:"api"`
	Settlement    SettlementConfig    `yaml:"settlement"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Broker        BrokerConfig        `yaml:"broker"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite3 | postgres
	Path     string         `yaml:"path"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	DBName         string `yaml:"dbname"`
	SSLMode        string `yaml:"sslmode"`
	MaxConnections int    `yaml:"max_connections"`
}

// DSN builds a lib/pq connection URL.
func (p PostgresConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:   "/" + p.DBName,
	}
	if p.User != "" {
		u.User = url.UserPassword(p.User, p.Password)
	}
	q := u.Query()
	q.Set("sslmode", p.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	HTTP           APIHTTPConfig      `yaml:"http"`
	GRPC           APIGRPCConfig      `yaml:"grpc"`
	Auth           APIAuthConfig      `yaml:"auth"`
	RateLimit      APIRateLimitConfig `yaml:"rate_limit"`
	IdempotencyTTL time.Duration      `yaml:"idempotency_ttl"`
	ActionLimit    ActionLimitConfig  `yaml:"action_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool `yaml:"enabled"`
	Port       int  `yaml:"port"`
	Reflection bool `yaml:"reflection"`
}

type APIAuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	Issuer    string        `yaml:"issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// ActionLimitConfig caps mutating settlement calls per actor.
type ActionLimitConfig struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

type SettlementConfig struct {
	Timezone string `yaml:"timezone"`
}

// Location returns the time zone calendar days are counted in.
func (s SettlementConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

type SchedulerConfig struct {
	Timezone     string `yaml:"timezone"`
	Promote      string `yaml:"promote"`
	EnableFinish string `yaml:"enable_finish"`
	Backup       string `yaml:"backup"`
}

type NotificationsConfig struct {
	Telegram      TelegramConfig `yaml:"telegram"`
	Retry         RetryConfig    `yaml:"retry"`
	QueueKey      string         `yaml:"queue_key"`
	DeadLetterKey string         `yaml:"dead_letter_key"`
	PollInterval  time.Duration  `yaml:"poll_interval"`
}

type TelegramConfig struct {
	Enabled  bool    `yaml:"enabled"`
	BotToken string  `yaml:"bot_token"`
	ChatIDs  []int64 `yaml:"chat_ids"`
	Debug    bool    `yaml:"debug"`
}

type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
}

type BrokerConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3":
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case "postgres":
		if c.Database.Postgres.Host == "" || c.Database.Postgres.DBName == "" {
			return errors.New("database.postgres host and dbname are required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.API.HTTP.Enabled && len(c.API.Auth.JWTSecret) < 16 {
		return errors.New("api.auth.jwt_secret must be at least 16 characters")
	}

	if _, err := c.Settlement.Location(); err != nil {
		return fmt.Errorf("invalid settlement timezone %q: %w", c.Settlement.Timezone, err)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("invalid scheduler timezone %q: %w", c.Scheduler.Timezone, err)
	}

	jobs := map[string]string{
		"promote":       c.Scheduler.Promote,
		"enable_finish": c.Scheduler.EnableFinish,
		"backup":        c.Scheduler.Backup,
	}
	for name, spec := range jobs {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("invalid cron spec for scheduler.%s: %w", name, err)
		}
	}

	if c.Notifications.Telegram.Enabled {
		if c.Notifications.Telegram.BotToken == "" {
			return errors.New("notifications.telegram.bot_token is required")
		}
		if len(c.Notifications.Telegram.ChatIDs) == 0 {
			return errors.New("notifications.telegram.chat_ids must not be empty")
		}
	}

	return nil
}

// ValidateVehicles checks the fleet seed before it is synced.
func ValidateVehicles(vehicles []models.Vehicle) error {
	// Проверяем дубликаты номеров
	plates := make(map[string]bool)
	for _, v := range vehicles {
		plate := strings.TrimSpace(v.Plate)
		if plate == "" {
			return fmt.Errorf("vehicle '%s' has no plate", v.Name)
		}
		if plates[plate] {
			return fmt.Errorf("duplicate vehicle plate found: %s", plate)
		}
		if v.DailyRate <= 0 {
			return fmt.Errorf("vehicle %s: daily_rate must be positive", plate)
		}
		plates[plate] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "armada"
	}
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" || c.Database.Driver == "sqlite" {
		c.Database.Driver = "sqlite3"
	}
	if c.Database.Driver == "postgres" {
		if c.Database.Postgres.Port == 0 {
			c.Database.Postgres.Port = 5432
		}
		if c.Database.Postgres.SSLMode == "" {
			c.Database.Postgres.SSLMode = "disable"
		}
	}

	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.Auth.Issuer == "" {
		c.API.Auth.Issuer = "armada"
	}
	if c.API.Auth.TokenTTL == 0 {
		c.API.Auth.TokenTTL = 12 * time.Hour
	}
	if c.API.IdempotencyTTL == 0 {
		c.API.IdempotencyTTL = models.DefaultIdempotencyTTL * time.Second
	}
	if c.API.ActionLimit.Limit == 0 {
		c.API.ActionLimit.Limit = models.DefaultActionLimit
	}
	if c.API.ActionLimit.Window == 0 {
		c.API.ActionLimit.Window = models.DefaultActionWindow * time.Second
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Settlement.Timezone == "" {
		c.Settlement.Timezone = "UTC"
	}
	if c.Scheduler.Timezone == "" {
		c.Scheduler.Timezone = c.Settlement.Timezone
	}

	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}

	n := &c.Notifications
	if n.QueueKey == "" {
		n.QueueKey = "armada:notifications"
	}
	if n.DeadLetterKey == "" {
		n.DeadLetterKey = n.QueueKey + ":dead"
	}
	if n.PollInterval == 0 {
		n.PollInterval = 5 * time.Second
	}
	if n.Retry.MaxRetries == 0 {
		n.Retry.MaxRetries = 5
	}
	if n.Retry.InitialDelay == 0 {
		n.Retry.InitialDelay = 2 * time.Second
	}
	if n.Retry.MaxDelay == 0 {
		n.Retry.MaxDelay = 5 * time.Minute
	}
	if n.Retry.Multiplier == 0 {
		n.Retry.Multiplier = 2
	}

	if c.Broker.Exchange == "" {
		c.Broker.Exchange = "armada.settlement"
	}
}
