package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/icubam/icubam/internal/shared/biztime"
	sharedConfig "github.com/icubam/icubam/internal/shared/config"
)

type Config struct {
	Server    sharedConfig.ServerConfig    `mapstructure:"server"`
	Database  sharedConfig.DatabaseConfig  `mapstructure:"database"`
	Logger    sharedConfig.LoggerConfig    `mapstructure:"logger"`
	Auth      sharedConfig.AuthConfig      `mapstructure:"auth"`
	Scheduler sharedConfig.SchedulerConfig `mapstructure:"scheduler"`
	Messaging sharedConfig.MessagingConfig `mapstructure:"messaging"`
	Email     sharedConfig.EmailConfig     `mapstructure:"email"`
	SMS       sharedConfig.SMSConfig       `mapstructure:"sms"`
	Telegram  sharedConfig.TelegramConfig  `mapstructure:"telegram"`
	Redis     sharedConfig.RedisConfig     `mapstructure:"redis"`
	RateLimit sharedConfig.RateLimitConfig `mapstructure:"ratelimit"`
	Analytics sharedConfig.AnalyticsConfig `mapstructure:"analytics"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load reads configs/config.yaml (or configPath), a local .env file and the
// ICUBAM_* environment, in increasing order of precedence.
func Load(env, configPath string) (*Config, error) {
	v := viper.New()

	// Missing .env is the normal production case.
	_ = godotenv.Load()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	v.SetEnvPrefix("ICUBAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if env != "" && env != "default" {
		v.Set("server.mode", env)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	appConfigMu.Lock()
	appConfig = &cfg
	appConfigMu.Unlock()

	return &cfg, nil
}

// Get returns the configuration loaded last.
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Auth.JWT.Secret == "" {
		return fmt.Errorf("auth.jwt.secret is required")
	}
	if c.Auth.AccessKeySalt == "" {
		return fmt.Errorf("auth.access_key_salt is required")
	}
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.SMS.Carrier {
	case "", "fake", "MB", "NX", "TW":
	default:
		return fmt.Errorf("unknown sms carrier %q", c.SMS.Carrier)
	}
	if _, err := biztime.ParseMoments(c.Scheduler.DailyMoments); err != nil {
		return fmt.Errorf("invalid scheduler.daily_moments: %w", err)
	}
	if _, err := time.LoadLocation(c.Server.Timezone); err != nil {
		return fmt.Errorf("invalid server.timezone: %w", err)
	}
	switch c.Telegram.Mode {
	case "", "webhook", "polling":
	default:
		return fmt.Errorf("unknown telegram mode %q", c.Telegram.Mode)
	}
	if c.Scheduler.ReminderDelay <= 0 {
		return fmt.Errorf("scheduler.reminder_delay must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8888)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.base_url", "http://localhost:8888")
	v.SetDefault("server.timezone", "Europe/Paris")
	v.SetDefault("server.num_days_for_stale", 2)
	v.SetDefault("server.max_cluster_size", 10)
	v.SetDefault("server.display_empty_icu", false)
	v.SetDefault("server.trusted_hosts", []string{"localhost", "127.0.0.1"})
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.database", "icubam.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.connect_retries", 5)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_path", "stdout")

	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.access_key_salt", "")
	v.SetDefault("auth.token_validity_days", 30)
	v.SetDefault("auth.cookie.path", "/")
	v.SetDefault("auth.cookie.secure", true)
	v.SetDefault("auth.cookie.same_site", "Lax")
	v.SetDefault("auth.cookie.max_age", 3600)

	v.SetDefault("scheduler.daily_moments", []string{"09:30", "17:00"})
	v.SetDefault("scheduler.reminder_delay", 1800)
	v.SetDefault("scheduler.max_retries", 2)
	v.SetDefault("scheduler.ping_delay", 30)

	v.SetDefault("messaging.port", 8889)
	v.SetDefault("messaging.base_url", "http://localhost:8889")
	v.SetDefault("messaging.timeout", 10)

	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.from_name", "ICUBAM")

	v.SetDefault("sms.carrier", "fake")
	v.SetDefault("sms.timeout", 30)

	v.SetDefault("telegram.mode", "webhook")
	v.SetDefault("telegram.api_base_url", "https://api.telegram.org")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("ratelimit.update_per_minute", 30)
	v.SetDefault("ratelimit.db_per_minute", 60)

	v.SetDefault("analytics.timeout", 30)
}
