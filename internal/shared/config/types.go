package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

type ServerConfig struct {
	Host            string   `mapstructure:"host"`
	Port            int      `mapstructure:"port"`
	Mode            string   `mapstructure:"mode"`
	BaseURL         string   `mapstructure:"base_url"`
	Timezone        string   `mapstructure:"timezone"`
	NumDaysForStale int      `mapstructure:"num_days_for_stale"`
	MaxClusterSize  int      `mapstructure:"max_cluster_size"`
	DisplayEmptyICU bool     `mapstructure:"display_empty_icu"`
	DisclaimerPath  string   `mapstructure:"disclaimer_path"`
	TrustedHosts    []string `mapstructure:"trusted_hosts"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DBHosts are the Host values admitted on /db: the host of base_url, the
// loopback names and any configured trusted_hosts.
func (s *ServerConfig) DBHosts() []string {
	hosts := []string{"localhost", "127.0.0.1"}
	if u, err := url.Parse(s.BaseURL); err == nil && u.Hostname() != "" {
		hosts = append(hosts, u.Hostname())
	}
	hosts = append(hosts, s.TrustedHosts...)
	for i, h := range hosts {
		hosts[i] = strings.ToLower(strings.TrimSpace(h))
	}
	slices.Sort(hosts)
	return slices.Compact(hosts)
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	ConnectRetries  int    `mapstructure:"connect_retries"`
}

// GetDSN returns the explicit DSN when set, otherwise builds one for the driver.
func (d *DatabaseConfig) GetDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	switch d.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			d.Username, d.Password, d.Host, d.Port, d.Database)
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			d.Host, d.Port, d.Username, d.Password, d.Database)
	default:
		return d.Database
	}
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type CookieConfig struct {
	Domain   string `mapstructure:"domain"`
	Path     string `mapstructure:"path"`
	Secure   bool   `mapstructure:"secure"`
	SameSite string `mapstructure:"same_site"`
	MaxAge   int    `mapstructure:"max_age"`
}

type AuthConfig struct {
	JWT               JWTConfig    `mapstructure:"jwt"`
	AccessKeySalt     string       `mapstructure:"access_key_salt"`
	TokenValidityDays int          `mapstructure:"token_validity_days"`
	Cookie            CookieConfig `mapstructure:"cookie"`
}

type SchedulerConfig struct {
	DailyMoments  []string `mapstructure:"daily_moments"`
	ReminderDelay int      `mapstructure:"reminder_delay"`
	MaxRetries    int      `mapstructure:"max_retries"`
	PingDelay     int      `mapstructure:"ping_delay"`
}

func (s *SchedulerConfig) ReminderInterval() time.Duration {
	return time.Duration(s.ReminderDelay) * time.Second
}

// MessagingConfig locates the messaging server: Port is where it listens,
// BaseURL is how the CLI and the web front reach it.
type MessagingConfig struct {
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"`
}

type EmailConfig struct {
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUser     string `mapstructure:"smtp_user"`
	SMTPPassword string `mapstructure:"smtp_password"`
	UseSSL       bool   `mapstructure:"use_ssl"`
	FromAddress  string `mapstructure:"from_address"`
	FromName     string `mapstructure:"from_name"`
}

// Enabled reports whether enough is configured to send mail.
func (e *EmailConfig) Enabled() bool {
	return e.SMTPHost != "" && e.FromAddress != ""
}

type CarrierConfig struct {
	URL    string `mapstructure:"url"`
	Key    string `mapstructure:"key"`
	Secret string `mapstructure:"secret"`
	Sender string `mapstructure:"sender"`
}

type SMSConfig struct {
	Carrier string        `mapstructure:"carrier"`
	Timeout int           `mapstructure:"timeout"`
	MB      CarrierConfig `mapstructure:"mb"`
	NX      CarrierConfig `mapstructure:"nx"`
	TW      CarrierConfig `mapstructure:"tw"`
}

type TelegramConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BotName    string `mapstructure:"bot_name"`
	Mode       string `mapstructure:"mode"`
	WebhookURL string `mapstructure:"webhook_url"`
	// WebhookSecret, when set, must match the X-Telegram-Bot-Api-Secret-Token header.
	WebhookSecret string `mapstructure:"webhook_secret"`
	APIBaseURL    string `mapstructure:"api_base_url"`
}

func (t *TelegramConfig) Enabled() bool {
	return t.APIKey != ""
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type RateLimitConfig struct {
	UpdatePerMinute int `mapstructure:"update_per_minute"`
	DBPerMinute     int `mapstructure:"db_per_minute"`
}

type AnalyticsConfig struct {
	Timeout int `mapstructure:"timeout"`
}
