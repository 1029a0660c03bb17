package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/icubam/icubam/internal/infrastructure/config"
	"github.com/icubam/icubam/internal/shared/biztime"
	sharedConfig "github.com/icubam/icubam/internal/shared/config"
	"github.com/icubam/icubam/internal/shared/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		Server: sharedConfig.ServerConfig{
			BaseURL:         "http://localhost:8888",
			Timezone:        "UTC",
			NumDaysForStale: 2,
			MaxClusterSize:  10,
			TrustedHosts:    []string{"localhost"},
			AllowedOrigins:  []string{"https://map.example.org"},
		},
		Database: sharedConfig.DatabaseConfig{Driver: "sqlite"},
		Auth: sharedConfig.AuthConfig{
			JWT:               sharedConfig.JWTConfig{Secret: "test-secret"},
			AccessKeySalt:     "test-salt",
			TokenValidityDays: 30,
			Cookie:            sharedConfig.CookieConfig{Path: "/", MaxAge: 3600},
		},
		Scheduler: sharedConfig.SchedulerConfig{
			DailyMoments:  []string{"09:30", "17:00"},
			ReminderDelay: 1800,
			MaxRetries:    2,
			PingDelay:     30,
		},
		SMS:       sharedConfig.SMSConfig{Carrier: "fake"},
		RateLimit: sharedConfig.RateLimitConfig{UpdatePerMinute: 100, DBPerMinute: 100},
	}
}

func newTestContainer(t *testing.T) *Container {
	t.Helper()
	require.NoError(t, biztime.Init("UTC"))

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Same single connection the server uses for sqlite.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	ctx := context.Background()
	c, err := NewContainer(ctx, db, testConfig(), Components{WWW: true, Messaging: true}, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Store().AutoMigrate())
	t.Cleanup(func() { c.Shutdown(ctx) })
	return c
}

func serve(r *Router, method, target, host string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Host = host
	w := httptest.NewRecorder()
	r.GetEngine().ServeHTTP(w, req)
	return w
}

func TestWWWRouter(t *testing.T) {
	c := newTestContainer(t)
	r := NewWWWRouter(c)

	tests := []struct {
		name   string
		method string
		target string
		host   string
		want   int
	}{
		{"home", http.MethodGet, "/", "icubam.example.org", http.StatusOK},
		{"health", http.MethodGet, "/health", "icubam.example.org", http.StatusOK},
		{"metrics from trusted host", http.MethodGet, "/metrics", "localhost", http.StatusOK},
		{"metrics from public host", http.MethodGet, "/metrics", "icubam.example.org", http.StatusNotFound},
		{"unknown update token", http.MethodGet, "/update?id=deadbeef", "icubam.example.org", http.StatusNotFound},
		{"db without key", http.MethodGet, "/db/icus", "localhost", http.StatusServiceUnavailable},
		{"db from base url host", http.MethodGet, "/db/icus", "localhost:8888", http.StatusServiceUnavailable},
		{"db from public host", http.MethodGet, "/db/bedcounts", "evil.example.com", http.StatusNotFound},
		{"map preflight", http.MethodOptions, "/api/map", "icubam.example.org", http.StatusNoContent},
		{"messaging route absent", http.MethodPost, "/onoff", "localhost", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, tt.method, tt.target, tt.host, "")
			assert.Equal(t, tt.want, w.Code)
		})
	}

	w := serve(r, http.MethodGet, "/", "icubam.example.org", "")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestMessagingRouter(t *testing.T) {
	c := newTestContainer(t)
	r := NewMessagingRouter(c)

	tests := []struct {
		name   string
		method string
		target string
		host   string
		body   string
		want   int
	}{
		{"health", http.MethodGet, "/health", "localhost", "", http.StatusOK},
		{"onoff from trusted host", http.MethodPost, "/onoff", "localhost", `{"user_id": 7}`, http.StatusOK},
		{"onoff from public host", http.MethodPost, "/onoff", "icubam.example.org", `{"user_id": 7}`, http.StatusNotFound},
		{"schedule for unknown user", http.MethodPost, "/schedule", "localhost", `{"user_id": 7}`, http.StatusBadRequest},
		{"telegram disabled", http.MethodPost, "/telegram", "localhost", `{}`, http.StatusNotFound},
		{"www route absent", http.MethodGet, "/db/icus", "localhost", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, tt.method, tt.target, tt.host, tt.body)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestMessagingRouter_TelegramWebhookRestrictedToTelegram(t *testing.T) {
	cfg := testConfig()
	cfg.Telegram = sharedConfig.TelegramConfig{APIKey: "123:abc", BotName: "icubam_bot", Mode: "webhook"}
	require.NoError(t, biztime.Init("UTC"))

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	c, err := NewContainer(context.Background(), db, cfg, Components{Messaging: true}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Shutdown(context.Background()) })
	r := NewMessagingRouter(c)

	// httptest requests come from 192.0.2.1.
	w := serve(r, http.MethodPost, "/telegram", "localhost", `{"update_id": 1}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
