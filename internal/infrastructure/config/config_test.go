package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_DefaultsAndEnvironment(t *testing.T) {
	t.Setenv("ICUBAM_AUTH_JWT_SECRET", "jwt-secret")
	t.Setenv("ICUBAM_AUTH_ACCESS_KEY_SALT", "salt")
	t.Setenv("ICUBAM_SERVER_PORT", "9000")

	p := writeConfig(t, `
server:
  base_url: https://icubam.example.org
scheduler:
  daily_moments: ["08:00", "18:30"]
`)
	cfg, err := Load("", p)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "https://icubam.example.org", cfg.Server.BaseURL)
	assert.Equal(t, []string{"08:00", "18:30"}, cfg.Scheduler.DailyMoments)
	assert.Equal(t, 1800, cfg.Scheduler.ReminderDelay)
	assert.Equal(t, 30, cfg.Auth.TokenValidityDays)
	assert.Equal(t, 8889, cfg.Messaging.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Same(t, cfg, Get())
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		body string
	}{
		{
			name: "missing jwt secret",
			env:  map[string]string{"ICUBAM_AUTH_ACCESS_KEY_SALT": "salt"},
		},
		{
			name: "missing salt",
			env:  map[string]string{"ICUBAM_AUTH_JWT_SECRET": "jwt"},
		},
		{
			name: "bad daily moment",
			body: "scheduler:\n  daily_moments: [\"25:00\"]\n",
		},
		{
			name: "unknown carrier",
			body: "sms:\n  carrier: XX\n",
		},
		{
			name: "unknown driver",
			body: "database:\n  driver: oracle\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := tt.env
			if env == nil {
				env = map[string]string{
					"ICUBAM_AUTH_JWT_SECRET":      "jwt",
					"ICUBAM_AUTH_ACCESS_KEY_SALT": "salt",
				}
			}
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load("", writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
