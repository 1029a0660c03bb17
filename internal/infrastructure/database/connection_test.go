package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icubam/icubam/internal/shared/config"
)

func TestDialectorRejectsUnknownDriver(t *testing.T) {
	_, err := Dialector(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestOpenSQLiteMemory(t *testing.T) {
	db, err := Open(context.Background(), &config.DatabaseConfig{Driver: "sqlite", Database: ":memory:"})
	require.NoError(t, err)

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestOpenHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := &config.DatabaseConfig{
		Driver:         "postgres",
		Host:           "127.0.0.1",
		Port:           1,
		Database:       "icubam",
		ConnectRetries: 3,
	}
	_, err := Open(ctx, cfg)
	assert.Error(t, err)
}
