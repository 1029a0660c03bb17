// Package bootstrap loads configuration, logging and the database for the
// icubam commands.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/icubam/icubam/internal/infrastructure/config"
	"github.com/icubam/icubam/internal/infrastructure/database"
	"github.com/icubam/icubam/internal/shared/biztime"
	"github.com/icubam/icubam/internal/shared/constants"
	"github.com/icubam/icubam/internal/shared/logger"
)

// Flags are the persistent flags shared by every command.
type Flags struct {
	Env        string
	ConfigPath string
}

// Register adds --env and --config to cmd and its subcommands.
func (f *Flags) Register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&f.Env, "env", "e", constants.EnvDevelopment, "Environment (development, test, production)")
	cmd.PersistentFlags().StringVarP(&f.ConfigPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")
}

// Runtime is the loaded environment of one command invocation.
type Runtime struct {
	Env    string
	Config *config.Config
	Log    logger.Interface
	DB     *gorm.DB
}

// Load reads the configuration and initialises logging and the business
// timezone. ENV overrides --env.
func Load(f *Flags) (*Runtime, error) {
	env := f.Env
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env, f.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Server.Mode = GinMode(env)

	if err := logger.Init(&cfg.Logger, cfg.Server.Mode); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := biztime.Init(cfg.Server.Timezone); err != nil {
		return nil, fmt.Errorf("failed to initialize business timezone: %w", err)
	}

	return &Runtime{Env: env, Config: cfg, Log: logger.NewLogger()}, nil
}

// Open is Load followed by a database connection.
func Open(ctx context.Context, f *Flags) (*Runtime, error) {
	rt, err := Load(f)
	if err != nil {
		return nil, err
	}
	if err := database.Init(ctx, &rt.Config.Database); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	rt.DB = database.Get()
	return rt, nil
}

// Close releases the database connection, if any.
func (rt *Runtime) Close() {
	if rt.DB == nil {
		return
	}
	if err := database.Close(); err != nil {
		rt.Log.Errorw("failed to close database", "error", err)
	}
}

// GinMode maps an environment name to a gin mode.
func GinMode(environment string) string {
	switch environment {
	case constants.EnvProduction, "prod", "release":
		return "release"
	case constants.EnvTest, "testing":
		return "test"
	default:
		return "debug"
	}
}
