package migrate

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/icubam/icubam/internal/infrastructure/migration"
	"github.com/icubam/icubam/internal/interfaces/cli/bootstrap"
)

const sourceRoot = "./internal/infrastructure/migration"

var (
	name    string
	steps   int
	drivers []string
)

func NewCommand(flags *bootstrap.Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
		Long:  `Manage database migrations including running migrations, checking status, and creating new migration files.`,
	}

	cmd.AddCommand(
		newUpCommand(flags),
		newDownCommand(flags),
		newStatusCommand(flags),
		newCreateCommand(flags),
	)

	return cmd
}

func newUpCommand(flags *bootstrap.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Run all pending migrations",
		Long:  `Apply all pending database migrations to bring the database schema up to date.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStrategy(cmd.Context(), flags, func(rt *bootstrap.Runtime, s *migration.GooseStrategy) error {
				rt.Log.Infow("running up migrations", "environment", rt.Env)
				if err := s.Migrate(rt.DB); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				rt.Log.Infow("migrations completed successfully")
				return nil
			})
		},
	}
}

func newDownCommand(flags *bootstrap.Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		Long:  `Rollback a specified number of database migrations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStrategy(cmd.Context(), flags, func(rt *bootstrap.Runtime, s *migration.GooseStrategy) error {
				rt.Log.Infow("running down migrations", "environment", rt.Env, "steps", steps)
				if err := s.MigrateDown(rt.DB, steps); err != nil {
					return fmt.Errorf("down migration failed: %w", err)
				}
				rt.Log.Infow("down migration completed successfully")
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to rollback")

	return cmd
}

func newStatusCommand(flags *bootstrap.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Long:  `Display the current migration version and status of the database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStrategy(cmd.Context(), flags, func(rt *bootstrap.Runtime, s *migration.GooseStrategy) error {
				version, err := s.GetVersion(rt.DB)
				if err != nil {
					return fmt.Errorf("failed to get migration version: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "\nMigration Status:\n")
				fmt.Fprintf(out, "  Environment:     %s\n", rt.Env)
				fmt.Fprintf(out, "  Driver:          %s\n", rt.Config.Database.Driver)
				fmt.Fprintf(out, "  Current Version: %d\n", version)

				if err := s.Status(rt.DB); err != nil {
					return fmt.Errorf("failed to get detailed status: %w", err)
				}
				return nil
			})
		},
	}
}

func newCreateCommand(flags *bootstrap.Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new migration",
		Long: `Create a new SQL migration file for each database driver. Run from the
repository root so the scripts land next to the embedded ones.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap.Load(flags)
			if err != nil {
				return err
			}
			for _, driver := range drivers {
				s, err := migration.NewGooseStrategy(driver)
				if err != nil {
					return err
				}
				if err := s.Create(sourceRoot, name); err != nil {
					return err
				}
			}
			rt.Log.Infow("migration created successfully", "name", name, "drivers", drivers)
			fmt.Fprintf(cmd.OutOrStdout(), "Migration '%s' created for %v\n", name, drivers)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Name of the migration (required)")
	cmd.Flags().StringSliceVar(&drivers, "drivers", []string{"sqlite", "mysql", "postgres"}, "Drivers to create the script for")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func withStrategy(ctx context.Context, flags *bootstrap.Flags, fn func(*bootstrap.Runtime, *migration.GooseStrategy) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := bootstrap.Open(ctx, flags)
	if err != nil {
		return err
	}
	defer rt.Close()

	s, err := migration.NewGooseStrategy(rt.Config.Database.Driver)
	if err != nil {
		return err
	}
	if err := fn(rt, s); err != nil {
		rt.Log.Errorw("migration command failed", "error", err)
		return err
	}
	return nil
}
