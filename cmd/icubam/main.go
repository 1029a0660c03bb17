package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/icubam/icubam/internal/interfaces/cli/apikey"
	"github.com/icubam/icubam/internal/interfaces/cli/bootstrap"
	"github.com/icubam/icubam/internal/interfaces/cli/importer"
	"github.com/icubam/icubam/internal/interfaces/cli/migrate"
	"github.com/icubam/icubam/internal/interfaces/cli/schedule"
	"github.com/icubam/icubam/internal/interfaces/cli/server"
	"github.com/icubam/icubam/internal/interfaces/cli/user"
	"github.com/icubam/icubam/internal/shared/version"
)

func main() {
	var flags bootstrap.Flags

	rootCmd := &cobra.Command{
		Use:          "icubam",
		Short:        "ICUBAM - ICU bed availability monitoring",
		Long:         `ICUBAM collects ICU bed counts from hospital staff and serves them to regional coordinators.`,
		Version:      version.String(),
		SilenceUsage: true,
	}
	flags.Register(rootCmd)

	rootCmd.AddCommand(
		server.NewCommand(&flags),
		migrate.NewCommand(&flags),
		user.NewCommand(&flags),
		apikey.NewCommand(&flags),
		importer.NewCommand(&flags),
		schedule.NewCommand(&flags),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
