// Package importer loads ICUs and users from CSV files.
package importer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/icubam/icubam/internal/application/export"
	"github.com/icubam/icubam/internal/infrastructure/repository"
	"github.com/icubam/icubam/internal/interfaces/cli/bootstrap"
	"github.com/icubam/icubam/internal/shared/logger"
)

type importFunc func(im *export.Importer, ctx context.Context, r io.Reader) (*export.ImportReport, error)

func NewCommand(flags *bootstrap.Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import ICUs or users from CSV",
	}
	cmd.AddCommand(
		newKindCommand(flags, "icus", "Import ICUs (columns: name, region, dept, city, lat, long, telephone)", (*export.Importer).ImportICUs),
		newKindCommand(flags, "users", "Import operators (columns: icu_name, name, telephone, description)", (*export.Importer).ImportUsers),
	)
	return cmd
}

func newKindCommand(flags *bootstrap.Flags, kind, short string, run importFunc) *cobra.Command {
	return &cobra.Command{
		Use:   kind + " <file.csv>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			s, err := bootstrap.OpenSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer s.Close()

			im := export.NewImporter(s.Services.Store(), repository.SystemPrincipal(), logger.WithComponent("import"))
			report, err := run(im, cmd.Context(), f)
			if err != nil {
				return fmt.Errorf("import %s: %w", kind, err)
			}
			return PrintReport(cmd.OutOrStdout(), kind, report)
		},
	}
}

// PrintReport summarizes an import and lists the rejected lines.
func PrintReport(w io.Writer, kind string, r *export.ImportReport) error {
	if _, err := fmt.Fprintf(w, "%s: %d added, %d skipped, %d rejected\n", kind, r.Added, r.Skipped, len(r.Errors)); err != nil {
		return err
	}
	for _, e := range r.Errors {
		if _, err := fmt.Fprintf(w, "  %s\n", e.Error()); err != nil {
			return err
		}
	}
	return nil
}
