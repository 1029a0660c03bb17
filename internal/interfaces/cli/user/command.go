// Package user administers operator, manager and admin accounts.
package user

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/icubam/icubam/internal/domain/icu"
	domain "github.com/icubam/icubam/internal/domain/user"
	"github.com/icubam/icubam/internal/infrastructure/repository"
	"github.com/icubam/icubam/internal/interfaces/cli/bootstrap"
	"github.com/icubam/icubam/internal/shared/authorization"
)

type addOptions struct {
	name        string
	phone       string
	email       string
	description string
	role        string
	locale      string
	icus        []string
	manages     []string
}

// ICULookup resolves ICU names.
type ICULookup interface {
	GetICUByName(ctx context.Context, name string) (*icu.ICU, error)
}

func NewCommand(flags *bootstrap.Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(newAddCommand(flags), newListCommand(flags))
	return cmd
}

func newAddCommand(flags *bootstrap.Flags) *cobra.Command {
	var opts addOptions
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			role := authorization.UserRole(opts.role)
			if !role.IsValid() {
				return fmt.Errorf("invalid role %q", opts.role)
			}

			s, err := bootstrap.OpenSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer s.Close()
			store := s.Services.Store()

			icuIDs, err := ResolveICUs(cmd.Context(), store, opts.icus)
			if err != nil {
				return err
			}
			managed, err := ResolveICUs(cmd.Context(), store, opts.manages)
			if err != nil {
				return err
			}

			u := &domain.User{
				Name:          opts.name,
				Phone:         opts.phone,
				Email:         opts.email,
				Description:   opts.description,
				Role:          role,
				Locale:        opts.locale,
				IsActive:      true,
				ICUIDs:        icuIDs,
				ManagedICUIDs: managed,
			}
			id, err := store.AddUser(cmd.Context(), repository.SystemPrincipal(), u)
			if err != nil {
				return fmt.Errorf("failed to add user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %d created\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "Full name (required)")
	cmd.Flags().StringVar(&opts.phone, "phone", "", "Phone number for SMS")
	cmd.Flags().StringVar(&opts.email, "email", "", "Email address")
	cmd.Flags().StringVar(&opts.description, "description", "", "Free-form description")
	cmd.Flags().StringVar(&opts.role, "role", string(authorization.RoleOperator), "Role (admin, manager, operator)")
	cmd.Flags().StringVar(&opts.locale, "locale", "fr", "Message locale")
	cmd.Flags().StringSliceVar(&opts.icus, "icus", nil, "ICU names the user reports for")
	cmd.Flags().StringSliceVar(&opts.manages, "manages", nil, "ICU names the user manages")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newListCommand(flags *bootstrap.Flags) *cobra.Command {
	var icuNames []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := bootstrap.OpenSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer s.Close()
			store := s.Services.Store()

			var filter []int64
			if len(icuNames) > 0 {
				if filter, err = ResolveICUs(cmd.Context(), store, icuNames); err != nil {
					return err
				}
			}
			users, err := store.ListUsers(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return PrintUsers(cmd.OutOrStdout(), users)
		},
	}
	cmd.Flags().StringSliceVar(&icuNames, "icus", nil, "Only list the operators of these ICUs")
	return cmd
}

// ResolveICUs maps ICU names to ids.
func ResolveICUs(ctx context.Context, lookup ICULookup, names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	for _, n := range names {
		i, err := lookup.GetICUByName(ctx, strings.TrimSpace(n))
		if err != nil {
			return nil, fmt.Errorf("icu %q: %w", n, err)
		}
		ids = append(ids, i.ID)
	}
	return ids, nil
}

// PrintUsers writes one line per user.
func PrintUsers(w io.Writer, users []*domain.User) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tROLE\tACTIVE\tCONSENT\tTELEGRAM\tICUS")
	for _, u := range users {
		consent := string(u.Consent)
		if consent == "" {
			consent = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\t%t\t%d\n", u.ID, u.Name, u.Role, u.IsActive, consent, u.TelegramChatID != "", len(u.ICUIDs))
	}
	return tw.Flush()
}
