// Package apikey manages the access keys of external API clients.
package apikey

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/icubam/icubam/internal/domain/access"
	"github.com/icubam/icubam/internal/domain/icu"
	"github.com/icubam/icubam/internal/infrastructure/repository"
	"github.com/icubam/icubam/internal/interfaces/cli/bootstrap"
)

type createOptions struct {
	name       string
	email      string
	phone      string
	regions    []string
	allRegions bool
	scope      string
	expires    time.Duration
}

func NewCommand(flags *bootstrap.Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage external API clients",
	}
	cmd.AddCommand(newCreateCommand(flags), newListCommand(flags), newRevokeCommand(flags))
	return cmd
}

func newCreateCommand(flags *bootstrap.Flags) *cobra.Command {
	var opts createOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a client and print its access key",
		Long: `Register an external client scoped to a set of regions. The access key is
printed once and only its digest is stored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			scope := access.Scope(opts.scope)
			if !scope.IsValid() {
				return fmt.Errorf("invalid scope %q (map, stats, upload, all)", opts.scope)
			}

			s, err := bootstrap.OpenSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer s.Close()
			store := s.Services.Store()

			known, err := store.ListRegions(cmd.Context())
			if err != nil {
				return err
			}
			if opts.allRegions && len(opts.regions) > 0 {
				return fmt.Errorf("--regions and --all-regions are exclusive")
			}
			regionIDs, err := ResolveRegions(known, opts.regions)
			if err != nil {
				return err
			}
			if opts.allRegions {
				regionIDs = AllRegionIDs(known)
			}
			if len(regionIDs) == 0 {
				s.Log.Warnw("client has no region and will read no data", "name", opts.name)
			}

			client := &access.ExternalClient{
				Name:      opts.name,
				Email:     opts.email,
				Phone:     opts.phone,
				Scope:     scope,
				IsActive:  true,
				RegionIDs: regionIDs,
			}
			if opts.expires > 0 {
				exp := store.Now().Add(opts.expires)
				client.Expiration = &exp
			}

			id, key, err := s.Services.Authenticator().RegisterClient(cmd.Context(), repository.SystemPrincipal(), client)
			if err != nil {
				return fmt.Errorf("failed to register client: %w", err)
			}
			s.Log.Infow("external client registered", "client_id", id, "scope", scope, "regions", len(regionIDs))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "client id:  %d\n", id)
			fmt.Fprintf(out, "access key: %s\n", key)
			fmt.Fprintln(out, "Store the key now, it cannot be shown again.")
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "Client name (required)")
	cmd.Flags().StringVar(&opts.email, "email", "", "Contact email")
	cmd.Flags().StringVar(&opts.phone, "phone", "", "Contact phone")
	cmd.Flags().StringSliceVar(&opts.regions, "regions", nil, "Region names the client may read (default: none)")
	cmd.Flags().BoolVar(&opts.allRegions, "all-regions", false, "Grant every region existing at creation time")
	cmd.Flags().StringVar(&opts.scope, "scope", string(access.ScopeStats), "Access scope (map, stats, upload, all)")
	cmd.Flags().DurationVar(&opts.expires, "expires", 0, "Validity, e.g. 720h (default: never expires)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newListCommand(flags *bootstrap.Flags) *cobra.Command {
	var validOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := bootstrap.OpenSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer s.Close()
			store := s.Services.Store()

			clients, err := store.ListExternalClients(cmd.Context(), validOnly)
			if err != nil {
				return err
			}
			regions, err := store.ListRegions(cmd.Context())
			if err != nil {
				return err
			}
			return PrintClients(cmd.OutOrStdout(), clients, regions)
		},
	}
	cmd.Flags().BoolVar(&validOnly, "valid", false, "Only list active, unexpired clients")
	return cmd
}

func newRevokeCommand(flags *bootstrap.Flags) *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Deactivate a client",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := bootstrap.OpenSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Services.Store().SetExternalClientActive(cmd.Context(), repository.SystemPrincipal(), id, false); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "client %d deactivated\n", id)
			return nil
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "Client id (required)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

// ResolveRegions maps region names to ids, case-insensitively.
func ResolveRegions(known []*icu.Region, names []string) ([]int64, error) {
	byName := make(map[string]int64, len(known))
	for _, r := range known {
		byName[strings.ToLower(r.Name)] = r.ID
	}
	ids := make([]int64, 0, len(names))
	for _, n := range names {
		id, ok := byName[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, fmt.Errorf("unknown region %q", n)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// AllRegionIDs lists the ids of known, in order.
func AllRegionIDs(known []*icu.Region) []int64 {
	ids := make([]int64, 0, len(known))
	for _, r := range known {
		ids = append(ids, r.ID)
	}
	return ids
}

// PrintClients writes one line per client. Keys are never printed.
func PrintClients(w io.Writer, clients []*access.ExternalClient, regions []*icu.Region) error {
	names := make(map[int64]string, len(regions))
	for _, r := range regions {
		names[r.ID] = r.Name
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSCOPE\tACTIVE\tEXPIRES\tREGIONS")
	for _, c := range clients {
		expires := "never"
		if c.Expiration != nil {
			expires = c.Expiration.Format(time.DateOnly)
		}
		rs := make([]string, 0, len(c.RegionIDs))
		for _, id := range c.RegionIDs {
			rs = append(rs, names[id])
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\t%s\n", c.ID, c.Name, c.Scope, c.IsActive, expires, strings.Join(rs, ","))
	}
	return tw.Flush()
}
