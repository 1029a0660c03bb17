// Package schedule inspects and switches the report timers of a running
// messaging server.
package schedule

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/icubam/icubam/internal/infrastructure/client"
	"github.com/icubam/icubam/internal/interfaces/cli/bootstrap"
	"github.com/icubam/icubam/internal/interfaces/dto"
)

var output string

func NewCommand(flags *bootstrap.Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Control the report scheduler of the messaging server",
	}
	cmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, yaml, json)")
	cmd.AddCommand(newListCommand(flags), newOnCommand(flags), newOffCommand(flags))
	return cmd
}

func newListCommand(flags *bootstrap.Flags) *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the pending messages of the ICUs a user manages",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := controlClient(flags)
			if err != nil {
				return err
			}
			msgs, err := c.Schedule(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return Render(cmd.OutOrStdout(), output, msgs)
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "Manager user id (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newOnCommand(flags *bootstrap.Flags) *cobra.Command {
	var (
		userID int64
		icuIDs []int64
		delay  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "on",
		Short: "Schedule messages for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			on := true
			req := dto.OnOffRequest{UserID: userID, ICUIDs: icuIDs, On: &on}
			if cmd.Flags().Changed("delay") {
				secs := int(delay / time.Second)
				req.Delay = &secs
			}
			return onOff(cmd, flags, req)
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "User id (required)")
	cmd.Flags().Int64SliceVar(&icuIDs, "icus", nil, "ICU ids to schedule (required)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Send the first message after this delay instead of at the next moment")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("icus")
	return cmd
}

func newOffCommand(flags *bootstrap.Flags) *cobra.Command {
	var (
		userID int64
		icuIDs []int64
	)
	cmd := &cobra.Command{
		Use:   "off",
		Short: "Cancel the pending messages of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return onOff(cmd, flags, dto.OnOffRequest{UserID: userID, ICUIDs: icuIDs})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "User id (required)")
	cmd.Flags().Int64SliceVar(&icuIDs, "icus", nil, "Restrict to these ICU ids (default: all)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func onOff(cmd *cobra.Command, flags *bootstrap.Flags, req dto.OnOffRequest) error {
	c, err := controlClient(flags)
	if err != nil {
		return err
	}
	resp, err := c.OnOff(cmd.Context(), req)
	if err != nil {
		return err
	}
	switch output {
	case "yaml", "json":
		return encode(cmd.OutOrStdout(), output, resp)
	default:
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "user %d: %d scheduled, %d cancelled\n", resp.UserID, resp.Scheduled, resp.Cancelled)
		return err
	}
}

func controlClient(flags *bootstrap.Flags) (*client.ControlClient, error) {
	rt, err := bootstrap.Load(flags)
	if err != nil {
		return nil, err
	}
	return client.NewControlClient(rt.Config.Messaging), nil
}

// Render prints scheduled messages as a table, YAML or JSON.
func Render(w io.Writer, format string, msgs []dto.ScheduledMessage) error {
	switch format {
	case "yaml", "json":
		return encode(w, format, msgs)
	case "table", "":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tICU\tUSER\tPHONE\tATTEMPTS")
	for _, m := range msgs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", m.When.Format(time.DateTime), m.ICUName, m.UserName, m.Phone, m.Attempts)
	}
	return tw.Flush()
}

func encode(w io.Writer, format string, v any) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
