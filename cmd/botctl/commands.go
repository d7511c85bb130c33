package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tazhate/dombot/config"
)

func newRankCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Print the coin ranking",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				top := s.ledger.Rankings(limit)
				if len(top) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No users yet.")
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "#\tID\tCOINS")
				for i, r := range top {
					fmt.Fprintf(w, "%d\t%s\t%d\n", i+1, r.ID, r.Coins)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Number of entries (default ECONOMY_RANK_LIMIT).")
	return cmd
}

func newUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "user <id>",
		Short: "Show one user's economy record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := config.NormalizeActorID(args[0])
			if id == "" {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			return withSession(cmd, func(ctx context.Context, s *session) error {
				u, ok := s.ledger.User(id)
				if !ok {
					return fmt.Errorf("user %s not found", id)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:         %s\n", id)
				fmt.Fprintf(out, "Coins:      %d\n", u.Coins)
				fmt.Fprintf(out, "Messages:   %d\n", u.MessageCount)
				fmt.Fprintf(out, "Joined:     %s\n", formatMillis(u.JoinedAt))
				fmt.Fprintf(out, "Last daily: %s\n", formatMillis(u.LastDailyClaim))
				return nil
			})
		},
	}
}

func newRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List bot owners and admins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Owners:")
				for _, id := range s.admins.Owners() {
					marker := ""
					if s.cfg.IsSupremeOwner(id) {
						marker = " (supreme)"
					}
					fmt.Fprintf(out, "  %s%s\n", id, marker)
				}
				fmt.Fprintln(out, "Admins:")
				admins := s.admins.Admins()
				if len(admins) == 0 {
					fmt.Fprintln(out, "  (none)")
				}
				for _, id := range admins {
					fmt.Fprintf(out, "  %s\n", id)
				}
				return nil
			})
		},
	}
}

func newGrantOwnerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grant-owner <id>",
		Short: "Add a bot owner without the auth secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := config.NormalizeActorID(args[0])
			if id == "" {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			return withSession(cmd, func(ctx context.Context, s *session) error {
				added, err := s.admins.GrantOwner(ctx, id)
				if err != nil {
					return err
				}
				if added {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is now an owner.\n", id)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is already an owner.\n", id)
				}
				return nil
			})
		},
	}
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "never"
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
