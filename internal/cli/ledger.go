package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"halaqa-points-api/internal/model"
	"halaqa-points-api/internal/service"

	"github.com/spf13/cobra"
)

func newShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <user-id>",
		Short:         "Show a user's ledger",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closeFn()

			rec, err := service.NewLedgerService(st).Get(context.Background(), args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read ledger", err)
			}
			return opts.output(cmd.OutOrStdout(), rec, func(w io.Writer) { printRecord(w, rec) })
		},
	}
}

func newCreditCommand(opts *RootOptions) *cobra.Command {
	var amount int64

	cmd := &cobra.Command{
		Use:   "credit <user-id>",
		Short: "Award points to a user",
		Long: `Award points to a user. Both the balance and the lifetime total grow
by the amount. Every invocation awards again.

Examples:
  ledgerctl credit student-42 --amount 10`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closeFn()

			rec, err := service.NewLedgerService(st).Credit(context.Background(), args[0], amount)
			if errors.Is(err, service.ErrInvalidAmount) {
				return WrapExitError(ExitCommandError, "invalid --amount", err)
			}
			if err != nil {
				return WrapExitError(ExitFailure, "credit failed", err)
			}
			return opts.output(cmd.OutOrStdout(), rec, func(w io.Writer) { printRecord(w, rec) })
		},
	}

	cmd.Flags().Int64Var(&amount, "amount", 0, "points to award (required)")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newLeaderboardCommand(opts *RootOptions) *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:           "leaderboard",
		Short:         "List the top users by lifetime points",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closeFn()

			entries, err := service.NewLeaderboard(st, nil, size).Top(context.Background())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read leaderboard", err)
			}
			return opts.output(cmd.OutOrStdout(), entries, func(w io.Writer) {
				if len(entries) == 0 {
					fmt.Fprintln(w, "No users with points yet")
					return
				}
				for _, e := range entries {
					fmt.Fprintf(w, "%d. %-24s %d\n", e.Rank, e.UserID, e.LifetimeTotal)
				}
			})
		},
	}

	cmd.Flags().IntVarP(&size, "size", "n", service.DefaultLeaderboardSize, "number of entries")
	return cmd
}

func newRedemptionsCommand(opts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:           "redemptions <user-id>",
		Short:         "List a user's reward redemptions, newest first",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closeFn()

			records, err := service.NewRedemptionService(st).History(context.Background(), args[0], limit)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list redemptions", err)
			}
			return opts.output(cmd.OutOrStdout(), records, func(w io.Writer) {
				for _, r := range records {
					fmt.Fprintf(w, "%s  %-20s %6d  by %s\n", r.Timestamp.Format("2006-01-02 15:04"), r.RewardID, r.Cost, r.RedeemedBy)
				}
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of records")
	return cmd
}

func newRepairCommand(opts *RootOptions) *cobra.Command {
	var pageSize int

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Normalize ledger records with corrupt fields",
		Long: `Scan every ledger record and rewrite the ones whose balance, lifetime
total, inventory or equipment could not be read cleanly. Rewrites are
transactional and safe to run against a live database.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := service.NewRepairScheduler(st, service.RepairConfig{PageSize: pageSize}).RunNow(context.Background())
			if err != nil {
				return WrapExitError(ExitCommandError, "repair failed", err)
			}
			if err := opts.output(cmd.OutOrStdout(), report, func(w io.Writer) {
				fmt.Fprintf(w, "scanned %d, repaired %d, failed %d\n", report.Scanned, report.Repaired, report.Failed)
			}); err != nil {
				return err
			}
			if report.Failed > 0 {
				return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d records could not be repaired", report.Failed)}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&pageSize, "page-size", 200, "records read per page")
	return cmd
}

func printRecord(w io.Writer, rec model.LedgerRecord) {
	inv := make([]string, len(rec.Inventory))
	for i, item := range rec.Inventory {
		inv[i] = string(item)
	}
	fmt.Fprintf(w, "user:      %s\n", rec.UserID)
	fmt.Fprintf(w, "balance:   %d\n", rec.Balance)
	fmt.Fprintf(w, "lifetime:  %d\n", rec.LifetimeTotal)
	fmt.Fprintf(w, "inventory: %s\n", strings.Join(inv, ", "))
	fmt.Fprintf(w, "equipped:  badge=%s frame=%s avatar=%s\n", rec.Equipped.Badge, rec.Equipped.Frame, rec.Equipped.Avatar)
}
