package main

import (
	"fmt"
	"os"

	"github.com/rgehrsitz/paycalc/internal/batch"
	"github.com/rgehrsitz/paycalc/internal/store/sqlite"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var approveCmd = &cobra.Command{
	Use:   "approve [run-id]",
	Short: "Approve a stored payroll run",
	Long: `Move a run pending approval to approved. Approved runs are final: they
cannot be rejected or recalculated in place.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewRun(cmd, args[0], batch.StatusApproved, "")
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject [run-id]",
	Short: "Reject a stored payroll run",
	Long:  `Move a run pending approval to rejected. A reason is required.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewRun(cmd, args[0], batch.StatusRejected, rejectReason)
	},
}

var (
	reviewStore  string
	reviewActor  string
	rejectReason string
)

func init() {
	for _, c := range []*cobra.Command{approveCmd, rejectCmd} {
		c.Flags().StringVar(&reviewStore, "store", "", "SQLite database holding the run (default: store_path setting)")
		c.Flags().StringVar(&reviewActor, "by", "", "Who reviews the run (default: $USER)")
	}
	rejectCmd.Flags().StringVar(&rejectReason, "reason", "", "Why the run is rejected")
	rejectCmd.MarkFlagRequired("reason")
}

func reviewRun(cmd *cobra.Command, id string, to batch.RunStatus, reason string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	storePath := pick(cmd, "store", reviewStore, a.settings.StorePath)
	if storePath == "" {
		return fmt.Errorf("a run store is required: pass --store or set store_path")
	}
	store, err := sqlite.New(storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	actor := reviewActor
	if actor == "" {
		actor = os.Getenv("USER")
	}
	if err := store.UpdateStatus(cmd.Context(), id, batch.StatusPendingApproval, to, actor, reason); err != nil {
		return err
	}
	a.logger.Info("payroll run reviewed", zap.String("run_id", id), zap.String("status", string(to)), zap.String("actor", actor))

	fmt.Fprintf(cmd.OutOrStdout(), "Payroll run %s %s\n", id, to)
	return nil
}
