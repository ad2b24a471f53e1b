// Command cecctl runs workflow maintenance tasks against the configured database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/generyand/umdc-cec-system-sub001/internal/app"
	"github.com/generyand/umdc-cec-system-sub001/internal/service"
	"github.com/generyand/umdc-cec-system-sub001/pkg/config"
	"github.com/generyand/umdc-cec-system-sub001/pkg/logger"
)

var jsonOutput bool

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cecctl",
		Short:         "Operate the CEC approval workflow",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	root.AddCommand(sweepCmd(), schoolYearCmd(), approvalsCmd())
	return root
}

// withContainer loads configuration, wires the application and runs fn.
func withContainer(fn func(c *app.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	c, err := app.New(cfg, logr.With(zap.String("component", "cecctl")))
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "sweep", Short: "Run a background sweep once"}
	run := func(job string) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *app.Container) error {
				resp, err := c.Scheduler.Trigger(cmd.Context(), job)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), resp)
				}
				return renderSweep(cmd.OutOrStdout(), resp)
			})
		}
	}
	cmd.AddCommand(
		&cobra.Command{Use: "activities", Short: "Promote today's UPCOMING activities to ONGOING", Args: cobra.NoArgs, RunE: run(service.JobActivityLifecycle)},
		&cobra.Command{Use: "escalations", Short: "Remind approvers about stale proposals", Args: cobra.NoArgs, RunE: run(service.JobApprovalEscalation)},
	)
	return cmd
}

func schoolYearCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "school-year", Short: "Manage school years"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List school years",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *app.Container) error {
				years, err := c.SchoolYear.List(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), years)
				}
				renderSchoolYears(cmd.OutOrStdout(), years)
				return nil
			})
		},
	}

	var actor string
	setCurrent := &cobra.Command{
		Use:   "set-current ID",
		Short: "Make ID the only current school year",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *app.Container) error {
				year, err := c.SchoolYear.SetCurrent(cmd.Context(), args[0], actor)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), year)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "current school year: %s (%s)\n", year.Year, year.ID)
				return nil
			})
		},
	}
	setCurrent.Flags().StringVar(&actor, "actor", "", "user id recorded in the audit log")

	cmd.AddCommand(list, setCurrent)
	return cmd
}

func approvalsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "approvals", Short: "Inspect the approval queue"}
	pending := &cobra.Command{
		Use:   "pending USER_ID",
		Short: "List proposals awaiting USER_ID's decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *app.Container) error {
				items, err := c.Approval.ListPendingFor(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), items)
				}
				renderProposals(cmd.OutOrStdout(), items)
				return nil
			})
		},
	}
	cmd.AddCommand(pending)
	return cmd
}
