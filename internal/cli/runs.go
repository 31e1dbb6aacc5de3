package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/tamima/evoucher/internal/application/port"
	"github.com/tamima/evoucher/internal/container"
	"github.com/tamima/evoucher/internal/repository"
)

var errNoLedger = errors.New("run ledger is disabled (--no-ledger)")

// ledger starts the container and returns its run repository
func (a *app) ledger(cmd *cobra.Command) (port.RunRepository, error) {
	if a.opts.noLedger {
		return nil, errNoLedger
	}
	c, err := a.start(cmd.Context(), container.Options{})
	if err != nil {
		return nil, err
	}
	return c.Runs(), nil
}

func newRunsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded batch runs",
	}
	cmd.AddCommand(newRunsListCmd(a), newRunsShowCmd(a))
	return cmd
}

func newRunsListCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent batch runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runs, err := a.ledger(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			list, err := runs.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				cmd.Println("No batch runs recorded.")
				return nil
			}
			for _, r := range list {
				cmd.Printf("%s  %s  %-15s %d/%d  %s\n",
					r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status(), r.Succeeded, r.Total, r.Source)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", repository.DefaultListLimit, "number of runs to show")
	return cmd
}

func newRunsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one batch run and its failed records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := a.ledger(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			r, err := runs.GetByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			cmd.Printf("Run:       %s\n", r.ID)
			cmd.Printf("Source:    %s\n", r.Source)
			cmd.Printf("Status:    %s\n", r.Status())
			cmd.Printf("Vouchers:  %d of %d (failed %d, skipped %d)\n", r.Succeeded, r.Total, r.Failed, r.Skipped)
			cmd.Printf("Logo:      %t\n", r.LogoUsed)
			cmd.Printf("Duration:  %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
			for _, f := range r.Failures {
				cmd.Printf("  failed %s (%s): %s\n", f.OrderID, f.GuestName, f.Reason)
			}
			return nil
		},
	}
}
