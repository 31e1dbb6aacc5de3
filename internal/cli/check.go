package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/tamima/evoucher/internal/container"
	"github.com/tamima/evoucher/internal/ingest"
)

func newCheckCmd(a *app) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a workbook without generating vouchers",
		Long: `Reads the workbook and checks that the record sheet has every
required column. The order ids found are listed in sheet order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.start(cmd.Context(), container.Options{DisableLedger: true})
			if err != nil {
				return err
			}
			defer a.close()

			records, err := loadRecords(c.Service(), input)
			if err != nil {
				return err
			}

			cmd.Printf("%s: %d records\n", input, len(records))
			for _, r := range records {
				cmd.Printf("  %s\t%s\t%s\n", r.OrderID, r.GuestName, r.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "xlsx workbook (required)")
	_ = cmd.MarkFlagRequired("input")
	cmd.Long += "\n\nRequired columns: " + strings.Join(ingest.RequiredColumns, ", ")
	return cmd
}
