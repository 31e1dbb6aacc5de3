package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tamima/evoucher/internal/container"
	"github.com/tamima/evoucher/internal/storage"
)

func newSingleCmd(a *app) *cobra.Command {
	var (
		input   string
		orderID string
		outDir  string
		logo    logoFlags
	)

	cmd := &cobra.Command{
		Use:   "single",
		Short: "Generate the voucher of one order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.start(cmd.Context(), container.Options{DisableLedger: true, OutputDir: outDir})
			if err != nil {
				return err
			}
			defer a.close()

			svc := c.Service()
			records, err := loadRecords(svc, input)
			if err != nil {
				return err
			}
			asset, warnings, err := logo.acquire(cmd, svc)
			if err != nil {
				return err
			}
			printWarnings(cmd, warnings)

			result, err := svc.GenerateSingle(cmd.Context(), records, orderID, asset)
			if err != nil {
				return err
			}
			printWarnings(cmd, result.Warnings)

			path := filepath.Join(c.OutputDir(), result.Document.FileName)
			if err := c.FileStorage().SaveFileWithType(path, result.Document.Bytes, storage.FileTypePDF); err != nil {
				return err
			}

			cmd.Printf("%s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "xlsx workbook (required)")
	cmd.Flags().StringVar(&orderID, "order", "", "order id (required)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default: voucher.output_dir)")
	logo.register(cmd)
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("order")
	return cmd
}
