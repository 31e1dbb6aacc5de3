package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tamima/evoucher/internal/application/service"
	"github.com/tamima/evoucher/internal/container"
	"github.com/tamima/evoucher/internal/storage"
	"github.com/tamima/evoucher/internal/voucher"
)

func newBatchCmd(a *app) *cobra.Command {
	var (
		input   string
		outDir  string
		workers int
		split   bool
		quiet   bool
		logo    logoFlags
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Generate the vouchers of every order",
		Long: `Generates one voucher per record and collects them into a ZIP archive.
Records that cannot be composed are listed at the end and do not stop the
batch. With --split the vouchers are written as separate files into a
folder named after the run id instead.

Interrupting the command finishes the vouchers in progress and still
writes the partial result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.start(cmd.Context(), container.Options{Workers: workers, OutputDir: outDir})
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

			onProgress := func(p voucher.Progress) {
				if quiet {
					return
				}
				state := "ok"
				if p.Err != nil {
					state = "failed"
				}
				cmd.PrintErrf("[%d/%d] %s %s\n", p.Completed, p.Total, p.OrderID, state)
			}

			outcome, runErr := svc.GenerateBatch(cmd.Context(), records, asset, input, onProgress)
			if outcome == nil {
				return runErr
			}
			printWarnings(cmd, outcome.Warnings)

			written, err := writeOutcome(c, outcome, split)
			if err != nil {
				return err
			}

			printSummary(cmd, outcome, written)
			if runErr != nil {
				return fmt.Errorf("batch interrupted, partial result written: %w", runErr)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "xlsx workbook (required)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default: voucher.output_dir)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "vouchers composed in parallel (default: voucher.workers)")
	cmd.Flags().BoolVar(&split, "split", false, "write separate PDF files instead of one archive")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print per-record progress")
	logo.register(cmd)
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// writeOutcome stores the archive or its entries in the output directory
// and returns what was written
func writeOutcome(c *container.Container, outcome *service.BatchOutcome, split bool) (string, error) {
	store := c.FileStorage()

	if !split {
		path := filepath.Join(c.OutputDir(), outcome.ArchiveName)
		if err := store.SaveFileWithType(path, outcome.Result.Archive, storage.FileTypeZIP); err != nil {
			return "", err
		}
		return path, nil
	}

	folders := c.FolderManager()
	dir, err := folders.CreateRunFolder(outcome.RunID)
	if err != nil {
		return "", err
	}
	if _, err := store.SaveArchiveEntries(dir, outcome.Result.Archive); err != nil {
		return "", errors.Join(err, folders.DeleteRunFolder(outcome.RunID))
	}
	return dir, nil
}

func printSummary(cmd *cobra.Command, outcome *service.BatchOutcome, written string) {
	result := outcome.Result
	cmd.Printf("run %s\n", outcome.RunID)
	cmd.Printf("%d of %d vouchers generated", result.Succeeded(), result.Total)
	if n := len(result.Failures); n > 0 {
		cmd.Printf(", %d failed", n)
	}
	if result.Skipped > 0 {
		cmd.Printf(", %d skipped", result.Skipped)
	}
	cmd.Printf("\n%s\n", written)

	for _, f := range result.Failures {
		cmd.Printf("  failed %s (%s): %v\n", f.OrderID, f.GuestName, f.Err)
	}
}
