// Package cli implements the voucherctl command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tamima/evoucher/internal/application/service"
	"github.com/tamima/evoucher/internal/config"
	"github.com/tamima/evoucher/internal/container"
	"github.com/tamima/evoucher/internal/models"
	"github.com/tamima/evoucher/internal/voucher"
	"github.com/tamima/evoucher/pkg/utils"
)

var version = "dev"

// SetVersion sets the version reported by the version command
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs voucherctl with os.Args
func Execute(ctx context.Context) error {
	root := NewRootCmd()
	root.SetOut(os.Stdout)
	return root.ExecuteContext(ctx)
}

// skipSetup marks commands that need neither configuration nor database
const skipSetup = "skip-setup"

// rootOptions are the persistent flags
type rootOptions struct {
	configPath string
	verbose    bool
	noLedger   bool
}

// app holds what the subcommands share
type app struct {
	opts      *rootOptions
	cfg       *config.Config
	logger    *zap.Logger
	container *container.Container
}

// NewRootCmd builds the voucherctl command tree
func NewRootCmd() *cobra.Command {
	a := &app{opts: &rootOptions{}}

	root := &cobra.Command{
		Use:           "voucherctl",
		Short:         "Generate Tamima e-vouchers from a spreadsheet",
		Long:          "voucherctl turns the rows of an xlsx workbook into printable PDF vouchers with a verification QR code.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipSetup] != "" {
				return nil
			}
			return a.setup()
		},
	}
	root.PersistentFlags().StringVar(&a.opts.configPath, "config", "", "config file (defaults and environment only when empty)")
	root.PersistentFlags().BoolVarP(&a.opts.verbose, "verbose", "v", false, "log debug output to stderr")
	root.PersistentFlags().BoolVar(&a.opts.noLedger, "no-ledger", false, "do not record batch runs in the database")

	root.AddCommand(
		newVersionCmd(),
		newCheckCmd(a),
		newSingleCmd(a),
		newBatchCmd(a),
		newRunsCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.opts.configPath)
	if err != nil {
		return err
	}
	logger, err := utils.NewCLILogger(a.opts.verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// start builds the container for one command. The caller must defer
// a.close.
func (a *app) start(ctx context.Context, opts container.Options) (*container.Container, error) {
	opts.DisableLedger = opts.DisableLedger || a.opts.noLedger
	c, err := container.NewContainer(a.cfg, opts, a.logger)
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	a.container = c
	return c, nil
}

func (a *app) close() {
	if a.container != nil {
		if err := a.container.Close(); err != nil {
			a.logger.Warn("Failed to close", zap.Error(err))
		}
		a.container = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// loadRecords reads the workbook given by --input
func loadRecords(svc *service.VoucherService, path string) ([]models.VoucherRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()
	return svc.LoadRecords(f, path)
}

// logoFlags selects the logo of a run
type logoFlags struct {
	path   string
	noLogo bool
}

func (l *logoFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&l.path, "logo", "", "logo image (default: configured default logo)")
	cmd.Flags().BoolVar(&l.noLogo, "no-logo", false, "generate vouchers without logo")
	cmd.MarkFlagsMutuallyExclusive("logo", "no-logo")
}

// acquire resolves the logo and prints any warning
func (l *logoFlags) acquire(cmd *cobra.Command, svc *service.VoucherService) (*voucher.LogoAsset, []string, error) {
	switch {
	case l.noLogo:
		logo, warnings := svc.AcquireLogo(service.LogoRequest{Mode: service.LogoNone})
		return logo, warnings, nil
	case l.path != "":
		f, err := os.Open(l.path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open logo: %w", err)
		}
		defer f.Close()
		logo, warnings := svc.AcquireLogo(service.LogoRequest{Mode: service.LogoCustom, Upload: f, Name: l.path})
		return logo, warnings, nil
	default:
		logo, warnings := svc.AcquireLogo(service.LogoRequest{Mode: service.LogoDefault})
		return logo, warnings, nil
	}
}

func printWarnings(cmd *cobra.Command, warnings []string) {
	for _, w := range warnings {
		cmd.PrintErrf("warning: %s\n", w)
	}
}
