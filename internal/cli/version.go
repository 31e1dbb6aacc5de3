package cli

import (
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version number",
		Annotations: map[string]string{skipSetup: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("voucherctl version %s\n", version)
		},
	}
}
